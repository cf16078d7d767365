//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/magefile/mage/mg"
)

// PostgreSQL test container settings.
const (
	postgresImage     = "postgres:17-alpine"
	postgresContainer = "activerow-postgres"
	postgresPort      = "55432"
	postgresPassword  = "activerow"
	envTestDSN        = "ACTIVEROW_TEST_POSTGRES_DSN"
)

// Postgres groups the test database targets.
type Postgres mg.Namespace

// containerRuntime returns "podman" or "docker" if a working runtime
// is available, or "" if neither is usable.
func containerRuntime() string {
	for _, name := range []string{"podman", "docker"} {
		if _, err := exec.LookPath(name); err != nil {
			continue
		}
		if exec.Command(name, "info").Run() != nil {
			fmt.Fprintf(os.Stderr, "WARNING: %s found on PATH but not usable (is the daemon/machine running?)\n", name)
			continue
		}
		return name
	}
	return ""
}

func postgresDSN() string {
	return fmt.Sprintf("postgres://postgres:%s@localhost:%s/postgres?sslmode=disable", postgresPassword, postgresPort)
}

// Up starts the PostgreSQL container and waits until it accepts
// connections. A running container is reused.
func (Postgres) Up() error {
	rt := containerRuntime()
	if rt == "" {
		return fmt.Errorf("no container runtime found (tried podman, docker)")
	}
	if exec.Command(rt, "inspect", postgresContainer).Run() != nil {
		fmt.Fprintln(os.Stderr, "Starting PostgreSQL container...")
		cmd := exec.Command(rt, "run", "-d", "--rm",
			"--name", postgresContainer,
			"-e", "POSTGRES_PASSWORD="+postgresPassword,
			"-p", postgresPort+":5432",
			postgresImage)
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("starting container: %w", err)
		}
	}

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		if exec.Command(rt, "exec", postgresContainer, "pg_isready", "-U", "postgres").Run() == nil {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("postgres did not become ready within 30s")
}

// Down stops the PostgreSQL container. Errors are ignored because the
// container may not exist.
func (Postgres) Down() {
	rt := containerRuntime()
	if rt == "" {
		return
	}
	fmt.Fprintln(os.Stderr, "Stopping PostgreSQL container...")
	_ = exec.Command(rt, "stop", postgresContainer).Run()
}
