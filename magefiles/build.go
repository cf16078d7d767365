//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for activerow using Mage.
//
// Usage:
//
//	mage build             Compile the activerow binary to bin/
//	mage install           Install activerow to GOPATH/bin
//	mage clean             Remove build artifacts
//	mage vet               Run go vet
//	mage lint              Run go vet and golangci-lint
//	mage test:all          Run all tests
//	mage test:unit         Run tests without the race detector
//	mage test:cover        Write coverage.out and print the summary
//	mage test:postgres     Run the PostgreSQL tests against a container
//	mage postgres:up       Start the PostgreSQL test container
//	mage postgres:down     Stop it
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "activerow"
	binaryDir  = "bin"
	cmdDir     = "./cmd/activerow"
)

// Build compiles the activerow binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	if err := sh.Rm(coverFile); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
