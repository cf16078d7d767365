// Package paths resolves the configuration and data directories of the
// activerow CLI.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "activerow"

// Project-local directory names, relative to the working directory.
const (
	LocalConfigDirName = ".activerow"
	LocalDataDirName   = ".activerow-db"
)

// Environment variable overrides.
const (
	EnvConfigDir = "ACTIVEROW_CONFIG_DIR"
	EnvDataDir   = "ACTIVEROW_DATA_DIR"
)

// ConfigFileName is the configuration file inside the config directory.
const ConfigFileName = "config.yaml"

// platform holds lookups that tests override.
var platform = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
	getwd         func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
	getwd:         os.Getwd,
}

// UserConfigDir returns the per-user configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/activerow (fallback ~/.config/activerow)
// macOS:   ~/Library/Application Support/activerow
// Windows: %APPDATA%/activerow
func UserConfigDir() (string, error) {
	if platform.goos == "linux" {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		home, err := platform.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", appName), nil
	}
	dir, err := platform.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// ResolveConfigDir picks the configuration directory:
// flag > ACTIVEROW_CONFIG_DIR > ./.activerow when it exists > UserConfigDir.
// Explicit values are made absolute.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := platform.getwd()
	if err != nil {
		return "", err
	}
	local := filepath.Join(cwd, LocalConfigDirName)
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return local, nil
	}
	return UserConfigDir()
}

// LocalConfigDir returns ./.activerow as an absolute path. init uses it
// when no directory was given.
func LocalConfigDir() (string, error) {
	cwd, err := platform.getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, LocalConfigDirName), nil
}

// ResolveDataDir picks the SQLite data directory:
// flag > data_dir from config.yaml > ACTIVEROW_DATA_DIR > ./.activerow-db.
func ResolveDataDir(flag, configValue string) (string, error) {
	for _, v := range []string{flag, configValue, os.Getenv(EnvDataDir)} {
		if v != "" {
			return filepath.Abs(v)
		}
	}
	cwd, err := platform.getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, LocalDataDirName), nil
}

// ConfigFile returns the path of config.yaml inside dir.
func ConfigFile(dir string) string {
	return filepath.Join(dir, ConfigFileName)
}
