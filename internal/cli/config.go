package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/activerow/internal/paths"
	"github.com/mesh-intelligence/activerow/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend     = "backend"
	cfgKeyDSN         = "dsn"
	cfgKeyBulkFailure = "bulk_failure"
)

// Environment variables read in addition to config.yaml. They win over the
// file.
const (
	envBackend = "ACTIVEROW_BACKEND"
	envDSN     = "ACTIVEROW_DSN"
)

const configHeader = `# activerow configuration
#
# backend: sqlite or postgres
# dsn: connection string for postgres
# data_dir: SQLite data directory (overridable by --data-dir)
# bulk_failure: swallow (default) or propagate
# tables: per-table resource name, required fields and touch column
`

// loadConfig reads config.yaml from configDir. A missing file is not an
// error; defaults apply. The data directory is resolved through
// paths.ResolveDataDir so that --data-dir wins over the file.
func loadConfig(configDir string) (types.Config, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyBulkFailure, types.BulkFailSwallow)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.BindEnv(cfgKeyBackend, envBackend); err != nil {
		return types.Config{}, err
	}
	if err := v.BindEnv(cfgKeyDSN, envDSN); err != nil {
		return types.Config{}, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}

	dataDir, err := paths.ResolveDataDir(flags.dataDir, cfg.DataDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = dataDir

	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// writeDefaultConfig writes config.yaml into configDir unless one exists.
// It reports whether a file was written.
func writeDefaultConfig(configDir string, cfg types.Config) (bool, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	path := paths.ConfigFile(configDir)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config: %w", err)
	}

	body, err := yaml.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	content := append([]byte(configHeader+"\n"), body...)
	if err := os.WriteFile(filepath.Clean(path), content, 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}
