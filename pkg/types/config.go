package types

import (
	"errors"
	"fmt"
)

// Config holds backend selection, connection parameters and the tables to
// expose through Backend.GetTable.
type Config struct {
	Backend          string        `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir          string        `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	DSN              string        `json:"dsn,omitempty" yaml:"dsn,omitempty" mapstructure:"dsn"`
	DisableReturning bool          `json:"disable_returning,omitempty" yaml:"disable_returning,omitempty" mapstructure:"disable_returning"`
	BulkFailure      string        `json:"bulk_failure,omitempty" yaml:"bulk_failure,omitempty" mapstructure:"bulk_failure"`
	Tables           []TableConfig `json:"tables,omitempty" yaml:"tables,omitempty" mapstructure:"tables"`
}

// TableConfig is a TableSpec plus the row type settings that can be
// expressed declaratively.
type TableConfig struct {
	TableSpec   `yaml:",inline" mapstructure:",squash"`
	Resource    string   `json:"resource" yaml:"resource" mapstructure:"resource"`
	Required    []string `json:"required,omitempty" yaml:"required,omitempty" mapstructure:"required"`
	TouchColumn string   `json:"touch_column,omitempty" yaml:"touch_column,omitempty" mapstructure:"touch_column"`
}

// Supported backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Bulk insert failure strategies.
const (
	// BulkFailSwallow rolls back and reports zero affected rows without an
	// error.
	BulkFailSwallow = "swallow"
	// BulkFailPropagate rolls back and returns the store error.
	BulkFailPropagate = "propagate"
)

// Config validation errors.
var (
	ErrBackendEmpty       = errors.New("backend must not be empty")
	ErrBackendUnknown     = errors.New("unknown backend")
	ErrDSNRequired        = errors.New("postgres backend requires a dsn")
	ErrBulkFailureUnknown = errors.New("unknown bulk failure strategy")
	ErrDuplicateTable     = errors.New("table configured twice")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite:   true,
	BackendPostgres: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Backend == BackendPostgres && c.DSN == "" {
		return ErrDSNRequired
	}
	switch c.BulkFailure {
	case "", BulkFailSwallow, BulkFailPropagate:
	default:
		return ErrBulkFailureUnknown
	}
	seen := make(map[string]bool, len(c.Tables))
	for _, t := range c.Tables {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("table %q: %w", t.Name, err)
		}
		if seen[t.QualifiedName()] {
			return fmt.Errorf("%w: %s", ErrDuplicateTable, t.QualifiedName())
		}
		seen[t.QualifiedName()] = true
	}
	return nil
}

// GetBulkFailure returns the bulk failure strategy, defaulting to swallow.
func (c Config) GetBulkFailure() string {
	if c.BulkFailure == "" {
		return BulkFailSwallow
	}
	return c.BulkFailure
}
