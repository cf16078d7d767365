// Package backend opens a store from a types.Config and exposes a table
// gateway for each configured table.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mesh-intelligence/activerow/internal/metrics"
	"github.com/mesh-intelligence/activerow/internal/postgres"
	"github.com/mesh-intelligence/activerow/internal/sqlite"
	"github.com/mesh-intelligence/activerow/pkg/record"
	"github.com/mesh-intelligence/activerow/pkg/types"
)

// Options configure a Backend. All fields are optional.
type Options struct {
	Logger *slog.Logger
	// Registerer receives the statement and save metrics. Nil keeps them
	// unregistered.
	Registerer prometheus.Registerer
	// Now is the clock used for touch columns.
	Now func() time.Time
}

// Backend owns one store connection and the tables built on it. It is safe
// for concurrent use.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	store    types.Store
	tables   map[string]*record.Table

	logger  *slog.Logger
	now     func() time.Time
	metrics *metrics.Recorder
}

// New creates a detached backend. Call Attach to connect.
func New(opts Options) (*Backend, error) {
	rec, err := metrics.New(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		tables:  make(map[string]*record.Table),
		logger:  logger,
		now:     opts.Now,
		metrics: rec,
	}, nil
}

// Attach opens the store described by config and builds a table for each
// entry of config.Tables. Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(ctx context.Context, config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	store, err := openStore(ctx, config)
	if err != nil {
		return err
	}

	tables := make(map[string]*record.Table, len(config.Tables))
	for _, tc := range config.Tables {
		tbl, err := record.NewTable(ctx, store, tc.TableSpec, rowTypeOf(tc), b.tableOptions(config))
		if err != nil {
			store.Close()
			return fmt.Errorf("table %s: %w", tc.QualifiedName(), err)
		}
		tables[tc.QualifiedName()] = tbl
	}

	b.store = store
	b.config = config
	b.tables = tables
	b.attached = true
	b.logger.Info("backend attached", "backend", config.Backend, "tables", len(tables))
	return nil
}

// Detach closes the store. Detach is idempotent. After Detach, GetTable
// returns ErrDetached.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.store != nil {
		if err := b.store.Close(); err != nil {
			return fmt.Errorf("closing store: %w", err)
		}
		b.store = nil
	}
	b.attached = false
	b.tables = make(map[string]*record.Table)
	b.logger.Info("backend detached", "backend", b.config.Backend)
	return nil
}

// GetTable returns the table registered under name (schema-qualified when
// the table has a schema).
func (b *Backend) GetTable(name string) (*record.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrDetached
	}
	tbl, ok := b.tables[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, types.ErrTableNotFound)
	}
	return tbl, nil
}

// RegisterTable builds a table with a row type defined in code, for hooks
// and accessors that cannot be configured declaratively. An existing
// registration under the same name is replaced.
func (b *Backend) RegisterTable(ctx context.Context, spec types.TableSpec, rowType record.RowType) (*record.Table, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil, types.ErrDetached
	}
	tbl, err := record.NewTable(ctx, b.store, spec, rowType, b.tableOptions(b.config))
	if err != nil {
		return nil, err
	}
	b.tables[spec.QualifiedName()] = tbl
	return tbl, nil
}

// TableNames lists the registered tables in sorted order.
func (b *Backend) TableNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.tables))
	for name := range b.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Store returns the attached store.
func (b *Backend) Store() (types.Store, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrDetached
	}
	return b.store, nil
}

func (b *Backend) tableOptions(config types.Config) record.Options {
	return record.Options{
		Logger:      b.logger,
		Now:         b.now,
		Observer:    b.metrics,
		BulkFailure: config.GetBulkFailure(),
	}
}

func rowTypeOf(tc types.TableConfig) record.RowType {
	resource := tc.Resource
	if resource == "" {
		resource = tc.Name
	}
	return record.RowType{
		Resource:    resource,
		Required:    tc.Required,
		TouchColumn: tc.TouchColumn,
	}
}

func openStore(ctx context.Context, config types.Config) (types.Store, error) {
	switch config.Backend {
	case types.BackendSQLite:
		s, err := sqlite.OpenDataDir(ctx, config.DataDir, sqlite.Options{DisableReturning: config.DisableReturning})
		if err != nil {
			return nil, err
		}
		return s, nil
	case types.BackendPostgres:
		s, err := postgres.Open(ctx, config.DSN, postgres.Options{DisableReturning: config.DisableReturning})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, types.ErrBackendUnknown
}
