// Package activerow is the public entry point: it creates backends that
// connect to SQLite or PostgreSQL and hand out record.Table gateways for
// the configured tables.
//
// Example:
//
//	b, err := activerow.NewBackend(activerow.Options{})
//	err = b.Attach(ctx, types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".activerow-db",
//	    Tables:  []types.TableConfig{{TableSpec: types.TableSpec{Name: "items"}, Resource: "item"}},
//	})
//	defer b.Detach()
//	items, err := b.GetTable("items")
package activerow

import (
	"context"

	"github.com/mesh-intelligence/activerow/internal/backend"
	"github.com/mesh-intelligence/activerow/pkg/record"
	"github.com/mesh-intelligence/activerow/pkg/types"
)

// Version is the release version of the module.
const Version = "0.1.0"

// Options configure a backend; see backend.Options.
type Options = backend.Options

// Backend connects to a store and exposes its tables.
type Backend interface {
	// Attach opens the store described by config. Returns
	// types.ErrAlreadyAttached if called while attached.
	Attach(ctx context.Context, config types.Config) error

	// Detach closes the store. Idempotent.
	Detach() error

	// GetTable returns a configured or registered table.
	GetTable(name string) (*record.Table, error)

	// RegisterTable adds a table whose row type is defined in code.
	RegisterTable(ctx context.Context, spec types.TableSpec, rowType record.RowType) (*record.Table, error)

	// TableNames lists the available tables.
	TableNames() []string
}

// Compile-time interface check.
var _ Backend = (*backend.Backend)(nil)

// NewBackend creates a detached backend.
func NewBackend(opts Options) (Backend, error) {
	b, err := backend.New(opts)
	if err != nil {
		return nil, err
	}
	return b, nil
}
