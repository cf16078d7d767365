// Package sqldb adapts a database/sql handle to the types.Executor and
// types.Tx interfaces shared by the SQLite and PostgreSQL adapters.
// Rows are scanned into ordered types.Values in result column order.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/activerow/pkg/types"
)

// queryExecer is implemented by *sql.DB, *sql.Tx and *sql.Conn.
type queryExecer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DB runs statements against a *sql.DB, rewriting "?" placeholders into the
// driver's style first.
type DB struct {
	db *sql.DB
	ph Placeholder
}

// New wraps db. ph selects the placeholder style the driver expects.
func New(db *sql.DB, ph Placeholder) *DB {
	return &DB{db: db, ph: ph}
}

// SQL returns the underlying handle.
func (d *DB) SQL() *sql.DB { return d.db }

// Placeholder returns the driver placeholder style.
func (d *DB) Placeholder() Placeholder { return d.ph }

// Query runs a statement returning rows.
func (d *DB) Query(ctx context.Context, query string, args ...any) ([]*types.Values, error) {
	return queryValues(ctx, d.db, Rebind(query, d.ph), args)
}

// Exec runs a statement returning no rows.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (types.Result, error) {
	return execResult(ctx, d.db, Rebind(query, d.ph), args)
}

// Begin starts a transaction.
func (d *DB) Begin(ctx context.Context) (types.Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &Tx{tx: tx, ph: d.ph}, nil
}

// Close closes the handle.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Tx is a transaction started by DB.Begin.
type Tx struct {
	tx *sql.Tx
	ph Placeholder
}

// Query runs a statement returning rows inside the transaction.
func (t *Tx) Query(ctx context.Context, query string, args ...any) ([]*types.Values, error) {
	return queryValues(ctx, t.tx, Rebind(query, t.ph), args)
}

// Exec runs a statement returning no rows inside the transaction.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (types.Result, error) {
	return execResult(ctx, t.tx, Rebind(query, t.ph), args)
}

// Commit commits the transaction.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback aborts the transaction.
func (t *Tx) Rollback() error { return t.tx.Rollback() }

func queryValues(ctx context.Context, q queryExecer, query string, args []any) (out []*types.Values, err error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	// Propagate rows.Close() error if nothing else failed.
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		v := types.NewValues(len(cols))
		for i, c := range cols {
			v.Set(c, dest[i])
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func execResult(ctx context.Context, q queryExecer, query string, args []any) (types.Result, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return types.Result{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some drivers cannot report a count; the statement still succeeded.
		return types.Result{RowsAffected: -1}, nil
	}
	return types.Result{RowsAffected: n}, nil
}
