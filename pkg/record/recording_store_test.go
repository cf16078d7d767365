package record

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/activerow/internal/sqlite"
	"github.com/mesh-intelligence/activerow/pkg/types"
)

const testSchema = `
CREATE TABLE items (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	active BOOLEAN,
	price REAL
);
CREATE TABLE notes (
	id INTEGER PRIMARY KEY,
	body TEXT,
	updated_at TEXT
);
CREATE TABLE tokens (
	id TEXT PRIMARY KEY,
	label TEXT
);
CREATE TABLE memberships (
	user_id INTEGER NOT NULL,
	group_id INTEGER NOT NULL,
	role TEXT,
	PRIMARY KEY (user_id, group_id)
);`

// statement is one call seen by recordingStore.
type statement struct {
	SQL  string
	Args []any
}

// recordingStore wraps a real SQLite store and records the statements a
// Table sends it. Failures and parameter styles can be overridden.
type recordingStore struct {
	*sqlite.Store

	mu           sync.Mutex
	stmts        []statement
	begins       int
	commits      int
	rollbacks    int
	failExec     error
	noPositional bool
	noNamed      bool
}

func (s *recordingStore) record(query string, args []any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stmts = append(s.stmts, statement{SQL: query, Args: args})
}

func (s *recordingStore) statements() []statement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]statement(nil), s.stmts...)
}

func (s *recordingStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stmts = nil
	s.begins, s.commits, s.rollbacks = 0, 0, 0
}

func (s *recordingStore) Query(ctx context.Context, query string, args ...any) ([]*types.Values, error) {
	s.record(query, args)
	return s.Store.Query(ctx, query, args...)
}

func (s *recordingStore) Exec(ctx context.Context, query string, args ...any) (types.Result, error) {
	s.record(query, args)
	if s.failExec != nil {
		return types.Result{}, s.failExec
	}
	return s.Store.Exec(ctx, query, args...)
}

func (s *recordingStore) Begin(ctx context.Context) (types.Tx, error) {
	s.mu.Lock()
	s.begins++
	s.mu.Unlock()
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &recordingTx{Tx: tx, s: s}, nil
}

func (s *recordingStore) SupportsParameterStyle(style types.ParamStyle) bool {
	switch {
	case style == types.ParamPositional && s.noPositional:
		return false
	case style == types.ParamNamed && s.noNamed:
		return false
	}
	return s.Store.SupportsParameterStyle(style)
}

type recordingTx struct {
	types.Tx
	s *recordingStore
}

func (tx *recordingTx) Exec(ctx context.Context, query string, args ...any) (types.Result, error) {
	tx.s.record(query, args)
	if tx.s.failExec != nil {
		return types.Result{}, tx.s.failExec
	}
	return tx.Tx.Exec(ctx, query, args...)
}

func (tx *recordingTx) Commit() error {
	tx.s.mu.Lock()
	tx.s.commits++
	tx.s.mu.Unlock()
	return tx.Tx.Commit()
}

func (tx *recordingTx) Rollback() error {
	tx.s.mu.Lock()
	tx.s.rollbacks++
	tx.s.mu.Unlock()
	return tx.Tx.Rollback()
}

// fixedNow is the clock used by test tables.
var fixedNow = time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStore opens a SQLite store in a temp dir with the test schema.
func newTestStore(t *testing.T, opts sqlite.Options) *recordingStore {
	t.Helper()
	ctx := context.Background()
	s, err := sqlite.OpenDataDir(ctx, t.TempDir(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Exec(ctx, testSchema)
	require.NoError(t, err)
	return &recordingStore{Store: s}
}

// newTestTable builds a gateway over store with test defaults filled in.
func newTestTable(t *testing.T, store types.Store, spec types.TableSpec, rt RowType, opts Options) *Table {
	t.Helper()
	if rt.Resource == "" {
		rt.Resource = spec.Name
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	tbl, err := NewTable(context.Background(), store, spec, rt, opts)
	require.NoError(t, err)
	return tbl
}

// countRows returns the number of rows in table.
func countRows(t *testing.T, s *recordingStore, table string) int64 {
	t.Helper()
	rows, err := s.Store.Query(context.Background(), `SELECT COUNT(*) AS n FROM `+table)
	require.NoError(t, err)
	n, _ := rows[0].Get("n")
	return n.(int64)
}

// fakeObserver collects observations.
type fakeObserver struct {
	mu       sync.Mutex
	shapes   []string
	outcomes []string
}

func (o *fakeObserver) ObserveStatement(_, shape string, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.shapes = append(o.shapes, shape)
}

func (o *fakeObserver) ObserveSave(_, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}
