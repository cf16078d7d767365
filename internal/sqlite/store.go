// Package sqlite implements the types.Store adapter for SQLite using the
// pure-Go modernc.org/sqlite driver. SQLite supports RETURNING on INSERT and
// UPDATE; the capability can be switched off to exercise the read-back path
// that older engines need. Named sequences are emulated with a counter table.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/activerow/internal/sqldb"
	"github.com/mesh-intelligence/activerow/pkg/types"
)

const (
	driverName = "sqlite"

	// DBFileName is the database file created inside a data directory.
	DBFileName = "activerow.db"

	sequenceTable = "activerow_sequences"
)

// Compile-time interface checks.
var (
	_ types.Store             = (*Store)(nil)
	_ types.ReturningInserter = (*Store)(nil)
	_ types.ReturningUpdater  = (*Store)(nil)
)

// Options tune the adapter.
type Options struct {
	// DisableReturning makes the store report no RETURNING support, so
	// tables fall back to a plain statement followed by a read-back.
	DisableReturning bool
}

// Store is a SQLite-backed types.Store.
type Store struct {
	*sqldb.DB
	opts Options

	seqMu    sync.Mutex
	seqReady bool
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}

	// last_insert_rowid() is per connection, so keep exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	return &Store{DB: sqldb.New(db, sqldb.PlaceholderQuestion), opts: opts}, nil
}

// OpenDataDir creates dataDir if needed and opens DBFileName inside it.
func OpenDataDir(ctx context.Context, dataDir string, opts Options) (*Store, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return Open(ctx, filepath.Join(dataDir, DBFileName), opts)
}

// QuoteIdentifier quotes each dotted part with double quotes. Without
// always, plain lower-case identifiers are left bare.
func (s *Store) QuoteIdentifier(name string, always bool) string {
	return quoteIdentifier(name, always)
}

func quoteIdentifier(name string, always bool) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if !always && isBareIdentifier(p) {
			continue
		}
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

func isBareIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// SupportsParameterStyle reports true for both styles; the driver binds
// "?" positionally and ":name" through sql.Named.
func (s *Store) SupportsParameterStyle(style types.ParamStyle) bool {
	return style == types.ParamPositional || style == types.ParamNamed
}

// SupportsReturningInsert implements types.ReturningInserter.
func (s *Store) SupportsReturningInsert() bool { return !s.opts.DisableReturning }

// SupportsReturningUpdate implements types.ReturningUpdater.
func (s *Store) SupportsReturningUpdate() bool { return !s.opts.DisableReturning }

// ColumnMetadata reads pragma_table_info. table may be schema-qualified.
func (s *Store) ColumnMetadata(ctx context.Context, table string) ([]types.ColumnInfo, error) {
	schema, name := "main", table
	if i := strings.LastIndex(table, "."); i >= 0 {
		schema, name = table[:i], table[i+1:]
	}

	rows, err := s.Query(ctx,
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?, ?) ORDER BY cid`,
		name, schema)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}

	cols := make([]types.ColumnInfo, 0, len(rows))
	for _, r := range rows {
		colName, _ := r.Get("name")
		colType, _ := r.Get("type")
		notNull, _ := r.Get("notnull")
		dflt, _ := r.Get("dflt_value")
		pk, _ := r.Get("pk")

		info := types.ColumnInfo{
			Name:       asString(colName),
			DataType:   strings.ToLower(asString(colType)),
			Nullable:   asInt(notNull) == 0,
			PrimaryKey: int(asInt(pk)),
		}
		if dflt != nil {
			d := asString(dflt)
			info.Default = &d
		}
		cols = append(cols, info)
	}
	return cols, nil
}

// NextSequenceID increments and returns the named counter.
func (s *Store) NextSequenceID(ctx context.Context, sequence string) (any, error) {
	if err := s.ensureSequenceTable(ctx); err != nil {
		return nil, err
	}

	rows, err := s.Query(ctx, `INSERT INTO `+sequenceTable+` (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value`, sequence)
	if err != nil {
		return nil, fmt.Errorf("advancing sequence %s: %w", sequence, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("advancing sequence %s: no value returned", sequence)
	}
	v, _ := rows[0].Get("value")
	return v, nil
}

// ensureSequenceTable creates the counter table on first use. A failed
// attempt is retried by the next caller.
func (s *Store) ensureSequenceTable(ctx context.Context) error {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	if s.seqReady {
		return nil
	}
	_, err := s.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+sequenceTable+
		` (name TEXT PRIMARY KEY, value INTEGER NOT NULL)`)
	if err != nil {
		return fmt.Errorf("creating sequence table: %w", err)
	}
	s.seqReady = true
	return nil
}

// LastInsertID returns last_insert_rowid() of the store's connection.
func (s *Store) LastInsertID(ctx context.Context, _ string) (any, error) {
	rows, err := s.Query(ctx, `SELECT last_insert_rowid() AS id`)
	if err != nil {
		return nil, fmt.Errorf("reading last insert id: %w", err)
	}
	if len(rows) == 0 {
		return nil, types.ErrNotFound
	}
	v, _ := rows[0].Get("id")
	return v, nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case bool:
		if n {
			return 1
		}
	}
	return 0
}
