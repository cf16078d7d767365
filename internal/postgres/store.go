// Package postgres implements the types.Store adapter for PostgreSQL through
// the pgx database/sql driver. Statements built with "?" placeholders are
// rewritten to $n before they reach the driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/mesh-intelligence/activerow/internal/sqldb"
	"github.com/mesh-intelligence/activerow/pkg/types"
)

const (
	defaultDriver = "pgx"
	defaultSchema = "public"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Compile-time interface checks.
var (
	_ types.Store             = (*Store)(nil)
	_ types.ReturningInserter = (*Store)(nil)
	_ types.ReturningUpdater  = (*Store)(nil)
)

// Options tune the adapter.
type Options struct {
	// DisableReturning makes the store report no RETURNING support. The
	// pool is then pinned to one connection so lastval() and the read-back
	// see the session that wrote the row.
	DisableReturning bool
}

// Store is a PostgreSQL-backed types.Store.
type Store struct {
	*sqldb.DB
	opts Options
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if opts.DisableReturning {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: sqldb.New(db, sqldb.PlaceholderDollar), opts: opts}, nil
}

// QuoteIdentifier quotes each dotted part. Without always, lower-case
// identifiers are left bare since PostgreSQL folds unquoted names to lower
// case anyway.
func (s *Store) QuoteIdentifier(name string, always bool) string {
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
		case (r >= '0' && r <= '9' || r == '$') && i > 0:
		default:
			return false
		}
	}
	return true
}

// SupportsParameterStyle reports positional only; pgx does not bind
// sql.Named arguments.
func (s *Store) SupportsParameterStyle(style types.ParamStyle) bool {
	return style == types.ParamPositional
}

// SupportsReturningInsert implements types.ReturningInserter.
func (s *Store) SupportsReturningInsert() bool { return !s.opts.DisableReturning }

// SupportsReturningUpdate implements types.ReturningUpdater.
func (s *Store) SupportsReturningUpdate() bool { return !s.opts.DisableReturning }

const columnsQuery = `SELECT c.column_name, c.data_type, c.is_nullable, c.column_default,
       COALESCE(k.ordinal_position, 0) AS pk
  FROM information_schema.columns c
  LEFT JOIN (
        SELECT kcu.column_name, kcu.ordinal_position
          FROM information_schema.table_constraints tc
          JOIN information_schema.key_column_usage kcu
            ON kcu.constraint_name = tc.constraint_name
           AND kcu.table_schema = tc.table_schema
           AND kcu.table_name = tc.table_name
         WHERE tc.constraint_type = 'PRIMARY KEY'
           AND tc.table_schema = ?
           AND tc.table_name = ?
       ) k ON k.column_name = c.column_name
 WHERE c.table_schema = ?
   AND c.table_name = ?
 ORDER BY c.ordinal_position`

// ColumnMetadata reads information_schema. An unqualified table is looked
// up in the public schema.
func (s *Store) ColumnMetadata(ctx context.Context, table string) ([]types.ColumnInfo, error) {
	schema, name := defaultSchema, table
	if i := strings.LastIndex(table, "."); i >= 0 {
		schema, name = table[:i], table[i+1:]
	}

	rows, err := s.Query(ctx, columnsQuery, schema, name, schema, name)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}

	cols := make([]types.ColumnInfo, 0, len(rows))
	for _, r := range rows {
		colName, _ := r.Get("column_name")
		dataType, _ := r.Get("data_type")
		nullable, _ := r.Get("is_nullable")
		dflt, _ := r.Get("column_default")
		pk, _ := r.Get("pk")

		info := types.ColumnInfo{
			Name:       fmt.Sprint(colName),
			DataType:   strings.ToLower(fmt.Sprint(dataType)),
			Nullable:   fmt.Sprint(nullable) == "YES",
			PrimaryKey: toInt(pk),
		}
		if dflt != nil {
			d := fmt.Sprint(dflt)
			info.Default = &d
		}
		cols = append(cols, info)
	}
	return cols, nil
}

// NextSequenceID calls nextval on the named sequence.
func (s *Store) NextSequenceID(ctx context.Context, sequence string) (any, error) {
	return s.scalar(ctx, "advancing sequence "+sequence, `SELECT nextval(?) AS id`, sequence)
}

// LastInsertID returns currval of sequence, or lastval() when sequence is
// empty.
func (s *Store) LastInsertID(ctx context.Context, sequence string) (any, error) {
	if sequence == "" {
		return s.scalar(ctx, "reading lastval", `SELECT lastval() AS id`)
	}
	return s.scalar(ctx, "reading currval of "+sequence, `SELECT currval(?) AS id`, sequence)
}

func (s *Store) scalar(ctx context.Context, what, query string, args ...any) (any, error) {
	rows, err := s.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", what, types.ErrNotFound)
	}
	v, _ := rows[0].Get("id")
	return v, nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	case int:
		return n
	}
	return 0
}
