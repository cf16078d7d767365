package types

import "context"

// ParamStyle identifies how a driver binds statement parameters.
type ParamStyle int

const (
	// ParamPositional binds "?" placeholders in order.
	ParamPositional ParamStyle = iota
	// ParamNamed binds ":name" placeholders by name.
	ParamNamed
)

func (s ParamStyle) String() string {
	switch s {
	case ParamPositional:
		return "positional"
	case ParamNamed:
		return "named"
	default:
		return "unknown"
	}
}

// Result reports the effect of a statement that returns no rows.
type Result struct {
	RowsAffected int64
}

// ColumnInfo describes one table column as reported by the store.
type ColumnInfo struct {
	Name       string
	DataType   string // lower-cased driver type name, e.g. "integer", "boolean"
	Nullable   bool
	Default    *string
	PrimaryKey int // 1-based position in the primary key; 0 when not part of it
}

// IsBoolean reports whether the column stores booleans.
func (c ColumnInfo) IsBoolean() bool {
	switch c.DataType {
	case "bool", "boolean":
		return true
	}
	return false
}

// Quoter quotes identifiers for the store's dialect.
type Quoter interface {
	// QuoteIdentifier quotes name. A dotted name (schema.table) has each part
	// quoted. When always is false the dialect may leave safe names bare.
	QuoteIdentifier(name string, always bool) string
}

// Executor runs statements. Statements use "?" placeholders (or ":name"
// with sql.Named arguments); adapters rewrite them for their driver.
type Executor interface {
	// Query runs a statement that returns rows and returns every row as
	// ordered column/value pairs.
	Query(ctx context.Context, query string, args ...any) ([]*Values, error)

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...any) (Result, error)
}

// Tx is a transaction opened by Store.Begin.
type Tx interface {
	Executor
	Commit() error
	Rollback() error
}

// Store is the database collaborator consumed by tables and rows.
type Store interface {
	Quoter
	Executor

	// Begin starts a transaction.
	Begin(ctx context.Context) (Tx, error)

	// NextSequenceID fetches the next value of the named sequence.
	// Returns ErrSequenceUnsupported when the store has no sequences.
	NextSequenceID(ctx context.Context, sequence string) (any, error)

	// LastInsertID returns the identity generated by the most recent insert
	// on this store. sequence names the backing sequence where the dialect
	// needs it and may be empty.
	LastInsertID(ctx context.Context, sequence string) (any, error)

	// SupportsParameterStyle reports whether the driver can bind style.
	SupportsParameterStyle(style ParamStyle) bool

	// ColumnMetadata lists the columns of table in ordinal order. An unknown
	// table yields an empty slice.
	ColumnMetadata(ctx context.Context, table string) ([]ColumnInfo, error)

	// Close releases the underlying connection.
	Close() error
}

// ReturningInserter is implemented by stores whose INSERT can return the
// written row in the same round-trip.
type ReturningInserter interface {
	SupportsReturningInsert() bool
}

// ReturningUpdater is implemented by stores whose UPDATE can return the
// written row in the same round-trip.
type ReturningUpdater interface {
	SupportsReturningUpdate() bool
}

// CanReturnInsert reports whether s supports RETURNING on insert.
func CanReturnInsert(s Store) bool {
	r, ok := s.(ReturningInserter)
	return ok && r.SupportsReturningInsert()
}

// CanReturnUpdate reports whether s supports RETURNING on update.
func CanReturnUpdate(s Store) bool {
	r, ok := s.(ReturningUpdater)
	return ok && r.SupportsReturningUpdate()
}
