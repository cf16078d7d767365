// This file implements the table gateway: metadata loading, row
// construction, and the insert, update and bulk insert statements.
package record

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/mesh-intelligence/activerow/internal/sqlbuild"
	"github.com/mesh-intelligence/activerow/pkg/types"
)

// Statement shapes reported to the Observer.
const (
	ShapeInsert     = "insert"
	ShapeUpdate     = "update"
	ShapeSelect     = "select"
	ShapeBulkInsert = "bulk_insert"
)

// Options tune a Table. Zero values select the defaults.
type Options struct {
	Logger      *slog.Logger
	Now         func() time.Time
	Observer    Observer
	BulkFailure string // types.BulkFailSwallow (default) or types.BulkFailPropagate
}

// Table is the gateway to one database table. It is safe for concurrent
// use; the rows it creates are not.
type Table struct {
	store      types.Store
	spec       types.TableSpec
	name       string
	rowType    RowType
	columns    []types.ColumnInfo
	colIndex   map[string]int
	primaryKey []string

	logger      *slog.Logger
	now         func() time.Time
	observer    Observer
	bulkFailure string
}

// NewTable loads the column metadata of spec's table and returns its
// gateway. The primary key comes from spec, else from the metadata, else
// defaults to "id".
func NewTable(ctx context.Context, store types.Store, spec types.TableSpec, rowType RowType, opts Options) (*Table, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if rowType.Resource == "" {
		return nil, fmt.Errorf("table %s: %w", spec.QualifiedName(), types.ErrMissingResourceName)
	}

	name := spec.QualifiedName()
	cols, err := store.ColumnMetadata(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("loading columns of %s: %w", name, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%s: %w", name, types.ErrTableNotFound)
	}

	t := &Table{
		store:       store,
		spec:        spec,
		name:        name,
		rowType:     rowType,
		columns:     cols,
		colIndex:    make(map[string]int, len(cols)),
		logger:      opts.Logger,
		now:         opts.Now,
		observer:    opts.Observer,
		bulkFailure: opts.BulkFailure,
	}
	for i, c := range cols {
		t.colIndex[c.Name] = i
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.now == nil {
		t.now = func() time.Time { return time.Now().UTC() }
	}
	if t.observer == nil {
		t.observer = nopObserver{}
	}
	if t.bulkFailure == "" {
		t.bulkFailure = types.BulkFailSwallow
	}

	t.primaryKey = resolvePrimaryKey(spec, cols)
	for _, pk := range t.primaryKey {
		if _, ok := t.colIndex[pk]; !ok {
			return nil, fmt.Errorf("%s: primary key column %q: %w", name, pk, types.ErrNoPrimaryKey)
		}
	}
	return t, nil
}

func resolvePrimaryKey(spec types.TableSpec, cols []types.ColumnInfo) []string {
	if len(spec.PrimaryKey) > 0 {
		return append([]string(nil), spec.PrimaryKey...)
	}
	var keyed []types.ColumnInfo
	for _, c := range cols {
		if c.PrimaryKey > 0 {
			keyed = append(keyed, c)
		}
	}
	if len(keyed) == 0 {
		return []string{"id"}
	}
	sort.SliceStable(keyed, func(i, j int) bool { return keyed[i].PrimaryKey < keyed[j].PrimaryKey })
	pk := make([]string, len(keyed))
	for i, c := range keyed {
		pk[i] = c.Name
	}
	return pk
}

// Name returns the schema-qualified table name.
func (t *Table) Name() string { return t.name }

// Spec returns the table's spec.
func (t *Table) Spec() types.TableSpec { return t.spec }

// RowType returns the row type of the table's rows.
func (t *Table) RowType() RowType { return t.rowType }

// PrimaryKey returns the primary key columns.
func (t *Table) PrimaryKey() []string { return append([]string(nil), t.primaryKey...) }

// Columns returns the column names in table order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Name
	}
	return out
}

func (t *Table) hasColumn(name string) bool {
	_, ok := t.colIndex[name]
	return ok
}

func (t *Table) isBoolean(name string) bool {
	i, ok := t.colIndex[name]
	return ok && t.columns[i].IsBoolean()
}

// Create returns a new, unsaved row populated from data. Keys that are not
// columns of the table are ignored.
func (t *Table) Create(data map[string]any) (*Row, error) {
	r := t.blankRow()
	if err := r.SetMap(data); err != nil {
		return nil, err
	}
	return r, nil
}

// Hydrate returns a clean row holding values, as read from the store.
func (t *Table) Hydrate(values *types.Values) *Row {
	r := t.blankRow()
	r.load(values)
	r.reconcile()
	return r
}

// Find reads the row with the given primary key values.
func (t *Table) Find(ctx context.Context, pk ...any) (*Row, error) {
	if len(pk) != len(t.primaryKey) {
		return nil, fmt.Errorf("find in %s: want %d key values, got %d", t.name, len(t.primaryKey), len(pk))
	}
	st := sqlbuild.Select(t.store, t.name, t.identity(pk))
	rows, err := t.query(ctx, t.store, ShapeSelect, st)
	if err != nil {
		return nil, &types.StoreError{Op: "select", Table: t.name, Err: err}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("find in %s: %w", t.name, types.ErrNotFound)
	}
	return t.Hydrate(rows[0]), nil
}

// Insert writes one row and returns the row as stored. Stores without
// RETURNING support get a plain insert followed by a read by primary key.
func (t *Table) Insert(ctx context.Context, values *types.Values) (*types.Values, error) {
	if types.CanReturnInsert(t.store) {
		st := sqlbuild.Insert(t.store, t.name, values.Clone(), true)
		rows, err := t.query(ctx, t.store, ShapeInsert, st)
		if err != nil {
			return nil, &types.StoreError{Op: "insert", Table: t.name, Err: err}
		}
		if len(rows) == 0 {
			return nil, &types.StoreError{Op: "insert", Table: t.name, Err: types.ErrNotFound}
		}
		return rows[0], nil
	}

	st := sqlbuild.Insert(t.store, t.name, values.Clone(), false)
	if _, err := t.exec(ctx, t.store, ShapeInsert, st); err != nil {
		return nil, &types.StoreError{Op: "insert", Table: t.name, Err: err}
	}

	written := values.Clone()
	if len(t.primaryKey) == 1 {
		col := t.primaryKey[0]
		if v, _ := written.Get(col); v == nil {
			id, err := t.store.LastInsertID(ctx, t.spec.SequenceName)
			if err != nil {
				return nil, fmt.Errorf("insert into %s: %w", t.name, err)
			}
			written.Set(col, id)
		}
	}

	key, ok := t.keyValues(written)
	if !ok {
		t.logger.Debug("insert not re-read, primary key unknown", "table", t.name)
		return written, nil
	}
	rows, err := t.query(ctx, t.store, ShapeSelect, sqlbuild.Select(t.store, t.name, t.identity(key)))
	if err != nil {
		return nil, &types.StoreError{Op: "select", Table: t.name, Err: err}
	}
	if len(rows) == 0 {
		return written, nil
	}
	return rows[0], nil
}

// Update writes values to the rows matching where and returns the first
// updated row. An empty predicate matches every row. ErrNotFound is
// returned when nothing matched.
func (t *Table) Update(ctx context.Context, values *types.Values, where types.Predicate) (*types.Values, error) {
	if types.CanReturnUpdate(t.store) {
		st := sqlbuild.Update(t.store, t.name, values.Clone(), where, true)
		rows, err := t.query(ctx, t.store, ShapeUpdate, st)
		if err != nil {
			return nil, &types.StoreError{Op: "update", Table: t.name, Err: err}
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("update %s: %w", t.name, types.ErrNotFound)
		}
		return rows[0], nil
	}

	st := sqlbuild.Update(t.store, t.name, values.Clone(), where, false)
	if _, err := t.exec(ctx, t.store, ShapeUpdate, st); err != nil {
		return nil, &types.StoreError{Op: "update", Table: t.name, Err: err}
	}
	rows, err := t.query(ctx, t.store, ShapeSelect, sqlbuild.Select(t.store, t.name, where))
	if err != nil {
		return nil, &types.StoreError{Op: "select", Table: t.name, Err: err}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("update %s: %w", t.name, types.ErrNotFound)
	}
	return rows[0], nil
}

// BulkInsert writes rows with one statement inside one transaction and
// returns the number of rows written. A single row goes through Insert.
//
// When the statement fails the transaction is rolled back. With the
// swallow strategy the failure is logged and 0, nil is returned; with
// propagate a *types.StoreError is returned. Errors found before anything
// is sent (unknown columns, mismatched rows, no usable parameter style) are
// always returned.
func (t *Table) BulkInsert(ctx context.Context, rows []map[string]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batch := make([]*types.Values, len(rows))
	for i, m := range rows {
		v, err := t.valuesFromMap(m)
		if err != nil {
			return 0, fmt.Errorf("bulk insert into %s: row %d: %w", t.name, i, err)
		}
		batch[i] = v
	}

	if len(batch) == 1 {
		if _, err := t.Insert(ctx, batch[0]); err != nil {
			return t.bulkFailed(err, 1)
		}
		return 1, nil
	}

	st, err := sqlbuild.BatchInsert(t.store, t.store, t.name, batch)
	if err != nil {
		return 0, err
	}

	tx, err := t.store.Begin(ctx)
	if err != nil {
		return t.bulkFailed(err, len(batch))
	}
	if _, err := t.exec(ctx, tx, ShapeBulkInsert, st); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			t.logger.Warn("rollback failed", "table", t.name, "error", rbErr)
		}
		return t.bulkFailed(err, len(batch))
	}
	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return t.bulkFailed(err, len(batch))
	}
	return int64(len(batch)), nil
}

func (t *Table) bulkFailed(err error, n int) (int64, error) {
	storeErr := err
	if _, ok := err.(*types.StoreError); !ok {
		storeErr = &types.StoreError{Op: "bulk insert", Table: t.name, Err: err}
	}
	if t.bulkFailure == types.BulkFailPropagate {
		return 0, storeErr
	}
	t.logger.Warn("bulk insert failed, nothing written", "table", t.name, "rows", n, "error", err)
	return 0, nil
}

// valuesFromMap orders m by table column order. Unknown keys are an error.
func (t *Table) valuesFromMap(m map[string]any) (*types.Values, error) {
	for k := range m {
		if !t.hasColumn(k) {
			return nil, fmt.Errorf("%q: %w", k, types.ErrUnknownColumn)
		}
	}
	v := types.NewValues(len(m))
	for _, c := range t.columns {
		if val, ok := m[c.Name]; ok {
			v.Set(c.Name, val)
		}
	}
	return v, nil
}

// keyValues extracts the primary key values from v.
func (t *Table) keyValues(v *types.Values) ([]any, bool) {
	out := make([]any, len(t.primaryKey))
	for i, col := range t.primaryKey {
		val, ok := v.Get(col)
		if !ok || val == nil {
			return nil, false
		}
		out[i] = val
	}
	return out, true
}

// identity builds `"a" = ? AND "b" = ?` over the primary key.
func (t *Table) identity(key []any) types.Predicate {
	parts := make([]string, len(t.primaryKey))
	for i, col := range t.primaryKey {
		parts[i] = t.store.QuoteIdentifier(col, true) + " = " + sqlbuild.Placeholder
	}
	return types.Where(strings.Join(parts, " AND "), key...)
}

func (t *Table) query(ctx context.Context, ex types.Executor, shape string, st sqlbuild.Statement) ([]*types.Values, error) {
	start := time.Now()
	rows, err := ex.Query(ctx, st.SQL, st.Args...)
	t.observe(shape, st, time.Since(start), err)
	return rows, err
}

func (t *Table) exec(ctx context.Context, ex types.Executor, shape string, st sqlbuild.Statement) (types.Result, error) {
	start := time.Now()
	res, err := ex.Exec(ctx, st.SQL, st.Args...)
	t.observe(shape, st, time.Since(start), err)
	return res, err
}

func (t *Table) observe(shape string, st sqlbuild.Statement, elapsed time.Duration, err error) {
	t.observer.ObserveStatement(t.name, shape, elapsed, err)
	t.logger.Debug("statement",
		"table", t.name,
		"shape", shape,
		"sql", st.SQL,
		"args", len(st.Args),
		"elapsed", elapsed,
		"error", err,
	)
}
