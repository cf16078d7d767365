package record

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/activerow/internal/sqlite"
	"github.com/mesh-intelligence/activerow/pkg/types"
)

func itemsSpec() types.TableSpec { return types.TableSpec{Name: "items"} }

// seedItem inserts one item directly and returns it hydrated.
func seedItem(t *testing.T, tbl *Table, store *recordingStore) *Row {
	t.Helper()
	ctx := context.Background()
	_, err := store.Store.Exec(ctx, `INSERT INTO items (id, name, active, price) VALUES (1, 'widget', 1, 2.5)`)
	require.NoError(t, err)
	row, err := tbl.Find(ctx, int64(1))
	require.NoError(t, err)
	store.reset()
	return row
}

func TestRowDirtyTracking(t *testing.T) {
	store := newTestStore(t, sqlite.Options{})
	tbl := newTestTable(t, store, itemsSpec(), RowType{}, Options{})
	row := seedItem(t, tbl, store)

	tests := []struct {
		name  string
		col   string
		value any
		dirty bool
	}{
		{name: "same text", col: "name", value: "widget", dirty: false},
		{name: "different text", col: "name", value: "gadget", dirty: true},
		{name: "back to original", col: "name", value: "widget", dirty: false},
		{name: "int vs int64", col: "id", value: 1, dirty: false},
		{name: "float equal", col: "price", value: 2.5, dirty: false},
		{name: "bool matches stored 1", col: "active", value: true, dirty: false},
		{name: "bool differs", col: "active", value: false, dirty: true},
		{name: "nil differs", col: "price", value: nil, dirty: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, row.Reset())
			require.NoError(t, row.Set(tt.col, tt.value))
			assert.Equal(t, tt.dirty, row.IsDirty())
			assert.Equal(t, tt.dirty, contains(row.DirtyColumns(), tt.col))
		})
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestNewRowDirtyOnlyForNonNil(t *testing.T) {
	store := newTestStore(t, sqlite.Options{})
	tbl := newTestTable(t, store, itemsSpec(), RowType{}, Options{})

	row, err := tbl.Create(map[string]any{"name": "a", "price": nil, "unknown": 1})
	require.NoError(t, err)
	assert.True(t, row.IsNew())
	assert.Equal(t, []string{"name"}, row.DirtyColumns())

	err = row.Set("nope", 1)
	assert.ErrorIs(t, err, types.ErrUnknownColumn)
}

func TestRowReset(t *testing.T) {
	store := newTestStore(t, sqlite.Options{})
	tbl := newTestTable(t, store, itemsSpec(), RowType{}, Options{})
	row := seedItem(t, tbl, store)

	require.NoError(t, row.Set("name", "changed"))
	require.NoError(t, row.Set("price", 9.0))
	require.NoError(t, row.Reset("name"))

	name, _ := row.Get("name")
	assert.Equal(t, "widget", name)
	assert.Equal(t, []string{"price"}, row.DirtyColumns())

	require.NoError(t, row.Reset())
	assert.False(t, row.IsDirty())
	assert.ErrorIs(t, row.Reset("nope"), types.ErrUnknownColumn)

	require.NoError(t, row.Set("id", 1))
	require.NoError(t, row.Reset("id"))
	id, _ := row.Get("id")
	assert.Equal(t, 1, id, "resetting a clean column leaves its value alone")

	fresh, err := tbl.Create(map[string]any{"name": "x"})
	require.NoError(t, err)
	require.NoError(t, fresh.Reset("name"))
	name, _ = fresh.Get("name")
	assert.Nil(t, name)
	assert.False(t, fresh.IsDirty())
}

func TestSaveInsertStatement(t *testing.T) {
	store := newTestStore(t, sqlite.Options{})
	tbl := newTestTable(t, store, itemsSpec(), RowType{}, Options{})

	row, err := tbl.Create(map[string]any{"name": "a", "active": true})
	require.NoError(t, err)

	id, err := row.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	stmts := store.statements()
	require.Len(t, stmts, 1)
	assert.Equal(t, `INSERT INTO "items" ("name","active") VALUES (?,TRUE) RETURNING *`, stmts[0].SQL)
	assert.Equal(t, []any{"a"}, stmts[0].Args)
}

func TestSaveUpdateStatement(t *testing.T) {
	store := newTestStore(t, sqlite.Options{})
	tbl := newTestTable(t, store, itemsSpec(), RowType{}, Options{})
	row := seedItem(t, tbl, store)

	require.NoError(t, row.Set("price", 9.99))
	id, err := row.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	stmts := store.statements()
	require.Len(t, stmts, 1)
	assert.Equal(t, `UPDATE "items" SET "price"=? WHERE "id" = ? RETURNING *`, stmts[0].SQL)
	assert.Equal(t, []any{9.99, int64(1)}, stmts[0].Args)

	price, _ := row.Get("price")
	assert.Equal(t, 9.99, price)
	assert.False(t, row.IsDirty())
}

func TestSaveMissingRequiredFields(t *testing.T) {
	store := newTestStore(t, sqlite.Options{})
	tbl := newTestTable(t, store, itemsSpec(), RowType{Resource: "item", Required: []string{"name", "active"}}, Options{})

	row, err := tbl.Create(map[string]any{"active": false})
	require.NoError(t, err)

	_, err = row.Save(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrValidationFailed)
	assert.ErrorIs(t, err, types.ErrMissingField)

	var vf *types.ValidationFailedError
	require.True(t, errors.As(err, &vf))
	assert.Equal(t, types.StatusUnprocessable, vf.StatusCode())
	require.Len(t, vf.Errors, 2)
	assert.Equal(t, types.ValidationError{Code: types.CodeMissingField, Field: "name", Message: "field is mandatory", Resource: "item"}, vf.Errors[0])
	assert.Equal(t, "active", vf.Errors[1].Field)

	assert.Empty(t, store.statements(), "no SQL on validation failure")
	assert.True(t, row.IsNew())
	assert.Len(t, row.Errors(), 2)

	require.NoError(t, row.Set("name", "n"))
	require.NoError(t, row.Set("active", true))
	_, err = row.Save(context.Background())
	require.NoError(t, err)
	assert.Empty(t, row.Errors(), "errors belong to the last cycle only")
}

func TestSaveRoundTripAndIdempotence(t *testing.T) {
	store := newTestStore(t, sqlite.Options{})
	tbl := newTestTable(t, store, itemsSpec(), RowType{}, Options{})
	ctx := context.Background()

	row, err := tbl.Create(map[string]any{"name": "a", "price": 1.5})
	require.NoError(t, err)
	id, err := row.Save(ctx)
	require.NoError(t, err)

	assert.False(t, row.IsDirty())
	assert.False(t, row.IsNew())
	gotID, _ := row.Get("id")
	assert.Equal(t, id, gotID)

	store.reset()
	again, err := row.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Empty(t, store.statements(), "second save sends nothing")

	found, err := tbl.Find(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, row.ToMap(), found.ToMap())
}

func TestSaveReadOnly(t *testing.T) {
	store := newTestStore(t, sqlite.Options{})
	tbl := newTestTable(t, store, itemsSpec(), RowType{Resource: "item"}, Options{})
	row := seedItem(t, tbl, store)
	ctx := context.Background()

	row.SetReadOnly(true)
	assert.True(t, row.ReadOnly())

	err := row.Set("name", "changed")
	assert.ErrorIs(t, err, types.ErrReadOnly)
	name, _ := row.Get("name")
	assert.Equal(t, "widget", name, "value not applied")

	_, err = row.Save(ctx)
	assert.ErrorIs(t, err, types.ErrValidationFailed)
	assert.ErrorIs(t, err, types.ErrReadOnly)
	require.Len(t, row.Errors(), 2, "resource-level error collapses with its duplicate")

	_, err = row.Save(ctx)
	assert.ErrorIs(t, err, types.ErrReadOnly, "still read-only on the next cycle")
	assert.Len(t, row.Errors(), 1)

	row.SetReadOnly(false)
	_, err = row.Save(ctx)
	require.NoError(t, err)
	assert.Empty(t, store.statements())
}

func TestSaveHooks(t *testing.T) {
	store := newTestStore(t, sqlite.Options{})
	ctx := context.Background()

	var order []string
	var dirtyInPostUpdate bool
	note := func(name string) HookFunc {
		return func(context.Context, *Row, *ErrorSet) error {
			order = append(order, name)
			return nil
		}
	}
	rt := RowType{
		Resource: "item",
		Hooks: Hooks{
			PreSave: func(_ context.Context, r *Row, errs *ErrorSet) error {
				order = append(order, "pre-save")
				if p, _ := r.Get("price"); p != nil && p.(float64) < 0 {
					errs.Add(types.CodeInvalid, "price", "must not be negative")
				}
				return nil
			},
			PreInsert:  note("pre-insert"),
			PostInsert: note("post-insert"),
			PreUpdate:  note("pre-update"),
			PostUpdate: func(_ context.Context, r *Row, _ *ErrorSet) error {
				order = append(order, "post-update")
				dirtyInPostUpdate = r.IsDirty()
				return nil
			},
			PostSave: note("post-save"),
		},
	}
	tbl := newTestTable(t, store, itemsSpec(), rt, Options{})

	row, err := tbl.Create(map[string]any{"name": "a", "price": -1.0})
	require.NoError(t, err)
	_, err = row.Save(ctx)
	assert.ErrorIs(t, err, types.ErrInvalidFormat)
	assert.Empty(t, store.statements())
	assert.Equal(t, []string{"pre-save"}, order)

	order = nil
	require.NoError(t, row.Set("price", 1.0))
	_, err = row.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pre-save", "pre-insert", "post-insert", "post-save"}, order)

	order = nil
	require.NoError(t, row.Set("name", "b"))
	_, err = row.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pre-save", "pre-update", "post-update", "post-save"}, order)
	assert.True(t, dirtyInPostUpdate)
	assert.False(t, row.IsDirty())
}

func TestSaveHookErrorAborts(t *testing.T) {
	store := newTestStore(t, sqlite.Options{})
	boom := errors.New("boom")
	rt := RowType{Hooks: Hooks{
		PreInsert: func(context.Context, *Row, *ErrorSet) error { return boom },
	}}
	tbl := newTestTable(t, store, itemsSpec(), rt, Options{})

	row, err := tbl.Create(map[string]any{"name": "a"})
	require.NoError(t, err)
	_, err = row.Save(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "pre-insert hook")
	assert.True(t, row.IsNew())
	assert.Empty(t, store.statements())
}

// A save started from a hook gets its own ErrorSet instead of sharing one
// process-wide aggregator, so the outer row never sees the inner errors.
func TestNestedSaveKeepsErrorsApart(t *testing.T) {
	store := newTestStore(t, sqlite.Options{})
	items := newTestTable(t, store, itemsSpec(), RowType{Resource: "item", Required: []string{"name"}}, Options{})

	var inner *Row
	var innerErr error
	notes := newTestTable(t, store, types.TableSpec{Name: "notes"}, RowType{
		Resource: "note",
		Hooks: Hooks{PostInsert: func(ctx context.Context, _ *Row, _ *ErrorSet) error {
			inner, _ = items.Create(nil)
			_, innerErr = inner.Save(ctx)
			return nil
		}},
	}, Options{})

	outer, err := notes.Create(map[string]any{"body": "hello"})
	require.NoError(t, err)
	_, err = outer.Save(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, innerErr, types.ErrMissingField)
	require.Len(t, inner.Errors(), 1)
	assert.Equal(t, "item", inner.Errors()[0].Resource)
	assert.Empty(t, outer.Errors())
}

func TestTouchColumn(t *testing.T) {
	store := newTestStore(t, sqlite.Options{})
	tbl := newTestTable(t, store, types.TableSpec{Name: "notes"}, RowType{}, Options{})
	ctx := context.Background()

	row, err := tbl.Create(map[string]any{"body": "hi"})
	require.NoError(t, err)
	_, err = row.Save(ctx)
	require.NoError(t, err)

	stamp, _ := row.Get("updated_at")
	assert.Equal(t, "2026-10-19T12:30:00", stamp)
	assert.Equal(t, `INSERT INTO "notes" ("body","updated_at") VALUES (?,'2026-10-19T12:30:00') RETURNING *`,
		store.statements()[0].SQL)

	store.reset()
	_, err = row.Save(ctx)
	require.NoError(t, err)
	assert.Empty(t, store.statements(), "no stamp without other changes")

	disabled := newTestTable(t, store, types.TableSpec{Name: "notes"}, RowType{TouchColumn: NoTouchColumn}, Options{})
	plain, err := disabled.Create(map[string]any{"body": "x"})
	require.NoError(t, err)
	_, err = plain.Save(ctx)
	require.NoError(t, err)
	stamp, _ = plain.Get("updated_at")
	assert.Nil(t, stamp)
}

func TestAccessorsAndJSON(t *testing.T) {
	store := newTestStore(t, sqlite.Options{})
	rt := RowType{
		Getters: map[string]func(any) any{
			"name": func(v any) any {
				if s, ok := v.(string); ok {
					return strings.ToUpper(s)
				}
				return v
			},
		},
		Setters: map[string]func(any) any{
			"name": func(v any) any {
				if s, ok := v.(string); ok {
					return strings.TrimSpace(s)
				}
				return v
			},
		},
	}
	tbl := newTestTable(t, store, itemsSpec(), rt, Options{})

	row, err := tbl.Create(map[string]any{"name": "  widget ", "active": true})
	require.NoError(t, err)
	_, err = row.Save(context.Background())
	require.NoError(t, err)

	raw, _ := row.Values().Get("name")
	assert.Equal(t, "widget", raw)
	name, _ := row.Get("name")
	assert.Equal(t, "WIDGET", name)
	active, _ := row.Get("active")
	assert.Equal(t, true, active)

	data, err := row.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"WIDGET","active":true,"price":null}`, string(data))
	assert.True(t, strings.HasPrefix(string(data), `{"id":1,"name"`), "column order kept")
}

func TestCompositePrimaryKey(t *testing.T) {
	store := newTestStore(t, sqlite.Options{})
	tbl := newTestTable(t, store, types.TableSpec{Name: "memberships"}, RowType{}, Options{})
	ctx := context.Background()
	assert.Equal(t, []string{"user_id", "group_id"}, tbl.PrimaryKey())

	row, err := tbl.Create(map[string]any{"user_id": 7, "group_id": 3, "role": "member"})
	require.NoError(t, err)
	pk, err := row.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"user_id": int64(7), "group_id": int64(3)}, pk)

	store.reset()
	require.NoError(t, row.Set("role", "owner"))
	_, err = row.Save(ctx)
	require.NoError(t, err)
	stmts := store.statements()
	require.Len(t, stmts, 1)
	assert.Equal(t, `UPDATE "memberships" SET "role"=? WHERE "user_id" = ? AND "group_id" = ? RETURNING *`, stmts[0].SQL)
	assert.Equal(t, []any{"owner", int64(7), int64(3)}, stmts[0].Args)
}

func TestSetEqualUnsignedValueStaysClean(t *testing.T) {
	store := newTestStore(t, sqlite.Options{})
	tbl := newTestTable(t, store, itemsSpec(), RowType{}, Options{})
	row := seedItem(t, tbl, store)

	require.NoError(t, row.Set("id", uint(1)))
	assert.False(t, row.IsDirty())

	_, err := row.Save(context.Background())
	require.NoError(t, err)
	assert.Empty(t, store.statements())
}

func TestEqualValues(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{name: "nils", a: nil, b: nil, want: true},
		{name: "nil vs zero", a: nil, b: 0, want: false},
		{name: "int kinds", a: int32(4), b: int64(4), want: true},
		{name: "int vs float", a: 2, b: 2.0, want: true},
		{name: "floats differ", a: 2.5, b: 2.25, want: false},
		{name: "same instant other zone", a: ts, b: ts.In(time.FixedZone("X", 3600)), want: true},
		{name: "bytes vs string", a: []byte("ab"), b: "ab", want: true},
		{name: "string vs int", a: "1", b: 1, want: false},
		{name: "unsigned vs signed", a: uint64(1), b: int64(1), want: true},
		{name: "uint vs int", a: uint(7), b: 7, want: true},
		{name: "uintptr vs int32", a: uintptr(3), b: int32(3), want: true},
		{name: "large unsigned equal", a: uint64(math.MaxUint64), b: uint(math.MaxUint64), want: true},
		{name: "large unsigned vs negative", a: uint64(math.MaxUint64), b: int64(-1), want: false},
		{name: "large unsigned vs max int", a: uint64(math.MaxInt64) + 1, b: int64(math.MaxInt64), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, equalValues(tt.a, tt.b))
		})
	}
}

func TestIsEmpty(t *testing.T) {
	for _, v := range []any{nil, false, 0, int64(0), uint(0), uint64(0), uintptr(0), 0.0, "", []byte{}, []string{}, map[string]any{}} {
		assert.True(t, isEmpty(v), "%#v", v)
	}
	for _, v := range []any{true, 1, uint(1), uint64(math.MaxUint64), -1.5, "x", []int{1}, time.Now()} {
		assert.False(t, isEmpty(v), "%#v", v)
	}
}
