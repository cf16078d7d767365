// This file implements the row state machine: dirty tracking, the save
// lifecycle and the hooks around it.
package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/activerow/pkg/types"
)

const readOnlyMessage = "record cannot be changed"

// Row is one record of a table. A row with no clean snapshot has never been
// persisted and is saved with an insert; otherwise only its dirty columns
// are written with an update. A Row is not safe for concurrent use.
type Row struct {
	table    *Table
	columns  *types.Values
	clean    *types.Values
	dirty    map[string]struct{}
	readOnly bool

	// pending holds errors raised outside a save; they seed the next cycle.
	pending []types.ValidationError
	// errs is the error list of the last save cycle.
	errs []types.ValidationError
}

func (t *Table) blankRow() *Row {
	cols := types.NewValues(len(t.columns))
	for _, c := range t.columns {
		cols.Set(c.Name, nil)
	}
	return &Row{
		table:   t,
		columns: cols,
		clean:   types.NewValues(0),
		dirty:   make(map[string]struct{}),
	}
}

// Table returns the gateway the row belongs to.
func (r *Row) Table() *Table { return r.table }

// Resource returns the resource name used in error reports.
func (r *Row) Resource() string { return r.table.rowType.Resource }

// Get returns the value of column. A getter registered for the column
// transforms the value; boolean columns without a getter read as bool.
func (r *Row) Get(column string) (any, bool) {
	v, ok := r.columns.Get(column)
	if !ok {
		return nil, false
	}
	if g, ok := r.table.rowType.Getters[column]; ok {
		return g(v), true
	}
	if v != nil && r.table.isBoolean(column) {
		if b, ok := toBool(v); ok {
			return b, true
		}
	}
	return v, true
}

// Set assigns value to column and updates the dirty set. Setting a column
// the row does not have fails with ErrUnknownColumn. On a read-only row the
// value is not applied; a read_only error is recorded for the next save and
// returned.
func (r *Row) Set(column string, value any) error {
	if !r.columns.Has(column) {
		return fmt.Errorf("%s.%s: %w", r.Resource(), column, types.ErrUnknownColumn)
	}
	if r.readOnly {
		ve := types.ValidationError{
			Code:     types.CodeReadOnly,
			Field:    column,
			Message:  readOnlyMessage,
			Resource: r.Resource(),
		}
		r.pending = append(r.pending, ve)
		return ve
	}
	if s, ok := r.table.rowType.Setters[column]; ok {
		value = s(value)
	}
	r.columns.Set(column, value)
	r.markDirty(column)
	return nil
}

// SetMap sets every key of data that names a column, in table column order.
// Other keys are ignored.
func (r *Row) SetMap(data map[string]any) error {
	var errs []error
	for _, col := range r.columns.Keys() {
		v, ok := data[col]
		if !ok {
			continue
		}
		if err := r.Set(col, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ToMap returns the row's values as read through Get.
func (r *Row) ToMap() map[string]any {
	out := make(map[string]any, r.columns.Len())
	for _, col := range r.columns.Keys() {
		out[col], _ = r.Get(col)
	}
	return out
}

// ToJSON encodes the row as a JSON object in column order.
func (r *Row) ToJSON() ([]byte, error) {
	v := types.NewValues(r.columns.Len())
	for _, col := range r.columns.Keys() {
		val, _ := r.Get(col)
		v.Set(col, val)
	}
	return json.Marshal(v)
}

// Values returns a copy of the raw column values.
func (r *Row) Values() *types.Values { return r.columns.Clone() }

// IsNew reports whether the row has never been persisted.
func (r *Row) IsNew() bool { return r.clean.Len() == 0 }

// IsDirty reports whether any column differs from its persisted value.
func (r *Row) IsDirty() bool { return len(r.dirty) > 0 }

// DirtyColumns lists the dirty columns in table column order.
func (r *Row) DirtyColumns() []string {
	var out []string
	for _, col := range r.columns.Keys() {
		if _, ok := r.dirty[col]; ok {
			out = append(out, col)
		}
	}
	return out
}

// Errors returns the errors of the last save followed by those recorded
// since.
func (r *Row) Errors() []types.ValidationError {
	out := make([]types.ValidationError, 0, len(r.errs)+len(r.pending))
	out = append(out, r.errs...)
	return append(out, r.pending...)
}

// Reset restores the given columns, or all columns when none are given, to
// their persisted values. Columns that are not dirty are left as they are.
// On a new row the reset columns are cleared.
func (r *Row) Reset(columns ...string) error {
	if len(columns) == 0 {
		columns = r.columns.Keys()
	}
	for _, col := range columns {
		if !r.columns.Has(col) {
			return fmt.Errorf("%s.%s: %w", r.Resource(), col, types.ErrUnknownColumn)
		}
	}
	for _, col := range columns {
		if _, dirty := r.dirty[col]; !dirty {
			continue
		}
		v, _ := r.clean.Get(col)
		r.columns.Set(col, v)
		delete(r.dirty, col)
	}
	return nil
}

// SetReadOnly marks the row read-only. A read-only row rejects Set and
// fails to save with a read_only error.
func (r *Row) SetReadOnly(readOnly bool) {
	r.readOnly = readOnly
	if readOnly {
		r.pending = append(r.pending, r.readOnlyError())
		return
	}
	kept := r.pending[:0]
	for _, e := range r.pending {
		if e.Code != types.CodeReadOnly {
			kept = append(kept, e)
		}
	}
	r.pending = kept
}

// ReadOnly reports whether the row is read-only.
func (r *Row) ReadOnly() bool { return r.readOnly }

func (r *Row) readOnlyError() types.ValidationError {
	return types.ValidationError{Code: types.CodeReadOnly, Message: readOnlyMessage, Resource: r.Resource()}
}

// PrimaryKey returns the primary key value, or a column to value map when
// the key spans several columns.
func (r *Row) PrimaryKey() any {
	pk := r.table.primaryKey
	if len(pk) == 1 {
		v, _ := r.columns.Get(pk[0])
		return v
	}
	out := make(map[string]any, len(pk))
	for _, col := range pk {
		out[col], _ = r.columns.Get(col)
	}
	return out
}

// Save validates the row and writes it: an insert for a new row, an update
// of the dirty columns otherwise. A row with nothing to write issues no
// statement. It returns the primary key.
//
// Validation problems (required fields, read-only state, errors pushed by
// hooks) return a *types.ValidationFailedError before any statement runs.
func (r *Row) Save(ctx context.Context) (any, error) {
	t := r.table
	resource := r.Resource()

	errs := newErrorSet(resource)
	for _, e := range r.pending {
		errs.Push(e)
	}
	r.pending = nil
	defer func() { r.errs = errs.Errors() }()

	if r.readOnly {
		errs.Push(r.readOnlyError())
	}
	for _, field := range t.rowType.Required {
		if v, _ := r.columns.Get(field); isEmpty(v) {
			errs.Add(types.CodeMissingField, field, types.ErrMissingField.Error())
		}
	}
	if err := r.runHook(ctx, "pre-save", t.rowType.Hooks.PreSave, errs); err != nil {
		t.observer.ObserveSave(resource, OutcomeFailed)
		return nil, err
	}
	if errs.Len() > 0 {
		t.observer.ObserveSave(resource, OutcomeInvalid)
		return nil, errs.failure()
	}

	r.touch()

	var (
		outcome string
		err     error
	)
	if r.IsNew() {
		outcome = OutcomeInserted
		err = r.insert(ctx, errs)
	} else {
		outcome, err = r.update(ctx, errs)
	}
	if err != nil {
		if errors.Is(err, types.ErrValidationFailed) {
			t.observer.ObserveSave(resource, OutcomeInvalid)
		} else {
			t.observer.ObserveSave(resource, OutcomeFailed)
		}
		return nil, err
	}

	if err := r.runHook(ctx, "post-save", t.rowType.Hooks.PostSave, errs); err != nil {
		t.observer.ObserveSave(resource, OutcomeFailed)
		return nil, err
	}
	t.observer.ObserveSave(resource, outcome)
	t.logger.Debug("row saved", "resource", resource, "outcome", outcome, "key", r.PrimaryKey())
	return r.PrimaryKey(), nil
}

func (r *Row) insert(ctx context.Context, errs *ErrorSet) error {
	t := r.table
	if err := r.runHook(ctx, "pre-insert", t.rowType.Hooks.PreInsert, errs); err != nil {
		return err
	}
	if errs.Len() > 0 {
		return errs.failure()
	}

	data := r.changed()
	if err := r.assignKey(ctx, data); err != nil {
		return err
	}
	image, err := t.Insert(ctx, data)
	if err != nil {
		return err
	}
	r.load(image)

	if err := r.runHook(ctx, "post-insert", t.rowType.Hooks.PostInsert, errs); err != nil {
		return err
	}
	r.reconcile()
	return nil
}

func (r *Row) update(ctx context.Context, errs *ErrorSet) (string, error) {
	t := r.table
	if err := r.runHook(ctx, "pre-update", t.rowType.Hooks.PreUpdate, errs); err != nil {
		return "", err
	}
	if errs.Len() > 0 {
		return "", errs.failure()
	}
	if !r.IsDirty() {
		return OutcomeUnchanged, nil
	}

	key, ok := t.keyValues(r.clean)
	if !ok {
		return "", fmt.Errorf("update %s: %w", t.name, types.ErrNoPrimaryKey)
	}
	image, err := t.Update(ctx, r.changed(), t.identity(key))
	if err != nil {
		return "", err
	}

	if err := r.runHook(ctx, "post-update", t.rowType.Hooks.PostUpdate, errs); err != nil {
		return "", err
	}
	r.load(image)
	r.reconcile()
	return OutcomeUpdated, nil
}

// changed returns the dirty columns and their values in column order.
func (r *Row) changed() *types.Values {
	out := types.NewValues(len(r.dirty))
	for _, col := range r.DirtyColumns() {
		v, _ := r.columns.Get(col)
		out.Set(col, v)
	}
	return out
}

// assignKey fills in the primary key of a new single-key row according to
// the table's sequence strategy. An empty key (nil, zero, "") gets a
// sequence or UUID value, or is left out for the store to generate. A
// non-empty key the caller set is kept.
func (r *Row) assignKey(ctx context.Context, data *types.Values) error {
	t := r.table
	if len(t.primaryKey) != 1 {
		return nil
	}
	col := t.primaryKey[0]
	v, present := data.Get(col)
	if present && !isEmpty(v) {
		return nil
	}

	switch t.spec.Sequence {
	case types.SequenceNamed:
		id, err := t.store.NextSequenceID(ctx, t.spec.SequenceName)
		if err != nil {
			return fmt.Errorf("insert into %s: %w", t.name, err)
		}
		data.Set(col, id)
	case types.SequenceUUID:
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("insert into %s: generating key: %w", t.name, err)
		}
		data.Set(col, id.String())
	default:
		data.Delete(col)
	}
	return nil
}

// touch stamps the touch column when the save will write something besides
// the stamp itself.
func (r *Row) touch() {
	col := r.table.rowType.touchColumn()
	if col == "" || !r.columns.Has(col) {
		return
	}
	others := len(r.dirty)
	if _, ok := r.dirty[col]; ok {
		others--
	}
	if !r.IsNew() && others == 0 {
		return
	}
	r.columns.Set(col, r.table.now())
	r.markDirty(col)
}

func (r *Row) runHook(ctx context.Context, name string, hook HookFunc, errs *ErrorSet) error {
	if hook == nil {
		return nil
	}
	if err := hook(ctx, r, errs); err != nil {
		return fmt.Errorf("%s hook of %s: %w", name, r.Resource(), err)
	}
	return nil
}

// load replaces the row's values with a store image, keeping column order.
func (r *Row) load(image *types.Values) {
	if image == nil {
		return
	}
	for _, col := range image.Keys() {
		v, _ := image.Get(col)
		r.columns.Set(col, v)
	}
}

// reconcile makes the current values the persisted snapshot.
func (r *Row) reconcile() {
	r.clean = r.columns.Clone()
	r.dirty = make(map[string]struct{})
}

func (r *Row) markDirty(col string) {
	cur, _ := r.columns.Get(col)
	if r.IsNew() {
		if cur != nil {
			r.dirty[col] = struct{}{}
		} else {
			delete(r.dirty, col)
		}
		return
	}
	old, ok := r.clean.Get(col)
	if ok && r.sameValue(col, cur, old) {
		delete(r.dirty, col)
		return
	}
	r.dirty[col] = struct{}{}
}

func (r *Row) sameValue(col string, a, b any) bool {
	if a != nil && b != nil && r.table.isBoolean(col) {
		ab, aok := toBool(a)
		bb, bok := toBool(b)
		if aok && bok {
			return ab == bb
		}
	}
	return equalValues(a, b)
}

// equalValues compares two column values. Integers compare as int64, other
// numbers as float64, times with Equal, and byte slices as strings.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ai, ok := asInt64(a); ok {
		if bi, ok := asInt64(b); ok {
			return ai == bi
		}
	}
	au, aBig := bigUint64(a)
	bu, bBig := bigUint64(b)
	if aBig || bBig {
		return aBig && bBig && au == bu
	}
	if af, ok := asFloat64(a); ok {
		if bf, ok := asFloat64(b); ok {
			return af == bf
		}
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	if ab, ok := a.([]byte); ok {
		a = string(ab)
	}
	if bb, ok := b.([]byte); ok {
		b = string(bb)
	}
	return reflect.DeepEqual(a, b)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint, uint64, uintptr:
		if u, ok := unsigned(n); ok && u <= math.MaxInt64 {
			return int64(u), true
		}
	}
	return 0, false
}

// bigUint64 reports unsigned values above MaxInt64, which asInt64 cannot
// represent.
func bigUint64(v any) (uint64, bool) {
	u, ok := unsigned(v)
	if !ok || u <= math.MaxInt64 {
		return 0, false
	}
	return u, true
}

func unsigned(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint:
		return uint64(n), true
	case uint64:
		return n, true
	case uintptr:
		return uint64(n), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	if i, ok := asInt64(v); ok {
		return float64(i), true
	}
	if u, ok := bigUint64(v); ok {
		return float64(u), true
	}
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		return parseBool(b)
	case []byte:
		return parseBool(string(b))
	}
	if i, ok := asInt64(v); ok {
		return i != 0, true
	}
	return false, false
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "t", "true", "y", "yes", "on":
		return true, true
	case "f", "false", "n", "no", "off":
		return false, true
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i != 0, true
	}
	return false, false
}

// isEmpty reports whether v counts as absent for a required field: nil,
// false, zero, the empty string, or an empty slice or map.
func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case string:
		return x == ""
	case []byte:
		return len(x) == 0
	}
	if f, ok := asFloat64(v); ok {
		return f == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}
	return false
}
