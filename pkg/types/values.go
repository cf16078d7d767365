package types

import (
	"encoding/json"
	"strings"
)

// Values is an insertion-ordered mapping from column name to value.
// Statement generation relies on the order: the column list and the bound
// argument list of a generated statement are both produced by walking Keys.
// The zero value is ready to use.
type Values struct {
	keys []string
	m    map[string]any
}

// NewValues returns an empty Values with room for n columns.
func NewValues(n int) *Values {
	return &Values{keys: make([]string, 0, n), m: make(map[string]any, n)}
}

// ValuesOf builds Values from alternating column/value pairs, e.g.
// ValuesOf("name", "a", "active", true). It panics on an odd argument count
// or a non-string column name.
func ValuesOf(pairs ...any) *Values {
	if len(pairs)%2 != 0 {
		panic("types.ValuesOf: odd number of arguments")
	}
	v := NewValues(len(pairs) / 2)
	for i := 0; i < len(pairs); i += 2 {
		col, ok := pairs[i].(string)
		if !ok {
			panic("types.ValuesOf: column name must be a string")
		}
		v.Set(col, pairs[i+1])
	}
	return v
}

// Set assigns value to column. A new column is appended to the order; an
// existing column keeps its position.
func (v *Values) Set(column string, value any) {
	if v.m == nil {
		v.m = make(map[string]any)
	}
	if _, ok := v.m[column]; !ok {
		v.keys = append(v.keys, column)
	}
	v.m[column] = value
}

// Get returns the value of column and whether it is present.
func (v *Values) Get(column string) (any, bool) {
	if v == nil || v.m == nil {
		return nil, false
	}
	val, ok := v.m[column]
	return val, ok
}

// Has reports whether column is present.
func (v *Values) Has(column string) bool {
	_, ok := v.Get(column)
	return ok
}

// Delete removes column. The relative order of the remaining columns is
// unchanged.
func (v *Values) Delete(column string) {
	if v == nil || v.m == nil {
		return
	}
	if _, ok := v.m[column]; !ok {
		return
	}
	delete(v.m, column)
	for i, k := range v.keys {
		if k == column {
			v.keys = append(v.keys[:i:i], v.keys[i+1:]...)
			break
		}
	}
}

// Keys returns a copy of the column names in order. Callers may delete from
// v while ranging over the returned slice.
func (v *Values) Keys() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Len returns the number of columns.
func (v *Values) Len() int {
	if v == nil {
		return 0
	}
	return len(v.keys)
}

// Clone returns a shallow copy with the same order.
func (v *Values) Clone() *Values {
	out := NewValues(v.Len())
	if v == nil {
		return out
	}
	for _, k := range v.keys {
		out.Set(k, v.m[k])
	}
	return out
}

// Map returns the values as a plain map. Order is lost.
func (v *Values) Map() map[string]any {
	out := make(map[string]any, v.Len())
	if v == nil {
		return out
	}
	for _, k := range v.keys {
		out[k] = v.m[k]
	}
	return out
}

// Merge copies every column of other into v, in other's order.
func (v *Values) Merge(other *Values) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		v.Set(k, other.m[k])
	}
}

// MarshalJSON encodes the values as a JSON object preserving column order.
func (v *Values) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range v.Keys() {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v.m[k])
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// Expr is a raw SQL expression. The statement builder inlines it verbatim
// and never binds or escapes it; only trusted text may be wrapped in Expr.
type Expr string

// String returns the SQL text.
func (e Expr) String() string { return string(e) }

// Predicate is a WHERE clause fragment with its bound arguments. The zero
// Predicate matches every row.
type Predicate struct {
	SQL  string
	Args []any
}

// Where builds a Predicate.
func Where(sql string, args ...any) Predicate {
	return Predicate{SQL: sql, Args: args}
}

// IsEmpty reports whether the predicate has no SQL text.
func (p Predicate) IsEmpty() bool {
	return strings.TrimSpace(p.SQL) == ""
}
