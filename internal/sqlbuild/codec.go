// Package sqlbuild renders the insert, update and batch insert statements
// used by tables, together with their ordered argument lists.
package sqlbuild

import (
	"time"

	"github.com/mesh-intelligence/activerow/pkg/types"
)

// TimestampLayout is the layout of inlined timestamp literals.
const TimestampLayout = "2006-01-02T15:04:05"

// Placeholder is the positional parameter marker emitted by the builder.
const Placeholder = "?"

// Encode returns the SQL text for v and whether v must be bound as a
// parameter. Booleans, timestamps and raw expressions are inlined; every
// other value (nil, numbers, text, bytes) is bound.
func Encode(v any) (string, bool) {
	switch val := v.(type) {
	case bool:
		if val {
			return "TRUE", false
		}
		return "FALSE", false
	case time.Time:
		return "'" + val.Format(TimestampLayout) + "'", false
	case *time.Time:
		if val == nil {
			return Placeholder, true
		}
		return "'" + val.Format(TimestampLayout) + "'", false
	case types.Expr:
		return string(val), false
	default:
		return Placeholder, true
	}
}

// bindValues walks values in order and returns the quoted column list, the
// value text for each column, and the arguments for the bound ones. Every
// inlined column is deleted from values, so afterwards values holds exactly
// the bound columns in the same order as args.
func bindValues(q types.Quoter, values *types.Values) (cols, vals []string, args []any) {
	keys := values.Keys()
	cols = make([]string, 0, len(keys))
	vals = make([]string, 0, len(keys))
	for _, col := range keys {
		v, _ := values.Get(col)
		cols = append(cols, q.QuoteIdentifier(col, true))
		text, bound := Encode(v)
		vals = append(vals, text)
		if !bound {
			values.Delete(col)
			continue
		}
		args = append(args, v)
	}
	return cols, vals, args
}
