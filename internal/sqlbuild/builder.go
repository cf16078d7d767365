package sqlbuild

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/activerow/pkg/types"
)

// matchAll is the predicate used when an update has none. It matches every
// row; callers targeting one record must pass an identity predicate.
const matchAll = "(TRUE)"

// Statement is generated SQL plus its arguments in placeholder order.
type Statement struct {
	SQL  string
	Args []any
}

// Insert renders a single-row insert. values loses every inlined column
// (see Encode); pass a clone when the caller's copy must survive.
//
//	INSERT INTO "items" ("name","active") VALUES (?,TRUE) RETURNING *
func Insert(q types.Quoter, table string, values *types.Values, returning bool) Statement {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(q.QuoteIdentifier(table, true))

	var args []any
	if values.Len() == 0 {
		b.WriteString(" DEFAULT VALUES")
	} else {
		var cols, vals []string
		cols, vals, args = bindValues(q, values)
		b.WriteString(" (")
		b.WriteString(strings.Join(cols, ","))
		b.WriteString(") VALUES (")
		b.WriteString(strings.Join(vals, ","))
		b.WriteString(")")
	}
	if returning {
		b.WriteString(" RETURNING *")
	}
	return Statement{SQL: b.String(), Args: args}
}

// Update renders an update of the given columns. The predicate's arguments
// follow the SET arguments. An empty predicate becomes (TRUE).
//
//	UPDATE "items" SET "price"=? WHERE id = 5 RETURNING *
func Update(q types.Quoter, table string, values *types.Values, where types.Predicate, returning bool) Statement {
	cols, vals, args := bindValues(q, values)

	set := make([]string, len(cols))
	for i := range cols {
		set[i] = cols[i] + "=" + vals[i]
	}

	cond := where.SQL
	if where.IsEmpty() {
		cond = matchAll
	} else {
		args = append(args, where.Args...)
	}

	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(q.QuoteIdentifier(table, true))
	b.WriteString(" SET ")
	b.WriteString(strings.Join(set, ","))
	b.WriteString(" WHERE ")
	b.WriteString(cond)
	if returning {
		b.WriteString(" RETURNING *")
	}
	return Statement{SQL: b.String(), Args: args}
}

// Select renders a read of the rows matching where.
func Select(q types.Quoter, table string, where types.Predicate) Statement {
	cond := where.SQL
	if where.IsEmpty() {
		cond = matchAll
	}
	return Statement{
		SQL:  "SELECT * FROM " + q.QuoteIdentifier(table, true) + " WHERE " + cond,
		Args: where.Args,
	}
}

// ParamSupport reports which parameter styles a driver can bind.
type ParamSupport interface {
	SupportsParameterStyle(style types.ParamStyle) bool
}

// BatchInsert renders one multi-row insert. Columns come from the first row
// and every row must carry exactly that column set; values are read by
// column name so rows may list their columns in any order. Values are always
// bound: positional when the driver supports it, else named.
//
//	INSERT INTO "items" ("a","b") VALUES (?,?),(?,?)
func BatchInsert(q types.Quoter, p ParamSupport, table string, rows []*types.Values) (Statement, error) {
	if len(rows) == 0 {
		return Statement{}, fmt.Errorf("batch insert into %s: no rows", table)
	}

	var style types.ParamStyle
	switch {
	case p.SupportsParameterStyle(types.ParamPositional):
		style = types.ParamPositional
	case p.SupportsParameterStyle(types.ParamNamed):
		style = types.ParamNamed
	default:
		return Statement{}, fmt.Errorf("batch insert into %s: %w", table, types.ErrUnsupportedParameterBinding)
	}

	columns := rows[0].Keys()
	if len(columns) == 0 {
		return Statement{}, fmt.Errorf("batch insert into %s: first row has no columns", table)
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = q.QuoteIdentifier(c, true)
	}

	groups := make([]string, len(rows))
	args := make([]any, 0, len(rows)*len(columns))
	counter := 0
	for i, row := range rows {
		if row.Len() != len(columns) {
			return Statement{}, fmt.Errorf("batch insert into %s: row %d: %w", table, i, types.ErrBatchColumnMismatch)
		}
		placeholders := make([]string, len(columns))
		for j, c := range columns {
			v, ok := row.Get(c)
			if !ok {
				return Statement{}, fmt.Errorf("batch insert into %s: row %d lacks %q: %w", table, i, c, types.ErrBatchColumnMismatch)
			}
			counter++
			if style == types.ParamPositional {
				placeholders[j] = Placeholder
				args = append(args, v)
				continue
			}
			name := fmt.Sprintf("c%d_%d", i, counter)
			placeholders[j] = ":" + name
			args = append(args, sql.Named(name, v))
		}
		groups[i] = "(" + strings.Join(placeholders, ",") + ")"
	}

	sqlText := "INSERT INTO " + q.QuoteIdentifier(table, true) +
		" (" + strings.Join(quoted, ",") + ") VALUES " + strings.Join(groups, ",")
	return Statement{SQL: sqlText, Args: args}, nil
}
