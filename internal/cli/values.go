package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/activerow/pkg/types"
)

// parseAssignments turns --set col=value and --expr col=sql flags into row
// data. --set values are typed by parseScalar; --expr values are inlined
// into the statement verbatim.
func parseAssignments(sets, exprs []string) (map[string]any, error) {
	data := make(map[string]any, len(sets)+len(exprs))
	for _, pair := range sets {
		col, val, err := splitAssignment(pair)
		if err != nil {
			return nil, err
		}
		data[col] = parseScalar(val)
	}
	for _, pair := range exprs {
		col, val, err := splitAssignment(pair)
		if err != nil {
			return nil, err
		}
		data[col] = types.Expr(val)
	}
	return data, nil
}

func splitAssignment(pair string) (string, string, error) {
	col, val, ok := strings.Cut(pair, "=")
	col = strings.TrimSpace(col)
	if !ok || col == "" {
		return "", "", fmt.Errorf("invalid assignment %q (want column=value)", pair)
	}
	return col, val, nil
}

// parseScalar types a command line value: null, true and false become nil
// and booleans, integers become int64, other numbers float64. Anything else
// stays a string; wrap a value in double quotes to force a string.
func parseScalar(s string) any {
	switch s {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if unq, err := strconv.Unquote(s); err == nil {
			return unq
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// normalizeJSON converts json.Number values decoded with UseNumber into
// int64 or float64.
func normalizeJSON(m map[string]any) {
	for k, v := range m {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			m[k] = i
		} else if f, err := n.Float64(); err == nil {
			m[k] = f
		} else {
			m[k] = n.String()
		}
	}
}

// checkColumns rejects keys that are not columns of the table.
func checkColumns(columns []string, data map[string]any) error {
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}
	for k := range data {
		if !known[k] {
			return fmt.Errorf("%w: %s", types.ErrUnknownColumn, k)
		}
	}
	return nil
}
