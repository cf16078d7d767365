package sqldb

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Placeholder selects the positional parameter style of a driver.
//
//   - PlaceholderQuestion → "?"          (SQLite, MySQL)
//   - PlaceholderDollar   → "$1, $2, …"  (PostgreSQL)
type Placeholder int

const (
	PlaceholderQuestion Placeholder = iota
	PlaceholderDollar
)

// Rebind rewrites "?" placeholders into ph. Quoted strings and identifiers,
// comments and PostgreSQL dollar-quoted blocks are copied untouched.
func Rebind(query string, ph Placeholder) string {
	if ph == PlaceholderQuestion {
		return query
	}
	out := make([]byte, 0, len(query)+16)
	i, arg := 0, 1

	for i < len(query) {
		r, w := utf8.DecodeRuneInString(query[i:])
		switch r {
		case '\'', '"', '`':
			j := skipQuoted(query, i+w, byte(r))
			out = append(out, query[i:j]...)
			i = j
			continue
		case '-':
			if strings.HasPrefix(query[i:], "--") {
				j := skipLineComment(query, i+2)
				out = append(out, query[i:j]...)
				i = j
				continue
			}
		case '/':
			if strings.HasPrefix(query[i:], "/*") {
				j := skipBlockComment(query, i+2)
				out = append(out, query[i:j]...)
				i = j
				continue
			}
		case '$':
			if j, ok := skipDollarQuoted(query, i); ok {
				out = append(out, query[i:j]...)
				i = j
				continue
			}
		case '?':
			out = append(out, '$')
			out = strconv.AppendInt(out, int64(arg), 10)
			arg++
			i += w
			continue
		}
		out = append(out, query[i:i+w]...)
		i += w
	}
	return string(out)
}

// skipQuoted returns the index just past the closing quote, treating a
// doubled quote as an escaped one. An unterminated quote runs to the end.
func skipQuoted(s string, i int, quote byte) int {
	for i < len(s) {
		c := s[i]
		i++
		if c == quote {
			if i < len(s) && s[i] == quote {
				i++
				continue
			}
			return i
		}
	}
	return len(s)
}

func skipLineComment(s string, i int) int {
	for i < len(s) {
		if s[i] == '\n' {
			return i + 1
		}
		i++
	}
	return i
}

func skipBlockComment(s string, i int) int {
	for i < len(s)-1 {
		if s[i] == '*' && s[i+1] == '/' {
			return i + 2
		}
		i++
	}
	return len(s)
}

// skipDollarQuoted handles $$...$$ and $tag$...$tag$.
func skipDollarQuoted(s string, i int) (int, bool) {
	j := i + 1
	for j < len(s) && s[j] != '$' && isTagChar(rune(s[j])) {
		j++
	}
	if j >= len(s) || s[j] != '$' {
		return 0, false
	}
	tag := s[i : j+1]
	idx := strings.Index(s[j+1:], tag)
	if idx < 0 {
		return len(s), true
	}
	return j + 1 + idx + len(tag), true
}

func isTagChar(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }
