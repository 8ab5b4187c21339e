package database

import (
	"strconv"
	"strings"
)

// Marker produces the placeholder for the n-th (1-based) bound argument.
type Marker func(n int) string

// Positional markers for the dialects that do not accept ?.
var (
	// DollarMarker emits $1, $2, … (Postgres).
	DollarMarker Marker = func(n int) string { return "$" + strconv.Itoa(n) }

	// AtPMarker emits @p1, @p2, … (SQL Server).
	AtPMarker Marker = func(n int) string { return "@p" + strconv.Itoa(n) }
)

// Rebind rewrites every generic ? placeholder in query using marker.
//
// Question marks inside quoted literals or identifiers ('…', "…", `…`)
// and inside -- or /* */ comments are left alone. Square brackets are
// ordinary syntax here (array subscripts in Postgres); see RebindBracketed.
// A nil marker returns the query unchanged.
func Rebind(query string, marker Marker) string {
	return rebind(query, marker, false)
}

// RebindBracketed is Rebind for dialects that quote identifiers with [...],
// whose contents are skipped like any other quoted identifier.
func RebindBracketed(query string, marker Marker) string {
	return rebind(query, marker, true)
}

func rebind(query string, marker Marker, brackets bool) string {
	if marker == nil || !strings.Contains(query, "?") {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)

	n := 0
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch c {
		case '\'', '"', '`':
			end := closingQuote(query, i, c)
			sb.WriteString(query[i:end])
			i = end - 1
		case '[':
			if !brackets {
				sb.WriteByte(c)
				continue
			}
			end := strings.IndexByte(query[i:], ']')
			if end < 0 {
				sb.WriteString(query[i:])
				return sb.String()
			}
			sb.WriteString(query[i : i+end+1])
			i += end
		case '-':
			if i+1 < len(query) && query[i+1] == '-' {
				end := strings.IndexByte(query[i:], '\n')
				if end < 0 {
					sb.WriteString(query[i:])
					return sb.String()
				}
				sb.WriteString(query[i : i+end])
				i += end - 1
				continue
			}
			sb.WriteByte(c)
		case '/':
			if i+1 < len(query) && query[i+1] == '*' {
				end := strings.Index(query[i+2:], "*/")
				if end < 0 {
					sb.WriteString(query[i:])
					return sb.String()
				}
				stop := i + 2 + end + 2
				sb.WriteString(query[i:stop])
				i = stop - 1
				continue
			}
			sb.WriteByte(c)
		case '?':
			n++
			sb.WriteString(marker(n))
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// closingQuote returns the index just past the quote that closes the literal
// opened at start. Doubled quotes are escapes. An unterminated literal runs to
// the end of the query.
func closingQuote(query string, start int, quote byte) int {
	for i := start + 1; i < len(query); i++ {
		if query[i] != quote {
			continue
		}
		if i+1 < len(query) && query[i+1] == quote {
			i++
			continue
		}
		return i + 1
	}
	return len(query)
}

// QuoteIdent wraps a SQL identifier in double-quotes (ANSI standard).
// SQLite, Postgres and SQL Server (QUOTED_IDENTIFIER ON) accept it.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
