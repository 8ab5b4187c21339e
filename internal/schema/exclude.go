package schema

import (
	"strings"
)

// Exclusions lists system schemas (or tables) an introspector skips.
// Names match exactly, ignoring case. Patterns use SQL LIKE syntax:
// % matches any run of characters, _ matches exactly one.
type Exclusions struct {
	Names    []string
	Patterns []string
}

// Match reports whether name is excluded.
func (e Exclusions) Match(name string) bool {
	for _, n := range e.Names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	for _, p := range e.Patterns {
		if Like(name, p) {
			return true
		}
	}
	return false
}

// Args returns the names followed by the patterns, in the order the
// NOT IN / NOT LIKE clauses built by Clause expect them.
func (e Exclusions) Args() []any {
	args := make([]any, 0, len(e.Names)+len(e.Patterns))
	for _, n := range e.Names {
		args = append(args, n)
	}
	for _, p := range e.Patterns {
		args = append(args, p)
	}
	return args
}

// Clause renders "col NOT IN (?, …) AND col NOT LIKE ? …" with generic
// placeholders. It returns "1=1" when nothing is excluded.
func (e Exclusions) Clause(col string) string {
	var parts []string
	if len(e.Names) > 0 {
		parts = append(parts, col+" NOT IN ("+strings.TrimSuffix(strings.Repeat("?, ", len(e.Names)), ", ")+")")
	}
	for range e.Patterns {
		parts = append(parts, col+" NOT LIKE ?")
	}
	if len(parts) == 0 {
		return "1=1"
	}
	return strings.Join(parts, " AND ")
}

// Like matches s against a SQL LIKE pattern, ignoring case.
func Like(s, pattern string) bool {
	return like([]rune(strings.ToLower(s)), []rune(strings.ToLower(pattern)))
}

func like(s, p []rune) bool {
	// Iterative wildcard match with single-star backtracking.
	si, pi := 0, 0
	star, mark := -1, 0
	for si < len(s) {
		switch {
		case pi < len(p) && p[pi] == '%':
			star = pi
			mark = si
			pi++
		case pi < len(p) && (p[pi] == '_' || p[pi] == s[si]):
			si++
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '%' {
		pi++
	}
	return pi == len(p)
}
