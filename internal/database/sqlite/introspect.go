package sqlite

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/schema"
)

// SystemTables are the engine's bookkeeping tables (sqlite_sequence, sqlite_stat1, ...).
var SystemTables = schema.Exclusions{Patterns: []string{"sqlite_%"}}

var lengthRe = regexp.MustCompile(`\d+`)

// Introspector maps every attached database (main, temp, ATTACHed files)
// to one schema.
type Introspector struct {
	Exclude schema.Exclusions
}

// NewIntrospector returns an introspector that skips SystemTables.
func NewIntrospector() *Introspector {
	return &Introspector{Exclude: SystemTables}
}

// Introspect implements schema.Introspector.
func (m *Introspector) Introspect(ctx context.Context, q schema.Querier, server string) (*schema.Server, error) {
	dbs, err := q.FetchAll(ctx, "PRAGMA database_list")
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}

	b := schema.NewBuilder(server)
	for _, db := range dbs {
		dbName := db.String("name")
		b.AddSchema(dbName)

		stmt := fmt.Sprintf(`SELECT name, sql FROM %s.sqlite_master WHERE type = ? AND %s ORDER BY name`,
			database.QuoteIdent(dbName), m.Exclude.Clause("name"))
		tables, err := q.FetchAll(ctx, stmt, append([]any{"table"}, m.Exclude.Args()...)...)
		if err != nil {
			return nil, fmt.Errorf("list tables of %s: %w", dbName, err)
		}

		for _, tbl := range tables {
			tblName := tbl.String("name")
			if m.Exclude.Match(tblName) {
				continue
			}
			b.AddTable(dbName, tblName)

			cols, err := q.FetchAll(ctx, fmt.Sprintf("PRAGMA %s.table_info(%s)",
				database.QuoteIdent(dbName), database.QuoteIdent(tblName)))
			if err != nil {
				return nil, fmt.Errorf("list columns of %s.%s: %w", dbName, tblName, err)
			}
			createSQL := tbl.String("sql")
			for _, col := range cols {
				b.AddColumn(dbName, tblName, columnFromRow(col, createSQL))
			}
		}
	}
	return b.Build(), nil
}

func columnFromRow(row database.Row, createSQL string) schema.Column {
	name := row.String("name")
	typ := row.String("type")
	pk := row.Int("pk", 0) > 0

	maxLen := schema.DefaultMaxLength
	if m := lengthRe.FindString(typ); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			maxLen = n
		}
	}

	return schema.Column{
		Name:          name,
		Position:      int(row.Int("cid", 0)) + 1,
		Type:          typ,
		MaxLength:     maxLen,
		Default:       row.NullString("dflt_value"),
		Nullable:      row.Int("notnull", 0) == 0,
		PrimaryKey:    pk,
		AutoIncrement: pk && strings.EqualFold(typ, "integer") && autoIncrement(createSQL, name),
	}
}

// autoIncrement reports whether column's definition in the CREATE TABLE
// statement carries the AUTOINCREMENT keyword. SQLite keeps no catalog flag
// for it, only the original DDL.
func autoIncrement(createSQL, column string) bool {
	for _, def := range columnDefs(createSQL) {
		name, rest := leadingIdent(def)
		if strings.EqualFold(name, column) {
			return strings.Contains(strings.ToUpper(rest), "AUTOINCREMENT")
		}
	}
	return false
}

// columnDefs splits the body of a CREATE TABLE statement at its top-level
// commas. Commas inside parentheses and quoted text do not split.
func columnDefs(createSQL string) []string {
	start := strings.IndexByte(createSQL, '(')
	if start < 0 {
		return nil
	}

	var (
		defs  []string
		depth = 1
		from  = start + 1
	)
	for i := start + 1; i < len(createSQL) && depth > 0; i++ {
		switch c := createSQL[i]; c {
		case '\'', '"', '`':
			i = skipQuoted(createSQL, i, c) - 1
		case '[':
			i = skipQuoted(createSQL, i, ']') - 1
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				defs = append(defs, strings.TrimSpace(createSQL[from:i]))
			}
		case ',':
			if depth == 1 {
				defs = append(defs, strings.TrimSpace(createSQL[from:i]))
				from = i + 1
			}
		}
	}
	return defs
}

// skipQuoted returns the index just past the quote closing the one at start.
// A doubled closing quote is an escape.
func skipQuoted(s string, start int, closing byte) int {
	for i := start + 1; i < len(s); i++ {
		if s[i] != closing {
			continue
		}
		if i+1 < len(s) && s[i+1] == closing {
			i++
			continue
		}
		return i + 1
	}
	return len(s)
}

// leadingIdent splits a column definition into its (unquoted) name and the rest.
func leadingIdent(def string) (name, rest string) {
	if def == "" {
		return "", ""
	}
	closing := byte(0)
	switch def[0] {
	case '"', '`', '\'':
		closing = def[0]
	case '[':
		closing = ']'
	}
	if closing != 0 {
		end := skipQuoted(def, 0, closing)
		name = def[1:max(end-1, 1)]
		name = strings.ReplaceAll(name, string(closing)+string(closing), string(closing))
		return name, def[end:]
	}
	if i := strings.IndexAny(def, " \t\r\n"); i >= 0 {
		return def[:i], def[i:]
	}
	return def, ""
}
