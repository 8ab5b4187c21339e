package mssql

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/schema"
)

// SystemDatabases are skipped when mapping a server.
var SystemDatabases = schema.Exclusions{
	Names:    []string{"master", "tempdb", "model", "msdb"},
	Patterns: []string{"ReportServer%"},
}

const databasesQuery = `SELECT "name" FROM master.dbo.sysdatabases WHERE %s ORDER BY "name"`

// columnsQuery is formatted with the quoted database name five times.
const columnsQuery = `
	SELECT c.TABLE_CATALOG, c.TABLE_NAME, c.COLUMN_NAME, c.ORDINAL_POSITION, c.COLUMN_DEFAULT,
	       c.IS_NULLABLE, c.DATA_TYPE, c.CHARACTER_MAXIMUM_LENGTH, tc.CONSTRAINT_TYPE, ic.is_identity
	FROM %[1]s.information_schema.COLUMNS c
	LEFT JOIN %[1]s.information_schema.KEY_COLUMN_USAGE kcu
	       ON c.TABLE_CATALOG = kcu.TABLE_CATALOG AND c.TABLE_SCHEMA = kcu.TABLE_SCHEMA
	      AND c.TABLE_NAME = kcu.TABLE_NAME AND c.COLUMN_NAME = kcu.COLUMN_NAME
	LEFT JOIN %[1]s.information_schema.TABLE_CONSTRAINTS tc
	       ON kcu.CONSTRAINT_NAME = tc.CONSTRAINT_NAME AND kcu.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA
	LEFT JOIN %[1]s.sys.tables t ON t.name = c.TABLE_NAME AND t.schema_id = SCHEMA_ID(c.TABLE_SCHEMA)
	LEFT JOIN %[1]s.sys.identity_columns ic ON t.object_id = ic.object_id AND ic.name = c.COLUMN_NAME
	ORDER BY c.TABLE_CATALOG, c.TABLE_NAME, c.ORDINAL_POSITION`

// Introspector maps every user database on the server to one schema.
type Introspector struct {
	Exclude schema.Exclusions
}

// NewIntrospector returns an introspector that skips SystemDatabases.
func NewIntrospector() *Introspector {
	return &Introspector{Exclude: SystemDatabases}
}

// Introspect implements schema.Introspector. A column that takes part in
// several constraints comes back once per constraint; the builder merges them.
func (m *Introspector) Introspect(ctx context.Context, q schema.Querier, server string) (*schema.Server, error) {
	dbs, err := q.FetchAll(ctx, fmt.Sprintf(databasesQuery, m.Exclude.Clause(`"name"`)), m.Exclude.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}

	b := schema.NewBuilder(server)
	for _, db := range dbs {
		name := db.String("name")
		if name == "" || m.Exclude.Match(name) {
			continue
		}
		b.AddSchema(name)

		rows, err := q.FetchAll(ctx, fmt.Sprintf(columnsQuery, database.QuoteIdent(name)))
		if err != nil {
			return nil, fmt.Errorf("list columns of %s: %w", name, err)
		}
		for _, row := range rows {
			catalog := row.String("TABLE_CATALOG")
			if catalog == "" {
				catalog = name
			}
			b.AddColumn(catalog, row.String("TABLE_NAME"), columnFromRow(row))
		}
	}
	return b.Build(), nil
}

func columnFromRow(row database.Row) schema.Column {
	maxLen := row.Int("CHARACTER_MAXIMUM_LENGTH", schema.DefaultMaxLength)
	if maxLen == 0 {
		maxLen = schema.DefaultMaxLength
	}
	return schema.Column{
		Name:          row.String("COLUMN_NAME"),
		Position:      int(row.Int("ORDINAL_POSITION", 0)),
		Type:          row.String("DATA_TYPE"),
		MaxLength:     int(maxLen),
		Default:       row.NullString("COLUMN_DEFAULT"),
		Nullable:      row.Bool("IS_NULLABLE"),
		PrimaryKey:    strings.EqualFold(row.String("CONSTRAINT_TYPE"), "PRIMARY KEY"),
		AutoIncrement: row.Bool("is_identity"),
	}
}
