package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/schema"
)

// SystemSchemas are skipped when mapping a server.
var SystemSchemas = schema.Exclusions{
	Names:    []string{"information_schema", "phpmyadmin", "mysql", "performance_schema", "sys"},
	Patterns: []string{"phabricator%"},
}

const columnsQuery = `
	SELECT TABLE_SCHEMA, TABLE_NAME, COLUMN_NAME, ORDINAL_POSITION, COLUMN_DEFAULT,
	       IS_NULLABLE, DATA_TYPE, CHARACTER_MAXIMUM_LENGTH, COLUMN_KEY, EXTRA
	FROM information_schema.columns
	WHERE %s
	ORDER BY TABLE_SCHEMA, TABLE_NAME, ORDINAL_POSITION`

// Introspector reads every user schema from information_schema in one query.
type Introspector struct {
	Exclude schema.Exclusions
}

// NewIntrospector returns an introspector that skips SystemSchemas.
func NewIntrospector() *Introspector {
	return &Introspector{Exclude: SystemSchemas}
}

// Introspect implements schema.Introspector.
func (m *Introspector) Introspect(ctx context.Context, q schema.Querier, server string) (*schema.Server, error) {
	stmt := fmt.Sprintf(columnsQuery, m.Exclude.Clause("TABLE_SCHEMA"))

	rows, err := q.FetchAll(ctx, stmt, m.Exclude.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}

	b := schema.NewBuilder(server)
	for _, row := range rows {
		b.AddColumn(row.String("TABLE_SCHEMA"), row.String("TABLE_NAME"), columnFromRow(row))
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
		PrimaryKey:    strings.EqualFold(row.String("COLUMN_KEY"), "PRI"),
		AutoIncrement: strings.Contains(strings.ToLower(row.String("EXTRA")), "auto_increment"),
	}
}
