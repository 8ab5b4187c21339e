package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/schema"
)

// SystemSchemas are skipped when mapping a server.
var SystemSchemas = schema.Exclusions{
	Names:    []string{"pg_catalog", "information_schema"},
	Patterns: []string{"pg_%"},
}

const columnsQuery = `
	SELECT c.table_schema, c.table_name, c.column_name, c.ordinal_position, c.column_default,
	       c.is_nullable, c.data_type, c.character_maximum_length, c.is_identity,
	       pk.column_name IS NOT NULL AS is_primary
	FROM information_schema.columns c
	JOIN information_schema.tables t
	  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
	 AND t.table_type = 'BASE TABLE'
	LEFT JOIN (
		SELECT kcu.table_schema, kcu.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
	) pk ON pk.table_schema = c.table_schema AND pk.table_name = c.table_name
	    AND pk.column_name = c.column_name
	WHERE %s
	ORDER BY c.table_schema, c.table_name, c.ordinal_position`

// Introspector maps every non-system namespace of the connected database.
type Introspector struct {
	Exclude schema.Exclusions
}

// NewIntrospector returns an introspector that skips SystemSchemas.
func NewIntrospector() *Introspector {
	return &Introspector{Exclude: SystemSchemas}
}

// Introspect implements schema.Introspector.
func (m *Introspector) Introspect(ctx context.Context, q schema.Querier, server string) (*schema.Server, error) {
	rows, err := q.FetchAll(ctx, fmt.Sprintf(columnsQuery, m.Exclude.Clause("c.table_schema")), m.Exclude.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}

	b := schema.NewBuilder(server)
	for _, row := range rows {
		b.AddColumn(row.String("table_schema"), row.String("table_name"), columnFromRow(row))
	}
	return b.Build(), nil
}

func columnFromRow(row database.Row) schema.Column {
	def := row.NullString("column_default")
	serial := def != nil && strings.HasPrefix(strings.ToLower(*def), "nextval(")

	return schema.Column{
		Name:          row.String("column_name"),
		Position:      int(row.Int("ordinal_position", 0)),
		Type:          row.String("data_type"),
		MaxLength:     int(row.Int("character_maximum_length", schema.DefaultMaxLength)),
		Default:       def,
		Nullable:      row.Bool("is_nullable"),
		PrimaryKey:    row.Bool("is_primary"),
		AutoIncrement: row.Bool("is_identity") || serial,
	}
}
