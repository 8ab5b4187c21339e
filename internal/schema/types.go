package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/koustreak/dbmap/internal/errs"
)

// DefaultMaxLength marks a column without a length limit, or one where a
// limit does not apply.
const DefaultMaxLength = -1

// Column describes a single column in a table. It is a value type: every
// accessor hands out a copy, so a mapped model cannot be edited in place.
type Column struct {
	Name          string  `json:"name"`
	Position      int     `json:"position"` // 1-based ordinal position
	Type          string  `json:"type"`     // dialect-native declared type
	MaxLength     int     `json:"max_length"`
	Default       *string `json:"default"` // nil when the column has no default
	Nullable      bool    `json:"nullable"`
	PrimaryKey    bool    `json:"primary_key"`
	AutoIncrement bool    `json:"auto_increment"`
}

// Table is a named, position-ordered list of columns.
type Table struct {
	name    string
	columns []Column
	index   map[string]int // lower-cased column name -> columns index
}

// Name returns the table name with its original casing.
func (t *Table) Name() string { return t.name }

// Len returns the number of columns.
func (t *Table) Len() int { return len(t.columns) }

// Columns returns a copy of the columns ordered by position.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// Column looks a column up by name, case-insensitively.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[strings.ToLower(name)]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// PrimaryKey returns the primary key columns in position order.
func (t *Table) PrimaryKey() []Column {
	var pk []Column
	for _, c := range t.columns {
		if c.PrimaryKey {
			pk = append(pk, c)
		}
	}
	return pk
}

// Schema is a named set of tables (a MySQL schema, a SQL Server database,
// an attached SQLite database file, a Postgres schema).
type Schema struct {
	name   string
	tables map[string]*Table // keyed by lower-cased name
}

// Name returns the schema name with its original casing.
func (s *Schema) Name() string { return s.name }

// Len returns the number of tables.
func (s *Schema) Len() int { return len(s.tables) }

// Table looks a table up by name, case-insensitively.
func (s *Schema) Table(name string) (*Table, bool) {
	t, ok := s.tables[strings.ToLower(name)]
	return t, ok
}

// Tables returns all tables sorted by lower-cased name.
func (s *Schema) Tables() []*Table {
	keys := make([]string, 0, len(s.tables))
	for k := range s.tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*Table, len(keys))
	for i, k := range keys {
		out[i] = s.tables[k]
	}
	return out
}

// Server is one mapped logical database system.
type Server struct {
	name    string
	schemas map[string]*Schema // keyed by lower-cased name
}

// Name returns the server name.
func (s *Server) Name() string { return s.name }

// Len returns the number of schemas.
func (s *Server) Len() int { return len(s.schemas) }

// Schema looks a schema up by name, case-insensitively.
func (s *Server) Schema(name string) (*Schema, bool) {
	sc, ok := s.schemas[strings.ToLower(name)]
	return sc, ok
}

// Schemas returns all schemas sorted by lower-cased name.
func (s *Server) Schemas() []*Schema {
	keys := make([]string, 0, len(s.schemas))
	for k := range s.schemas {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*Schema, len(keys))
	for i, k := range keys {
		out[i] = s.schemas[k]
	}
	return out
}

// Table resolves schema.table, returning ErrKindNotFound when either is missing.
func (s *Server) Table(schemaName, tableName string) (*Table, error) {
	sc, ok := s.Schema(schemaName)
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("schema %q not found on %s", schemaName, s.name))
	}
	t, ok := sc.Table(tableName)
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("table %q not found in %s.%s", tableName, s.name, sc.name))
	}
	return t, nil
}

// Lookup resolves schema.table.column, returning ErrKindNotFound when any
// part is missing.
func (s *Server) Lookup(schemaName, tableName, columnName string) (Column, error) {
	t, err := s.Table(schemaName, tableName)
	if err != nil {
		return Column{}, err
	}
	c, ok := t.Column(columnName)
	if !ok {
		return Column{}, errs.New(errs.ErrKindNotFound, fmt.Sprintf("column %q not found in %s.%s", columnName, schemaName, t.name))
	}
	return c, nil
}
