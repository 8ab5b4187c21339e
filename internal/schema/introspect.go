package schema

import (
	"sort"
	"strings"
)

// Builder accumulates catalog rows and groups them into a Server.
// Dialect introspectors feed it one column at a time in whatever order their
// catalog returns; Build sorts and freezes the result.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	server  string
	schemas map[string]*schemaDraft
}

type schemaDraft struct {
	name   string
	tables map[string]*tableDraft
}

type tableDraft struct {
	name    string
	columns map[string]*Column
}

// NewBuilder starts a Server named server.
func NewBuilder(server string) *Builder {
	return &Builder{server: server, schemas: make(map[string]*schemaDraft)}
}

// AddSchema registers a schema even if no table is ever added to it.
func (b *Builder) AddSchema(name string) {
	b.schema(name)
}

// AddTable registers a table even if no column is ever added to it.
func (b *Builder) AddTable(schemaName, tableName string) {
	b.table(schemaName, tableName)
}

// AddColumn places col in schemaName.tableName. Catalog joins can report the
// same column more than once (one row per constraint); repeats are merged by
// OR-ing the key flags onto the first occurrence.
func (b *Builder) AddColumn(schemaName, tableName string, col Column) {
	t := b.table(schemaName, tableName)

	key := strings.ToLower(col.Name)
	if prev, ok := t.columns[key]; ok {
		prev.PrimaryKey = prev.PrimaryKey || col.PrimaryKey
		prev.AutoIncrement = prev.AutoIncrement || col.AutoIncrement
		return
	}
	c := col
	t.columns[key] = &c
}

// Build freezes the accumulated rows into a Server. Columns are ordered by
// position, ties broken by lower-cased name.
func (b *Builder) Build() *Server {
	srv := &Server{name: b.server, schemas: make(map[string]*Schema, len(b.schemas))}

	for sk, sd := range b.schemas {
		sc := &Schema{name: sd.name, tables: make(map[string]*Table, len(sd.tables))}
		for tk, td := range sd.tables {
			sc.tables[tk] = freezeTable(td)
		}
		srv.schemas[sk] = sc
	}
	return srv
}

func freezeTable(td *tableDraft) *Table {
	cols := make([]Column, 0, len(td.columns))
	for _, c := range td.columns {
		cols = append(cols, *c)
	}
	sort.SliceStable(cols, func(i, j int) bool {
		if cols[i].Position != cols[j].Position {
			return cols[i].Position < cols[j].Position
		}
		return strings.ToLower(cols[i].Name) < strings.ToLower(cols[j].Name)
	})

	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[strings.ToLower(c.Name)] = i
	}
	return &Table{name: td.name, columns: cols, index: index}
}

func (b *Builder) schema(name string) *schemaDraft {
	key := strings.ToLower(name)
	sd, ok := b.schemas[key]
	if !ok {
		sd = &schemaDraft{name: name, tables: make(map[string]*tableDraft)}
		b.schemas[key] = sd
	}
	return sd
}

func (b *Builder) table(schemaName, tableName string) *tableDraft {
	sd := b.schema(schemaName)
	key := strings.ToLower(tableName)
	td, ok := sd.tables[key]
	if !ok {
		td = &tableDraft{name: tableName, columns: make(map[string]*Column)}
		sd.tables[key] = td
	}
	return td
}
