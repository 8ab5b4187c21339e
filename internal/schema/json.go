package schema

import (
	"encoding/json"
)

// Wire shapes: ordered arrays rather than maps so encoded output is stable.
type (
	serverJSON struct {
		Name    string       `json:"name"`
		Schemas []schemaJSON `json:"schemas"`
	}
	schemaJSON struct {
		Name   string      `json:"name"`
		Tables []tableJSON `json:"tables"`
	}
	tableJSON struct {
		Name    string   `json:"name"`
		Columns []Column `json:"columns"`
	}
)

func (t *Table) wire() tableJSON {
	return tableJSON{Name: t.name, Columns: t.Columns()}
}

func (s *Schema) wire() schemaJSON {
	tables := s.Tables()
	out := schemaJSON{Name: s.name, Tables: make([]tableJSON, len(tables))}
	for i, t := range tables {
		out.Tables[i] = t.wire()
	}
	return out
}

// MarshalJSON encodes the table with its columns in position order.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.wire())
}

// MarshalJSON encodes the schema with tables sorted by name.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.wire())
}

// MarshalJSON encodes the whole server tree.
func (s *Server) MarshalJSON() ([]byte, error) {
	schemas := s.Schemas()
	out := serverJSON{Name: s.name, Schemas: make([]schemaJSON, len(schemas))}
	for i, sc := range schemas {
		out.Schemas[i] = sc.wire()
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds a server encoded by MarshalJSON.
func (s *Server) UnmarshalJSON(data []byte) error {
	var in serverJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	b := NewBuilder(in.Name)
	for _, sc := range in.Schemas {
		b.AddSchema(sc.Name)
		for _, t := range sc.Tables {
			b.AddTable(sc.Name, t.Name)
			for _, c := range t.Columns {
				b.AddColumn(sc.Name, t.Name, c)
			}
		}
	}
	*s = *b.Build()
	return nil
}
