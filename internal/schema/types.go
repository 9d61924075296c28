package schema

import "strings"

// RelationType annotates the cardinality of a relation. It is never enforced.
type RelationType string

const (
	OneToOne   RelationType = "1:1"
	OneToMany  RelationType = "1:N"
	ManyToMany RelationType = "N:N"
)

// Valid reports whether t is one of the known relation annotations
func (t RelationType) Valid() bool {
	switch t {
	case OneToOne, OneToMany, ManyToMany:
		return true
	}
	return false
}

// Schema represents the full set of tables and relations at a point in time
type Schema struct {
	Tables    []Table    `json:"tables" yaml:"tables"`
	Relations []Relation `json:"relations" yaml:"relations"`
}

// Table represents a table node on the canvas
type Table struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	PosX    float64  `json:"posX" yaml:"posX"`
	PosY    float64  `json:"posY" yaml:"posY"`
	Columns []Column `json:"columns" yaml:"columns"`
}

// Column represents a table column
type Column struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Type         string `json:"type" yaml:"type"`
	IsPrimaryKey bool   `json:"pk" yaml:"pk"`
	IsForeignKey bool   `json:"fk" yaml:"fk"` // advisory only
}

// Relation represents a foreign key link between two columns
type Relation struct {
	ID        string       `json:"id" yaml:"id"`
	FromTable string       `json:"fromTable" yaml:"fromTable"`
	FromCol   string       `json:"fromCol" yaml:"fromCol"`
	ToTable   string       `json:"toTable" yaml:"toTable"`
	ToCol     string       `json:"toCol" yaml:"toCol"`
	Type      RelationType `json:"type" yaml:"type"`
}

// Clone returns a deep copy of the schema
func (s Schema) Clone() Schema {
	out := Schema{
		Tables:    make([]Table, len(s.Tables)),
		Relations: make([]Relation, len(s.Relations)),
	}
	for i, t := range s.Tables {
		out.Tables[i] = t.Clone()
	}
	copy(out.Relations, s.Relations)
	return out
}

// Clone returns a deep copy of the table
func (t Table) Clone() Table {
	cols := make([]Column, len(t.Columns))
	copy(cols, t.Columns)
	t.Columns = cols
	return t
}

// Table looks up a table by id
func (s *Schema) Table(id string) (*Table, bool) {
	for i := range s.Tables {
		if s.Tables[i].ID == id {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// TableByName looks up the first table whose name matches case-insensitively
func (s *Schema) TableByName(name string) (*Table, bool) {
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].Name, name) {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// Column looks up a column by id
func (t *Table) Column(id string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].ID == id {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// ColumnByName looks up the first column whose name matches case-insensitively
func (t *Table) ColumnByName(name string) (*Column, bool) {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Endpoints holds the resolved tables and columns a relation points at
type Endpoints struct {
	From    *Table
	FromCol *Column
	To      *Table
	ToCol   *Column
}

// ResolveRelation resolves all four endpoint references of r.
// ok is false when any of them dangles.
func (s *Schema) ResolveRelation(r Relation) (Endpoints, bool) {
	var e Endpoints
	var ok bool

	if e.From, ok = s.Table(r.FromTable); !ok {
		return e, false
	}
	if e.To, ok = s.Table(r.ToTable); !ok {
		return e, false
	}
	if e.FromCol, ok = e.From.Column(r.FromCol); !ok {
		return e, false
	}
	if e.ToCol, ok = e.To.Column(r.ToCol); !ok {
		return e, false
	}
	return e, true
}
