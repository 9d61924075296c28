package schema

import (
	"fmt"
	"strings"
)

// Grid layout applied to tables that carry no position of their own
const (
	gridOrigin  = 100
	gridStepX   = 250
	gridWrapX   = 800
	gridStepY   = 300
	gridPerRow  = 3
	defaultType = OneToMany
)

// TableID returns the synthetic id for a parsed table name
func TableID(name string) string {
	return "table_" + name
}

// ColumnID returns the synthetic id for a parsed column name
func ColumnID(table, column string) string {
	return "col_" + table + "_" + column
}

// RelationID returns the synthetic id for the relation at index i
func RelationID(i int) string {
	return fmt.Sprintf("rel_%d", i)
}

// GridPosition returns the canvas position of the i-th table of a draft
func GridPosition(i int) (x, y float64) {
	x = float64(gridOrigin + (i*gridStepX)%gridWrapX)
	y = float64(gridOrigin + (i/gridPerRow)*gridStepY)
	return x, y
}

// RelationRef records the names a relation was declared with.
// Refs travel alongside synthetic ids so endpoints can be resolved by name
// without re-deriving them from the ids.
type RelationRef struct {
	FromTable  string
	FromColumn string
	ToTable    string
	ToColumn   string
}

// Draft is a schema carrying synthetic ids that has not been reconciled yet.
// Refs is aligned by index with Schema.Relations.
type Draft struct {
	Schema
	Refs []RelationRef
}

// Builder assembles a Draft table by table
type Builder struct {
	tables    []Table
	relations []Relation
	refs      []RelationRef
}

// NewBuilder creates an empty draft builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Len returns the number of tables added so far
func (b *Builder) Len() int {
	return len(b.tables)
}

// AddTable appends a table with a synthetic id and grid position and returns its index
func (b *Builder) AddTable(name string) int {
	x, y := GridPosition(len(b.tables))
	b.tables = append(b.tables, Table{
		ID:      TableID(name),
		Name:    name,
		PosX:    x,
		PosY:    y,
		Columns: []Column{},
	})
	return len(b.tables) - 1
}

// AddColumn appends a column to the table at index t
func (b *Builder) AddColumn(t int, name, typ string, pk, fk bool) {
	table := &b.tables[t]
	table.Columns = append(table.Columns, Column{
		ID:           ColumnID(table.Name, name),
		Name:         name,
		Type:         typ,
		IsPrimaryKey: pk,
		IsForeignKey: fk,
	})
}

// MarkPrimaryKey flags an already declared column of table t as primary key
func (b *Builder) MarkPrimaryKey(t int, column string) bool {
	col, ok := b.tables[t].ColumnByName(column)
	if !ok {
		return false
	}
	col.IsPrimaryKey = true
	return true
}

// MarkForeignKeyAt flags an already declared column of table t as foreign key
func (b *Builder) MarkForeignKeyAt(t int, column string) bool {
	col, ok := b.tables[t].ColumnByName(column)
	if !ok {
		return false
	}
	col.IsForeignKey = true
	return true
}

// MarkForeignKey flags table.column as foreign key if both were already added
func (b *Builder) MarkForeignKey(table, column string) bool {
	for i := range b.tables {
		if !strings.EqualFold(b.tables[i].Name, table) {
			continue
		}
		if col, ok := b.tables[i].ColumnByName(column); ok {
			col.IsForeignKey = true
			return true
		}
	}
	return false
}

// AddRelation registers a 1:N relation between the named columns.
// A relation with the same from/to column pair, compared by name ignoring
// case, is only registered once.
func (b *Builder) AddRelation(ref RelationRef) bool {
	for _, r := range b.refs {
		if r.sameColumns(ref) {
			return false
		}
	}
	b.relations = append(b.relations, Relation{
		FromTable: TableID(ref.FromTable),
		FromCol:   ColumnID(ref.FromTable, ref.FromColumn),
		ToTable:   TableID(ref.ToTable),
		ToCol:     ColumnID(ref.ToTable, ref.ToColumn),
		Type:      defaultType,
	})
	b.refs = append(b.refs, ref)
	return true
}

func (r RelationRef) sameColumns(o RelationRef) bool {
	return strings.EqualFold(r.FromTable, o.FromTable) &&
		strings.EqualFold(r.FromColumn, o.FromColumn) &&
		strings.EqualFold(r.ToTable, o.ToTable) &&
		strings.EqualFold(r.ToColumn, o.ToColumn)
}

// Build returns the draft, assigning positional ids to relations
func (b *Builder) Build() *Draft {
	d := &Draft{
		Schema: Schema{
			Tables:    b.tables,
			Relations: b.relations,
		},
		Refs: b.refs,
	}
	if d.Tables == nil {
		d.Tables = []Table{}
	}
	if d.Relations == nil {
		d.Relations = []Relation{}
	}
	for i := range d.Relations {
		if d.Relations[i].ID == "" {
			d.Relations[i].ID = RelationID(i)
		}
	}
	return d
}
