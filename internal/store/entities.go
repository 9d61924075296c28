package store

import (
	"fmt"

	"github.com/tordrt/schemasync/internal/schema"
)

// TablePatch lists the table fields to change. Nil fields are left untouched.
type TablePatch struct {
	Name *string  `json:"name,omitempty"`
	PosX *float64 `json:"posX,omitempty"`
	PosY *float64 `json:"posY,omitempty"`
}

// ColumnPatch lists the column fields to change. Nil fields are left untouched.
type ColumnPatch struct {
	Name         *string `json:"name,omitempty"`
	Type         *string `json:"type,omitempty"`
	IsPrimaryKey *bool   `json:"pk,omitempty"`
	IsForeignKey *bool   `json:"fk,omitempty"`
}

func (p TablePatch) apply(t *schema.Table) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.PosX != nil {
		t.PosX = *p.PosX
	}
	if p.PosY != nil {
		t.PosY = *p.PosY
	}
}

func (p ColumnPatch) apply(c *schema.Column) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.IsPrimaryKey != nil {
		c.IsPrimaryKey = *p.IsPrimaryKey
	}
	if p.IsForeignKey != nil {
		c.IsForeignKey = *p.IsForeignKey
	}
}

// AddTable creates a table seeded with an integer primary key column named id
func (s *Store) AddTable(name string, x, y float64) schema.Table {
	if name == "" {
		name = defaultTableName
	}

	var created schema.Table
	s.mutate("add table", func(sc *schema.Schema) bool {
		created = schema.Table{
			ID:   s.newID(),
			Name: name,
			PosX: x,
			PosY: y,
			Columns: []schema.Column{
				{ID: s.newID(), Name: "id", Type: "INT", IsPrimaryKey: true},
			},
		}
		sc.Tables = append(sc.Tables, created)
		return true
	})
	return created.Clone()
}

// UpdateTable patches the table with the given id
func (s *Store) UpdateTable(id string, patch TablePatch) {
	s.mutate("update table", func(sc *schema.Schema) bool {
		t, ok := sc.Table(id)
		if !ok {
			return false
		}
		patch.apply(t)
		return true
	})
}

// RemoveTable deletes a table and every relation that starts or ends at it
func (s *Store) RemoveTable(id string) {
	s.mutate("remove table", func(sc *schema.Schema) bool {
		idx := -1
		for i := range sc.Tables {
			if sc.Tables[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return false
		}
		sc.Tables = append(sc.Tables[:idx:idx], sc.Tables[idx+1:]...)
		sc.Relations = filterRelations(sc.Relations, func(r schema.Relation) bool {
			return r.FromTable != id && r.ToTable != id
		})
		return true
	})
}

// AddColumn appends a column to a table. Unset patch fields default to
// column_<n> and VARCHAR(255). ok is false when the table does not exist.
func (s *Store) AddColumn(tableID string, patch ColumnPatch) (col schema.Column, ok bool) {
	s.mutate("add column", func(sc *schema.Schema) bool {
		t, found := sc.Table(tableID)
		if !found {
			return false
		}
		col = schema.Column{
			ID:   s.newID(),
			Name: fmt.Sprintf("column_%d", len(t.Columns)+1),
			Type: defaultColumnType,
		}
		patch.apply(&col)
		t.Columns = append(t.Columns, col)
		ok = true
		return true
	})
	return col, ok
}

// UpdateColumn patches a column of a table
func (s *Store) UpdateColumn(tableID, columnID string, patch ColumnPatch) {
	s.mutate("update column", func(sc *schema.Schema) bool {
		t, ok := sc.Table(tableID)
		if !ok {
			return false
		}
		c, ok := t.Column(columnID)
		if !ok {
			return false
		}
		patch.apply(c)
		return true
	})
}

// RemoveColumn deletes a column and the relations anchored on it.
// Relations touching other columns of the same table are kept.
func (s *Store) RemoveColumn(tableID, columnID string) {
	s.mutate("remove column", func(sc *schema.Schema) bool {
		t, ok := sc.Table(tableID)
		if !ok {
			return false
		}
		idx := -1
		for i := range t.Columns {
			if t.Columns[i].ID == columnID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return false
		}
		t.Columns = append(t.Columns[:idx:idx], t.Columns[idx+1:]...)
		sc.Relations = filterRelations(sc.Relations, func(r schema.Relation) bool {
			anchoredFrom := r.FromTable == tableID && r.FromCol == columnID
			anchoredTo := r.ToTable == tableID && r.ToCol == columnID
			return !anchoredFrom && !anchoredTo
		})
		return true
	})
}

// AddRelation appends a relation, minting an id when it has none.
// Endpoints are not validated; dangling relations are skipped at render time.
func (s *Store) AddRelation(rel schema.Relation) schema.Relation {
	s.mutate("add relation", func(sc *schema.Schema) bool {
		if rel.ID == "" {
			rel.ID = s.newID()
		}
		if rel.Type == "" {
			rel.Type = schema.OneToMany
		}
		sc.Relations = append(sc.Relations, rel)
		return true
	})
	return rel
}

// RemoveRelation deletes the relation with the given id
func (s *Store) RemoveRelation(id string) {
	s.mutate("remove relation", func(sc *schema.Schema) bool {
		before := len(sc.Relations)
		sc.Relations = filterRelations(sc.Relations, func(r schema.Relation) bool {
			return r.ID != id
		})
		return len(sc.Relations) != before
	})
}

func filterRelations(in []schema.Relation, keep func(schema.Relation) bool) []schema.Relation {
	out := make([]schema.Relation, 0, len(in))
	for _, r := range in {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
