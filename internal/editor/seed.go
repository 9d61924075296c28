package editor

import (
	"github.com/tordrt/schemasync/internal/schema"
	"github.com/tordrt/schemasync/internal/store"
)

// Seed fills an empty store with a users table and a products table that
// references it. It reports whether anything was added.
func Seed(s *store.Store) bool {
	if len(s.State().Tables) > 0 {
		return false
	}

	users := s.AddTable("users", 100, 100)
	products := s.AddTable("products", 450, 100)
	name, typ, fk := "user_id", "INT", true
	userID, ok := s.AddColumn(products.ID, store.ColumnPatch{Name: &name, Type: &typ, IsForeignKey: &fk})
	if !ok {
		return false
	}

	s.AddRelation(schema.Relation{
		FromTable: products.ID,
		FromCol:   userID.ID,
		ToTable:   users.ID,
		ToCol:     users.Columns[0].ID,
		Type:      schema.OneToMany,
	})
	return true
}
