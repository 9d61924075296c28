package codec

import (
	"fmt"

	"github.com/tordrt/schemasync/internal/schema"
)

// Standard renders portable SQL with unquoted identifiers and named constraints
type Standard struct{}

var _ Dialect = Standard{}

// Name implements Dialect
func (Standard) Name() string { return "standard" }

// FormatColumn implements Dialect
func (Standard) FormatColumn(c schema.Column) string {
	return c.Name + " " + c.Type
}

// Generate implements Dialect
func (d Standard) Generate(s schema.Schema) string {
	return layout{
		header: "-- Standard SQL Export",
		quote:  bare,
		column: d.FormatColumn,
		foreignKey: func(e schema.Endpoints) string {
			return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s);",
				e.From.Name, constraintName(e), e.FromCol.Name, e.To.Name, e.ToCol.Name)
		},
	}.generate(s)
}
