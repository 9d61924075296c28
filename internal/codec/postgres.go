package codec

import (
	"fmt"

	"github.com/tordrt/schemasync/internal/schema"
)

// Postgres quotes identifiers with double quotes and names every foreign key
type Postgres struct{}

var _ Dialect = Postgres{}

// Name implements Dialect
func (Postgres) Name() string { return "postgres" }

// FormatColumn implements Dialect
func (Postgres) FormatColumn(c schema.Column) string {
	return doubleQuote(c.Name) + " " + c.Type
}

// Generate implements Dialect
func (d Postgres) Generate(s schema.Schema) string {
	return layout{
		header: "-- PostgreSQL Export",
		quote:  doubleQuote,
		column: d.FormatColumn,
		foreignKey: func(e schema.Endpoints) string {
			return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s);",
				doubleQuote(e.From.Name), doubleQuote(constraintName(e)), doubleQuote(e.FromCol.Name),
				doubleQuote(e.To.Name), doubleQuote(e.ToCol.Name))
		},
	}.generate(s)
}
