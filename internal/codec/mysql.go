package codec

import (
	"fmt"

	"github.com/tordrt/schemasync/internal/schema"
)

// MySQL quotes identifiers with backticks and leaves foreign keys unnamed
type MySQL struct{}

var _ Dialect = MySQL{}

// Name implements Dialect
func (MySQL) Name() string { return "mysql" }

// FormatColumn implements Dialect
func (MySQL) FormatColumn(c schema.Column) string {
	return backtick(c.Name) + " " + c.Type
}

// Generate implements Dialect
func (d MySQL) Generate(s schema.Schema) string {
	return layout{
		header: "-- MySQL Export",
		quote:  backtick,
		column: d.FormatColumn,
		foreignKey: func(e schema.Endpoints) string {
			return fmt.Sprintf("ALTER TABLE %s ADD FOREIGN KEY (%s) REFERENCES %s (%s);",
				backtick(e.From.Name), backtick(e.FromCol.Name), backtick(e.To.Name), backtick(e.ToCol.Name))
		},
	}.generate(s)
}
