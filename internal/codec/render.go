package codec

import (
	"strings"

	"github.com/tordrt/schemasync/internal/schema"
)

// layout captures what differs between dialects
type layout struct {
	header string
	quote  func(ident string) string
	column func(c schema.Column) string
	// foreignKey renders the full ALTER TABLE statement for one relation, without the trailing newline
	foreignKey func(e schema.Endpoints) string
}

func (l layout) generate(s schema.Schema) string {
	var b strings.Builder
	b.WriteString(l.header)
	b.WriteString("\n\n")

	for _, table := range s.Tables {
		l.writeTable(&b, table)
	}

	for _, rel := range s.Relations {
		e, ok := s.ResolveRelation(rel)
		if !ok {
			continue
		}
		b.WriteString(l.foreignKey(e))
		b.WriteString("\n")
	}
	return b.String()
}

func (l layout) writeTable(b *strings.Builder, table schema.Table) {
	defs := make([]string, 0, len(table.Columns)+1)
	var pks []string
	for _, col := range table.Columns {
		defs = append(defs, "  "+l.column(col))
		if col.IsPrimaryKey {
			pks = append(pks, l.quote(col.Name))
		}
	}
	if len(pks) > 0 {
		defs = append(defs, "  PRIMARY KEY ("+strings.Join(pks, ", ")+")")
	}

	b.WriteString("CREATE TABLE ")
	b.WriteString(l.quote(table.Name))
	b.WriteString(" (\n")
	b.WriteString(strings.Join(defs, ",\n"))
	b.WriteString("\n);\n\n")
}

func bare(ident string) string { return ident }

func backtick(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func doubleQuote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// constraintName returns fk_<table>_<column>
func constraintName(e schema.Endpoints) string {
	return "fk_" + e.From.Name + "_" + e.FromCol.Name
}
