package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemasync/internal/schema"
)

// MarkdownFormatter formats schema as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the schema in markdown format
func (f *MarkdownFormatter) Format(s *schema.Schema) error {
	_, _ = fmt.Fprintln(f.writer, "# Database Schema")
	_, _ = fmt.Fprintln(f.writer)

	for _, table := range s.Tables {
		f.FormatTable(s, table)
	}
	return nil
}

// FormatTable formats a single table with its outgoing references
func (f *MarkdownFormatter) FormatTable(s *schema.Schema, table schema.Table) {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", table.Name)
	f.formatColumns(table.Columns)
	f.formatLinks("References", outgoing(s, table.ID), func(l Link) string {
		return fmt.Sprintf("- %s → %s.%s (%s)", l.FromColumn, l.ToTable, l.ToColumn, l.Type)
	})
}

func (f *MarkdownFormatter) formatColumns(cols []schema.Column) {
	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)

	for _, col := range cols {
		if m := markers(col); len(m) > 0 {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s, %s\n", col.Name, col.Type, strings.Join(m, ", "))
		} else {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", col.Name, col.Type)
		}
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *MarkdownFormatter) formatLinks(title string, links []Link, line func(Link) string) {
	if len(links) == 0 {
		return
	}
	_, _ = fmt.Fprintf(f.writer, "### %s\n\n", title)
	for _, l := range links {
		_, _ = fmt.Fprintln(f.writer, line(l))
	}
	_, _ = fmt.Fprintln(f.writer)
}
