// Package formatter renders a schema as a human readable summary.
package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemasync/internal/schema"
)

const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// Formatter writes a schema summary
type Formatter interface {
	Format(s *schema.Schema) error
}

// New returns the formatter for format writing to w
func New(format string, w io.Writer) (Formatter, error) {
	switch strings.ToLower(format) {
	case FormatText, "":
		return NewTextFormatter(w), nil
	case FormatMarkdown, "md":
		return NewMarkdownFormatter(w), nil
	}
	return nil, fmt.Errorf("unsupported output format: %s (supported: text, markdown)", format)
}

// Link is a relation with its endpoints resolved to names
type Link struct {
	FromTable  string
	FromColumn string
	ToTable    string
	ToColumn   string
	Type       schema.RelationType
}

// outgoing returns the resolved relations starting at table id.
// Dangling relations are skipped.
func outgoing(s *schema.Schema, id string) []Link {
	return links(s, func(r schema.Relation) bool { return r.FromTable == id })
}

// incoming returns the resolved relations pointing at table id
func incoming(s *schema.Schema, id string) []Link {
	return links(s, func(r schema.Relation) bool { return r.ToTable == id })
}

func links(s *schema.Schema, match func(schema.Relation) bool) []Link {
	var out []Link
	for _, r := range s.Relations {
		if !match(r) {
			continue
		}
		e, ok := s.ResolveRelation(r)
		if !ok {
			continue
		}
		out = append(out, Link{
			FromTable:  e.From.Name,
			FromColumn: e.FromCol.Name,
			ToTable:    e.To.Name,
			ToColumn:   e.ToCol.Name,
			Type:       r.Type,
		})
	}
	return out
}

func primaryKey(t schema.Table) []string {
	var pk []string
	for _, c := range t.Columns {
		if c.IsPrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

func markers(c schema.Column) []string {
	var m []string
	if c.IsPrimaryKey {
		m = append(m, "PK")
	}
	if c.IsForeignKey {
		m = append(m, "FK")
	}
	return m
}
