// Package db reads table definitions from live PostgreSQL, MySQL and SQLite
// databases and turns them into schema drafts.
package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/tordrt/schemasync/internal/schema"
)

// Extractor reads a draft from a connected database.
// If tables is empty, every base table is extracted.
type Extractor interface {
	ExtractDraft(ctx context.Context, tables []string) (*schema.Draft, error)
}

// tableInfo is what every backend reads for a single table
type tableInfo struct {
	name        string
	columns     []columnInfo
	primaryKey  []string
	foreignKeys []foreignKey
}

type columnInfo struct {
	name string
	typ  string
}

type foreignKey struct {
	column    string
	refTable  string
	refColumn string
}

// source is the per-backend catalog access used by extract
type source interface {
	tableNames(ctx context.Context) ([]string, error)
	columns(ctx context.Context, table string) ([]columnInfo, error)
	primaryKey(ctx context.Context, table string) ([]string, error)
	foreignKeys(ctx context.Context, table string) ([]foreignKey, error)
}

// extract reads the requested tables from src and builds their draft
func extract(ctx context.Context, src source, requested []string) (*schema.Draft, error) {
	names := requested
	if len(names) == 0 {
		var err error
		if names, err = src.tableNames(ctx); err != nil {
			return nil, fmt.Errorf("failed to get table names: %w", err)
		}
	}

	tables := make([]tableInfo, 0, len(names))
	for _, name := range names {
		info, err := extractTable(ctx, src, name)
		if err != nil {
			return nil, fmt.Errorf("failed to extract table %s: %w", name, err)
		}
		tables = append(tables, info)
	}
	return buildDraft(tables), nil
}

// extractTable extracts all information for a single table
func extractTable(ctx context.Context, src source, name string) (tableInfo, error) {
	info := tableInfo{name: name}
	var err error

	if info.columns, err = src.columns(ctx, name); err != nil {
		return info, fmt.Errorf("failed to extract columns: %w", err)
	}
	if len(info.columns) == 0 {
		return info, fmt.Errorf("table %s not found", name)
	}
	if info.primaryKey, err = src.primaryKey(ctx, name); err != nil {
		return info, fmt.Errorf("failed to extract primary key: %w", err)
	}
	if info.foreignKeys, err = src.foreignKeys(ctx, name); err != nil {
		return info, fmt.Errorf("failed to extract foreign keys: %w", err)
	}
	return info, nil
}

// buildDraft lays tables out in extraction order. Foreign keys pointing at
// tables outside the extracted set still flag their column but add no relation.
func buildDraft(tables []tableInfo) *schema.Draft {
	b := schema.NewBuilder()
	extracted := make(map[string]bool, len(tables))
	for _, t := range tables {
		extracted[t.name] = true
	}

	for _, t := range tables {
		i := b.AddTable(t.name)
		for _, col := range t.columns {
			b.AddColumn(i, col.name, col.typ, contains(t.primaryKey, col.name), false)
		}
		for _, fk := range t.foreignKeys {
			b.MarkForeignKeyAt(i, fk.column)
		}
	}

	for _, t := range tables {
		for _, fk := range t.foreignKeys {
			if !extracted[fk.refTable] {
				continue
			}
			b.AddRelation(schema.RelationRef{
				FromTable:  t.name,
				FromColumn: fk.column,
				ToTable:    fk.refTable,
				ToColumn:   fk.refColumn,
			})
		}
	}
	return b.Build()
}

// normalizeType upper-cases a catalog type and collapses its whitespace,
// matching how types read from SQL text are stored
func normalizeType(t string) string {
	return strings.ToUpper(strings.Join(strings.Fields(t), " "))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
