package db

import (
	"context"
	"database/sql"

	"github.com/tordrt/schemasync/internal/schema"
)

// MySQLExtractor reads tables of one MySQL database
type MySQLExtractor struct {
	db         *sql.DB
	schemaName string
}

var _ Extractor = (*MySQLExtractor)(nil)

// NewMySQLExtractor creates a new MySQL schema extractor
func NewMySQLExtractor(client *MySQLClient, schemaName string) *MySQLExtractor {
	return newMySQLExtractor(client.DB(), schemaName)
}

func newMySQLExtractor(db *sql.DB, schemaName string) *MySQLExtractor {
	return &MySQLExtractor{db: db, schemaName: schemaName}
}

// ExtractDraft extracts the requested tables, or all base tables of the database
func (e *MySQLExtractor) ExtractDraft(ctx context.Context, tables []string) (*schema.Draft, error) {
	return extract(ctx, e, tables)
}

func (e *MySQLExtractor) tableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	return queryStrings(ctx, e.db, query, e.schemaName)
}

// columns uses column_type, which keeps lengths and modifiers such as int(11) unsigned
func (e *MySQLExtractor) columns(ctx context.Context, tableName string) ([]columnInfo, error) {
	query := `
		SELECT column_name, column_type
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`

	rows, err := e.db.QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []columnInfo
	for rows.Next() {
		var col columnInfo
		if err := rows.Scan(&col.name, &col.typ); err != nil {
			return nil, err
		}
		col.typ = normalizeType(col.typ)
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (e *MySQLExtractor) primaryKey(ctx context.Context, tableName string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
			AND table_name = ?
			AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`
	return queryStrings(ctx, e.db, query, e.schemaName, tableName)
}

func (e *MySQLExtractor) foreignKeys(ctx context.Context, tableName string) ([]foreignKey, error) {
	query := `
		SELECT column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
			AND table_name = ?
			AND referenced_table_name IS NOT NULL
		ORDER BY constraint_name, ordinal_position
	`

	rows, err := e.db.QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []foreignKey
	for rows.Next() {
		var fk foreignKey
		if err := rows.Scan(&fk.column, &fk.refTable, &fk.refColumn); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// queryStrings runs a single-column text query
func queryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
