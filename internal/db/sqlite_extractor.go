package db

import (
	"context"
	"database/sql"

	"github.com/tordrt/schemasync/internal/schema"
)

// untypedColumn is used for SQLite columns declared without a type
const untypedColumn = "BLOB"

// SQLiteExtractor reads tables of a SQLite database
type SQLiteExtractor struct {
	db *sql.DB
}

var _ Extractor = (*SQLiteExtractor)(nil)

// NewSQLiteExtractor creates a new SQLite schema extractor
func NewSQLiteExtractor(client *SQLiteClient) *SQLiteExtractor {
	return &SQLiteExtractor{db: client.DB()}
}

// ExtractDraft extracts the requested tables, or every user table
func (e *SQLiteExtractor) ExtractDraft(ctx context.Context, tables []string) (*schema.Draft, error) {
	return extract(ctx, e, tables)
}

func (e *SQLiteExtractor) tableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`
	return queryStrings(ctx, e.db, query)
}

func (e *SQLiteExtractor) columns(ctx context.Context, tableName string) ([]columnInfo, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, tableName)
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
		if col.typ == "" {
			col.typ = untypedColumn
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// primaryKey orders columns by their position in the key, not in the table
func (e *SQLiteExtractor) primaryKey(ctx context.Context, tableName string) ([]string, error) {
	return queryStrings(ctx, e.db, `SELECT name FROM pragma_table_info(?) WHERE pk > 0 ORDER BY pk`, tableName)
}

// foreignKeys resolves references that omit the target column to the
// referenced table's primary key
func (e *SQLiteExtractor) foreignKeys(ctx context.Context, tableName string) ([]foreignKey, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT "from", "table", "to", seq FROM pragma_foreign_key_list(?) ORDER BY id, seq`, tableName)
	if err != nil {
		return nil, err
	}

	type rawKey struct {
		fk  foreignKey
		to  sql.NullString
		seq int
	}
	var raw []rawKey
	for rows.Next() {
		var r rawKey
		if err := rows.Scan(&r.fk.column, &r.fk.refTable, &r.to, &r.seq); err != nil {
			rows.Close()
			return nil, err
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	fks := make([]foreignKey, 0, len(raw))
	for _, r := range raw {
		r.fk.refColumn = r.to.String
		if !r.to.Valid || r.to.String == "" {
			pk, err := e.primaryKey(ctx, r.fk.refTable)
			if err != nil {
				return nil, err
			}
			if r.seq >= len(pk) {
				continue
			}
			r.fk.refColumn = pk[r.seq]
		}
		fks = append(fks, r.fk)
	}
	return fks, nil
}
