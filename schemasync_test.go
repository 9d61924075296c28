package schemasync

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatabaseURL(t *testing.T) {
	tests := []struct {
		url      string
		wantType string
		wantConn string
		wantErr  bool
	}{
		{url: "postgres://u:p@localhost/db", wantType: "postgres", wantConn: "postgres://u:p@localhost/db"},
		{url: "postgresql://localhost/db", wantType: "postgres", wantConn: "postgresql://localhost/db"},
		{url: "mysql://u:p@tcp(localhost:3306)/shop", wantType: "mysql", wantConn: "u:p@tcp(localhost:3306)/shop"},
		{url: "sqlite://data/app.db", wantType: "sqlite", wantConn: "data/app.db"},
		{url: "invalid://test.db", wantErr: true},
		{url: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			dbType, conn, err := parseDatabaseURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, dbType)
			assert.Equal(t, tt.wantConn, conn)
		})
	}
}

func newSQLiteDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	conn, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec(`
		CREATE TABLE schema_migrations (version INTEGER PRIMARY KEY);
		CREATE TABLE users (id INTEGER PRIMARY KEY, email VARCHAR(255));
		CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id), total NUMERIC(10,2));
	`)
	require.NoError(t, err)
	return "sqlite://" + path
}

func tableNames(s Schema) []string {
	names := []string{}
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	return names
}

func TestIntrospect(t *testing.T) {
	ctx := context.Background()
	url := newSQLiteDatabase(t)

	tests := []struct {
		name          string
		opts          *Options
		wantTables    []string
		wantRelations int
	}{
		{name: "all tables", opts: nil, wantTables: []string{"orders", "schema_migrations", "users"}, wantRelations: 1},
		{name: "specific tables", opts: &Options{Tables: []string{"users", "orders"}}, wantTables: []string{"users", "orders"}, wantRelations: 1},
		{name: "excluded tables", opts: &Options{ExcludeTables: []string{"schema_migrations", "users"}}, wantTables: []string{"orders"}, wantRelations: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Introspect(ctx, url, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTables, tableNames(d.Schema))
			assert.Len(t, d.Relations, tt.wantRelations)
			assert.Len(t, d.Refs, tt.wantRelations)
			assert.Equal(t, 100.0, d.Tables[0].PosX)
		})
	}

	_, err := Introspect(ctx, "invalid://x", nil)
	assert.Error(t, err)
}

func TestRoundTripThroughSQL(t *testing.T) {
	d, err := Introspect(context.Background(), newSQLiteDatabase(t), &Options{ExcludeTables: []string{"schema_migrations"}})
	require.NoError(t, err)
	current := Merge(d, Schema{})

	for _, dialect := range []string{"standard", "mysql", "postgres"} {
		t.Run(dialect, func(t *testing.T) {
			text, err := GenerateSQL(current, dialect)
			require.NoError(t, err)

			parsed, err := ParseSQL(text)
			require.NoError(t, err)

			if diff := cmp.Diff(current, Merge(parsed, current)); diff != "" {
				t.Errorf("re-parsed schema mismatch (-want +got):\n%s", diff)
			}
		})
	}

	_, err = GenerateSQL(current, "oracle")
	assert.Error(t, err)
}
