package reconcile

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tordrt/schemasync/internal/codec"
	"github.com/tordrt/schemasync/internal/schema"
	"github.com/tordrt/schemasync/internal/sqlparse"
)

func apply(t *testing.T, text string, previous schema.Schema) schema.Schema {
	t.Helper()
	d, err := sqlparse.Decode(text)
	require.NoError(t, err)
	return New(WithLogger(zaptest.NewLogger(t))).Reconcile(d, previous)
}

// canvasSchema mimics a schema built on the canvas, with opaque ids
func canvasSchema() schema.Schema {
	return schema.Schema{
		Tables: []schema.Table{
			{ID: "t-users", Name: "users", PosX: 10, PosY: 20, Columns: []schema.Column{
				{ID: "c-u-id", Name: "id", Type: "INT", IsPrimaryKey: true},
				{ID: "c-u-name", Name: "name", Type: "VARCHAR(255)"},
			}},
			{ID: "t-orders", Name: "orders", PosX: 500, PosY: 20, Columns: []schema.Column{
				{ID: "c-o-id", Name: "id", Type: "INT", IsPrimaryKey: true},
				{ID: "c-o-uid", Name: "user_id", Type: "INT", IsForeignKey: true},
			}},
		},
		Relations: []schema.Relation{
			{ID: "r-1", FromTable: "t-orders", FromCol: "c-o-uid", ToTable: "t-users", ToCol: "c-u-id", Type: schema.OneToOne},
		},
	}
}

func TestPair(t *testing.T) {
	tests := []struct {
		name     string
		current  []string
		previous []string
		want     []int
	}{
		{name: "empty", current: nil, previous: nil, want: []int{}},
		{name: "same names", current: []string{"a", "b"}, previous: []string{"a", "b"}, want: []int{0, 1}},
		{name: "case insensitive", current: []string{"Users"}, previous: []string{"USERS"}, want: []int{0}},
		{name: "reordered", current: []string{"b", "a"}, previous: []string{"a", "b"}, want: []int{1, 0}},
		{name: "rename falls back to position", current: []string{"x", "b"}, previous: []string{"a", "b"}, want: []int{0, 1}},
		{
			name:     "name pass runs before positional pass",
			current:  []string{"renamed", "a"},
			previous: []string{"a", "b"},
			want:     []int{-1, 0},
		},
		{
			name:     "no positional fallback when counts differ",
			current:  []string{"x", "b", "c"},
			previous: []string{"a", "b"},
			want:     []int{-1, 1, -1},
		},
		{
			name:     "duplicates consume once",
			current:  []string{"a", "a"},
			previous: []string{"a", "z"},
			want:     []int{0, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pair(tt.current, tt.previous))
		})
	}
}

func TestReconcile_IdentityPreservedOnRename(t *testing.T) {
	prev := canvasSchema()
	text := strings.ReplaceAll(codec.Standard{}.Generate(prev), "users", "accounts")

	got := apply(t, text, prev)

	want := canvasSchema()
	want.Tables[0].Name = "accounts"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Reconcile mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_ColumnRename(t *testing.T) {
	prev := canvasSchema()
	text := strings.Replace(codec.MySQL{}.Generate(prev), "`name`", "`full_name`", 1)

	got := apply(t, text, prev)

	require.Len(t, got.Tables[0].Columns, 2)
	assert.Equal(t, "full_name", got.Tables[0].Columns[1].Name)
	assert.Equal(t, "c-u-name", got.Tables[0].Columns[1].ID)
}

func TestReconcile_NewColumnWhenCountChanges(t *testing.T) {
	prev := canvasSchema()
	text := `CREATE TABLE users (id INT PRIMARY KEY, full_name TEXT, email TEXT);
CREATE TABLE orders (id INT PRIMARY KEY, user_id INT REFERENCES users(id));`

	got := apply(t, text, prev)

	cols := got.Tables[0].Columns
	assert.Equal(t, "c-u-id", cols[0].ID)
	assert.Equal(t, "col_users_full_name", cols[1].ID)
	assert.Equal(t, "col_users_email", cols[2].ID)
	assert.Equal(t, "t-users", got.Tables[0].ID)
}

func TestReconcile_NewTableKeepsSyntheticIDAndGridPosition(t *testing.T) {
	prev := canvasSchema()
	text := codec.Standard{}.Generate(prev) + "CREATE TABLE products (id INT PRIMARY KEY);\n"

	got := apply(t, text, prev)

	require.Len(t, got.Tables, 3)
	assert.Equal(t, "t-users", got.Tables[0].ID)
	assert.Equal(t, "t-orders", got.Tables[1].ID)
	products := got.Tables[2]
	assert.Equal(t, "table_products", products.ID)
	assert.Equal(t, "col_products_id", products.Columns[0].ID)
	x, y := schema.GridPosition(2)
	assert.Equal(t, x, products.PosX)
	assert.Equal(t, y, products.PosY)
}

func TestReconcile_Idempotent(t *testing.T) {
	texts := map[string]string{
		"generated": codec.Postgres{}.Generate(canvasSchema()),
		"inline keys": `CREATE TABLE users (id INT PRIMARY KEY, email TEXT);
CREATE TABLE posts (id INT PRIMARY KEY, author_id INT REFERENCES users(id), editor_id INT REFERENCES ghosts(id));`,
		"duplicates": `CREATE TABLE t (a INT, a TEXT); CREATE TABLE t (b INT);
ALTER TABLE t ADD FOREIGN KEY (a) REFERENCES t (b);`,
	}

	for name, text := range texts {
		t.Run(name, func(t *testing.T) {
			first := apply(t, text, canvasSchema())
			second := apply(t, text, first)
			if diff := cmp.Diff(first, second); diff != "" {
				t.Errorf("second application changed the schema (-first +second):\n%s", diff)
			}
		})
	}
}

func TestReconcile_RoundTrip(t *testing.T) {
	single := schema.Schema{Tables: []schema.Table{{ID: "solo", Name: "solo", Columns: []schema.Column{
		{ID: "s1", Name: "id", Type: "BIGINT", IsPrimaryKey: true},
		{ID: "s2", Name: "price", Type: "DECIMAL(10,2)"},
	}}}}

	many := canvasSchema()
	many.Tables = append(many.Tables, schema.Table{ID: "t-items", Name: "order_items", Columns: []schema.Column{
		{ID: "i1", Name: "order_id", Type: "INT", IsPrimaryKey: true, IsForeignKey: true},
		{ID: "i2", Name: "line_no", Type: "INT", IsPrimaryKey: true},
		{ID: "i3", Name: "note", Type: "DOUBLE PRECISION"},
	}})
	many.Relations = append(many.Relations, schema.Relation{
		ID: "r-2", FromTable: "t-items", FromCol: "i1", ToTable: "t-orders", ToCol: "c-o-id", Type: schema.OneToMany,
	})

	keywords := schema.Schema{
		Tables: []schema.Table{
			{ID: "t-settings", Name: "settings", Columns: []schema.Column{
				{ID: "k1", Name: "id", Type: "INT", IsPrimaryKey: true},
				{ID: "k2", Name: "key", Type: "VARCHAR(255)"},
				{ID: "k3", Name: "check", Type: "VARCHAR(255)"},
				{ID: "k4", Name: "unique", Type: "VARCHAR(255)"},
				{ID: "k5", Name: "index", Type: "VARCHAR(255)"},
				{ID: "k6", Name: "fulltext", Type: "TEXT"},
			}},
			{ID: "t-overrides", Name: "overrides", PosX: 350, Columns: []schema.Column{
				{ID: "o1", Name: "id", Type: "INT", IsPrimaryKey: true},
				{ID: "o2", Name: "setting_key", Type: "VARCHAR(255)", IsForeignKey: true},
			}},
		},
		Relations: []schema.Relation{
			{ID: "r-k", FromTable: "t-overrides", FromCol: "o2", ToTable: "t-settings", ToCol: "k2", Type: schema.OneToMany},
		},
	}

	schemas := map[string]schema.Schema{
		"empty":    {Tables: []schema.Table{}, Relations: []schema.Relation{}},
		"single":   single.Clone(),
		"many":     many,
		"keywords": keywords,
	}

	for _, dialect := range codec.Names() {
		for name, s := range schemas {
			t.Run(dialect+"/"+name, func(t *testing.T) {
				text, err := codec.Generate(dialect, s)
				require.NoError(t, err)

				got := apply(t, text, s)
				if diff := cmp.Diff(s, got); diff != "" {
					t.Errorf("round trip changed the schema (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestReconcile_RepairsIDCollisions(t *testing.T) {
	prev := schema.Schema{Tables: []schema.Table{
		{ID: "table_users", Name: "people", Columns: []schema.Column{
			{ID: "col_users_email", Name: "contact", Type: "TEXT"},
		}},
	}}
	text := `CREATE TABLE people (contact TEXT, email TEXT);
CREATE TABLE users (id INT, email TEXT, email TEXT);
ALTER TABLE people ADD FOREIGN KEY (email) REFERENCES users (email);`

	got := apply(t, text, prev)

	require.Len(t, got.Tables, 2)
	people, users := got.Tables[0], got.Tables[1]
	assert.Equal(t, "table_users", people.ID)
	assert.Equal(t, "col_users_email", people.Columns[0].ID)
	assert.Equal(t, "col_people_email", people.Columns[1].ID)

	assert.Equal(t, "table_users_2", users.ID)
	assert.Equal(t, "col_users_email", users.Columns[1].ID)
	assert.Equal(t, "col_users_email_2", users.Columns[2].ID)

	require.Len(t, got.Relations, 1)
	assert.Equal(t, schema.Relation{
		ID:        "rel_0",
		FromTable: "table_users",
		FromCol:   "col_people_email",
		ToTable:   "table_users_2",
		ToCol:     "col_users_email",
		Type:      schema.OneToMany,
	}, got.Relations[0])
}

func TestReconcile_UnresolvedRelationKeptAsIs(t *testing.T) {
	got := apply(t, `CREATE TABLE a (x INT REFERENCES ghost(id));`, schema.Schema{})

	require.Len(t, got.Relations, 1)
	assert.Equal(t, schema.Relation{
		ID: "rel_0", FromTable: "table_a", FromCol: "col_a_x", ToTable: "table_ghost", ToCol: "col_ghost_id", Type: schema.OneToMany,
	}, got.Relations[0])
	assert.NotContains(t, codec.Standard{}.Generate(got), "ALTER TABLE")
}

func TestReconcile_RelationIDCollision(t *testing.T) {
	prev := canvasSchema()
	prev.Relations[0].ID = "rel_1"
	text := `CREATE TABLE users (id INT PRIMARY KEY, name TEXT);
CREATE TABLE orders (id INT PRIMARY KEY, user_id INT, FOREIGN KEY (id) REFERENCES users (id), FOREIGN KEY (user_id) REFERENCES users (id));`

	got := apply(t, text, prev)

	require.Len(t, got.Relations, 2)
	assert.Equal(t, "rel_0", got.Relations[0].ID)
	assert.Equal(t, "rel_1", got.Relations[1].ID)
	assert.Equal(t, schema.OneToOne, got.Relations[1].Type)

	text = `CREATE TABLE users (id INT PRIMARY KEY, name TEXT);
CREATE TABLE orders (id INT PRIMARY KEY, user_id INT, FOREIGN KEY (user_id) REFERENCES users (id), FOREIGN KEY (id) REFERENCES users (id));`
	got = apply(t, text, prev)

	require.Len(t, got.Relations, 2)
	assert.Equal(t, "rel_1", got.Relations[0].ID, "inherited from the previous relation")
	assert.Equal(t, "rel_1_2", got.Relations[1].ID)
}

func TestReconcile_SyntheticIDFallback(t *testing.T) {
	b := schema.NewBuilder()
	users := b.AddTable("users")
	b.AddColumn(users, "id", "INT", true, false)
	orders := b.AddTable("orders")
	b.AddColumn(orders, "user_id", "INT", false, true)
	b.AddRelation(schema.RelationRef{FromTable: "orders", FromColumn: "user_id", ToTable: "users", ToColumn: "id"})
	d := b.Build()
	d.Refs = nil

	prev := schema.Schema{Tables: []schema.Table{
		{ID: "U", Name: "users", Columns: []schema.Column{{ID: "UID", Name: "id"}}},
		{ID: "O", Name: "orders", Columns: []schema.Column{{ID: "OUID", Name: "user_id"}}},
	}}

	got := Reconcile(d, prev)

	require.Len(t, got.Relations, 1)
	r := got.Relations[0]
	assert.Equal(t, []string{"O", "OUID", "U", "UID"}, []string{r.FromTable, r.FromCol, r.ToTable, r.ToCol})
}

func TestReconcile_DoesNotMutateInputs(t *testing.T) {
	prev := canvasSchema()
	d, err := sqlparse.Decode(strings.ReplaceAll(codec.Standard{}.Generate(prev), "orders", "purchases"))
	require.NoError(t, err)
	draftBefore := d.Schema.Clone()

	_ = Reconcile(d, prev)

	assert.Equal(t, canvasSchema(), prev)
	assert.Equal(t, draftBefore, d.Schema)
}

func TestReconcile_NilDraft(t *testing.T) {
	prev := canvasSchema()
	assert.Equal(t, prev, Reconcile(nil, prev))
}

func TestIDSet_Claim(t *testing.T) {
	ids := idSet{}
	ids.reserve("a")
	got := []string{ids.claim("a"), ids.claim("a"), ids.claim("b"), ids.claim("a_2")}
	assert.Equal(t, []string{"a_2", "a_3", "b", "a_2_2"}, got)
	assert.Len(t, ids, 5, fmt.Sprint(ids))
}
