package formatter

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemasync/internal/schema"
)

func fixture() *schema.Schema {
	return &schema.Schema{
		Tables: []schema.Table{
			{ID: "t1", Name: "users", Columns: []schema.Column{
				{ID: "c1", Name: "id", Type: "INT", IsPrimaryKey: true},
				{ID: "c2", Name: "email", Type: "VARCHAR(255)"},
			}},
			{ID: "t2", Name: "orders", Columns: []schema.Column{
				{ID: "c3", Name: "id", Type: "INT", IsPrimaryKey: true},
				{ID: "c4", Name: "user_id", Type: "INT", IsForeignKey: true},
			}},
		},
		Relations: []schema.Relation{
			{ID: "r1", FromTable: "t2", FromCol: "c4", ToTable: "t1", ToCol: "c1", Type: schema.OneToMany},
			{ID: "r2", FromTable: "t2", FromCol: "c4", ToTable: "gone", ToCol: "c1", Type: schema.OneToMany},
		},
	}
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).Format(fixture()))

	want := `TABLE users (PK: id)
  id: INT PK
  email: VARCHAR(255)

TABLE orders (PK: id)
  id: INT PK
  user_id: INT FK

  RELATIONS:
    user_id → users.id (1:N)
`
	assert.Equal(t, want, buf.String())
}

func TestMarkdownFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownFormatter(&buf).Format(fixture()))

	out := buf.String()
	assert.Contains(t, out, "# Database Schema\n")
	assert.Contains(t, out, "- **id:** INT, PK\n")
	assert.Contains(t, out, "- **email:** VARCHAR(255)\n")
	assert.Contains(t, out, "### References\n\n- user_id → users.id (1:N)\n")
	assert.NotContains(t, out, "gone")
}

func TestNew(t *testing.T) {
	tests := []struct {
		format  string
		want    any
		wantErr bool
	}{
		{"", &TextFormatter{}, false},
		{"text", &TextFormatter{}, false},
		{"MD", &MarkdownFormatter{}, false},
		{"markdown", &MarkdownFormatter{}, false},
		{"html", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			f, err := New(tt.format, &bytes.Buffer{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, f)
		})
	}
}

func TestMultiFileFormatter(t *testing.T) {
	t.Run("markdown", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out")
		require.NoError(t, NewMultiFileFormatter(dir, FormatMarkdown).Format(fixture()))

		overview, err := os.ReadFile(filepath.Join(dir, "_overview.md"))
		require.NoError(t, err)
		assert.Contains(t, string(overview), "- **orders** (references: users)\n- **users**\n")

		users, err := os.ReadFile(filepath.Join(dir, "users.md"))
		require.NoError(t, err)
		assert.Contains(t, string(users), "### Referenced by\n\n- orders.user_id → id (1:N)\n")
	})

	t.Run("text", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, NewMultiFileFormatter(dir, FormatText).Format(fixture()))

		orders, err := os.ReadFile(filepath.Join(dir, "orders.txt"))
		require.NoError(t, err)
		assert.Contains(t, string(orders), "TABLE orders (PK: id)\n")

		_, err = os.Stat(filepath.Join(dir, "_overview.txt"))
		assert.NoError(t, err)
	})
}
