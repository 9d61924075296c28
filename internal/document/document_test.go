package document

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemasync/internal/schema"
)

func sample() schema.Schema {
	return schema.Schema{
		Tables: []schema.Table{
			{ID: "t1", Name: "users", PosX: 100.5, PosY: -20, Columns: []schema.Column{
				{ID: "c1", Name: "id", Type: "INT", IsPrimaryKey: true},
				{ID: "c2", Name: "name", Type: "VARCHAR(255)"},
			}},
			{ID: "t2", Name: "products", PosX: 350, PosY: 100, Columns: []schema.Column{
				{ID: "c3", Name: "user_id", Type: "INT", IsForeignKey: true},
			}},
			{ID: "t3", Name: "empty", Columns: []schema.Column{}},
		},
		Relations: []schema.Relation{
			{ID: "r1", FromTable: "t2", FromCol: "c3", ToTable: "t1", ToCol: "c1", Type: schema.OneToMany},
			{ID: "r2", FromTable: "t2", FromCol: "c3", ToTable: "gone", ToCol: "gone", Type: schema.ManyToMany},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []Format{JSON, YAML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, sample(), format))

			got, err := Decode(&buf, format)
			require.NoError(t, err)
			if diff := cmp.Diff(sample(), got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeJSON_FieldNames(t *testing.T) {
	data, err := Marshal(sample())
	require.NoError(t, err)

	for _, key := range []string{`"tables"`, `"relations"`, `"posX"`, `"posY"`, `"pk"`, `"fk"`, `"fromTable"`, `"fromCol"`, `"toTable"`, `"toCol"`, `"type":"1:N"`} {
		assert.Contains(t, string(data), key)
	}
}

func TestDecode_ExistingDocument(t *testing.T) {
	doc := `{
  "tables": [
    {"id": "a", "name": "users", "posX": 100, "posY": 100,
     "columns": [{"id": "x", "name": "id", "type": "INT", "pk": true, "fk": false}]}
  ],
  "relations": [{"id": "r", "fromTable": "a", "fromCol": "x", "toTable": "a", "toCol": "x"}]
}`

	got, err := Unmarshal([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, schema.OneToMany, got.Relations[0].Type, "missing type defaults to 1:N")
	assert.True(t, got.Tables[0].Columns[0].IsPrimaryKey)
}

func TestDecode_NormalizesMissingSlices(t *testing.T) {
	got, err := Decode(strings.NewReader(`{"tables":[{"id":"a","name":"t"}]}`), JSON)
	require.NoError(t, err)
	assert.NotNil(t, got.Relations)
	assert.NotNil(t, got.Tables[0].Columns)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		doc    string
	}{
		{name: "empty", format: JSON, doc: ""},
		{name: "empty yaml", format: YAML, doc: ""},
		{name: "malformed json", format: JSON, doc: `{"tables": [`},
		{name: "wrong shape", format: JSON, doc: `{"tables": "users"}`},
		{name: "malformed yaml", format: YAML, doc: "tables: [\n  - id: a\n name"},
		{name: "missing table id", format: JSON, doc: `{"tables":[{"name":"t"}]}`},
		{name: "duplicate table id", format: JSON, doc: `{"tables":[{"id":"a"},{"id":"a"}]}`},
		{name: "missing column id", format: JSON, doc: `{"tables":[{"id":"a","columns":[{"name":"c"}]}]}`},
		{name: "duplicate column id", format: YAML, doc: "tables:\n  - id: a\n    columns:\n      - id: c\n      - id: c\n"},
		{name: "missing relation id", format: JSON, doc: `{"relations":[{"fromTable":"a"}]}`},
		{name: "duplicate relation id", format: JSON, doc: `{"relations":[{"id":"r"},{"id":"r"}]}`},
		{name: "unknown relation type", format: JSON, doc: `{"relations":[{"id":"r","type":"N:1"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc), tt.format)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDocument), "got %v", err)

			var docErr *InvalidDocumentError
			assert.True(t, errors.As(err, &docErr))
		})
	}
}

func TestValidate_AllowsDanglingRelations(t *testing.T) {
	assert.NoError(t, Validate(sample()))
}

func TestFormats(t *testing.T) {
	assert.Equal(t, YAML, FormatFromPath("schema.YML"))
	assert.Equal(t, YAML, FormatFromPath("dir/schema.yaml"))
	assert.Equal(t, JSON, FormatFromPath("schema.json"))
	assert.Equal(t, JSON, FormatFromPath("schema"))

	f, err := ParseFormat("YAML")
	require.NoError(t, err)
	assert.Equal(t, YAML, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)

	assert.Error(t, Encode(&bytes.Buffer{}, sample(), Format("xml")))
	_, err = Decode(strings.NewReader("{}"), Format("xml"))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidDocument))
}
