package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tordrt/schemasync/internal/config"
	"github.com/tordrt/schemasync/internal/editor"
	"github.com/tordrt/schemasync/internal/schema"
	"github.com/tordrt/schemasync/internal/storage"
	"github.com/tordrt/schemasync/internal/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	editor *editor.Editor
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id%d", n)
	}
}

func newTestServer(t *testing.T, withStorage bool) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	ed, err := editor.New(store.New(store.WithIDGenerator(sequentialIDs())), editor.WithLogger(logger))
	require.NoError(t, err)

	opts := []Option{WithLogger(logger), WithConfig(config.ServerConfig{AllowedOrigins: []string{"http://ui.test"}})}
	if withStorage {
		st, err := storage.NewFileStorage(t.TempDir())
		require.NoError(t, err)
		opts = append(opts, WithStorage(st))
	}
	return &testServer{t: t, router: New(ed, opts...).Router(), editor: ed}
}

func (s *testServer) do(method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(path, "/api/") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	w, _ := s.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestApplySQLAndPreview(t *testing.T) {
	s := newTestServer(t, false)

	w, env := s.do(http.MethodPost, "/api/v1/sql", ApplySQLRequest{
		SQL: "CREATE TABLE users (id INT PRIMARY KEY);\nCREATE TABLE posts (id INT PRIMARY KEY, user_id INT REFERENCES users(id));",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "success", env.Status)
	merged := decode[schema.Schema](t, env.Data)
	assert.Len(t, merged.Tables, 2)
	assert.Len(t, merged.Relations, 1)

	w, env = s.do(http.MethodGet, "/api/v1/sql?dialect=mysql", nil)
	require.Equal(t, http.StatusOK, w.Code)
	preview := decode[map[string]string](t, env.Data)
	assert.Equal(t, "mysql", preview["dialect"])
	assert.Contains(t, preview["sql"], "CREATE TABLE `users`")

	w, env = s.do(http.MethodGet, "/api/v1/sql", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "standard", decode[map[string]string](t, env.Data)["dialect"])

	w, env = s.do(http.MethodGet, "/api/v1/sql?dialect=oracle", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", env.Status)
	assert.Contains(t, env.Error, "unknown dialect")
}

func TestApplySQL_NoTables(t *testing.T) {
	s := newTestServer(t, false)
	s.editor.Store().AddTable("keep", 0, 0)

	w, env := s.do(http.MethodPost, "/api/v1/sql", ApplySQLRequest{SQL: "SELECT 1;"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "error", env.Status)
	assert.Len(t, s.editor.Store().State().Tables, 1)

	w, _ = s.do(http.MethodPost, "/api/v1/sql", "{broken")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDialects(t *testing.T) {
	s := newTestServer(t, false)

	w, env := s.do(http.MethodGet, "/api/v1/dialects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[struct {
		Dialects []string `json:"dialects"`
		Selected string   `json:"selected"`
	}](t, env.Data)
	assert.Equal(t, []string{"mysql", "postgres", "standard"}, got.Dialects)
	assert.Equal(t, "standard", got.Selected)

	w, _ = s.do(http.MethodPut, "/api/v1/dialect", SetDialectRequest{Dialect: "postgres"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "postgres", s.editor.Dialect())

	w, _ = s.do(http.MethodPut, "/api/v1/dialect", SetDialectRequest{Dialect: "cobol"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = s.do(http.MethodPut, "/api/v1/dialect", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSchemaDocument(t *testing.T) {
	s := newTestServer(t, false)
	doc := `{"tables":[{"id":"t1","name":"users","posX":1,"posY":2,"columns":[{"id":"c1","name":"id","type":"INT","pk":true,"fk":false}]}],"relations":[]}`

	w, _ := s.do(http.MethodPut, "/api/v1/schema", doc)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := s.do(http.MethodGet, "/api/v1/schema", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[schema.Schema](t, env.Data)
	require.Len(t, got.Tables, 1)
	assert.Equal(t, "t1", got.Tables[0].ID)

	yamlDoc := "tables:\n  - id: t9\n    name: yaml_table\n    posX: 0\n    posY: 0\n    columns: []\nrelations: []\n"
	w, _ = s.do(http.MethodPut, "/api/v1/schema?format=yaml", yamlDoc)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "yaml_table", s.editor.Store().State().Tables[0].Name)

	w, env = s.do(http.MethodPut, "/api/v1/schema", `{"tables":[{"id":"","name":"x"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid schema document", env.Message)
	assert.Equal(t, "yaml_table", s.editor.Store().State().Tables[0].Name, "invalid documents leave the schema untouched")

	w, _ = s.do(http.MethodPut, "/api/v1/schema?format=xml", doc)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEntityRoutes(t *testing.T) {
	s := newTestServer(t, false)

	w, env := s.do(http.MethodPost, "/api/v1/tables", CreateTableRequest{Name: "users", PosX: 10, PosY: 20})
	require.Equal(t, http.StatusCreated, w.Code)
	users := decode[struct {
		Table schema.Table `json:"table"`
	}](t, env.Data).Table
	assert.Equal(t, "users", users.Name)

	w, _ = s.do(http.MethodPost, "/api/v1/tables", CreateTableRequest{Name: "posts"})
	require.Equal(t, http.StatusCreated, w.Code)
	posts := s.editor.Store().State().Tables[1]

	w, env = s.do(http.MethodPost, "/api/v1/tables/"+posts.ID+"/columns", map[string]interface{}{"name": "user_id", "type": "INT", "fk": true})
	require.Equal(t, http.StatusCreated, w.Code)
	col := decode[struct {
		Column schema.Column `json:"column"`
	}](t, env.Data).Column
	assert.True(t, col.IsForeignKey)

	w, _ = s.do(http.MethodPost, "/api/v1/tables/ghost/columns", map[string]interface{}{})
	assert.Equal(t, http.StatusOK, w.Code, "missing table is a no-op")

	w, env = s.do(http.MethodPost, "/api/v1/relations", schema.Relation{
		FromTable: posts.ID, FromCol: col.ID, ToTable: users.ID, ToCol: users.Columns[0].ID,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	rel := decode[struct {
		Relation schema.Relation `json:"relation"`
	}](t, env.Data).Relation
	assert.Equal(t, schema.OneToMany, rel.Type)

	w, env = s.do(http.MethodPost, "/api/v1/relations", schema.Relation{Type: "N:1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Relation type must be 1:1, 1:N or N:N", env.Message)

	w, _ = s.do(http.MethodPatch, "/api/v1/tables/"+users.ID, map[string]interface{}{"name": "accounts"})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(http.MethodPatch, "/api/v1/tables/"+posts.ID+"/columns/"+col.ID, map[string]interface{}{"type": "BIGINT"})
	require.Equal(t, http.StatusOK, w.Code)

	st := s.editor.Store().State()
	assert.Equal(t, "accounts", st.Tables[0].Name)
	assert.Equal(t, "BIGINT", st.Tables[1].Columns[1].Type)

	w, env = s.do(http.MethodDelete, "/api/v1/tables/"+posts.ID+"/columns/"+col.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[schema.Schema](t, env.Data).Relations, "relation follows its column")

	w, _ = s.do(http.MethodDelete, "/api/v1/relations/nope", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, env = s.do(http.MethodDelete, "/api/v1/tables/"+users.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[schema.Schema](t, env.Data).Tables, 1)
}

func TestProjects(t *testing.T) {
	s := newTestServer(t, true)
	s.editor.Store().AddTable("users", 0, 0)

	w, _ := s.do(http.MethodPut, "/api/v1/projects/shop", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := s.do(http.MethodGet, "/api/v1/projects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	projects := decode[[]storage.Project](t, env.Data)
	require.Len(t, projects, 1)
	assert.Equal(t, "shop", projects[0].Name)

	s.editor.Store().Replace(schema.Schema{})
	w, env = s.do(http.MethodPost, "/api/v1/projects/shop/load", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[schema.Schema](t, env.Data).Tables, 1)

	w, _ = s.do(http.MethodPost, "/api/v1/projects/missing/load", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = s.do(http.MethodPut, "/api/v1/projects/%20", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProjects_WithoutStorage(t *testing.T) {
	s := newTestServer(t, false)
	w, env := s.do(http.MethodGet, "/api/v1/projects", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, errNoStorage.Error(), env.Error)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/schema", nil)
	req.Header.Set("Origin", "http://ui.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, "http://ui.test", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/schema", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
