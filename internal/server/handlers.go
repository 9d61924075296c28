package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tordrt/schemasync/internal/codec"
	"github.com/tordrt/schemasync/internal/document"
	"github.com/tordrt/schemasync/internal/editor"
	"github.com/tordrt/schemasync/internal/schema"
	"github.com/tordrt/schemasync/internal/storage"
	"github.com/tordrt/schemasync/internal/store"
)

var errNoStorage = errors.New("project storage is not configured")

// Handler serves the API routes for one editor
type Handler struct {
	editor  *editor.Editor
	storage storage.Storage
	logger  *zap.Logger
}

// NewHandler creates a handler. st may be nil, which disables the project routes.
func NewHandler(ed *editor.Editor, st storage.Storage, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{editor: ed, storage: st, logger: logger}
}

// ApplySQLRequest carries SQL text typed in the editor
type ApplySQLRequest struct {
	SQL string `json:"sql"`
}

// SetDialectRequest selects the preview dialect
type SetDialectRequest struct {
	Dialect string `json:"dialect" binding:"required"`
}

// CreateTableRequest places a new table on the canvas
type CreateTableRequest struct {
	Name string  `json:"name"`
	PosX float64 `json:"posX"`
	PosY float64 `json:"posY"`
}

func (h *Handler) state() schema.Schema {
	return h.editor.Store().State()
}

// GetSchema returns the current schema document
func (h *Handler) GetSchema(c *gin.Context) {
	success(c, http.StatusOK, h.state(), "")
}

// PutSchema replaces the schema with the request body, JSON unless ?format=yaml
func (h *Handler) PutSchema(c *gin.Context) {
	format, err := document.ParseFormat(c.Query("format"))
	if err != nil {
		fail(c, http.StatusBadRequest, err, "Unsupported document format")
		return
	}

	if err := h.editor.ImportDocument(c.Request.Body, format); err != nil {
		if errors.Is(err, document.ErrInvalidDocument) {
			fail(c, http.StatusBadRequest, err, "Invalid schema document")
			return
		}
		fail(c, http.StatusInternalServerError, err, "Error while importing the schema")
		return
	}

	success(c, http.StatusOK, h.state(), "Schema imported successfully")
}

// GetSQL renders the schema in ?dialect=, or the selected dialect
func (h *Handler) GetSQL(c *gin.Context) {
	dialect := c.Query("dialect")
	if dialect == "" {
		dialect = h.editor.Dialect()
	}

	sql, err := h.editor.PreviewAs(dialect)
	if err != nil {
		fail(c, http.StatusBadRequest, err, "Unknown dialect")
		return
	}

	success(c, http.StatusOK, gin.H{"dialect": dialect, "sql": sql}, "")
}

// ApplySQL parses SQL text into the schema. Text without a single table is rejected
// and leaves the schema untouched.
func (h *Handler) ApplySQL(c *gin.Context) {
	var req ApplySQLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	merged, err := h.editor.ApplySQL(req.SQL)
	if err != nil {
		if errors.Is(err, editor.ErrNoTables) {
			fail(c, http.StatusUnprocessableEntity, err, "No table definitions found")
			return
		}
		fail(c, http.StatusBadRequest, err, "Error while applying SQL")
		return
	}

	success(c, http.StatusOK, merged, "SQL applied successfully")
}

// ListDialects returns the registered dialects and the selected one
func (h *Handler) ListDialects(c *gin.Context) {
	success(c, http.StatusOK, gin.H{
		"dialects": codec.Names(),
		"selected": h.editor.Dialect(),
	}, "")
}

// SetDialect changes the preview dialect
func (h *Handler) SetDialect(c *gin.Context) {
	var req SetDialectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if err := h.editor.SetDialect(req.Dialect); err != nil {
		fail(c, http.StatusBadRequest, err, "Unknown dialect")
		return
	}
	success(c, http.StatusOK, gin.H{"selected": h.editor.Dialect()}, "Dialect selected")
}

// CreateTable adds a table with an id primary key column
func (h *Handler) CreateTable(c *gin.Context) {
	var req CreateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	table := h.editor.Store().AddTable(req.Name, req.PosX, req.PosY)
	success(c, http.StatusCreated, gin.H{"table": table, "schema": h.state()}, "Table created successfully")
}

// UpdateTable patches name or position. Unknown ids leave the schema unchanged.
func (h *Handler) UpdateTable(c *gin.Context) {
	var patch store.TablePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	h.editor.Store().UpdateTable(c.Param("id"), patch)
	success(c, http.StatusOK, h.state(), "")
}

// DeleteTable removes a table and its relations
func (h *Handler) DeleteTable(c *gin.Context) {
	h.editor.Store().RemoveTable(c.Param("id"))
	success(c, http.StatusOK, h.state(), "")
}

// CreateColumn appends a column to a table
func (h *Handler) CreateColumn(c *gin.Context) {
	var patch store.ColumnPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	col, ok := h.editor.Store().AddColumn(c.Param("id"), patch)
	if !ok {
		success(c, http.StatusOK, gin.H{"schema": h.state()}, "Table not found, nothing changed")
		return
	}
	success(c, http.StatusCreated, gin.H{"column": col, "schema": h.state()}, "Column created successfully")
}

// UpdateColumn patches a column
func (h *Handler) UpdateColumn(c *gin.Context) {
	var patch store.ColumnPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	h.editor.Store().UpdateColumn(c.Param("id"), c.Param("colId"), patch)
	success(c, http.StatusOK, h.state(), "")
}

// DeleteColumn removes a column and the relations anchored on it
func (h *Handler) DeleteColumn(c *gin.Context) {
	h.editor.Store().RemoveColumn(c.Param("id"), c.Param("colId"))
	success(c, http.StatusOK, h.state(), "")
}

// CreateRelation links two columns
func (h *Handler) CreateRelation(c *gin.Context) {
	var rel schema.Relation
	if err := c.ShouldBindJSON(&rel); err != nil {
		fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if rel.Type != "" && !rel.Type.Valid() {
		fail(c, http.StatusBadRequest, nil, "Relation type must be 1:1, 1:N or N:N")
		return
	}

	created := h.editor.Store().AddRelation(rel)
	success(c, http.StatusCreated, gin.H{"relation": created, "schema": h.state()}, "Relation created successfully")
}

// DeleteRelation removes a relation
func (h *Handler) DeleteRelation(c *gin.Context) {
	h.editor.Store().RemoveRelation(c.Param("id"))
	success(c, http.StatusOK, h.state(), "")
}

// ListProjects returns stored projects, most recently updated first
func (h *Handler) ListProjects(c *gin.Context) {
	if h.storage == nil {
		fail(c, http.StatusServiceUnavailable, errNoStorage, "Projects are unavailable")
		return
	}

	projects, err := h.storage.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err, "Error while listing projects")
		return
	}
	success(c, http.StatusOK, projects, "")
}

// SaveProject stores the current schema under :name
func (h *Handler) SaveProject(c *gin.Context) {
	if h.storage == nil {
		fail(c, http.StatusServiceUnavailable, errNoStorage, "Projects are unavailable")
		return
	}

	name := c.Param("name")
	if err := h.storage.Save(c.Request.Context(), name, h.state()); err != nil {
		h.projectError(c, err, "Error while saving the project")
		return
	}
	success(c, http.StatusOK, gin.H{"name": name}, "Project saved successfully")
}

// LoadProject replaces the current schema with the stored one
func (h *Handler) LoadProject(c *gin.Context) {
	if h.storage == nil {
		fail(c, http.StatusServiceUnavailable, errNoStorage, "Projects are unavailable")
		return
	}

	s, err := h.storage.Load(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.projectError(c, err, "Error while loading the project")
		return
	}
	h.editor.Replace(s)
	success(c, http.StatusOK, h.state(), "Project loaded successfully")
}

func (h *Handler) projectError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fail(c, http.StatusNotFound, err, "Project not found")
	case errors.Is(err, storage.ErrInvalidProject):
		fail(c, http.StatusBadRequest, err, "Invalid project name")
	default:
		h.logger.Error(message, zap.Error(err))
		fail(c, http.StatusInternalServerError, err, message)
	}
}
