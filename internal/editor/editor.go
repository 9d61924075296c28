// Package editor wires SQL text and schema documents into the schema store.
package editor

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tordrt/schemasync/internal/codec"
	"github.com/tordrt/schemasync/internal/document"
	"github.com/tordrt/schemasync/internal/reconcile"
	"github.com/tordrt/schemasync/internal/schema"
	"github.com/tordrt/schemasync/internal/sqlparse"
	"github.com/tordrt/schemasync/internal/store"
)

// ErrNoTables is returned when SQL text contains no recognisable CREATE TABLE statement
var ErrNoTables = errors.New("no valid table definitions found")

// DefaultDebounce is the quiet period before scheduled SQL is applied
const DefaultDebounce = time.Second

// Editor keeps SQL text and the store in sync
type Editor struct {
	store      *store.Store
	reconciler *reconcile.Reconciler
	debounce   time.Duration
	logger     *zap.Logger

	mu      sync.RWMutex
	dialect codec.Dialect

	// applyMu serialises decode, reconcile and replace so a debounced apply
	// cannot interleave with one made through the API
	applyMu sync.Mutex
}

// Option configures an Editor
type Option func(*editorConfig)

type editorConfig struct {
	dialect  string
	debounce time.Duration
	logger   *zap.Logger
}

// WithDialect selects the preview dialect by registry name
func WithDialect(name string) Option {
	return func(c *editorConfig) { c.dialect = name }
}

// WithDebounce sets the quiet period used by debouncers created from the editor
func WithDebounce(d time.Duration) Option {
	return func(c *editorConfig) { c.debounce = d }
}

// WithLogger sets the editor logger
func WithLogger(l *zap.Logger) Option {
	return func(c *editorConfig) { c.logger = l }
}

// New creates an editor on top of s
func New(s *store.Store, opts ...Option) (*Editor, error) {
	cfg := editorConfig{
		dialect:  codec.DefaultDialect,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	d, err := codec.Get(cfg.dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to select dialect: %w", err)
	}
	if cfg.debounce <= 0 {
		cfg.debounce = DefaultDebounce
	}

	return &Editor{
		store:      s,
		reconciler: reconcile.New(reconcile.WithLogger(cfg.logger.Named("reconcile"))),
		debounce:   cfg.debounce,
		logger:     cfg.logger,
		dialect:    d,
	}, nil
}

// Store returns the underlying store
func (e *Editor) Store() *store.Store {
	return e.store
}

// ApplySQL decodes text, reconciles it against the current state and
// replaces the store contents. The store is untouched on error.
func (e *Editor) ApplySQL(text string) (schema.Schema, error) {
	draft, err := sqlparse.Decode(text)
	if err != nil {
		return schema.Schema{}, fmt.Errorf("failed to decode sql: %w", err)
	}
	if len(draft.Tables) == 0 {
		return schema.Schema{}, ErrNoTables
	}

	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	merged := e.reconciler.Reconcile(draft, e.store.State())
	e.store.Replace(merged)
	e.logger.Info("sql applied",
		zap.Int("tables", len(merged.Tables)),
		zap.Int("relations", len(merged.Relations)))
	return merged, nil
}

// Preview renders the current state with the selected dialect
func (e *Editor) Preview() string {
	e.mu.RLock()
	d := e.dialect
	e.mu.RUnlock()
	return d.Generate(e.store.State())
}

// PreviewAs renders the current state with the named dialect
func (e *Editor) PreviewAs(dialect string) (string, error) {
	return codec.Generate(dialect, e.store.State())
}

// Dialect returns the name of the selected dialect
func (e *Editor) Dialect() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dialect.Name()
}

// SetDialect selects the preview dialect
func (e *Editor) SetDialect(name string) error {
	d, err := codec.Get(name)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.dialect = d
	e.mu.Unlock()
	return nil
}

// ImportDocument replaces the store contents with a schema document.
// Invalid documents leave the store untouched.
func (e *Editor) ImportDocument(r io.Reader, format document.Format) error {
	s, err := document.Decode(r, format)
	if err != nil {
		return err
	}
	e.Replace(s)
	return nil
}

// Replace swaps the store contents for an already validated schema
func (e *Editor) Replace(s schema.Schema) {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()
	e.store.Replace(s)
}

// ExportDocument writes the current state as a schema document
func (e *Editor) ExportDocument(w io.Writer, format document.Format) error {
	return document.Encode(w, e.store.State(), format)
}

// NewDebouncer returns a debouncer applying SQL to this editor
func (e *Editor) NewDebouncer() *Debouncer {
	return NewDebouncer(e.debounce, func(text string) error {
		_, err := e.ApplySQL(text)
		return err
	}, e.logger.Named("debounce"))
}
