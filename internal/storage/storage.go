// Package storage persists schema documents by project name.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tordrt/schemasync/internal/schema"
)

var (
	// ErrNotFound is returned when a project has never been saved
	ErrNotFound = errors.New("project not found")
	// ErrInvalidProject is returned for project names that cannot be stored
	ErrInvalidProject = errors.New("invalid project name")
)

// Project describes a stored schema
type Project struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Storage saves and loads schemas as documents
type Storage interface {
	Save(ctx context.Context, project string, s schema.Schema) error
	Load(ctx context.Context, project string) (schema.Schema, error)
	// List returns projects, most recently updated first
	List(ctx context.Context) ([]Project, error)
	Close() error
}

// Option configures a storage backend
type Option func(*options)

type options struct {
	logger *zap.Logger
	now    func() time.Time
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ValidateName rejects empty names and names that would escape a directory
func ValidateName(project string) error {
	switch {
	case strings.TrimSpace(project) == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidProject)
	case project == "." || project == "..":
		return fmt.Errorf("%w: %q", ErrInvalidProject, project)
	case strings.ContainsAny(project, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidProject, project)
	}
	return nil
}

func notFound(project string) error {
	return fmt.Errorf("project %q: %w", project, ErrNotFound)
}
