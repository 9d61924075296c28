package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tordrt/schemasync/internal/document"
	"github.com/tordrt/schemasync/internal/schema"
)

const fileExt = ".json"

// FileStorage keeps one JSON document per project in a directory
type FileStorage struct {
	dir  string
	opts options
}

var _ Storage = (*FileStorage)(nil)

// NewFileStorage creates dir if needed
func NewFileStorage(dir string, opts ...Option) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStorage{dir: dir, opts: newOptions(opts)}, nil
}

func (f *FileStorage) path(project string) string {
	return filepath.Join(f.dir, project+fileExt)
}

// Save writes the document atomically through a temporary file
func (f *FileStorage) Save(ctx context.Context, project string, s schema.Schema) error {
	if err := ValidateName(project); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := document.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode project %q: %w", project, err)
	}

	tmp, err := os.CreateTemp(f.dir, "."+project+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write project %q: %w", project, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write project %q: %w", project, err)
	}

	target := f.path(project)
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to save project %q: %w", project, err)
	}
	now := f.opts.now()
	if err := os.Chtimes(target, now, now); err != nil {
		return fmt.Errorf("failed to stamp project %q: %w", project, err)
	}

	f.opts.logger.Debug("project saved", zap.String("project", project), zap.String("path", target))
	return nil
}

// Load reads and validates the project's document
func (f *FileStorage) Load(ctx context.Context, project string) (schema.Schema, error) {
	if err := ValidateName(project); err != nil {
		return schema.Schema{}, err
	}
	if err := ctx.Err(); err != nil {
		return schema.Schema{}, err
	}

	data, err := os.ReadFile(f.path(project))
	if errors.Is(err, fs.ErrNotExist) {
		return schema.Schema{}, notFound(project)
	}
	if err != nil {
		return schema.Schema{}, fmt.Errorf("failed to read project %q: %w", project, err)
	}

	s, err := document.Unmarshal(data)
	if err != nil {
		return schema.Schema{}, fmt.Errorf("failed to decode project %q: %w", project, err)
	}
	return s, nil
}

// List uses file modification times as update times
func (f *FileStorage) List(ctx context.Context) ([]Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	projects := []Project{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != fileExt {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", name, err)
		}
		projects = append(projects, Project{
			Name:      strings.TrimSuffix(name, fileExt),
			CreatedAt: info.ModTime(),
			UpdatedAt: info.ModTime(),
		})
	}

	sortProjects(projects)
	return projects, nil
}

// Close is a no-op
func (f *FileStorage) Close() error {
	return nil
}

// sortProjects orders by update time, newest first, then by name
func sortProjects(projects []Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		if !projects[i].UpdatedAt.Equal(projects[j].UpdatedAt) {
			return projects[i].UpdatedAt.After(projects[j].UpdatedAt)
		}
		return projects[i].Name < projects[j].Name
	})
}
