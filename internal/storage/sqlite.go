package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/tordrt/schemasync/internal/document"
	"github.com/tordrt/schemasync/internal/schema"
)

// SQLiteStorage keeps projects in a local SQLite database
type SQLiteStorage struct {
	db   *sql.DB
	opts options
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens path and applies pending migrations
func NewSQLiteStorage(ctx context.Context, path string, opts ...Option) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// a single connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	s := &SQLiteStorage{db: db, opts: newOptions(opts)}
	if err := migrate(db, "sqlite", "sqlite", s.opts.logger); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Save upserts the project's document
func (s *SQLiteStorage) Save(ctx context.Context, project string, sc schema.Schema) error {
	if err := ValidateName(project); err != nil {
		return err
	}
	data, err := document.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to encode project %q: %w", project, err)
	}

	now := s.opts.now().UTC()
	query := `
		INSERT INTO projects (name, data, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, project, string(data), now, now); err != nil {
		return fmt.Errorf("failed to save project %q: %w", project, err)
	}

	s.opts.logger.Debug("project saved", zap.String("project", project), zap.Int("bytes", len(data)))
	return nil
}

// Load returns ErrNotFound for unknown projects
func (s *SQLiteStorage) Load(ctx context.Context, project string) (schema.Schema, error) {
	if err := ValidateName(project); err != nil {
		return schema.Schema{}, err
	}

	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM projects WHERE name = ?`, project).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.Schema{}, notFound(project)
	}
	if err != nil {
		return schema.Schema{}, fmt.Errorf("failed to load project %q: %w", project, err)
	}

	sc, err := document.Unmarshal([]byte(data))
	if err != nil {
		return schema.Schema{}, fmt.Errorf("failed to decode project %q: %w", project, err)
	}
	return sc, nil
}

// List returns projects ordered by update time, newest first
func (s *SQLiteStorage) List(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, created_at, updated_at FROM projects ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

// Close closes the database
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
