package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/tordrt/schemasync/internal/document"
	"github.com/tordrt/schemasync/internal/schema"
)

// PostgresStorage keeps projects in a PostgreSQL projects table with a jsonb document column
type PostgresStorage struct {
	pool *pgxpool.Pool
	opts options
}

var _ Storage = (*PostgresStorage)(nil)

// NewPostgresStorage migrates the database behind dsn and opens a connection pool
func NewPostgresStorage(ctx context.Context, dsn string, opts ...Option) (*PostgresStorage, error) {
	o := newOptions(opts)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	err = migrate(db, "postgres", "postgres", o.logger)
	db.Close()
	if err != nil {
		return nil, err
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &PostgresStorage{pool: pool, opts: o}, nil
}

// Save upserts on the unique project name
func (p *PostgresStorage) Save(ctx context.Context, project string, s schema.Schema) error {
	if err := ValidateName(project); err != nil {
		return err
	}
	data, err := document.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode project %q: %w", project, err)
	}

	query := `
		INSERT INTO projects (id, name, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`
	if _, err := p.pool.Exec(ctx, query, uuid.New(), project, string(data), p.opts.now().UTC()); err != nil {
		return fmt.Errorf("failed to save project %q: %w", project, err)
	}

	p.opts.logger.Debug("project saved", zap.String("project", project), zap.Int("bytes", len(data)))
	return nil
}

// Load returns ErrNotFound for unknown projects
func (p *PostgresStorage) Load(ctx context.Context, project string) (schema.Schema, error) {
	if err := ValidateName(project); err != nil {
		return schema.Schema{}, err
	}

	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM projects WHERE name = $1`, project).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return schema.Schema{}, notFound(project)
	}
	if err != nil {
		return schema.Schema{}, fmt.Errorf("failed to load project %q: %w", project, err)
	}

	s, err := document.Unmarshal(data)
	if err != nil {
		return schema.Schema{}, fmt.Errorf("failed to decode project %q: %w", project, err)
	}
	return s, nil
}

// List returns projects ordered by update time, newest first
func (p *PostgresStorage) List(ctx context.Context) ([]Project, error) {
	rows, err := p.pool.Query(ctx, `SELECT name, created_at, updated_at FROM projects ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		var pr Project
		if err := rows.Scan(&pr.Name, &pr.CreatedAt, &pr.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

// Close releases the pool
func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}
