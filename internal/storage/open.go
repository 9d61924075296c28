package storage

import (
	"context"
	"fmt"

	"github.com/tordrt/schemasync/internal/config"
)

// Open builds the backend selected by cfg.Driver
func Open(ctx context.Context, cfg config.StorageConfig, opts ...Option) (Storage, error) {
	switch cfg.Driver {
	case config.DriverFile, "":
		return NewFileStorage(cfg.Path, opts...)
	case config.DriverSQLite:
		return NewSQLiteStorage(ctx, cfg.Path, opts...)
	case config.DriverPostgres:
		return NewPostgresStorage(ctx, cfg.DSN, opts...)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
