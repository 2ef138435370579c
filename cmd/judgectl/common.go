package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dan-robinson-ai/judge-training-ground/internal/adapters/kv"
	"github.com/dan-robinson-ai/judge-training-ground/internal/adapters/postgres"
	"github.com/dan-robinson-ai/judge-training-ground/internal/ports"
)

// buildRepository picks the persistence substrate from config:
// Postgres when a URL is configured, the local SQLite key/value store
// otherwise. The returned cleanup releases the underlying connection.
func buildRepository(ctx context.Context) (ports.DatasetRepository, func(), error) {
	if cfg.Database.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		repo := postgres.NewDatasetRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensuring schema: %w", err)
		}
		return repo, pool.Close, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating data directory: %w", err)
	}
	substrate, err := kv.OpenSQLite(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database %s: %w", cfg.Database.Path, err)
	}
	repo := kv.NewDatasetRepository(substrate)
	return repo, func() { substrate.Close() }, nil
}
