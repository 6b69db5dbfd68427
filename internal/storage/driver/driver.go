// Package driver opens the configured sentiment_data backend.
package driver

import (
	"context"
	"fmt"

	"github.com/mico/crypto-sentiment-analysis/internal/config"
	"github.com/mico/crypto-sentiment-analysis/internal/storage"
	"github.com/mico/crypto-sentiment-analysis/internal/storage/memory"
	"github.com/mico/crypto-sentiment-analysis/internal/storage/postgres"
	"github.com/mico/crypto-sentiment-analysis/internal/storage/sqlite"

	"go.opentelemetry.io/otel/trace"
)

const (
	SQLite   = "sqlite"
	Postgres = "postgres"
	Memory   = "memory"
)

// Open returns the backend named by cfg.Storage.Driver with its schema in place.
func Open(ctx context.Context, cfg *config.Config, tracer trace.Tracer) (storage.Table, error) {
	switch cfg.Storage.Driver {
	case SQLite, "":
		t, err := sqlite.Open(cfg.DBPath, tracer)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.DBPath, err)
		}
		return t, nil
	case Postgres:
		t, err := postgres.Open(ctx, cfg.Storage.DSN, tracer)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return t, nil
	case Memory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", config.ErrConfiguration, cfg.Storage.Driver)
	}
}
