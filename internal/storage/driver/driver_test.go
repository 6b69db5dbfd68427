package driver

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mico/crypto-sentiment-analysis/internal/config"
	"github.com/mico/crypto-sentiment-analysis/internal/storage/memory"
	"github.com/mico/crypto-sentiment-analysis/internal/storage/sqlite"

	"go.opentelemetry.io/otel/trace"
)

func TestOpenBackends(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")

	cfg := &config.Config{DBPath: filepath.Join(t.TempDir(), "nested", "crypto_data.db")}
	cfg.Storage.Driver = SQLite
	table, err := Open(context.Background(), cfg, tracer)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer table.Close()
	if _, ok := table.(*sqlite.Table); !ok {
		t.Fatalf("expected *sqlite.Table, got %T", table)
	}

	cfg.Storage.Driver = Memory
	table, err = Open(context.Background(), cfg, tracer)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := table.(*memory.Table); !ok {
		t.Fatalf("expected *memory.Table, got %T", table)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Driver = "mongo"
	_, err := Open(context.Background(), cfg, trace.NewNoopTracerProvider().Tracer("test"))
	if !errors.Is(err, config.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
