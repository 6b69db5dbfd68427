package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mico/crypto-sentiment-analysis/internal/app"
	"github.com/mico/crypto-sentiment-analysis/internal/config"
	"github.com/mico/crypto-sentiment-analysis/internal/ingest"
	"github.com/mico/crypto-sentiment-analysis/internal/logger"
	"github.com/mico/crypto-sentiment-analysis/internal/mcptools"
	"github.com/mico/crypto-sentiment-analysis/internal/storage/driver"
	"github.com/mico/crypto-sentiment-analysis/pkg/tracing"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	loadEnvFunc     = godotenv.Load
	loadConfigFunc  = config.Load
	credentialsFunc = func() (config.Credentials, error) { return config.RequireCredentials(os.Getenv) }
	initTracerFunc  = tracing.InitTracer
	openTableFunc   = driver.Open
	newPipelineFunc = app.NewPipeline
	runServerFunc   = func(ctx context.Context, s *mcp.Server) error { return s.Run(ctx, &mcp.StdioTransport{}) }
)

// Stdout carries the protocol, so every log line goes to stderr.
func main() {
	loadEnvFunc()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.DefaultPath
	}
	cfg, err := loadConfigFunc(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	lg := logger.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, tracer, err := initTracerFunc(ctx, "mcp")
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer tp.Shutdown(context.Background())

	table, err := openTableFunc(ctx, cfg, tracer)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer table.Close()

	var runner mcptools.IngestRunner
	if creds, err := credentialsFunc(); err != nil {
		lg.Warn("run_ingestion tool disabled", "err", err)
	} else {
		pipeline, err := newPipelineFunc(ctx, cfg, creds, table, tracer, lg)
		if err != nil {
			log.Fatalf("failed to wire ingestion: %v", err)
		}
		runner = ingest.NewExclusiveRunner(pipeline.Service)
	}

	tools := mcptools.New(app.NewAnalytics(cfg, table, nil, tracer, lg), runner, lg)
	lg.Info("mcp server starting", "version", tracing.Version)
	if err := runServerFunc(ctx, tools.NewServer(tracing.Version)); err != nil && ctx.Err() == nil {
		lg.Error("mcp server stopped", "err", err)
	}
}
