package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mico/crypto-sentiment-analysis/internal/config"
	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/fixture"
	"github.com/mico/crypto-sentiment-analysis/internal/logger"
	"github.com/mico/crypto-sentiment-analysis/internal/provider"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
)

type submissionFetcher interface {
	FetchSubmission(ctx context.Context, id string) (domain.RawItem, error)
}

var (
	loadEnvFunc     = godotenv.Load
	credentialsFunc = func() (config.Credentials, error) { return config.RequireCredentials(os.Getenv) }
	newFetcherFunc  = func(ctx context.Context, creds config.Credentials) submissionFetcher {
		return provider.NewRedditProvider(ctx, trace.NewNoopTracerProvider().Tracer("extract"), creds, provider.RedditOptions{})
	}
	exitFunc = os.Exit
)

var stderr io.Writer = os.Stderr

func main() {
	exitFunc(run(os.Args[1:]))
}

// run fetches each submission id and records it as a YAML fixture. A failed
// id is reported and skipped.
func run(args []string) int {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("out", filepath.Join("internal", "submission", fixture.DefaultDir), "directory the fixtures are written to")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: extract [-out dir] <submission-id>...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ids := fs.Args()
	if len(ids) == 0 {
		fs.Usage()
		return 2
	}

	_ = loadEnvFunc()
	log := logger.New(stderr, os.Getenv("LOG_LEVEL"), "text")

	creds, err := credentialsFunc()
	if err != nil {
		log.Error("missing reddit credentials", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	fetcher := newFetcherFunc(ctx, creds)

	failed := 0
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		item, err := fetcher.FetchSubmission(ctx, id)
		if err != nil {
			log.Error("fetch submission", "id", id, "err", err)
			failed++
			continue
		}
		path, err := fixture.Write(*out, fixture.FromRawItem(item))
		if err != nil {
			log.Error("write fixture", "id", id, "err", err)
			failed++
			continue
		}
		log.Info("saved fixture", "id", id, "path", path)
	}
	if failed > 0 {
		return 1
	}
	return 0
}
