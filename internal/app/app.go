// Package app assembles the ingestion pipeline and analytics service from a
// loaded configuration. Binaries share it so they wire the same graph.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/mico/crypto-sentiment-analysis/internal/analytics"
	"github.com/mico/crypto-sentiment-analysis/internal/coins"
	"github.com/mico/crypto-sentiment-analysis/internal/config"
	"github.com/mico/crypto-sentiment-analysis/internal/ingest"
	"github.com/mico/crypto-sentiment-analysis/internal/logger"
	"github.com/mico/crypto-sentiment-analysis/internal/provider"
	"github.com/mico/crypto-sentiment-analysis/internal/sentiment"
	"github.com/mico/crypto-sentiment-analysis/internal/storage"
	"github.com/mico/crypto-sentiment-analysis/internal/submission"

	"go.opentelemetry.io/otel/trace"
)

const (
	ScorerVader  = "vader"
	ScorerOpenAI = "openai"
)

// NewScorer picks the polarity scorer named by sentiment.scorer. The OpenAI
// scorer needs an API key; without one VADER is used. sentiment.lexicon
// entries extend the VADER lexicon either way.
func NewScorer(cfg *config.Config, log logger.Logger) sentiment.PolarityScorer {
	vader := sentiment.NewVaderScorer().WithTerms(cfg.Sentiment.Lexicon)
	if !strings.EqualFold(cfg.Sentiment.Scorer, ScorerOpenAI) {
		return vader
	}
	if s := sentiment.NewOpenAIScorer(cfg.Sentiment.OpenAIAPIKey, cfg.Sentiment.OpenAIModel, vader); s != nil {
		return s
	}
	log.Warn("openai scorer selected without an API key, using vader scorer")
	return vader
}

// Pipeline is one fully wired ingestion run plus the store it writes to.
type Pipeline struct {
	Coins   *coins.Table
	Store   *storage.IngestionStore
	Service *ingest.Service
}

// NewPipeline wires providers, processor, orchestrator and store. table is
// owned by the caller.
func NewPipeline(ctx context.Context, cfg *config.Config, creds config.Credentials, table storage.Table, tracer trace.Tracer, log logger.Logger) (*Pipeline, error) {
	coinTable, err := cfg.CoinTable()
	if err != nil {
		return nil, fmt.Errorf("build coin table: %w", err)
	}
	for _, sym := range coinTable.Unmatchable() {
		log.Warn("coin has no keywords and will never match", "symbol", sym)
	}

	reddit := provider.NewRedditProvider(ctx, tracer, creds, provider.RedditOptions{
		BaseURL:           cfg.Reddit.BaseURL,
		TokenURL:          cfg.Reddit.TokenURL,
		Timeout:           cfg.Reddit.Timeout,
		RequestsPerMinute: cfg.Reddit.RequestsPerMinute,
	})
	var news ingest.Lister
	if cfg.News.Enabled {
		news = provider.NewNewsProvider(tracer, cfg.News.Domain, cfg.News.Timeout)
	}

	processor := submission.NewProcessor(tracer, NewScorer(cfg, log), coinTable)
	orch := ingest.NewOrchestrator(tracer, processor, log, ingest.OrchestratorOptions{
		ItemDelay:      cfg.Ingest.ItemDelay,
		MaxRetries:     cfg.Ingest.MaxRetries,
		RetryBaseDelay: cfg.Ingest.RetryBaseDelay,
	})
	store := storage.NewIngestionStore(tracer, table, log)

	svc := ingest.NewService(tracer, orch, reddit, news, store, log, ingest.PlanFromConfig(cfg, coinTable))
	return &Pipeline{Coins: coinTable, Store: store, Service: svc}, nil
}

// NewAnalytics builds the read-side service. redisClient may be nil.
func NewAnalytics(cfg *config.Config, reader analytics.Reader, redisClient analytics.RedisClient, tracer trace.Tracer, log logger.Logger) *analytics.Service {
	return analytics.NewService(tracer, reader, redisClient, log, analytics.Options{
		Classifier:   sentiment.NewAnalyticsClassifier(cfg.Analytics.PositiveThreshold, cfg.Analytics.NegativeThreshold),
		CacheTTL:     cfg.Analytics.CacheTTL,
		TopN:         cfg.Analytics.TopN,
		NoiseSymbols: cfg.Analytics.NoiseSymbols,
	})
}
