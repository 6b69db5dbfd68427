package app

import (
	"context"
	"testing"

	"github.com/mico/crypto-sentiment-analysis/internal/coins"
	"github.com/mico/crypto-sentiment-analysis/internal/config"
	"github.com/mico/crypto-sentiment-analysis/internal/logger"
	"github.com/mico/crypto-sentiment-analysis/internal/sentiment"
	"github.com/mico/crypto-sentiment-analysis/internal/storage/memory"

	"go.opentelemetry.io/otel/trace"
)

func testConfig() *config.Config {
	return &config.Config{
		Subreddits:   []string{"CryptoCurrency"},
		GeneralTerms: []string{"crypto"},
		PostsLimit:   100,
		CoinKeywords: []coins.Coin{
			{Symbol: "BTC", Keywords: []string{"bitcoin", "btc"}},
			{Symbol: "ETH", Keywords: []string{"ethereum", "eth"}},
			{Symbol: "XYZ"},
		},
		Reddit:    config.RedditConfig{BaseURL: "https://oauth.reddit.com", Strategies: []string{"hot"}, TimeWindow: "week"},
		Sentiment: config.SentimentConfig{Scorer: ScorerVader},
		Analytics: config.AnalyticsConfig{PositiveThreshold: 0.3, NegativeThreshold: -0.3, TopN: 5},
	}
}

func TestNewScorerDefaultsToVader(t *testing.T) {
	cfg := testConfig()
	if _, ok := NewScorer(cfg, logger.Nop()).(*sentiment.VaderScorer); !ok {
		t.Fatal("expected vader scorer")
	}
}

func TestNewScorerOpenAIWithoutKeyFallsBack(t *testing.T) {
	cfg := testConfig()
	cfg.Sentiment.Scorer = "OpenAI"
	if _, ok := NewScorer(cfg, logger.Nop()).(*sentiment.VaderScorer); !ok {
		t.Fatal("expected vader scorer when no API key is set")
	}
}

func TestNewScorerOpenAI(t *testing.T) {
	cfg := testConfig()
	cfg.Sentiment.Scorer = ScorerOpenAI
	cfg.Sentiment.OpenAIAPIKey = "sk-test"
	if _, ok := NewScorer(cfg, logger.Nop()).(*sentiment.OpenAIScorer); !ok {
		t.Fatal("expected openai scorer")
	}
}

func TestNewScorerAppliesLexiconOverrides(t *testing.T) {
	cfg := testConfig()
	cfg.Sentiment.Lexicon = map[string]float64{"wagmi": 3}
	score, err := NewScorer(cfg, logger.Nop()).Compound(context.Background(), "wagmi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score <= 0 {
		t.Fatalf("expected positive score for custom term, got %v", score)
	}
}

func TestNewPipeline(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	p, err := NewPipeline(context.Background(), testConfig(), config.Credentials{
		ClientID: "id", ClientSecret: "secret", UserAgent: "test-agent",
	}, memory.New(), tracer, logger.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Service == nil || p.Store == nil {
		t.Fatal("pipeline not wired")
	}
	if got := p.Coins.Symbols(); len(got) != 3 || got[0] != "BTC" {
		t.Fatalf("coin order lost: %v", got)
	}
}

func TestNewPipelineRejectsBadCoinTable(t *testing.T) {
	cfg := testConfig()
	cfg.CoinKeywords = append(cfg.CoinKeywords, coins.Coin{Symbol: "BTC", Keywords: []string{"x"}})
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	if _, err := NewPipeline(context.Background(), cfg, config.Credentials{}, memory.New(), tracer, logger.Nop()); err == nil {
		t.Fatal("expected duplicate symbol error")
	}
}

func TestNewAnalytics(t *testing.T) {
	svc := NewAnalytics(testConfig(), memory.New(), nil, trace.NewNoopTracerProvider().Tracer("test"), logger.Nop())
	if svc == nil {
		t.Fatal("expected analytics service")
	}
}
