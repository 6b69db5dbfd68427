package analytics

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/logger"
	"github.com/mico/crypto-sentiment-analysis/internal/sentiment"
	"github.com/mico/crypto-sentiment-analysis/internal/storage"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultCacheTTL = 90 * time.Second
	defaultTopN     = 5
	dateLayout      = "2006-01-02"

	// summaryKeyPrefix lives under cache.AnalyticsPrefix so run
	// invalidation reaches it.
	summaryKeyPrefix = "analytics:summary:"
)

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

type Reader interface {
	Records(ctx context.Context, f storage.Filter) ([]domain.PersistedRecord, error)
}

type Options struct {
	Classifier   sentiment.AnalyticsClassifier
	CacheTTL     time.Duration
	TopN         int
	NoiseSymbols []string
}

type Query struct {
	Source Source
	From   time.Time
	To     time.Time
}

func (q Query) cacheKey(prefix string) string {
	parts := []string{string(q.Source), formatDate(q.From), formatDate(q.To)}
	h := sha1.Sum([]byte(strings.Join(parts, "|")))
	return prefix + hex.EncodeToString(h[:8])
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

type Summary struct {
	Source         Source                               `json:"source"`
	From           string                               `json:"from,omitempty"`
	To             string                               `json:"to,omitempty"`
	GeneratedAt    time.Time                            `json:"generated_at"`
	LatestArticle  *time.Time                           `json:"latest_article,omitempty"`
	Total          int                                  `json:"total"`
	Categories     map[sentiment.Category]int           `json:"categories"`
	Mentions       []CoinCount                          `json:"mentions"`
	TopMentions    []string                             `json:"top_mentions"`
	CoinSentiments []CoinSentiment                      `json:"coin_sentiments"`
	TopPositive    []string                             `json:"top_positive"`
	TopNegative    []string                             `json:"top_negative"`
	Hourly         map[sentiment.Category][]HourlyPoint `json:"hourly"`
}

type CoinSummary struct {
	Symbol           string    `json:"symbol"`
	Positive         int       `json:"positive_count"`
	Neutral          int       `json:"neutral_count"`
	Negative         int       `json:"negative_count"`
	Total            int       `json:"total"`
	AverageSentiment float64   `json:"average_sentiment"`
	Latest           []Article `json:"latest"`
}

type Service struct {
	tracer trace.Tracer
	reader Reader
	redis  RedisClient
	log    logger.Logger
	opts   Options
	now    func() time.Time
}

// NewService builds the read side. redisClient may be nil to disable caching.
func NewService(tracer trace.Tracer, reader Reader, redisClient RedisClient, log logger.Logger, opts Options) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Classifier == (sentiment.AnalyticsClassifier{}) {
		opts.Classifier = sentiment.DefaultAnalyticsClassifier()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.TopN <= 0 {
		opts.TopN = defaultTopN
	}
	if opts.NoiseSymbols == nil {
		opts.NoiseSymbols = DefaultNoiseSymbols
	}
	return &Service{
		tracer: tracer,
		reader: reader,
		redis:  redisClient,
		log:    log,
		opts:   opts,
		now:    time.Now,
	}
}

func (s *Service) rows(ctx context.Context, q Query) ([]Row, error) {
	f := storage.Filter{}
	if !q.From.IsZero() {
		f.Since = truncateDay(q.From)
	}
	if !q.To.IsZero() {
		f.Until = truncateDay(q.To).Add(24*time.Hour - time.Nanosecond)
	}
	records, err := s.reader.Records(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	rows := Prepare(records, s.opts.Classifier)
	rows = FilterSource(rows, q.Source)
	return FilterDateRange(rows, q.From, q.To), nil
}

// Summary computes the dashboard summary, served from Redis while fresh.
func (s *Service) Summary(ctx context.Context, q Query) (*Summary, error) {
	ctx, span := s.tracer.Start(ctx, "analytics.summary")
	defer span.End()
	if q.Source == "" {
		q.Source = SourceAll
	}
	span.SetAttributes(attribute.String("analytics.source", string(q.Source)))

	key := q.cacheKey(summaryKeyPrefix)
	var cached Summary
	if s.getCached(ctx, key, &cached) {
		span.SetAttributes(attribute.Bool("analytics.cache_hit", true))
		return &cached, nil
	}

	rows, err := s.rows(ctx, q)
	if err != nil {
		return nil, err
	}

	mentions := CoinMentions(rows, s.opts.NoiseSymbols)
	top := make([]string, 0, s.opts.TopN)
	for i, m := range mentions {
		if i >= s.opts.TopN {
			break
		}
		top = append(top, m.Symbol)
	}
	perCoin := CoinSentiments(rows, s.opts.NoiseSymbols)

	summary := &Summary{
		Source:         q.Source,
		From:           formatDate(q.From),
		To:             formatDate(q.To),
		GeneratedAt:    s.now().UTC(),
		Total:          len(rows),
		Categories:     CategoryCounts(rows),
		Mentions:       mentions,
		TopMentions:    top,
		CoinSentiments: perCoin,
		TopPositive:    TopBy(perCoin, s.opts.TopN, func(c CoinSentiment) int { return c.Positive }),
		TopNegative:    TopBy(perCoin, s.opts.TopN, func(c CoinSentiment) int { return c.Negative }),
		Hourly:         Hourly(rows),
	}
	for _, r := range rows {
		if summary.LatestArticle == nil || r.PublishedAt.After(*summary.LatestArticle) {
			ts := r.PublishedAt
			summary.LatestArticle = &ts
		}
	}

	s.setCached(ctx, key, summary)
	return summary, nil
}

// Coin returns the category breakdown and latest articles for one symbol.
func (s *Service) Coin(ctx context.Context, symbol string, q Query) (*CoinSummary, error) {
	ctx, span := s.tracer.Start(ctx, "analytics.coin")
	defer span.End()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	span.SetAttributes(attribute.String("analytics.symbol", symbol))

	rows, err := s.rows(ctx, q)
	if err != nil {
		return nil, err
	}
	out := &CoinSummary{Symbol: symbol}
	var sum float64
	for _, r := range rows {
		if !containsCoin(r.Coins, symbol) {
			continue
		}
		switch r.Category {
		case sentiment.Positive:
			out.Positive++
		case sentiment.Negative:
			out.Negative++
		default:
			out.Neutral++
		}
		out.Total++
		sum += r.Sentiment
	}
	if out.Total > 0 {
		out.AverageSentiment = sum / float64(out.Total)
	}
	latest := Articles(rows, symbol, "")
	if len(latest) > s.opts.TopN {
		latest = latest[:s.opts.TopN]
	}
	out.Latest = latest
	return out, nil
}

// Articles lists matching articles, newest first, capped at limit when positive.
func (s *Service) Articles(ctx context.Context, q Query, coin string, category sentiment.Category, limit int) ([]Article, error) {
	ctx, span := s.tracer.Start(ctx, "analytics.articles")
	defer span.End()

	rows, err := s.rows(ctx, q)
	if err != nil {
		return nil, err
	}
	out := Articles(rows, coin, category)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Service) getCached(ctx context.Context, key string, dst any) bool {
	if s.redis == nil {
		return false
	}
	data, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		s.log.Warn("analytics cache read failed", "key", key, "err", err)
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.log.Warn("analytics cache entry unreadable", "key", key, "err", err)
		return false
	}
	return true
}

func (s *Service) setCached(ctx context.Context, key string, v any) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, s.opts.CacheTTL).Err(); err != nil {
		s.log.Warn("analytics cache write failed", "key", key, "err", err)
	}
}
