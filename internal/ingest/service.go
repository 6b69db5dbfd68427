package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/coins"
	"github.com/mico/crypto-sentiment-analysis/internal/config"
	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/logger"
	"github.com/mico/crypto-sentiment-analysis/internal/provider"
	"github.com/mico/crypto-sentiment-analysis/internal/sentiment"
	"github.com/mico/crypto-sentiment-analysis/internal/storage"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	PassCoins   = "coins"
	PassGeneral = "general"
	PassNews    = "news"

	SourceReddit = "reddit"
	SourceNews   = "news"
)

type Store interface {
	Store(ctx context.Context, batch []domain.ProcessedSubmission) (int, error)
}

type Notifier interface {
	NotifyRun(ctx context.Context, result domain.RunResult) error
}

// Plan is the static shape of a run.
type Plan struct {
	Subreddits        []string
	Symbols           []string
	GeneralTerms      []string
	Strategies        []string
	TimeWindow        string
	PostsLimit        int
	GeneralPostsLimit int
	SourceDelay       time.Duration
	GeneralDelay      time.Duration
	NewsFeeds         []string
	NewsLimit         int
	ConflictRetries   int
}

// PlanFromConfig derives the run plan. Coin symbols double as the coin
// pass search terms.
func PlanFromConfig(cfg *config.Config, table *coins.Table) Plan {
	p := Plan{
		Subreddits:        cfg.Subreddits,
		Symbols:           table.Symbols(),
		GeneralTerms:      cfg.GeneralTerms,
		Strategies:        cfg.Reddit.Strategies,
		TimeWindow:        cfg.Reddit.TimeWindow,
		PostsLimit:        cfg.PostsLimit,
		GeneralPostsLimit: cfg.Ingest.GeneralPostsLimit,
		SourceDelay:       cfg.Ingest.SourceDelay,
		GeneralDelay:      cfg.Ingest.GeneralDelay,
		ConflictRetries:   cfg.Ingest.ConflictRetries,
	}
	if cfg.News.Enabled {
		p.NewsFeeds = cfg.News.Feeds
		p.NewsLimit = cfg.News.ItemLimit
	}
	return p
}

type Service struct {
	tracer       trace.Tracer
	orchestrator *Orchestrator
	reddit       Lister
	news         Lister
	store        Store
	log          logger.Logger
	plan         Plan

	notifiers []Notifier
	progress  func(domain.SourceProgress)
	now       func() time.Time
	newID     func() string
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewService wires a run. reddit or news may be nil to skip that source.
func NewService(tracer trace.Tracer, orchestrator *Orchestrator, reddit, news Lister, store Store, log logger.Logger, plan Plan) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if plan.TimeWindow == "" {
		plan.TimeWindow = "week"
	}
	if len(plan.Strategies) == 0 {
		plan.Strategies = []string{provider.SortHot, provider.SortNew, provider.SortTop}
	}
	if plan.PostsLimit <= 0 {
		plan.PostsLimit = 100
	}
	if plan.GeneralPostsLimit <= 0 {
		plan.GeneralPostsLimit = 75
	}
	if plan.NewsLimit <= 0 {
		plan.NewsLimit = 50
	}
	if plan.ConflictRetries < 0 {
		plan.ConflictRetries = 0
	}
	return &Service{
		tracer:       tracer,
		orchestrator: orchestrator,
		reddit:       reddit,
		news:         news,
		store:        store,
		log:          log,
		plan:         plan,
		now:          time.Now,
		newID:        uuid.NewString,
		sleep:        sleepContext,
	}
}

// WithNotifier adds n to the notifiers told about every stored run, in
// registration order.
func (s *Service) WithNotifier(n Notifier) *Service {
	if n != nil {
		s.notifiers = append(s.notifiers, n)
	}
	return s
}

// WithProgress registers a callback invoked after each channel completes.
func (s *Service) WithProgress(fn func(domain.SourceProgress)) *Service {
	s.progress = fn
	return s
}

// RunOnce fetches every configured channel, stores the combined batch and
// reports what happened. Source failures are collected in the result; the
// returned error is set only for cancellation or a storage failure.
func (s *Service) RunOnce(ctx context.Context) (domain.RunResult, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.run-once")
	defer span.End()

	if s.orchestrator == nil || s.store == nil {
		return domain.RunResult{}, fmt.Errorf("ingest service dependencies are not initialized")
	}

	result := domain.RunResult{RunID: s.newID(), StartedAt: s.now().UTC()}
	log := s.log.With("run_id", result.RunID)
	log.Info("ingestion run started", "subreddits", len(s.plan.Subreddits), "feeds", len(s.plan.NewsFeeds))

	items, err := s.fetchAll(ctx, log, &result)
	result.Fetched = len(items)
	if err != nil {
		result.FinishedAt = s.now().UTC()
		log.Warn("ingestion run cancelled", "fetched", result.Fetched, "err", err)
		return result, err
	}

	unique := storage.Dedupe(items)
	result.Unique = len(unique)
	for _, sub := range unique {
		switch sentiment.Classify(sub.Sentiment) {
		case sentiment.Positive:
			result.Positive++
		case sentiment.Negative:
			result.Negative++
		default:
			result.Neutral++
		}
	}

	inserted, err := s.storeWithRetry(ctx, log, unique)
	result.Inserted = inserted
	result.FinishedAt = s.now().UTC()
	span.SetAttributes(
		attribute.String("ingest.run_id", result.RunID),
		attribute.Int("ingest.fetched", result.Fetched),
		attribute.Int("ingest.unique", result.Unique),
		attribute.Int("ingest.inserted", result.Inserted),
	)
	if err != nil {
		log.Error("storing batch failed", "err", err)
		return result, fmt.Errorf("store batch: %w", err)
	}

	log.Info("ingestion run finished", "summary", result.Summary(), "errors", len(result.Errors), "duration", result.Duration())
	for _, n := range s.notifiers {
		if err := n.NotifyRun(ctx, result); err != nil {
			log.Warn("run notification failed", "err", err)
		}
	}
	return result, nil
}

type redditPass struct {
	name    string
	queries []provider.Query
	delay   time.Duration
}

func (s *Service) fetchAll(ctx context.Context, log logger.Logger, result *domain.RunResult) ([]domain.ProcessedSubmission, error) {
	var items []domain.ProcessedSubmission

	if s.reddit != nil {
		coinQueries, unknown := RedditQueries(s.plan.Strategies, s.plan.Symbols, s.plan.PostsLimit, s.plan.TimeWindow)
		for _, u := range unknown {
			log.Warn("skipping unknown sort strategy", "strategy", u)
		}
		passes := []redditPass{{PassCoins, coinQueries, s.plan.SourceDelay}}
		if len(s.plan.GeneralTerms) > 0 {
			general, _ := RedditQueries(s.plan.Strategies, s.plan.GeneralTerms, s.plan.GeneralPostsLimit, s.plan.TimeWindow)
			passes = append(passes, redditPass{PassGeneral, general, s.plan.GeneralDelay})
		}

		for _, pass := range passes {
			for i, sub := range s.plan.Subreddits {
				if i > 0 {
					if err := s.sleep(ctx, pass.delay); err != nil {
						return items, err
					}
				}
				ch := Channel{Source: SourceReddit, Name: sub, Pass: pass.name, SelfOnly: true}
				got, err := s.fetchChannel(ctx, s.reddit, ch, pass.queries, result)
				items = append(items, got...)
				if err != nil {
					return items, err
				}
			}
		}
	}

	if s.news != nil {
		for _, feed := range s.plan.NewsFeeds {
			ch := Channel{Source: SourceNews, Name: feed, Pass: PassNews}
			q := []provider.Query{{Sort: "latest", Limit: s.plan.NewsLimit}}
			got, err := s.fetchChannel(ctx, s.news, ch, q, result)
			items = append(items, got...)
			if err != nil {
				return items, err
			}
		}
	}
	return items, nil
}

func (s *Service) fetchChannel(ctx context.Context, lister Lister, ch Channel, queries []provider.Query, result *domain.RunResult) ([]domain.ProcessedSubmission, error) {
	res, err := s.orchestrator.Fetch(ctx, lister, ch, queries)
	for _, f := range res.Failures {
		result.Errors = append(result.Errors, f.Error())
	}
	progress := res.Progress(ch)
	result.Sources = append(result.Sources, progress)
	if s.progress != nil {
		s.progress(progress)
	}
	return res.Items, err
}

// storeWithRetry repeats the store after a unique-key race. Each attempt
// re-reads existing ids, so rows committed by a concurrent writer are skipped.
func (s *Service) storeWithRetry(ctx context.Context, log logger.Logger, batch []domain.ProcessedSubmission) (int, error) {
	for attempt := 0; ; attempt++ {
		n, err := s.store.Store(ctx, batch)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, storage.ErrPersistenceConflict) || attempt >= s.plan.ConflictRetries {
			return 0, err
		}
		log.Warn("persistence conflict, retrying store", "attempt", attempt+1, "err", err)
	}
}
