package ingest

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/coins"
	"github.com/mico/crypto-sentiment-analysis/internal/config"
	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/logger"
	"github.com/mico/crypto-sentiment-analysis/internal/provider"
	"github.com/mico/crypto-sentiment-analysis/internal/storage"
	"github.com/mico/crypto-sentiment-analysis/internal/storage/memory"

	"go.opentelemetry.io/otel/trace"
)

type recordingNotifier struct {
	results []domain.RunResult
	err     error
}

func (n *recordingNotifier) NotifyRun(_ context.Context, r domain.RunResult) error {
	n.results = append(n.results, r)
	return n.err
}

type conflictOnceStore struct {
	inner    Store
	attempts int
}

func (s *conflictOnceStore) Store(ctx context.Context, batch []domain.ProcessedSubmission) (int, error) {
	s.attempts++
	if s.attempts == 1 {
		return 0, storage.NewConflictError("RD_a", errors.New("duplicate key"))
	}
	return s.inner.Store(ctx, batch)
}

func newTestService(t *testing.T, reddit, news Lister, store Store, plan Plan, scores map[string]float64) (*Service, *[]time.Duration) {
	t.Helper()
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	o, _ := newTestOrchestrator(&stubProcessor{scores: scores}, 0)
	svc := NewService(tracer, o, reddit, news, store, logger.Nop(), plan)

	var pauses []time.Duration
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return ctx.Err()
	}
	svc.newID = func() string { return "run-1" }
	clock := time.Date(2025, 4, 14, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, &pauses
}

func memoryStore() (*storage.IngestionStore, *memory.Table) {
	table := memory.New()
	return storage.NewIngestionStore(trace.NewNoopTracerProvider().Tracer("test"), table, logger.Nop()), table
}

func TestRunOnceCoinGeneralAndNewsPasses(t *testing.T) {
	reddit := &stubLister{fn: func(_ context.Context, channel string, q provider.Query) ([]domain.RawItem, error) {
		switch {
		case q.Term == "BTC":
			return []domain.RawItem{selfPost("shared"), selfPost(channel + "-btc")}, nil
		case q.Term == "crypto":
			if q.Limit != 75 {
				t.Errorf("general pass should use its own limit, got %d", q.Limit)
			}
			return []domain.RawItem{selfPost("shared")}, nil
		case q.Sort == "hot" && channel == "Bitcoin":
			return nil, errors.New("timeout")
		}
		return nil, nil
	}}
	news := &stubLister{fn: func(_ context.Context, _ string, q provider.Query) ([]domain.RawItem, error) {
		return []domain.RawItem{{NativeID: "900", IDPrefix: domain.NewsIDPrefix, Domain: domain.NewsDomain, Title: "news", IsSelf: true}}, nil
	}}
	store, table := memoryStore()
	notifier := &recordingNotifier{}

	plan := Plan{
		Subreddits:   []string{"CryptoCurrency", "Bitcoin"},
		Symbols:      []string{"BTC"},
		GeneralTerms: []string{"crypto"},
		Strategies:   []string{"hot"},
		PostsLimit:   100,
		SourceDelay:  5 * time.Second,
		GeneralDelay: 3 * time.Second,
		NewsFeeds:    []string{"https://cryptopanic.com/news/rss/"},
	}
	scores := map[string]float64{"shared": 0.6, "CryptoCurrency-btc": -0.4, "Bitcoin-btc": 0.01}
	svc, pauses := newTestService(t, reddit, news, store, plan, scores)

	var progress []domain.SourceProgress
	svc.WithNotifier(notifier).WithProgress(func(p domain.SourceProgress) { progress = append(progress, p) })

	result, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// coin pass: 2 per subreddit, general pass: 1 per subreddit, news: 1
	if result.Fetched != 7 {
		t.Fatalf("expected 7 fetched, got %d", result.Fetched)
	}
	if result.Unique != 4 || result.Inserted != 4 {
		t.Fatalf("expected 4 unique and inserted, got %d/%d", result.Unique, result.Inserted)
	}
	if result.Positive != 1 || result.Negative != 1 || result.Neutral != 2 {
		t.Fatalf("unexpected category counts: +%d =%d -%d", result.Positive, result.Neutral, result.Negative)
	}
	if result.Summary() != "fetched 7, unique 4, new 4" {
		t.Fatalf("unexpected summary: %q", result.Summary())
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected the failing hot unit once per reddit pass, got %v", result.Errors)
	}
	if result.RunID != "run-1" || !result.FinishedAt.After(result.StartedAt) {
		t.Fatalf("unexpected run metadata: %+v", result)
	}
	if table.Len() != 4 {
		t.Fatalf("expected 4 stored rows, got %d", table.Len())
	}
	if _, ok := table.Get("CP_900"); !ok {
		t.Fatal("news item should be stored with the CP_ prefix")
	}

	if len(*pauses) != 2 || (*pauses)[0] != 5*time.Second || (*pauses)[1] != 3*time.Second {
		t.Fatalf("unexpected pauses between subreddits: %v", *pauses)
	}
	if len(progress) != 5 || progress[4].Pass != PassNews {
		t.Fatalf("unexpected progress callbacks: %+v", progress)
	}
	if len(notifier.results) != 1 || notifier.results[0].Inserted != 4 {
		t.Fatalf("expected one notification, got %+v", notifier.results)
	}
}

func TestRunOnceSkipsUnknownStrategy(t *testing.T) {
	var sorts []string
	reddit := &stubLister{fn: func(_ context.Context, _ string, q provider.Query) ([]domain.RawItem, error) {
		sorts = append(sorts, q.Sort)
		if q.Sort == provider.SortHot {
			return []domain.RawItem{selfPost("a")}, nil
		}
		return nil, nil
	}}
	store, _ := memoryStore()
	plan := Plan{Subreddits: []string{"Bitcoin"}, Strategies: []string{"hot", "controversial"}}
	svc, _ := newTestService(t, reddit, nil, store, plan, nil)
	var buf bytes.Buffer
	svc.log = logger.New(&buf, "warn", "logfmt")

	result, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sorts) != 1 || sorts[0] != provider.SortHot {
		t.Fatalf("expected only the hot unit to run, got %v", sorts)
	}
	if result.Inserted != 1 || len(result.Errors) != 0 {
		t.Fatalf("unexpected result: %s errors %v", result.Summary(), result.Errors)
	}
	out := buf.String()
	if !strings.Contains(out, "skipping unknown sort strategy") || !strings.Contains(out, "controversial") {
		t.Fatalf("expected a warning naming the strategy, got %q", out)
	}
}

func TestRunOnceIsIdempotent(t *testing.T) {
	reddit := &stubLister{fn: func(_ context.Context, _ string, q provider.Query) ([]domain.RawItem, error) {
		return []domain.RawItem{selfPost("a"), selfPost("b")}, nil
	}}
	store, _ := memoryStore()
	svc, _ := newTestService(t, reddit, nil, store, Plan{Subreddits: []string{"Bitcoin"}, Strategies: []string{"new"}}, nil)

	first, err := svc.RunOnce(context.Background())
	if err != nil || first.Inserted != 2 {
		t.Fatalf("first run: inserted %d, err %v", first.Inserted, err)
	}
	second, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Inserted != 0 || second.Summary() != "fetched 2, unique 2, new 0" {
		t.Fatalf("unexpected second run: %s", second.Summary())
	}
}

func TestRunOnceRetriesConflict(t *testing.T) {
	reddit := &stubLister{fn: func(_ context.Context, _ string, _ provider.Query) ([]domain.RawItem, error) {
		return []domain.RawItem{selfPost("a")}, nil
	}}
	inner, _ := memoryStore()
	store := &conflictOnceStore{inner: inner}
	plan := Plan{Subreddits: []string{"Bitcoin"}, Strategies: []string{"new"}, ConflictRetries: 1}
	svc, _ := newTestService(t, reddit, nil, store, plan, nil)

	result, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.attempts != 2 || result.Inserted != 1 {
		t.Fatalf("expected a retried store, attempts %d inserted %d", store.attempts, result.Inserted)
	}
}

func TestRunOnceSurfacesConflictAfterRetries(t *testing.T) {
	reddit := &stubLister{fn: func(_ context.Context, _ string, _ provider.Query) ([]domain.RawItem, error) {
		return []domain.RawItem{selfPost("a")}, nil
	}}
	inner, _ := memoryStore()
	store := &conflictOnceStore{inner: inner}
	plan := Plan{Subreddits: []string{"Bitcoin"}, Strategies: []string{"new"}}
	svc, _ := newTestService(t, reddit, nil, store, plan, nil)
	svc.plan.ConflictRetries = 0

	_, err := svc.RunOnce(context.Background())
	if !errors.Is(err, storage.ErrPersistenceConflict) {
		t.Fatalf("expected persistence conflict, got %v", err)
	}
}

func TestRunOnceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reddit := &stubLister{fn: func(_ context.Context, _ string, _ provider.Query) ([]domain.RawItem, error) {
		cancel()
		return nil, context.Canceled
	}}
	store, table := memoryStore()
	svc, _ := newTestService(t, reddit, nil, store, Plan{Subreddits: []string{"Bitcoin", "ethereum"}}, nil)

	_, err := svc.RunOnce(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if table.Len() != 0 {
		t.Fatal("nothing may be stored for a cancelled run")
	}
}

func TestPlanFromConfig(t *testing.T) {
	cfg := &config.Config{
		Subreddits:   []string{"Bitcoin"},
		GeneralTerms: []string{"crypto"},
		PostsLimit:   100,
	}
	cfg.Reddit.Strategies = []string{"hot", "new"}
	cfg.Reddit.TimeWindow = "week"
	cfg.Ingest.GeneralPostsLimit = 75
	cfg.News.Feeds = []string{"https://cryptopanic.com/news/rss/"}
	table := coins.MustTable([]coins.Coin{{Symbol: "BTC", Keywords: []string{"BTC"}}, {Symbol: "ETH", Keywords: []string{"ETH"}}})

	plan := PlanFromConfig(cfg, table)
	if len(plan.Symbols) != 2 || plan.Symbols[0] != "BTC" {
		t.Fatalf("coin pass terms should be the table symbols, got %v", plan.Symbols)
	}
	if len(plan.NewsFeeds) != 0 {
		t.Fatal("feeds must be ignored while news is disabled")
	}

	cfg.News.Enabled = true
	if plan := PlanFromConfig(cfg, table); len(plan.NewsFeeds) != 1 {
		t.Fatalf("expected news feed once enabled, got %v", plan.NewsFeeds)
	}
}
