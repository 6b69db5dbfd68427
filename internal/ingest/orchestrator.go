// Package ingest drives one fetch run: listing sources, processing items and
// handing the batch to storage.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/logger"
	"github.com/mico/crypto-sentiment-analysis/internal/provider"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Lister is one source of raw items. A channel is a subreddit or a feed URL.
type Lister interface {
	List(ctx context.Context, channel string, q provider.Query) ([]domain.RawItem, error)
}

type ItemProcessor interface {
	Process(ctx context.Context, item domain.RawItem) (domain.ProcessedSubmission, error)
}

// SourceFetchError records one failed work unit. The run continues.
type SourceFetchError struct {
	Source string
	Unit   string
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("%s:%s: %v", e.Source, e.Unit, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// Channel identifies what is being fetched and how its items are filtered.
type Channel struct {
	Source   string
	Name     string
	Pass     string
	SelfOnly bool
}

type ChannelResult struct {
	Items    []domain.ProcessedSubmission
	Failures []*SourceFetchError
}

func (r ChannelResult) Progress(ch Channel) domain.SourceProgress {
	return domain.SourceProgress{
		Source:  ch.Source,
		Channel: ch.Name,
		Pass:    ch.Pass,
		Fetched: len(r.Items),
		Failed:  len(r.Failures),
	}
}

type OrchestratorOptions struct {
	ItemDelay      time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

type Orchestrator struct {
	tracer    trace.Tracer
	processor ItemProcessor
	log       logger.Logger
	opts      OrchestratorOptions
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(tracer trace.Tracer, processor ItemProcessor, log logger.Logger, opts OrchestratorOptions) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	if opts.ItemDelay < 0 {
		opts.ItemDelay = 0
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = time.Second
	}
	return &Orchestrator{
		tracer:    tracer,
		processor: processor,
		log:       log,
		opts:      opts,
		sleep:     sleepContext,
	}
}

// RedditQueries expands sort strategies and search terms into work units:
// one listing per known strategy, then one search per term. Unknown
// strategies are returned separately so the caller can warn about them.
func RedditQueries(strategies, terms []string, limit int, window string) ([]provider.Query, []string) {
	var (
		queries []provider.Query
		unknown []string
	)
	for _, s := range strategies {
		sort := strings.ToLower(strings.TrimSpace(s))
		switch sort {
		case provider.SortHot, provider.SortNew, provider.SortRising:
			queries = append(queries, provider.Query{Sort: sort, Limit: limit})
		case provider.SortTop:
			queries = append(queries, provider.Query{Sort: sort, Limit: limit, TimeWindow: window})
		default:
			unknown = append(unknown, s)
		}
	}
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		queries = append(queries, provider.Query{Sort: provider.SortSearch, Term: term, Limit: limit, TimeWindow: window})
	}
	return queries, unknown
}

// Fetch runs every query against one channel. A failing unit is retried,
// then recorded and skipped; only cancellation of ctx aborts the channel, in
// which case the items gathered so far are returned with the context error.
func (o *Orchestrator) Fetch(ctx context.Context, lister Lister, ch Channel, queries []provider.Query) (ChannelResult, error) {
	ctx, span := o.tracer.Start(ctx, "ingest.fetch-channel")
	defer span.End()
	span.SetAttributes(
		attribute.String("ingest.source", ch.Source),
		attribute.String("ingest.channel", ch.Name),
		attribute.String("ingest.pass", ch.Pass),
		attribute.Int("ingest.units", len(queries)),
	)

	var result ChannelResult
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		unit := ch.Name + ":" + q.String()

		raw, err := o.list(ctx, lister, ch.Name, q)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			result.Failures = append(result.Failures, o.fail(ch.Source, unit, err))
			continue
		}

		for _, item := range raw {
			if ch.SelfOnly && !item.IsSelf {
				continue
			}
			processed, err := o.processor.Process(ctx, item)
			if err != nil {
				result.Failures = append(result.Failures, o.fail(ch.Source, unit, err))
				break
			}
			result.Items = append(result.Items, processed)
			if err := o.sleep(ctx, o.opts.ItemDelay); err != nil {
				return result, err
			}
		}
	}
	span.SetAttributes(
		attribute.Int("ingest.items", len(result.Items)),
		attribute.Int("ingest.failures", len(result.Failures)),
	)
	return result, nil
}

func (o *Orchestrator) list(ctx context.Context, lister Lister, channel string, q provider.Query) ([]domain.RawItem, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.opts.RetryBaseDelay
	b.MaxInterval = 8 * o.opts.RetryBaseDelay

	return backoff.Retry(ctx, func() ([]domain.RawItem, error) {
		items, err := lister.List(ctx, channel, q)
		if err == nil {
			return items, nil
		}
		var statusErr *provider.StatusError
		if errors.As(err, &statusErr) && !statusErr.Temporary() {
			return nil, backoff.Permanent(err)
		}
		o.log.Debug("listing failed, retrying", "channel", channel, "query", q.String(), "err", err)
		return nil, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(o.opts.MaxRetries+1)))
}

func (o *Orchestrator) fail(source, unit string, err error) *SourceFetchError {
	fe := &SourceFetchError{Source: source, Unit: unit, Err: err}
	o.log.Warn("work unit skipped", "source", source, "unit", unit, "err", err)
	return fe
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
