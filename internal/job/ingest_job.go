package job

import (
	"context"
	"errors"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/ingest"
	"github.com/mico/crypto-sentiment-analysis/internal/logger"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type IngestRunner interface {
	RunOnce(ctx context.Context) (domain.RunResult, error)
}

// IngestJob repeats ingestion runs on a fixed interval until ctx ends. Give
// it the same ingest.ExclusiveRunner as the HTTP trigger; a tick that finds
// a run in flight is skipped.
type IngestJob struct {
	tracer   trace.Tracer
	runner   IngestRunner
	log      logger.Logger
	interval time.Duration
}

func NewIngestJob(tracer trace.Tracer, runner IngestRunner, log logger.Logger, interval time.Duration) *IngestJob {
	if interval <= 0 {
		interval = time.Hour
	}
	if log == nil {
		log = logger.Nop()
	}
	return &IngestJob{tracer: tracer, runner: runner, log: log, interval: interval}
}

func (j *IngestJob) Start(ctx context.Context) {
	if j.runner == nil {
		j.log.Info("ingest job disabled: no runner")
		<-ctx.Done()
		return
	}

	j.runOnce(ctx)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *IngestJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "ingest-job.run-once")
	defer span.End()

	result, err := j.runner.RunOnce(ctx)
	if errors.Is(err, ingest.ErrRunInProgress) {
		span.SetAttributes(attribute.Bool("skipped", true))
		j.log.Info("ingest tick skipped: a run is already in progress")
		return
	}
	span.SetAttributes(
		attribute.Int("fetched", result.Fetched),
		attribute.Int("inserted", result.Inserted),
	)
	if err != nil {
		j.log.Error("ingest cycle failed", "run_id", result.RunID, "err", err)
		return
	}
	j.log.Info("ingest cycle complete",
		"run_id", result.RunID,
		"summary", result.Summary(),
		"warnings", len(result.Errors),
		"duration", result.Duration().Round(time.Millisecond),
	)
}
