package storage

import (
	"context"
	"fmt"

	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/logger"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// IngestionStore is the only ingestion-side writer to the table.
type IngestionStore struct {
	tracer trace.Tracer
	table  Table
	log    logger.Logger
}

func NewIngestionStore(tracer trace.Tracer, table Table, log logger.Logger) *IngestionStore {
	if log == nil {
		log = logger.Nop()
	}
	return &IngestionStore{tracer: tracer, table: table, log: log}
}

// Store dedups the batch against itself (first occurrence wins) and against
// ids already in the table, then inserts the survivors in one transaction.
// It returns the number of rows committed. A unique-key race surfaces as an
// error wrapping ErrPersistenceConflict with nothing committed.
func (s *IngestionStore) Store(ctx context.Context, batch []domain.ProcessedSubmission) (int, error) {
	ctx, span := s.tracer.Start(ctx, "storage.ingestion-store")
	defer span.End()

	if len(batch) == 0 {
		return 0, nil
	}

	unique := Dedupe(batch)
	existing, err := s.table.ExistingIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("read existing ids: %w", err)
	}

	records := make([]domain.PersistedRecord, 0, len(unique))
	for _, sub := range unique {
		if _, ok := existing[sub.ID]; ok {
			continue
		}
		records = append(records, sub.Record())
	}
	span.SetAttributes(
		attribute.Int("batch.size", len(batch)),
		attribute.Int("batch.unique", len(unique)),
		attribute.Int("batch.new", len(records)),
	)

	if len(records) == 0 {
		s.log.Debug("no new records to insert", "batch", len(batch), "unique", len(unique))
		return 0, nil
	}

	if err := s.table.InsertBatch(ctx, records); err != nil {
		s.log.Warn("batch insert rolled back", "records", len(records), "err", err)
		return 0, err
	}
	s.log.Info("batch inserted", "records", len(records))
	return len(records), nil
}

// Records exposes the read side of the table for analytics.
func (s *IngestionStore) Records(ctx context.Context, f Filter) ([]domain.PersistedRecord, error) {
	return s.table.Records(ctx, f)
}
