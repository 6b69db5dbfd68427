// Package storage owns the write path into the sentiment_data table.
package storage

import (
	"context"
	"strings"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/domain"
)

// TableName is the persisted table shared by every backend.
const TableName = "sentiment_data"

// SchemaVersion 2 stores sentiment as the raw compound float.
const SchemaVersion = 2

// Filter narrows Records. Zero values mean "no constraint".
type Filter struct {
	Since  time.Time
	Until  time.Time
	Domain *string
	Coin   string
	Limit  int
}

// CoinSymbol is Coin in the upper-case form coin tables store, or "" when
// the filter does not constrain coins.
func (f Filter) CoinSymbol() string {
	return strings.ToUpper(strings.TrimSpace(f.Coin))
}

// Table is the persisted table abstraction. InsertBatch must be atomic: on
// any error no row of the batch is committed.
type Table interface {
	ExistingIDs(ctx context.Context) (map[string]struct{}, error)
	InsertBatch(ctx context.Context, records []domain.PersistedRecord) error
	Records(ctx context.Context, f Filter) ([]domain.PersistedRecord, error)
	Close() error
}

// Dedupe keeps the first submission seen for each id, preserving order.
func Dedupe(batch []domain.ProcessedSubmission) []domain.ProcessedSubmission {
	seen := make(map[string]struct{}, len(batch))
	out := make([]domain.ProcessedSubmission, 0, len(batch))
	for _, s := range batch {
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out
}
