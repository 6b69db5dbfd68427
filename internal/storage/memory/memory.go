// Package memory is an in-process sentiment_data table for tests and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mico/crypto-sentiment-analysis/internal/coins"
	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/storage"
)

type Table struct {
	mu     sync.RWMutex
	rows   map[string]domain.PersistedRecord
	order  []string
	closed bool
}

func New() *Table {
	return &Table{rows: make(map[string]domain.PersistedRecord)}
}

var _ storage.Table = (*Table)(nil)

func (t *Table) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return nil, storage.ErrClosed
	}
	out := make(map[string]struct{}, len(t.rows))
	for id := range t.rows {
		out[id] = struct{}{}
	}
	return out, nil
}

// InsertBatch validates the whole batch before writing so a conflict leaves
// the table untouched.
func (t *Table) InsertBatch(ctx context.Context, records []domain.PersistedRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return storage.ErrClosed
	}

	pending := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, ok := t.rows[r.ID]; ok {
			return storage.NewConflictError(r.ID, nil)
		}
		if _, ok := pending[r.ID]; ok {
			return storage.NewConflictError(r.ID, nil)
		}
		pending[r.ID] = struct{}{}
	}
	for _, r := range records {
		t.rows[r.ID] = r
		t.order = append(t.order, r.ID)
	}
	return nil
}

// Records returns matching rows newest first.
func (t *Table) Records(ctx context.Context, f storage.Filter) ([]domain.PersistedRecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return nil, storage.ErrClosed
	}

	out := make([]domain.PersistedRecord, 0, len(t.order))
	for _, id := range t.order {
		r := t.rows[id]
		if !f.Since.IsZero() && r.PublishedAt.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && r.PublishedAt.After(f.Until) {
			continue
		}
		if f.Domain != nil && r.Domain != *f.Domain {
			continue
		}
		if coin := f.CoinSymbol(); coin != "" && !containsCoin(r.Coins, coin) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func containsCoin(joined, coin string) bool {
	for _, c := range coins.Split(joined) {
		if c == coin {
			return true
		}
	}
	return false
}

// Len is the number of stored rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Get returns the stored row for id.
func (t *Table) Get(id string) (domain.PersistedRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rows[id]
	return r, ok
}

func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
