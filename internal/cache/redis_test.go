package cache

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/logger"

	"github.com/redis/go-redis/v9"
)

func stubDialer(t *testing.T, pingErr error) *string {
	t.Helper()
	origNewClient := newRedisClient
	origPing := pingRedis
	t.Cleanup(func() {
		newRedisClient = origNewClient
		pingRedis = origPing
	})

	var capturedAddr string
	newRedisClient = func(opts *redis.Options) *redis.Client {
		capturedAddr = opts.Addr
		return redis.NewClient(opts)
	}
	pingRedis = func(ctx context.Context, client *redis.Client) error {
		return pingErr
	}
	return &capturedAddr
}

func TestConnect(t *testing.T) {
	tests := []struct {
		name string
		in   string
		addr string
	}{
		{name: "host and port", in: "redis:9999", addr: "redis:9999"},
		{name: "url", in: "redis://cache.internal:6380/2", addr: "cache.internal:6380"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := stubDialer(t, nil)
			client, err := Connect(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer client.Close()
			if *addr != tt.addr {
				t.Fatalf("expected addr %s, got %s", tt.addr, *addr)
			}
		})
	}
}

func TestConnectDisabled(t *testing.T) {
	client, err := Connect(context.Background(), "  ")
	if err != nil || client != nil {
		t.Fatalf("empty addr should disable caching, got %v %v", client, err)
	}
}

func TestConnectPingFailure(t *testing.T) {
	stubDialer(t, errors.New("connection refused"))

	_, err := Connect(context.Background(), "localhost:6379")
	if err == nil || !strings.Contains(err.Error(), "localhost:6379") {
		t.Fatalf("expected ping error naming the address, got %v", err)
	}
}

// pagedKeys serves SCAN in pages of two and records DEL calls.
type pagedKeys struct {
	keys    []string
	scanErr error
	deleted []string
	matches []string
}

func (p *pagedKeys) Scan(_ context.Context, cursor uint64, match string, _ int64) *redis.ScanCmd {
	p.matches = append(p.matches, match)
	if p.scanErr != nil {
		return redis.NewScanCmdResult(nil, 0, p.scanErr)
	}
	end := min(int(cursor)+2, len(p.keys))
	page := p.keys[cursor:end]
	next := uint64(end)
	if end == len(p.keys) {
		next = 0
	}
	return redis.NewScanCmdResult(page, next, nil)
}

func (p *pagedKeys) Del(_ context.Context, keys ...string) *redis.IntCmd {
	p.deleted = append(p.deleted, keys...)
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestInvalidatorFlushesEveryPage(t *testing.T) {
	store := &pagedKeys{keys: []string{"analytics:summary:a", "analytics:summary:b", "analytics:coin:c"}}
	inv := NewInvalidator(store, "", logger.Nop())

	if err := inv.NotifyRun(context.Background(), domain.RunResult{RunID: "r1", Inserted: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.deleted) != 3 {
		t.Fatalf("expected all three keys deleted, got %v", store.deleted)
	}
	if store.matches[0] != "analytics:*" {
		t.Fatalf("unexpected scan pattern %q", store.matches[0])
	}
}

func TestInvalidatorSkipsRunsWithoutInserts(t *testing.T) {
	store := &pagedKeys{keys: []string{"analytics:summary:a"}}
	inv := NewInvalidator(store, AnalyticsPrefix, nil)

	if err := inv.NotifyRun(context.Background(), domain.RunResult{Fetched: 10, Unique: 8}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.matches) != 0 || len(store.deleted) != 0 {
		t.Fatalf("cache should be untouched, scans=%v deleted=%v", store.matches, store.deleted)
	}
}

func TestInvalidatorReportsScanError(t *testing.T) {
	inv := NewInvalidator(&pagedKeys{scanErr: errors.New("READONLY")}, "", nil)

	err := inv.NotifyRun(context.Background(), domain.RunResult{Inserted: 1})
	if err == nil || !strings.Contains(err.Error(), "READONLY") {
		t.Fatalf("expected scan error, got %v", err)
	}
}
