// Package cache connects to the Redis instance backing the analytics cache
// and evicts snapshots that a finished ingestion run has made stale.
package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/logger"

	"github.com/redis/go-redis/v9"
)

// AnalyticsPrefix is the key namespace of cached analytics snapshots.
const AnalyticsPrefix = "analytics:"

var (
	newRedisClient = redis.NewClient
	pingRedis      = func(ctx context.Context, client *redis.Client) error {
		return client.Ping(ctx).Err()
	}
)

// Connect dials addr, which is either host:port or a redis:// URL. An empty
// addr disables caching and returns a nil client.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, nil
	}

	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	client := newRedisClient(opts)
	if err := pingRedis(ctx, client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", opts.Addr, err)
	}
	return client, nil
}

type keyDeleter interface {
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Invalidator deletes every key under a prefix once a run has committed new
// rows. Runs that inserted nothing leave the cache alone.
type Invalidator struct {
	client keyDeleter
	prefix string
	log    logger.Logger
}

func NewInvalidator(client keyDeleter, prefix string, log logger.Logger) *Invalidator {
	if prefix == "" {
		prefix = AnalyticsPrefix
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Invalidator{client: client, prefix: prefix, log: log}
}

func (i *Invalidator) NotifyRun(ctx context.Context, result domain.RunResult) error {
	if result.Inserted == 0 {
		return nil
	}
	n, err := i.Flush(ctx)
	if err != nil {
		return fmt.Errorf("invalidate %s*: %w", i.prefix, err)
	}
	i.log.Debug("analytics cache invalidated", "run_id", result.RunID, "keys", n)
	return nil
}

// Flush removes all keys under the prefix and returns how many were deleted.
func (i *Invalidator) Flush(ctx context.Context) (int64, error) {
	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := i.client.Scan(ctx, cursor, i.prefix+"*", 100).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := i.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += n
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}
