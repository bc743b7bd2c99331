// Package cache keeps summary query results in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"hypervisorReturns/internal/model"
	"hypervisorReturns/internal/summary"
)

const keyPrefix = "summary"

// globChars are the Redis SCAN pattern metacharacters.
const globChars = `*?[]\`

// ErrUnsafeChain is returned for chain names that cannot be matched by a SCAN pattern.
var ErrUnsafeChain = errors.New("chain name contains glob metacharacters")

func checkChain(chain string) error {
	if strings.ContainsAny(chain, globChars) {
		return fmt.Errorf("chain %q: %w", chain, ErrUnsafeChain)
	}
	return nil
}

// Connect opens a Redis client and pings it.
func Connect(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

// SummaryCache is a read-through cache in front of a summary querier.
// Redis failures fall through to the wrapped querier.
type SummaryCache struct {
	rdb    *goredis.Client
	next   summary.Querier
	ttl    time.Duration
	logger *zap.Logger
}

func NewSummaryCache(rdb *goredis.Client, next summary.Querier, ttl time.Duration, logger *zap.Logger) *SummaryCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SummaryCache{rdb: rdb, next: next, ttl: ttl, logger: logger}
}

// Key returns the cache key of a filter.
func Key(f model.Filter) string {
	f = f.Normalized()
	return fmt.Sprintf("%s:%s:%d:%s:%s", keyPrefix, f.Chain, f.Period, f.Protocol, f.Address)
}

// Query serves filter from Redis when present, else from the wrapped querier.
// Chains whose keys Written could not match are never cached.
func (c *SummaryCache) Query(ctx context.Context, filter model.Filter) ([]model.AverageSummary, error) {
	if err := checkChain(filter.Chain); err != nil {
		return c.next.Query(ctx, filter)
	}
	key := Key(filter)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var out []model.AverageSummary
		if err := json.Unmarshal(raw, &out); err == nil {
			return out, nil
		}
		c.logger.Warn("summary cache decode", zap.String("key", key), zap.Error(err))
	case !errors.Is(err, goredis.Nil):
		c.logger.Warn("summary cache get", zap.String("key", key), zap.Error(err))
	}

	out, err := c.next.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(out)
	if err != nil {
		return out, nil
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("summary cache set", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

// Written drops every cached summary of the event's chain.
func (c *SummaryCache) Written(ctx context.Context, ev model.WrittenEvent) error {
	if err := checkChain(ev.Chain); err != nil {
		return err
	}
	pattern := fmt.Sprintf("%s:%s:*", keyPrefix, ev.Chain)
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan summary keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete summary keys: %w", err)
	}
	c.logger.Debug("summary cache invalidated", zap.String("chain", ev.Chain), zap.Int("keys", len(keys)))
	return nil
}
