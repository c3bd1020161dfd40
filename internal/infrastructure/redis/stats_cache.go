package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"citizen-portal/internal/domain"
)

const statsKeyPrefix = "citizen-portal:"

// StatsCache stores aggregated stats as JSON with a TTL so every instance
// behind the load balancer shares one view.
type StatsCache struct {
	client *redis.Client
}

func NewStatsCache(client *redis.Client) *StatsCache {
	return &StatsCache{client: client}
}

func (c *StatsCache) Get(ctx context.Context, key string) (domain.Stats, bool, error) {
	raw, err := c.client.Get(ctx, statsKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Stats{}, false, nil
	}
	if err != nil {
		return domain.Stats{}, false, err
	}
	var stats domain.Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return domain.Stats{}, false, err
	}
	return stats, true, nil
}

func (c *StatsCache) Set(ctx context.Context, key string, stats domain.Stats, ttl time.Duration) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statsKeyPrefix+key, raw, ttl).Err()
}

func (c *StatsCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = statsKeyPrefix + key
	}
	return c.client.Del(ctx, prefixed...).Err()
}
