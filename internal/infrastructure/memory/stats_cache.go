package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"citizen-portal/internal/domain"
)

type cachedStats struct {
	stats     domain.Stats
	expiresAt time.Time
}

// StatsCache is the process-local cache used when no Redis is configured.
type StatsCache struct {
	mu      sync.Mutex
	entries map[string]cachedStats
	now     func() time.Time
}

func NewStatsCache() *StatsCache {
	return &StatsCache{entries: map[string]cachedStats{}, now: time.Now}
}

func (c *StatsCache) Get(_ context.Context, key string) (domain.Stats, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return domain.Stats{}, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return domain.Stats{}, false, nil
	}
	stats := entry.stats
	stats.ByStatus = maps.Clone(entry.stats.ByStatus)
	return stats, true, nil
}

func (c *StatsCache) Set(_ context.Context, key string, stats domain.Stats, ttl time.Duration) error {
	stats.ByStatus = maps.Clone(stats.ByStatus)
	c.mu.Lock()
	c.entries[key] = cachedStats{stats: stats, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *StatsCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return nil
}
