package robots

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	body    []byte
	expires time.Time
}

// MemCache is an in-process robots cache with TTL, used when no Redis
// backend is configured. Safe for concurrent use.
type MemCache struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

func NewMemCache() *MemCache {
	return &MemCache{entries: make(map[string]memEntry)}
}

// Get implements repository.RobotsCache.
func (c *MemCache) Get(_ context.Context, host string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[host]
	if !ok || time.Now().After(e.expires) {
		delete(c.entries, host)
		return nil, false, nil
	}
	return e.body, true, nil
}

// Set implements repository.RobotsCache.
func (c *MemCache) Set(_ context.Context, host string, body []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[host] = memEntry{body: body, expires: time.Now().Add(ttl)}
	return nil
}
