package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryCache is a bounded in-process cache. Entries expire ttl after they
// were set, measured with the injected clock.
type MemoryCache struct {
	entries *lru.Cache[string, Entry]
	ttl     time.Duration
	clock   Clock
}

// NewMemoryCache creates a cache holding at most size keys.
func NewMemoryCache(size int, ttl time.Duration, clock Clock) (*MemoryCache, error) {
	if size <= 0 {
		size = 64
	}
	entries, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	if clock == nil {
		clock = SystemClock
	}
	return &MemoryCache{entries: entries, ttl: ttl, clock: clock}, nil
}

func (c *MemoryCache) Get(ctx context.Context, key string) (*Entry, error) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	if !e.Fresh(c.clock.Now(), c.ttl) {
		c.entries.Remove(key)
		return nil, ErrMiss
	}
	return &e, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, payload []byte) error {
	c.entries.Add(key, Entry{
		Payload:   append([]byte(nil), payload...),
		FetchedAt: c.clock.Now(),
	})
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.entries.Remove(key)
	return nil
}

// Len is the number of stored keys, stale ones included.
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}
