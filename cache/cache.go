// Package cache keeps short-lived copies of metadata service responses.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ESMP/config"
)

// ErrMiss is returned by Get when the key is absent or its entry is stale.
var ErrMiss = errors.New("cache miss")

// Entry is a cached payload and the time it was fetched.
type Entry struct {
	Payload   []byte    `json:"payload"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Fresh reports whether the entry is still inside ttl at now.
func (e Entry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}

// Cache stores payloads by key. Stale entries are never returned.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
}

// Clock tells the cache what time it is.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// New builds the backend selected by cfg.CacheBackend.
func New(ctx context.Context, cfg *config.Config) (Cache, error) {
	switch cfg.CacheBackend {
	case "", "memory":
		return NewMemoryCache(cfg.CacheSize, cfg.CacheTTL, SystemClock)
	case "redis":
		return NewRedisCache(ctx, RedisOptions{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		})
	case "none":
		return &NoOpCache{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}
