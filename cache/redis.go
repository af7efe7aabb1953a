package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "esmp:"

// RedisOptions configures RedisCache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Clock    Clock
}

// RedisCache stores entries in Redis with the TTL as key expiry.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	clock  Clock
}

// NewRedisCache connects and pings Redis.
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = SystemClock
	}
	return &RedisCache{client: client, ttl: opts.TTL, clock: clock}, nil
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("failed to get cache key %s: %w", key, err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry %s: %w", key, err)
	}
	// Redis expiry has second granularity; the timestamp is authoritative.
	if !e.Fresh(c.clock.Now(), c.ttl) {
		return nil, ErrMiss
	}
	return &e, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, payload []byte) error {
	data, err := json.Marshal(Entry{Payload: payload, FetchedAt: c.clock.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, keyPrefix+key).Err()
}

// Check writes, reads back and deletes a probe key.
func (c *RedisCache) Check(ctx context.Context) error {
	const probe = "connection_test"
	want := []byte("Redis connection successful!")

	if err := c.Set(ctx, probe, want); err != nil {
		return err
	}
	e, err := c.Get(ctx, probe)
	if err != nil {
		return fmt.Errorf("failed to read back probe key: %w", err)
	}
	if string(e.Payload) != string(want) {
		return fmt.Errorf("unexpected value from Redis: got %s", e.Payload)
	}
	return c.Delete(ctx, probe)
}
