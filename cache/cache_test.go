package cache

import (
	"context"
	"testing"
	"time"

	"ESMP/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, &config.Config{CacheBackend: "memory", CacheSize: 4, CacheTTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	c, err = New(ctx, &config.Config{CacheTTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	c, err = New(ctx, &config.Config{CacheBackend: "none"})
	require.NoError(t, err)
	assert.IsType(t, &NoOpCache{}, c)

	_, err = New(ctx, &config.Config{CacheBackend: "memcached"})
	assert.Error(t, err)
}

func TestEntryFresh(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := Entry{FetchedAt: at}
	assert.True(t, e.Fresh(at.Add(time.Minute-time.Nanosecond), time.Minute))
	assert.False(t, e.Fresh(at.Add(time.Minute), time.Minute))
}
