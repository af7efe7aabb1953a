package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CACHE_TTL", "")
	t.Setenv("PAGE_SIZE", "not-a-number")

	cfg := Load()
	assert.Equal(t, "2022-06-28", cfg.NotionVersion)
	assert.Equal(t, 3*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, "0000", cfg.DownloadPassword)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr())
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"90s", 90 * time.Second},
		{"180", 3 * time.Minute},
		{"soon", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, getEnvDuration("TEST_DURATION", time.Minute))
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "false")
	assert.False(t, getEnvBool("TEST_BOOL", true))
	t.Setenv("TEST_BOOL", "nah")
	assert.True(t, getEnvBool("TEST_BOOL", true))
}
