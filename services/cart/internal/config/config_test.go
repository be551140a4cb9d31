package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8003, cfg.HTTPPort)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, BackendMemory, cfg.StorageBackend)
	assert.Equal(t, "shopping-cart", cfg.StorageKey)
	assert.Equal(t, 120*time.Millisecond, cfg.SaveDebounce())
	assert.Equal(t, 100, cfg.QuantityCeiling)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 20.0, cfg.RateLimitRPS)
	assert.Equal(t, CatalogFile, cfg.CatalogSource)
	assert.False(t, cfg.StrictPriceBreaks)
	assert.Equal(t, 168*time.Hour, cfg.CartTTLDuration())
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		env  map[string]string
		want string
	}{
		{map[string]string{"CART_HTTP_PORT": "0"}, "invalid HTTP port"},
		{map[string]string{"LOG_FORMAT": "logfmt"}, "LOG_FORMAT"},
		{map[string]string{"OTEL_SAMPLE_RATE": "2.0"}, "OTEL_SAMPLE_RATE must be between 0.0 and 1.0"},
		{map[string]string{"CART_STORAGE_BACKEND": "sessionstorage"}, "CART_STORAGE_BACKEND"},
		{map[string]string{"CART_QUANTITY_CEILING": "0"}, "CART_QUANTITY_CEILING"},
		{map[string]string{"CART_SAVE_DEBOUNCE_MS": "-1"}, "CART_SAVE_DEBOUNCE_MS"},
		{map[string]string{"CART_WRITE_TIMEOUT_SECONDS": "0"}, "CART_WRITE_TIMEOUT_SECONDS"},
		{map[string]string{"CART_REQUEST_TIMEOUT_SECONDS": "0"}, "CART_REQUEST_TIMEOUT_SECONDS"},
		{map[string]string{"CART_RATE_LIMIT_RPS": "-1"}, "CART_RATE_LIMIT_RPS"},
		{map[string]string{"CART_RATE_LIMIT_BURST": "0"}, "CART_RATE_LIMIT_BURST"},
		{map[string]string{"CART_CATALOG_SOURCE": "http"}, "CART_CATALOG_SOURCE"},
		{map[string]string{"CART_CATALOG_CACHE_SECONDS": "-5"}, "CART_CATALOG_CACHE_SECONDS"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			cfg, err := LoadWithOverrides(tt.env)
			assert.Nil(t, cfg)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("CART_STORAGE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "redis.prod:6380")
	t.Setenv("CART_TTL_HOURS", "24")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("CATALOG_STRICT_PRICE_BREAKS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis.prod:6380", cfg.RedisAddr)
	assert.Equal(t, 24*time.Hour, cfg.CartTTLDuration())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.True(t, cfg.StrictPriceBreaks)
}

func TestLoadWithOverrides_FlagsWin(t *testing.T) {
	t.Setenv("CART_STORAGE_BACKEND", "redis")

	cfg, err := LoadWithOverrides(map[string]string{
		"CART_STORAGE_BACKEND": "file",
		"CART_STORAGE_DIR":     t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, BackendFile, cfg.StorageBackend)
}
