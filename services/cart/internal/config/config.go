package config

import (
	"fmt"
	"slices"
	"time"

	pkgconfig "github.com/utafrali/EcommerceGo/pkg/config"
	"github.com/utafrali/EcommerceGo/pkg/logger"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Catalog sources.
const (
	CatalogFile     = "file"
	CatalogPostgres = "postgres"
)

// Config holds all configuration for the cart service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTP server
	HTTPPort           int `env:"CART_HTTP_PORT" envDefault:"8003"`
	RequestTimeoutSecs int `env:"CART_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`

	// Per-client limit on cart mutations; 0 disables.
	RateLimitRPS   float64 `env:"CART_RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"CART_RATE_LIMIT_BURST" envDefault:"40"`

	// Cart engine
	StorageBackend   string `env:"CART_STORAGE_BACKEND" envDefault:"memory"`
	StorageKey       string `env:"CART_STORAGE_KEY" envDefault:"shopping-cart"`
	StorageDir       string `env:"CART_STORAGE_DIR" envDefault:"./data"`
	SaveDebounceMs   int    `env:"CART_SAVE_DEBOUNCE_MS" envDefault:"120"`
	QuantityCeiling  int    `env:"CART_QUANTITY_CEILING" envDefault:"100"`
	WriteTimeoutSecs int    `env:"CART_WRITE_TIMEOUT_SECONDS" envDefault:"5"`

	// Storage circuit breaker
	BreakerEnabled bool `env:"CART_STORAGE_BREAKER" envDefault:"true"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Cart TTL in hours for the redis backend (default: 7 days)
	CartTTL int `env:"CART_TTL_HOURS" envDefault:"168"`

	// Catalog
	CatalogSource       string `env:"CART_CATALOG_SOURCE" envDefault:"file"`
	CatalogFile         string `env:"CART_CATALOG_FILE" envDefault:"./catalog.yaml"`
	StrictPriceBreaks   bool   `env:"CATALOG_STRICT_PRICE_BREAKS" envDefault:"false"`
	CatalogRunMigration bool   `env:"CART_CATALOG_MIGRATE" envDefault:"true"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"ecommerce"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"ecommerce_secret"`
	PostgresDB   string `env:"CART_DB_NAME" envDefault:"cart_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns int32 `env:"DB_MIN_CONNS" envDefault:"1"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`

	// Kafka; empty disables snapshot events.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// HTTP caching of catalog reads; 0 disables.
	CatalogCacheSeconds int `env:"CART_CATALOG_CACHE_SECONDS" envDefault:"60"`

	// Profiling endpoints, served only to these networks; empty disables.
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return LoadWithOverrides(nil)
}

// LoadWithOverrides reads configuration from the environment with the given
// variables taking precedence. The CLI maps its flags through it.
func LoadWithOverrides(overrides map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadWithOverrides(cfg, overrides); err != nil {
		return nil, fmt.Errorf("load cart config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !slices.Contains([]string{logger.FormatJSON, logger.FormatText}, c.LogFormat) {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if !slices.Contains([]string{BackendMemory, BackendFile, BackendRedis}, c.StorageBackend) {
		return fmt.Errorf("CART_STORAGE_BACKEND must be one of memory, file, redis, got %q", c.StorageBackend)
	}
	if c.StorageKey == "" {
		return fmt.Errorf("CART_STORAGE_KEY is required")
	}
	if c.StorageBackend == BackendFile && c.StorageDir == "" {
		return fmt.Errorf("CART_STORAGE_DIR is required for the file backend")
	}
	if c.StorageBackend == BackendRedis && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required for the redis backend")
	}
	if c.RequestTimeoutSecs < 1 {
		return fmt.Errorf("CART_REQUEST_TIMEOUT_SECONDS must be positive, got %d", c.RequestTimeoutSecs)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("CART_RATE_LIMIT_RPS must not be negative, got %g", c.RateLimitRPS)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("CART_RATE_LIMIT_BURST must be positive when limiting, got %d", c.RateLimitBurst)
	}
	if c.SaveDebounceMs < 0 {
		return fmt.Errorf("CART_SAVE_DEBOUNCE_MS must not be negative, got %d", c.SaveDebounceMs)
	}
	if c.QuantityCeiling < 1 {
		return fmt.Errorf("CART_QUANTITY_CEILING must be positive, got %d", c.QuantityCeiling)
	}
	if c.WriteTimeoutSecs < 1 {
		return fmt.Errorf("CART_WRITE_TIMEOUT_SECONDS must be positive, got %d", c.WriteTimeoutSecs)
	}
	switch c.CatalogSource {
	case CatalogFile:
		if c.CatalogFile == "" {
			return fmt.Errorf("CART_CATALOG_FILE is required for the file catalog")
		}
	case CatalogPostgres:
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
	default:
		return fmt.Errorf("CART_CATALOG_SOURCE must be file or postgres, got %q", c.CatalogSource)
	}
	if c.CatalogCacheSeconds < 0 {
		return fmt.Errorf("CART_CATALOG_CACHE_SECONDS must not be negative, got %d", c.CatalogCacheSeconds)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// SaveDebounce is the persistence debounce interval.
func (c *Config) SaveDebounce() time.Duration {
	return time.Duration(c.SaveDebounceMs) * time.Millisecond
}

// WriteTimeout bounds a single storage write.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSecs) * time.Second
}

// RequestTimeout bounds the handling of one HTTP request.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

// CartTTLDuration is the expiry applied to redis-stored carts.
func (c *Config) CartTTLDuration() time.Duration {
	return time.Duration(c.CartTTL) * time.Hour
}

// KafkaEnabled reports whether snapshot events are published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
