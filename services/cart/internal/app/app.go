package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/EcommerceGo/pkg/breaker"
	"github.com/utafrali/EcommerceGo/pkg/database"
	"github.com/utafrali/EcommerceGo/pkg/health"
	pkgkafka "github.com/utafrali/EcommerceGo/pkg/kafka"
	"github.com/utafrali/EcommerceGo/pkg/middleware"
	"github.com/utafrali/EcommerceGo/pkg/tracing"
	"github.com/utafrali/EcommerceGo/services/cart/internal/catalog"
	pgcatalog "github.com/utafrali/EcommerceGo/services/cart/internal/catalog/postgres"
	"github.com/utafrali/EcommerceGo/services/cart/internal/config"
	"github.com/utafrali/EcommerceGo/services/cart/internal/event"
	handler "github.com/utafrali/EcommerceGo/services/cart/internal/handler/http"
	"github.com/utafrali/EcommerceGo/services/cart/internal/storage"
	"github.com/utafrali/EcommerceGo/services/cart/internal/storage/file"
	"github.com/utafrali/EcommerceGo/services/cart/internal/storage/memory"
	redisstore "github.com/utafrali/EcommerceGo/services/cart/internal/storage/redis"
	"github.com/utafrali/EcommerceGo/services/cart/migrations"
)

const serviceName = "cart-service"

// App wires together all dependencies and runs the cart service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	engine         *Engine
	releaseStorage func()
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	tracerShutdown func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Initialize tracing.
	tracerShutdown, err := tracing.InitTracer(initCtx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
		Attributes: map[string]string{
			"cart.storage": cfg.StorageBackend,
			"cart.catalog": cfg.CatalogSource,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	backend, release, err := OpenBackend(initCtx, cfg, logger)
	if err != nil {
		a.closeAll()
		return nil, err
	}
	a.releaseStorage = release
	healthHandler.RegisterNonCritical("storage", backend.Ping)

	cat, pool, err := OpenCatalog(initCtx, cfg, logger)
	if err != nil {
		a.closeAll()
		return nil, err
	}
	if pool != nil {
		a.pool = pool
		healthHandler.RegisterCritical("postgres", pool.Ping)
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
			logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
		}
	}

	opts := EngineOptions{
		Ceiling:      cfg.QuantityCeiling,
		Debounce:     cfg.SaveDebounce(),
		WriteTimeout: cfg.WriteTimeout(),
		Logger:       logger,
	}

	if cfg.KafkaEnabled() {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		opts.OnSaved = event.NewProducer(a.producer, cfg.StorageKey, backend.Origin(), logger).OnSaved
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	a.engine = NewEngine(ctx, backend, cfg.StorageKey, opts)

	router := handler.NewRouter(a.engine.Store(), cat, healthHandler, logger, handler.RouterConfig{
		TabID:             a.engine.Origin(),
		CORS:              middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins, Environment: cfg.Environment},
		CatalogMaxAge:     cfg.CatalogCacheSeconds,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		RequestTimeout:    cfg.RequestTimeout(),
		RateLimit:         middleware.RateLimitConfig{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst},
	})

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return a, nil
}

// OpenBackend builds the configured storage backend, guarded by a circuit
// breaker when enabled. The returned func releases its connections.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Backend, func(), error) {
	var (
		backend storage.Backend
		release = func() {}
	)
	switch cfg.StorageBackend {
	case config.BackendFile:
		fs, err := file.New(cfg.StorageDir, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open file storage: %w", err)
		}
		backend = fs
	case config.BackendRedis:
		redisCfg := database.DefaultRedisConfig()
		redisCfg.Addr = cfg.RedisAddr
		redisCfg.Password = cfg.RedisPass
		redisCfg.DB = cfg.RedisDB
		rdb, err := database.NewRedisClient(ctx, redisCfg)
		if err != nil {
			return nil, nil, err
		}
		release = func() {
			if err := rdb.Close(); err != nil {
				logger.Error("redis close error", slog.String("error", err.Error()))
			}
		}
		backend = redisstore.New(rdb, cfg.CartTTLDuration(), logger)
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
	default:
		backend = memory.NewBus().Attach()
	}

	logger.Info("cart storage ready",
		slog.String("backend", cfg.StorageBackend),
		slog.String("key", cfg.StorageKey),
		slog.String("origin", backend.Origin()),
	)

	if !cfg.BreakerEnabled || cfg.StorageBackend == config.BackendMemory {
		return backend, release, nil
	}
	br := breaker.New[[]byte](breaker.DefaultConfig("cart-storage-"+cfg.StorageBackend), logger)
	return storage.WithBreaker(backend, br), release, nil
}

// OpenCatalog loads the product catalog from a file or from PostgreSQL. The
// pool is nil for the file source.
func OpenCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (catalog.Provider, *pgxpool.Pool, error) {
	policy := catalog.Policy{Strict: cfg.StrictPriceBreaks, Logger: logger}

	if cfg.CatalogSource == config.CatalogFile {
		cat, err := catalog.LoadFile(ctx, cfg.CatalogFile, policy)
		if err != nil {
			return nil, nil, fmt.Errorf("load catalog: %w", err)
		}
		products, _ := cat.Products(ctx)
		logger.Info("catalog loaded",
			slog.String("path", cfg.CatalogFile),
			slog.Int("products", len(products)),
		)
		return cat, nil, nil
	}

	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = cfg.PostgresHost
	pgCfg.Port = cfg.PostgresPort
	pgCfg.User = cfg.PostgresUser
	pgCfg.Password = cfg.PostgresPass
	pgCfg.DBName = cfg.PostgresDB
	pgCfg.SSLMode = cfg.PostgresSSL
	pgCfg.MaxConns = cfg.DBMaxConns
	pgCfg.MinConns = cfg.DBMinConns

	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.String("database", cfg.PostgresDB),
	)
	database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)

	if cfg.CatalogRunMigration {
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run catalog migrations: %w", err)
		}
	}
	return pgcatalog.New(pool, policy), pool, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components. The pending cart snapshot is
// written before storage connections are closed.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.engine.Close(shutdownCtx)
	a.closeAll()

	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) closeAll() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.releaseStorage != nil {
		a.releaseStorage()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
}
