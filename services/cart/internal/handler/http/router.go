package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/EcommerceGo/pkg/health"
	"github.com/utafrali/EcommerceGo/pkg/middleware"
	"github.com/utafrali/EcommerceGo/services/cart/internal/catalog"
	"github.com/utafrali/EcommerceGo/services/cart/internal/store"
)

// RouterConfig carries what the router needs besides its handlers.
type RouterConfig struct {
	// TabID identifies the engine instance behind this router.
	TabID string
	CORS  middleware.CORSConfig
	// CatalogMaxAge is how long clients may cache catalog reads, in seconds.
	CatalogMaxAge int
	// PprofAllowedCIDRs enables /debug/pprof for these networks when set.
	PprofAllowedCIDRs []string
	// RequestTimeout cancels a request's context; zero means 30s.
	RequestTimeout time.Duration
	// RateLimit throttles cart mutations per client; zero RPS disables it.
	RateLimit middleware.RateLimitConfig
}

const serviceName = "cart"

func (c RouterConfig) requestTimeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return 30 * time.Second
	}
	return c.RequestTimeout
}

// NewRouter mounts the cart, catalog and operational routes. Cart routes
// are never cached and only accept JSON bodies; catalog reads may be cached
// for CatalogMaxAge seconds.
func NewRouter(
	st *store.Store,
	cat catalog.Provider,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	if cfg.TabID != "" {
		r.Use(middleware.TabID(cfg.TabID))
	}
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.requestTimeout()))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if len(cfg.PprofAllowedCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)
	}

	cartHandler := NewCartHandler(st, cat, logger)
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(middleware.RequireJSON)
		r.Use(middleware.RateLimit(cfg.RateLimit, logger))

		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.ClearCart)

		r.Post("/items", cartHandler.AddItem)
		r.Put("/items/{productId}", cartHandler.UpdateItemQuantity)
		r.Delete("/items/{productId}", cartHandler.RemoveItem)
	})

	catalogHandler := NewCatalogHandler(cat, logger)
	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Use(middleware.CacheControl(cfg.CatalogMaxAge))
		r.Get("/products", catalogHandler.ListProducts)
		r.Get("/products/{productId}", catalogHandler.GetProduct)
		r.Get("/products/{productId}/quote", catalogHandler.Quote)
	})

	return r
}
