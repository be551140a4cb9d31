package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unmatchedRoute labels requests that chi could not route, so scanners
// probing random paths cannot blow up series cardinality.
const unmatchedRoute = "unmatched"

// HTTPMetrics holds the request collectors for one service. The service
// name is a constant label on every series.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	size     *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewHTTPMetrics registers the HTTP collectors for service on reg.
func NewHTTPMetrics(reg prometheus.Registerer, service string) *HTTPMetrics {
	f := promauto.With(reg)
	labels := prometheus.Labels{"service": service}
	return &HTTPMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests.",
			ConstLabels: labels,
		}, []string{"method", "path", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds.",
			ConstLabels: labels,
			Buckets:     []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "path", "status"}),
		size: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_response_size_bytes",
			Help:        "HTTP response body size in bytes.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(128, 4, 7),
		}, []string{"method", "path"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Name:        "http_requests_in_flight",
			Help:        "Current number of HTTP requests being served.",
			ConstLabels: labels,
		}),
	}
}

// Handler records every request under its chi route pattern, so
// /api/v1/cart/items/{productId} is one series whatever the product.
func (m *HTTPMetrics) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		rec := recordStatus(w)
		next.ServeHTTP(rec, r)

		route := routePattern(r)
		status := strconv.Itoa(rec.status)
		m.requests.WithLabelValues(r.Method, route, status).Inc()
		m.duration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.size.WithLabelValues(r.Method, route).Observe(float64(rec.bytes))
	})
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}

var (
	defaultMetricsMu sync.Mutex
	defaultMetrics   = map[string]*HTTPMetrics{}
)

// PrometheusMetrics returns the request metrics middleware for service,
// registered once on the default registry.
func PrometheusMetrics(service string) func(http.Handler) http.Handler {
	defaultMetricsMu.Lock()
	defer defaultMetricsMu.Unlock()

	m, ok := defaultMetrics[service]
	if !ok {
		m = NewHTTPMetrics(prometheus.DefaultRegisterer, service)
		defaultMetrics[service] = m
	}
	return m.Handler
}
