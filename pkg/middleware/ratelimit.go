package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/utafrali/EcommerceGo/pkg/httputil"
)

// RateLimitConfig is a per-client token bucket. A zero RPS disables limiting.
type RateLimitConfig struct {
	RPS   float64
	Burst int
	// IdleTTL drops buckets for clients not seen for this long. Zero means
	// three minutes.
	IdleTTL time.Duration
}

type clientBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// clientBuckets holds one limiter per remote address. Idle entries are swept
// on access, at most once per ttl.
type clientBuckets struct {
	mu        sync.Mutex
	buckets   map[netip.Addr]*clientBucket
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newClientBuckets(cfg RateLimitConfig) *clientBuckets {
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = 3 * time.Minute
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &clientBuckets{
		buckets:   make(map[netip.Addr]*clientBucket),
		limit:     rate.Limit(cfg.RPS),
		burst:     burst,
		ttl:       ttl,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (c *clientBuckets) allow(addr netip.Addr) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) > c.ttl {
		for a, b := range c.buckets {
			if now.Sub(b.seen) > c.ttl {
				delete(c.buckets, a)
			}
		}
		c.lastSweep = now
	}

	b, ok := c.buckets[addr]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.buckets[addr] = b
	}
	b.seen = now
	return b.limiter.AllowN(now, 1)
}

func (c *clientBuckets) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buckets)
}

// RateLimit throttles state-changing requests per client address with 429
// and a Retry-After hint. GET, HEAD and OPTIONS are never limited.
func RateLimit(cfg RateLimitConfig, l *slog.Logger) func(http.Handler) http.Handler {
	if cfg.RPS <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	buckets := newClientBuckets(cfg)
	retryAfter := strconv.Itoa(int(math.Ceil(1 / cfg.RPS)))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			// Unparseable addresses share the zero bucket.
			addr, _ := remoteAddr(r)
			if !buckets.allow(addr) {
				l.Warn("rate limit exceeded",
					slog.String("remote_addr", addr.String()),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", retryAfter)
				httputil.WriteErrorCode(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
