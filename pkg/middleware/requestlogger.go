package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/EcommerceGo/pkg/logger"
)

// TabIDHeader lets a client name the tab it is acting from.
const TabIDHeader = "X-Tab-ID"

const maxTabIDLen = 64

// RequestLogger stores a request-scoped logger in the context, carrying the
// correlation id, tab id and trace ids. Mount it after RequestLogging and
// Tracing so those values are already set; handlers read it back with
// logger.FromContext.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if logger.TabIDFromContext(ctx) == "" {
				if tab, ok := clientTabID(r); ok {
					ctx = logger.WithTabID(ctx, tab)
				}
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientTabID returns the X-Tab-ID header when it is a short printable
// token. Anything else is ignored rather than copied into every log line.
func clientTabID(r *http.Request) (string, bool) {
	tab := r.Header.Get(TabIDHeader)
	if tab == "" || len(tab) > maxTabIDLen {
		return "", false
	}
	for i := 0; i < len(tab); i++ {
		if c := tab[i]; c <= ' ' || c > '~' {
			return "", false
		}
	}
	return tab, true
}

// TabID stamps every request, and its response, with the id of the engine
// instance serving it. Server-assigned ids win over the client header.
func TabID(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(TabIDHeader, id)
			next.ServeHTTP(w, r.WithContext(logger.WithTabID(r.Context(), id)))
		})
	}
}
