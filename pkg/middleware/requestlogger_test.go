package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/EcommerceGo/pkg/logger"
)

// logOnce serves req through mw and returns the single entry the handler
// logged with the context logger.
func logOnce(t *testing.T, mw func(http.Handler) http.Handler, req *http.Request) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	base := logger.NewWithWriter("cart", "info", &buf)

	rec := httptest.NewRecorder()
	h := mw(RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("line added")
	})))
	h.ServeHTTP(rec, req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry, rec
}

func passthrough(next http.Handler) http.Handler { return next }

func TestRequestLogger_CarriesCorrelationID(t *testing.T) {
	ctx := logger.WithCorrelationID(context.Background(), "corr-test-123")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", nil).WithContext(ctx)

	entry, _ := logOnce(t, passthrough, req)
	assert.Equal(t, "corr-test-123", entry["correlation_id"])
	assert.Equal(t, "cart", entry["service"])
	assert.Equal(t, "line added", entry["msg"])
}

func TestRequestLogger_TabIDFromHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   any
	}{
		{"plain token", "tab-from-header", "tab-from-header"},
		{"absent", "", nil},
		{"contains spaces", "tab one", nil},
		{"control characters", "tab\x00", nil},
		{"too long", strings.Repeat("t", maxTabIDLen+1), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
			if tt.header != "" {
				req.Header.Set(TabIDHeader, tt.header)
			}
			entry, _ := logOnce(t, passthrough, req)
			assert.Equal(t, tt.want, entry["tab_id"])
		})
	}
}

func TestRequestLogger_ServerTabWins(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(TabIDHeader, "header-tab")

	entry, rec := logOnce(t, TabID("server-tab"), req)
	assert.Equal(t, "server-tab", entry["tab_id"])
	assert.Equal(t, "server-tab", rec.Header().Get(TabIDHeader))
}

func TestRequestLogger_TraceFields(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	entry, _ := logOnce(t, passthrough, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil).WithContext(ctx))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}
