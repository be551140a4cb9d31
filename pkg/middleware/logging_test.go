package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/EcommerceGo/pkg/logger"
)

func serveLogged(t *testing.T, level string, h http.HandlerFunc, req *http.Request) (*httptest.ResponseRecorder, []map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	l := logger.NewWithWriter("cart", level, &buf)

	rec := httptest.NewRecorder()
	TabID("tab-1")(RequestLogging(l)(h)).ServeHTTP(rec, req)

	var entries []map[string]any
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var e map[string]any
		require.NoError(t, dec.Decode(&e))
		entries = append(entries, e)
	}
	return rec, entries
}

func TestRequestLogging_LogsRequest(t *testing.T) {
	rec, entries := serveLogged(t, "info", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "http request", e["msg"])
	assert.Equal(t, "INFO", e["level"])
	assert.Equal(t, float64(200), e["status"])
	assert.Equal(t, float64(5), e["bytes"])
	assert.Equal(t, "tab-1", e["tab_id"])
	assert.NotEmpty(t, e["correlation_id"])
	assert.Equal(t, e["correlation_id"], rec.Header().Get(CorrelationIDHeader))
}

func TestRequestLogging_KeepsIncomingCorrelationID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(CorrelationIDHeader, "corr-9")

	rec, entries := serveLogged(t, "info", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "corr-9", logger.CorrelationIDFromContext(r.Context()))
	}, req)

	require.Len(t, entries, 1)
	assert.Equal(t, "corr-9", entries[0]["correlation_id"])
	assert.Equal(t, "corr-9", rec.Header().Get(CorrelationIDHeader))
}

func TestRequestLogging_LevelByStatus(t *testing.T) {
	cases := map[int]string{
		http.StatusOK:                  "INFO",
		http.StatusNotFound:            "WARN",
		http.StatusInternalServerError: "ERROR",
	}
	for status, level := range cases {
		_, entries := serveLogged(t, "info", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}, httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", nil))

		require.Len(t, entries, 1)
		assert.Equal(t, level, entries[0]["level"], "status %d", status)
	}
}

func TestRequestLogging_ProbesAtDebug(t *testing.T) {
	_, entries := serveLogged(t, "info", func(w http.ResponseWriter, r *http.Request) {},
		httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Empty(t, entries)

	_, entries = serveLogged(t, "debug", func(w http.ResponseWriter, r *http.Request) {},
		httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Len(t, entries, 1)
	assert.Equal(t, "DEBUG", entries[0]["level"])
}

func TestRequestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelError, requestLevel("/health/ready", http.StatusServiceUnavailable))
	assert.Equal(t, slog.LevelInfo, requestLevel("/api/v1/cart", http.StatusOK))
}
