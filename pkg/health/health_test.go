package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) error { return nil }

func down(msg string) Checker {
	return func(context.Context) error { return errors.New(msg) }
}

func probe(t *testing.T, h *Handler) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestLivenessHandler_AlwaysUp(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("postgres", down("connection refused"))

	rec := httptest.NewRecorder()
	h.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusUp, resp.Status)
	assert.False(t, resp.Timestamp.IsZero())
	assert.Empty(t, resp.Checks)
}

func TestReadinessHandler_CartDependencies(t *testing.T) {
	tests := []struct {
		name       string
		postgres   Checker
		storage    Checker
		kafka      Checker
		wantCode   int
		wantStatus Status
	}{
		{"all up", up, up, up, http.StatusOK, StatusUp},
		{"storage down keeps serving", up, down("redis: connection refused"), up, http.StatusOK, StatusDegraded},
		{"kafka down keeps serving", up, up, down("broker unreachable"), http.StatusOK, StatusDegraded},
		{"both optional down", up, down("redis down"), down("kafka down"), http.StatusOK, StatusDegraded},
		{"catalog database down", down("db down"), up, up, http.StatusServiceUnavailable, StatusDown},
		{"everything down", down("db down"), down("redis down"), down("kafka down"), http.StatusServiceUnavailable, StatusDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			h.RegisterCritical("postgres", tt.postgres)
			h.RegisterNonCritical("storage", tt.storage)
			h.RegisterNonCritical("kafka", tt.kafka)

			code, resp := probe(t, h)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			require.Len(t, resp.Checks, 3)
			assert.True(t, resp.Checks["postgres"].Critical)
			assert.False(t, resp.Checks["storage"].Critical)
			assert.False(t, resp.Checks["kafka"].Critical)
		})
	}
}

func TestReadinessHandler_ReportsCheckError(t *testing.T) {
	h := NewHandler()
	h.RegisterNonCritical("storage", down("redis: connection refused"))

	_, resp := probe(t, h)
	assert.Equal(t, StatusDown, resp.Checks["storage"].Status)
	assert.Equal(t, "redis: connection refused", resp.Checks["storage"].Error)
}

func TestReadinessHandler_NoCheckers(t *testing.T) {
	code, resp := probe(t, NewHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, resp.Status)
}

func TestRegister_IsCriticalByDefault(t *testing.T) {
	h := NewHandler()
	h.Register("postgres", down("fail"))

	code, resp := probe(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.True(t, resp.Checks["postgres"].Critical)
}

func TestRegister_Overwrites(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("storage", down("fail"))
	h.RegisterNonCritical("storage", down("still failing"))

	code, resp := probe(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, "still failing", resp.Checks["storage"].Error)
}

func TestReadinessHandler_ChecksRunConcurrently(t *testing.T) {
	h := NewHandler()
	slow := func(ctx context.Context) error {
		select {
		case <-time.After(100 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h.RegisterCritical("postgres", slow)
	h.RegisterNonCritical("storage", slow)
	h.RegisterNonCritical("kafka", slow)

	start := time.Now()
	code, resp := probe(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
	assert.GreaterOrEqual(t, resp.Checks["postgres"].LatencyMs, int64(100))
}

func TestReadinessHandler_Timeout(t *testing.T) {
	h := NewHandler()
	h.SetTimeout(20 * time.Millisecond)
	h.RegisterCritical("postgres", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	code, resp := probe(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Checks["postgres"].Error)
}

func TestSetTimeout_IgnoresNonPositive(t *testing.T) {
	h := NewHandler()
	h.SetTimeout(0)
	assert.Equal(t, DefaultTimeout, h.timeout)
}
