package breaker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      50 * time.Millisecond, // Short for tests.
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

var errBackend = errors.New("backend down")

func TestBreaker_ClosedState_Success(t *testing.T) {
	b := New[int](testConfig("test-closed"), testLogger())

	got, err := b.Execute(context.Background(), func() (int, error) { return 42, nil })

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, "test-closed", b.Name())
}

func TestBreaker_TripsOnFailures(t *testing.T) {
	b := New[struct{}](testConfig("test-trip"), testLogger())

	for i := 0; i < 3; i++ {
		_, err := b.Execute(context.Background(), func() (struct{}, error) { return struct{}{}, errBackend })
		require.ErrorIs(t, err, errBackend)
	}

	assert.Equal(t, gobreaker.StateOpen, b.State())

	calls := 0
	_, err := b.Execute(context.Background(), func() (struct{}, error) {
		calls++
		return struct{}{}, nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.Zero(t, calls, "open breaker must not invoke the call")
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	b := New[struct{}](testConfig("test-recover"), testLogger())

	for i := 0; i < 3; i++ {
		_, _ = b.Execute(context.Background(), func() (struct{}, error) { return struct{}{}, errBackend })
	}
	require.Equal(t, gobreaker.StateOpen, b.State())

	time.Sleep(80 * time.Millisecond)

	_, err := b.Execute(context.Background(), func() (struct{}, error) { return struct{}{}, nil })
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreaker_ContextCanceledDoesNotTrip(t *testing.T) {
	b := New[struct{}](testConfig("test-cancel"), testLogger())

	for i := 0; i < 5; i++ {
		_, err := b.Execute(context.Background(), func() (struct{}, error) { return struct{}{}, context.Canceled })
		require.ErrorIs(t, err, context.Canceled)
	}

	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("storage")
	assert.Equal(t, "storage", cfg.Name)
	assert.Equal(t, uint32(5), cfg.MinRequests)
	assert.InDelta(t, 0.5, cfg.FailureRatio, 0.0001)
}
