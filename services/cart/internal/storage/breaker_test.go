package storage_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/EcommerceGo/pkg/breaker"
	"github.com/utafrali/EcommerceGo/services/cart/internal/storage"
	"github.com/utafrali/EcommerceGo/services/cart/internal/storage/memory"
)

func testBreaker(name string) *breaker.Breaker[[]byte] {
	cfg := breaker.DefaultConfig(name)
	cfg.MinRequests = 2
	cfg.Timeout = time.Minute
	return breaker.New[[]byte](cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestWithBreaker_PassesThrough(t *testing.T) {
	bus := memory.NewBus()
	s := storage.WithBreaker(bus.Attach(), testBreaker("storage-pass"))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "cart", []byte("[]")))
	got, err := s.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}

func TestWithBreaker_MissingKeyIsNotAFailure(t *testing.T) {
	br := testBreaker("storage-missing")
	s := storage.WithBreaker(memory.NewBus().Attach(), br)

	for i := 0; i < 10; i++ {
		_, err := s.Get(context.Background(), "cart")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, br.State())
}

func TestWithBreaker_OpensOnRepeatedWriteFailures(t *testing.T) {
	bus := memory.NewBus()
	br := testBreaker("storage-open")
	s := storage.WithBreaker(bus.Attach(), br)
	ctx := context.Background()
	quota := errors.New("quota exceeded")

	bus.FailWrites(quota)
	assert.ErrorIs(t, s.Set(ctx, "cart", []byte("1")), quota)
	assert.ErrorIs(t, s.Set(ctx, "cart", []byte("2")), quota)

	assert.Equal(t, gobreaker.StateOpen, br.State())

	bus.FailWrites(nil)
	assert.ErrorIs(t, s.Set(ctx, "cart", []byte("3")), breaker.ErrOpen)
	_, ok := bus.Raw("cart")
	assert.False(t, ok)
}

func TestWithBreaker_KeepsOrigin(t *testing.T) {
	inner := memory.NewBus().Attach()
	s := storage.WithBreaker(inner, testBreaker("storage-origin"))
	assert.Equal(t, inner.Origin(), s.Origin())
}
