package storage

import (
	"context"
	"errors"

	"github.com/utafrali/EcommerceGo/pkg/breaker"
)

// guarded runs reads and writes through a circuit breaker, so a backend
// that keeps failing is left alone for a while instead of being hammered
// by every debounced save.
type guarded struct {
	Backend
	br *breaker.Breaker[[]byte]
}

// WithBreaker wraps b so Get and Set go through br. A missing key is not a
// failure.
func WithBreaker(b Backend, br *breaker.Breaker[[]byte]) Backend {
	return &guarded{Backend: b, br: br}
}

func (g *guarded) Get(ctx context.Context, key string) ([]byte, error) {
	var missing bool
	value, err := g.br.Execute(ctx, func() ([]byte, error) {
		v, err := g.Backend.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			missing = true
			return nil, nil
		}
		return v, err
	})
	if err != nil {
		return nil, err
	}
	if missing {
		return nil, ErrNotFound
	}
	return value, nil
}

func (g *guarded) Set(ctx context.Context, key string, value []byte) error {
	_, err := g.br.Execute(ctx, func() ([]byte, error) {
		return nil, g.Backend.Set(ctx, key, value)
	})
	return err
}
