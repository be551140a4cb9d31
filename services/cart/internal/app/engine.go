package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/EcommerceGo/services/cart/internal/domain"
	"github.com/utafrali/EcommerceGo/services/cart/internal/persistence"
	"github.com/utafrali/EcommerceGo/services/cart/internal/storage"
	"github.com/utafrali/EcommerceGo/services/cart/internal/store"
	"github.com/utafrali/EcommerceGo/services/cart/internal/tabsync"
)

// EngineOptions tunes an Engine. Zero values fall back to the package
// defaults.
type EngineOptions struct {
	Ceiling      int
	Debounce     time.Duration
	WriteTimeout time.Duration
	Logger       *slog.Logger
	OnSaved      persistence.SavedFunc
}

// Engine is one cart instance: a store persisted under a key and kept in
// step with every other instance sharing that key.
type Engine struct {
	backend storage.Backend
	store   *store.Store
	adapter *persistence.Adapter
	syncer  *tabsync.Syncer
	logger  *slog.Logger

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewEngine loads the stored cart for key and starts watching for changes
// made by other instances. The watch runs until Close.
func NewEngine(ctx context.Context, backend storage.Backend, key string, opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With(slog.String("origin", backend.Origin()))

	ceiling := opts.Ceiling
	if ceiling <= 0 {
		ceiling = domain.DefaultQuantityCeiling
	}

	adapterOpts := []persistence.Option{
		persistence.WithLogger(logger),
		persistence.WithCeiling(ceiling),
	}
	if opts.Debounce > 0 {
		adapterOpts = append(adapterOpts, persistence.WithDebounce(opts.Debounce))
	}
	if opts.WriteTimeout > 0 {
		adapterOpts = append(adapterOpts, persistence.WithWriteTimeout(opts.WriteTimeout))
	}
	if opts.OnSaved != nil {
		adapterOpts = append(adapterOpts, persistence.WithOnSaved(opts.OnSaved))
	}

	e := &Engine{
		backend: backend,
		adapter: persistence.New(backend, key, adapterOpts...),
		logger:  logger,
		done:    make(chan struct{}),
	}
	e.store = store.New(
		store.WithCeiling(ceiling),
		store.WithLogger(logger),
		store.WithOnChange(e.adapter.Save),
	)
	e.store.Replace(e.adapter.Load(ctx))
	e.syncer = tabsync.New(backend, e.adapter, e.store, logger)

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	go func() {
		defer close(e.done)
		if err := e.syncer.Run(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("cross-instance sync ended", slog.String("error", err.Error()))
		}
	}()

	logger.Info("cart engine started",
		slog.String("key", key),
		slog.Int("lines", e.store.Len()),
		slog.Int("ceiling", ceiling),
	)
	return e
}

// Store returns the engine's cart.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Key returns the storage key.
func (e *Engine) Key() string {
	return e.adapter.Key()
}

// Origin identifies this instance's writes.
func (e *Engine) Origin() string {
	return e.backend.Origin()
}

// Pending reports whether a save is waiting for the debounce window.
func (e *Engine) Pending() bool {
	return e.adapter.Pending()
}

// Reload discards the in-memory cart and reads it back from storage. A
// local snapshot not yet written is superseded by what was read.
func (e *Engine) Reload(ctx context.Context) {
	e.store.Reconcile(func([]domain.CartLine) ([]domain.CartLine, bool) {
		return e.adapter.Load(ctx), true
	}, func(lines []domain.CartLine) {
		e.adapter.Supersede(lines)
	})
}

// Close stops watching, writes any pending snapshot and cancels the
// debouncer. It is safe to call more than once.
func (e *Engine) Close(ctx context.Context) {
	e.closeOnce.Do(func() {
		e.cancel()
		select {
		case <-e.done:
		case <-ctx.Done():
			e.logger.Warn("timed out waiting for cross-instance sync to stop")
		}
		if e.adapter.Flush(ctx) {
			e.logger.Info("flushed pending cart snapshot on close", slog.String("key", e.adapter.Key()))
		}
		e.adapter.Close()
	})
}
