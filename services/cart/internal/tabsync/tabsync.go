// Package tabsync keeps an engine instance in step with the others sharing
// its storage key. An external change never patches the store directly: it
// only triggers a full reload through the validating load path.
package tabsync

import (
	"context"
	"io"
	"log/slog"

	"github.com/utafrali/EcommerceGo/services/cart/internal/domain"
	"github.com/utafrali/EcommerceGo/services/cart/internal/metrics"
	"github.com/utafrali/EcommerceGo/services/cart/internal/persistence"
	"github.com/utafrali/EcommerceGo/services/cart/internal/storage"
)

// Store is the part of the cart store the syncer needs.
type Store interface {
	Reconcile(fn func(current []domain.CartLine) ([]domain.CartLine, bool), settle func([]domain.CartLine)) bool
}

// Syncer reloads the store when another instance changes the shared key.
type Syncer struct {
	watcher storage.Watcher
	adapter *persistence.Adapter
	store   Store
	logger  *slog.Logger
}

// New creates a syncer. A nil logger discards output.
func New(watcher storage.Watcher, adapter *persistence.Adapter, store Store, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Syncer{
		watcher: watcher,
		adapter: adapter,
		store:   store,
		logger:  logger,
	}
}

// Run watches the adapter's key until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "cross-instance sync started", slog.String("key", s.adapter.Key()))
	err := s.watcher.Watch(ctx, s.adapter.Key(), func(c storage.Change) {
		s.Handle(ctx, c)
	})
	s.logger.InfoContext(ctx, "cross-instance sync stopped", slog.String("key", s.adapter.Key()))
	return err
}

// Handle reconciles one external change. The incoming payload is decoded
// through the validating path only to decide whether anything differs;
// when it does, the store is rebuilt from a fresh Load. The comparison and
// the rebuild run with the store locked, so a local command either lands
// before the reload (and its save is superseded) or after it. A local
// snapshot still waiting to be written, or being written, is superseded by
// the reloaded state so it cannot overwrite the other instance's write. It
// reports whether a reload happened.
func (s *Syncer) Handle(ctx context.Context, c storage.Change) bool {
	if c.Key != s.adapter.Key() {
		return false
	}

	incoming, format := s.adapter.Decode(ctx, c.Value)

	var loaded []domain.CartLine
	superseded := false
	reloaded := s.store.Reconcile(func(current []domain.CartLine) ([]domain.CartLine, bool) {
		if domain.EqualLines(incoming, current) {
			return nil, false
		}
		loaded = s.adapter.Load(ctx)
		return loaded, true
	}, func(lines []domain.CartLine) {
		superseded = s.adapter.Supersede(lines)
	})
	if !reloaded {
		metrics.Reconciliations.WithLabelValues("unchanged").Inc()
		return false
	}
	metrics.Reconciliations.WithLabelValues("reloaded").Inc()

	s.logger.InfoContext(ctx, "cart reloaded after external change",
		slog.String("key", c.Key),
		slog.String("origin", c.Origin),
		slog.String("format", string(format)),
		slog.Int("lines", len(loaded)),
		slog.Bool("superseded_local_write", superseded),
	)
	return true
}
