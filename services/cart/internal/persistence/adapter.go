// Package persistence keeps the cart durable: it loads a stored snapshot
// through a validating, migrating decoder and writes snapshots back with a
// trailing-edge debounce. Storage failures never leave this package.
package persistence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/EcommerceGo/pkg/debounce"
	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/pkg/tracing"
	"github.com/utafrali/EcommerceGo/services/cart/internal/domain"
	"github.com/utafrali/EcommerceGo/services/cart/internal/metrics"
	"github.com/utafrali/EcommerceGo/services/cart/internal/storage"
)

const tracerName = "github.com/utafrali/EcommerceGo/services/cart/internal/persistence"

const (
	// DefaultDebounce is the quiet period before a snapshot is written.
	DefaultDebounce = 120 * time.Millisecond

	defaultWriteTimeout = 5 * time.Second
)

// SavedFunc runs after a snapshot was written successfully.
type SavedFunc func(ctx context.Context, lines []domain.CartLine)

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithDebounce sets the debounce window. Zero writes synchronously.
func WithDebounce(d time.Duration) Option {
	return func(a *Adapter) {
		a.delay = d
	}
}

// WithCeiling sets the stock assumed for persisted lines that recorded none.
func WithCeiling(ceiling int) Option {
	return func(a *Adapter) {
		if ceiling > 0 {
			a.ceiling = ceiling
		}
	}
}

// WithWriteTimeout bounds a single storage write.
func WithWriteTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.writeTimeout = d
		}
	}
}

// WithOnSaved registers a hook called after every successful write.
func WithOnSaved(fn SavedFunc) Option {
	return func(a *Adapter) {
		a.onSaved = fn
	}
}

// Adapter is the only component that reads or writes the cart's storage
// key.
type Adapter struct {
	storage      storage.Storage
	key          string
	logger       *slog.Logger
	delay        time.Duration
	ceiling      int
	writeTimeout time.Duration
	onSaved      SavedFunc

	debouncer *debounce.Debouncer[[]domain.CartLine]
	closed    atomic.Bool
}

// New creates an adapter persisting under key.
func New(st storage.Storage, key string, opts ...Option) *Adapter {
	a := &Adapter{
		storage:      st,
		key:          key,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		delay:        DefaultDebounce,
		ceiling:      domain.DefaultQuantityCeiling,
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.debouncer = debounce.New(a.delay, a.write)
	return a
}

// Key returns the storage key.
func (a *Adapter) Key() string {
	return a.key
}

// Load reads and decodes the stored snapshot. Absent, unreadable and
// undecodable payloads all load as an empty cart. The stored value is never
// rewritten here; a legacy payload is upgraded by the next natural save.
func (a *Adapter) Load(ctx context.Context) []domain.CartLine {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "cart.persistence.load",
		trace.WithAttributes(attribute.String("cart.key", a.key)),
	)
	defer span.End()

	raw, err := a.storage.Get(ctx, a.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			metrics.Loads.WithLabelValues(string(FormatEmpty)).Inc()
			return []domain.CartLine{}
		}
		err = apperrors.Storage("load cart", err)
		tracing.Fail(span, err)
		metrics.Loads.WithLabelValues("error").Inc()
		a.logger.WarnContext(ctx, "failed to read cart snapshot, starting empty",
			slog.String("key", a.key),
			slog.String("error", err.Error()),
		)
		return []domain.CartLine{}
	}

	return a.decode(ctx, raw).lines
}

// Decode runs the same validating decode as Load on a raw payload.
func (a *Adapter) Decode(ctx context.Context, raw []byte) ([]domain.CartLine, Format) {
	d := a.decode(ctx, raw)
	return d.lines, d.format
}

func (a *Adapter) decode(ctx context.Context, raw []byte) decoded {
	d := decode(raw, a.ceiling)
	metrics.Loads.WithLabelValues(string(d.format)).Inc()

	if d.err != nil {
		a.logger.WarnContext(ctx, "discarding undecodable cart snapshot",
			slog.String("key", a.key),
			slog.String("error", d.err.Error()),
		)
	}
	if d.version > domain.CurrentVersion {
		a.logger.WarnContext(ctx, "cart snapshot written by a newer format version",
			slog.String("key", a.key),
			slog.Int("version", d.version),
			slog.Int("current_version", domain.CurrentVersion),
		)
	}
	if len(d.dropped) > 0 {
		metrics.RecordsDropped.WithLabelValues("invalid").Add(float64(len(d.dropped)))
		a.logger.WarnContext(ctx, "dropped invalid cart records",
			slog.String("key", a.key),
			slog.Int("dropped", len(d.dropped)),
			slog.String("error", errors.Join(d.dropped...).Error()),
		)
	}
	if d.format == FormatLegacy {
		a.logger.InfoContext(ctx, "loaded legacy cart snapshot",
			slog.String("key", a.key),
			slog.Int("lines", len(d.lines)),
		)
	}
	return d
}

// Save schedules lines to be written once no further Save arrives within
// the debounce window. It never blocks on storage when a window is set.
// Calls after Close are ignored.
func (a *Adapter) Save(lines []domain.CartLine) {
	if a.closed.Load() {
		return
	}
	a.debouncer.Trigger(lines)
}

// Supersede replaces a snapshot that is still waiting to be written, or
// follows one being written right now, with lines. It is how a reload
// keeps an older local write from landing after it. It reports whether a
// write was scheduled.
func (a *Adapter) Supersede(lines []domain.CartLine) bool {
	if a.closed.Load() {
		return false
	}
	return a.debouncer.Supersede(lines)
}

// Flush writes the pending snapshot now. It reports whether one was
// pending.
func (a *Adapter) Flush(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	flushed := a.debouncer.Flush()
	if flushed {
		a.logger.DebugContext(ctx, "flushed pending cart snapshot", slog.String("key", a.key))
	}
	return flushed
}

// Pending reports whether a snapshot is waiting to be written.
func (a *Adapter) Pending() bool {
	return a.debouncer.Pending()
}

// Close cancels any pending write. Flush first to keep it.
func (a *Adapter) Close() {
	a.closed.Store(true)
	a.debouncer.Stop()
}

func (a *Adapter) write(lines []domain.CartLine) {
	ctx, cancel := context.WithTimeout(context.Background(), a.writeTimeout)
	defer cancel()

	ctx, span := tracing.Tracer(tracerName).Start(ctx, "cart.persistence.save",
		trace.WithAttributes(
			attribute.String("cart.key", a.key),
			attribute.Int("cart.lines", len(lines)),
		),
	)
	defer span.End()

	start := time.Now()
	payload, err := Encode(lines)
	if err == nil {
		err = a.storage.Set(ctx, a.key, payload)
	}
	metrics.StorageWriteDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		err = apperrors.Storage("save cart", err)
		tracing.Fail(span, err)
		metrics.StorageWrites.WithLabelValues("failure").Inc()
		a.logger.WarnContext(ctx, "failed to write cart snapshot, keeping in-memory state",
			slog.String("key", a.key),
			slog.Int("lines", len(lines)),
			slog.String("error", err.Error()),
		)
		return
	}

	metrics.StorageWrites.WithLabelValues("success").Inc()
	a.logger.DebugContext(ctx, "cart snapshot written",
		slog.String("key", a.key),
		slog.Int("lines", len(lines)),
		slog.Int("bytes", len(payload)),
	)

	if a.onSaved != nil {
		a.onSaved(ctx, lines)
	}
}
