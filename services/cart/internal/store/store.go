// Package store holds the authoritative in-memory cart.
package store

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/utafrali/EcommerceGo/services/cart/internal/domain"
	"github.com/utafrali/EcommerceGo/services/cart/internal/pricing"
)

// Outcome classifies what a command did, so the caller can decide what to
// tell the user. The store itself never renders anything.
type Outcome string

const (
	OutcomeAdded       Outcome = "added"
	OutcomeMerged      Outcome = "merged"
	OutcomeUpdated     Outcome = "updated"
	OutcomeRemoved     Outcome = "removed"
	OutcomeCleared     Outcome = "cleared"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeNoop        Outcome = "noop"
)

// Result describes the effect of a single command.
type Result struct {
	Outcome Outcome
	Key     domain.VariantKey
	// Requested is the quantity the caller asked for (the delta for Add,
	// the absolute value for Update).
	Requested int
	// Quantity is the line's quantity after the command, 0 if it is gone.
	Quantity int
	// Adjusted is set when the quantity was clamped into the allowed range.
	Adjusted bool
	// Line is a copy of the resulting line, nil when no line remains.
	Line *domain.CartLine
}

// Changed reports whether the command modified the cart.
func (r Result) Changed() bool {
	switch r.Outcome {
	case OutcomeAdded, OutcomeMerged, OutcomeUpdated, OutcomeRemoved, OutcomeCleared:
		return true
	default:
		return false
	}
}

// AddOptions carries the optional parts of an add command.
type AddOptions struct {
	Color string
	Size  string
	// OverrideUnitPrice, when set, is used verbatim instead of the tiered price.
	OverrideUnitPrice *int64
}

// ChangeFunc receives a snapshot of the lines after every mutation. It is
// called with the store locked and must not call back into the store.
type ChangeFunc func(lines []domain.CartLine)

// Option configures a Store.
type Option func(*Store)

// WithCeiling sets the hard per-line quantity ceiling.
func WithCeiling(ceiling int) Option {
	return func(s *Store) {
		if ceiling > 0 {
			s.ceiling = ceiling
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOnChange registers the mutation hook, typically the persistence save.
func WithOnChange(fn ChangeFunc) Option {
	return func(s *Store) {
		s.onChange = fn
	}
}

// Store is the ordered set of cart lines, unique by variant key. All
// mutations are serialized, and a read issued after a mutation returns
// observes it.
type Store struct {
	mu    sync.RWMutex
	lines []domain.CartLine
	index map[domain.VariantKey]int

	ceiling  int
	logger   *slog.Logger
	onChange ChangeFunc
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		index:   make(map[domain.VariantKey]int),
		ceiling: domain.DefaultQuantityCeiling,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ceiling returns the configured per-line quantity ceiling.
func (s *Store) Ceiling() int {
	return s.ceiling
}

// Add puts quantity units of a product variant into the cart. An existing
// line for the same variant absorbs the quantity. The result is clamped to
// the product's limits; a variant that cannot be ordered leaves the cart
// untouched.
func (s *Store) Add(ctx context.Context, product domain.Product, quantity int, opts AddOptions) Result {
	key := domain.NewVariantKey(product.ID, opts.Color, opts.Size)
	res := Result{Key: key, Requested: quantity}

	if !product.OffersVariant(opts.Color, opts.Size) {
		res.Outcome = OutcomeUnavailable
		s.logger.InfoContext(ctx, "variant not offered",
			slog.String("variant", key.String()),
		)
		return res
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := quantity
	idx, exists := s.index[key]
	if exists {
		target = s.lines[idx].Quantity + quantity
		res.Quantity = s.lines[idx].Quantity
	}

	qty, ok := product.Limits().Clamp(target, s.ceiling)
	if !ok {
		res.Outcome = OutcomeUnavailable
		s.logger.InfoContext(ctx, "variant unavailable",
			slog.String("variant", key.String()),
			slog.Int("stock", product.Stock),
			slog.Int("min_quantity", product.MinQuantity),
		)
		return res
	}
	res.Adjusted = qty != target

	var line domain.CartLine
	if exists {
		line = s.lines[idx]
		// Refresh the snapshot with the newer catalog data.
		line.Name = product.Name
		line.SKU = product.SKU
		line.BasePrice = product.BasePrice
		line.Stock = product.Stock
		line.MinQuantity = product.MinQuantity
		line.MaxQuantity = product.MaxQuantity
		line.PriceBreaks = cloneBreaks(product.PriceBreaks)
		res.Outcome = OutcomeMerged
	} else {
		line = newLine(product, opts)
		res.Outcome = OutcomeAdded
	}

	line.Quantity = qty
	if opts.OverrideUnitPrice != nil {
		line.UnitPrice = *opts.OverrideUnitPrice
		line.PriceOverridden = true
	}
	pricing.Reprice(&line)

	if exists {
		s.lines[idx] = line
	} else {
		s.index[key] = len(s.lines)
		s.lines = append(s.lines, line)
	}

	res.Quantity = line.Quantity
	res.Line = ptr(line.Clone())

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("variant", key.String()),
		slog.String("outcome", string(res.Outcome)),
		slog.Int("requested", quantity),
		slog.Int("quantity", line.Quantity),
		slog.Bool("adjusted", res.Adjusted),
	)

	s.notifyLocked()
	return res
}

// Update sets a line's quantity to an absolute value clamped to
// [0, effective max]. Zero removes the line. A positive value under the
// line's minimum is raised to it. Unknown keys are ignored.
func (s *Store) Update(ctx context.Context, key domain.VariantKey, quantity int) Result {
	res := Result{Key: key, Requested: quantity, Outcome: OutcomeNoop}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.index[key]
	if !ok {
		return res
	}
	line := s.lines[idx]
	limits := line.Limits()

	qty := min(max(quantity, 0), limits.EffectiveMax(s.ceiling))
	if qty > 0 && qty < limits.Lower() {
		qty = limits.Lower()
		if qty > limits.EffectiveMax(s.ceiling) {
			qty = 0
		}
	}
	res.Adjusted = qty != quantity

	if qty == 0 {
		s.removeLocked(idx)
		res.Outcome = OutcomeRemoved
		s.logger.InfoContext(ctx, "cart item removed by quantity update",
			slog.String("variant", key.String()),
			slog.Int("requested", quantity),
		)
		s.notifyLocked()
		return res
	}

	res.Quantity = qty
	if qty == line.Quantity {
		res.Line = ptr(line.Clone())
		return res
	}

	line.Quantity = qty
	pricing.Reprice(&line)
	s.lines[idx] = line

	res.Outcome = OutcomeUpdated
	res.Line = ptr(line.Clone())

	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.String("variant", key.String()),
		slog.Int("requested", quantity),
		slog.Int("quantity", qty),
		slog.Bool("adjusted", res.Adjusted),
	)

	s.notifyLocked()
	return res
}

// Remove deletes the line for key. Removing an absent key is a no-op.
func (s *Store) Remove(ctx context.Context, key domain.VariantKey) Result {
	res := Result{Key: key, Outcome: OutcomeNoop}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.index[key]
	if !ok {
		return res
	}
	s.removeLocked(idx)
	res.Outcome = OutcomeRemoved

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("variant", key.String()),
	)

	s.notifyLocked()
	return res
}

// Clear empties the cart unconditionally.
func (s *Store) Clear(ctx context.Context) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.lines)
	s.lines = nil
	clear(s.index)

	s.logger.InfoContext(ctx, "cart cleared",
		slog.Int("lines_removed", removed),
	)

	s.notifyLocked()
	return Result{Outcome: OutcomeCleared}
}

// Replace swaps the whole cart for lines, as loaded from storage. Duplicate
// keys keep their first occurrence and every line is re-clamped and
// repriced. The change hook is not called: the state already came from
// storage.
func (s *Store) Replace(lines []domain.CartLine) {
	normalized, index := s.normalize(lines)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = normalized
	s.index = index
}

// Reconcile runs fn against the current lines with the store locked, so no
// mutation can land between reading the cart and replacing it. When fn
// returns replace, its lines are normalized as in Replace and installed,
// then settle (if set) receives a copy of the new lines before the lock is
// released. Neither fn nor settle may call back into the store. The change
// hook is not called. Reconcile reports whether the lines were replaced.
func (s *Store) Reconcile(fn func(current []domain.CartLine) (lines []domain.CartLine, replace bool), settle func(lines []domain.CartLine)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, replace := fn(domain.CloneLines(s.lines))
	if !replace {
		return false
	}
	s.lines, s.index = s.normalize(lines)
	if settle != nil {
		settle(domain.CloneLines(s.lines))
	}
	return true
}

func (s *Store) normalize(lines []domain.CartLine) ([]domain.CartLine, map[domain.VariantKey]int) {
	normalized := make([]domain.CartLine, 0, len(lines))
	index := make(map[domain.VariantKey]int, len(lines))
	for _, l := range lines {
		key := l.Key()
		if _, dup := index[key]; dup {
			continue
		}
		qty, ok := l.Limits().Clamp(l.Quantity, s.ceiling)
		if !ok {
			continue
		}
		line := l.Clone()
		line.Quantity = qty
		pricing.Reprice(&line)
		index[key] = len(normalized)
		normalized = append(normalized, line)
	}
	return normalized, index
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []domain.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneLines(s.lines)
}

// Line returns a copy of the line for key.
func (s *Store) Line(key domain.VariantKey) (domain.CartLine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.index[key]
	if !ok {
		return domain.CartLine{}, false
	}
	return s.lines[idx].Clone(), true
}

// Len returns the number of distinct lines.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// Count returns the total number of units, derived on every call.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Count(s.lines)
}

// Subtotal returns the sum of line totals, derived on every call.
func (s *Store) Subtotal() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Subtotal(s.lines)
}

func (s *Store) removeLocked(idx int) {
	delete(s.index, s.lines[idx].Key())
	s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	for i := idx; i < len(s.lines); i++ {
		s.index[s.lines[i].Key()] = i
	}
}

func (s *Store) notifyLocked() {
	if s.onChange != nil {
		s.onChange(domain.CloneLines(s.lines))
	}
}

func newLine(p domain.Product, opts AddOptions) domain.CartLine {
	return domain.CartLine{
		ID:            p.ID,
		Name:          p.Name,
		SKU:           p.SKU,
		BasePrice:     p.BasePrice,
		Stock:         p.Stock,
		MinQuantity:   p.MinQuantity,
		MaxQuantity:   p.MaxQuantity,
		PriceBreaks:   cloneBreaks(p.PriceBreaks),
		SelectedColor: opts.Color,
		SelectedSize:  opts.Size,
	}
}

func cloneBreaks(breaks []domain.PriceBreak) []domain.PriceBreak {
	if len(breaks) == 0 {
		return nil
	}
	return append([]domain.PriceBreak(nil), breaks...)
}

func ptr[T any](v T) *T {
	return &v
}
