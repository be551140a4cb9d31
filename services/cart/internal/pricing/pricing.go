// Package pricing computes tiered unit prices from a product's price breaks.
// All functions are pure.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/utafrali/EcommerceGo/services/cart/internal/domain"
)

// Price table problems reported by ValidateBreaks.
var (
	ErrNonMonotonicBreaks = errors.New("price breaks are not non-increasing in price")
	ErrDuplicateThreshold = errors.New("price breaks share a threshold")
	ErrInvalidThreshold   = errors.New("price break threshold must be positive")
	ErrNegativePrice      = errors.New("price break price must not be negative")
)

// BestUnitPrice returns the lowest price among the breaks whose threshold is
// reached by quantity, or basePrice when none is eligible. The table does not
// need to be sorted or monotonic.
func BestUnitPrice(quantity int, basePrice int64, breaks []domain.PriceBreak) int64 {
	best := basePrice
	found := false
	for _, b := range breaks {
		if b.MinQty > quantity {
			continue
		}
		if !found || b.Price < best {
			best = b.Price
			found = true
		}
	}
	return best
}

// ApplicableBreak returns the eligible break with the highest threshold, which
// is the tier a customer sees as "current". With a non-monotonic table it can
// differ from the break that produced BestUnitPrice.
func ApplicableBreak(quantity int, breaks []domain.PriceBreak) (domain.PriceBreak, bool) {
	var active domain.PriceBreak
	found := false
	for _, b := range breaks {
		if b.MinQty > quantity {
			continue
		}
		if !found || b.MinQty > active.MinQty {
			active = b
			found = true
		}
	}
	return active, found
}

// NextBreak returns the break with the smallest threshold above quantity.
func NextBreak(quantity int, breaks []domain.PriceBreak) (domain.PriceBreak, bool) {
	var next domain.PriceBreak
	found := false
	for _, b := range breaks {
		if b.MinQty <= quantity {
			continue
		}
		if !found || b.MinQty < next.MinQty {
			next = b
			found = true
		}
	}
	return next, found
}

// MaxUnitPrice is the largest unit price, in minor units, a caller may pin
// on a line.
const MaxUnitPrice int64 = 1_000_000_000_000

// LineTotal is unit times quantity, saturating at the int64 range instead of
// wrapping.
func LineTotal(unitPrice int64, quantity int) int64 {
	q := int64(quantity)
	if unitPrice == 0 || q == 0 {
		return 0
	}
	total := unitPrice * q
	if total/q != unitPrice || (unitPrice == -1 && q == math.MinInt64) || (q == -1 && unitPrice == math.MinInt64) {
		if (unitPrice > 0) == (q > 0) {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return total
}

// ValidateBreaks checks that thresholds are positive and distinct, prices are
// not negative, and price never rises as the threshold rises. All problems
// are joined into the returned error.
func ValidateBreaks(breaks []domain.PriceBreak) error {
	sorted := slices.Clone(breaks)
	slices.SortStableFunc(sorted, func(a, b domain.PriceBreak) int {
		return a.MinQty - b.MinQty
	})

	var errs []error
	for i, b := range sorted {
		if b.MinQty <= 0 {
			errs = append(errs, fmt.Errorf("%w: minQty %d", ErrInvalidThreshold, b.MinQty))
		}
		if b.Price < 0 {
			errs = append(errs, fmt.Errorf("%w: minQty %d price %d", ErrNegativePrice, b.MinQty, b.Price))
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if prev.MinQty == b.MinQty {
			errs = append(errs, fmt.Errorf("%w: minQty %d", ErrDuplicateThreshold, b.MinQty))
			continue
		}
		if b.Price > prev.Price {
			errs = append(errs, fmt.Errorf("%w: minQty %d costs %d, more than %d at minQty %d",
				ErrNonMonotonicBreaks, b.MinQty, b.Price, prev.Price, prev.MinQty))
		}
	}
	return errors.Join(errs...)
}

// Reprice recomputes a line's unit and total price. A line carrying an
// add-time override keeps its unit price; only the total is recomputed.
func Reprice(line *domain.CartLine) {
	if !line.PriceOverridden {
		line.UnitPrice = BestUnitPrice(line.Quantity, line.BasePrice, line.PriceBreaks)
	}
	line.TotalPrice = LineTotal(line.UnitPrice, line.Quantity)
}
