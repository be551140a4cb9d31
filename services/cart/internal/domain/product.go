package domain

import "slices"

// PriceBreak is a quantity threshold at which a lower unit price becomes
// eligible. Tables are not assumed to be sorted.
type PriceBreak struct {
	MinQty          int      `json:"minQty" yaml:"min_qty"`
	Price           int64    `json:"price" yaml:"price"`
	DiscountPercent *float64 `json:"discount,omitempty" yaml:"discount,omitempty"`
}

// Equal compares two breaks by value.
func (b PriceBreak) Equal(o PriceBreak) bool {
	if b.MinQty != o.MinQty || b.Price != o.Price {
		return false
	}
	switch {
	case b.DiscountPercent == nil && o.DiscountPercent == nil:
		return true
	case b.DiscountPercent == nil || o.DiscountPercent == nil:
		return false
	default:
		return *b.DiscountPercent == *o.DiscountPercent
	}
}

// Product is an immutable catalog record supplied to the cart.
type Product struct {
	ID          int64        `json:"id" yaml:"id" validate:"gt=0"`
	Name        string       `json:"name" yaml:"name" validate:"required"`
	SKU         string       `json:"sku" yaml:"sku"`
	BasePrice   int64        `json:"base_price" yaml:"base_price" validate:"gte=0"`
	Stock       int          `json:"stock" yaml:"stock" validate:"gte=0"`
	MinQuantity int          `json:"min_quantity,omitempty" yaml:"min_quantity,omitempty" validate:"gte=0"`
	MaxQuantity int          `json:"max_quantity,omitempty" yaml:"max_quantity,omitempty" validate:"gte=0"`
	PriceBreaks []PriceBreak `json:"price_breaks,omitempty" yaml:"price_breaks,omitempty"`
	Colors      []string     `json:"colors,omitempty" yaml:"colors,omitempty"`
	Sizes       []string     `json:"sizes,omitempty" yaml:"sizes,omitempty"`
}

// Limits returns the product's quantity limits.
func (p *Product) Limits() Limits {
	return Limits{Stock: p.Stock, MinQuantity: p.MinQuantity, MaxQuantity: p.MaxQuantity}
}

// OffersVariant reports whether the product can be ordered in the given
// color and size. A product that lists no colors (or sizes) accepts only
// the empty value for that dimension.
func (p *Product) OffersVariant(color, size string) bool {
	return offers(p.Colors, color) && offers(p.Sizes, size)
}

func offers(options []string, value string) bool {
	if len(options) == 0 {
		return value == ""
	}
	return slices.Contains(options, value)
}

// Limits bounds the quantity of a cart line.
type Limits struct {
	Stock       int
	MinQuantity int
	MaxQuantity int
}

// Lower is the smallest quantity a line may hold.
func (l Limits) Lower() int {
	return max(1, l.MinQuantity)
}

// EffectiveMax is the tightest of stock, the product maximum (when set) and
// the ceiling. It never goes below zero.
func (l Limits) EffectiveMax(ceiling int) int {
	upper := min(l.Stock, ceiling)
	if l.MaxQuantity > 0 {
		upper = min(upper, l.MaxQuantity)
	}
	return max(upper, 0)
}

// Orderable reports whether at least the lower bound fits under the
// effective maximum.
func (l Limits) Orderable(ceiling int) bool {
	return l.EffectiveMax(ceiling) >= l.Lower()
}

// Clamp fits quantity into [Lower, EffectiveMax]. It reports false when the
// range is empty, which means the variant cannot be ordered at all.
func (l Limits) Clamp(quantity, ceiling int) (int, bool) {
	lower, upper := l.Lower(), l.EffectiveMax(ceiling)
	if upper < lower {
		return 0, false
	}
	return min(max(quantity, lower), upper), true
}
