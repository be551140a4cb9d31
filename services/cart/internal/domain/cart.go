package domain

import (
	"slices"
)

// CurrentVersion is the format version written into every persisted envelope.
// Version 1 is the legacy bare array with no wrapper.
const CurrentVersion = 2

// DefaultQuantityCeiling is the hard practical ceiling on a single line's
// quantity, applied on top of stock and the product's own maximum.
const DefaultQuantityCeiling = 100

// CartLine is a single variant in the cart. Product fields are a snapshot
// taken when the line was added.
type CartLine struct {
	ID              int64        `json:"id"`
	Name            string       `json:"name"`
	SKU             string       `json:"sku"`
	BasePrice       int64        `json:"basePrice"`
	Stock           int          `json:"stock,omitempty"`
	MinQuantity     int          `json:"minQuantity,omitempty"`
	MaxQuantity     int          `json:"maxQuantity,omitempty"`
	PriceBreaks     []PriceBreak `json:"priceBreaks,omitempty"`
	Quantity        int          `json:"quantity"`
	SelectedColor   string       `json:"selectedColor,omitempty"`
	SelectedSize    string       `json:"selectedSize,omitempty"`
	UnitPrice       int64        `json:"unitPrice"`
	TotalPrice      int64        `json:"totalPrice"`
	PriceOverridden bool         `json:"priceOverride,omitempty"`
}

// Key returns the variant identity of the line.
func (l CartLine) Key() VariantKey {
	return VariantKey{ProductID: l.ID, Color: l.SelectedColor, Size: l.SelectedSize}
}

// Limits returns the quantity limits captured with the line.
func (l CartLine) Limits() Limits {
	return Limits{Stock: l.Stock, MinQuantity: l.MinQuantity, MaxQuantity: l.MaxQuantity}
}

// Clone returns a deep copy of the line.
func (l CartLine) Clone() CartLine {
	l.PriceBreaks = slices.Clone(l.PriceBreaks)
	return l
}

// Equal reports whether two lines carry the same data.
func (l CartLine) Equal(o CartLine) bool {
	return l.ID == o.ID &&
		l.Name == o.Name &&
		l.SKU == o.SKU &&
		l.BasePrice == o.BasePrice &&
		l.Stock == o.Stock &&
		l.MinQuantity == o.MinQuantity &&
		l.MaxQuantity == o.MaxQuantity &&
		l.Quantity == o.Quantity &&
		l.SelectedColor == o.SelectedColor &&
		l.SelectedSize == o.SelectedSize &&
		l.UnitPrice == o.UnitPrice &&
		l.TotalPrice == o.TotalPrice &&
		l.PriceOverridden == o.PriceOverridden &&
		slices.EqualFunc(l.PriceBreaks, o.PriceBreaks, PriceBreak.Equal)
}

// Envelope is the versioned wrapper written to durable storage.
type Envelope struct {
	V     int        `json:"v"`
	Items []CartLine `json:"items"`
}

// NewEnvelope wraps lines with the current format version.
func NewEnvelope(lines []CartLine) Envelope {
	if lines == nil {
		lines = []CartLine{}
	}
	return Envelope{V: CurrentVersion, Items: lines}
}

// Count returns the total number of units across lines.
func Count(lines []CartLine) int {
	var count int
	for _, l := range lines {
		count += l.Quantity
	}
	return count
}

// Subtotal returns the sum of line totals (in cents).
func Subtotal(lines []CartLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.TotalPrice
	}
	return total
}

// EqualLines reports whether two ordered line sets are identical.
func EqualLines(a, b []CartLine) bool {
	return slices.EqualFunc(a, b, CartLine.Equal)
}

// CloneLines deep-copies a line slice.
func CloneLines(lines []CartLine) []CartLine {
	out := make([]CartLine, len(lines))
	for i, l := range lines {
		out[i] = l.Clone()
	}
	return out
}
