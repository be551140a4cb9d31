package pricing

import "github.com/utafrali/EcommerceGo/services/cart/internal/domain"

// Quote is a display-oriented summary of what a quantity costs.
type Quote struct {
	Quantity        int                `json:"quantity"`
	BasePrice       int64              `json:"base_price"`
	UnitPrice       int64              `json:"unit_price"`
	Total           int64              `json:"total"`
	Savings         int64              `json:"savings"`
	ActiveTier      *domain.PriceBreak `json:"active_tier,omitempty"`
	NextTier        *domain.PriceBreak `json:"next_tier,omitempty"`
	UnitsToNextTier int                `json:"units_to_next_tier,omitempty"`
}

// NewQuote prices quantity units of a product.
func NewQuote(quantity int, basePrice int64, breaks []domain.PriceBreak) Quote {
	unit := BestUnitPrice(quantity, basePrice, breaks)
	q := Quote{
		Quantity:  quantity,
		BasePrice: basePrice,
		UnitPrice: unit,
		Total:     LineTotal(unit, quantity),
		Savings:   LineTotal(basePrice-unit, quantity),
	}
	if active, ok := ApplicableBreak(quantity, breaks); ok {
		q.ActiveTier = &active
	}
	if next, ok := NextBreak(quantity, breaks); ok {
		q.NextTier = &next
		q.UnitsToNextTier = next.MinQty - quantity
	}
	return q
}
