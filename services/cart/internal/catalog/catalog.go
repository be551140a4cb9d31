// Package catalog supplies the immutable product records the cart is built
// from, out of a JSON/YAML file or a Postgres database.
package catalog

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/pkg/validator"
	"github.com/utafrali/EcommerceGo/services/cart/internal/domain"
	"github.com/utafrali/EcommerceGo/services/cart/internal/metrics"
	"github.com/utafrali/EcommerceGo/services/cart/internal/pricing"
)

// Provider looks up products.
type Provider interface {
	// Product returns the product with id or an ErrNotFound AppError.
	Product(ctx context.Context, id int64) (domain.Product, error)

	// Products returns every product ordered by id.
	Products(ctx context.Context) ([]domain.Product, error)
}

// Policy decides what happens to products with a questionable price table.
type Policy struct {
	// Source labels metrics and logs ("file", "postgres").
	Source string
	// Strict rejects products whose price table fails validation instead of
	// only flagging them.
	Strict bool
	Logger *slog.Logger
}

func (p Policy) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.Logger
}

// Check validates a product. Malformed records are always rejected. A price
// table that is not monotonic, or otherwise broken, is rejected in strict
// mode and logged and counted otherwise.
func (p Policy) Check(ctx context.Context, product domain.Product) error {
	id := strconv.FormatInt(product.ID, 10)
	if err := validator.Validate(product); err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, fmt.Sprintf("product %s: %s", id, err))
	}
	if product.MaxQuantity > 0 && product.MinQuantity > product.MaxQuantity {
		return apperrors.Wrap(apperrors.ErrValidation,
			fmt.Sprintf("product %s: min_quantity %d exceeds max_quantity %d", id, product.MinQuantity, product.MaxQuantity))
	}

	err := pricing.ValidateBreaks(product.PriceBreaks)
	if err == nil {
		return nil
	}

	if p.Strict {
		metrics.InvalidPriceBreaks.WithLabelValues(p.Source, "rejected").Inc()
		p.logger().ErrorContext(ctx, "rejecting product with invalid price table",
			slog.String("source", p.Source),
			slog.Int64("product_id", product.ID),
			slog.String("error", err.Error()),
		)
		return apperrors.Wrap(apperrors.ErrValidation, fmt.Sprintf("product %s: %s", id, err))
	}

	metrics.InvalidPriceBreaks.WithLabelValues(p.Source, "flagged").Inc()
	p.logger().WarnContext(ctx, "product has an invalid price table",
		slog.String("source", p.Source),
		slog.Int64("product_id", product.ID),
		slog.String("error", err.Error()),
	)
	return nil
}

// Static serves a fixed product list from memory.
type Static struct {
	products []domain.Product
	byID     map[int64]int
}

var _ Provider = (*Static)(nil)

// NewStatic builds a provider from products, keeping those that pass the
// policy. Duplicate ids are an error.
func NewStatic(ctx context.Context, products []domain.Product, policy Policy) (*Static, error) {
	s := &Static{byID: make(map[int64]int, len(products))}
	seen := make(map[int64]bool, len(products))

	for _, product := range products {
		if seen[product.ID] {
			return nil, fmt.Errorf("duplicate product id %d", product.ID)
		}
		seen[product.ID] = true

		if err := policy.Check(ctx, product); err != nil {
			policy.logger().WarnContext(ctx, "skipping catalog product",
				slog.String("source", policy.Source),
				slog.Int64("product_id", product.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.products = append(s.products, product)
	}

	slices.SortFunc(s.products, func(a, b domain.Product) int {
		return cmp.Compare(a.ID, b.ID)
	})
	for i, product := range s.products {
		s.byID[product.ID] = i
	}
	return s, nil
}

// Product returns the product with id.
func (s *Static) Product(_ context.Context, id int64) (domain.Product, error) {
	idx, ok := s.byID[id]
	if !ok {
		return domain.Product{}, apperrors.NotFound("product", strconv.FormatInt(id, 10))
	}
	return s.products[idx], nil
}

// Products returns all products ordered by id.
func (s *Static) Products(context.Context) ([]domain.Product, error) {
	return slices.Clone(s.products), nil
}
