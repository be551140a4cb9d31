// Package postgres serves catalog products from PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/EcommerceGo/pkg/database"
	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/services/cart/internal/catalog"
	"github.com/utafrali/EcommerceGo/services/cart/internal/domain"
)

const productColumns = `
		p.id, p.name, p.sku, p.base_price, p.stock, p.min_quantity, p.max_quantity, p.colors, p.sizes,
		COALESCE((
			SELECT json_agg(json_build_object('minQty', b.min_qty, 'price', b.price, 'discount', b.discount_percent) ORDER BY b.min_qty)
			FROM price_breaks b
			WHERE b.product_id = p.id
		), '[]'::json) AS price_breaks`

// Catalog implements catalog.Provider on top of the products and
// price_breaks tables.
type Catalog struct {
	db     database.DBTX
	policy catalog.Policy
}

var _ catalog.Provider = (*Catalog)(nil)

// New creates a Postgres-backed catalog. Products failing the policy are
// treated as missing.
func New(db database.DBTX, policy catalog.Policy) *Catalog {
	if policy.Source == "" {
		policy.Source = "postgres"
	}
	return &Catalog{db: db, policy: policy}
}

// Product retrieves a product by its ID.
func (c *Catalog) Product(ctx context.Context, id int64) (_ domain.Product, err error) {
	query := `SELECT` + productColumns + `
		FROM products p
		WHERE p.id = $1`

	ctx, end := database.TraceQuery(ctx, "GetCatalogProduct", query)
	defer func() { end(err) }()

	product, err := scanProduct(c.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, apperrors.NotFound("product", strconv.FormatInt(id, 10))
		}
		return domain.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}

	if checkErr := c.policy.Check(ctx, product); checkErr != nil {
		c.skip(ctx, product.ID, checkErr)
		return domain.Product{}, apperrors.NotFound("product", strconv.FormatInt(id, 10))
	}
	return product, nil
}

// Products returns every product that passes the policy, ordered by id.
func (c *Catalog) Products(ctx context.Context) (_ []domain.Product, err error) {
	query := `SELECT` + productColumns + `
		FROM products p
		ORDER BY p.id`

	ctx, end := database.TraceQuery(ctx, "ListCatalogProducts", query)
	defer func() { end(err) }()

	rows, err := c.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if checkErr := c.policy.Check(ctx, product); checkErr != nil {
			c.skip(ctx, product.ID, checkErr)
			continue
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

func (c *Catalog) skip(ctx context.Context, id int64, err error) {
	if c.policy.Logger == nil {
		return
	}
	c.policy.Logger.WarnContext(ctx, "skipping catalog product",
		slog.String("source", c.policy.Source),
		slog.Int64("product_id", id),
		slog.String("error", err.Error()),
	)
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p      domain.Product
		breaks []byte
	)
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.SKU,
		&p.BasePrice,
		&p.Stock,
		&p.MinQuantity,
		&p.MaxQuantity,
		&p.Colors,
		&p.Sizes,
		&breaks,
	)
	if err != nil {
		return domain.Product{}, err
	}

	if len(breaks) > 0 {
		if err := json.Unmarshal(breaks, &p.PriceBreaks); err != nil {
			return domain.Product{}, fmt.Errorf("unmarshal price breaks: %w", err)
		}
	}
	if len(p.PriceBreaks) == 0 {
		p.PriceBreaks = nil
	}
	if len(p.Colors) == 0 {
		p.Colors = nil
	}
	if len(p.Sizes) == 0 {
		p.Sizes = nil
	}

	return p, nil
}
