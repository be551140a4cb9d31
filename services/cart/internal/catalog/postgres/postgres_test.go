package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/EcommerceGo/pkg/database"
	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/services/cart/internal/catalog"
	"github.com/utafrali/EcommerceGo/services/cart/internal/domain"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

var columns = []string{
	"id", "name", "sku", "base_price", "stock", "min_quantity", "max_quantity", "colors", "sizes", "price_breaks",
}

func TestProduct_Found(t *testing.T) {
	mock := newMock(t)
	cat := New(mock, catalog.Policy{})

	mock.ExpectQuery("SELECT .+ FROM products p WHERE p.id = \\$1").
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(
			int64(2), "Tee", "TEE", int64(2500), 30, 2, 20,
			[]string{"red", "blue"}, []string{"S", "M", "L"},
			[]byte(`[{"minQty":5,"price":2300,"discount":null},{"minQty":10,"price":2000,"discount":20}]`),
		))

	product, err := cat.Product(context.Background(), 2)
	require.NoError(t, err)

	discount := 20.0
	assert.Equal(t, domain.Product{
		ID: 2, Name: "Tee", SKU: "TEE", BasePrice: 2500, Stock: 30, MinQuantity: 2, MaxQuantity: 20,
		Colors: []string{"red", "blue"},
		Sizes:  []string{"S", "M", "L"},
		PriceBreaks: []domain.PriceBreak{
			{MinQty: 5, Price: 2300},
			{MinQty: 10, Price: 2000, DiscountPercent: &discount},
		},
	}, product)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProduct_NotFound(t *testing.T) {
	mock := newMock(t)
	cat := New(mock, catalog.Policy{})

	mock.ExpectQuery("SELECT .+ FROM products p WHERE p.id = \\$1").
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	_, err := cat.Product(context.Background(), 99)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProduct_QueryError(t *testing.T) {
	mock := newMock(t)
	cat := New(mock, catalog.Policy{})

	mock.ExpectQuery("SELECT .+ FROM products p WHERE p.id = \\$1").
		WithArgs(int64(1)).
		WillReturnError(errors.New("connection reset"))

	_, err := cat.Product(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "get product 1")
}

func TestProduct_StrictPolicyHidesBrokenTable(t *testing.T) {
	mock := newMock(t)
	cat := New(mock, catalog.Policy{Strict: true})

	mock.ExpectQuery("SELECT .+ FROM products p WHERE p.id = \\$1").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(
			int64(3), "Odd tiers", "ODD", int64(500), 25, 0, 0,
			[]string{}, []string{},
			[]byte(`[{"minQty":3,"price":400},{"minQty":6,"price":450}]`),
		))

	_, err := cat.Product(context.Background(), 3)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProducts_ListsAndFilters(t *testing.T) {
	mock := newMock(t)
	cat := New(mock, catalog.Policy{})

	mock.ExpectQuery("SELECT .+ FROM products p ORDER BY p.id").
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow(int64(1), "Product X", "PX-1", int64(1000), 50, 0, 0,
				[]string{}, []string{},
				[]byte(`[{"minQty":5,"price":950},{"minQty":10,"price":900}]`)).
			AddRow(int64(4), "", "BAD", int64(100), 5, 0, 0,
				[]string{}, []string{}, []byte(`[]`)).
			AddRow(int64(5), "Bounds", "BND", int64(100), 5, 6, 3,
				[]string{}, []string{}, []byte(`[]`)))

	products, err := cat.Products(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, int64(1), products[0].ID)
	assert.Len(t, products[0].PriceBreaks, 2)
	assert.Nil(t, products[0].Colors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProducts_QueryError(t *testing.T) {
	mock := newMock(t)
	cat := New(mock, catalog.Policy{})

	mock.ExpectQuery("SELECT .+ FROM products p ORDER BY p.id").
		WillReturnError(errors.New("boom"))

	_, err := cat.Products(context.Background())
	assert.ErrorContains(t, err, "list products")
}

func TestProducts_BadPriceBreakJSON(t *testing.T) {
	mock := newMock(t)
	cat := New(mock, catalog.Policy{})

	mock.ExpectQuery("SELECT .+ FROM products p ORDER BY p.id").
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow(int64(1), "Product X", "PX-1", int64(1000), 50, 0, 0,
				[]string{}, []string{}, []byte(`{not json`)))

	_, err := cat.Products(context.Background())
	assert.ErrorContains(t, err, "unmarshal price breaks")
}
