package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/pkg/httputil"
	"github.com/utafrali/EcommerceGo/pkg/validator"
	"github.com/utafrali/EcommerceGo/services/cart/internal/catalog"
	"github.com/utafrali/EcommerceGo/services/cart/internal/domain"
	"github.com/utafrali/EcommerceGo/services/cart/internal/metrics"
	"github.com/utafrali/EcommerceGo/services/cart/internal/store"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	store   *store.Store
	catalog catalog.Provider
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(st *store.Store, cat catalog.Provider, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		store:   st,
		catalog: cat,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding an item to the cart.
type AddItemRequest struct {
	ProductID         int64  `json:"product_id" validate:"required,gt=0"`
	Quantity          int    `json:"quantity" validate:"required,gte=1"`
	Color             string `json:"color" validate:"variant"`
	Size              string `json:"size" validate:"variant"`
	UnitPriceOverride *int64 `json:"unit_price_override" validate:"omitempty,gte=0,lte=1000000000000"`
}

// UpdateQuantityRequest is the JSON request body for updating an item's quantity.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// --- Response DTOs ---

// CartView is the cart as returned to clients.
type CartView struct {
	Items    []domain.CartLine `json:"items"`
	Count    int               `json:"count"`
	Subtotal int64             `json:"subtotal"`
}

// Notice tells the notification layer what happened to a command.
type Notice struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Variant   string `json:"variant,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

// Notice codes.
const (
	NoticeAdded              = "item_added"
	NoticeUpdated            = "quantity_updated"
	NoticeRemoved            = "item_removed"
	NoticeCleared            = "cart_cleared"
	NoticeAdjustedQuantity   = "adjusted_quantity"
	NoticeVariantUnavailable = "variant_unavailable"
	NoticeNotInCart          = "not_in_cart"
	NoticeUnchanged          = "unchanged"
)

// MutationView is the response to a cart command.
type MutationView struct {
	Cart   CartView `json:"cart"`
	Notice Notice   `json:"notice"`
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.view()})
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		h.writeDecodeError(w, r, err)
		return
	}

	product, err := h.catalog.Product(r.Context(), req.ProductID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	res := h.store.Add(r.Context(), product, req.Quantity, store.AddOptions{
		Color:             req.Color,
		Size:              req.Size,
		OverrideUnitPrice: req.UnitPriceOverride,
	})
	h.writeMutation(w, "add", res)
}

// UpdateItemQuantity handles PUT /api/v1/cart/items/{productId}?color=&size=
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	key, ok := variantKey(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		h.writeDecodeError(w, r, err)
		return
	}

	res := h.store.Update(r.Context(), key, *req.Quantity)
	h.writeMutation(w, "update", res)
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}?color=&size=
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	key, ok := variantKey(w, r)
	if !ok {
		return
	}

	res := h.store.Remove(r.Context(), key)
	h.writeMutation(w, "remove", res)
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	res := h.store.Clear(r.Context())
	h.writeMutation(w, "clear", res)
}

// --- Helpers ---

func (h *CartHandler) view() CartView {
	items := h.store.Items()
	if items == nil {
		items = []domain.CartLine{}
	}
	return CartView{
		Items:    items,
		Count:    domain.Count(items),
		Subtotal: domain.Subtotal(items),
	}
}

func (h *CartHandler) writeMutation(w http.ResponseWriter, command string, res store.Result) {
	metrics.Commands.WithLabelValues(command, string(res.Outcome)).Inc()
	if res.Adjusted {
		metrics.QuantityAdjusted.WithLabelValues(command).Inc()
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: MutationView{
		Cart:   h.view(),
		Notice: noticeFor(res),
	}})
}

// noticeFor turns a command result into a user-facing notice. Adjustments
// take precedence over the plain outcome so the user learns why the
// quantity differs from what they asked for.
func noticeFor(res store.Result) Notice {
	n := Notice{Requested: res.Requested, Quantity: res.Quantity}
	if res.Outcome != store.OutcomeCleared {
		n.Variant = res.Key.String()
	}

	switch {
	case res.Outcome == store.OutcomeUnavailable:
		n.Code = NoticeVariantUnavailable
		n.Message = "this option is currently unavailable"
	case res.Adjusted && res.Outcome == store.OutcomeRemoved:
		n.Code = NoticeRemoved
		n.Message = "item removed from cart"
	case res.Adjusted:
		n.Code = NoticeAdjustedQuantity
		n.Message = fmt.Sprintf("quantity adjusted to %d", res.Quantity)
	case res.Outcome == store.OutcomeAdded, res.Outcome == store.OutcomeMerged:
		n.Code = NoticeAdded
		n.Message = "item added to cart"
	case res.Outcome == store.OutcomeUpdated:
		n.Code = NoticeUpdated
		n.Message = "quantity updated"
	case res.Outcome == store.OutcomeRemoved:
		n.Code = NoticeRemoved
		n.Message = "item removed from cart"
	case res.Outcome == store.OutcomeCleared:
		n.Code = NoticeCleared
		n.Message = "cart cleared"
	case res.Line != nil:
		n.Code = NoticeUnchanged
		n.Message = "quantity unchanged"
	default:
		n.Code = NoticeNotInCart
		n.Message = "item is not in the cart"
	}
	return n
}

func variantKey(w http.ResponseWriter, r *http.Request) (domain.VariantKey, bool) {
	id, ok := httputil.ParseID(w, "product id", chi.URLParam(r, "productId"))
	if !ok {
		return domain.VariantKey{}, false
	}
	q := r.URL.Query()
	return domain.NewVariantKey(id, q.Get("color"), q.Get("size")), true
}

func (h *CartHandler) writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteValidationError(w, err)
		return
	}
	httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body: "+err.Error()), h.logger)
}
