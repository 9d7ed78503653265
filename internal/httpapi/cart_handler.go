package httpapi

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/adiva-s/ResourceRite/internal/cart"
	"github.com/adiva-s/ResourceRite/internal/domain"
)

type CartHandler struct {
	carts   *cart.Service
	timeout time.Duration
}

func NewCartHandler(carts *cart.Service, timeout time.Duration) *CartHandler {
	return &CartHandler{carts: carts, timeout: timeout}
}

// CartViewDTO is the GET /cart response: line items in stable order plus the
// freshly computed breakdown.
type CartViewDTO struct {
	SessionID string                  `json:"session_id"`
	Items     []domain.LineItem       `json:"items"`
	Breakdown domain.PricingBreakdown `json:"breakdown"`
}

// MutationResponseDTO is what every cart mutation returns: the new totals
// and the affected line's quantity, enough for the client to refresh its
// display without refetching the whole cart.
type MutationResponseDTO struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
	Quantity int    `json:"quantity"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	cartState, breakdown, err := h.carts.Get(ctx, sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartView(cartState, breakdown))
}

func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.carts.AddOrIncrement)
}

func (h *CartHandler) Increase(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.carts.Increase)
}

func (h *CartHandler) Decrease(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.carts.Decrease)
}

func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.carts.Remove)
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.carts.Clear(ctx, getSessionID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, mutationResponse(result))
}

func (h *CartHandler) mutate(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, sessionID, productID string) (*cart.MutationResult, error),
) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "productID")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product id is required")
		return
	}

	result, err := op(ctx, getSessionID(r.Context()), productID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, mutationResponse(result))
}

func cartView(cartState *domain.Cart, breakdown domain.PricingBreakdown) CartViewDTO {
	items := make([]domain.LineItem, 0, len(cartState.Items))
	for _, item := range cartState.Items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	return CartViewDTO{
		SessionID: cartState.SessionID,
		Items:     items,
		Breakdown: breakdown,
	}
}

func mutationResponse(result *cart.MutationResult) MutationResponseDTO {
	return MutationResponseDTO{
		Subtotal: result.Breakdown.Subtotal.StringFixed(2),
		Tax:      result.Breakdown.TaxAmount.StringFixed(2),
		Total:    result.Breakdown.GrandTotal.StringFixed(2),
		Quantity: result.Quantity,
	}
}
