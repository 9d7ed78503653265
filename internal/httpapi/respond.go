package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/adiva-s/ResourceRite/internal/cart"
	"github.com/adiva-s/ResourceRite/internal/checkout"
	"github.com/adiva-s/ResourceRite/internal/ledger"
	"github.com/adiva-s/ResourceRite/internal/payment"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// handleServiceError maps domain sentinel errors onto HTTP status codes.
// Anything unrecognized is a 500 with the detail kept out of the response.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "product not found")
	case errors.Is(err, cart.ErrStockExceeded):
		respondError(w, http.StatusConflict, "stock_exceeded", "quantity exceeds available stock")
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
	case errors.Is(err, checkout.ErrProductUnavailable):
		respondError(w, http.StatusConflict, "product_unavailable", "a cart item is no longer available")
	case errors.Is(err, checkout.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "not_found", "checkout session not found")
	case errors.Is(err, checkout.ErrSessionExpired):
		respondError(w, http.StatusGone, "expired", "checkout session expired")
	case errors.Is(err, checkout.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "conflict", "checkout is not in a confirmable state")
	case errors.Is(err, payment.ErrProcessorFailed):
		respondError(w, http.StatusBadGateway, "processor_error", "payment processor unavailable")
	case errors.Is(err, payment.ErrBadSignature):
		respondError(w, http.StatusUnauthorized, "bad_signature", "webhook signature verification failed")
	case errors.Is(err, ledger.ErrPurchaseNotFound):
		respondError(w, http.StatusNotFound, "not_found", "purchase not found")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
