package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/adiva-s/ResourceRite/internal/domain"
	"github.com/adiva-s/ResourceRite/internal/ledger"
)

type PurchasesHandler struct {
	ledger  ledger.Ledger
	timeout time.Duration
}

func NewPurchasesHandler(led ledger.Ledger, timeout time.Duration) *PurchasesHandler {
	return &PurchasesHandler{ledger: led, timeout: timeout}
}

type PurchaseListDTO struct {
	Purchases []domain.PurchaseRecord `json:"purchases"`
}

// List returns the authenticated user's purchase history, newest first.
func (h *PurchasesHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	records, err := h.ledger.ListByUser(ctx, getUserID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if records == nil {
		records = []domain.PurchaseRecord{}
	}
	respondJSON(w, http.StatusOK, PurchaseListDTO{Purchases: records})
}
