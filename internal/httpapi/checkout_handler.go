package httpapi

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/adiva-s/ResourceRite/internal/checkout"
	"github.com/adiva-s/ResourceRite/internal/payment"
)

type CheckoutHandler struct {
	checkouts     *checkout.Service
	webhookSecret []byte
	timeout       time.Duration
}

func NewCheckoutHandler(checkouts *checkout.Service, webhookSecret []byte, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{checkouts: checkouts, webhookSecret: webhookSecret, timeout: timeout}
}

type CheckoutResponseDTO struct {
	CheckoutID  string `json:"checkout_id"`
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// Begin starts a checkout for the session's cart. The optional
// Idempotency-Key header makes retried submissions return the original
// session instead of opening a second one.
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.checkouts.Begin(ctx,
		getSessionID(r.Context()),
		getUserID(r.Context()),
		r.Header.Get("Idempotency-Key"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, CheckoutResponseDTO{
		CheckoutID:  result.Session.ID.String(),
		Status:      result.Session.Status.String(),
		RedirectURL: result.RedirectURL,
	})
}

// Success is where the processor redirects the shopper's browser. It only
// reports the session's current status; commit happens via the webhook.
func (h *CheckoutHandler) Success(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := h.checkoutID(w, r)
	if !ok {
		return
	}

	session, err := h.checkouts.GetSession(ctx, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CheckoutResponseDTO{
		CheckoutID: session.ID.String(),
		Status:     session.Status.String(),
	})
}

// Cancel is the processor's cancel-redirect target. It fails the session
// and leaves the cart intact for another attempt.
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := h.checkoutID(w, r)
	if !ok {
		return
	}

	if err := h.checkouts.Cancel(ctx, id); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CheckoutResponseDTO{
		CheckoutID: id.String(),
		Status:     "FAILED",
	})
}

// Webhook is the processor's server-to-server confirmation endpoint. The
// signature is verified over the raw body before anything is trusted.
func (h *CheckoutHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "unreadable body")
		return
	}

	event, err := payment.ParseWebhook(h.webhookSecret, body, r.Header.Get("X-Webhook-Signature"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.checkouts.HandleConfirmation(ctx, event); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *CheckoutHandler) checkoutID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.URL.Query().Get("checkout_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_checkout_id", "checkout_id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
