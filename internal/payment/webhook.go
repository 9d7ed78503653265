package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// Webhook event types delivered by the processor.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
)

// WebhookEvent is the processor's server-to-server confirmation. Browser
// navigation to the success URL proves nothing; only a signed event does.
type WebhookEvent struct {
	Type      string `json:"type"`
	IntentID  string `json:"intent_id"`
	Reference string `json:"reference"`
}

var ErrBadSignature = errors.New("webhook signature mismatch")

// ParseWebhook verifies the HMAC-SHA256 signature over the raw body and
// decodes the event. The signature is the hex digest keyed with the shared
// webhook secret.
func ParseWebhook(secret, body []byte, signature string) (*WebhookEvent, error) {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return nil, ErrBadSignature
	}
	want, _ := hex.DecodeString(expected)
	if !hmac.Equal(provided, want) {
		return nil, ErrBadSignature
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	if event.Reference == "" {
		return nil, fmt.Errorf("webhook event missing reference")
	}
	return &event, nil
}

// Sign produces the signature a processor (or a test) would attach.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
