// Package payment is the boundary to the external hosted-payment processor.
// The orchestrator never touches card data; it creates an intent describing
// amounts in minor currency units and sends the shopper to the processor's
// redirect URL. Confirmation comes back as a signed webhook.
package payment

import (
	"context"
	"errors"
)

// IntentLine is one charge line of a payment intent. Amounts are minor
// currency units (cents); the processor requires integers there.
type IntentLine struct {
	Name            string `json:"name"`
	UnitAmountMinor int64  `json:"unit_amount"`
	Quantity        int    `json:"quantity"`
}

// Intent is the processor's handle for a created payment: its id plus the
// hosted page the shopper is redirected to.
type Intent struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
}

// Processor creates payment intents with the external processor.
// reference is our checkout session id, echoed back on the webhook.
type Processor interface {
	CreateIntent(ctx context.Context, reference string, lines []IntentLine, successURL, cancelURL string) (*Intent, error)
}

var ErrProcessorFailed = errors.New("payment processor call failed")
