package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one product entry in a cart. Name and UnitPrice are snapshots
// captured when the item was first added; checkout re-reads the catalog
// before charging, so these are for display only.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	AddedAt   time.Time       `json:"added_at"`
}

// Countable reports whether the line item may be counted towards a total.
// Entries with a negative price or a non-positive quantity are skipped by
// the pricing engine instead of failing the whole cart.
func (li LineItem) Countable() bool {
	return li.Quantity >= 1 && !li.UnitPrice.IsNegative()
}

// Cart holds one session's line items keyed by product id. A line item is
// never kept at quantity zero; mutators remove it instead.
type Cart struct {
	SessionID string              `json:"session_id"`
	UserID    string              `json:"user_id,omitempty"`
	Items     map[string]LineItem `json:"items"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func NewCart(sessionID string) *Cart {
	now := time.Now()
	return &Cart{
		SessionID: sessionID,
		Items:     make(map[string]LineItem),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// PricingBreakdown is derived from a cart snapshot and never persisted;
// it is recomputed on every read.
type PricingBreakdown struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxAmount  decimal.Decimal `json:"tax"`
	GrandTotal decimal.Decimal `json:"total"`
}
