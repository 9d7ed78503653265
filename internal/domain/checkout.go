package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CheckoutStatus string

const (
	CheckoutStatusInitiated      CheckoutStatus = "INITIATED"
	CheckoutStatusValidated      CheckoutStatus = "VALIDATED"
	CheckoutStatusPaymentPending CheckoutStatus = "PAYMENT_PENDING"
	CheckoutStatusCommitted      CheckoutStatus = "COMMITTED"
	CheckoutStatusFailed         CheckoutStatus = "FAILED"
)

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusCommitted || s == CheckoutStatusFailed
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}

var allowedTransitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusInitiated:      {CheckoutStatusValidated, CheckoutStatusFailed},
	CheckoutStatusValidated:      {CheckoutStatusPaymentPending, CheckoutStatusFailed},
	CheckoutStatusPaymentPending: {CheckoutStatusCommitted, CheckoutStatusFailed},
}

// CanTransitionTo reports whether a checkout may move from one status to
// another. Terminal statuses have no outgoing transitions.
func CanTransitionTo(from, to CheckoutStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SnapshotItem carries the validation-time price for one cart line. The
// charge amount comes from here, not from the cart's add-time snapshot.
type SnapshotItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CheckoutSnapshot is the full cart state captured at validation time.
type CheckoutSnapshot struct {
	Items      []SnapshotItem   `json:"items"`
	Breakdown  PricingBreakdown `json:"breakdown"`
	Currency   string           `json:"currency"`
	CapturedAt time.Time        `json:"captured_at"`
}

// CheckoutSession is one checkout attempt. It survives the request that
// created it: the processor's confirmation webhook arrives later and must
// find the snapshot to commit.
type CheckoutSession struct {
	ID             uuid.UUID
	CartSessionID  string
	UserID         string
	IdempotencyKey string
	Status         CheckoutStatus
	Snapshot       *CheckoutSnapshot
	IntentID       string
	RedirectURL    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ExpiresAt      time.Time
}

func (s *CheckoutSession) Expired(now time.Time) bool {
	return !s.Status.IsTerminal() && now.After(s.ExpiresAt)
}
