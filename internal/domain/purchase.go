package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeliveryStatus is the fulfillment lifecycle of a purchase. It starts at
// Pending and is advanced only by the external fulfillment process.
type DeliveryStatus string

const (
	DeliveryStatusPending    DeliveryStatus = "Pending"
	DeliveryStatusProcessing DeliveryStatus = "Processing"
	DeliveryStatusShipped    DeliveryStatus = "Shipped"
	DeliveryStatusDelivered  DeliveryStatus = "Delivered"
)

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusProcessing, DeliveryStatusShipped, DeliveryStatusDelivered:
		return true
	}
	return false
}

// PurchaseRecord is one committed line item in a user's purchase history.
// Immutable once written, except for DeliveryStatus.
type PurchaseRecord struct {
	ID             uuid.UUID       `json:"id"`
	UserID         string          `json:"user_id"`
	CheckoutID     uuid.UUID       `json:"checkout_id"`
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	PurchasedAt    time.Time       `json:"purchased_at"`
	DeliveryStatus DeliveryStatus  `json:"delivery_status"`
}
