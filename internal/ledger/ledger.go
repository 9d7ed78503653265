// Package ledger is the append-only per-user purchase history. Records are
// written only by checkout commit, all-or-nothing per commit, and are
// immutable afterwards except for the delivery status, which the external
// fulfillment process advances.
package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/adiva-s/ResourceRite/internal/domain"
)

var (
	ErrPurchaseNotFound = errors.New("purchase not found")

	// ErrDuplicateCommit means this checkout's records were already appended.
	// Commit retries treat it as success.
	ErrDuplicateCommit = errors.New("purchases for this checkout already recorded")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type Ledger interface {
	// AppendPurchases writes every record or none. A repeat append for the
	// same checkout id fails with ErrDuplicateCommit without partial writes.
	AppendPurchases(ctx context.Context, userID string, checkoutID uuid.UUID, records []domain.PurchaseRecord) error

	// ListByUser returns the user's history, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.PurchaseRecord, error)

	// UpdateDeliveryStatus is driven by external fulfillment events only.
	UpdateDeliveryStatus(ctx context.Context, purchaseID uuid.UUID, status domain.DeliveryStatus) error

	RunMigrations(*Credentials) error
	Close() error
}
