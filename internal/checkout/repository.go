package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/adiva-s/ResourceRite/internal/domain"
)

var (
	ErrSessionNotFound        = errors.New("checkout session not found")
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OutboxEvent is a to-be-published row written in the same transaction as
// the commit it describes.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

// SessionRepository persists checkout attempts and their outbox events.
// Consumers define this interface, not the Postgres implementation.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *domain.CheckoutSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*domain.CheckoutSession, error)
	GetSessionByIdempotencyKey(ctx context.Context, key string) (*domain.CheckoutSession, error)
	UpdateSessionStatus(ctx context.Context, id uuid.UUID, status domain.CheckoutStatus) error
	// SetValidated stores the validation-time snapshot and moves the session
	// to VALIDATED.
	SetValidated(ctx context.Context, id uuid.UUID, snapshot *domain.CheckoutSnapshot) error
	SetIntent(ctx context.Context, id uuid.UUID, intentID, redirectURL string) error
	// CompleteSession marks the session committed and inserts the outbox
	// event in one transaction.
	CompleteSession(ctx context.Context, id uuid.UUID, eventPayload []byte) error
	FailSession(ctx context.Context, id uuid.UUID, reason string) error
	// ExpireStalePending fails every non-terminal session whose expiry has
	// passed and returns how many were failed.
	ExpireStalePending(ctx context.Context, now time.Time) (int64, error)

	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error

	RunMigrations(*Credentials) error
	Close() error
}
