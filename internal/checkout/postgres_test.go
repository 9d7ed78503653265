package checkout

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/adiva-s/ResourceRite/internal/domain"
)

func setupTestDB(t *testing.T) *Repository {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "../../migrations/checkout",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(creds))

	t.Cleanup(func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return repo
}

func sampleSession(idempotencyKey string) *domain.CheckoutSession {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.CheckoutSession{
		ID:             uuid.New(),
		CartSessionID:  "sess-" + uuid.NewString()[:8],
		UserID:         "user-1",
		IdempotencyKey: idempotencyKey,
		Status:         domain.CheckoutStatusInitiated,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(30 * time.Minute),
	}
}

func sampleSnapshot() *domain.CheckoutSnapshot {
	return &domain.CheckoutSnapshot{
		Items: []domain.SnapshotItem{
			{
				ProductID: "prod-x",
				Name:      "Linear Algebra 5th ed",
				UnitPrice: decimal.RequireFromString("30.00"),
				Quantity:  2,
				Subtotal:  decimal.RequireFromString("60.00"),
			},
		},
		Breakdown: domain.PricingBreakdown{
			Subtotal:   decimal.RequireFromString("60.00"),
			TaxAmount:  decimal.RequireFromString("4.20"),
			GrandTotal: decimal.RequireFromString("64.20"),
		},
		Currency:   "USD",
		CapturedAt: time.Now().UTC(),
	}
}

func TestSessionLifecycle(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	session := sampleSession("idem-1")
	require.NoError(t, repo.CreateSession(ctx, session))

	loaded, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusInitiated, loaded.Status)
	assert.Equal(t, "idem-1", loaded.IdempotencyKey)
	assert.Nil(t, loaded.Snapshot)

	require.NoError(t, repo.SetValidated(ctx, session.ID, sampleSnapshot()))
	loaded, err = repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusValidated, loaded.Status)
	require.NotNil(t, loaded.Snapshot)
	require.Len(t, loaded.Snapshot.Items, 1)
	assert.True(t, loaded.Snapshot.Breakdown.GrandTotal.Equal(decimal.RequireFromString("64.20")))

	require.NoError(t, repo.SetIntent(ctx, session.ID, "pi_123", "https://pay.example.com/pi_123"))
	loaded, err = repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusPaymentPending, loaded.Status)
	assert.Equal(t, "pi_123", loaded.IntentID)
	assert.Equal(t, "https://pay.example.com/pi_123", loaded.RedirectURL)
}

func TestGetSessionByIdempotencyKey(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	session := sampleSession("idem-dup")
	require.NoError(t, repo.CreateSession(ctx, session))

	loaded, err := repo.GetSessionByIdempotencyKey(ctx, "idem-dup")
	require.NoError(t, err)
	assert.Equal(t, session.ID, loaded.ID)

	_, err = repo.GetSessionByIdempotencyKey(ctx, "never-used")
	assert.ErrorIs(t, err, ErrIdempotencyKeyNotFound)
}

func TestCompleteSessionWritesOutboxAtomically(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	session := sampleSession("")
	require.NoError(t, repo.CreateSession(ctx, session))
	require.NoError(t, repo.SetValidated(ctx, session.ID, sampleSnapshot()))

	payload, err := json.Marshal(map[string]string{"checkout_id": session.ID.String()})
	require.NoError(t, err)
	require.NoError(t, repo.CompleteSession(ctx, session.ID, payload))

	loaded, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusCommitted, loaded.Status)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, session.ID.String(), events[0].AggregateID)
	assert.Equal(t, "purchase.committed", events[0].EventType)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))
	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFailSession(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	session := sampleSession("")
	require.NoError(t, repo.CreateSession(ctx, session))
	require.NoError(t, repo.FailSession(ctx, session.ID, "processor reported failure"))

	loaded, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusFailed, loaded.Status)

	err = repo.FailSession(ctx, uuid.New(), "whatever")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestExpireStalePending(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	stale := sampleSession("")
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.CreateSession(ctx, stale))

	fresh := sampleSession("")
	require.NoError(t, repo.CreateSession(ctx, fresh))

	committed := sampleSession("")
	committed.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.CreateSession(ctx, committed))
	require.NoError(t, repo.CompleteSession(ctx, committed.ID, []byte(`{}`)))

	expired, err := repo.ExpireStalePending(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	loaded, err := repo.GetSession(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusFailed, loaded.Status)

	loaded, err = repo.GetSession(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusInitiated, loaded.Status)

	loaded, err = repo.GetSession(ctx, committed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusCommitted, loaded.Status, "terminal sessions are never expired")
}
