package checkout

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/adiva-s/ResourceRite/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

// DB exposes the underlying handle so the ledger repository can share it.
func (r *Repository) DB() *sql.DB {
	return r.db
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "checkout_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) CreateSession(ctx context.Context, session *domain.CheckoutSession) error {
	snapshotJSON, err := marshalSnapshot(session.Snapshot)
	if err != nil {
		return err
	}

	var idemKey sql.NullString
	if session.IdempotencyKey != "" {
		idemKey = sql.NullString{String: session.IdempotencyKey, Valid: true}
	}

	query := `INSERT INTO checkout_sessions
	          (id, cart_session_id, user_id, idempotency_key, status, cart_snapshot, created_at, updated_at, expires_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW(), $7)`

	_, err = r.db.ExecContext(ctx, query,
		session.ID,
		session.CartSessionID,
		session.UserID,
		idemKey,
		session.Status,
		snapshotJSON,
		session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert checkout session: %w", err)
	}
	return nil
}

const sessionColumns = `id, cart_session_id, user_id, COALESCE(idempotency_key, ''), status,
	cart_snapshot, COALESCE(intent_id, ''), COALESCE(redirect_url, ''), created_at, updated_at, expires_at`

func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*domain.CheckoutSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM checkout_sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (r *Repository) GetSessionByIdempotencyKey(ctx context.Context, key string) (*domain.CheckoutSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM checkout_sessions WHERE idempotency_key = $1`, key)
	session, err := scanSession(row)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrIdempotencyKeyNotFound
	}
	return session, err
}

func (r *Repository) UpdateSessionStatus(ctx context.Context, id uuid.UUID, status domain.CheckoutStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE checkout_sessions SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return requireMatch(result)
}

func (r *Repository) SetValidated(ctx context.Context, id uuid.UUID, snapshot *domain.CheckoutSnapshot) error {
	snapshotJSON, err := marshalSnapshot(snapshot)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE checkout_sessions
		 SET status = $1, cart_snapshot = $2, updated_at = NOW()
		 WHERE id = $3`,
		domain.CheckoutStatusValidated, snapshotJSON, id)
	if err != nil {
		return fmt.Errorf("set validated snapshot: %w", err)
	}
	return requireMatch(result)
}

func (r *Repository) SetIntent(ctx context.Context, id uuid.UUID, intentID, redirectURL string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE checkout_sessions
		 SET status = $1, intent_id = $2, redirect_url = $3, updated_at = NOW()
		 WHERE id = $4`,
		domain.CheckoutStatusPaymentPending, intentID, redirectURL, id)
	if err != nil {
		return fmt.Errorf("set intent: %w", err)
	}
	return requireMatch(result)
}

func (r *Repository) CompleteSession(ctx context.Context, id uuid.UUID, eventPayload []byte) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE checkout_sessions SET status = $1, updated_at = NOW() WHERE id = $2`,
		domain.CheckoutStatusCommitted, id)
	if err != nil {
		return fmt.Errorf("mark session committed: %w", err)
	}
	if err := requireMatch(result); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO checkout_outbox (aggregate_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		id.String(), "purchase.committed", eventPayload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit complete tx: %w", err)
	}
	return nil
}

func (r *Repository) FailSession(ctx context.Context, id uuid.UUID, reason string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE checkout_sessions
		 SET status = $1, failure_reason = $2, updated_at = NOW()
		 WHERE id = $3`,
		domain.CheckoutStatusFailed, reason, id)
	if err != nil {
		return fmt.Errorf("fail session: %w", err)
	}
	return requireMatch(result)
}

func (r *Repository) ExpireStalePending(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE checkout_sessions
		 SET status = $1, failure_reason = 'expired', updated_at = NOW()
		 WHERE status NOT IN ($2, $3) AND expires_at < $4`,
		domain.CheckoutStatusFailed,
		domain.CheckoutStatusCommitted,
		domain.CheckoutStatusFailed,
		now)
	if err != nil {
		return 0, fmt.Errorf("expire stale sessions: %w", err)
	}
	return result.RowsAffected()
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, aggregate_id, event_type, payload, created_at
		 FROM checkout_outbox
		 WHERE processed_at IS NULL
		 ORDER BY id
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var event OutboxEvent
		if err := rows.Scan(&event.ID, &event.AggregateID, &event.EventType, &event.Payload, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE checkout_outbox SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return requireMatch(result)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.CheckoutSession, error) {
	var session domain.CheckoutSession
	var snapshotJSON []byte

	err := row.Scan(
		&session.ID,
		&session.CartSessionID,
		&session.UserID,
		&session.IdempotencyKey,
		&session.Status,
		&snapshotJSON,
		&session.IntentID,
		&session.RedirectURL,
		&session.CreatedAt,
		&session.UpdatedAt,
		&session.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan checkout session: %w", err)
	}

	if len(snapshotJSON) > 0 {
		var snapshot domain.CheckoutSnapshot
		if err := json.Unmarshal(snapshotJSON, &snapshot); err != nil {
			return nil, fmt.Errorf("unmarshal cart snapshot: %w", err)
		}
		session.Snapshot = &snapshot
	}
	return &session, nil
}

func marshalSnapshot(snapshot *domain.CheckoutSnapshot) ([]byte, error) {
	if snapshot == nil {
		return nil, nil
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal cart snapshot: %w", err)
	}
	return data, nil
}

func requireMatch(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}
