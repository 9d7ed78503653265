package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

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

// NewRepositoryWithDB wraps an already-open connection (shared with the
// checkout session repository in the same database).
func NewRepositoryWithDB(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "ledger_schema_migrations",
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

func (r *Repository) AppendPurchases(ctx context.Context, userID string, checkoutID uuid.UUID, records []domain.PurchaseRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO purchases
	          (id, user_id, checkout_id, product_id, product_name, unit_price, quantity, purchased_at, delivery_status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, rec := range records {
		id := rec.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		_, insertErr := tx.ExecContext(ctx, query,
			id,
			userID,
			checkoutID,
			rec.ProductID,
			rec.ProductName,
			rec.UnitPrice.StringFixed(2),
			rec.Quantity,
			rec.PurchasedAt,
			rec.DeliveryStatus,
		)
		if insertErr != nil {
			var pqErr *pq.Error
			if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
				return ErrDuplicateCommit
			}
			return fmt.Errorf("insert purchase: %w", insertErr)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.PurchaseRecord, error) {
	query := `SELECT id, user_id, checkout_id, product_id, product_name, unit_price, quantity, purchased_at, delivery_status
	          FROM purchases WHERE user_id = $1 ORDER BY purchased_at DESC, product_id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query purchases by user id: %w", err)
	}
	defer rows.Close()

	var records []domain.PurchaseRecord
	for rows.Next() {
		var rec domain.PurchaseRecord
		var price string
		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.CheckoutID,
			&rec.ProductID,
			&rec.ProductName,
			&price,
			&rec.Quantity,
			&rec.PurchasedAt,
			&rec.DeliveryStatus,
		); err != nil {
			return nil, fmt.Errorf("scan purchase row: %w", err)
		}
		if rec.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse unit price: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

func (r *Repository) UpdateDeliveryStatus(ctx context.Context, purchaseID uuid.UUID, status domain.DeliveryStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid delivery status %q", status)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE purchases SET delivery_status = $1 WHERE id = $2`,
		status, purchaseID)
	if err != nil {
		return fmt.Errorf("update delivery status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrPurchaseNotFound
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
