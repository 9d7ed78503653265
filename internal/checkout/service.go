// Package checkout drives a checkout attempt through its lifecycle:
// Initiated -> Validated -> PaymentPending -> Committed, or Failed at any
// step. The cart is only cleared once the ledger holds the purchase records,
// and both steps are idempotent per checkout session, so a retried
// confirmation can never double-append or lose a paid-for purchase.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/adiva-s/ResourceRite/internal/cartstore"
	"github.com/adiva-s/ResourceRite/internal/catalog"
	"github.com/adiva-s/ResourceRite/internal/domain"
	"github.com/adiva-s/ResourceRite/internal/ledger"
	"github.com/adiva-s/ResourceRite/internal/payment"
	"github.com/adiva-s/ResourceRite/internal/pricing"
)

type Config struct {
	SuccessURL string
	CancelURL  string
	// PendingTTL bounds how long a session may sit un-confirmed before the
	// reaper fails it. Late confirmations for expired sessions are rejected.
	PendingTTL time.Duration
}

type Service struct {
	repo      SessionRepository
	carts     cartstore.Store
	catalog   catalog.Catalog
	ledger    ledger.Ledger
	processor payment.Processor
	pricing   *pricing.Engine
	cfg       Config
	logger    *zap.Logger
}

func NewService(
	repo SessionRepository,
	carts cartstore.Store,
	cat catalog.Catalog,
	led ledger.Ledger,
	processor payment.Processor,
	eng *pricing.Engine,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 30 * time.Minute
	}
	return &Service{
		repo:      repo,
		carts:     carts,
		catalog:   cat,
		ledger:    led,
		processor: processor,
		pricing:   eng,
		cfg:       cfg,
		logger:    logger,
	}
}

// BeginResult is handed back to the HTTP boundary: where to send the
// shopper, plus the session for status display.
type BeginResult struct {
	Session     *domain.CheckoutSession
	RedirectURL string
}

// Begin runs Initiated -> Validated -> PaymentPending. Prices are re-read
// from the live catalog; the cart only contributes product selection and
// quantities. The cart is left untouched so a failed attempt can be retried.
func (s *Service) Begin(ctx context.Context, cartSessionID, userID, idempotencyKey string) (*BeginResult, error) {
	if idempotencyKey != "" {
		existing, err := s.repo.GetSessionByIdempotencyKey(ctx, idempotencyKey)
		if err != nil && !errors.Is(err, ErrIdempotencyKeyNotFound) {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			s.logger.Info("duplicate checkout request",
				zap.String("idempotency_key", idempotencyKey),
				zap.Stringer("checkout_id", existing.ID),
				zap.Stringer("status", existing.Status))
			return &BeginResult{Session: existing, RedirectURL: existing.RedirectURL}, nil
		}
	}

	cart, err := s.carts.Get(ctx, cartSessionID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	now := time.Now()
	session := &domain.CheckoutSession{
		ID:             uuid.New(),
		CartSessionID:  cartSessionID,
		UserID:         userID,
		IdempotencyKey: idempotencyKey,
		Status:         domain.CheckoutStatusInitiated,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.cfg.PendingTTL),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	snapshot, err := s.validate(ctx, session, cart)
	if err != nil {
		return nil, err
	}
	session.Snapshot = snapshot
	session.Status = domain.CheckoutStatusValidated

	redirectURL, err := s.requestIntent(ctx, session, snapshot)
	if err != nil {
		return nil, err
	}
	session.Status = domain.CheckoutStatusPaymentPending
	session.RedirectURL = redirectURL

	return &BeginResult{Session: session, RedirectURL: redirectURL}, nil
}

// validate re-fetches every cart product from the live catalog and captures
// the snapshot that the charge will be based on.
func (s *Service) validate(ctx context.Context, session *domain.CheckoutSession, cart *domain.Cart) (*domain.CheckoutSnapshot, error) {
	ids := make([]string, 0, len(cart.Items))
	for id := range cart.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	products, err := s.catalog.FindMany(ctx, ids)
	if err != nil {
		s.fail(ctx, session.ID, "catalog lookup failed")
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}

	items := make([]domain.SnapshotItem, 0, len(ids))
	for _, id := range ids {
		product, ok := products[id]
		if !ok {
			s.fail(ctx, session.ID, fmt.Sprintf("product %s unavailable", id))
			return nil, ErrProductUnavailable
		}
		quantity := cart.Items[id].Quantity
		items = append(items, domain.SnapshotItem{
			ProductID: id,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  quantity,
			Subtotal:  product.Price.Mul(decimal.NewFromInt(int64(quantity))),
		})
	}

	snapshot := &domain.CheckoutSnapshot{
		Items:      items,
		Breakdown:  s.pricing.ComputeItems(items),
		Currency:   "USD",
		CapturedAt: time.Now(),
	}

	if !domain.CanTransitionTo(session.Status, domain.CheckoutStatusValidated) {
		return nil, ErrIllegalTransition
	}
	if err := s.repo.SetValidated(ctx, session.ID, snapshot); err != nil {
		return nil, fmt.Errorf("store validated snapshot: %w", err)
	}
	return snapshot, nil
}

func (s *Service) requestIntent(ctx context.Context, session *domain.CheckoutSession, snapshot *domain.CheckoutSnapshot) (string, error) {
	lines := make([]payment.IntentLine, 0, len(snapshot.Items)+1)
	for _, item := range snapshot.Items {
		lines = append(lines, payment.IntentLine{
			Name:            item.Name,
			UnitAmountMinor: minorUnits(item.UnitPrice),
			Quantity:        item.Quantity,
		})
	}
	if snapshot.Breakdown.TaxAmount.IsPositive() {
		lines = append(lines, payment.IntentLine{
			Name:            "Sales tax",
			UnitAmountMinor: minorUnits(snapshot.Breakdown.TaxAmount),
			Quantity:        1,
		})
	}

	intent, err := s.processor.CreateIntent(ctx, session.ID.String(), lines, s.cfg.SuccessURL, s.cfg.CancelURL)
	if err != nil {
		s.fail(ctx, session.ID, "payment intent creation failed")
		return "", err
	}

	if !domain.CanTransitionTo(session.Status, domain.CheckoutStatusPaymentPending) {
		return "", ErrIllegalTransition
	}
	if err := s.repo.SetIntent(ctx, session.ID, intent.ID, intent.RedirectURL); err != nil {
		return "", fmt.Errorf("store payment intent: %w", err)
	}
	return intent.RedirectURL, nil
}

// HandleConfirmation processes a signature-verified processor event. Only
// this path may move a session to Committed; the browser's visit to the
// success URL proves nothing.
func (s *Service) HandleConfirmation(ctx context.Context, event *payment.WebhookEvent) error {
	id, err := uuid.Parse(event.Reference)
	if err != nil {
		return fmt.Errorf("invalid checkout reference %q: %w", event.Reference, err)
	}

	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return err
	}

	switch event.Type {
	case payment.EventPaymentFailed:
		if session.Status.IsTerminal() {
			return nil
		}
		return s.repo.FailSession(ctx, session.ID, "processor reported failure")

	case payment.EventPaymentSucceeded:
		if session.Status == domain.CheckoutStatusCommitted {
			// redelivered confirmation; make sure the cart got cleared
			s.clearCart(ctx, session)
			return nil
		}
		if session.Status == domain.CheckoutStatusFailed {
			return ErrIllegalTransition
		}
		if session.Expired(time.Now()) {
			s.fail(ctx, session.ID, "expired before confirmation")
			return ErrSessionExpired
		}
		if !domain.CanTransitionTo(session.Status, domain.CheckoutStatusCommitted) {
			return ErrIllegalTransition
		}
		return s.commit(ctx, session)

	default:
		s.logger.Debug("ignoring webhook event", zap.String("type", event.Type))
		return nil
	}
}

// commit appends the purchase records, marks the session committed together
// with its outbox event, then clears the cart — in that order. The ledger
// append is deduplicated per checkout id, so a retry after a partial
// failure picks up where it left off instead of double-appending.
func (s *Service) commit(ctx context.Context, session *domain.CheckoutSession) error {
	if session.Snapshot == nil {
		return fmt.Errorf("checkout %s has no validated snapshot", session.ID)
	}

	now := time.Now()
	records := make([]domain.PurchaseRecord, 0, len(session.Snapshot.Items))
	for _, item := range session.Snapshot.Items {
		records = append(records, domain.PurchaseRecord{
			ID:             uuid.New(),
			UserID:         session.UserID,
			CheckoutID:     session.ID,
			ProductID:      item.ProductID,
			ProductName:    item.Name,
			UnitPrice:      item.UnitPrice,
			Quantity:       item.Quantity,
			PurchasedAt:    now,
			DeliveryStatus: domain.DeliveryStatusPending,
		})
	}

	err := s.ledger.AppendPurchases(ctx, session.UserID, session.ID, records)
	if err != nil && !errors.Is(err, ledger.ErrDuplicateCommit) {
		// session stays PaymentPending; the processor will redeliver
		return fmt.Errorf("append purchases: %w", err)
	}

	payload, err := json.Marshal(committedEvent{
		CheckoutID:  session.ID.String(),
		UserID:      session.UserID,
		Items:       session.Snapshot.Items,
		TotalAmount: session.Snapshot.Breakdown.GrandTotal,
		Currency:    session.Snapshot.Currency,
		CommittedAt: now,
	})
	if err != nil {
		return fmt.Errorf("marshal committed event: %w", err)
	}
	if err := s.repo.CompleteSession(ctx, session.ID, payload); err != nil {
		return fmt.Errorf("complete session: %w", err)
	}

	s.clearCart(ctx, session)

	s.logger.Info("checkout committed",
		zap.Stringer("checkout_id", session.ID),
		zap.String("user_id", session.UserID),
		zap.Int("line_items", len(records)))
	return nil
}

// Cancel fails a non-terminal session. The cart is left untouched so the
// shopper can retry.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if session.Status == domain.CheckoutStatusCommitted {
		return ErrIllegalTransition
	}
	if session.Status == domain.CheckoutStatusFailed {
		return nil
	}
	return s.repo.FailSession(ctx, id, "cancelled")
}

func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*domain.CheckoutSession, error) {
	return s.repo.GetSession(ctx, id)
}

func (s *Service) fail(ctx context.Context, id uuid.UUID, reason string) {
	if err := s.repo.FailSession(ctx, id, reason); err != nil {
		s.logger.Error("failed to mark session failed", zap.Stringer("checkout_id", id), zap.Error(err))
	}
}

func (s *Service) clearCart(ctx context.Context, session *domain.CheckoutSession) {
	err := s.carts.Replace(ctx, session.CartSessionID, domain.NewCart(session.CartSessionID))
	if err != nil {
		// the ledger already holds the records; a redelivered confirmation
		// retries this clear
		s.logger.Error("failed to clear cart after commit",
			zap.Stringer("checkout_id", session.ID), zap.Error(err))
	}
}

// committedEvent is the outbox payload consumed by fulfillment.
type committedEvent struct {
	CheckoutID  string                `json:"checkout_id"`
	UserID      string                `json:"user_id"`
	Items       []domain.SnapshotItem `json:"items"`
	TotalAmount decimal.Decimal       `json:"total_amount"`
	Currency    string                `json:"currency"`
	CommittedAt time.Time             `json:"committed_at"`
}

func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
