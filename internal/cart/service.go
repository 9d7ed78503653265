// Package cart implements the cart mutation operations: add-or-increment,
// increase, decrease, remove and clear. Every mutation goes through the
// store's atomic update, and every result carries a breakdown computed from
// the state that was actually written, so callers never see a stale total.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/adiva-s/ResourceRite/internal/cartstore"
	"github.com/adiva-s/ResourceRite/internal/catalog"
	"github.com/adiva-s/ResourceRite/internal/domain"
	"github.com/adiva-s/ResourceRite/internal/pricing"
)

var (
	// ErrNotFound covers both a product missing from the catalog and a line
	// item missing from the cart.
	ErrNotFound = errors.New("product not found")

	// ErrStockExceeded means the requested quantity would pass the catalog's
	// stock bound. This is a hard bound, not a soft cap.
	ErrStockExceeded = errors.New("quantity exceeds available stock")
)

type Service struct {
	store   cartstore.Store
	catalog catalog.Catalog
	pricing *pricing.Engine
	logger  *zap.Logger
}

func NewService(store cartstore.Store, cat catalog.Catalog, eng *pricing.Engine, logger *zap.Logger) *Service {
	return &Service{store: store, catalog: cat, pricing: eng, logger: logger}
}

// MutationResult is what every mutating operation hands back to the HTTP
// boundary: the post-mutation cart, its fresh breakdown and the affected
// line's quantity (zero when the line was removed).
type MutationResult struct {
	Cart      *domain.Cart
	Breakdown domain.PricingBreakdown
	Quantity  int
}

func (s *Service) Get(ctx context.Context, sessionID string) (*domain.Cart, domain.PricingBreakdown, error) {
	cart, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, domain.PricingBreakdown{}, fmt.Errorf("get cart: %w", err)
	}
	return cart, s.pricing.Compute(cart), nil
}

// AddOrIncrement puts the product into the cart at quantity 1, snapshotting
// the catalog's current name and price, or bumps an existing line by one.
// An existing line already at the stock bound is left unchanged.
func (s *Service) AddOrIncrement(ctx context.Context, sessionID, productID string) (*MutationResult, error) {
	product, err := s.catalog.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}

	var quantity int
	updated, err := s.store.Update(ctx, sessionID, func(c *domain.Cart) error {
		item, ok := c.Items[productID]
		if !ok {
			item = domain.LineItem{
				ProductID: productID,
				Name:      product.Name,
				UnitPrice: product.Price,
				Quantity:  1,
				AddedAt:   time.Now(),
			}
		} else if item.Quantity < product.Stock {
			item.Quantity++
		}
		c.Items[productID] = item
		quantity = item.Quantity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.result(updated, quantity), nil
}

// Increase bumps an existing line by one. Fails with ErrStockExceeded when
// the line already sits at the catalog's stock bound, leaving the cart
// untouched.
func (s *Service) Increase(ctx context.Context, sessionID, productID string) (*MutationResult, error) {
	product, err := s.catalog.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}

	var quantity int
	updated, err := s.store.Update(ctx, sessionID, func(c *domain.Cart) error {
		item, ok := c.Items[productID]
		if !ok {
			return ErrNotFound
		}
		if item.Quantity >= product.Stock {
			return ErrStockExceeded
		}
		item.Quantity++
		c.Items[productID] = item
		quantity = item.Quantity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.result(updated, quantity), nil
}

// Decrease drops an existing line's quantity by one; at quantity 1 the line
// is removed entirely, never retained at zero. Absent lines are a no-op.
func (s *Service) Decrease(ctx context.Context, sessionID, productID string) (*MutationResult, error) {
	var quantity int
	updated, err := s.store.Update(ctx, sessionID, func(c *domain.Cart) error {
		item, ok := c.Items[productID]
		if !ok {
			quantity = 0
			return nil
		}
		if item.Quantity > 1 {
			item.Quantity--
			c.Items[productID] = item
			quantity = item.Quantity
			return nil
		}
		delete(c.Items, productID)
		quantity = 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.result(updated, quantity), nil
}

// Remove deletes the line unconditionally. Removing an absent line succeeds.
func (s *Service) Remove(ctx context.Context, sessionID, productID string) (*MutationResult, error) {
	updated, err := s.store.Update(ctx, sessionID, func(c *domain.Cart) error {
		delete(c.Items, productID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.result(updated, 0), nil
}

// Clear empties the cart. The session's cart entry is kept, just emptied.
func (s *Service) Clear(ctx context.Context, sessionID string) (*MutationResult, error) {
	updated, err := s.store.Update(ctx, sessionID, func(c *domain.Cart) error {
		c.Items = make(map[string]domain.LineItem)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.result(updated, 0), nil
}

func (s *Service) result(cart *domain.Cart, quantity int) *MutationResult {
	return &MutationResult{
		Cart:      cart,
		Breakdown: s.pricing.Compute(cart),
		Quantity:  quantity,
	}
}
