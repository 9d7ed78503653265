// Package catalog resolves product ids to name/price/stock snapshots.
// The catalog is read-only from the cart and checkout's point of view:
// listing CRUD belongs to the seller-facing side of the marketplace.
package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Product is a point-in-time catalog snapshot. Stock is the hard upper
// bound on purchasable quantity for the product.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Category string          `json:"category,omitempty"`
	SellerID string          `json:"seller_id,omitempty"`
}

// Catalog defines the lookup interface for product data operations.
// Consumers define this interface, not the MongoDB implementation.
type Catalog interface {
	FindByID(ctx context.Context, productID string) (*Product, error)
	// FindMany returns the found products keyed by id; missing ids are
	// simply absent from the map, not an error.
	FindMany(ctx context.Context, productIDs []string) (map[string]*Product, error)
}

var ErrProductNotFound = errors.New("product not found")
