// Package cartstore persists per-session carts. Carts live for the session's
// TTL and are only reachable through their session id; there is no
// cross-session visibility.
package cartstore

import (
	"context"
	"errors"

	"github.com/adiva-s/ResourceRite/internal/domain"
)

// Store is the session-keyed cart persistence contract.
// Consumers define this interface, not the Redis implementation.
type Store interface {
	// Get returns the session's cart, or a fresh empty cart if none is stored.
	Get(ctx context.Context, sessionID string) (*domain.Cart, error)

	// Replace atomically overwrites the whole cart.
	Replace(ctx context.Context, sessionID string, cart *domain.Cart) error

	// Update applies mutate to the current cart under an atomic
	// read-modify-write, so concurrent requests for the same session cannot
	// lose updates. A mutate error aborts the update with no state change.
	Update(ctx context.Context, sessionID string, mutate func(*domain.Cart) error) (*domain.Cart, error)
}

var ErrConcurrentUpdate = errors.New("cart modified concurrently, retries exhausted")
