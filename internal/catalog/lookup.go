package catalog

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Lookup wraps a Catalog and collapses concurrent lookups for the same
// product into a single backend query.
type Lookup struct {
	inner Catalog
	sfg   singleflight.Group
}

func NewLookup(inner Catalog) *Lookup {
	return &Lookup{inner: inner}
}

func (l *Lookup) FindByID(ctx context.Context, productID string) (*Product, error) {
	v, err, _ := l.sfg.Do(productID, func() (interface{}, error) {
		return l.inner.FindByID(ctx, productID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Product), nil
}

func (l *Lookup) FindMany(ctx context.Context, productIDs []string) (map[string]*Product, error) {
	return l.inner.FindMany(ctx, productIDs)
}
