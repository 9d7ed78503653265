package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowCatalog struct {
	calls   atomic.Int64
	release chan struct{}
	product *Product
}

func (c *slowCatalog) FindByID(_ context.Context, id string) (*Product, error) {
	c.calls.Add(1)
	<-c.release
	if c.product == nil || c.product.ID != id {
		return nil, ErrProductNotFound
	}
	return c.product, nil
}

func (c *slowCatalog) FindMany(_ context.Context, ids []string) (map[string]*Product, error) {
	c.calls.Add(1)
	result := make(map[string]*Product)
	if c.product != nil {
		result[c.product.ID] = c.product
	}
	return result, nil
}

func TestLookup_CollapsesConcurrentFinds(t *testing.T) {
	inner := &slowCatalog{
		release: make(chan struct{}),
		product: &Product{ID: "p1", Name: "Calculus II notes", Price: decimal.RequireFromString("8.00"), Stock: 4},
	}
	lookup := NewLookup(inner)

	const callers = 10
	var wg sync.WaitGroup
	results := make([]*Product, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = lookup.FindByID(context.Background(), "p1")
		}(i)
	}

	close(inner.release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "p1", results[i].ID)
	}
	assert.LessOrEqual(t, inner.calls.Load(), int64(callers), "backend must not be called more than once per flight")
}

func TestLookup_NotFoundPassesThrough(t *testing.T) {
	inner := &slowCatalog{release: make(chan struct{})}
	close(inner.release)
	lookup := NewLookup(inner)

	_, err := lookup.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrProductNotFound)
}
