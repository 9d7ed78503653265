package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adiva-s/ResourceRite/internal/domain"
)

// setupTestRedis creates a miniredis server and returns a RedisStore instance
func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, time.Hour), mr
}

func TestGet_AbsentReturnsEmptyCart(t *testing.T) {
	store, _ := setupTestRedis(t)

	cart, err := store.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", cart.SessionID)
	assert.True(t, cart.IsEmpty())
	assert.NotNil(t, cart.Items)
}

func TestReplace_RoundTrip(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	cart := domain.NewCart("sess-1")
	cart.Items["p1"] = domain.LineItem{
		ProductID: "p1",
		Name:      "Organic Chemistry 4th ed",
		UnitPrice: decimal.RequireFromString("45.50"),
		Quantity:  2,
		AddedAt:   time.Now(),
	}

	require.NoError(t, store.Replace(ctx, "sess-1", cart))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items["p1"].Quantity)
	assert.True(t, got.Items["p1"].UnitPrice.Equal(decimal.RequireFromString("45.50")))

	// session-scoped keys carry a TTL
	assert.Greater(t, mr.TTL("cart:sess-1"), time.Duration(0))
}

func TestReplace_EmptyCartKeepsSession(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	cart := domain.NewCart("sess-1")
	cart.Items["p1"] = domain.LineItem{ProductID: "p1", UnitPrice: decimal.RequireFromString("5.00"), Quantity: 1}
	require.NoError(t, store.Replace(ctx, "sess-1", cart))

	require.NoError(t, store.Replace(ctx, "sess-1", domain.NewCart("sess-1")))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestUpdate_MutatesStoredCart(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	updated, err := store.Update(ctx, "sess-1", func(c *domain.Cart) error {
		c.Items["p1"] = domain.LineItem{ProductID: "p1", UnitPrice: decimal.RequireFromString("12.00"), Quantity: 1}
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, updated.Items, 1)

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Items["p1"].Quantity)
}

func TestUpdate_MutateErrorLeavesStateUntouched(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	cart := domain.NewCart("sess-1")
	cart.Items["p1"] = domain.LineItem{ProductID: "p1", UnitPrice: decimal.RequireFromString("12.00"), Quantity: 3}
	require.NoError(t, store.Replace(ctx, "sess-1", cart))

	boom := errors.New("stock exceeded")
	_, err := store.Update(ctx, "sess-1", func(c *domain.Cart) error {
		item := c.Items["p1"]
		item.Quantity++
		c.Items["p1"] = item
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Items["p1"].Quantity, "failed update must not write")
}

func TestUpdate_SequentialUpdatesAccumulate(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	increment := func(c *domain.Cart) error {
		item, ok := c.Items["p1"]
		if !ok {
			item = domain.LineItem{ProductID: "p1", UnitPrice: decimal.RequireFromString("9.99")}
		}
		item.Quantity++
		c.Items["p1"] = item
		return nil
	}

	for i := 0; i < 5; i++ {
		_, err := store.Update(ctx, "sess-1", increment)
		require.NoError(t, err)
	}

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Items["p1"].Quantity)
}

func TestGet_CorruptPayload(t *testing.T) {
	store, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("cart:sess-1", "not-json"))

	_, err := store.Get(context.Background(), "sess-1")
	require.Error(t, err)

	var c domain.Cart
	assert.Error(t, json.Unmarshal([]byte("not-json"), &c))
}
