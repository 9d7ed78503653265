package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adiva-s/ResourceRite/internal/domain"
)

// maxUpdateRetries bounds the optimistic-locking loop in Update. A session
// sees contention only when the same browser fires overlapping requests
// (double-clicked buttons), so a handful of retries is plenty.
const maxUpdateRetries = 5

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*domain.Cart, error) {
	data, err := s.client.Get(ctx, cartKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewCart(sessionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return decodeCart(data, sessionID)
}

func (s *RedisStore) Replace(ctx context.Context, sessionID string, cart *domain.Cart) error {
	cart.UpdatedAt = time.Now()
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := s.client.Set(ctx, cartKey(sessionID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, sessionID string, mutate func(*domain.Cart) error) (*domain.Cart, error) {
	key := cartKey(sessionID)
	var updated *domain.Cart

	txn := func(tx *redis.Tx) error {
		var cart *domain.Cart
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			cart = domain.NewCart(sessionID)
		case err != nil:
			return fmt.Errorf("redis get failed: %w", err)
		default:
			if cart, err = decodeCart(data, sessionID); err != nil {
				return err
			}
		}

		if err := mutate(cart); err != nil {
			return err
		}
		cart.UpdatedAt = time.Now()

		payload, err := json.Marshal(cart)
		if err != nil {
			return fmt.Errorf("marshal cart failed: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		if err == nil {
			updated = cart
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // key changed under us, re-read and retry
		}
		return nil, err
	}
	return nil, ErrConcurrentUpdate
}

func decodeCart(data []byte, sessionID string) (*domain.Cart, error) {
	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	if cart.Items == nil {
		cart.Items = make(map[string]domain.LineItem)
	}
	cart.SessionID = sessionID
	return &cart, nil
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}
