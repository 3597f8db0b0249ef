package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	apporder "github.com/Zhima-Mochi/minishop-coordinator/internal/application/order"

	goredis "github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

// IdempotencyStore shares idempotency claims between order service replicas.
type IdempotencyStore struct {
	client goredis.UniversalClient
	prefix string
}

var _ apporder.IdempotencyStore = (*IdempotencyStore)(nil)

func NewIdempotencyStore(client goredis.UniversalClient, prefix string) *IdempotencyStore {
	return &IdempotencyStore{client: client, prefix: prefix}
}

func (s *IdempotencyStore) Claim(ctx context.Context, k string, ttl time.Duration) (string, bool, error) {
	rk := key(s.prefix, "idempotency", k)
	ok, err := s.client.SetNX(ctx, rk, pendingMarker, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis: claim %q: %w", k, err)
	}
	if ok {
		return "", true, nil
	}

	val, err := s.client.Get(ctx, rk).Result()
	switch {
	case errors.Is(err, goredis.Nil):
		// expired between SETNX and GET; the caller may retry
		return "", false, apporder.ErrIdempotencyInFlight
	case err != nil:
		return "", false, fmt.Errorf("redis: read claim %q: %w", k, err)
	case val == pendingMarker:
		return "", false, apporder.ErrIdempotencyInFlight
	}
	return val, false, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, k, orderID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key(s.prefix, "idempotency", k), orderID, ttl).Err(); err != nil {
		return fmt.Errorf("redis: complete %q: %w", k, err)
	}
	return nil
}

func (s *IdempotencyStore) Abandon(ctx context.Context, k string) error {
	if err := s.client.Del(ctx, key(s.prefix, "idempotency", k)).Err(); err != nil {
		return fmt.Errorf("redis: abandon %q: %w", k, err)
	}
	return nil
}
