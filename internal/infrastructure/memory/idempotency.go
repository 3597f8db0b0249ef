package memory

import (
	"context"
	"sync"
	"time"

	apporder "github.com/Zhima-Mochi/minishop-coordinator/internal/application/order"
)

type idempotencyRecord struct {
	orderID   string
	expiresAt time.Time
}

// IdempotencyStore is a process-local IdempotencyStore.
type IdempotencyStore struct {
	mu   sync.Mutex
	now  func() time.Time
	keys map[string]idempotencyRecord
}

var _ apporder.IdempotencyStore = (*IdempotencyStore)(nil)

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{now: time.Now, keys: make(map[string]idempotencyRecord)}
}

func (s *IdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if rec, ok := s.keys[key]; ok && now.Before(rec.expiresAt) {
		if rec.orderID == "" {
			return "", false, apporder.ErrIdempotencyInFlight
		}
		return rec.orderID, false, nil
	}
	s.keys[key] = idempotencyRecord{expiresAt: now.Add(ttl)}
	return "", true, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, key, orderID string, ttl time.Duration) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = idempotencyRecord{orderID: orderID, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *IdempotencyStore) Abandon(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}
