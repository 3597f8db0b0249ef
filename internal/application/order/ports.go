package order

import (
	"context"
	"errors"
	"time"
)

type IDGenerator interface {
	NewID() string
}

// ErrIdempotencyInFlight is returned while another request holds the same key.
var ErrIdempotencyInFlight = errors.New("order: request with this idempotency key is in flight")

// IdempotencyStore remembers which order a client-supplied key produced.
type IdempotencyStore interface {
	// Claim reserves key. When the key already maps to an order, claimed is false and
	// orderID is set. A key claimed but not completed yields ErrIdempotencyInFlight.
	Claim(ctx context.Context, key string, ttl time.Duration) (orderID string, claimed bool, err error)
	Complete(ctx context.Context, key, orderID string, ttl time.Duration) error
	Abandon(ctx context.Context, key string) error
}

// Locker grants short-lived exclusive leases across replicas.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error)
}
