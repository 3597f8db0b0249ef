package order

import "context"

// Repository is the durable order store. Get and Delete return ErrNotFound for
// unknown ids; Insert returns ErrConflict for a duplicate id or idempotency key.
type Repository interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, order *Order) error
	Delete(ctx context.Context, id string) error
	ListByCustomer(ctx context.Context, email string) ([]*Order, error)
}
