package inventory

import (
	"context"
)

// Repository stores products. Reserve and Release must be atomic per product.
type Repository interface {
	Create(ctx context.Context, p *Product) (*Product, error)
	Get(ctx context.Context, id int64) (*Product, error)
	List(ctx context.Context) ([]*Product, error)
	Reserve(ctx context.Context, id int64, units int) (int, error)
	Release(ctx context.Context, id int64, units int) (int, error)
}

// Service is the remote inventory contract consumed by order placement.
// GetProduct returns ErrNotFound for unknown ids; transport failures wrap ErrUnavailable.
type Service interface {
	GetProduct(ctx context.Context, id int64) (*Product, error)
	Reserve(ctx context.Context, id int64, units int) (int, error)
	Release(ctx context.Context, id int64, units int) (int, error)
}
