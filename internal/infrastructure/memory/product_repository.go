package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/inventory"
	"github.com/google/uuid"
)

// ProductRepository keeps products in memory. Reserve and Release hold the write
// lock across check and update, so concurrent reservations on one product serialize.
type ProductRepository struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]*domain.Product
}

var _ domain.Repository = (*ProductRepository)(nil)

func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		items: make(map[int64]*domain.Product),
	}
}

// Create stores p. A zero ID is assigned the next free sequence value; an ID already
// in use yields ErrConflict.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	_ = ctx
	if err := p.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cloneProduct(p)
	switch {
	case stored.ID < 0:
		return nil, fmt.Errorf("%w: id must not be negative", domain.ErrInvalidProduct)
	case stored.ID == 0:
		for {
			r.nextID++
			if _, taken := r.items[r.nextID]; !taken {
				break
			}
		}
		stored.ID = r.nextID
	default:
		if _, taken := r.items[stored.ID]; taken {
			return nil, fmt.Errorf("%w: %d", domain.ErrConflict, stored.ID)
		}
		if stored.ID > r.nextID {
			r.nextID = stored.ID
		}
	}
	if stored.Code == "" {
		stored.Code = uuid.NewString()
	}
	r.items[stored.ID] = stored
	return cloneProduct(stored), nil
}

func (r *ProductRepository) Get(ctx context.Context, id int64) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, domain.NotFoundError(id)
	}
	return cloneProduct(item), nil
}

func (r *ProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Product, 0, len(r.items))
	for _, p := range r.items {
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ProductRepository) Reserve(ctx context.Context, id int64, units int) (int, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return 0, domain.NotFoundError(id)
	}
	return item.Reserve(units)
}

func (r *ProductRepository) Release(ctx context.Context, id int64, units int) (int, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return 0, domain.NotFoundError(id)
	}
	return item.Release(units)
}

func cloneProduct(p *domain.Product) *domain.Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
