package mysql

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/order"

	"gorm.io/gorm"
)

// OrderRepository is the GORM implementation of order.Repository.
type OrderRepository struct {
	db *gorm.DB
}

var _ domain.Repository = (*OrderRepository)(nil)

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Insert writes the order and all of its lines in one transaction.
func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	m := fromDomainOrder(o)
	err := r.db.WithContext(ctx).Create(m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("mysql: insert order %q: %w", o.ID, err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	var m OrderModel
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_index") }).
		Where("id = ?", id).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: get order %q: %w", id, err)
	}
	return toDomainOrder(&m), nil
}

// Update replaces the order's lines. Header fields are immutable after insert.
func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&OrderModel{}).Where("id = ?", o.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("mysql: update order %q: %w", o.ID, err)
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		if err := tx.Where("order_id = ?", o.ID).Delete(&OrderLineModel{}).Error; err != nil {
			return fmt.Errorf("mysql: update order %q: delete lines: %w", o.ID, err)
		}
		lines := fromDomainLines(o.ID, o.Lines)
		if len(lines) == 0 {
			return nil
		}
		if err := tx.Create(&lines).Error; err != nil {
			return fmt.Errorf("mysql: update order %q: insert lines: %w", o.ID, err)
		}
		return nil
	})
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&OrderLineModel{}).Error; err != nil {
			return fmt.Errorf("mysql: delete order %q lines: %w", id, err)
		}
		res := tx.Where("id = ?", id).Delete(&OrderModel{})
		if res.Error != nil {
			return fmt.Errorf("mysql: delete order %q: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, email string) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_index") }).
		Where("customer_email = ?", email).
		Order("created_at, id").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("mysql: list orders: %w", err)
	}

	out := make([]*domain.Order, 0, len(models))
	for i := range models {
		out = append(out, toDomainOrder(&models[i]))
	}
	return out, nil
}
