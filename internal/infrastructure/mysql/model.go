package mysql

import "time"

// OrderModel maps to the orders table.
type OrderModel struct {
	ID             string  `gorm:"primaryKey;size:36"`
	CustomerEmail  string  `gorm:"size:254;not null;index;uniqueIndex:uk_orders_idempotency,priority:1"`
	Address        string  `gorm:"size:80;not null"`
	IdempotencyKey *string `gorm:"size:128;uniqueIndex:uk_orders_idempotency,priority:2"`
	CreatedAt      time.Time
	Lines          []OrderLineModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderLineModel maps to the order_lines table. LineIndex is the position in the
// original request.
type OrderLineModel struct {
	ID                uint   `gorm:"primaryKey"`
	OrderID           string `gorm:"size:36;not null;uniqueIndex:uk_order_lines_position,priority:1"`
	LineIndex         int    `gorm:"not null;uniqueIndex:uk_order_lines_position,priority:2"`
	ProductID         int64  `gorm:"not null"`
	Units             int    `gorm:"not null"`
	Status            string `gorm:"size:16;not null"`
	Reason            string `gorm:"size:64"`
	RemainingQuantity int
}

func (OrderLineModel) TableName() string {
	return "order_lines"
}
