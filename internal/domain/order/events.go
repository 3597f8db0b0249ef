package order

import "time"

// OrderPlacedEvent is emitted once an order has been persisted.
type OrderPlacedEvent struct {
	OrderID       string
	CustomerEmail string
	ReservedLines int
	RejectedLines int
	ReservedUnits int
	OccurredAt    time.Time
}

func (OrderPlacedEvent) EventName() string { return "order.placed" }

func (e OrderPlacedEvent) AggregateID() string { return e.OrderID }

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	evt := OrderPlacedEvent{
		OrderID:       o.ID,
		CustomerEmail: o.CustomerEmail,
		ReservedUnits: o.ReservedUnits(),
		OccurredAt:    time.Now().UTC(),
	}
	for _, l := range o.Lines {
		if l.Status == LineReserved {
			evt.ReservedLines++
		} else {
			evt.RejectedLines++
		}
	}
	return evt
}

// OrderCancelledEvent is emitted when a reserved line is released. Deleted reports
// whether the order record was removed because no reserved line remained.
type OrderCancelledEvent struct {
	OrderID    string
	ProductID  int64
	Units      int
	Deleted    bool
	OccurredAt time.Time
}

func (OrderCancelledEvent) EventName() string { return "order.cancelled" }

func (e OrderCancelledEvent) AggregateID() string { return e.OrderID }

func NewOrderCancelledEvent(orderID string, productID int64, units int, deleted bool) OrderCancelledEvent {
	return OrderCancelledEvent{
		OrderID:    orderID,
		ProductID:  productID,
		Units:      units,
		Deleted:    deleted,
		OccurredAt: time.Now().UTC(),
	}
}
