package inventory

import (
	"strconv"
	"time"
)

const (
	EventStockReserved = "inventory.stock_reserved"
	EventStockReleased = "inventory.stock_released"
)

// StockAdjustedEvent records a committed change to a product's available quantity.
type StockAdjustedEvent struct {
	Name      string
	ProductID int64
	Units     int
	Remaining int
	At        time.Time
}

func (e StockAdjustedEvent) EventName() string { return e.Name }

func (e StockAdjustedEvent) AggregateID() string { return strconv.FormatInt(e.ProductID, 10) }

func NewStockReservedEvent(productID int64, units, remaining int) StockAdjustedEvent {
	return StockAdjustedEvent{Name: EventStockReserved, ProductID: productID, Units: units, Remaining: remaining, At: time.Now().UTC()}
}

func NewStockReleasedEvent(productID int64, units, remaining int) StockAdjustedEvent {
	return StockAdjustedEvent{Name: EventStockReleased, ProductID: productID, Units: units, Remaining: remaining, At: time.Now().UTC()}
}
