package order

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrConflict        = errors.New("order: conflict")
	ErrLineNotTerminal = errors.New("order: line is not in a terminal state")
	ErrLineMismatch    = errors.New("order: no reserved line matches product and units")
	ErrNoLines         = errors.New("order: at least one line is required")
)

// Order is the aggregate persisted once all of its lines are resolved.
type Order struct {
	ID             string
	CustomerEmail  string
	Address        string
	IdempotencyKey string
	CreatedAt      time.Time
	Lines          []Line
}

// New builds an order from resolved lines. Line order is kept as given.
func New(id, customerEmail, address, idempotencyKey string, lines []Line) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	for i, l := range lines {
		if !l.Terminal() {
			return nil, fmt.Errorf("%w: line %d", ErrLineNotTerminal, i)
		}
	}

	return &Order{
		ID:             id,
		CustomerEmail:  customerEmail,
		Address:        address,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now().UTC(),
		Lines:          append([]Line(nil), lines...),
	}, nil
}

// ReservedLine returns the first reserved line for productID holding exactly units.
func (o *Order) ReservedLine(productID int64, units int) (Line, bool) {
	for _, l := range o.Lines {
		if l.Status == LineReserved && l.ProductID == productID && l.Units == units {
			return l, true
		}
	}
	return Line{}, false
}

// WithoutLine returns a copy of the order with the line at position index removed.
func (o *Order) WithoutLine(index int) *Order {
	c := o.Clone()
	kept := c.Lines[:0]
	for _, l := range c.Lines {
		if l.Index != index {
			kept = append(kept, l)
		}
	}
	c.Lines = kept
	return c
}

func (o *Order) HasReservedLines() bool {
	for _, l := range o.Lines {
		if l.Status == LineReserved {
			return true
		}
	}
	return false
}

// ReservedUnits sums units across reserved lines.
func (o *Order) ReservedUnits() int {
	total := 0
	for _, l := range o.Lines {
		if l.Status == LineReserved {
			total += l.Units
		}
	}
	return total
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Lines = append([]Line(nil), o.Lines...)
	return &c
}
