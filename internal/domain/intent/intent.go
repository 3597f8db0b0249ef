// Package intent defines the write-ahead log of inventory reservations made on
// behalf of an order. Every reservation is recorded before the inventory call and
// settled once the order is persisted, so reservations orphaned by a crash can be
// found and released.
package intent

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusReserved  Status = "RESERVED"
	StatusFailed    Status = "FAILED"
	StatusCommitted Status = "COMMITTED"
	StatusReleased  Status = "RELEASED"
	StatusAbandoned Status = "ABANDONED"
)

// Open reports whether the intent still needs settling.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusReserved
}

// Entry is one transition of a reservation intent. The log is append-only; the
// newest entry for an IntentID is its current state.
type Entry struct {
	IntentID   string
	OrderID    string
	LineIndex  int
	ProductID  int64
	Units      int
	Status     Status
	TraceID    string
	SpanID     string
	RecordedAt time.Time
}

// NewEntry builds an entry stamped with the trace of the active span, if any.
func NewEntry(ctx context.Context, intentID, orderID string, lineIndex int, productID int64, units int, status Status) *Entry {
	e := &Entry{
		IntentID:   intentID,
		OrderID:    orderID,
		LineIndex:  lineIndex,
		ProductID:  productID,
		Units:      units,
		Status:     status,
		RecordedAt: time.Now().UTC(),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		e.TraceID = sc.TraceID().String()
		e.SpanID = sc.SpanID().String()
	}
	return e
}

// Transition returns a copy of e moved to status, re-stamped from ctx.
func (e Entry) Transition(ctx context.Context, status Status) *Entry {
	return NewEntry(ctx, e.IntentID, e.OrderID, e.LineIndex, e.ProductID, e.Units, status)
}

// Log persists intent transitions.
type Log interface {
	Append(ctx context.Context, e *Entry) error
	// Stale returns the newest entry of every open intent whose last transition
	// happened before cutoff, oldest first.
	Stale(ctx context.Context, cutoff time.Time) ([]Entry, error)
}
