package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeepsLineOrder(t *testing.T) {
	lines := []Line{
		Reserved(0, 1, 5, 5),
		Rejected(1, 2, 999, ReasonInsufficientQuantity),
		Rejected(2, 3, 1, ReasonProductUnavailable),
	}

	o, err := New("o-1", "a@b.com", "Main St", "", lines)
	require.NoError(t, err)

	require.Len(t, o.Lines, 3)
	assert.Equal(t, int64(1), o.Lines[0].ProductID)
	assert.Equal(t, LineReserved, o.Lines[0].Status)
	assert.Equal(t, ReasonInsufficientQuantity, o.Lines[1].Reason)
	assert.Equal(t, ReasonProductUnavailable, o.Lines[2].Reason)
	assert.False(t, o.CreatedAt.IsZero())

	lines[0].Units = 42
	assert.Equal(t, 5, o.Lines[0].Units, "order must not alias caller slice")
}

func TestNewRejectsPendingLine(t *testing.T) {
	_, err := New("o-1", "a@b.com", "Main St", "", []Line{{Index: 0, ProductID: 1, Units: 1}})
	assert.ErrorIs(t, err, ErrLineNotTerminal)

	_, err = New("o-1", "a@b.com", "Main St", "", nil)
	assert.ErrorIs(t, err, ErrNoLines)
}

func TestReservedLineMatchesExactly(t *testing.T) {
	o, err := New("o-1", "a@b.com", "Main St", "", []Line{
		Reserved(0, 1, 5, 5),
		Rejected(1, 2, 3, ReasonInsufficientQuantity),
	})
	require.NoError(t, err)

	l, ok := o.ReservedLine(1, 5)
	assert.True(t, ok)
	assert.Equal(t, 0, l.Index)

	_, ok = o.ReservedLine(1, 4)
	assert.False(t, ok)

	_, ok = o.ReservedLine(2, 3)
	assert.False(t, ok, "rejected lines are never released")
}

func TestWithoutLine(t *testing.T) {
	o, err := New("o-1", "a@b.com", "Main St", "", []Line{
		Reserved(0, 1, 5, 5),
		Reserved(1, 2, 2, 8),
	})
	require.NoError(t, err)

	rest := o.WithoutLine(0)
	require.Len(t, rest.Lines, 1)
	assert.Equal(t, int64(2), rest.Lines[0].ProductID)
	assert.True(t, rest.HasReservedLines())
	assert.Len(t, o.Lines, 2, "original untouched")

	empty := rest.WithoutLine(1)
	assert.False(t, empty.HasReservedLines())
}

func TestOrderPlacedEventCounts(t *testing.T) {
	o, err := New("o-1", "a@b.com", "Main St", "", []Line{
		Reserved(0, 1, 5, 5),
		Reserved(1, 4, 2, 0),
		Rejected(2, 2, 999, ReasonInsufficientQuantity),
	})
	require.NoError(t, err)

	evt := NewOrderPlacedEvent(o)
	assert.Equal(t, "order.placed", evt.EventName())
	assert.Equal(t, 2, evt.ReservedLines)
	assert.Equal(t, 1, evt.RejectedLines)
	assert.Equal(t, 7, evt.ReservedUnits)
}
