package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-coordinator/internal/domain/intent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *IntentLog {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "intents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func entryAt(id, orderID string, status intent.Status, at time.Time) *intent.Entry {
	return &intent.Entry{
		IntentID:   id,
		OrderID:    orderID,
		LineIndex:  0,
		ProductID:  7,
		Units:      2,
		Status:     status,
		TraceID:    "4bf92f3577b34da6a3ce929d0e0e4736",
		RecordedAt: at,
	}
}

func TestStaleReturnsLatestOpenEntries(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, l.Append(ctx, entryAt("i-1", "o-1", intent.StatusPending, base)))
	require.NoError(t, l.Append(ctx, entryAt("i-1", "o-1", intent.StatusReserved, base.Add(time.Millisecond))))
	require.NoError(t, l.Append(ctx, entryAt("i-2", "o-1", intent.StatusPending, base)))
	require.NoError(t, l.Append(ctx, entryAt("i-2", "o-1", intent.StatusCommitted, base.Add(time.Second))))
	require.NoError(t, l.Append(ctx, entryAt("i-3", "o-2", intent.StatusPending, base.Add(10*time.Minute))))

	stale, err := l.Stale(ctx, base.Add(5*time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "i-1", stale[0].IntentID)
	assert.Equal(t, intent.StatusReserved, stale[0].Status)
	assert.Equal(t, int64(7), stale[0].ProductID)
	assert.True(t, stale[0].RecordedAt.Equal(base.Add(time.Millisecond)))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", stale[0].TraceID)

	stale, err = l.Stale(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, "i-1", stale[0].IntentID)
	assert.Equal(t, "i-3", stale[1].IntentID)
}

func TestHistoryKeepsAppendOrder(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, l.Append(ctx, entryAt("i-1", "o-1", intent.StatusPending, at)))
	require.NoError(t, l.Append(ctx, entryAt("i-1", "o-1", intent.StatusReserved, at)))
	require.NoError(t, l.Append(ctx, entryAt("i-1", "o-1", intent.StatusReleased, at)))

	h, err := l.History(ctx, "i-1")
	require.NoError(t, err)
	require.Len(t, h, 3)
	assert.Equal(t, intent.StatusReleased, h[2].Status)
}

func TestFormatTimeSortsLexically(t *testing.T) {
	a := time.Date(2025, 3, 1, 10, 0, 0, 900, time.UTC)
	b := time.Date(2025, 3, 1, 10, 0, 1, 0, time.UTC)
	assert.Less(t, formatTime(a), formatTime(b))
}
