package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Zhima-Mochi/minishop-coordinator/internal/domain/intent"
)

const (
	defaultIntentRetention = time.Hour
	minCompactAt           = 1024
)

// IntentLog is an append-only in-process intent log. Intents settled longer
// than the retention window ago are dropped as the log grows.
type IntentLog struct {
	mu        sync.RWMutex
	entries   []intent.Entry
	retain    time.Duration
	compactAt int
}

var _ intent.Log = (*IntentLog)(nil)

func NewIntentLog() *IntentLog {
	return NewIntentLogWithRetention(defaultIntentRetention)
}

// NewIntentLogWithRetention keeps settled intents for at least retain.
func NewIntentLogWithRetention(retain time.Duration) *IntentLog {
	if retain <= 0 {
		retain = defaultIntentRetention
	}
	return &IntentLog{retain: retain, compactAt: minCompactAt}
}

func (l *IntentLog) Append(ctx context.Context, e *intent.Entry) error {
	_ = ctx
	if e == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, *e)
	if len(l.entries) >= l.compactAt {
		l.prune(time.Now().Add(-l.retain))
		l.compactAt = max(2*len(l.entries), minCompactAt)
	}
	return nil
}

// Prune drops every intent whose newest entry is settled and older than cutoff.
// It returns the number of entries removed.
func (l *IntentLog) Prune(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.prune(cutoff)
}

func (l *IntentLog) prune(cutoff time.Time) int {
	latest := make(map[string]intent.Entry, len(l.entries))
	for _, e := range l.entries {
		latest[e.IntentID] = e
	}

	kept := l.entries[:0]
	for _, e := range l.entries {
		last := latest[e.IntentID]
		if !last.Status.Open() && last.RecordedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
	}
	removed := len(l.entries) - len(kept)
	clear(l.entries[len(kept):])
	l.entries = kept
	return removed
}

func (l *IntentLog) Stale(ctx context.Context, cutoff time.Time) ([]intent.Entry, error) {
	_ = ctx
	l.mu.RLock()
	defer l.mu.RUnlock()

	latest := make(map[string]int, len(l.entries))
	for i, e := range l.entries {
		latest[e.IntentID] = i
	}

	out := make([]intent.Entry, 0)
	for _, i := range latest {
		e := l.entries[i]
		if e.Status.Open() && e.RecordedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

// History returns every entry recorded for intentID, oldest first.
func (l *IntentLog) History(intentID string) []intent.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []intent.Entry
	for _, e := range l.entries {
		if e.IntentID == intentID {
			out = append(out, e)
		}
	}
	return out
}

// Latest returns the newest entry of every intent belonging to orderID.
func (l *IntentLog) Latest(orderID string) []intent.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx := make(map[string]int)
	var order []string
	for i, e := range l.entries {
		if e.OrderID != orderID {
			continue
		}
		if _, seen := idx[e.IntentID]; !seen {
			order = append(order, e.IntentID)
		}
		idx[e.IntentID] = i
	}
	out := make([]intent.Entry, 0, len(order))
	for _, id := range order {
		out = append(out, l.entries[idx[id]])
	}
	return out
}
