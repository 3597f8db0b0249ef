package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"

	domoutbox "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/outbox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type testEvent struct{ name string }

func (e testEvent) EventName() string { return e.name }

func TestBusFansOutToSubscribers(t *testing.T) {
	bus := NewBus(nil, Config{QueueSize: 4, Concurrency: 2})

	var (
		mu  sync.Mutex
		got []string
	)
	record := func(tag string) domoutbox.Handler {
		return func(_ context.Context, e domoutbox.Event) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, tag+":"+e.EventName())
			return nil
		}
	}
	bus.Subscribe("order.placed", record("a"))
	bus.Subscribe("order.placed", record("b"))
	bus.Subscribe("order.cancelled", func(context.Context, domoutbox.Event) error {
		return errors.New("handler failure is logged, not returned")
	})
	bus.Subscribe("order.cancelled", func(context.Context, domoutbox.Event) error {
		panic("recovered")
	})

	ctx := context.Background()
	bus.Start(ctx)
	require.NoError(t, bus.Publish(ctx, testEvent{name: "order.placed"}))
	require.NoError(t, bus.Publish(ctx, testEvent{name: "order.cancelled"}))
	require.NoError(t, bus.Publish(ctx, testEvent{name: "unrouted"}))
	bus.Stop(ctx)

	assert.ElementsMatch(t, []string{"a:order.placed", "b:order.placed"}, got)
}

func TestPublishAfterStop(t *testing.T) {
	bus := NewBus(nil, Config{})
	bus.Stop(context.Background())

	err := bus.Publish(context.Background(), testEvent{name: "order.placed"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublishHonoursContextWhenQueueFull(t *testing.T) {
	bus := NewBus(nil, Config{QueueSize: 1})
	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "x"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := bus.Publish(ctx, testEvent{name: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHandlersRunInPublisherTrace(t *testing.T) {
	bus := NewBus(nil, Config{})

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x0a, 0x0b, 0x0c, 0x01},
		SpanID:     trace.SpanID{0x01, 0x02},
		TraceFlags: trace.FlagsSampled,
	})
	var got trace.SpanContext
	bus.Subscribe("order.placed", func(ctx context.Context, _ domoutbox.Event) error {
		got = trace.SpanContextFromContext(ctx)
		return nil
	})

	ctx := context.Background()
	bus.Start(ctx)
	require.NoError(t, bus.Publish(trace.ContextWithSpanContext(ctx, sc), testEvent{name: "order.placed"}))
	bus.Stop(ctx)

	assert.Equal(t, sc.TraceID(), got.TraceID())
	assert.Equal(t, sc.SpanID(), got.SpanID())
}
