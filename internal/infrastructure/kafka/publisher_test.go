package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	domain "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/outbox"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublishWritesKeyedEnvelope(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled,
	}))

	w := &fakeWriter{}
	p := newPublisher(w, nil)
	evt := domain.NewOrderCancelledEvent("o-1", 7, 2, true)
	require.NoError(t, p.Publish(ctx, evt))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "o-1", string(msg.Key))

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, "order.cancelled", env.EventType)
	assert.Equal(t, "o-1", env.AggregateID)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", env.TraceID)
	assert.NotEmpty(t, env.EventID)

	var payload domain.OrderCancelledEvent
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, int64(7), payload.ProductID)
	assert.True(t, payload.Deleted)

	carrier := headerCarrier{headers: &msg.Headers}
	assert.Equal(t, "order.cancelled", carrier.Get("event-type"))
	assert.Contains(t, carrier.Get("traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")
}

func TestPublishSurfacesWriterError(t *testing.T) {
	p := newPublisher(&fakeWriter{err: errors.New("leader not available")}, nil)
	err := p.Publish(context.Background(), domain.NewOrderCancelledEvent("o-1", 7, 2, false))
	assert.ErrorContains(t, err, "leader not available")
}

func TestHeaderCarrierSetOverwrites(t *testing.T) {
	var headers []kafka.Header
	c := headerCarrier{headers: &headers}
	c.Set("a", "1")
	c.Set("a", "2")
	c.Set("b", "3")
	assert.Equal(t, "2", c.Get("a"))
	assert.ElementsMatch(t, []string{"a", "b"}, c.Keys())
}

func TestForwardDrainsBus(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, nil)
	bus := outbox.NewBus(nil, outbox.Config{})
	p.Forward(bus, "order.placed", "order.cancelled")

	ctx := context.Background()
	bus.Start(ctx)
	require.NoError(t, bus.Publish(ctx, domain.NewOrderCancelledEvent("o-1", 7, 2, false)))
	require.NoError(t, bus.Publish(ctx, domain.NewOrderCancelledEvent("o-2", 8, 1, true)))
	bus.Stop(ctx)

	require.Len(t, w.msgs, 2)
	keys := []string{string(w.msgs[0].Key), string(w.msgs[1].Key)}
	assert.ElementsMatch(t, []string{"o-1", "o-2"}, keys)
}

func TestForwardKeepsPublisherTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tid, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	sid, _ := trace.SpanIDFromHex("b7ad6b7169203331")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled,
	}))

	w := &fakeWriter{}
	p := newPublisher(w, nil)
	bus := outbox.NewBus(nil, outbox.Config{})
	p.Forward(bus, "order.cancelled")

	bus.Start(context.Background())
	require.NoError(t, bus.Publish(ctx, domain.NewOrderCancelledEvent("o-1", 7, 2, false)))
	bus.Stop(context.Background())

	require.Len(t, w.msgs, 1)
	var env Envelope
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &env))
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", env.TraceID)

	carrier := headerCarrier{headers: &w.msgs[0].Headers}
	assert.Contains(t, carrier.Get("traceparent"), "0af7651916cd43dd8448eb211c80319c")
}
