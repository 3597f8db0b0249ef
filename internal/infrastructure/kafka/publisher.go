// Package kafka forwards domain events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability/logctx"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// Envelope is the JSON value written for every event.
type Envelope struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	AggregateID string          `json:"aggregate_id,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
	TraceID     string          `json:"trace_id,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes events keyed by aggregate id so one order's events stay ordered.
type Publisher struct {
	w   messageWriter
	log observability.Logger
}

var _ domoutbox.Publisher = (*Publisher)(nil)

func NewPublisher(cfg Config, tel observability.Observability) *Publisher {
	batch := cfg.BatchTimeout
	if batch <= 0 {
		batch = 10 * time.Millisecond
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           batch,
		AllowAutoTopicCreation: true,
	}
	return newPublisher(w, tel)
}

func newPublisher(w messageWriter, tel observability.Observability) *Publisher {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Publisher{w: w, log: tel.Logger().With(observability.F("component", "kafka_publisher"))}
}

func (p *Publisher) Publish(ctx context.Context, e domoutbox.Event) error {
	msg, err := buildMessage(ctx, e)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		logctx.FromOr(ctx, p.log).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.Err(err),
		)
		return fmt.Errorf("kafka: write %s: %w", e.EventName(), err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.w.Close()
}

// Forward subscribes the publisher to every named event on sub.
func (p *Publisher) Forward(sub domoutbox.Subscriber, eventNames ...string) {
	for _, name := range eventNames {
		sub.Subscribe(name, p.Publish)
	}
}

func buildMessage(ctx context.Context, e domoutbox.Event) (kafka.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: encode %s: %w", e.EventName(), err)
	}

	env := Envelope{
		EventID:     uuid.NewString(),
		EventType:   e.EventName(),
		AggregateID: domoutbox.KeyOf(e),
		OccurredAt:  time.Now().UTC(),
		Payload:     payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		env.TraceID = sc.TraceID().String()
	}
	value, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: encode envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(env.AggregateID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(env.EventType)},
		},
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{headers: &msg.Headers})
	return msg, nil
}
