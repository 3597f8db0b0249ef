// Package oteltrace adapts the global OpenTelemetry tracer provider to observability.Tracer.
package oteltrace

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultScope = "minishop-coordinator"

type Tracer struct {
	t trace.Tracer
}

// New resolves the tracer lazily through otel.Tracer, so it picks up a provider
// installed later by telemetry.SetupTracer.
func New(scope string) *Tracer {
	if scope == "" {
		scope = defaultScope
	}
	return &Tracer{t: otel.Tracer(scope)}
}

// Start opens an internal span. Names prefixed with "Inventory." are outbound calls
// and get the client kind.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...), trace.WithSpanKind(kindOf(name)))
}

func kindOf(name string) trace.SpanKind {
	if strings.HasPrefix(name, "Inventory.") {
		return trace.SpanKindClient
	}
	return trace.SpanKindInternal
}
