package logctx

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	observability.Logger
	fields []observability.Field
}

func (l *recordingLogger) With(fields ...observability.Field) observability.Logger {
	return &recordingLogger{Logger: l.Logger, fields: append(append([]observability.Field(nil), l.fields...), fields...)}
}

func TestFromOrFallsBack(t *testing.T) {
	assert.Nil(t, From(context.Background()))
	assert.NotNil(t, FromOr(context.Background(), nil))

	base := &recordingLogger{Logger: observability.NopLogger()}
	assert.Same(t, base, FromOr(context.Background(), base))
}

func TestEnrichStacksFields(t *testing.T) {
	base := &recordingLogger{Logger: observability.NopLogger()}

	ctx := Enrich(context.Background(), base, observability.F("request_id", "r-1"))
	ctx = Enrich(ctx, nil, observability.F("order_id", "o-1"))

	got, ok := From(ctx).(*recordingLogger)
	if assert.True(t, ok) {
		assert.Equal(t, []observability.Field{
			observability.F("request_id", "r-1"),
			observability.F("order_id", "o-1"),
		}, got.fields)
	}
}
