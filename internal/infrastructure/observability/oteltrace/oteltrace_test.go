package oteltrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, trace.SpanKindClient, kindOf("Inventory.Reserve"))
	assert.Equal(t, trace.SpanKindInternal, kindOf("UC.PlaceOrder"))
}
