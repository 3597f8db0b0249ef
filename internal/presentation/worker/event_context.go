package workerpresentation

import (
	"context"

	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability/logctx"

	"github.com/google/uuid"
)

// WithEventContext injects a run-scoped logger for background executions.
// attrs must stay low-cardinality (job name, shard, tenant). A run_id is generated
// when attrs does not carry one.
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	attrs map[string]string,
) context.Context {
	fields := make([]observability.Field, 0, len(attrs)+3)

	runID := attrs["run_id"]
	if runID == "" {
		runID = uuid.NewString()
	}
	fields = append(fields, observability.F("run_id", runID))

	fields = append(fields, observability.TraceFields(ctx)...)

	for k, v := range attrs {
		if k == "run_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	return logctx.Enrich(ctx, base, fields...)
}
