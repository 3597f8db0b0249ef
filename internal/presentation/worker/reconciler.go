package workerpresentation

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/minishop-coordinator/internal/application"
	apporder "github.com/Zhima-Mochi/minishop-coordinator/internal/application/order"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability/logctx"

	"go.opentelemetry.io/otel/codes"
)

// Reconciler runs the intent reconciliation use case on a fixed interval.
type Reconciler struct {
	uc       application.UseCase[apporder.ReconcileInput, *apporder.ReconcileResult]
	interval time.Duration
	tracer   observability.Tracer
	log      observability.Logger
	now      func() time.Time
}

func NewReconciler(uc application.UseCase[apporder.ReconcileInput, *apporder.ReconcileResult], interval time.Duration, tel observability.Observability) *Reconciler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reconciler{
		uc:       uc,
		interval: interval,
		tracer:   tel.Tracer(),
		log:      tel.Logger().With(observability.F("component", "reconciler")),
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled. A failed pass is logged and retried on the
// next tick.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("reconciler_started", observability.F("interval", r.interval.String()))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("reconciler_stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single reconciliation pass.
func (r *Reconciler) RunOnce(ctx context.Context) *apporder.ReconcileResult {
	ctx, span := r.tracer.Start(ctx, "Worker.ReconcileIntents")
	defer span.End()

	ctx = WithEventContext(ctx, r.log, map[string]string{"job": "reconcile_intents"})
	logger := logctx.FromOr(ctx, r.log)

	res, err := r.uc.Execute(ctx, apporder.ReconcileInput{Now: r.now()})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("reconcile_pass_failed", observability.Err(err))
		return nil
	}
	if res.Skipped {
		logger.Debug("reconcile_pass_skipped")
	}
	return res
}
