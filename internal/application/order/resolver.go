package order

import (
	"context"
	"errors"
	"time"

	dominv "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/domain/intent"
	domain "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// lineResult is a resolved line plus the newest intent entry written for it.
// entry is nil when no reservation was attempted.
type lineResult struct {
	line  domain.Line
	entry *intent.Entry
}

// lineResolver turns requested lines into terminal outcomes. Lines run concurrently,
// at most workers at a time, and results keep request order.
type lineResolver struct {
	inventory dominv.Service
	intents   intent.Log
	ids       IDGenerator
	workers   int
	timeout   time.Duration
	tracer    observability.Tracer
	log       observability.Logger
	lines     observability.Counter // order_lines_total{outcome,reason}
}

func (r *lineResolver) resolve(ctx context.Context, orderID string, reqs []LineRequest) []lineResult {
	results := make([]lineResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(max(r.workers, 1))
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = r.resolveLine(ctx, orderID, i, req)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *lineResolver) resolveLine(ctx context.Context, orderID string, index int, req LineRequest) (res lineResult) {
	ctx, span := r.tracer.Start(ctx, "Coordinator.ResolveLine",
		attribute.Int("line.index", index),
		attribute.Int64("product.id", req.ProductID),
		attribute.Int("line.units", req.Units),
	)
	logger := logctx.FromOr(ctx, r.log).With(
		observability.F("order_id", orderID),
		observability.F("line_index", index),
		observability.F("product_id", req.ProductID),
	)

	defer func() {
		span.SetAttributes(attribute.String("line.status", string(res.line.Status)))
		if res.line.Reason != "" {
			span.SetAttributes(attribute.String("line.reason", res.line.Reason))
		}
		span.SetStatus(codes.Ok, "")
		span.End()
		if r.lines != nil {
			r.lines.Add(1,
				observability.L("outcome", string(res.line.Status)),
				observability.L("reason", res.line.Reason),
			)
		}
	}()

	rejected := func(reason string) lineResult {
		return lineResult{line: domain.Rejected(index, req.ProductID, req.Units, reason), entry: res.entry}
	}

	product, err := r.getProduct(ctx, req.ProductID)
	if err != nil {
		if !errors.Is(err, dominv.ErrNotFound) {
			logger.Warn("inventory_lookup_failed", observability.Err(err))
		}
		return rejected(domain.ReasonProductUnavailable)
	}
	if product.AvailableQuantity < req.Units {
		return rejected(domain.ReasonInsufficientQuantity)
	}

	pending := intent.NewEntry(ctx, r.ids.NewID(), orderID, index, req.ProductID, req.Units, intent.StatusPending)
	if err := r.intents.Append(ctx, pending); err != nil {
		logger.Error("intent_append_failed",
			observability.F("status", string(intent.StatusPending)),
			observability.Err(err),
		)
		return rejected(domain.ReasonProductUnavailable)
	}
	res.entry = pending

	remaining, timedOut, err := r.reserve(ctx, req.ProductID, req.Units)
	switch {
	case err == nil:
		res.entry = r.transition(ctx, logger, pending, intent.StatusReserved)
		return lineResult{line: domain.Reserved(index, req.ProductID, req.Units, remaining), entry: res.entry}
	case timedOut:
		// Outcome unknown: the intent stays pending until the order settles it.
		logger.Warn("inventory_reserve_timeout", observability.Err(err))
		return rejected(domain.ReasonProductUnavailable)
	case errors.Is(err, dominv.ErrInsufficientStock):
		res.entry = r.transition(ctx, logger, pending, intent.StatusFailed)
		return rejected(domain.ReasonInsufficientQuantity)
	default:
		logger.Warn("inventory_reserve_failed", observability.Err(err))
		res.entry = r.transition(ctx, logger, pending, intent.StatusFailed)
		return rejected(domain.ReasonProductUnavailable)
	}
}

func (r *lineResolver) getProduct(ctx context.Context, id int64) (*dominv.Product, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.inventory.GetProduct(callCtx, id)
}

// reserve reports timedOut when the per-call deadline expired, in which case the
// inventory service may or may not have applied the reservation.
func (r *lineResolver) reserve(ctx context.Context, id int64, units int) (remaining int, timedOut bool, err error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	remaining, err = r.inventory.Reserve(callCtx, id, units)
	if err != nil && callCtx.Err() != nil {
		return 0, true, err
	}
	return remaining, false, err
}

// release returns units using a context detached from request cancellation.
func (r *lineResolver) release(ctx context.Context, id int64, units int) (int, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	return r.inventory.Release(callCtx, id, units)
}

// transition appends the next state for e. On append failure the previous entry is
// returned so the caller keeps the last durable state.
func (r *lineResolver) transition(ctx context.Context, logger observability.Logger, e *intent.Entry, status intent.Status) *intent.Entry {
	next := e.Transition(ctx, status)
	if err := r.intents.Append(context.WithoutCancel(ctx), next); err != nil {
		logger.Error("intent_append_failed",
			observability.F("intent_id", e.IntentID),
			observability.F("status", string(status)),
			observability.Err(err),
		)
		return e
	}
	return next
}
