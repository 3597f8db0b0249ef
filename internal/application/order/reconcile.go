package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-coordinator/internal/application"
	dominv "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/domain/intent"
	domain "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseReconcile = "order.reconcile_intents"
	reconcileLockKey = "reconcile-intents"
)

type ReconcileConfig struct {
	// Grace is how long an intent may stay open before it is treated as orphaned.
	Grace            time.Duration
	LockTTL          time.Duration
	InventoryTimeout time.Duration
}

type ReconcileInput struct {
	Now time.Time
}

type ReconcileResult struct {
	Skipped   bool
	Scanned   int
	Committed int
	Released  int
	Abandoned int
	Failed    int
}

// ReconcileUseCase settles reservation intents left open by a crash between
// reserving inventory and persisting the order.
type ReconcileUseCase struct {
	repo      domain.Repository
	intents   intent.Log
	inventory dominv.Service
	locker    Locker
	cfg       ReconcileConfig
	obs       instruments
	settled   observability.Counter // reservation_intents_reconciled_total{result}
}

var _ application.UseCase[ReconcileInput, *ReconcileResult] = (*ReconcileUseCase)(nil)

// NewReconcileUseCase wires the reconciler. locker may be nil for single replicas.
func NewReconcileUseCase(
	repo domain.Repository,
	intents intent.Log,
	inventory dominv.Service,
	locker Locker,
	tel observability.Observability,
	cfg ReconcileConfig,
) *ReconcileUseCase {
	if cfg.Grace <= 0 {
		cfg.Grace = 2 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	if cfg.InventoryTimeout <= 0 {
		cfg.InventoryTimeout = 2 * time.Second
	}
	obs := newInstruments(tel)
	return &ReconcileUseCase{
		repo:      repo,
		intents:   intents,
		inventory: inventory,
		locker:    locker,
		cfg:       cfg,
		obs:       obs,
		settled:   obs.metrics.Counter(observability.MIntentsReconciled),
	}
}

func (uc *ReconcileUseCase) Execute(ctx context.Context, cmd ReconcileInput) (_ *ReconcileResult, err error) {
	ctx, run := uc.obs.begin(ctx, useCaseReconcile, "ReconcileIntents")
	defer func() { run.end(err) }()

	now := cmd.Now
	if now.IsZero() {
		now = time.Now()
	}
	res := &ReconcileResult{}

	if uc.locker != nil {
		unlock, ok, lockErr := uc.locker.TryLock(ctx, reconcileLockKey, uc.cfg.LockTTL)
		if lockErr != nil {
			run.fail("LOCK_FAILED")
			return nil, fmt.Errorf("order: reconcile lock: %w", lockErr)
		}
		if !ok {
			run.status = "LOCK_HELD_ELSEWHERE"
			res.Skipped = true
			return res, nil
		}
		defer func() {
			if unlockErr := unlock(context.WithoutCancel(ctx)); unlockErr != nil {
				run.logger.Warn("reconcile_unlock_failed", observability.Err(unlockErr))
			}
		}()
	}

	stale, err := uc.intents.Stale(ctx, now.Add(-uc.cfg.Grace))
	if err != nil {
		run.fail("INTENT_SCAN_FAILED")
		return nil, fmt.Errorf("order: scan intents: %w", err)
	}
	res.Scanned = len(stale)

	orders := make(map[string]*domain.Order)
	for _, e := range stale {
		if err := ctx.Err(); err != nil {
			run.fail("CONTEXT_CANCELED")
			return res, err
		}
		result := uc.settle(ctx, run.logger, e, orders)
		switch result {
		case intent.StatusCommitted:
			res.Committed++
		case intent.StatusReleased:
			res.Released++
		case intent.StatusAbandoned:
			res.Abandoned++
		default:
			res.Failed++
		}
		uc.settled.Add(1, observability.L("result", resultLabel(result)))
	}

	run.note(
		observability.F("scanned", res.Scanned),
		observability.F("committed", res.Committed),
		observability.F("released", res.Released),
		observability.F("abandoned", res.Abandoned),
		observability.F("failed", res.Failed),
	)
	run.span.SetAttributes(
		attribute.Int("intents.scanned", res.Scanned),
		attribute.Int("intents.failed", res.Failed),
	)
	if res.Failed > 0 {
		run.status = "PARTIAL"
	}
	return res, nil
}

// settle decides one open intent and returns the status written, or "" when nothing
// could be recorded.
func (uc *ReconcileUseCase) settle(ctx context.Context, logger observability.Logger, e intent.Entry, cache map[string]*domain.Order) intent.Status {
	logger = logger.With(
		observability.F("intent_id", e.IntentID),
		observability.F("order_id", e.OrderID),
		observability.F("product_id", e.ProductID),
	)

	o, cached := cache[e.OrderID]
	if !cached {
		loaded, err := uc.repo.Get(ctx, e.OrderID)
		switch {
		case err == nil:
			o = loaded
		case errors.Is(err, domain.ErrNotFound):
			o = nil
		default:
			logger.Error("reconcile_order_load_failed", observability.Err(err))
			return ""
		}
		cache[e.OrderID] = o
	}

	var next intent.Status
	switch {
	case o != nil && ownsLine(o, e.LineIndex):
		next = intent.StatusCommitted
	case e.Status == intent.StatusReserved:
		callCtx, cancel := context.WithTimeout(ctx, uc.cfg.InventoryTimeout)
		_, err := uc.inventory.Release(callCtx, e.ProductID, e.Units)
		cancel()
		if err != nil {
			logger.Error("reconcile_release_failed", observability.Err(err))
			return ""
		}
		next = intent.StatusReleased
	default:
		logger.Warn("reservation_outcome_unknown", observability.F("units", e.Units))
		next = intent.StatusAbandoned
	}

	if err := uc.intents.Append(ctx, e.Transition(ctx, next)); err != nil {
		logger.Error("intent_append_failed",
			observability.F("status", string(next)),
			observability.Err(err),
		)
		return ""
	}
	return next
}

// ownsLine reports whether the persisted order accounts for the reservation at index.
// A missing line was cancelled, which released its units already.
func ownsLine(o *domain.Order, index int) bool {
	for _, l := range o.Lines {
		if l.Index == index {
			return l.Status == domain.LineReserved
		}
	}
	return true
}

func resultLabel(s intent.Status) string {
	if s == "" {
		return "failed"
	}
	return string(s)
}
