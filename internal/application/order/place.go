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
	domoutbox "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	useCaseOrderPlace = "order.place"
	publishPeer       = "outbox"
)

// PlaceConfig tunes order placement.
type PlaceConfig struct {
	LineWorkers      int
	InventoryTimeout time.Duration
	PublishTimeout   time.Duration

	// IdempotencyTTL is how long a completed key replays its order.
	IdempotencyTTL time.Duration

	// IdempotencyLease is the minimum lifetime of an in-flight claim. The lease is
	// stretched to the request's worst-case resolution time, so a claim left by a
	// crashed process frees up shortly after.
	IdempotencyLease time.Duration
}

func (c PlaceConfig) withDefaults() PlaceConfig {
	if c.LineWorkers <= 0 {
		c.LineWorkers = 4
	}
	if c.InventoryTimeout <= 0 {
		c.InventoryTimeout = 2 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 300 * time.Millisecond
	}
	if c.IdempotencyTTL <= 0 {
		c.IdempotencyTTL = 24 * time.Hour
	}
	if c.IdempotencyLease <= 0 {
		c.IdempotencyLease = 30 * time.Second
	}
	return c
}

// claimLease covers a lookup and a reservation per line in rounds of LineWorkers,
// the persist and publish steps, and never drops below IdempotencyLease.
func (c PlaceConfig) claimLease(lines int) time.Duration {
	rounds := (lines + c.LineWorkers - 1) / c.LineWorkers
	budget := time.Duration(rounds)*2*c.InventoryTimeout + c.PublishTimeout + 5*time.Second
	return max(budget, c.IdempotencyLease)
}

type PlaceOrderInput struct {
	IdempotencyKey  string
	CustomerEmail   string
	CustomerAddress string
	Lines           []LineRequest
}

// PlaceOrderUseCase reserves inventory line by line and persists the resulting order
// once. A rejected line never aborts the order.
type PlaceOrderUseCase struct {
	repo        domain.Repository
	idGenerator IDGenerator
	idempotency IdempotencyStore
	publisher   domoutbox.Publisher
	resolver    *lineResolver
	cfg         PlaceConfig
	obs         instruments

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

var _ application.UseCase[PlaceOrderInput, *domain.Order] = (*PlaceOrderUseCase)(nil)

// NewPlaceOrderUseCase wires placement. idempotency and publisher may be nil.
func NewPlaceOrderUseCase(
	repo domain.Repository,
	inventory dominv.Service,
	intents intent.Log,
	idGen IDGenerator,
	idempotency IdempotencyStore,
	publisher domoutbox.Publisher,
	tel observability.Observability,
	cfg PlaceConfig,
) *PlaceOrderUseCase {
	cfg = cfg.withDefaults()
	obs := newInstruments(tel)

	return &PlaceOrderUseCase{
		repo:        repo,
		idGenerator: idGen,
		idempotency: idempotency,
		publisher:   publisher,
		cfg:         cfg,
		obs:         obs,
		resolver: &lineResolver{
			inventory: inventory,
			intents:   intents,
			ids:       idGen,
			workers:   cfg.LineWorkers,
			timeout:   cfg.InventoryTimeout,
			tracer:    obs.tracer,
			log:       obs.log,
			lines:     obs.metrics.Counter(observability.MOrderLines),
		},
		extCounter:   obs.metrics.Counter(observability.MExternalRequests),
		extHistogram: obs.metrics.Histogram(observability.MExternalRequestDuration),
	}
}

// Execute validates the request, resolves every line and persists the order.
func (uc *PlaceOrderUseCase) Execute(ctx context.Context, cmd PlaceOrderInput) (_ *domain.Order, err error) {
	ctx, run := uc.obs.begin(ctx, useCaseOrderPlace, "PlaceOrder",
		attribute.Int("order.requested_lines", len(cmd.Lines)),
	)
	defer func() { run.end(err) }()

	if fieldErrs := Validate(cmd); len(fieldErrs) > 0 {
		run.fail("VALIDATION_FAILED")
		return nil, &ValidationError{Fields: fieldErrs}
	}
	if err := ctx.Err(); err != nil {
		run.fail("CONTEXT_CANCELED")
		return nil, err
	}

	var claimKey string
	if cmd.IdempotencyKey != "" && uc.idempotency != nil {
		claimKey = idempotencyScope(cmd.CustomerEmail, cmd.IdempotencyKey)
		existingID, claimed, claimErr := uc.idempotency.Claim(ctx, claimKey, uc.cfg.claimLease(len(cmd.Lines)))
		switch {
		case errors.Is(claimErr, ErrIdempotencyInFlight):
			run.fail("IDEMPOTENCY_IN_FLIGHT")
			return nil, claimErr
		case claimErr != nil:
			run.fail("IDEMPOTENCY_CLAIM_FAILED")
			return nil, fmt.Errorf("order: idempotency claim: %w", claimErr)
		case !claimed:
			existing, getErr := uc.repo.Get(ctx, existingID)
			if getErr != nil {
				run.fail("IDEMPOTENCY_LOOKUP_FAILED")
				return nil, wrapRepositoryError(getErr)
			}
			run.status = "IDEMPOTENT_REPLAY"
			run.span.AddEvent("order.idempotent_replay",
				trace.WithAttributes(attribute.String("order.id", existing.ID)),
			)
			return existing, nil
		}
		defer func() {
			if err != nil {
				_ = uc.idempotency.Abandon(context.WithoutCancel(ctx), claimKey)
			}
		}()
	}

	orderID := uc.idGenerator.NewID()
	run.note(observability.F("order_id", orderID))
	run.span.SetAttributes(attribute.String("order.id", orderID))

	results := uc.resolver.resolve(ctx, orderID, cmd.Lines)
	lines := make([]domain.Line, len(results))
	for i, r := range results {
		lines[i] = r.line
	}

	entity, derr := domain.New(orderID, cmd.CustomerEmail, cmd.CustomerAddress, cmd.IdempotencyKey, lines)
	if derr != nil {
		run.fail("DOMAIN_CONSTRUCTION_FAILED")
		uc.compensate(ctx, run.logger, results)
		return nil, fmt.Errorf("order: construct: %w", derr)
	}

	if err := uc.repo.Insert(ctx, entity); err != nil {
		run.fail("REPO_INSERT_FAILED")
		uc.compensate(ctx, run.logger, results)
		return nil, wrapRepositoryError(err)
	}

	uc.settle(ctx, run.logger, entity, results)

	if claimKey != "" {
		if err := uc.idempotency.Complete(context.WithoutCancel(ctx), claimKey, entity.ID, uc.cfg.IdempotencyTTL); err != nil {
			run.logger.Warn("idempotency_complete_failed",
				observability.F("order_id", entity.ID),
				observability.Err(err),
			)
		}
	}

	if publishErr := uc.publish(ctx, domain.NewOrderPlacedEvent(entity)); publishErr != nil {
		run.status = "EVENT_PUBLISH_FAILED"
		run.note(observability.F("event_publish_error", publishErr.Error()))
	}

	run.span.SetAttributes(
		attribute.Int("order.reserved_units", entity.ReservedUnits()),
		attribute.Int("order.lines", len(entity.Lines)),
	)
	run.span.AddEvent("order.placed", trace.WithAttributes(attribute.String("order.id", entity.ID)))

	return entity, nil
}

// compensate releases every reserved line, newest first, after the order could not
// be persisted. Lines that fail to release keep their RESERVED intent for the reconciler.
func (uc *PlaceOrderUseCase) compensate(ctx context.Context, logger observability.Logger, results []lineResult) {
	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]
		if r.line.Status != domain.LineReserved {
			continue
		}
		if _, err := uc.resolver.release(ctx, r.line.ProductID, r.line.Units); err != nil {
			logger.Error("compensation_release_failed",
				observability.F("product_id", r.line.ProductID),
				observability.F("units", r.line.Units),
				observability.Err(err),
			)
			continue
		}
		if r.entry != nil {
			uc.resolver.transition(ctx, logger, r.entry, intent.StatusReleased)
		}
	}
}

// settle closes the intents of a persisted order. Reserved lines commit; a line whose
// reservation timed out cannot be settled automatically and is abandoned.
func (uc *PlaceOrderUseCase) settle(ctx context.Context, logger observability.Logger, entity *domain.Order, results []lineResult) {
	for _, r := range results {
		if r.entry == nil || !r.entry.Status.Open() {
			continue
		}
		switch {
		case r.line.Status == domain.LineReserved:
			uc.resolver.transition(ctx, logger, r.entry, intent.StatusCommitted)
		case r.entry.Status == intent.StatusPending:
			logger.Warn("reservation_outcome_unknown",
				observability.F("order_id", entity.ID),
				observability.F("intent_id", r.entry.IntentID),
				observability.F("product_id", r.entry.ProductID),
				observability.F("units", r.entry.Units),
			)
			uc.resolver.transition(ctx, logger, r.entry, intent.StatusAbandoned)
		}
	}
}

func (uc *PlaceOrderUseCase) publish(ctx context.Context, evt domoutbox.Event) error {
	if uc.publisher == nil {
		return nil
	}
	return publishEvent(ctx, uc.publisher, evt, uc.cfg.PublishTimeout, uc.extCounter, uc.extHistogram)
}

// publishEvent publishes best effort under timeout and records external call metrics.
func publishEvent(
	ctx context.Context,
	publisher domoutbox.Publisher,
	evt domoutbox.Event,
	timeout time.Duration,
	extCounter observability.Counter,
	extHistogram observability.Histogram,
) error {
	pubCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	outcome := "success"
	err := publisher.Publish(pubCtx, evt)
	if err != nil {
		outcome = "error"
	} else if pubCtx.Err() != nil {
		outcome = "canceled"
		err = pubCtx.Err()
	}

	if extCounter != nil {
		extCounter.Add(1,
			observability.L("peer", publishPeer),
			observability.L("endpoint", evt.EventName()),
			observability.L("outcome", outcome),
		)
	}
	if extHistogram != nil {
		extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", publishPeer),
			observability.L("endpoint", evt.EventName()),
		)
	}
	return err
}

func idempotencyScope(email, key string) string {
	return email + ":" + key
}
