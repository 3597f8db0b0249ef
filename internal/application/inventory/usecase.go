package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-coordinator/internal/application"
	dominv "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	inventoryService   = "inventory-service"
	useCaseReserve     = "inventory.reserve"
	useCaseRelease     = "inventory.release"
	spanPrefix         = "UC."
	publishPeer        = "outbox"
	publishTimeout     = 300 * time.Millisecond
	directionReserve   = "reserve"
	directionRelease   = "release"
	statusOK           = "OK"
	statusInsufficient = "INSUFFICIENT_STOCK"
)

// AdjustStockInput moves Units of a product into or out of available stock.
type AdjustStockInput struct {
	ProductID int64
	Units     int
}

// AdjustStockResult carries the available quantity after the change.
type AdjustStockResult struct {
	Remaining int
}

// AdjustStockUseCase reserves or releases stock atomically per product.
type AdjustStockUseCase struct {
	repo         dominv.Repository
	publisher    domoutbox.Publisher
	direction    string
	useCase      string
	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

var _ application.UseCase[AdjustStockInput, *AdjustStockResult] = (*AdjustStockUseCase)(nil)

func NewReserveStockUseCase(repo dominv.Repository, publisher domoutbox.Publisher, tel observability.Observability) *AdjustStockUseCase {
	return newAdjustStockUseCase(repo, publisher, tel, directionReserve, useCaseReserve)
}

func NewReleaseStockUseCase(repo dominv.Repository, publisher domoutbox.Publisher, tel observability.Observability) *AdjustStockUseCase {
	return newAdjustStockUseCase(repo, publisher, tel, directionRelease, useCaseRelease)
}

func newAdjustStockUseCase(repo dominv.Repository, publisher domoutbox.Publisher, tel observability.Observability, direction, useCase string) *AdjustStockUseCase {
	baseLog := observability.NopLogger().With(
		observability.F("service", inventoryService),
	)
	tracer := observability.NopTracer()
	metricsProvider := observability.NopMetrics()
	if tel != nil {
		baseLog = tel.Logger().With(
			observability.F("service", inventoryService),
		)
		tracer = tel.Tracer()
		metricsProvider = tel.Metrics()
	}

	return &AdjustStockUseCase{
		repo:         repo,
		publisher:    publisher,
		direction:    direction,
		useCase:      useCase,
		log:          baseLog,
		tracer:       tracer,
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
		extCounter:   metricsProvider.Counter(observability.MExternalRequests),
		extHistogram: metricsProvider.Histogram(observability.MExternalRequestDuration),
	}
}

func (uc *AdjustStockUseCase) Execute(ctx context.Context, in AdjustStockInput) (_ *AdjustStockResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", uc.useCase),
		observability.F("product_id", in.ProductID),
		observability.F("units", in.Units),
	)

	spanName := "ReserveStock"
	if uc.direction == directionRelease {
		spanName = "ReleaseStock"
	}
	ctx, span := uc.tracer.Start(ctx, spanPrefix+spanName,
		attribute.String("use_case", uc.useCase),
		attribute.Int64("product.id", in.ProductID),
		attribute.Int("stock.units", in.Units),
	)
	start := time.Now()
	outcome, statusText := "success", statusOK
	remaining := 0
	var publishErr error

	defer func() {
		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		latency := time.Since(start).Seconds()
		uc.reqCounter.Add(1,
			observability.L("use_case", uc.useCase),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(latency,
			observability.L("use_case", uc.useCase),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", latency),
			observability.F("remaining", remaining),
		}
		fields = append(fields, observability.TraceFields(ctx)...)
		if publishErr != nil {
			fields = append(fields, observability.F("event_publish_error", publishErr.Error()))
		}
		if err != nil {
			fields = append(fields, observability.Err(err))
		}
		logger.Info("use_case_done", fields...)
	}()

	if in.Units <= 0 {
		outcome, statusText = "error", "INVALID_QUANTITY"
		return nil, dominv.ErrInvalidQuantity
	}

	var evt domoutbox.Event
	if uc.direction == directionRelease {
		remaining, err = uc.repo.Release(ctx, in.ProductID, in.Units)
		evt = dominv.NewStockReleasedEvent(in.ProductID, in.Units, remaining)
	} else {
		remaining, err = uc.repo.Reserve(ctx, in.ProductID, in.Units)
		evt = dominv.NewStockReservedEvent(in.ProductID, in.Units, remaining)
	}
	if err != nil {
		outcome = "error"
		switch {
		case errors.Is(err, dominv.ErrNotFound):
			statusText = "PRODUCT_NOT_FOUND"
		case errors.Is(err, dominv.ErrInsufficientStock):
			statusText = statusInsufficient
		default:
			statusText = "REPO_UPDATE_FAILED"
		}
		return nil, fmt.Errorf("inventory: %s: %w", uc.direction, err)
	}

	span.SetAttributes(attribute.Int("stock.remaining", remaining))
	publishErr = uc.publish(ctx, evt)
	if publishErr != nil {
		statusText = "EVENT_PUBLISH_FAILED"
	}
	return &AdjustStockResult{Remaining: remaining}, nil
}

func (uc *AdjustStockUseCase) publish(ctx context.Context, evt domoutbox.Event) error {
	if uc.publisher == nil {
		return nil
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	start := time.Now()
	outcome := "success"
	err := uc.publisher.Publish(pubCtx, evt)
	if err != nil {
		outcome = "error"
	}
	uc.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", evt.EventName()),
		observability.L("outcome", outcome),
	)
	uc.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", evt.EventName()),
	)
	return err
}
