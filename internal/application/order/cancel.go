package order

import (
	"context"
	"fmt"
	"time"

	dominv "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseOrderCancel = "order.cancel"

type CancelOrderInput struct {
	OrderID   string
	ProductID int64
	Units     int
}

// CancelOrderUseCase releases one reserved line of an order back to inventory.
type CancelOrderUseCase struct {
	repo      domain.Repository
	inventory dominv.Service
	publisher domoutbox.Publisher
	timeout   time.Duration
	pubTO     time.Duration
	obs       instruments

	extCounter   observability.Counter
	extHistogram observability.Histogram
}

func NewCancelOrderUseCase(
	repo domain.Repository,
	inventory dominv.Service,
	publisher domoutbox.Publisher,
	tel observability.Observability,
	cfg PlaceConfig,
) *CancelOrderUseCase {
	cfg = cfg.withDefaults()
	obs := newInstruments(tel)
	return &CancelOrderUseCase{
		repo:         repo,
		inventory:    inventory,
		publisher:    publisher,
		timeout:      cfg.InventoryTimeout,
		pubTO:        cfg.PublishTimeout,
		obs:          obs,
		extCounter:   obs.metrics.Counter(observability.MExternalRequests),
		extHistogram: obs.metrics.Histogram(observability.MExternalRequestDuration),
	}
}

// Execute checks that the order holds a reserved line for exactly (ProductID, Units),
// releases it, then drops the line. The order record is deleted once no reserved line
// remains. Nothing is released for an unknown order or a mismatching line, and the
// order is left untouched when the release fails.
func (uc *CancelOrderUseCase) Execute(ctx context.Context, cmd CancelOrderInput) (err error) {
	ctx, run := uc.obs.begin(ctx, useCaseOrderCancel, "CancelOrder",
		attribute.String("order.id", cmd.OrderID),
		attribute.Int64("product.id", cmd.ProductID),
		attribute.Int("line.units", cmd.Units),
	)
	defer func() { run.end(err) }()
	run.note(observability.F("order_id", cmd.OrderID))

	var fieldErrs []FieldError
	if cmd.OrderID == "" {
		fieldErrs = append(fieldErrs, FieldError{Field: "id", Message: "Order id is required"})
	}
	if cmd.ProductID <= 0 {
		fieldErrs = append(fieldErrs, FieldError{Field: "productId", Message: "Product id must be positive"})
	}
	if cmd.Units <= 0 {
		fieldErrs = append(fieldErrs, FieldError{Field: "quantity", Message: "Quantity must be greater than zero"})
	}
	if len(fieldErrs) > 0 {
		run.fail("VALIDATION_FAILED")
		return &ValidationError{Fields: fieldErrs}
	}

	existing, err := uc.repo.Get(ctx, cmd.OrderID)
	if err != nil {
		run.fail("ORDER_LOAD_FAILED")
		return wrapRepositoryError(err)
	}

	line, ok := existing.ReservedLine(cmd.ProductID, cmd.Units)
	if !ok {
		run.fail("LINE_MISMATCH")
		return fmt.Errorf("%w: product %d units %d", ErrLineMismatch, cmd.ProductID, cmd.Units)
	}

	remaining, err := uc.release(ctx, line.ProductID, line.Units)
	if err != nil {
		run.fail("INVENTORY_RELEASE_FAILED")
		return fmt.Errorf("%w: release product %d: %w", ErrUpstream, line.ProductID, err)
	}
	run.note(observability.F("remaining_quantity", remaining))

	rest := existing.WithoutLine(line.Index)
	deleted := !rest.HasReservedLines()
	if deleted {
		err = uc.repo.Delete(ctx, existing.ID)
	} else {
		err = uc.repo.Update(ctx, rest)
	}
	if err != nil {
		run.fail("REPO_WRITE_FAILED")
		uc.restore(ctx, run.logger, line)
		return wrapRepositoryError(err)
	}

	if publishErr := uc.publish(ctx, domain.NewOrderCancelledEvent(existing.ID, line.ProductID, line.Units, deleted)); publishErr != nil {
		run.status = "EVENT_PUBLISH_FAILED"
		run.note(observability.F("event_publish_error", publishErr.Error()))
	}
	run.span.SetAttributes(attribute.Bool("order.deleted", deleted))

	return nil
}

func (uc *CancelOrderUseCase) release(ctx context.Context, productID int64, units int) (int, error) {
	callCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	return uc.inventory.Release(callCtx, productID, units)
}

// restore re-reserves a released line when the order record could not be changed,
// so the stored order keeps matching inventory.
func (uc *CancelOrderUseCase) restore(ctx context.Context, logger observability.Logger, line domain.Line) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.timeout)
	defer cancel()
	if _, err := uc.inventory.Reserve(callCtx, line.ProductID, line.Units); err != nil {
		logger.Error("cancel_restore_failed",
			observability.F("product_id", line.ProductID),
			observability.F("units", line.Units),
			observability.Err(err),
		)
	}
}

func (uc *CancelOrderUseCase) publish(ctx context.Context, evt domoutbox.Event) error {
	if uc.publisher == nil {
		return nil
	}
	return publishEvent(ctx, uc.publisher, evt, uc.pubTO, uc.extCounter, uc.extHistogram)
}
