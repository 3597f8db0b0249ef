package inventory

import (
	"context"
	"fmt"
	"time"

	dominv "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	useCaseCreate = "inventory.create_product"
	useCaseGet    = "inventory.get_product"
	useCaseList   = "inventory.list_products"
)

// Catalog serves product reads and creation for the inventory HTTP surface.
type Catalog struct {
	repo         dominv.Repository
	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewCatalog(repo dominv.Repository, tel observability.Observability) *Catalog {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Catalog{
		repo:         repo,
		log:          tel.Logger().With(observability.F("service", inventoryService)),
		tracer:       tel.Tracer(),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

func (c *Catalog) Create(ctx context.Context, p *dominv.Product) (_ *dominv.Product, err error) {
	ctx, done := c.observe(ctx, useCaseCreate, "CreateProduct")
	defer func() { done(err) }()

	if err := p.Validate(); err != nil {
		return nil, err
	}
	created, err := c.repo.Create(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("inventory: create: %w", err)
	}
	return created, nil
}

func (c *Catalog) Get(ctx context.Context, id int64) (_ *dominv.Product, err error) {
	ctx, done := c.observe(ctx, useCaseGet, "GetProduct", attribute.Int64("product.id", id))
	defer func() { done(err) }()

	return c.repo.Get(ctx, id)
}

func (c *Catalog) List(ctx context.Context) (_ []*dominv.Product, err error) {
	ctx, done := c.observe(ctx, useCaseList, "ListProducts")
	defer func() { done(err) }()

	products, err := c.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("inventory: list: %w", err)
	}
	if products == nil {
		products = []*dominv.Product{}
	}
	return products, nil
}

// observe opens the use case span and returns the func that closes it and records
// RED metrics. Reads are logged at debug level.
func (c *Catalog) observe(ctx context.Context, useCase, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	attrs = append(attrs, attribute.String("use_case", useCase))
	ctx, span := c.tracer.Start(ctx, spanPrefix+name, attrs...)
	logger := logctx.FromOr(ctx, c.log).With(observability.F("use_case", useCase))
	start := time.Now()

	return ctx, func(err error) {
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		latency := time.Since(start).Seconds()
		c.reqCounter.Add(1, observability.L("use_case", useCase), observability.L("outcome", outcome))
		c.durHistogram.Observe(latency, observability.L("use_case", useCase))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("latency_seconds", latency),
		}
		if err != nil {
			logger.Warn("use_case_done", append(fields, observability.Err(err))...)
			return
		}
		if useCase == useCaseCreate {
			logger.Info("use_case_done", fields...)
			return
		}
		logger.Debug("use_case_done", fields...)
	}
}
