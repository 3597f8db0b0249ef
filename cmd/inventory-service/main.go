package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appinv "github.com/Zhima-Mochi/minishop-coordinator/internal/application/inventory"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/config"
	domainInventory "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/memory"
	obsprovider "github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/observability/telemetry"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/redis"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-coordinator/internal/presentation/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadInventory(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	baseLogger := logging.MustNewLogger(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	if err := run(cfg, baseLogger); err != nil {
		baseLogger.Error("inventory_service_exit", zap.Error(err))
		_ = baseLogger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Inventory, baseLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.ServiceName, cfg.Env, cfg.OTel.Endpoint, cfg.OTel.SampleRatio)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	tel := obsprovider.New(obsprovider.Options{ServiceName: cfg.ServiceName, Logger: baseLogger})
	systemLogger := zaplogger.New(logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID))

	var products domainInventory.Repository = memory.NewProductRepository()
	if cfg.Redis.Addr != "" {
		client, err := redis.NewClient(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		products = redis.NewProductStore(client, cfg.Redis.Prefix)
		systemLogger.Info("product_store_redis", observability.F("addr", cfg.Redis.Addr))
	}

	bus := outbox.NewBus(tel, outbox.Config{})
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := kafka.NewPublisher(kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}, tel)
		defer func() { _ = publisher.Close() }()
		publisher.Forward(bus, domainInventory.EventStockReserved, domainInventory.EventStockReleased)
	}
	bus.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		bus.Stop(stopCtx)
	}()

	catalog := appinv.NewCatalog(products, tel)
	if err := seed(ctx, catalog, cfg.Seed); err != nil {
		return err
	}

	handler := httppresentation.NewInventoryHandler(
		catalog,
		appinv.NewReserveStockUseCase(products, bus, tel),
		appinv.NewReleaseStockUseCase(products, bus, tel),
		tel,
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		systemLogger.Info("http_server_start", observability.F("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", observability.Err(err))
		return err
	}
	systemLogger.Info("http_server_stopped")
	return nil
}

// seed creates the configured products when the store is empty.
func seed(ctx context.Context, catalog *appinv.Catalog, items []config.SeedProduct) error {
	if len(items) == 0 {
		return nil
	}
	existing, err := catalog.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, it := range items {
		if _, err := catalog.Create(ctx, &domainInventory.Product{
			Name:              it.Name,
			Description:       it.Description,
			Category:          it.Category,
			Brand:             it.Brand,
			Price:             it.Price,
			AvailableQuantity: it.AvailableQuantity,
		}); err != nil {
			return fmt.Errorf("seed %q: %w", it.Name, err)
		}
	}
	return nil
}
