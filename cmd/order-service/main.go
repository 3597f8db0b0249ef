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

	apporder "github.com/Zhima-Mochi/minishop-coordinator/internal/application/order"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/config"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/domain/intent"
	domainOrder "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/inventoryhttp"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/mysql"
	obsprovider "github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/observability/telemetry"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/redis"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/sqlite"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-coordinator/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-coordinator/internal/presentation/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadOrder(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	baseLogger := logging.MustNewLogger(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	if err := run(cfg, baseLogger); err != nil {
		baseLogger.Error("order_service_exit", zap.Error(err))
		_ = baseLogger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Order, baseLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.ServiceName, cfg.Env, cfg.OTel.Endpoint, cfg.OTel.SampleRatio)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	tel := obsprovider.New(obsprovider.Options{ServiceName: cfg.ServiceName, Logger: baseLogger})
	systemLogger := zaplogger.New(logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID))

	var orderRepo domainOrder.Repository = memory.NewOrderRepository()
	if cfg.MySQL.Addr != "" {
		db, err := mysql.Open(mysql.Config{
			Addr:     cfg.MySQL.Addr,
			User:     cfg.MySQL.User,
			Password: cfg.MySQL.Password,
			Database: cfg.MySQL.Database,
		})
		if err != nil {
			return err
		}
		orderRepo = mysql.NewOrderRepository(db)
		systemLogger.Info("order_store_mysql", observability.F("addr", cfg.MySQL.Addr))
	}

	var intents intent.Log = memory.NewIntentLog()
	if cfg.IntentLog.Path != "" {
		intentLog, err := sqlite.Open(cfg.IntentLog.Path)
		if err != nil {
			return err
		}
		defer func() { _ = intentLog.Close() }()
		intents = intentLog
	}

	var (
		idempotency apporder.IdempotencyStore = memory.NewIdempotencyStore()
		locker      apporder.Locker
	)
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
		idempotency = redis.NewIdempotencyStore(client, cfg.Redis.Prefix)
		locker = redis.NewLocker(client, cfg.Redis.Prefix)
	}

	bus := outbox.NewBus(tel, outbox.Config{})
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := kafka.NewPublisher(kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}, tel)
		defer func() { _ = publisher.Close() }()
		publisher.Forward(bus,
			domainOrder.OrderPlacedEvent{}.EventName(),
			domainOrder.OrderCancelledEvent{}.EventName(),
		)
	}
	bus.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		bus.Stop(stopCtx)
	}()

	inventory := inventoryhttp.New(cfg.Inventory.BaseURL, &http.Client{}, tel)
	placeCfg := apporder.PlaceConfig{
		LineWorkers:      cfg.Coordinator.LineWorkers,
		InventoryTimeout: cfg.Inventory.Timeout,
		PublishTimeout:   cfg.Coordinator.PublishTimeout,
		IdempotencyTTL:   cfg.Coordinator.IdempotencyTTL,
		IdempotencyLease: cfg.Coordinator.IdempotencyLease,
	}

	handler := httppresentation.NewOrderHandler(
		apporder.NewPlaceOrderUseCase(orderRepo, inventory, intents, id.UUID{}, idempotency, bus, tel, placeCfg),
		apporder.NewCancelOrderUseCase(orderRepo, inventory, bus, tel, placeCfg),
		apporder.NewListOrdersUseCase(orderRepo, tel),
		tel,
	)

	reconciler := workerpresentation.NewReconciler(
		apporder.NewReconcileUseCase(orderRepo, intents, inventory, locker, tel, apporder.ReconcileConfig{
			Grace:            cfg.Reconcile.Grace,
			InventoryTimeout: cfg.Inventory.Timeout,
		}),
		cfg.Reconcile.Interval,
		tel,
	)
	go reconciler.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	return serve(ctx, &http.Server{Addr: cfg.HTTP.Addr, Handler: mux}, cfg.HTTP.ShutdownTimeout, systemLogger)
}

func serve(ctx context.Context, server *http.Server, shutdownTimeout time.Duration, logger observability.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_server_start", observability.F("addr", server.Addr))
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", observability.Err(err))
		return err
	}
	logger.Info("http_server_stopped")
	return nil
}
