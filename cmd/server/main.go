package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fbsamples/cp-reference/internal/application/ordersync"
	"github.com/fbsamples/cp-reference/internal/domain/order"
	"github.com/fbsamples/cp-reference/internal/infrastructure/cache"
	"github.com/fbsamples/cp-reference/internal/infrastructure/config"
	"github.com/fbsamples/cp-reference/internal/infrastructure/ecommerce"
	"github.com/fbsamples/cp-reference/internal/infrastructure/logger"
	"github.com/fbsamples/cp-reference/internal/infrastructure/persistence"
	"github.com/fbsamples/cp-reference/internal/infrastructure/scheduler"
	"github.com/fbsamples/cp-reference/internal/infrastructure/telemetry"
	"github.com/fbsamples/cp-reference/internal/interfaces/http/handler"
	"github.com/fbsamples/cp-reference/internal/interfaces/http/router"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// OTEL logs need a logger to report their own setup, so the bridged
	// logger is built second
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize OTEL logs", zap.Error(err))
	}
	log, err := logger.New(logCfg, logger.WithCore(telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		LoggerProvider: loggerProvider,
		Level:          logger.ParseLevel(cfg.Log.Level),
	})))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting order sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.Telemetry.ServiceName,
		BasicAuthUser:     cfg.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Profiling.BasicAuthPassword,
		ProfileCPU:        true,
		ProfileAllocSpace: true,
		ProfileInuseSpace: true,
		ProfileGoroutines: true,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if cfg.Profiling.Enabled && cfg.Profiling.SpanProfiles {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		} else if !tracerProvider.IsSpanProfilesEnabled() {
			log.Warn("Span profiles requested but tracing is disabled")
		}
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.GormLevel))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		}, log)
		if err := plugin.RegisterOtelGorm(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}
	log.Info("Database connected successfully")

	orderRepo := persistence.NewGormOrderRepository(db.DB)
	storeRepo := persistence.NewGormStoreRepository(db.DB)
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)
	uow := persistence.NewGormUnitOfWork(db.DB)

	var actionLock order.ActionLock
	if cfg.Redis.Enabled {
		// A configured Redis must be reachable
		actionLock, err = cache.NewLockFactory(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cache.WithLogger(log), cache.WithInMemoryFallback(false)).CreateLock()
		if err != nil {
			log.Fatal("Failed to create action lock", zap.Error(err))
		}
	} else {
		log.Warn("Redis disabled, using in-memory action lock")
		actionLock = cache.NewInMemoryActionLock()
	}

	graphConfig := ecommerce.NewGraphConfig()
	if cfg.Commerce.BaseURL != "" {
		graphConfig.APIBaseURL = cfg.Commerce.BaseURL
	}
	if cfg.Commerce.TimeoutSeconds > 0 {
		graphConfig.TimeoutSeconds = cfg.Commerce.TimeoutSeconds
	}
	if cfg.Commerce.MaxPages > 0 {
		graphConfig.MaxPages = cfg.Commerce.MaxPages
	}
	if cfg.Commerce.Burst > 0 {
		graphConfig.Burst = cfg.Commerce.Burst
	}
	graphConfig.RequestsPerSecond = cfg.Commerce.RequestsPerSecond
	platform, err := ecommerce.NewGraphAdapter(graphConfig, log)
	if err != nil {
		log.Fatal("Failed to create commerce platform client", zap.Error(err))
	}

	syncMetrics, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:  meterProvider.Meter("cp-reference/ordersync"),
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	writer := ordersync.NewWriter(uow, productRepo, log)
	acknowledger := ordersync.NewAcknowledger(platform, uow, log)
	syncService := ordersync.NewSyncService(
		ordersync.SyncServiceConfig{LockTTL: cfg.Sync.LockTTL, ActionLockTTL: cfg.Sync.ActionLockTTL},
		storeRepo, platform, writer, acknowledger, uow, log,
	)
	syncService.SetActionLock(actionLock)
	syncService.SetSyncMetrics(syncMetrics)

	lifecycleService := ordersync.NewLifecycleService(
		ordersync.LifecycleConfig{LockTTL: cfg.Sync.ActionLockTTL},
		orderRepo, storeRepo, platform, uow, actionLock, log,
	)
	lifecycleService.SetSyncMetrics(syncMetrics)

	queryService := ordersync.NewQueryService(orderRepo, customerRepo, productRepo, log)

	// The scheduler always runs so on-demand syncs work; the periodic
	// trigger only when sync is enabled
	schedulerConfig := scheduler.DefaultSyncSchedulerConfig()
	if cfg.Sync.Workers > 0 {
		schedulerConfig.Workers = cfg.Sync.Workers
	}
	if cfg.Sync.RunTimeout > 0 {
		schedulerConfig.RunTimeout = cfg.Sync.RunTimeout
	}
	syncScheduler, err := scheduler.NewSyncScheduler(schedulerConfig, syncService, log)
	if err != nil {
		log.Fatal("Failed to create sync scheduler", zap.Error(err))
	}
	if err := syncScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start sync scheduler", zap.Error(err))
	}

	var syncTrigger *scheduler.PeriodicSyncTrigger
	if cfg.Sync.Enabled {
		triggerConfig := scheduler.DefaultSyncTriggerConfig()
		if cfg.Sync.Interval > 0 {
			triggerConfig.Interval = cfg.Sync.Interval
		}
		if cfg.Sync.Stagger > 0 {
			triggerConfig.Stagger = cfg.Sync.Stagger
		}
		syncTrigger, err = scheduler.NewPeriodicSyncTrigger(triggerConfig, syncScheduler, storeRepo, log)
		if err != nil {
			log.Fatal("Failed to create periodic sync trigger", zap.Error(err))
		}
		if err := syncTrigger.Start(ctx); err != nil {
			log.Fatal("Failed to start periodic sync trigger", zap.Error(err))
		}
	} else {
		log.Info("Periodic sync disabled")
	}

	httpMeter := meterProvider.Meter("cp-reference/http")
	if !meterProvider.IsEnabled() {
		httpMeter = nil
	}
	engine := router.NewEngine(router.EngineOptions{
		ServiceName:      cfg.Telemetry.ServiceName,
		Env:              cfg.App.Env,
		HTTP:             cfg.HTTP,
		Logger:           log,
		Meter:            httpMeter,
		TracingEnabled:   tracerProvider.IsEnabled(),
		ProfilingEnabled: cfg.Profiling.Enabled,
	})

	healthHandler := handler.NewHealthHandler(cfg.App.Name, version, db, syncScheduler)
	orderHandler := handler.NewOrderHandler(queryService, lifecycleService, syncScheduler)

	router.NewRouter(engine, router.WithAPIVersion("v1"), router.WithHealth(healthHandler.Health)).
		Register(healthHandler).
		Register(orderHandler).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg.HTTP.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if syncTrigger != nil {
		if err := syncTrigger.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping periodic sync trigger", zap.Error(err))
		}
	}
	if err := syncScheduler.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping sync scheduler", zap.Error(err))
	}
	// Spans of cancelled sync runs
	if err := tracerProvider.ForceFlush(shutdownCtx); err != nil {
		log.Warn("Failed to flush spans", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited")
}

func shutdownTimeout(configured time.Duration) time.Duration {
	if configured > 0 {
		return configured
	}
	return 30 * time.Second
}
