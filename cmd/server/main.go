package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/squill/backend/docs"
	billingapp "github.com/squill/backend/internal/application/billing"
	"github.com/squill/backend/internal/domain/billing"
	"github.com/squill/backend/internal/domain/shared/valueobject"
	"github.com/squill/backend/internal/infrastructure/cache"
	"github.com/squill/backend/internal/infrastructure/config"
	"github.com/squill/backend/internal/infrastructure/logger"
	"github.com/squill/backend/internal/infrastructure/persistence"
	"github.com/squill/backend/internal/infrastructure/printing"
	"github.com/squill/backend/internal/infrastructure/scheduler"
	"github.com/squill/backend/internal/infrastructure/storage"
	"github.com/squill/backend/internal/infrastructure/telemetry"
	"github.com/squill/backend/internal/interfaces/http/handler"
	"github.com/squill/backend/internal/interfaces/http/middleware"
	"github.com/squill/backend/internal/interfaces/http/router"
)

//	@title			Squill Billing API
//	@version		1.0
//	@description	Usage-metered billing: usage ingestion, tiered pricing and invoicing.

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
	}

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetryCfg, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetryCfg, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	log := baseLog
	var loggerProvider *telemetry.LoggerProvider
	if cfg.Telemetry.LogsEnabled {
		loggerProvider, err = telemetry.NewLoggerProvider(ctx, telemetryCfg, baseLog)
		if err != nil {
			baseLog.Fatal("Failed to initialize logger provider", zap.Error(err))
		}
		log = telemetry.Bridge(baseLog, cfg.Telemetry.ServiceName, loggerProvider)
	}
	defer func() { _ = log.Sync() }()

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.PyroscopeAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
		ProfileTypes:    cfg.Telemetry.ProfileTypes,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if cfg.Telemetry.SpanProfiles && profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	log.Info("Starting squill",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", cfg.App.Version),
	)

	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log)
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(log),
		persistence.WithTracing(dbTracing),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	// postgres schemas are owned by cmd/migrate
	if db.Driver() == "sqlite" {
		if err := db.AutoMigrate(ctx); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}
	log.Info("Database connected", zap.String("driver", db.Driver()))

	usageCache, err := cache.NewUsageCacheFactory(cfg.Redis, cfg.Billing.UsageCacheTTL, cache.WithLogger(log)).CreateCache(ctx)
	if err != nil {
		log.Fatal("Failed to create usage cache", zap.Error(err))
	}
	defer func() { _ = usageCache.Close() }()

	billingMetrics, err := telemetry.NewBillingMetrics(meterProvider.Meter("squill/billing"))
	if err != nil {
		log.Fatal("Failed to create billing metrics", zap.Error(err))
	}

	var archiver billingapp.InvoiceArchiver
	if cfg.Storage.Enabled {
		archive, err := storage.NewS3InvoiceArchive(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create invoice archive", zap.Error(err))
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to prepare archive bucket", zap.Error(err), zap.String("bucket", archive.Bucket()))
		}
		archiver = archive
	}

	var renderer billingapp.InvoiceRenderer
	if cfg.Printing.Enabled {
		chrome, err := printing.NewChromedpRenderer(&printing.ChromedpConfig{
			DefaultTimeout: cfg.Printing.Timeout,
			RemoteURL:      cfg.Printing.RemoteURL,
			NoSandbox:      cfg.Printing.NoSandbox,
			Logger:         log,
		})
		if err != nil {
			log.Fatal("Failed to create PDF renderer", zap.Error(err))
		}
		defer func() { _ = chrome.Close() }()
		renderer = chrome
	}

	customerRepo := persistence.NewGormBillingCustomerRepository(db.DB)
	usageRepo := persistence.NewGormUsageEventRepository(db.DB)
	subscriptionRepo := persistence.NewGormSubscriptionRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	tiers := billing.DefaultTierCatalog()
	rates := billing.NewClientRateCatalog(billing.DefaultClientRules())

	usageService := billingapp.NewUsageService(usageRepo, log,
		billingapp.WithUsageCache(usageCache),
		billingapp.WithUsageMetrics(billingMetrics),
	)
	customerService := billingapp.NewCustomerService(customerRepo, log)
	pricingService := billingapp.NewPricingService(subscriptionRepo, tiers, rates, log)
	invoiceService := billingapp.NewInvoiceService(billingapp.InvoiceServiceDeps{
		Customers:     customerRepo,
		Usage:         usageRepo,
		Subscriptions: subscriptionRepo,
		Invoices:      invoiceRepo,
		Tiers:         tiers,
		Rates:         rates,
		Archiver:      archiver,
		Renderer:      renderer,
		Metrics:       billingMetrics,
	}, billingapp.InvoiceServiceConfig{
		Concurrency: cfg.Billing.InvoiceConcurrency,
		DueDays:     cfg.Billing.DueDays,
		Currency:    valueobject.Currency(cfg.Billing.Currency),
		ArchivePDF:  cfg.Billing.ArchivePDF,
	}, log, nil)

	invoiceScheduler, err := scheduler.NewInvoiceScheduler(scheduler.InvoiceSchedulerConfig{
		Enabled:    cfg.Billing.ScheduleEnabled,
		Schedule:   cfg.Billing.ScheduleCron,
		JobTimeout: cfg.Billing.ScheduleTimeout,
	}, invoiceService, log)
	if err != nil {
		log.Fatal("Failed to create invoice scheduler", zap.Error(err))
	}
	if err := invoiceScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start invoice scheduler", zap.Error(err))
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
	}
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	profiling := middleware.DefaultProfilingConfig()
	profiling.Enabled = profiler.IsEnabled()

	meter := meterProvider.Meter("squill/http")
	if !meterProvider.IsEnabled() {
		meter = nil
	}
	engine, err := router.NewEngine(router.EngineConfig{
		ReleaseMode:    cfg.IsProduction(),
		TrustedProxies: cfg.HTTP.TrustedProxies,
		CORS:           cors,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		RateLimiter:    rateLimiter,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracerProvider.IsEnabled(),
		},
		Meter:     meter,
		Profiling: profiling,
	}, log)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	router.Mount(engine, router.Handlers{
		Usage:     handler.NewUsageHandler(usageService),
		Customers: handler.NewCustomerHandler(customerService),
		Pricing:   handler.NewPricingHandler(pricingService),
		Invoices:  handler.NewInvoiceHandler(invoiceService),
		System: handler.NewSystemHandler(cfg.App.Name, cfg.App.Version,
			handler.WithHealthCheck("database", db.Ping),
			handler.WithHealthCheck("cache", usageCache.Ping),
			handler.WithDBStats(db),
			handler.WithInvoiceRunner(invoiceScheduler),
		),
	})

	docs.SwaggerInfo.Version = cfg.App.Version
	router.MountDocs(engine, middleware.SwaggerConfig{
		Enabled:    cfg.HTTP.Swagger.Enabled,
		AllowedIPs: cfg.HTTP.Swagger.AllowedIPs,
	})
	if cfg.HTTP.Swagger.Enabled {
		log.Info("API documentation enabled", zap.Strings("allowed_ips", cfg.HTTP.Swagger.AllowedIPs))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr), zap.String("cache", usageCache.Backend()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := invoiceScheduler.Stop(shutdownCtx); err != nil {
		log.Warn("Invoice scheduler did not stop cleanly", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Profiler did not stop cleanly", zap.Error(err))
	}
	if loggerProvider != nil {
		if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
			baseLog.Warn("Logger provider shutdown failed", zap.Error(err))
		}
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
