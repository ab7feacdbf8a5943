package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	syncapp "github.com/oms/backend/internal/application/sync"
	"github.com/oms/backend/internal/application/tracking"
	"github.com/oms/backend/internal/domain/carrier"
	carrierinfra "github.com/oms/backend/internal/infrastructure/carrier"
	"github.com/oms/backend/internal/infrastructure/cache"
	"github.com/oms/backend/internal/infrastructure/config"
	"github.com/oms/backend/internal/infrastructure/logger"
	marketplaceinfra "github.com/oms/backend/internal/infrastructure/marketplace"
	"github.com/oms/backend/internal/infrastructure/persistence"
	"github.com/oms/backend/internal/infrastructure/scheduler"
	"github.com/oms/backend/internal/infrastructure/telemetry"
	"github.com/oms/backend/internal/interfaces/http/handler"
	"github.com/oms/backend/internal/interfaces/http/middleware"
	"github.com/oms/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//	@title			OMS Backend API
//	@version		1.0
//	@description	Order management backend - carrier tracking and marketplace synchronization

//	@contact.name	API Support
//	@contact.url	https://github.com/oms/backend

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting OMS Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, log, gormLogLevel)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize distributed tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.App.Name,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Idempotency store for webhook fast-path dedupe. When the Redis fast
	// path is disabled the pipeline still dedupes against the event log.
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	var dedupeStore = storeFactory.CreateInMemoryStore()
	if cfg.Pipeline.DedupeEnabled {
		dedupeStore, err = storeFactory.CreateStore()
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
	}

	// Carrier adapters
	carrierRegistry := carrierinfra.NewRegistry()
	carrierRegistry.Register(carrierinfra.NewShiprocketAdapter(cfg.Carrier.RequestTimeout))
	carrierRegistry.Register(carrierinfra.NewDelhiveryAdapter(cfg.Carrier.RequestTimeout))

	// Marketplace adapters
	marketplaceRegistry := marketplaceinfra.NewRegistry()
	marketplaceRegistry.Register(marketplaceinfra.NewShopifyAdapter(cfg.Carrier.RequestTimeout))
	marketplaceRegistry.Register(marketplaceinfra.NewAmazonAdapter(cfg.Carrier.RequestTimeout, cfg.Sync.AmazonMarketplaceID))

	// Initialize repositories
	deliveryRepo := persistence.NewGormDeliveryRepository(db.DB)
	transporterRepo := persistence.NewGormTransporterRepository(db.DB)
	webhookEventRepo := persistence.NewGormWebhookEventRepository(db.DB)
	connectionRepo := persistence.NewGormConnectionRepository(db.DB)
	syncJobRepo := persistence.NewGormSyncJobRepository(db.DB)
	skuMappingRepo := persistence.NewGormSkuMappingRepository(db.DB)
	orderRecordRepo := persistence.NewGormOrderRecordRepository(db.DB)
	inventoryRecordRepo := persistence.NewGormInventoryRecordRepository(db.DB)
	settlementRecordRepo := persistence.NewGormSettlementRecordRepository(db.DB)
	applier := persistence.NewGormTransactionalApplier(db.DB)

	// Initialize application services
	statusMapper := carrier.NewDefaultStatusMapper()
	pipeline := tracking.NewStatusPipeline(
		deliveryRepo,
		transporterRepo,
		webhookEventRepo,
		statusMapper,
		dedupeStore,
		applier,
		tracking.PipelineConfig{
			DeferWindow:        cfg.Pipeline.DeferWindow,
			DeferRetryInterval: cfg.Pipeline.DeferRetryInterval,
			DedupeTTL:          cfg.Pipeline.DedupeTTL,
		},
		log,
	)
	trackingService := tracking.NewTrackingService(
		pipeline,
		deliveryRepo,
		transporterRepo,
		webhookEventRepo,
		carrierRegistry,
		log,
	)
	shipmentService := tracking.NewShipmentService(
		deliveryRepo,
		transporterRepo,
		carrierRegistry,
		log,
	)
	coordinator := syncapp.NewCoordinator(
		connectionRepo,
		syncJobRepo,
		skuMappingRepo,
		orderRecordRepo,
		inventoryRecordRepo,
		settlementRecordRepo,
		marketplaceRegistry,
		syncapp.CoordinatorConfig{
			PageSize:        cfg.Sync.PageSize,
			PageBudget:      cfg.Sync.PageBudget,
			FetchMaxElapsed: cfg.Sync.FetchMaxElapsed,
		},
		log,
	)
	connectionService := syncapp.NewConnectionService(connectionRepo, skuMappingRepo, log)

	// Background loops. Each runs until the shared context is cancelled at
	// shutdown.
	schedulerCtx, stopSchedulers := context.WithCancel(context.Background())
	defer stopSchedulers()

	var trackingPoller *scheduler.TrackingPoller
	if cfg.Poller.TrackingEnabled {
		trackingPoller = scheduler.NewTrackingPoller(scheduler.TrackingPollerConfig{
			Interval:  cfg.Poller.TrackingInterval,
			BatchSize: cfg.Poller.TrackingBatchSize,
		}, trackingService, transporterRepo, log)
		if err := trackingPoller.Start(schedulerCtx); err != nil {
			log.Fatal("Failed to start tracking poller", zap.Error(err))
		}
		log.Info("Tracking poller started",
			zap.Duration("interval", cfg.Poller.TrackingInterval),
			zap.Int("batch_size", cfg.Poller.TrackingBatchSize),
		)
	}

	var deferredRetryLoop *scheduler.DeferredRetryLoop
	if cfg.Poller.DeferredRetryEnabled {
		deferredRetryLoop = scheduler.NewDeferredRetryLoop(scheduler.DeferredRetryConfig{
			Interval:  cfg.Poller.DeferredRetryInterval,
			BatchSize: cfg.Poller.DeferredRetryBatch,
		}, pipeline, log)
		if err := deferredRetryLoop.Start(schedulerCtx); err != nil {
			log.Fatal("Failed to start deferred retry loop", zap.Error(err))
		}
		log.Info("Deferred retry loop started",
			zap.Duration("interval", cfg.Poller.DeferredRetryInterval),
		)
	}

	var syncTrigger *scheduler.SyncTrigger
	if cfg.Sync.Enabled {
		syncTrigger = scheduler.NewSyncTrigger(scheduler.SyncTriggerConfig{
			CheckInterval:      cfg.Sync.CheckInterval,
			OrderInterval:      cfg.Sync.OrderInterval,
			InventoryInterval:  cfg.Sync.InventoryInterval,
			SettlementInterval: cfg.Sync.SettlementInterval,
		}, coordinator, connectionRepo, log)
		if err := syncTrigger.Start(schedulerCtx); err != nil {
			log.Fatal("Failed to start sync trigger", zap.Error(err))
		}
		log.Info("Marketplace sync trigger started",
			zap.Duration("check_interval", cfg.Sync.CheckInterval),
		)
	}

	// Initialize HTTP handlers
	webhookHandler := handler.NewWebhookHandler(transporterRepo, carrierRegistry, pipeline, log)
	trackingHandler := handler.NewTrackingHandler(trackingService)
	shipmentHandler := handler.NewShipmentHandler(shipmentService)
	syncHandler := handler.NewSyncHandler(coordinator, log)
	connectionHandler := handler.NewConnectionHandler(connectionService)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Tracing - Record request spans
	// 5. Security - Add security headers
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	// 8. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.App.Name,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Carrier webhook endpoints. These are called directly by carrier
	// platforms; authenticity is established per-request by signature
	// verification against the transporter's webhook secret.
	webhookGroup := engine.Group("/api/v1/webhooks")
	webhookGroup.POST("/carriers/:carrier/:transporterId", webhookHandler.Receive)

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Tracking domain (deliveries, events)
	trackingRoutes := router.NewDomainGroup("tracking", "/tracking")
	trackingRoutes.GET("/deliveries/:id", trackingHandler.GetDelivery)
	trackingRoutes.GET("/deliveries/by-awb", trackingHandler.GetDeliveryByAWB)
	trackingRoutes.POST("/deliveries/:id/refresh", trackingHandler.Refresh)
	trackingRoutes.POST("/deliveries/:id/override", trackingHandler.Override)
	trackingRoutes.POST("/transporters/:id/poll", trackingHandler.Poll)
	trackingRoutes.GET("/events", trackingHandler.ListEvents)
	r.Register(trackingRoutes)

	// Shipment domain (booking, rates, transporter accounts)
	shipmentRoutes := router.NewDomainGroup("shipments", "/shipments")
	shipmentRoutes.POST("", shipmentHandler.Create)
	shipmentRoutes.POST("/:id/cancel", shipmentHandler.Cancel)
	shipmentRoutes.POST("/rates", shipmentHandler.RateQuote)
	r.Register(shipmentRoutes)

	transporterRoutes := router.NewDomainGroup("transporters", "/transporters")
	transporterRoutes.POST("", shipmentHandler.RegisterTransporter)
	transporterRoutes.GET("", shipmentHandler.ListTransporters)
	transporterRoutes.GET("/:id", shipmentHandler.GetTransporter)
	transporterRoutes.GET("/:id/serviceability", shipmentHandler.Serviceability)
	r.Register(transporterRoutes)

	// Marketplace sync domain (connections, jobs, SKU mappings)
	syncRoutes := router.NewDomainGroup("sync", "/sync")
	syncRoutes.POST("/connections", connectionHandler.Create)
	syncRoutes.GET("/connections", connectionHandler.List)
	syncRoutes.GET("/connections/:id", connectionHandler.Get)
	syncRoutes.POST("/connections/:id/disable", connectionHandler.Disable)
	syncRoutes.POST("/connections/:id/trigger", syncHandler.Trigger)
	syncRoutes.PUT("/connections/:id/sku-mappings", connectionHandler.UpsertSkuMapping)
	syncRoutes.GET("/connections/:id/sku-mappings", connectionHandler.ListSkuMappings)
	syncRoutes.DELETE("/connections/:id/sku-mappings/:sku", connectionHandler.DisableSkuMapping)
	syncRoutes.GET("/jobs", syncHandler.ListJobs)
	syncRoutes.GET("/jobs/:id", syncHandler.GetJob)
	syncRoutes.POST("/jobs/:id/retry", syncHandler.Retry)
	r.Register(syncRoutes)

	// System routes
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	r.Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopSchedulers()
	if trackingPoller != nil {
		if err := trackingPoller.Stop(ctx); err != nil {
			log.Error("Error stopping tracking poller", zap.Error(err))
		}
	}
	if deferredRetryLoop != nil {
		if err := deferredRetryLoop.Stop(ctx); err != nil {
			log.Error("Error stopping deferred retry loop", zap.Error(err))
		}
	}
	if syncTrigger != nil {
		if err := syncTrigger.Stop(ctx); err != nil {
			log.Error("Error stopping sync trigger", zap.Error(err))
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
