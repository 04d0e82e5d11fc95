package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	automationapp "github.com/opencrm/backend/internal/application/automation"
	crmapp "github.com/opencrm/backend/internal/application/crm"
	marketingapp "github.com/opencrm/backend/internal/application/marketing"
	platformapp "github.com/opencrm/backend/internal/application/platform"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/auth"
	"github.com/opencrm/backend/internal/infrastructure/cache"
	"github.com/opencrm/backend/internal/infrastructure/config"
	"github.com/opencrm/backend/internal/infrastructure/event"
	"github.com/opencrm/backend/internal/infrastructure/logger"
	"github.com/opencrm/backend/internal/infrastructure/persistence"
	"github.com/opencrm/backend/internal/infrastructure/healthcheck"
	"github.com/opencrm/backend/internal/infrastructure/scheduler"
	"github.com/opencrm/backend/internal/infrastructure/storage"
	"github.com/opencrm/backend/internal/infrastructure/telemetry"
	"github.com/opencrm/backend/internal/interfaces/http/handler"
	"github.com/opencrm/backend/internal/interfaces/http/middleware"
	"github.com/opencrm/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const jobRateLimitSweep = "rate-limit-sweep"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting OpenCRM backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Telemetry. Without a collector the providers fall back to no-ops.
	providers, err := telemetry.NewProviders(ctx, cfg.Telemetry, version, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		_ = providers.Shutdown(context.Background())
	}()
	meter := providers.Meter()

	// Database with the zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.GormLevel(cfg.Database.LogLevel), cfg.Database.SlowThreshold)
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("driver", db.Driver()))

	if err := telemetry.InstrumentGORM(db.DB, telemetry.GORMConfig{
		TraceEnabled:  providers.TracingEnabled() && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:    cfg.Telemetry.DBLogFullSQL,
		SlowThreshold: cfg.Database.SlowThreshold,
	}, meter, log); err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}

	// SQLite is the local development driver and has no SQL migrations
	if db.Driver() == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}

	// Redis-backed stores, in-memory when Redis is off or unreachable
	stores := cache.NewStores(cfg.Redis, cfg.Cache.SettingsTTL, log)
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing cache stores", zap.Error(err))
		}
	}()
	if stores.Tiered != nil {
		if err := stores.Tiered.StartInvalidationSubscription(ctx); err != nil {
			log.Warn("Settings invalidation subscription failed", zap.Error(err))
		}
	}

	// Initialize repositories
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	contactRepo := persistence.NewGormContactRepository(db.DB)
	opportunityRepo := persistence.NewGormOpportunityRepository(db.DB)
	quoteRepo := persistence.NewGormQuoteRepository(db.DB)
	taskRepo := persistence.NewGormTaskRepository(db.DB)
	noteRepo := persistence.NewGormNoteRepository(db.DB)
	activityRepo := persistence.NewGormActivityRepository(db.DB)
	campaignRepo := persistence.NewGormCampaignRepository(db.DB)
	recipientRepo := persistence.NewGormRecipientRepository(db.DB)
	interactionRepo := persistence.NewGormInteractionRepository(db.DB)
	workflowRepo := persistence.NewGormWorkflowRepository(db.DB)
	executionRepo := persistence.NewGormExecutionRepository(db.DB)
	deploymentRepo := persistence.NewGormDeploymentRepository(db.DB)
	settingRepo := persistence.NewGormSettingRepository(db.DB)
	txManager := persistence.NewGormTransactionManager(db.DB)

	// External dependencies of the platform context
	artifacts, err := storage.NewArtifactStore(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize artifact storage", zap.Error(err))
	}
	checker := healthcheck.NewHTTPChecker(cfg.Health, log)

	// Initialize application services
	customerService := crmapp.NewCustomerService(customerRepo, contactRepo, opportunityRepo, activityRepo)
	contactService := crmapp.NewContactService(contactRepo, customerRepo, txManager)
	opportunityService := crmapp.NewOpportunityService(opportunityRepo, customerRepo, contactRepo)
	quoteService := crmapp.NewQuoteService(quoteRepo, customerRepo, opportunityRepo)
	taskService := crmapp.NewTaskService(taskRepo, customerRepo)
	noteService := crmapp.NewNoteService(noteRepo)
	activityService := crmapp.NewActivityService(activityRepo)
	campaignService := marketingapp.NewCampaignService(campaignRepo, recipientRepo, interactionRepo, customerRepo, txManager)
	trackingService := marketingapp.NewTrackingService(campaignRepo, recipientRepo, interactionRepo, txManager)
	settingService := platformapp.NewSettingService(settingRepo, stores.Settings, txManager, log)
	deploymentService := platformapp.NewDeploymentService(deploymentRepo, artifacts, checker, log)

	// Workflow automation drives the CRM services through entity gateways
	gateways := automationapp.NewGateways(automationapp.CRMServices{
		Customers:     customerService,
		Contacts:      contactService,
		Opportunities: opportunityService,
		Quotes:        quoteService,
		Tasks:         taskService,
		Activities:    activityService,
		Campaigns:     campaignService,
	})
	evaluator := automationapp.NewExpressionEvaluator()
	actions := automationapp.NewActionExecutor(gateways, taskService, noteService, activityService)
	actions.SetWebhookTimeout(cfg.Automation.WebhookTimeout)
	workflowEngine := automationapp.NewEngine(workflowRepo, executionRepo, evaluator, actions, log)
	workflowService := automationapp.NewWorkflowService(workflowRepo, executionRepo, gateways, workflowEngine, evaluator, log)

	// Business metrics are recorded by the services and collected per tenant
	if providers.MetricsEnabled() {
		bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
			Meter:       meter,
			Logger:      log,
			CRMProvider: telemetry.NewGormCRMMetricsProvider(db.DB),
		})
		if err != nil {
			log.Fatal("Failed to initialize business metrics", zap.Error(err))
		}
		customerService.SetBusinessMetrics(bm)
		opportunityService.SetBusinessMetrics(bm)
		quoteService.SetBusinessMetrics(bm)
		trackingService.SetBusinessMetrics(bm)
		workflowEngine.SetBusinessMetrics(bm)
		bm.StartPeriodicCollection(ctx, telemetry.NewGormTenantProvider(db.DB), 0)
		defer bm.Stop()
	}

	// Initialize event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)
	idempotency := event.WithIdempotencyConfig(shared.IdempotencyConfig{
		TTL:     cfg.Event.IdempotencyTTL,
		Enabled: cfg.Event.IdempotencyEnabled,
	})

	// Quote accepted -> opportunity won
	quoteAccepted := crmapp.NewQuoteAcceptedHandler(opportunityRepo, log)
	quoteAccepted.SetEventPublisher(eventBus)
	eventBus.Subscribe(event.NewIdempotentHandler("quote_accepted", quoteAccepted, stores.Idempotency, log, idempotency))

	// Domain events -> workflow triggers
	if cfg.Automation.Enabled {
		trigger := automationapp.NewTriggerHandler(workflowRepo, gateways, workflowEngine, log)
		trigger.SetSettings(settingService)
		eventBus.Subscribe(event.NewIdempotentHandler("workflow_trigger", trigger, stores.Idempotency, log, idempotency))
	} else {
		log.Info("Workflow automation disabled, event triggers are not subscribed")
	}

	// Domain events -> Kafka for downstream consumers
	if cfg.Kafka.Enabled {
		serializer := event.NewEventSerializer()
		event.RegisterAllEvents(serializer)
		forwarder := event.NewKafkaForwarder(event.NewKafkaWriter(cfg.Kafka), serializer, log)
		eventBus.Subscribe(forwarder)
		defer func() {
			if err := forwarder.Close(); err != nil {
				log.Error("Error closing kafka forwarder", zap.Error(err))
			}
		}()
		log.Info("Kafka forwarding enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Inject event bus into services that publish events
	customerService.SetEventPublisher(eventBus)
	contactService.SetEventPublisher(eventBus)
	opportunityService.SetEventPublisher(eventBus)
	quoteService.SetEventPublisher(eventBus)
	taskService.SetEventPublisher(eventBus)
	noteService.SetEventPublisher(eventBus)
	activityService.SetEventPublisher(eventBus)
	campaignService.SetEventPublisher(eventBus)
	trackingService.SetEventPublisher(eventBus)
	workflowEngine.SetEventPublisher(eventBus)
	workflowService.SetEventPublisher(eventBus)
	deploymentService.SetEventPublisher(eventBus)
	settingService.SetEventPublisher(eventBus)

	var rateLimiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Background sweeps and scheduled workflows
	if cfg.Scheduler.Enabled {
		cron := scheduler.NewCronScheduler(scheduler.Config{JobTimeout: cfg.Scheduler.JobTimeout}, log)
		jobs := scheduler.CRMJobs{
			Quotes:    quoteService,
			Tasks:     taskService,
			Campaigns: campaignService,
		}
		if cfg.Automation.Enabled {
			jobs.Workflows = workflowService
		}
		if err := scheduler.RegisterCRMJobs(cron, cfg.Scheduler, jobs); err != nil {
			log.Fatal("Failed to register scheduled jobs", zap.Error(err))
		}
		if rateLimiter != nil {
			if err := cron.Register(jobRateLimitSweep, "@every 5m", func(context.Context) error {
				log.Debug("rate limit buckets swept", zap.Int("removed", rateLimiter.Sweep()))
				return nil
			}); err != nil {
				log.Fatal("Failed to register rate limit sweep", zap.Error(err))
			}
		}

		cron.Start()
		defer func() {
			if err := cron.Stop(context.Background()); err != nil {
				log.Error("Error stopping scheduler", zap.Error(err))
			}
		}()

		// Load scheduled workflows now instead of waiting for the first refresh
		if jobs.Workflows != nil {
			if err := cron.RunNow(ctx, scheduler.JobWorkflowRefresh); err != nil {
				log.Warn("Initial workflow schedule refresh failed", zap.Error(err))
			}
		}
		log.Info("Scheduler started", zap.Duration("job_timeout", cfg.Scheduler.JobTimeout))
	}

	// Token validation and revocation
	var revocations auth.RevocationList = auth.NewInMemoryRevocationList()
	if stores.Client != nil {
		revocations = auth.NewRedisRevocationList(stores.Client)
	}

	// Health checks. A nil check reports the dependency as disabled.
	checks := map[string]handler.HealthCheck{
		"database": db.PingContext,
		"redis":    nil,
		"storage":  nil,
	}
	if stores.Client != nil {
		checks["redis"] = func(ctx context.Context) error {
			return stores.Client.Ping(ctx).Err()
		}
	}
	if cfg.Storage.Enabled {
		checks["storage"] = artifacts.Ping
	}

	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	engine, err := router.NewEngine(router.Options{
		ServiceName:  cfg.Telemetry.ServiceName,
		APIVersion:   "v1",
		Production:   cfg.IsProduction(),
		CORS:         middleware.NewCORSConfig(cfg.HTTP),
		MaxBodyBytes: cfg.HTTP.MaxBodySize,
		RateLimiter:  rateLimiter,
		Auth: middleware.AuthConfig{
			Validator:           auth.NewTokenValidator(cfg.JWT),
			Revocations:         revocations,
			AllowHeaderIdentity: !cfg.IsProduction(),
			Logger:              log,
		},
		PlatformRoles:  []string{"admin"},
		Meter:          meter,
		Logger:         log,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, router.Handlers{
		Customers:     handler.NewCustomerHandler(customerService),
		Contacts:      handler.NewContactHandler(contactService),
		Opportunities: handler.NewOpportunityHandler(opportunityService),
		Quotes:        handler.NewQuoteHandler(quoteService),
		Tasks:         handler.NewTaskHandler(taskService),
		Notes:         handler.NewNoteHandler(noteService),
		Activities:    handler.NewActivityHandler(activityService),
		Campaigns:     handler.NewCampaignHandler(campaignService, trackingService),
		Tracking:      handler.NewTrackingHandler(trackingService),
		Workflows:     handler.NewWorkflowHandler(workflowService),
		Deployments:   handler.NewDeploymentHandler(deploymentService),
		Settings:      handler.NewSettingHandler(settingService),
		Health:        handler.NewHealthHandler(cfg.App.Name, version, checks),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("Shutting down server", zap.String("signal", sig.String()))
	case err := <-serveErr:
		log.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	stop()

	log.Info("Server exited gracefully")
}
