// Workflow engine server: REST + webhook/email ingress, job queue workers,
// cron scheduler, and the execution progress websocket.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mailgun/mailgun-go/v4"

	"github.com/wflowhq/engine/internal/api"
	"github.com/wflowhq/engine/internal/config"
	"github.com/wflowhq/engine/internal/credential"
	"github.com/wflowhq/engine/internal/idgen"
	"github.com/wflowhq/engine/internal/infrastructure/cache"
	"github.com/wflowhq/engine/internal/infrastructure/logger"
	"github.com/wflowhq/engine/internal/ingress"
	"github.com/wflowhq/engine/internal/notify"
	"github.com/wflowhq/engine/internal/orchestrator"
	"github.com/wflowhq/engine/internal/progress"
	"github.com/wflowhq/engine/internal/queue"
	"github.com/wflowhq/engine/internal/scheduler"
	"github.com/wflowhq/engine/internal/storage"
	"github.com/wflowhq/engine/pkg/action"
	"github.com/wflowhq/engine/pkg/action/builtin"
	"github.com/wflowhq/engine/pkg/stepexec"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.Logging)
	logger.SetDefault(appLogger)

	appLogger.Info("Starting workflow engine",
		"port", cfg.Server.Port,
		"queue_concurrency", cfg.Queue.Concurrency,
	)

	db, err := storage.NewDB(storage.Config{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		Debug:           cfg.Logging.Level == "debug",
	})
	if err != nil {
		appLogger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer storage.Close(db)
	appLogger.Info("Database connected")

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		appLogger.Error("Failed to connect to Redis - the job queue cannot run without it", "error", err)
		os.Exit(1)
	}
	defer redisCache.Close()
	appLogger.Info("Redis connected", "addr", cfg.Redis.Addr())

	// Repositories
	workflowRepo := storage.NewWorkflowRepository(db)
	triggerRepo := storage.NewTriggerRepository(db)
	executionRepo := storage.NewExecutionRepository(db)
	stepLogRepo := storage.NewStepLogRepository(db)
	credentialRepo := storage.NewCredentialRepository(db)

	// Credential store. A missing encryption key degrades per-action rather
	// than failing startup.
	var credentials *credential.Service
	if cfg.Crypto.EncryptionKey != "" {
		credentials, err = credential.New(credentialRepo, cfg.Crypto.EncryptionKey)
		if err != nil {
			appLogger.Error("Failed to initialize credential store", "error", err)
			os.Exit(1)
		}
		appLogger.Info("Credential store initialized")
	} else {
		appLogger.Warn("ENCRYPTION_KEY not set - credential-backed actions will fail")
	}

	// Action registry
	registry := action.NewRegistry()
	if err := builtin.RegisterBuiltins(registry, cfg.Email.NotificationFrom); err != nil {
		appLogger.Error("Failed to register built-in actions", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Registered actions", "types", registry.List())

	executor := stepexec.New(registry, credentialServices{credentials})

	// Progress bus + websocket hub
	hub := progress.NewHub(stepLogRepo)
	bus := progress.NewBus()
	if err := bus.Register(progress.NewWebSocketObserver(hub)); err != nil {
		appLogger.Error("Failed to register websocket observer", "error", err)
		os.Exit(1)
	}

	// Job queue + scheduler
	jobQueue := queue.New(redisCache.Client())
	sched := scheduler.New(jobQueue, triggerRepo, workflowRepo, redisCache)

	var notifier orchestrator.ErrorNotifier
	if cfg.Email.ResendAPIKey != "" {
		notifier = notify.NewResendNotifier(cfg.Email.ResendAPIKey, cfg.Email.NotificationFrom)
		appLogger.Info("Failure notification email enabled")
	}

	orch := orchestrator.New(orchestrator.Config{
		Workflows:  workflowRepo,
		Executions: executionRepo,
		StepLogs:   stepLogRepo,
		Triggers:   triggerRepo,
		Executor:   executor,
		Queue:      jobQueue,
		Bus:        bus,
		Notifier:   notifier,
		NewID:      idgen.New,
	})

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	jobQueue.Worker(workerCtx, ingress.ExecuteJob, cfg.Queue.Concurrency, orch.HandleExecute)
	jobQueue.Worker(workerCtx, scheduler.ScheduledExecutionJob, cfg.Queue.Concurrency, orch.HandleScheduled)
	appLogger.Info("Queue workers started", "concurrency", cfg.Queue.Concurrency)

	if err := sched.Start(workerCtx); err != nil {
		appLogger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Scheduler started")

	// Mailgun client for inbound-email signature verification, optional.
	var mg mailgun.Mailgun
	if cfg.Email.MailgunAPIKey != "" {
		mg = mailgun.NewMailgun(cfg.Email.MailgunDomain, cfg.Email.MailgunAPIKey)
	}

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := storage.Ping(ctx, db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database: " + err.Error()})
			return
		}
		if err := redisCache.Health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "redis: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router := &api.Router{
		Workflows:  api.NewWorkflowHandlers(workflowRepo, triggerRepo, executionRepo, sched, jobQueue),
		Executions: api.NewExecutionHandlers(executionRepo, stepLogRepo, orch),
		Triggers:   api.NewTriggerHandlers(triggerRepo, workflowRepo, sched, cfg.Webhook.APIBaseURL, cfg.Email.InboundEmailDomain),
		Webhook:    ingress.NewWebhookHandler(triggerRepo, workflowRepo, executionRepo, jobQueue),
		Email:      ingress.NewEmailHandler(triggerRepo, workflowRepo, executionRepo, jobQueue, mg),
		Hub:        hub,
		CORSOrigin: cfg.Server.CORSOrigin,
	}
	if credentials != nil {
		router.Credentials = api.NewCredentialHandlers(credentials, credentialRepo)
	}
	router.Register(engine)
	appLogger.Info("Routes registered")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		appLogger.Info("HTTP server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		appLogger.Error("Server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		appLogger.Info("Server shutdown initiated", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		sched.Stop(ctx)
		stopWorkers()

		if err := server.Shutdown(ctx); err != nil {
			appLogger.Error("Graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				appLogger.Error("Server close failed", "error", err)
			}
		}
		appLogger.Info("Server stopped")
	}
}

// credentialServices adapts the credential store (which may be nil when no
// encryption key is configured) to the action.Services interface.
type credentialServices struct {
	store *credential.Service
}

func (s credentialServices) GetCredential(ctx context.Context, credentialID string) (map[string]interface{}, bool) {
	if s.store == nil {
		return nil, false
	}
	return s.store.GetCredential(ctx, credentialID)
}
