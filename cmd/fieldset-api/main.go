// Package main is the entry point for the fieldset-api server.
// Note: user management and sessions are handled upstream; requests arrive
// with tenant identity headers or a publishable key.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/fieldset/fieldset-api/internal/artifact"
	"github.com/fieldset/fieldset-api/internal/config"
	"github.com/fieldset/fieldset-api/internal/database"
	"github.com/fieldset/fieldset-api/internal/extract"
	"github.com/fieldset/fieldset-api/internal/http/handlers"
	"github.com/fieldset/fieldset-api/internal/http/mw"
	"github.com/fieldset/fieldset-api/internal/logging"
	"github.com/fieldset/fieldset-api/internal/repository"
	"github.com/fieldset/fieldset-api/internal/service"
	"github.com/fieldset/fieldset-api/internal/version"
	"github.com/fieldset/fieldset-api/internal/worker"
)

func main() {
	// Initialize logger with TTY detection and format control
	logger := logging.SetDefault()

	// Log version info first thing
	v := version.Get()
	logger.Info("starting fieldset-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	// Run migrations (with logging for each migration applied)
	if err := database.MigrateWithLogger(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Log current schema version
	schemaVersion, err := database.GetLatestSchemaVersion(db)
	if err != nil {
		logger.Warn("failed to get schema version", "error", err)
	} else if schemaVersion != "" {
		logger.Info("database schema ready", "schema_version", schemaVersion)
	}

	// Initialize repositories
	repos := repository.NewRepositories(db)

	// Artifact storage: S3-compatible when a bucket is configured, otherwise
	// in-memory (evidence does not survive restarts).
	var store artifact.Store
	if cfg.StorageEnabled {
		s3Store, err := artifact.NewS3Store(cfg, logger)
		if err != nil {
			logger.Error("failed to initialize artifact storage", "error", err)
			os.Exit(1)
		}
		store = s3Store
		logger.Info("artifact storage enabled", "bucket", cfg.StorageBucket, "endpoint", cfg.StorageEndpoint)
	} else {
		store = artifact.NewMemoryStore()
		logger.Warn("no artifact bucket configured, using in-memory storage")
	}

	// LLM client
	if cfg.AnthropicAPIKey == "" {
		logger.Warn("ANTHROPIC_API_KEY not set - extraction will fail")
	}
	llm := extract.NewAnthropicClient(cfg.AnthropicAPIKey, logger)

	// Initialize services
	services, err := service.NewServices(cfg, repos, store, llm, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	// Start background worker for pipeline runs and webhook deliveries
	pipelineWorker := worker.New(
		repos,
		services.Pipeline,
		services.Webhook,
		worker.Config{
			PollInterval: cfg.WorkerPollInterval,
			Concurrency:  cfg.WorkerConcurrency,
		},
		logger,
	)
	ctx, cancel := context.WithCancel(context.Background())
	pipelineWorker.Start(ctx)

	// Create router
	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID", "X-Actor-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Request size limit (1MB) - prevent large payload attacks
	router.Use(middleware.RequestSize(1 * 1024 * 1024))

	// Global rate limit by IP
	router.Use(httprate.LimitByIP(100, time.Minute))

	// Create Huma API config for main API with OpenAPI docs
	humaConfig := huma.DefaultConfig("Fieldset API", v.Version)
	humaConfig.Info.Description = "Turns a submitted website URL into a structured, citation-backed record built against a tenant-defined schema."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.BaseURL, Description: "API Server"},
	}
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:        "http",
			Scheme:      "bearer",
			Description: "Publishable key authentication. Include your key in the Authorization header as `Bearer fs_your_key`.",
		},
	}

	// Main API with OpenAPI docs
	api := humachi.New(router, humaConfig)

	// Config for hidden routes (K8s probes - no docs needed)
	hiddenConfig := huma.DefaultConfig("Fieldset API", v.Version)
	hiddenConfig.DocsPath = ""
	hiddenConfig.OpenAPIPath = ""
	hiddenConfig.SchemasPath = ""
	hiddenAPI := humachi.New(router, hiddenConfig)

	// Config for protected routes (documented by the main API)
	protectedConfig := huma.DefaultConfig("Fieldset API", v.Version)
	protectedConfig.Info.Description = humaConfig.Info.Description
	protectedConfig.Servers = humaConfig.Servers
	protectedConfig.DocsPath = ""
	protectedConfig.OpenAPIPath = ""
	protectedConfig.SchemasPath = ""

	// Health check (public, shown in docs)
	huma.Get(api, "/api/v1/health", handlers.HealthCheck)

	// Kubernetes probes (hidden from docs - internal use only)
	huma.Get(hiddenAPI, "/healthz", handlers.Livez)
	readyzHandler := handlers.NewReadyzHandler(db)
	huma.Get(hiddenAPI, "/readyz", readyzHandler.Readyz)

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(mw.Auth(services.PublishableKey, logger))

		protectedAPI := humachi.New(r, protectedConfig)

		// Schema routes
		schemaHandler := handlers.NewSchemaHandler(services.Schema)
		huma.Post(protectedAPI, "/api/v1/schemas", schemaHandler.CreateSchema)
		huma.Get(protectedAPI, "/api/v1/schemas", schemaHandler.ListSchemas)
		huma.Get(protectedAPI, "/api/v1/schemas/{id}", schemaHandler.GetSchema)
		huma.Delete(protectedAPI, "/api/v1/schemas/{id}", schemaHandler.DeleteSchema)
		huma.Post(protectedAPI, "/api/v1/schemas/{id}/versions", schemaHandler.CreateSchemaVersion)
		huma.Get(protectedAPI, "/api/v1/schemas/{id}/versions", schemaHandler.ListSchemaVersions)

		// Submission routes
		submissionHandler := handlers.NewSubmissionHandler(services.Submission, services.Webhook)
		huma.Post(protectedAPI, "/api/v1/submissions", submissionHandler.CreateSubmission)
		huma.Get(protectedAPI, "/api/v1/submissions", submissionHandler.ListSubmissions)
		huma.Get(protectedAPI, "/api/v1/submissions/{id}", submissionHandler.GetSubmission)
		huma.Get(protectedAPI, "/api/v1/submissions/{id}/artifacts", submissionHandler.ListArtifacts)
		huma.Get(protectedAPI, "/api/v1/submissions/{id}/deliveries", submissionHandler.ListSubmissionDeliveries)
		huma.Patch(protectedAPI, "/api/v1/submissions/{id}/fields/{key}", submissionHandler.EditField)
		huma.Post(protectedAPI, "/api/v1/submissions/{id}/confirm", submissionHandler.ConfirmSubmission)
		huma.Post(protectedAPI, "/api/v1/submissions/{id}/retry", submissionHandler.RetrySubmission)

		// Webhook management routes
		webhookHandler := handlers.NewWebhookHandler(services.Webhook)
		huma.Post(protectedAPI, "/api/v1/webhooks", webhookHandler.RegisterWebhook)
		huma.Get(protectedAPI, "/api/v1/webhooks", webhookHandler.ListWebhooks)
		huma.Patch(protectedAPI, "/api/v1/webhooks/{id}", webhookHandler.SetWebhookActive)
		huma.Delete(protectedAPI, "/api/v1/webhooks/{id}", webhookHandler.DeleteWebhook)
		huma.Get(protectedAPI, "/api/v1/webhooks/{id}/deliveries", webhookHandler.ListDeliveries)

		// Publishable key routes
		keyHandler := handlers.NewKeyHandler(services.PublishableKey)
		huma.Post(protectedAPI, "/api/v1/keys", keyHandler.CreateKey)
		huma.Get(protectedAPI, "/api/v1/keys", keyHandler.ListKeys)
		huma.Delete(protectedAPI, "/api/v1/keys/{id}", keyHandler.RevokeKey)

		// Audit log routes
		auditHandler := handlers.NewAuditHandler(services.Audit)
		huma.Get(protectedAPI, "/api/v1/audit-events", auditHandler.ListAuditEvents)
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		logger.Info("shutting down server")

		// Stop the worker first
		cancel()
		pipelineWorker.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	// Start server
	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
