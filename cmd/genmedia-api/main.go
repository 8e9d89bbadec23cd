// Package main is the entry point for the genmedia-api server.
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

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/stripe/stripe-go/v78"

	"github.com/jmylchreest/genmedia-api/internal/auth"
	"github.com/jmylchreest/genmedia-api/internal/catalog"
	"github.com/jmylchreest/genmedia-api/internal/config"
	"github.com/jmylchreest/genmedia-api/internal/database"
	"github.com/jmylchreest/genmedia-api/internal/http/handlers"
	"github.com/jmylchreest/genmedia-api/internal/http/mw"
	"github.com/jmylchreest/genmedia-api/internal/http/routes"
	"github.com/jmylchreest/genmedia-api/internal/logging"
	"github.com/jmylchreest/genmedia-api/internal/provider"
	"github.com/jmylchreest/genmedia-api/internal/repository"
	"github.com/jmylchreest/genmedia-api/internal/service"
	"github.com/jmylchreest/genmedia-api/internal/shutdown"
	"github.com/jmylchreest/genmedia-api/internal/ttlstore"
	"github.com/jmylchreest/genmedia-api/internal/version"
	"github.com/jmylchreest/genmedia-api/internal/worker"
)

func main() {
	// A local .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	// Initialize logger with TTY detection, source paths, and format control
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting genmedia-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(database.Options{
		DSN:            cfg.DatabaseURL,
		TursoURL:       cfg.TursoURL,
		TursoAuthToken: cfg.TursoAuthToken,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	if schemaVersion, count, err := database.SchemaVersion(db); err != nil {
		logger.Warn("failed to get schema version", "error", err)
	} else if schemaVersion != "" {
		logger.Info("database schema ready", "schema_version", schemaVersion, "migrations_applied", count)
	}

	repos := repository.NewRepositories(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Model catalog: built-in table, optionally replaced by a local file and
	// later by the object-storage copy.
	cat := catalog.New(catalog.Options{
		DefaultCost:   cfg.Pricing.DefaultJobCost,
		CostOverrides: cfg.Pricing.ModelCosts,
	})
	if cfg.ModelCatalogPath != "" {
		if err := cat.LoadFile(cfg.ModelCatalogPath); err != nil {
			logger.Error("failed to load model catalog", "path", cfg.ModelCatalogPath, "error", err)
			os.Exit(1)
		}
	}
	logger.Info("model catalog ready", "models", cat.Len())

	// Ephemeral request state
	var store ttlstore.Store = ttlstore.NewMemoryStore()
	if cfg.RedisURL != "" {
		client, err := ttlstore.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer func() { _ = client.Close() }()
		store = ttlstore.NewRedisStore(client, ttlstore.WithKeyPrefix("genmedia:"))
		logger.Info("redis ttl store enabled")
	}

	var publisher provider.Publisher
	if cfg.SocialEnabled() {
		publisher = provider.NewSocialClient(provider.ClientConfig{BaseURL: cfg.SocialAPIURL}, cfg.SocialAPIKey)
	}

	queue := worker.New(worker.Config{Workers: cfg.QueueWorkers, Capacity: cfg.QueueCapacity}, logger)
	queue.Start(ctx)

	services, err := service.NewServices(cfg, repos, service.Deps{
		Catalog:   cat,
		Adapters:  service.NewAdapters(cfg),
		Queue:     queue,
		Store:     store,
		Publisher: publisher,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	if err := services.Rotator.Provision(ctx, cfg.ProviderCredentials); err != nil {
		logger.Error("failed to provision provider credentials", "error", err)
		os.Exit(1)
	}

	// Fail jobs orphaned by a previous run before accepting traffic.
	if n, err := services.Reconciler.ExpireStale(ctx); err != nil {
		logger.Warn("failed to expire stale jobs", "error", err)
	} else if n > 0 {
		logger.Info("expired stale jobs from previous run", "count", n)
	}

	scheduler := worker.NewScheduler(logger)
	scheduler.Every("poll-stale", cfg.PollInterval, services.Reconciler.PollStale)
	scheduler.Every("expire-stale", cfg.PollInterval, services.Reconciler.ExpireStale)
	scheduler.Every("ttl-sweep", cfg.PollInterval, services.Idempotency.Sweep)
	if services.CatalogSync != nil {
		if _, err := services.CatalogSync.Sync(ctx); err != nil {
			logger.Warn("initial catalog sync failed", "error", err)
		}
		scheduler.Every("catalog-sync", cfg.CatalogRefreshInterval, services.CatalogSync.Sync)
	}
	scheduler.Start(ctx)

	idle := shutdown.NewIdleMonitor(shutdown.IdleMonitorConfig{
		Timeout:      cfg.IdleTimeout,
		Logger:       logger,
		ExcludePaths: []string{"/healthz", "/readyz"},
		Busy: func() bool {
			s := queue.Stats()
			return s.Queued > 0 || s.Running > 0
		},
	})
	idle.Start()

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)

	// IP blocklist (early in chain to reject bad actors quickly)
	if cfg.BlocklistS3Key != "" && services.Storage.IsEnabled() {
		blocklist := mw.NewIPBlocklist(config.NewS3Loader(config.S3LoaderConfig{
			Client: services.Storage.Client(),
			Bucket: services.Storage.Bucket(),
			Key:    cfg.BlocklistS3Key,
			Logger: logger,
		}), logger)
		blocklist.Refresh(ctx)
		router.Use(blocklist.Middleware())
		logger.Info("ip blocklist enabled", "key", cfg.BlocklistS3Key)
	}

	router.Use(idle.Middleware)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(mw.Timeout(mw.TimeoutConfig{
		Default: cfg.RequestTimeout,
		// Callbacks and payment webhooks must always be acknowledged
		SkipPrefixes: []string{"/api/v1/callback/", "/api/v1/webhooks/"},
	}))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-API-Version", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Request size limit (1MB) - prevent large payload attacks
	router.Use(middleware.RequestSize(1 * 1024 * 1024))

	// Global rate limit by IP; generation endpoints also get a per-user limit.
	// Counters live in the TTL store so replicas sharing Redis share limits.
	router.Use(mw.RateLimitByIP(cfg.RateLimitIPPerMinute, mw.NewStoreCounter(store, "ratelimit:ip:")))
	router.Use(mw.APIVersion())

	api := humachi.New(router, routes.NewHumaConfig(cfg.BaseURL))
	api.UseMiddleware(mw.HumaAuth(api, mw.HumaAuthConfig{
		Verifier: auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		Users:    services.Ledger,
		Logger:   logger,
	}))
	api.UseMiddleware(mw.HumaRateLimit(api, cfg.RateLimitGeneratePerMinute, mw.NewStoreCounter(store, "ratelimit:user:")))

	routes.Register(api, &routes.Handlers{
		HealthCheck: handlers.HealthCheck,
		Catalog:     handlers.NewCatalogHandler(services.Catalog),
		Livez:       handlers.Livez,
		Readyz:      handlers.NewReadyzHandler(db).Readyz,

		Generate:    handlers.NewGenerateHandler(services.Dispatcher, services.Idempotency, services.Job, services.Ledger, logger),
		Generations: handlers.NewGenerationsHandler(services.Job, logger),
		Credits:     handlers.NewCreditsHandler(services.Ledger, logger),
		Posts:       handlers.NewPostsHandler(services.Post, logger),
		Admin:       handlers.NewAdminHandler(services.Rotator, services.Ledger, queue, logger),
	})

	// Raw handlers: signature verification needs the exact body
	callbackHandler, err := handlers.NewCallbackHandler(services.Reconciler, cfg.CallbackSigningSecret, logger)
	if err != nil {
		logger.Error("invalid CALLBACK_SIGNING_SECRET", "error", err)
		os.Exit(1)
	}
	router.Post("/api/v1/callback/{jobId}", callbackHandler.HandleCallback)

	if cfg.StripeWebhookSecret != "" {
		stripe.Key = cfg.StripeSecretKey
		stripeWebhook := handlers.NewStripeWebhookHandler(cfg.StripeWebhookSecret, services.Billing, logger)
		router.Post("/api/v1/webhooks/stripe", stripeWebhook.HandleWebhook)
		logger.Info("stripe webhook endpoint enabled")
	}

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
		select {
		case <-sigChan:
		case <-idle.Done():
		}

		logger.Info("shutting down server")
		idle.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer shutdownCancel()

		// Stop taking requests first so no new dispatches are queued
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		scheduler.Stop()
		if err := queue.Stop(shutdownCtx); err != nil {
			logger.Warn("dispatch queue did not drain", "error", err)
		}
		cancel()
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL, "callback_base_url", cfg.CallbackBaseURL)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("server stopped")
}
