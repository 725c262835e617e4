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

	"donation-payments/config"
	httpHandler "donation-payments/internal/adapter/http/handler"
	"donation-payments/internal/adapter/storage/objectstore"
	pgStorage "donation-payments/internal/adapter/storage/postgres"
	redisStorage "donation-payments/internal/adapter/storage/redis"
	stripeAdapter "donation-payments/internal/adapter/stripe"
	"donation-payments/internal/core/ports"
	"donation-payments/internal/service"
	"donation-payments/pkg/logger"
	"donation-payments/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(os.Getenv("DPAY_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateAPI(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting donation payments API")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	if cfg.Database.AutoMigrate {
		if err := pgStorage.Migrate(ctx, pool, "up"); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		log.Info().Msg("Migrations applied")
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize Stripe
	stripeClient, err := stripeAdapter.NewClient(cfg.Stripe, logger.Component(log, "stripe"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Stripe client")
	}

	// Initialize metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	webhookMetrics := metrics.NewWebhookMetrics(reg)

	// Initialize repositories
	userRepo := pgStorage.NewUserRepo(pool)
	donationRepo := pgStorage.NewDonationRepo(pool)
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	eventRepo := pgStorage.NewStripeEventRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	eventCache := redisStorage.NewAppliedEventCache(rdb)
	tokenDenylist := redisStorage.NewTokenDenylist(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	var hooks []ports.DonationHook
	if cfg.Storage.Enabled() {
		store, err := objectstore.NewS3Store(ctx, cfg.Storage, logger.Component(log, "objectstore"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize object store")
		}
		hooks = append(hooks, service.NewImageCleanupHook(store, log))
	} else {
		log.Warn().Msg("Object storage not configured, replaced donation images will not be deleted")
	}

	// Initialize business services
	authSvc := service.NewAuthService(userRepo, hashSvc, tokenSvc, tokenDenylist, logger.Component(log, "auth"))
	paymentSvc := service.NewPaymentService(
		paymentRepo,
		donationRepo,
		stripeClient,
		transactor,
		cfg.Payments.Currency,
		cfg.Payments.ProviderTimeout,
		logger.Component(log, "payments"),
	)
	reconcilerSvc := service.NewReconcilerService(
		stripeClient,
		eventRepo,
		paymentRepo,
		transactor,
		eventCache,
		webhookMetrics,
		service.ReconcilerOptions{
			EventCacheTTL: cfg.Payments.EventCacheTTL,
			GracePeriod:   cfg.Reconciler.GracePeriod,
			BatchSize:     cfg.Reconciler.BatchSize,
		},
		logger.Component(log, "reconciler"),
	)
	catalogSvc := service.NewCatalogService(donationRepo, donationRepo, transactor, logger.Component(log, "catalog"), hooks...)
	auditSvc := service.NewAuditService(auditRepo, logger.Component(log, "audit"))

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	gin.SetMode(cfg.Server.Mode)
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		PaymentSvc:     paymentSvc,
		ReconcilerSvc:  reconcilerSvc,
		CatalogSvc:     catalogSvc,
		TokenSvc:       tokenSvc,
		TokenDenylist:  tokenDenylist,
		RateLimitStore: rateLimitStore,
		AuditSvc:       auditSvc,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		PublishableKey: stripeClient.PublishableKey(),
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Str("stripe_env", stripeClient.Environment()).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
