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
	pgStorage "donation-payments/internal/adapter/storage/postgres"
	redisStorage "donation-payments/internal/adapter/storage/redis"
	"donation-payments/internal/cron"
	"donation-payments/internal/service"
	"donation-payments/pkg/logger"
	"donation-payments/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const lockKey = "reconciler:sweep"

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("DPAY_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Component(logger.New(cfg.Log.Level, cfg.Log.Pretty), "reconciler")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	paymentRepo := pgStorage.NewPaymentRepo(pool)
	// The sweep re-applies already admitted events and never verifies signatures.
	reconcilerSvc := service.NewReconcilerService(
		nil,
		pgStorage.NewStripeEventRepo(pool),
		paymentRepo,
		pgStorage.NewTransactor(pool),
		redisStorage.NewAppliedEventCache(rdb),
		metrics.NewWebhookMetrics(reg),
		service.ReconcilerOptions{
			EventCacheTTL: cfg.Payments.EventCacheTTL,
			GracePeriod:   cfg.Reconciler.GracePeriod,
			BatchSize:     cfg.Reconciler.BatchSize,
		},
		log,
	)

	sweep, err := cron.NewSweepJob(reconcilerSvc)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build sweep job")
	}
	lock, err := redisStorage.NewLock(rdb, lockKey, cfg.Reconciler.LockTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build sweep lock")
	}
	svc, err := cron.NewService(cron.ServiceParams{
		Logger:   log,
		Registry: cron.NewRegistry(sweep),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: cfg.Reconciler.Interval,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build cron service")
	}

	var metricsSrv *http.Server
	if cfg.Reconciler.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Reconciler.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info().Str("addr", metricsSrv.Addr).Msg("metrics listener started")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	log.Info().
		Dur("interval", cfg.Reconciler.Interval).
		Dur("grace_period", cfg.Reconciler.GracePeriod).
		Int("batch_size", cfg.Reconciler.BatchSize).
		Msg("reconciler worker started")

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("reconciler worker stopped")
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("metrics listener forced to shutdown")
		}
	}
	log.Info().Msg("reconciler worker exited")
}
