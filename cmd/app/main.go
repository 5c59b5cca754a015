// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mehran-shabani/Apatie/internal/config"
	payAdapters "github.com/mehran-shabani/Apatie/internal/infra/adapters/payment"
	"github.com/mehran-shabani/Apatie/internal/infra/api"
	pg "github.com/mehran-shabani/Apatie/internal/infra/db/postgres"
	"github.com/mehran-shabani/Apatie/internal/infra/logging"
	"github.com/mehran-shabani/Apatie/internal/infra/metrics"
	red "github.com/mehran-shabani/Apatie/internal/infra/redis"
	"github.com/mehran-shabani/Apatie/internal/infra/sched"
	"github.com/mehran-shabani/Apatie/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode (console logs, no sampling)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	// ---- Redis (optional; only the reconcile lock uses it) ----
	var locker red.Locker
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connect failed")
		}
		defer redisClient.Close()
		locker = red.NewLocker(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set; reconcile sweeps run without a distributed lock")
	}

	// ---- Repositories ----
	payRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Gateway ----
	gateway := payAdapters.NewZibalGateway(payAdapters.Config{
		MerchantID:  cfg.Payment.Zibal.MerchantID,
		GatewayBase: cfg.Payment.Zibal.GatewayBase,
		APIBase:     cfg.Payment.Zibal.APIBase,
		Timeout:     cfg.Payment.Zibal.Timeout,
		Sandbox:     cfg.Payment.Zibal.Sandbox,
	}, logger)

	// ---- Use cases ----
	paymentUC := usecase.NewPaymentUseCase(payRepo, subRepo, gateway, txManager,
		cfg.Payment.Zibal.CallbackURL, cfg.Payment.Zibal.FrontendBase,
		cfg.Subscription.BaseMonthlyPriceIRR, logger)
	reconcileUC := usecase.NewReconcileUseCase(payRepo, subRepo, gateway, txManager,
		cfg.Reconcile.StaleAfter, logger)
	subscriptionUC := usecase.NewSubscriptionUseCase(subRepo, logger)

	// ---- HTTP ----
	auth := api.NewAuthManager(cfg.Admin.JWTSecret, 30*time.Minute)
	srv := api.NewServer(paymentUC, reconcileUC, subscriptionUC, auth, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Workers ----
	reconciler := sched.NewPaymentReconciler(reconcileUC, locker, cfg.Reconcile.Interval,
		usecase.ReconcileOptions{
			Lookback:   cfg.Reconcile.Lookback,
			Limit:      cfg.Reconcile.Limit,
			StaleAfter: cfg.Reconcile.StaleAfter,
		}, logger)
	go func() { _ = reconciler.Run(ctx) }()

	expiry := sched.NewExpiryWorker(24*time.Hour, subscriptionUC, logger)
	go func() { _ = expiry.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
