// File: cmd/reconcile/main.go
//
// One-shot reconciliation sweep for operators:
//
//	reconcile -config config.yaml -since 2
//	reconcile -config config.yaml -track-id 123456789 -dry-run
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mehran-shabani/Apatie/internal/config"
	payAdapters "github.com/mehran-shabani/Apatie/internal/infra/adapters/payment"
	pg "github.com/mehran-shabani/Apatie/internal/infra/db/postgres"
	"github.com/mehran-shabani/Apatie/internal/infra/logging"
	"github.com/mehran-shabani/Apatie/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	sinceDays := flag.Int("since", 1, "reconcile transactions created in the last N days")
	hours := flag.Int("hours", 0, "reconcile the last N hours instead of -since")
	trackID := flag.Int64("track-id", 0, "reconcile a single transaction by gateway track id")
	dryRun := flag.Bool("dry-run", false, "inquire only; write nothing")
	limit := flag.Int("limit", 0, "cap the number of transactions per sweep")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	payRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	txManager := pg.NewTxManager(pool)

	gateway := payAdapters.NewZibalGateway(payAdapters.Config{
		MerchantID:  cfg.Payment.Zibal.MerchantID,
		GatewayBase: cfg.Payment.Zibal.GatewayBase,
		APIBase:     cfg.Payment.Zibal.APIBase,
		Timeout:     cfg.Payment.Zibal.Timeout,
		Sandbox:     cfg.Payment.Zibal.Sandbox,
	}, logger)

	recUC := usecase.NewReconcileUseCase(payRepo, subRepo, gateway, txManager, cfg.Reconcile.StaleAfter, logger)

	opts := usecase.ReconcileOptions{
		Lookback:   time.Duration(*sinceDays) * 24 * time.Hour,
		DryRun:     *dryRun,
		Limit:      *limit,
		StaleAfter: cfg.Reconcile.StaleAfter,
	}
	if *hours > 0 {
		opts.Lookback = time.Duration(*hours) * time.Hour
	}
	if *trackID > 0 {
		opts.TrackID = trackID
	}

	sum, err := recUC.Run(ctx, opts)
	if err != nil {
		log.Fatalf("reconcile: %v", err)
	}

	for _, o := range sum.Outcomes {
		line := fmt.Sprintf("%-14s track=%-12d order=%s", o.Action, o.TrackID, o.OrderID)
		if o.Message != "" {
			line += "  " + o.Message
		}
		if o.Err != nil {
			line += "  err=" + o.Err.Error()
		}
		fmt.Println(line)
	}
	fmt.Printf("\ntotal=%d reconciled=%d already_processed=%d failed=%d\n",
		sum.Total, sum.Reconciled, sum.AlreadyProcessed, sum.Failed)

	// Per-transaction provider failures are reported above, not fatal.
	os.Exit(0)
}
