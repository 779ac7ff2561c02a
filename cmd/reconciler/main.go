package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/finbase-io/wallet-engine/internal/ledger"
	"github.com/finbase-io/wallet-engine/internal/reconciliation"
	"github.com/finbase-io/wallet-engine/internal/transactions"
	"github.com/finbase-io/wallet-engine/internal/wallets"
	"github.com/finbase-io/wallet-engine/pkg/config"
	"github.com/finbase-io/wallet-engine/pkg/db"
	"github.com/finbase-io/wallet-engine/pkg/logger"
	"github.com/finbase-io/wallet-engine/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "reconciler"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "reconciler",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	walletRepo := wallets.NewRepository(dbClient.DB())

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	service, err := reconciliation.NewService(reconciliation.ServiceParams{
		Repo:         reconciliation.NewRepository(dbClient.DB()),
		WalletRepo:   walletRepo,
		Ledger:       ledgerService,
		Transactions: transactions.NewRepository(dbClient.DB()),
		Config:       cfg.Reconciler,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Reconciler.Interval.String(),
	})
	logg.Info(ctx, "starting reconciler")

	if err := run(ctx, cfg.Reconciler, logg, service); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "reconciler stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "reconciler shutting down gracefully")
}

func run(ctx context.Context, cfg config.ReconcilerConfig, logg *logger.Logger, service reconciliation.Service) error {
	if cfg.SweepStuckersOnBoot {
		if _, err := service.SweepStuckProcessing(ctx); err != nil {
			logg.Error(ctx, "boot sweep failed", err)
		}
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			runOnce(ctx, logg, service)
		}
	}
}

func runOnce(ctx context.Context, logg *logger.Logger, service reconciliation.Service) {
	started := time.Now()

	swept, err := service.SweepStuckProcessing(ctx)
	if err != nil {
		logg.Error(ctx, "stuck transaction sweep failed", err)
	}

	reports, err := service.CheckAll(ctx)
	if err != nil {
		logg.Error(ctx, "balance check pass finished with errors", err)
	}
	drifted := 0
	for _, report := range reports {
		if report.Drifted || !report.ChainIntact {
			drifted++
		}
	}

	snapshots, err := service.SnapshotBalances(ctx)
	if err != nil {
		logg.Error(ctx, "balance snapshot pass failed", err)
	}

	runCtx := logg.WithFields(ctx, map[string]any{
		"wallets_checked": len(reports),
		"wallets_drifted": drifted,
		"swept":           swept,
		"snapshots":       snapshots,
		"duration":        time.Since(started).String(),
	})
	logg.Info(runCtx, "reconciliation pass complete")
}
