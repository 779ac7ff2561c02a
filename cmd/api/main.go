package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/finbase-io/wallet-engine/api/routes"
	"github.com/finbase-io/wallet-engine/internal/fees"
	"github.com/finbase-io/wallet-engine/internal/idempotency"
	"github.com/finbase-io/wallet-engine/internal/ledger"
	"github.com/finbase-io/wallet-engine/internal/locks"
	"github.com/finbase-io/wallet-engine/internal/reconciliation"
	"github.com/finbase-io/wallet-engine/internal/transactions"
	"github.com/finbase-io/wallet-engine/internal/wallets"
	"github.com/finbase-io/wallet-engine/pkg/config"
	"github.com/finbase-io/wallet-engine/pkg/db"
	"github.com/finbase-io/wallet-engine/pkg/logger"
	"github.com/finbase-io/wallet-engine/pkg/metrics"
	"github.com/finbase-io/wallet-engine/pkg/migrate"
	"github.com/finbase-io/wallet-engine/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	transactionMetrics := metrics.NewTransactionMetrics(prometheus.DefaultRegisterer)

	walletRepo := wallets.NewRepository(dbClient.DB())
	transactionRepo := transactions.NewRepository(dbClient.DB())

	walletService, err := wallets.NewService(walletRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	lockProvider, err := locks.NewRedisProvider(redisClient, redis.IsNil)
	if err != nil {
		logg.Error(context.Background(), "failed to create lock provider", err)
		os.Exit(1)
	}

	coordinator, err := locks.NewCoordinator(lockProvider, dbClient, walletRepo, redisClient, cfg.Locks, logg, transactionMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create lock coordinator", err)
		os.Exit(1)
	}

	guard, err := idempotency.NewGuard(transactionRepo, lockProvider, redisClient, cfg.Locks.IdempotencyTTL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	feeCalculator, err := fees.NewCalculatorFromConfig(cfg.Fees)
	if err != nil {
		logg.Error(context.Background(), "failed to create fee calculator", err)
		os.Exit(1)
	}

	transactionService, err := transactions.NewService(transactions.ServiceParams{
		Repo:        transactionRepo,
		WalletRepo:  walletRepo,
		Ledger:      ledgerService,
		Guard:       guard,
		Coordinator: coordinator,
		Fees:        feeCalculator,
		Logger:      logg,
		Metrics:     transactionMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create transaction service", err)
		os.Exit(1)
	}

	reconciliationService, err := reconciliation.NewService(reconciliation.ServiceParams{
		Repo:         reconciliation.NewRepository(dbClient.DB()),
		WalletRepo:   walletRepo,
		Ledger:       ledgerService,
		Transactions: transactionRepo,
		Config:       cfg.Reconciler,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, walletService, transactionService, ledgerService, reconciliationService),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "error shutting down api server", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shut down gracefully")
}
