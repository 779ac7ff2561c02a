package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finbase-io/wallet-engine/api/controllers"
	"github.com/finbase-io/wallet-engine/api/middleware"
	"github.com/finbase-io/wallet-engine/internal/ledger"
	"github.com/finbase-io/wallet-engine/internal/reconciliation"
	"github.com/finbase-io/wallet-engine/internal/transactions"
	"github.com/finbase-io/wallet-engine/internal/wallets"
	"github.com/finbase-io/wallet-engine/pkg/config"
	"github.com/finbase-io/wallet-engine/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisP controllers.Pinger,
	walletService wallets.Service,
	transactionService transactions.Service,
	ledgerService ledger.Service,
	reconciliationService reconciliation.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/wallets", func(r chi.Router) {
			r.Post("/", controllers.WalletCreate(walletService, logg))
			r.Get("/number/{walletNumber}", controllers.WalletDetailByNumber(walletService, logg))
			r.Get("/{walletId}", controllers.WalletDetail(walletService, logg))
			r.Post("/{walletId}/status", controllers.WalletUpdateStatus(walletService, logg))
			r.Get("/{walletId}/transactions", controllers.WalletTransactions(transactionService, logg))
			r.Get("/{walletId}/ledger", controllers.WalletLedger(ledgerService, logg))
			r.Get("/{walletId}/reconciliation", controllers.ReconciliationCheckWallet(reconciliationService, logg))
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/deposit", controllers.Deposit(transactionService, logg))
			r.Post("/withdraw", controllers.Withdraw(transactionService, logg))
			r.Post("/transfer", controllers.Transfer(transactionService, logg))
			r.Get("/{transactionId}", controllers.TransactionDetail(transactionService, logg))
		})

		r.Get("/reconciliation", controllers.ReconciliationCheckAll(reconciliationService, logg))
	})

	return r
}
