// Package reconciliation reads the ledger back against wallet balances. It is
// strictly read-only over money state; the only rows it writes are snapshots
// and failed markers for abandoned processing transactions.
package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/finbase-io/wallet-engine/internal/ledger"
	"github.com/finbase-io/wallet-engine/internal/wallets"
	"github.com/finbase-io/wallet-engine/pkg/config"
	"github.com/finbase-io/wallet-engine/pkg/db/models"
	"github.com/finbase-io/wallet-engine/pkg/enums"
	pkgerrors "github.com/finbase-io/wallet-engine/pkg/errors"
	"github.com/finbase-io/wallet-engine/pkg/logger"
)

const defaultBatchSize = 500

// Report is the outcome of checking one wallet against its ledger chain.
type Report struct {
	WalletID      uint            `json:"wallet_id"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
	Drifted       bool            `json:"drifted"`
	ChainIntact   bool            `json:"chain_intact"`
	BrokenAtID    uint            `json:"broken_at_id,omitempty"`
	Entries       int             `json:"entries"`
}

type transactionSweeper interface {
	ListStuckProcessing(ctx context.Context, olderThan time.Time) ([]models.Transaction, error)
	Save(ctx context.Context, transaction *models.Transaction) error
}

// Service exposes the reconciliation reader.
type Service interface {
	CheckWallet(ctx context.Context, walletID uint) (*Report, error)
	CheckAll(ctx context.Context) ([]Report, error)
	SnapshotBalances(ctx context.Context) (int, error)
	SweepStuckProcessing(ctx context.Context) (int, error)
}

// ServiceParams collects the reconciler's collaborators.
type ServiceParams struct {
	Repo         Repository
	WalletRepo   wallets.Repository
	Ledger       ledger.Service
	Transactions transactionSweeper
	Config       config.ReconcilerConfig
	Logger       *logger.Logger
}

type service struct {
	repo         Repository
	walletRepo   wallets.Repository
	ledger       ledger.Service
	transactions transactionSweeper
	cfg          config.ReconcilerConfig
	logg         *logger.Logger
	now          func() time.Time
}

// NewService wires the reconciliation service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("snapshot repository required")
	}
	if params.WalletRepo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transaction sweeper required")
	}
	if params.Config.SnapshotBatchSize <= 0 {
		params.Config.SnapshotBatchSize = defaultBatchSize
	}
	if params.Config.StuckProcessingAge <= 0 {
		params.Config.StuckProcessingAge = 15 * time.Minute
	}
	return &service{
		repo:         params.Repo,
		walletRepo:   params.WalletRepo,
		ledger:       params.Ledger,
		transactions: params.Transactions,
		cfg:          params.Config,
		logg:         params.Logger,
		now:          time.Now,
	}, nil
}

// CheckWallet compares the wallet's stored balance against the balance_after
// of its most recent ledger entry and, when configured, replays the whole
// chain from zero.
func (s *service) CheckWallet(ctx context.Context, walletID uint) (*Report, error) {
	wallet, err := s.walletRepo.FindByID(ctx, walletID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "fetching wallet")
	}
	if wallet == nil {
		return nil, pkgerrors.New(pkgerrors.CodeWalletNotFound, fmt.Sprintf("wallet %d not found", walletID))
	}
	return s.checkWallet(ctx, wallet)
}

func (s *service) checkWallet(ctx context.Context, wallet *models.Wallet) (*Report, error) {
	report := &Report{
		WalletID:      wallet.ID,
		WalletBalance: wallet.Balance,
		LedgerBalance: decimal.Zero,
		ChainIntact:   true,
	}

	last, err := s.ledger.LastForWallet(ctx, wallet.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "reading last ledger entry")
	}
	if last != nil {
		report.LedgerBalance = last.BalanceAfter
	}
	report.Drifted = !wallet.Balance.Equal(report.LedgerBalance)

	if s.cfg.VerifyLedgerChains {
		chain, err := s.ledger.VerifyChain(ctx, wallet.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "verifying ledger chain")
		}
		report.ChainIntact = chain.Intact
		report.BrokenAtID = chain.BrokenAtID
		report.Entries = chain.Entries
	}

	if (report.Drifted || !report.ChainIntact) && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"wallet_id":      wallet.ID,
			"wallet_balance": wallet.Balance.String(),
			"ledger_balance": report.LedgerBalance.String(),
			"chain_intact":   report.ChainIntact,
		})
		s.logg.Warn(logCtx, "wallet drifted from ledger")
	}
	return report, nil
}

// CheckAll pages through every wallet. Per-wallet failures are collected, not
// fatal, so one bad wallet cannot hide drift in the rest.
func (s *service) CheckAll(ctx context.Context) ([]Report, error) {
	var (
		reports []Report
		errs    error
		afterID uint
	)
	for {
		batch, err := s.walletRepo.ListBatch(ctx, afterID, s.cfg.SnapshotBatchSize)
		if err != nil {
			return reports, multierr.Append(errs, fmt.Errorf("listing wallets: %w", err))
		}
		if len(batch) == 0 {
			break
		}
		for i := range batch {
			report, err := s.checkWallet(ctx, &batch[i])
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("wallet %d: %w", batch[i].ID, err))
				continue
			}
			reports = append(reports, *report)
		}
		afterID = batch[len(batch)-1].ID
	}
	return reports, errs
}

// SnapshotBalances writes one WalletBalanceSnapshot per wallet and returns
// how many were written.
func (s *service) SnapshotBalances(ctx context.Context) (int, error) {
	var (
		written int
		errs    error
		afterID uint
	)
	snapshotAt := s.now().UTC()
	for {
		batch, err := s.walletRepo.ListBatch(ctx, afterID, s.cfg.SnapshotBatchSize)
		if err != nil {
			return written, multierr.Append(errs, fmt.Errorf("listing wallets: %w", err))
		}
		if len(batch) == 0 {
			break
		}
		for i := range batch {
			report, err := s.checkWallet(ctx, &batch[i])
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("wallet %d: %w", batch[i].ID, err))
				continue
			}
			snapshot := &models.WalletBalanceSnapshot{
				WalletID:      report.WalletID,
				Balance:       report.WalletBalance,
				LedgerBalance: report.LedgerBalance,
				Drifted:       report.Drifted || !report.ChainIntact,
				SnapshotAt:    snapshotAt,
			}
			if err := s.repo.CreateSnapshot(ctx, snapshot); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("snapshot wallet %d: %w", batch[i].ID, err))
				continue
			}
			written++
		}
		afterID = batch[len(batch)-1].ID
	}
	return written, errs
}

// SweepStuckProcessing marks transactions abandoned mid-flight as failed. A
// row can be stranded in processing when the process dies between taking the
// wallet lock and committing; balances were rolled back with the storage
// transaction, so failing the row is safe.
func (s *service) SweepStuckProcessing(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.StuckProcessingAge)
	stuck, err := s.transactions.ListStuckProcessing(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "listing stuck transactions")
	}

	var (
		swept int
		errs  error
	)
	for i := range stuck {
		transaction := &stuck[i]
		transaction.Status = enums.TransactionStatusFailed
		transaction.CompletedAt = nil
		if err := s.transactions.Save(ctx, transaction); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sweeping transaction %s: %w", transaction.TransactionID, err))
			continue
		}
		swept++
		if s.logg != nil {
			logCtx := s.logg.WithTransactionID(ctx, transaction.TransactionID)
			s.logg.Warn(logCtx, "stuck processing transaction marked failed")
		}
	}
	return swept, errs
}
