// Package transactions drives the deposit, withdrawal and transfer state
// machines around an atomic storage transaction.
package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/finbase-io/wallet-engine/internal/ledger"
	"github.com/finbase-io/wallet-engine/internal/wallets"
	"github.com/finbase-io/wallet-engine/pkg/db"
	"github.com/finbase-io/wallet-engine/pkg/db/models"
	"github.com/finbase-io/wallet-engine/pkg/enums"
	pkgerrors "github.com/finbase-io/wallet-engine/pkg/errors"
	"github.com/finbase-io/wallet-engine/pkg/logger"
	"github.com/finbase-io/wallet-engine/pkg/metrics"
	"github.com/finbase-io/wallet-engine/pkg/money"
)

const defaultPaymentMethod = "bank_transfer"

type admitter interface {
	Admit(ctx context.Context, key string) error
}

type lockCoordinator interface {
	WithWalletLock(ctx context.Context, walletID uint, fn func(tx *gorm.DB, wallet *models.Wallet) error) error
	WithWalletLocks(ctx context.Context, walletIDs []uint, fn func(tx *gorm.DB, wallets map[uint]*models.Wallet) error) error
}

type feeCalculator interface {
	Fee(amount decimal.Decimal) decimal.Decimal
}

// Service orchestrates money movements. Every operation either runs to
// completed inside its atomic section or is rejected before entering one;
// failed attempts keep their transaction row for the audit trail.
type Service interface {
	Deposit(ctx context.Context, input DepositInput) (*models.Transaction, error)
	Withdraw(ctx context.Context, input WithdrawInput) (*models.Transaction, error)
	Transfer(ctx context.Context, input TransferInput) (*models.Transaction, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error)
	ListByWallet(ctx context.Context, walletID uint, limit, offset int) ([]models.Transaction, error)
}

// DepositInput captures a deposit request.
type DepositInput struct {
	WalletID         uint
	Amount           decimal.Decimal
	PaymentMethod    string
	PaymentReference string
	IdempotencyKey   string
}

// WithdrawInput captures a withdrawal request.
type WithdrawInput struct {
	WalletID            uint
	Amount              decimal.Decimal
	WithdrawalMethod    string
	WithdrawalReference string
	IdempotencyKey      string
}

// TransferInput captures a peer-to-peer transfer request. The receiver is
// addressed by wallet number, the sender by id.
type TransferInput struct {
	SenderWalletID       uint
	ReceiverWalletNumber string
	Amount               decimal.Decimal
	IdempotencyKey       string
}

// ServiceParams collects the orchestrator's collaborators.
type ServiceParams struct {
	Repo        Repository
	WalletRepo  wallets.Repository
	Ledger      ledger.Service
	Guard       admitter
	Coordinator lockCoordinator
	Fees        feeCalculator
	Logger      *logger.Logger
	Metrics     *metrics.TransactionMetrics
}

type service struct {
	repo        Repository
	walletRepo  wallets.Repository
	ledger      ledger.Service
	guard       admitter
	coordinator lockCoordinator
	fees        feeCalculator
	logg        *logger.Logger
	metrics     *metrics.TransactionMetrics
	now         func() time.Time
}

// NewService wires the transaction orchestrator.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	if params.WalletRepo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if params.Coordinator == nil {
		return nil, fmt.Errorf("lock coordinator required")
	}
	if params.Fees == nil {
		return nil, fmt.Errorf("fee calculator required")
	}
	return &service{
		repo:        params.Repo,
		walletRepo:  params.WalletRepo,
		ledger:      params.Ledger,
		guard:       params.Guard,
		coordinator: params.Coordinator,
		fees:        params.Fees,
		logg:        params.Logger,
		metrics:     params.Metrics,
		now:         time.Now,
	}, nil
}

func (s *service) Deposit(ctx context.Context, input DepositInput) (*models.Transaction, error) {
	started := time.Now()
	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}
	if input.WalletID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id required")
	}
	if err := s.guard.Admit(ctx, input.IdempotencyKey); err != nil {
		return nil, err
	}

	transaction, err := s.createPending(ctx, enums.TransactionTypeDeposit, input.Amount, input.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	method := input.PaymentMethod
	if method == "" {
		method = defaultPaymentMethod
	}

	err = s.coordinator.WithWalletLock(ctx, input.WalletID, func(tx *gorm.DB, wallet *models.Wallet) error {
		repo := s.repo.WithTx(tx)

		transaction.Status = enums.TransactionStatusProcessing
		if err := repo.Save(ctx, transaction); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "marking transaction processing")
		}

		if !wallet.IsActive() {
			return pkgerrors.New(pkgerrors.CodeWalletInactive, fmt.Sprintf("wallet %d is not active", wallet.ID))
		}

		wallet.Balance = money.Add(wallet.Balance, input.Amount)
		if err := s.walletRepo.WithTx(tx).Save(ctx, wallet); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "persisting wallet balance")
		}

		deposit := &models.Deposit{
			TransactionID: transaction.TransactionID,
			WalletID:      wallet.ID,
			Amount:        input.Amount,
			PaymentMethod: method,
		}
		if input.PaymentReference != "" {
			deposit.PaymentReference = &input.PaymentReference
		}
		if err := repo.CreateDeposit(ctx, deposit); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "creating deposit detail")
		}

		if _, err := s.ledger.Append(ctx, tx, ledger.AppendInput{
			Wallet:        wallet,
			Amount:        input.Amount,
			Type:          enums.LedgerEntryTypeCredit,
			TransactionID: transaction.TransactionID,
			ReferenceType: enums.LedgerReferenceTypeDeposit,
			ReferenceID:   deposit.ID,
			Description:   "Deposit via " + method,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "appending ledger entry")
		}

		return s.complete(ctx, repo, transaction)
	})
	if err != nil {
		s.markFailed(ctx, transaction)
		s.metrics.IncFailed(string(enums.TransactionTypeDeposit), failureReason(err))
		return nil, err
	}

	s.metrics.IncCompleted(string(enums.TransactionTypeDeposit))
	s.metrics.ObserveDuration(string(enums.TransactionTypeDeposit), time.Since(started))
	s.logCompleted(ctx, transaction)
	return s.reload(ctx, transaction.TransactionID)
}

func (s *service) Withdraw(ctx context.Context, input WithdrawInput) (*models.Transaction, error) {
	started := time.Now()
	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}
	if input.WalletID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id required")
	}
	if err := s.guard.Admit(ctx, input.IdempotencyKey); err != nil {
		return nil, err
	}

	transaction, err := s.createPending(ctx, enums.TransactionTypeWithdrawal, input.Amount, input.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	method := input.WithdrawalMethod
	if method == "" {
		method = defaultPaymentMethod
	}

	err = s.coordinator.WithWalletLock(ctx, input.WalletID, func(tx *gorm.DB, wallet *models.Wallet) error {
		repo := s.repo.WithTx(tx)

		transaction.Status = enums.TransactionStatusProcessing
		if err := repo.Save(ctx, transaction); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "marking transaction processing")
		}

		if !wallet.IsActive() {
			return pkgerrors.New(pkgerrors.CodeWalletInactive, fmt.Sprintf("wallet %d is not active", wallet.ID))
		}
		if wallet.Balance.LessThan(input.Amount) {
			return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "insufficient balance")
		}

		wallet.Balance = money.Sub(wallet.Balance, input.Amount)
		if err := s.walletRepo.WithTx(tx).Save(ctx, wallet); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "persisting wallet balance")
		}

		withdrawal := &models.Withdrawal{
			TransactionID:    transaction.TransactionID,
			WalletID:         wallet.ID,
			Amount:           input.Amount,
			WithdrawalMethod: method,
		}
		if input.WithdrawalReference != "" {
			withdrawal.WithdrawalReference = &input.WithdrawalReference
		}
		if err := repo.CreateWithdrawal(ctx, withdrawal); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "creating withdrawal detail")
		}

		if _, err := s.ledger.Append(ctx, tx, ledger.AppendInput{
			Wallet:        wallet,
			Amount:        input.Amount,
			Type:          enums.LedgerEntryTypeDebit,
			TransactionID: transaction.TransactionID,
			ReferenceType: enums.LedgerReferenceTypeWithdrawal,
			ReferenceID:   withdrawal.ID,
			Description:   "Withdrawal via " + method,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "appending ledger entry")
		}

		return s.complete(ctx, repo, transaction)
	})
	if err != nil {
		s.markFailed(ctx, transaction)
		s.metrics.IncFailed(string(enums.TransactionTypeWithdrawal), failureReason(err))
		return nil, err
	}

	s.metrics.IncCompleted(string(enums.TransactionTypeWithdrawal))
	s.metrics.ObserveDuration(string(enums.TransactionTypeWithdrawal), time.Since(started))
	s.logCompleted(ctx, transaction)
	return s.reload(ctx, transaction.TransactionID)
}

func (s *service) Transfer(ctx context.Context, input TransferInput) (*models.Transaction, error) {
	started := time.Now()
	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}
	if input.SenderWalletID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sender wallet id required")
	}
	if input.ReceiverWalletNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receiver wallet number required")
	}
	if err := s.guard.Admit(ctx, input.IdempotencyKey); err != nil {
		return nil, err
	}

	transaction, err := s.createPending(ctx, enums.TransactionTypeTransfer, input.Amount, input.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	err = func() error {
		receiver, err := s.walletRepo.FindByNumber(ctx, input.ReceiverWalletNumber)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "resolving receiver wallet")
		}
		if receiver == nil || !receiver.IsActive() {
			return pkgerrors.New(pkgerrors.CodeWalletNotFound, "receiver wallet not found or inactive")
		}
		if receiver.ID == input.SenderWalletID {
			return pkgerrors.New(pkgerrors.CodeValidation, "cannot transfer to the same wallet")
		}

		// Lock order is the deadlock-avoidance invariant: ids ascend before
		// any lock is requested.
		walletIDs := []uint{input.SenderWalletID, receiver.ID}

		receiverID := receiver.ID

		return s.coordinator.WithWalletLocks(ctx, walletIDs, func(tx *gorm.DB, locked map[uint]*models.Wallet) error {
			repo := s.repo.WithTx(tx)
			sender := locked[input.SenderWalletID]
			receiver := locked[receiverID]

			transaction.Status = enums.TransactionStatusProcessing
			if err := repo.Save(ctx, transaction); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "marking transaction processing")
			}

			fee := s.fees.Fee(input.Amount)
			totalDebit := money.Add(input.Amount, fee)

			transaction.Fee = fee
			if err := repo.Save(ctx, transaction); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "recording transaction fee")
			}

			if sender.Balance.LessThan(totalDebit) {
				return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "insufficient balance")
			}

			sender.Balance = money.Sub(sender.Balance, totalDebit)
			if err := s.walletRepo.WithTx(tx).Save(ctx, sender); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "persisting sender balance")
			}

			receiver.Balance = money.Add(receiver.Balance, input.Amount)
			if err := s.walletRepo.WithTx(tx).Save(ctx, receiver); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "persisting receiver balance")
			}

			transfer := &models.Transfer{
				TransactionID:    transaction.TransactionID,
				SenderWalletID:   sender.ID,
				ReceiverWalletID: receiver.ID,
				Amount:           input.Amount,
				Fee:              fee,
			}
			if err := repo.CreateTransfer(ctx, transfer); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "creating transfer detail")
			}

			if err := s.appendTransferEntries(ctx, tx, sender, receiver, transfer); err != nil {
				return err
			}

			return s.complete(ctx, repo, transaction)
		})
	}()
	if err != nil {
		s.markFailed(ctx, transaction)
		s.metrics.IncFailed(string(enums.TransactionTypeTransfer), failureReason(err))
		return nil, err
	}

	s.metrics.IncCompleted(string(enums.TransactionTypeTransfer))
	s.metrics.ObserveDuration(string(enums.TransactionTypeTransfer), time.Since(started))
	s.logCompleted(ctx, transaction)
	return s.reload(ctx, transaction.TransactionID)
}

// appendTransferEntries writes the sender debit, the sender fee when one was
// charged, and the receiver credit, in that order.
func (s *service) appendTransferEntries(ctx context.Context, tx *gorm.DB, sender, receiver *models.Wallet, transfer *models.Transfer) error {
	if _, err := s.ledger.Append(ctx, tx, ledger.AppendInput{
		Wallet:        sender,
		Amount:        transfer.Amount,
		Type:          enums.LedgerEntryTypeDebit,
		TransactionID: transfer.TransactionID,
		ReferenceType: enums.LedgerReferenceTypeTransfer,
		ReferenceID:   transfer.ID,
		Description:   "Transfer to wallet " + receiver.WalletNumber,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "appending sender debit")
	}

	if transfer.Fee.IsPositive() {
		if _, err := s.ledger.Append(ctx, tx, ledger.AppendInput{
			Wallet:        sender,
			Amount:        transfer.Fee,
			Type:          enums.LedgerEntryTypeFee,
			TransactionID: transfer.TransactionID,
			ReferenceType: enums.LedgerReferenceTypeTransfer,
			ReferenceID:   transfer.ID,
			Description:   "Transfer fee",
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "appending fee entry")
		}
	}

	if _, err := s.ledger.Append(ctx, tx, ledger.AppendInput{
		Wallet:        receiver,
		Amount:        transfer.Amount,
		Type:          enums.LedgerEntryTypeCredit,
		TransactionID: transfer.TransactionID,
		ReferenceType: enums.LedgerReferenceTypeTransfer,
		ReferenceID:   transfer.ID,
		Description:   "Transfer from wallet " + sender.WalletNumber,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "appending receiver credit")
	}
	return nil
}

func (s *service) GetByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	transaction, err := s.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "fetching transaction")
	}
	if transaction == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("transaction %s not found", transactionID))
	}
	return transaction, nil
}

func (s *service) ListByWallet(ctx context.Context, walletID uint, limit, offset int) ([]models.Transaction, error) {
	return s.repo.ListByWallet(ctx, walletID, limit, offset)
}

func (s *service) createPending(ctx context.Context, txType enums.TransactionType, amount decimal.Decimal, idempotencyKey string) (*models.Transaction, error) {
	transaction := &models.Transaction{
		TransactionID:  uuid.NewString(),
		Type:           txType,
		Status:         enums.TransactionStatusPending,
		Amount:         amount,
		Fee:            decimal.Zero,
		IdempotencyKey: idempotencyKey,
	}
	if err := s.repo.Create(ctx, transaction); err != nil {
		// The guard closes the common race; the unique index is the backstop.
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeDuplicate, "duplicate transaction")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "creating transaction")
	}
	return transaction, nil
}

func (s *service) complete(ctx context.Context, repo Repository, transaction *models.Transaction) error {
	now := s.now()
	transaction.Status = enums.TransactionStatusCompleted
	transaction.CompletedAt = &now
	if err := repo.Save(ctx, transaction); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "marking transaction completed")
	}
	return nil
}

// markFailed records a failed attempt outside the rolled-back transaction so
// the audit trail shows it happened.
func (s *service) markFailed(ctx context.Context, transaction *models.Transaction) {
	transaction.Status = enums.TransactionStatusFailed
	transaction.CompletedAt = nil
	if err := s.repo.Save(ctx, transaction); err != nil && s.logg != nil {
		ctx = s.logg.WithTransactionID(ctx, transaction.TransactionID)
		s.logg.Error(ctx, "failed to mark transaction failed", err)
	}
}

func (s *service) reload(ctx context.Context, transactionID string) (*models.Transaction, error) {
	transaction, err := s.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "reloading transaction")
	}
	if transaction == nil {
		return nil, pkgerrors.New(pkgerrors.CodeOperationFailed, "completed transaction disappeared")
	}
	return transaction, nil
}

func (s *service) logCompleted(ctx context.Context, transaction *models.Transaction) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithTransactionID(ctx, transaction.TransactionID)
	s.logg.Info(ctx, "transaction.completed")
}

func validateAmount(amount decimal.Decimal) error {
	if !money.ValidAmount(amount) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive with at most 2 decimal places")
	}
	return nil
}

func failureReason(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return string(typed.Code())
	}
	return "unknown"
}
