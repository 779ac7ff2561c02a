package wallets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finbase-io/wallet-engine/pkg/db/models"
	"github.com/finbase-io/wallet-engine/pkg/enums"
	pkgerrors "github.com/finbase-io/wallet-engine/pkg/errors"
)

// Service exposes wallet provisioning and read operations. Balance mutations
// never happen here; those belong to the transaction orchestrator.
type Service interface {
	Create(ctx context.Context, input CreateWalletInput) (*models.Wallet, error)
	GetByID(ctx context.Context, id uint) (*models.Wallet, error)
	GetByNumber(ctx context.Context, number string) (*models.Wallet, error)
	SetStatus(ctx context.Context, id uint, status enums.WalletStatus) (*models.Wallet, error)
}

// CreateWalletInput captures the data needed to provision a wallet.
type CreateWalletInput struct {
	UserID         uint
	InitialBalance decimal.Decimal
}

type service struct {
	repo Repository
}

// NewService wires a wallet service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateWalletInput) (*models.Wallet, error) {
	if input.UserID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.InitialBalance.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial balance cannot be negative")
	}

	wallet := &models.Wallet{
		WalletNumber: newWalletNumber(),
		UserID:       input.UserID,
		Balance:      input.InitialBalance,
		Status:       enums.WalletStatusActive,
	}

	// A zero-balance wallet is a bare row. A seeded one also gets the
	// completed deposit and opening ledger entry recording where the money
	// came from, so the ledger chain agrees with the balance from entry one.
	if !input.InitialBalance.IsPositive() {
		if err := s.repo.Create(ctx, wallet); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "creating wallet")
		}
		return wallet, nil
	}

	now := time.Now()
	seed := &models.Transaction{
		TransactionID:  uuid.NewString(),
		Type:           enums.TransactionTypeDeposit,
		Status:         enums.TransactionStatusCompleted,
		Amount:         input.InitialBalance,
		Fee:            decimal.Zero,
		IdempotencyKey: uuid.NewString(),
		CompletedAt:    &now,
	}
	deposit := &models.Deposit{
		TransactionID: seed.TransactionID,
		Amount:        input.InitialBalance,
		PaymentMethod: openingPaymentMethod,
	}
	description := "Opening balance"
	entry := &models.LedgerEntry{
		TransactionID: seed.TransactionID,
		Type:          enums.LedgerEntryTypeCredit,
		Amount:        input.InitialBalance,
		BalanceBefore: decimal.Zero,
		BalanceAfter:  input.InitialBalance,
		ReferenceType: enums.LedgerReferenceTypeDeposit,
		Description:   &description,
	}
	if err := s.repo.CreateWithSeed(ctx, wallet, seed, deposit, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "creating wallet")
	}
	return wallet, nil
}

func (s *service) GetByID(ctx context.Context, id uint) (*models.Wallet, error) {
	wallet, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "fetching wallet")
	}
	if wallet == nil {
		return nil, pkgerrors.New(pkgerrors.CodeWalletNotFound, fmt.Sprintf("wallet %d not found", id))
	}
	return wallet, nil
}

func (s *service) GetByNumber(ctx context.Context, number string) (*models.Wallet, error) {
	wallet, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "fetching wallet")
	}
	if wallet == nil {
		return nil, pkgerrors.New(pkgerrors.CodeWalletNotFound, fmt.Sprintf("wallet %s not found", number))
	}
	return wallet, nil
}

func (s *service) SetStatus(ctx context.Context, id uint, status enums.WalletStatus) (*models.Wallet, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid wallet status %q", status))
	}
	wallet, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	wallet.Status = status
	if err := s.repo.Save(ctx, wallet); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "updating wallet status")
	}
	return wallet, nil
}

// openingPaymentMethod tags the synthetic deposit that records a wallet's
// initial balance.
const openingPaymentMethod = "opening_balance"

// newWalletNumber mints an externally addressable wallet number.
func newWalletNumber() string {
	return "WLT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}
