package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/finbase-io/wallet-engine/pkg/db/models"
	"github.com/finbase-io/wallet-engine/pkg/enums"
	"github.com/finbase-io/wallet-engine/pkg/money"
)

// Service appends balance-chained ledger entries. Append must run inside the
// same storage transaction as the balance mutation it records, while the
// caller holds the wallet's lock; it is not independently transactional.
type Service interface {
	Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.LedgerEntry, error)
	ListByWallet(ctx context.Context, walletID uint) ([]models.LedgerEntry, error)
	ListByTransactionID(ctx context.Context, transactionID string) ([]models.LedgerEntry, error)
	LastForWallet(ctx context.Context, walletID uint) (*models.LedgerEntry, error)
	VerifyChain(ctx context.Context, walletID uint) (*ChainReport, error)
}

// AppendInput captures the immutable data a ledger entry requires.
type AppendInput struct {
	Wallet        *models.Wallet
	Amount        decimal.Decimal
	Type          enums.LedgerEntryType
	TransactionID string
	ReferenceType enums.LedgerReferenceType
	ReferenceID   uint
	Description   string
}

// ChainReport is the result of walking one wallet's ledger chain.
type ChainReport struct {
	WalletID   uint
	Entries    int
	Intact     bool
	BrokenAtID uint
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.LedgerEntry, error) {
	if tx == nil {
		return nil, fmt.Errorf("ledger append requires an open transaction")
	}
	if input.Wallet == nil {
		return nil, fmt.Errorf("wallet is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger entry type %q", input.Type)
	}
	if !input.ReferenceType.IsValid() {
		return nil, fmt.Errorf("invalid ledger reference type %q", input.ReferenceType)
	}
	if input.TransactionID == "" {
		return nil, fmt.Errorf("transaction id is required")
	}
	if input.Amount.IsNegative() {
		return nil, fmt.Errorf("ledger amounts must be non-negative")
	}

	repo := s.repo.WithTx(tx)

	last, err := repo.LastForWallet(ctx, input.Wallet.ID)
	if err != nil {
		return nil, err
	}
	balanceBefore := decimal.Zero
	if last != nil {
		balanceBefore = last.BalanceAfter
	}

	var balanceAfter decimal.Decimal
	switch input.Type {
	case enums.LedgerEntryTypeCredit:
		balanceAfter = money.Add(balanceBefore, input.Amount)
	case enums.LedgerEntryTypeDebit, enums.LedgerEntryTypeFee:
		balanceAfter = money.Sub(balanceBefore, input.Amount)
	}
	// The ledger never shows a negative balance even if upstream checks were
	// bypassed; the floor keeps the audit trail readable.
	balanceAfter = money.ClampFloor(balanceAfter)

	entry := &models.LedgerEntry{
		TransactionID: input.TransactionID,
		WalletID:      input.Wallet.ID,
		Type:          input.Type,
		Amount:        input.Amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		ReferenceType: input.ReferenceType,
		ReferenceID:   input.ReferenceID,
	}
	if input.Description != "" {
		entry.Description = &input.Description
	}

	if err := repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) ListByWallet(ctx context.Context, walletID uint) ([]models.LedgerEntry, error) {
	return s.repo.ListByWallet(ctx, walletID)
}

func (s *service) ListByTransactionID(ctx context.Context, transactionID string) ([]models.LedgerEntry, error) {
	return s.repo.ListByTransactionID(ctx, transactionID)
}

func (s *service) LastForWallet(ctx context.Context, walletID uint) (*models.LedgerEntry, error) {
	return s.repo.LastForWallet(ctx, walletID)
}

// VerifyChain walks the wallet's entries in creation order and checks that
// each balance_before equals the previous balance_after, starting from zero.
func (s *service) VerifyChain(ctx context.Context, walletID uint) (*ChainReport, error) {
	entries, err := s.repo.ListByWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}

	report := &ChainReport{WalletID: walletID, Entries: len(entries), Intact: true}
	expected := decimal.Zero
	for _, entry := range entries {
		if !entry.BalanceBefore.Equal(expected) {
			report.Intact = false
			report.BrokenAtID = entry.ID
			return report, nil
		}
		expected = entry.BalanceAfter
	}
	return report, nil
}
