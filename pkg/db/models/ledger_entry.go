package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbase-io/wallet-engine/pkg/enums"
)

// LedgerEntry records one immutable balance mutation. Entries form a chain per
// wallet ordered by id: each entry's balance_before equals the previous
// entry's balance_after, and the first entry starts from zero.
type LedgerEntry struct {
	ID            uint                      `gorm:"column:id;primaryKey;autoIncrement"`
	TransactionID string                    `gorm:"column:transaction_id;type:uuid;not null;index"`
	WalletID      uint                      `gorm:"column:wallet_id;not null;index"`
	Type          enums.LedgerEntryType     `gorm:"column:type;type:ledger_entry_type;not null"`
	Amount        decimal.Decimal           `gorm:"column:amount;type:numeric(12,2);not null"`
	BalanceBefore decimal.Decimal           `gorm:"column:balance_before;type:numeric(12,2);not null"`
	BalanceAfter  decimal.Decimal           `gorm:"column:balance_after;type:numeric(12,2);not null"`
	ReferenceType enums.LedgerReferenceType `gorm:"column:reference_type;not null"`
	ReferenceID   uint                      `gorm:"column:reference_id;not null"`
	Description   *string                   `gorm:"column:description"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
