package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbase-io/wallet-engine/pkg/enums"
)

// Wallet holds a single balance. The balance column always equals the
// balance_after of the wallet's most recent ledger entry; it is mutated only
// inside a locked, atomic transaction.
type Wallet struct {
	ID           uint               `gorm:"column:id;primaryKey;autoIncrement"`
	WalletNumber string             `gorm:"column:wallet_number;not null;uniqueIndex"`
	UserID       uint               `gorm:"column:user_id;not null;index"`
	Balance      decimal.Decimal    `gorm:"column:balance;type:numeric(12,2);not null;default:0"`
	Status       enums.WalletStatus `gorm:"column:status;type:wallet_status;not null;default:'active'"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// IsActive reports whether the wallet accepts balance mutations.
func (w *Wallet) IsActive() bool {
	return w != nil && w.Status == enums.WalletStatusActive
}
