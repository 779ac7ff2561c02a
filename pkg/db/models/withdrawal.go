package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Withdrawal is the detail record for a completed withdrawal transaction.
type Withdrawal struct {
	ID                  uint            `gorm:"column:id;primaryKey;autoIncrement"`
	TransactionID       string          `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex"`
	WalletID            uint            `gorm:"column:wallet_id;not null;index"`
	Amount              decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	WithdrawalMethod    string          `gorm:"column:withdrawal_method;not null;default:'bank_transfer'"`
	WithdrawalReference *string         `gorm:"column:withdrawal_reference"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
}
