package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deposit is the detail record for a completed deposit transaction.
type Deposit struct {
	ID               uint            `gorm:"column:id;primaryKey;autoIncrement"`
	TransactionID    string          `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex"`
	WalletID         uint            `gorm:"column:wallet_id;not null;index"`
	Amount           decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	PaymentMethod    string          `gorm:"column:payment_method;not null;default:'bank_transfer'"`
	PaymentReference *string         `gorm:"column:payment_reference"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}
