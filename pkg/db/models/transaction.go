package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbase-io/wallet-engine/pkg/enums"
)

// Transaction is the audit record of one requested money movement. The
// TransactionID is the externally visible identity, distinct from the storage
// primary key. Exactly one detail record (Deposit, Withdrawal or Transfer)
// exists once the row reaches completed.
type Transaction struct {
	ID             uint                    `gorm:"column:id;primaryKey;autoIncrement"`
	TransactionID  string                  `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex"`
	Type           enums.TransactionType   `gorm:"column:type;type:transaction_type;not null"`
	Status         enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'pending'"`
	Amount         decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	Fee            decimal.Decimal         `gorm:"column:fee;type:numeric(12,2);not null;default:0"`
	IdempotencyKey string                  `gorm:"column:idempotency_key;not null;uniqueIndex"`
	CompletedAt    *time.Time              `gorm:"column:completed_at"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`

	Deposit    *Deposit    `gorm:"foreignKey:TransactionID;references:TransactionID"`
	Withdrawal *Withdrawal `gorm:"foreignKey:TransactionID;references:TransactionID"`
	Transfer   *Transfer   `gorm:"foreignKey:TransactionID;references:TransactionID"`
}
