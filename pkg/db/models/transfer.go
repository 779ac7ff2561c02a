package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer is the detail record for a completed peer-to-peer transfer. It owns
// three ledger entries when the fee is positive (sender debit, sender fee,
// receiver credit) and two when the fee is zero.
type Transfer struct {
	ID               uint            `gorm:"column:id;primaryKey;autoIncrement"`
	TransactionID    string          `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex"`
	SenderWalletID   uint            `gorm:"column:sender_wallet_id;not null;index"`
	ReceiverWalletID uint            `gorm:"column:receiver_wallet_id;not null;index"`
	Amount           decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Fee              decimal.Decimal `gorm:"column:fee;type:numeric(12,2);not null;default:0"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}
