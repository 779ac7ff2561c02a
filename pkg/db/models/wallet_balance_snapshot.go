package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletBalanceSnapshot is a point-in-time record written by the
// reconciliation worker for audit dashboards. It never feeds the write path.
type WalletBalanceSnapshot struct {
	ID            uint            `gorm:"column:id;primaryKey;autoIncrement"`
	WalletID      uint            `gorm:"column:wallet_id;not null;index"`
	Balance       decimal.Decimal `gorm:"column:balance;type:numeric(12,2);not null"`
	LedgerBalance decimal.Decimal `gorm:"column:ledger_balance;type:numeric(12,2);not null"`
	Drifted       bool            `gorm:"column:drifted;not null;default:false"`
	SnapshotAt    time.Time       `gorm:"column:snapshot_at;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}
