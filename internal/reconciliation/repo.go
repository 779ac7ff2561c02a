package reconciliation

import (
	"context"

	"gorm.io/gorm"

	"github.com/finbase-io/wallet-engine/pkg/db/models"
)

// Repository persists reconciliation snapshots.
type Repository interface {
	CreateSnapshot(ctx context.Context, snapshot *models.WalletBalanceSnapshot) error
	ListSnapshotsByWallet(ctx context.Context, walletID uint, limit int) ([]models.WalletBalanceSnapshot, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a snapshot repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateSnapshot(ctx context.Context, snapshot *models.WalletBalanceSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *repository) ListSnapshotsByWallet(ctx context.Context, walletID uint, limit int) ([]models.WalletBalanceSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	var snapshots []models.WalletBalanceSnapshot
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("id DESC").
		Limit(limit).
		Find(&snapshots).Error
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}
