package ledger

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/finbase-io/wallet-engine/pkg/db/models"
)

// Repository manages persistence for ledger entries. Entries are append-only;
// there is deliberately no update or delete surface.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	LastForWallet(ctx context.Context, walletID uint) (*models.LedgerEntry, error)
	ListByWallet(ctx context.Context, walletID uint) ([]models.LedgerEntry, error)
	ListByTransactionID(ctx context.Context, transactionID string) ([]models.LedgerEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) LastForWallet(ctx context.Context, walletID uint) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("id DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListByWallet(ctx context.Context, walletID uint) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByTransactionID(ctx context.Context, transactionID string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
