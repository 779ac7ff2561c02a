package wallets

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/finbase-io/wallet-engine/pkg/db/models"
)

// Repository manages persistence for wallets.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, wallet *models.Wallet) error
	// CreateWithSeed provisions a wallet together with the completed deposit
	// transaction, detail and opening ledger entry that record its initial
	// balance, atomically.
	CreateWithSeed(ctx context.Context, wallet *models.Wallet, seed *models.Transaction, deposit *models.Deposit, entry *models.LedgerEntry) error
	FindByID(ctx context.Context, id uint) (*models.Wallet, error)
	FindByNumber(ctx context.Context, number string) (*models.Wallet, error)
	// LockForUpdate re-reads the wallet row with a row-level lock inside tx.
	// It serializes against any writer that bypassed the named wallet lock.
	LockForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Wallet, error)
	Save(ctx context.Context, wallet *models.Wallet) error
	// ListBatch pages through all wallets ordered by id, starting after afterID.
	ListBatch(ctx context.Context, afterID uint, limit int) ([]models.Wallet, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) CreateWithSeed(ctx context.Context, wallet *models.Wallet, seed *models.Transaction, deposit *models.Deposit, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(wallet).Error; err != nil {
			return err
		}
		if err := tx.Create(seed).Error; err != nil {
			return err
		}
		deposit.WalletID = wallet.ID
		if err := tx.Create(deposit).Error; err != nil {
			return err
		}
		entry.WalletID = wallet.ID
		entry.ReferenceID = deposit.ID
		return tx.Create(entry).Error
	})
}

func (r *repository) FindByID(ctx context.Context, id uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).First(&wallet, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindByNumber(ctx context.Context, number string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).First(&wallet, "wallet_number = ?", number).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) LockForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Wallet, error) {
	conn := tx
	if conn == nil {
		conn = r.db
	}
	query := conn.WithContext(ctx)
	// sqlite (tests) has no FOR UPDATE; its writes serialize on the file lock.
	if conn.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var wallet models.Wallet
	err := query.First(&wallet, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) Save(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Save(wallet).Error
}

func (r *repository) ListBatch(ctx context.Context, afterID uint, limit int) ([]models.Wallet, error) {
	if limit <= 0 {
		limit = 100
	}
	var wallets []models.Wallet
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&wallets).Error
	if err != nil {
		return nil, err
	}
	return wallets, nil
}
