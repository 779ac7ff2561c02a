package transactions

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/finbase-io/wallet-engine/pkg/db/models"
	"github.com/finbase-io/wallet-engine/pkg/enums"
)

// Repository manages persistence for transactions and their detail records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, transaction *models.Transaction) error
	Save(ctx context.Context, transaction *models.Transaction) error
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error)
	ListByWallet(ctx context.Context, walletID uint, limit, offset int) ([]models.Transaction, error)
	ListStuckProcessing(ctx context.Context, olderThan time.Time) ([]models.Transaction, error)

	CreateDeposit(ctx context.Context, deposit *models.Deposit) error
	CreateWithdrawal(ctx context.Context, withdrawal *models.Withdrawal) error
	CreateTransfer(ctx context.Context, transfer *models.Transfer) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transaction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, transaction *models.Transaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

func (r *repository) Save(ctx context.Context, transaction *models.Transaction) error {
	return r.db.WithContext(ctx).Save(transaction).Error
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.db.WithContext(ctx).First(&transaction, "idempotency_key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) FindByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.db.WithContext(ctx).
		Preload("Deposit").
		Preload("Withdrawal").
		Preload("Transfer").
		First(&transaction, "transaction_id = ?", transactionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) ListByWallet(ctx context.Context, walletID uint, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var transactions []models.Transaction
	err := r.db.WithContext(ctx).
		Preload("Deposit").
		Preload("Withdrawal").
		Preload("Transfer").
		Where(`transaction_id IN (
			SELECT transaction_id FROM deposits WHERE wallet_id = @wallet
			UNION SELECT transaction_id FROM withdrawals WHERE wallet_id = @wallet
			UNION SELECT transaction_id FROM transfers WHERE sender_wallet_id = @wallet OR receiver_wallet_id = @wallet
		)`, map[string]any{"wallet": walletID}).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

func (r *repository) ListStuckProcessing(ctx context.Context, olderThan time.Time) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.TransactionStatusProcessing, olderThan).
		Order("id ASC").
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

func (r *repository) CreateDeposit(ctx context.Context, deposit *models.Deposit) error {
	return r.db.WithContext(ctx).Create(deposit).Error
}

func (r *repository) CreateWithdrawal(ctx context.Context, withdrawal *models.Withdrawal) error {
	return r.db.WithContext(ctx).Create(withdrawal).Error
}

func (r *repository) CreateTransfer(ctx context.Context, transfer *models.Transfer) error {
	return r.db.WithContext(ctx).Create(transfer).Error
}
