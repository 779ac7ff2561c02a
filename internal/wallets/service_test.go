package wallets

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/finbase-io/wallet-engine/pkg/db/models"
	"github.com/finbase-io/wallet-engine/pkg/enums"
	pkgerrors "github.com/finbase-io/wallet-engine/pkg/errors"
)

func setupWalletsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.Wallet{},
		&models.Transaction{},
		&models.Deposit{},
		&models.LedgerEntry{},
	))
	return db
}

func newWalletService(t *testing.T) (Service, Repository) {
	t.Helper()
	repo := NewRepository(setupWalletsTestDB(t))
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo
}

func TestCreate_MintsNumberAndActivates(t *testing.T) {
	svc, _ := newWalletService(t)

	wallet, err := svc.Create(context.Background(), CreateWalletInput{
		UserID:         42,
		InitialBalance: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	assert.NotZero(t, wallet.ID)
	assert.True(t, strings.HasPrefix(wallet.WalletNumber, "WLT-"))
	assert.Len(t, wallet.WalletNumber, len("WLT-")+12)
	assert.Equal(t, enums.WalletStatusActive, wallet.Status)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(100)))
}

func TestCreate_SeedsOpeningLedgerEntry(t *testing.T) {
	db := setupWalletsTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	ctx := context.Background()

	seeded, err := svc.Create(ctx, CreateWalletInput{
		UserID:         42,
		InitialBalance: decimal.RequireFromString("100.00"),
	})
	require.NoError(t, err)

	var entries []models.LedgerEntry
	require.NoError(t, db.Where("wallet_id = ?", seeded.ID).Order("id ASC").Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, enums.LedgerEntryTypeCredit, entries[0].Type)
	assert.Equal(t, enums.LedgerReferenceTypeDeposit, entries[0].ReferenceType)
	assert.True(t, entries[0].BalanceBefore.IsZero())
	assert.True(t, entries[0].BalanceAfter.Equal(seeded.Balance))
	assert.True(t, entries[0].Amount.Equal(seeded.Balance))

	var seedTx models.Transaction
	require.NoError(t, db.Where("transaction_id = ?", entries[0].TransactionID).First(&seedTx).Error)
	assert.Equal(t, enums.TransactionTypeDeposit, seedTx.Type)
	assert.Equal(t, enums.TransactionStatusCompleted, seedTx.Status)
	assert.True(t, seedTx.Fee.IsZero())
	require.NotNil(t, seedTx.CompletedAt)

	var detail models.Deposit
	require.NoError(t, db.Where("transaction_id = ?", seedTx.TransactionID).First(&detail).Error)
	assert.Equal(t, seeded.ID, detail.WalletID)
	assert.Equal(t, openingPaymentMethod, detail.PaymentMethod)

	bare, err := svc.Create(ctx, CreateWalletInput{UserID: 43})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Where("wallet_id = ?", bare.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newWalletService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateWalletInput{UserID: 0})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Create(ctx, CreateWalletInput{UserID: 1, InitialBalance: decimal.NewFromInt(-1)})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetByIDAndNumber(t *testing.T) {
	svc, _ := newWalletService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateWalletInput{UserID: 7})
	require.NoError(t, err)

	byID, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.WalletNumber, byID.WalletNumber)

	byNumber, err := svc.GetByNumber(ctx, created.WalletNumber)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byNumber.ID)

	_, err = svc.GetByID(ctx, 9999)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeWalletNotFound))

	_, err = svc.GetByNumber(ctx, "WLT-MISSING0")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeWalletNotFound))
}

func TestSetStatus(t *testing.T) {
	svc, repo := newWalletService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateWalletInput{UserID: 7})
	require.NoError(t, err)

	updated, err := svc.SetStatus(ctx, created.ID, enums.WalletStatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, enums.WalletStatusSuspended, updated.Status)
	assert.False(t, updated.IsActive())

	stored, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.WalletStatusSuspended, stored.Status)

	_, err = svc.SetStatus(ctx, created.ID, "deleted")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListBatch_PagesInOrder(t *testing.T) {
	svc, repo := newWalletService(t)
	ctx := context.Background()

	var ids []uint
	for i := 0; i < 5; i++ {
		wallet, err := svc.Create(ctx, CreateWalletInput{UserID: uint(i + 1)})
		require.NoError(t, err)
		ids = append(ids, wallet.ID)
	}

	first, err := repo.ListBatch(ctx, 0, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, ids[0], first[0].ID)

	second, err := repo.ListBatch(ctx, first[len(first)-1].ID, 3)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, ids[3], second[0].ID)

	empty, err := repo.ListBatch(ctx, second[len(second)-1].ID, 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
