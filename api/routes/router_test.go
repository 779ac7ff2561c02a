package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/finbase-io/wallet-engine/internal/fees"
	"github.com/finbase-io/wallet-engine/internal/idempotency"
	"github.com/finbase-io/wallet-engine/internal/ledger"
	"github.com/finbase-io/wallet-engine/internal/locks"
	"github.com/finbase-io/wallet-engine/internal/reconciliation"
	"github.com/finbase-io/wallet-engine/internal/transactions"
	"github.com/finbase-io/wallet-engine/internal/wallets"
	"github.com/finbase-io/wallet-engine/pkg/config"
	"github.com/finbase-io/wallet-engine/pkg/db/models"
)

type gormTxRunner struct{ db *gorm.DB }

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type testKeys struct{}

func (testKeys) WalletLockKey(walletID uint) string {
	return fmt.Sprintf("wallet:wallet_lock:%d", walletID)
}

func (testKeys) IdempotencyLockKey(key string) string {
	return "wallet:idempotency:" + key
}

func newTestServer(t *testing.T) *httptest.Server {
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
		&models.Withdrawal{},
		&models.Transfer{},
		&models.LedgerEntry{},
		&models.WalletBalanceSnapshot{},
	))

	transactionRepo := transactions.NewRepository(db)
	walletRepo := wallets.NewRepository(db)

	walletService, err := wallets.NewService(walletRepo)
	require.NoError(t, err)

	ledgerService, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)

	provider := locks.NewMemoryProvider()
	coordinator, err := locks.NewCoordinator(provider, gormTxRunner{db}, walletRepo, testKeys{}, config.LockConfig{
		WalletLockTTL:    30 * time.Second,
		MaxRetryAttempts: 10,
		RetryDelay:       2 * time.Millisecond,
	}, nil, nil)
	require.NoError(t, err)

	guard, err := idempotency.NewGuard(transactionRepo, provider, testKeys{}, time.Minute, nil)
	require.NoError(t, err)

	transactionService, err := transactions.NewService(transactions.ServiceParams{
		Repo:        transactionRepo,
		WalletRepo:  walletRepo,
		Ledger:      ledgerService,
		Guard:       guard,
		Coordinator: coordinator,
		Fees:        fees.NewCalculator(),
	})
	require.NoError(t, err)

	reconciliationService, err := reconciliation.NewService(reconciliation.ServiceParams{
		Repo:         reconciliation.NewRepository(db),
		WalletRepo:   walletRepo,
		Ledger:       ledgerService,
		Transactions: transactionRepo,
		Config:       config.ReconcilerConfig{VerifyLedgerChains: true},
	})
	require.NoError(t, err)

	cfg := &config.Config{App: config.AppConfig{Env: "test", Port: "0"}}
	handler := NewRouter(cfg, nil, nil, nil, walletService, transactionService, ledgerService, reconciliationService)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func createWallet(t *testing.T, server *httptest.Server, userID uint, balance string) map[string]any {
	t.Helper()
	resp, body := postJSON(t, server.URL+"/api/v1/wallets", map[string]any{
		"user_id":         userID,
		"initial_balance": balance,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	return data
}

func TestRouter_HealthLive(t *testing.T) {
	server := newTestServer(t)

	resp, body := getJSON(t, server.URL+"/health/live")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "live", data["status"])
}

func TestRouter_WalletLifecycle(t *testing.T) {
	server := newTestServer(t)

	wallet := createWallet(t, server, 1, "100.00")
	assert.Equal(t, "100.00", wallet["balance"])
	assert.Equal(t, "active", wallet["status"])

	walletID := int(wallet["id"].(float64))
	resp, body := getJSON(t, fmt.Sprintf("%s/api/v1/wallets/%d", server.URL, walletID))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, wallet["wallet_number"], data["wallet_number"])

	resp, body = getJSON(t, server.URL+"/api/v1/wallets/number/"+wallet["wallet_number"].(string))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(walletID), body["data"].(map[string]any)["id"])

	resp, _ = getJSON(t, server.URL+"/api/v1/wallets/9999")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_DepositFlow(t *testing.T) {
	server := newTestServer(t)
	wallet := createWallet(t, server, 1, "0.00")
	walletID := int(wallet["id"].(float64))

	key := uuid.NewString()
	resp, body := postJSON(t, server.URL+"/api/v1/transactions/deposit", map[string]any{
		"wallet_id": walletID,
		"amount":    "50.00",
	}, map[string]string{"Idempotency-Key": key})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	data := body["data"].(map[string]any)
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, "50.00", data["amount"])
	transactionID := data["transaction_id"].(string)

	// Replaying the same key is rejected as a duplicate.
	resp, body = postJSON(t, server.URL+"/api/v1/transactions/deposit", map[string]any{
		"wallet_id": walletID,
		"amount":    "50.00",
	}, map[string]string{"Idempotency-Key": key})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "DUPLICATE_TRANSACTION", errBody["code"])

	resp, body = getJSON(t, server.URL+"/api/v1/transactions/"+transactionID)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]any)
	require.NotNil(t, data["deposit"])

	resp, body = getJSON(t, fmt.Sprintf("%s/api/v1/wallets/%d/ledger", server.URL, walletID))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	entries := body["data"].([]any)
	require.Len(t, entries, 1)
}

func TestRouter_TransferFlow(t *testing.T) {
	server := newTestServer(t)
	sender := createWallet(t, server, 1, "1000.00")
	receiver := createWallet(t, server, 2, "0.00")
	senderID := int(sender["id"].(float64))

	resp, body := postJSON(t, server.URL+"/api/v1/transactions/transfer", map[string]any{
		"sender_wallet_id":       senderID,
		"receiver_wallet_number": receiver["wallet_number"],
		"amount":                 "200.00",
	}, map[string]string{"Idempotency-Key": uuid.NewString()})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	data := body["data"].(map[string]any)
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, "22.50", data["fee"])

	resp, body = getJSON(t, fmt.Sprintf("%s/api/v1/wallets/%d", server.URL, senderID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "777.50", body["data"].(map[string]any)["balance"])

	// Reconciliation sees no drift after the transfer.
	resp, body = getJSON(t, fmt.Sprintf("%s/api/v1/wallets/%d/reconciliation", server.URL, senderID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := body["data"].(map[string]any)
	assert.Equal(t, false, report["drifted"])
	assert.Equal(t, true, report["chain_intact"])
}

func TestRouter_WithdrawInsufficientBalance(t *testing.T) {
	server := newTestServer(t)
	wallet := createWallet(t, server, 1, "10.00")
	walletID := int(wallet["id"].(float64))

	resp, body := postJSON(t, server.URL+"/api/v1/transactions/withdraw", map[string]any{
		"wallet_id": walletID,
		"amount":    "10.01",
	}, map[string]string{"Idempotency-Key": uuid.NewString()})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "INSUFFICIENT_BALANCE", errBody["code"])
}

func TestRouter_MissingIdempotencyKey(t *testing.T) {
	server := newTestServer(t)
	wallet := createWallet(t, server, 1, "10.00")
	walletID := int(wallet["id"].(float64))

	resp, body := postJSON(t, server.URL+"/api/v1/transactions/deposit", map[string]any{
		"wallet_id": walletID,
		"amount":    "5.00",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", errBody["code"])
}
