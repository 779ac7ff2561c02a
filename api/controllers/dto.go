package controllers

import (
	"time"

	"github.com/finbase-io/wallet-engine/pkg/db/models"
	"github.com/finbase-io/wallet-engine/pkg/money"
)

type walletResponse struct {
	ID           uint      `json:"id"`
	WalletNumber string    `json:"wallet_number"`
	UserID       uint      `json:"user_id"`
	Balance      string    `json:"balance"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func newWalletResponse(wallet *models.Wallet) walletResponse {
	return walletResponse{
		ID:           wallet.ID,
		WalletNumber: wallet.WalletNumber,
		UserID:       wallet.UserID,
		Balance:      money.Format(wallet.Balance),
		Status:       wallet.Status.String(),
		CreatedAt:    wallet.CreatedAt,
	}
}

type transactionResponse struct {
	TransactionID string     `json:"transaction_id"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	Amount        string     `json:"amount"`
	Fee           string     `json:"fee"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	Deposit    *depositResponse    `json:"deposit,omitempty"`
	Withdrawal *withdrawalResponse `json:"withdrawal,omitempty"`
	Transfer   *transferResponse   `json:"transfer,omitempty"`
}

type depositResponse struct {
	WalletID         uint    `json:"wallet_id"`
	PaymentMethod    string  `json:"payment_method"`
	PaymentReference *string `json:"payment_reference,omitempty"`
}

type withdrawalResponse struct {
	WalletID            uint    `json:"wallet_id"`
	WithdrawalMethod    string  `json:"withdrawal_method"`
	WithdrawalReference *string `json:"withdrawal_reference,omitempty"`
}

type transferResponse struct {
	SenderWalletID   uint `json:"sender_wallet_id"`
	ReceiverWalletID uint `json:"receiver_wallet_id"`
}

func newTransactionResponse(transaction *models.Transaction) transactionResponse {
	resp := transactionResponse{
		TransactionID: transaction.TransactionID,
		Type:          transaction.Type.String(),
		Status:        transaction.Status.String(),
		Amount:        money.Format(transaction.Amount),
		Fee:           money.Format(transaction.Fee),
		CreatedAt:     transaction.CreatedAt,
		CompletedAt:   transaction.CompletedAt,
	}
	if transaction.Deposit != nil {
		resp.Deposit = &depositResponse{
			WalletID:         transaction.Deposit.WalletID,
			PaymentMethod:    transaction.Deposit.PaymentMethod,
			PaymentReference: transaction.Deposit.PaymentReference,
		}
	}
	if transaction.Withdrawal != nil {
		resp.Withdrawal = &withdrawalResponse{
			WalletID:            transaction.Withdrawal.WalletID,
			WithdrawalMethod:    transaction.Withdrawal.WithdrawalMethod,
			WithdrawalReference: transaction.Withdrawal.WithdrawalReference,
		}
	}
	if transaction.Transfer != nil {
		resp.Transfer = &transferResponse{
			SenderWalletID:   transaction.Transfer.SenderWalletID,
			ReceiverWalletID: transaction.Transfer.ReceiverWalletID,
		}
	}
	return resp
}

func newTransactionListResponse(transactions []models.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(transactions))
	for i := range transactions {
		out = append(out, newTransactionResponse(&transactions[i]))
	}
	return out
}

type ledgerEntryResponse struct {
	ID            uint      `json:"id"`
	TransactionID string    `json:"transaction_id"`
	WalletID      uint      `json:"wallet_id"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	BalanceBefore string    `json:"balance_before"`
	BalanceAfter  string    `json:"balance_after"`
	ReferenceType string    `json:"reference_type"`
	Description   *string   `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func newLedgerEntryListResponse(entries []models.LedgerEntry) []ledgerEntryResponse {
	out := make([]ledgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ledgerEntryResponse{
			ID:            entry.ID,
			TransactionID: entry.TransactionID,
			WalletID:      entry.WalletID,
			Type:          entry.Type.String(),
			Amount:        money.Format(entry.Amount),
			BalanceBefore: money.Format(entry.BalanceBefore),
			BalanceAfter:  money.Format(entry.BalanceAfter),
			ReferenceType: entry.ReferenceType.String(),
			Description:   entry.Description,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return out
}
