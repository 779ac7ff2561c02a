package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/finbase-io/wallet-engine/api/responses"
	"github.com/finbase-io/wallet-engine/api/validators"
	"github.com/finbase-io/wallet-engine/internal/transactions"
	pkgerrors "github.com/finbase-io/wallet-engine/pkg/errors"
	"github.com/finbase-io/wallet-engine/pkg/logger"
	"github.com/finbase-io/wallet-engine/pkg/money"
	"github.com/finbase-io/wallet-engine/pkg/pagination"
)

const idempotencyKeyHeader = "Idempotency-Key"

type depositRequest struct {
	WalletID         uint   `json:"wallet_id" validate:"required,gt=0"`
	Amount           string `json:"amount" validate:"required"`
	PaymentMethod    string `json:"payment_method,omitempty"`
	PaymentReference string `json:"payment_reference,omitempty"`
	IdempotencyKey   string `json:"idempotency_key,omitempty"`
}

type withdrawRequest struct {
	WalletID            uint   `json:"wallet_id" validate:"required,gt=0"`
	Amount              string `json:"amount" validate:"required"`
	WithdrawalMethod    string `json:"withdrawal_method,omitempty"`
	WithdrawalReference string `json:"withdrawal_reference,omitempty"`
	IdempotencyKey      string `json:"idempotency_key,omitempty"`
}

type transferRequest struct {
	SenderWalletID       uint   `json:"sender_wallet_id" validate:"required,gt=0"`
	ReceiverWalletNumber string `json:"receiver_wallet_number" validate:"required"`
	Amount               string `json:"amount" validate:"required"`
	IdempotencyKey       string `json:"idempotency_key,omitempty"`
}

// idempotencyKey prefers the header; the body field is the fallback for
// clients that cannot set custom headers.
func idempotencyKey(r *http.Request, bodyKey string) (string, error) {
	key := r.Header.Get(idempotencyKeyHeader)
	if key == "" {
		key = bodyKey
	}
	if key == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	if _, err := uuid.Parse(key); err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "idempotency key must be a uuid")
	}
	return key, nil
}

func Deposit(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req depositRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		key, err := idempotencyKey(r, req.IdempotencyKey)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		amount, err := money.Parse(req.Amount)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		transaction, err := svc.Deposit(ctx, transactions.DepositInput{
			WalletID:         req.WalletID,
			Amount:           amount,
			PaymentMethod:    req.PaymentMethod,
			PaymentReference: req.PaymentReference,
			IdempotencyKey:   key,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newTransactionResponse(transaction))
	}
}

func Withdraw(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req withdrawRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		key, err := idempotencyKey(r, req.IdempotencyKey)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		amount, err := money.Parse(req.Amount)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		transaction, err := svc.Withdraw(ctx, transactions.WithdrawInput{
			WalletID:            req.WalletID,
			Amount:              amount,
			WithdrawalMethod:    req.WithdrawalMethod,
			WithdrawalReference: req.WithdrawalReference,
			IdempotencyKey:      key,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newTransactionResponse(transaction))
	}
}

func Transfer(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req transferRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		key, err := idempotencyKey(r, req.IdempotencyKey)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		amount, err := money.Parse(req.Amount)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		transaction, err := svc.Transfer(ctx, transactions.TransferInput{
			SenderWalletID:       req.SenderWalletID,
			ReceiverWalletNumber: req.ReceiverWalletNumber,
			Amount:               amount,
			IdempotencyKey:       key,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newTransactionResponse(transaction))
	}
}

func TransactionDetail(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		transactionID := chi.URLParam(r, "transactionId")
		if _, err := uuid.Parse(transactionID); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction id"))
			return
		}

		transaction, err := svc.GetByTransactionID(ctx, transactionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTransactionResponse(transaction))
	}
}

func WalletTransactions(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := walletIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page := pagination.FromRequest(r)

		history, err := svc.ListByWallet(ctx, id, page.Limit, page.Offset)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTransactionListResponse(history))
	}
}
