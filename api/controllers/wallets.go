package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/finbase-io/wallet-engine/api/responses"
	"github.com/finbase-io/wallet-engine/api/validators"
	"github.com/finbase-io/wallet-engine/internal/ledger"
	"github.com/finbase-io/wallet-engine/internal/wallets"
	"github.com/finbase-io/wallet-engine/pkg/enums"
	pkgerrors "github.com/finbase-io/wallet-engine/pkg/errors"
	"github.com/finbase-io/wallet-engine/pkg/logger"
	"github.com/finbase-io/wallet-engine/pkg/money"
)

type createWalletRequest struct {
	UserID         uint   `json:"user_id" validate:"required,gt=0"`
	InitialBalance string `json:"initial_balance,omitempty"`
}

type updateWalletStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func walletIDParam(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "walletId")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid wallet id")
	}
	return uint(id), nil
}

func WalletCreate(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req createWalletRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := wallets.CreateWalletInput{UserID: req.UserID}
		if req.InitialBalance != "" {
			balance, err := money.Parse(req.InitialBalance)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid initial balance"))
				return
			}
			input.InitialBalance = balance
		}

		wallet, err := svc.Create(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newWalletResponse(wallet))
	}
}

func WalletDetail(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := walletIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		wallet, err := svc.GetByID(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWalletResponse(wallet))
	}
}

func WalletDetailByNumber(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		number := chi.URLParam(r, "walletNumber")
		if number == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "wallet number required"))
			return
		}

		wallet, err := svc.GetByNumber(ctx, number)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWalletResponse(wallet))
	}
}

func WalletUpdateStatus(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := walletIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req updateWalletStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status, err := enums.ParseWalletStatus(req.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid wallet status"))
			return
		}

		wallet, err := svc.SetStatus(ctx, id, status)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWalletResponse(wallet))
	}
}

func WalletLedger(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := walletIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		entries, err := svc.ListByWallet(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newLedgerEntryListResponse(entries))
	}
}
