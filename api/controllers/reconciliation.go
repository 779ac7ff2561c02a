package controllers

import (
	"net/http"

	"github.com/finbase-io/wallet-engine/api/responses"
	"github.com/finbase-io/wallet-engine/internal/reconciliation"
	"github.com/finbase-io/wallet-engine/pkg/logger"
)

func ReconciliationCheckWallet(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := walletIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		report, err := svc.CheckWallet(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func ReconciliationCheckAll(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		reports, err := svc.CheckAll(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, reports)
	}
}
