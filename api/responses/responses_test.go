package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/finbase-io/wallet-engine/pkg/errors"
	"github.com/finbase-io/wallet-engine/pkg/types"
)

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var envelope types.SuccessEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "world", data["hello"])
}

func TestWriteError_CodedErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"duplicate", pkgerrors.New(pkgerrors.CodeDuplicate, "duplicate transaction"), http.StatusConflict, "DUPLICATE_TRANSACTION"},
		{"concurrent", pkgerrors.New(pkgerrors.CodeConcurrentInProgress, "busy"), http.StatusTooManyRequests, "CONCURRENT_REQUEST_IN_PROGRESS"},
		{"locked", pkgerrors.New(pkgerrors.CodeWalletLocked, "locked"), http.StatusLocked, "WALLET_LOCKED"},
		{"insufficient", pkgerrors.New(pkgerrors.CodeInsufficientBalance, "insufficient balance"), http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"},
		{"not found", pkgerrors.New(pkgerrors.CodeWalletNotFound, "wallet 9 not found"), http.StatusNotFound, "WALLET_NOT_FOUND"},
		{"inactive", pkgerrors.New(pkgerrors.CodeWalletInactive, "wallet 9 is not active"), http.StatusUnprocessableEntity, "WALLET_INACTIVE"},
		{"validation", pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"uncoded", errors.New("boom"), http.StatusInternalServerError, "OPERATION_FAILED"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(context.Background(), nil, rec, tc.err)

			assert.Equal(t, tc.wantStatus, rec.Code)

			var envelope types.ErrorEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
			assert.Equal(t, tc.wantCode, envelope.Error.Code)
			assert.NotEmpty(t, envelope.Error.Message)
		})
	}
}

func TestWriteError_DetailsOnlyWhenAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeDuplicate, "duplicate transaction").
		WithDetails(map[string]any{"transaction_id": "tx-1"})
	WriteError(context.Background(), nil, rec, err)

	var envelope types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	details, ok := envelope.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "tx-1", details["transaction_id"])

	// WalletLocked does not leak details.
	rec = httptest.NewRecorder()
	err = pkgerrors.New(pkgerrors.CodeWalletLocked, "locked").WithDetails(map[string]any{"wallet_id": 7})
	WriteError(context.Background(), nil, rec, err)

	var locked types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &locked))
	assert.Nil(t, locked.Error.Details)
}

func TestWriteError_RetryableSetsRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeWalletLocked, "locked"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeValidation, "bad input"))
	assert.Empty(t, rec.Header().Get("Retry-After"))
}
