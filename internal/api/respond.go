package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sheikh-saqib/payments-ledger/internal/ledger"
)

const (
	CodeMissingIdempotencyKey = "missing_idempotency_key"
	CodeInvalidJSON           = "invalid_json"
	CodeInvalidRequest        = "invalid_request"
	CodeAccountNotFound       = "account_not_found"
	CodeTransactionNotFound   = "transaction_not_found"
	CodeCurrencyMismatch      = "currency_mismatch"
	CodeIdempotencyConflict   = "idempotency_conflict"
	CodeIdempotencyInProgress = "idempotency_in_progress"
	CodeConstraintViolation   = "db_constraint_violation"
	CodeInternal              = "internal_error"
)

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, errorBody{Error: code, Detail: detail})
}

// writeDomainError maps ledger errors onto HTTP. Every error kind a caller can
// act on gets its own status code; internals are never echoed back.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidRequest):
		writeError(w, http.StatusUnprocessableEntity, CodeInvalidRequest, err.Error())
	case errors.Is(err, ledger.ErrCurrencyMismatch):
		writeError(w, http.StatusBadRequest, CodeCurrencyMismatch, err.Error())
	case errors.Is(err, ledger.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, CodeAccountNotFound, err.Error())
	case errors.Is(err, ledger.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, CodeTransactionNotFound, "")
	case errors.Is(err, ledger.ErrIdempotencyConflict):
		writeError(w, http.StatusConflict, CodeIdempotencyConflict, "")
	case errors.Is(err, ledger.ErrIdempotencyInProgress):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooEarly, CodeIdempotencyInProgress, "")
	case errors.Is(err, ledger.ErrConstraintViolation):
		h.logger.Error("constraint violation", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeConstraintViolation, "")
	default:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "")
	}
}
