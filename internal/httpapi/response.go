package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"commission-ledger-go/internal/api"
	"commission-ledger-go/internal/commission"
	"commission-ledger-go/internal/lock"
	"commission-ledger-go/internal/store"

	"go.uber.org/zap"
)

type successResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

type errorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type errorResponse struct {
	Status string       `json:"status"`
	Error  errorPayload `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("Failed to encode response", zap.Error(err))
	}
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successResponse{Status: "success", Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message, requestID string) {
	writeJSON(w, status, errorResponse{Status: "error", Error: errorPayload{Code: code, Message: message, RequestID: requestID}})
}

func mapDomainError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, api.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, commission.ErrNoMatchingEntry):
		return http.StatusNotFound, "no_matching_entry"
	case errors.Is(err, store.ErrEntryNotFound), errors.Is(err, store.ErrAccountNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, store.ErrInvoiceAttributed):
		return http.StatusConflict, "invoice_attributed"
	case errors.Is(err, commission.ErrAlreadyProcessed):
		return http.StatusConflict, "already_processed"
	case errors.Is(err, commission.ErrNotEligible):
		return http.StatusConflict, "not_eligible"
	case errors.Is(err, commission.ErrInsufficientAccountVerification):
		return http.StatusUnprocessableEntity, "insufficient_account_verification"
	case errors.Is(err, commission.ErrConservationViolated):
		return http.StatusConflict, "conservation_violated"
	case errors.Is(err, store.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	case errors.Is(err, lock.ErrLockTimeout):
		return http.StatusServiceUnavailable, "busy"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
