package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"commission-ledger-go/internal/api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.HealthCheck(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "unhealthy", err.Error(), middleware.GetReqID(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"service": "commission-ledger"})
}

func (h *Handler) recordCommission(w http.ResponseWriter, r *http.Request) {
	var req api.CommissionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	record, created, err := h.service.RecordCommission(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	writeSuccess(w, status, record)
}

func (h *Handler) applyRefund(w http.ResponseWriter, r *http.Request) {
	var req api.RefundRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.service.ApplyRefund(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

func (h *Handler) payout(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Payout(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

func (h *Handler) runMaturation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var req api.MaturationRequest
	var err error
	if req.MaxUsers, err = intParam(q.Get("max_users")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "max_users must be an integer", middleware.GetReqID(r.Context()))
		return
	}
	if req.MaxEntriesPerUser, err = intParam(q.Get("max_entries_per_user")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "max_entries_per_user must be an integer", middleware.GetReqID(r.Context()))
		return
	}
	if v := q.Get("time_budget"); v != "" {
		if req.TimeBudget, err = time.ParseDuration(v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "time_budget must be a duration like 10s", middleware.GetReqID(r.Context()))
			return
		}
	}
	if v := q.Get("dry_run"); v != "" {
		if req.DryRun, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "dry_run must be a boolean", middleware.GetReqID(r.Context()))
			return
		}
	}

	summary, err := h.service.RunMaturation(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, summary)
}

func (h *Handler) getBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.service.GetAffiliateBalances(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, balances)
}

func (h *Handler) getEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "limit must be an integer", middleware.GetReqID(r.Context()))
		return
	}
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "offset must be an integer", middleware.GetReqID(r.Context()))
		return
	}

	entries, err := h.service.GetEntryHistory(r.Context(), chi.URLParam(r, "userID"), limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, entries)
}

func (h *Handler) setDestination(w http.ResponseWriter, r *http.Request) {
	var req api.DestinationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	account, err := h.service.SetPayoutDestination(r.Context(), chi.URLParam(r, "userID"), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, account)
}

func (h *Handler) verifyInvoice(w http.ResponseWriter, r *http.Request) {
	totals, err := h.service.VerifyInvoice(r.Context(), chi.URLParam(r, "invoiceID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, totals)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), middleware.GetReqID(r.Context()))
		return false
	}
	return true
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapDomainError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	writeError(w, status, code, message, middleware.GetReqID(r.Context()))
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
