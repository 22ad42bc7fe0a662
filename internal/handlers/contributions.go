package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"payfesa/internal/middleware"
	"payfesa/internal/money"
	"payfesa/internal/services"

	"github.com/go-chi/chi/v5"
)

type contributeRequest struct {
	Amount string `json:"amount"`
}

func (h *Handler) Contribute(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	groupID := chi.URLParam(r, "id")
	var req contributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	contributionID, err := h.contribSvc.Contribute(r.Context(), groupID, userID, amount)
	switch {
	case err == nil:
		respondJSON(w, http.StatusCreated, map[string]string{"contribution_id": contributionID})
	case errors.Is(err, sql.ErrNoRows):
		respondError(w, http.StatusNotFound, "group not found")
	case errors.Is(err, services.ErrGroupNotActive):
		respondError(w, http.StatusConflict, "group is not active")
	case errors.Is(err, services.ErrNotMember):
		respondError(w, http.StatusForbidden, "not a member of this group")
	case errors.Is(err, services.ErrAlreadyContributed):
		respondError(w, http.StatusConflict, "already contributed this cycle")
	case errors.Is(err, services.ErrWrongAmount):
		respondError(w, http.StatusBadRequest, "amount does not match the group contribution")
	default:
		respondError(w, http.StatusInternalServerError, "unable to record contribution")
	}
}

func (h *Handler) CompleteContribution(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	contributionID := chi.URLParam(r, "id")
	err := h.contribSvc.Complete(r.Context(), contributionID, userID)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"status": "completed"})
	case errors.Is(err, sql.ErrNoRows):
		respondError(w, http.StatusNotFound, "contribution not found")
	case errors.Is(err, services.ErrNotContributionOwner):
		respondError(w, http.StatusForbidden, "contribution belongs to another user")
	case errors.Is(err, services.ErrContributionNotPending):
		respondError(w, http.StatusConflict, "contribution is not pending")
	case errors.Is(err, services.ErrContributionStale):
		respondError(w, http.StatusConflict, "contribution cycle has passed")
	case errors.Is(err, services.ErrInsufficientBalance):
		respondError(w, http.StatusPaymentRequired, "insufficient wallet balance")
	default:
		respondError(w, http.StatusInternalServerError, "unable to complete contribution")
	}
}

func (h *Handler) ListContributions(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	group, err := h.groups.GetByID(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "group not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load group")
		return
	}
	cycle := parseInt(r.URL.Query().Get("cycle"), group.CurrentCycle)
	rows, err := h.contributions.ListByGroup(r.Context(), groupID, cycle)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load contributions")
		return
	}
	normalized := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		normalized = append(normalized, map[string]any{
			"id":         row.ID,
			"user_id":    row.UserID,
			"amount":     money.FormatMinor(row.Amount),
			"cycle":      row.Cycle,
			"status":     row.Status,
			"created_at": row.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}
