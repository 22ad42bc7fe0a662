package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"payfesa/internal/middleware"
	"payfesa/internal/money"
	"payfesa/internal/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) GetShortfall(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	report, err := h.shortfallSvc.Check(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "group not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to check shortfall")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"group_id":      report.GroupID,
		"cycle":         report.Cycle,
		"expected":      money.FormatMinor(report.Expected),
		"contributed":   money.FormatMinor(report.Contributed),
		"covered":       money.FormatMinor(report.Covered),
		"shortfall":     money.FormatMinor(report.Shortfall),
		"escrow_locked": report.EscrowLocked,
	})
}

func (h *Handler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	groupID := chi.URLParam(r, "id")
	result, err := h.payoutSvc.RequestPayout(r.Context(), groupID, userID)
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		respondError(w, http.StatusNotFound, "group not found")
		return
	case errors.Is(err, services.ErrNotMember):
		respondError(w, http.StatusForbidden, "not a member of this group")
		return
	case errors.Is(err, services.ErrEscrowLocked):
		respondError(w, http.StatusConflict, "escrow locked pending reconciliation")
		return
	case errors.Is(err, services.ErrGroupNotActive):
		respondError(w, http.StatusConflict, "group is not active")
		return
	case errors.Is(err, services.ErrInsufficientBalance):
		respondError(w, http.StatusConflict, "escrow cannot fund the payout")
		return
	default:
		respondError(w, http.StatusInternalServerError, "payout failed")
		return
	}
	if !result.Covered {
		respondJSON(w, http.StatusOK, map[string]any{
			"covered":   false,
			"shortfall": money.FormatMinor(result.Shortfall),
			"message":   "shortfall could not be covered by the reserve",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"covered":        true,
		"shortfall":      money.FormatMinor(result.Shortfall),
		"transaction_id": result.TransactionID,
		"recipient_id":   result.RecipientID,
		"amount":         money.FormatMinor(result.Amount),
	})
}
