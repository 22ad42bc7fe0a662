package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"payfesa/internal/middleware"
	"payfesa/internal/models"
	"payfesa/internal/money"
	"payfesa/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

func (h *Handler) GetReserve(w http.ResponseWriter, r *http.Request) {
	reserve, err := h.reserve.Get(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load reserve")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total_amount": money.FormatMinor(reserve.TotalAmount),
		"updated_at":   reserve.UpdatedAt,
	})
}

type topUpRequest struct {
	Amount string `json:"amount"`
}

func (h *Handler) TopUpReserve(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	balanceAfter, err := h.ledger.AdjustReserveWallet(r.Context(), amount, "", userID, "reserve topup")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to top up reserve")
		return
	}
	if err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		metadata, _ := json.Marshal(map[string]any{
			"balance_after": balanceAfter,
		})
		return h.transactions.Create(r.Context(), tx, store.TransactionInput{
			ID:       uuid.NewString(),
			UserID:   &userID,
			Type:     models.TxTypeReserveTopup,
			Status:   "completed",
			Amount:   amount,
			Metadata: string(metadata),
		})
	}); err != nil {
		h.log.WithError(err).Error("failed to record reserve topup transaction")
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"status":        "topped_up",
		"balance_after": money.FormatMinor(balanceAfter),
	})
}

func (h *Handler) SuspendGroup(w http.ResponseWriter, r *http.Request) {
	h.setGroupStatus(w, r, models.GroupStatusSuspended, "group_suspended")
}

func (h *Handler) ReinstateGroup(w http.ResponseWriter, r *http.Request) {
	h.setGroupStatus(w, r, models.GroupStatusActive, "group_reinstated")
}

func (h *Handler) setGroupStatus(w http.ResponseWriter, r *http.Request, status, action string) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	groupID := chi.URLParam(r, "id")
	if _, err := h.groups.GetByID(r.Context(), groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "group not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load group")
		return
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.groups.UpdateStatus(r.Context(), tx, groupID, status); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{"status": status})
		return h.audit.Log(r.Context(), tx, userID, action, "group", groupID, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update group status")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": status})
}

// UnlockEscrow clears the lock set after a fatal ledger inconsistency. Meant
// to be called only after the operator has reconciled the balances by hand.
func (h *Handler) UnlockEscrow(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	groupID := chi.URLParam(r, "id")
	escrow, err := h.escrows.Get(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "escrow not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load escrow")
		return
	}
	if !escrow.Locked {
		respondError(w, http.StatusConflict, "escrow is not locked")
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.escrows.SetLocked(r.Context(), tx, groupID, false); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, userID, "escrow_unlocked", "group_escrow", groupID, "{}")
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to unlock escrow")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "unlocked"})
}

func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	groupID := r.URL.Query().Get("group_id")
	results, err := h.shortfallSvc.Sweep(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "group not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// RecomputeRankings reruns payout position ranking on demand. Scope narrows
// by query param: group_id for one group, user_id for every group the user
// belongs to, neither for all active groups.
func (h *Handler) RecomputeRankings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if groupID := query.Get("group_id"); groupID != "" {
		changes, err := h.rankingSvc.Recompute(r.Context(), groupID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				respondError(w, http.StatusNotFound, "group not found")
				return
			}
			respondError(w, http.StatusInternalServerError, "recompute failed")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"status": "recomputed", "changes": len(changes)})
		return
	}
	if userID := query.Get("user_id"); userID != "" {
		if err := h.rankingSvc.RecomputeForUser(r.Context(), userID); err != nil {
			respondError(w, http.StatusInternalServerError, "recompute failed")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "recomputed"})
		return
	}
	if err := h.rankingSvc.RecomputeAllActive(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "recompute failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "recomputed"})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.groups.CountByStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load group counts")
		return
	}
	reserve, err := h.reserve.Get(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load reserve")
		return
	}
	coverageGranted, err := h.transactions.SumAllByType(r.Context(), models.TxTypeReserveCoverage)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load coverage totals")
		return
	}
	topUps, err := h.transactions.SumAllByType(r.Context(), models.TxTypeReserveTopup)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load topup totals")
		return
	}
	utilization := decimal.Zero
	funded := decimal.NewFromInt(coverageGranted).Add(decimal.NewFromInt(reserve.TotalAmount))
	if funded.IsPositive() {
		utilization = decimal.NewFromInt(coverageGranted).
			Div(funded).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"groups_by_status":    counts,
		"reserve_balance":     money.FormatMinor(reserve.TotalAmount),
		"coverage_granted":    money.FormatMinor(coverageGranted),
		"reserve_topups":      money.FormatMinor(topUps),
		"reserve_utilization": utilization.String(),
	})
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	page := parseInt(query.Get("page"), 1)
	offset := (page - 1) * limit
	rows, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}
