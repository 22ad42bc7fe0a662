package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"payfesa/internal/middleware"
	"payfesa/internal/models"
	"payfesa/internal/money"
	"payfesa/internal/services"
	"payfesa/internal/store"

	"github.com/go-chi/chi/v5"
)

type createGroupRequest struct {
	Name               string `json:"name"`
	ContributionAmount string `json:"contribution_amount"`
	Frequency          string `json:"frequency"`
	MaxMembers         int    `json:"max_members"`
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validateGroupName(req.Name); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateFrequency(req.Frequency); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateMaxMembers(req.MaxMembers); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmountMinor(req.ContributionAmount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	groupID, err := h.groupSvc.CreateGroup(r.Context(), services.CreateGroupRequest{
		Name:               req.Name,
		CreatorID:          userID,
		ContributionAmount: amount,
		Frequency:          req.Frequency,
		MaxMembers:         req.MaxMembers,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create group")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"group_id": groupID})
}

func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	page := parseInt(query.Get("page"), 1)
	offset := (page - 1) * limit
	status := query.Get("status")
	if status != "" && status != models.GroupStatusPending && status != models.GroupStatusActive && status != models.GroupStatusSuspended {
		respondError(w, http.StatusBadRequest, "unknown status")
		return
	}
	groups, err := h.groups.List(r.Context(), status, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load groups")
		return
	}
	respondJSON(w, http.StatusOK, normalizeGroups(groups))
}

func (h *Handler) MyGroups(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	groups, err := h.groups.ListByMember(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load groups")
		return
	}
	respondJSON(w, http.StatusOK, normalizeGroups(groups))
}

func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
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
	members, err := h.members.ListByGroup(r.Context(), groupID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load members")
		return
	}
	escrow, err := h.escrows.Get(r.Context(), groupID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load escrow")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"group":   normalizeGroup(group),
		"members": normalizeMembers(members),
		"escrow": map[string]any{
			"total_balance": money.FormatMinor(escrow.TotalBalance),
			"locked":        escrow.Locked,
			"payout_cycle":  escrow.PayoutCycle,
		},
	})
}

func (h *Handler) JoinGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	groupID := chi.URLParam(r, "id")
	err := h.groupSvc.Join(r.Context(), groupID, userID)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"status": "joined"})
	case errors.Is(err, sql.ErrNoRows):
		respondError(w, http.StatusNotFound, "group not found")
	case errors.Is(err, services.ErrGroupFull):
		respondError(w, http.StatusConflict, "group is full")
	case errors.Is(err, services.ErrAlreadyMember):
		respondError(w, http.StatusConflict, "already a member")
	case errors.Is(err, services.ErrGroupNotJoinable):
		respondError(w, http.StatusConflict, "group is not accepting members")
	default:
		respondError(w, http.StatusInternalServerError, "unable to join group")
	}
}

func (h *Handler) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	groupID := chi.URLParam(r, "id")
	err := h.groupSvc.Leave(r.Context(), groupID, userID)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"status": "left"})
	case errors.Is(err, sql.ErrNoRows):
		respondError(w, http.StatusNotFound, "group not found")
	case errors.Is(err, services.ErrNotMember):
		respondError(w, http.StatusNotFound, "not a member of this group")
	default:
		respondError(w, http.StatusInternalServerError, "unable to leave group")
	}
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	if _, err := h.groups.GetByID(r.Context(), groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "group not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load group")
		return
	}
	members, err := h.members.ListByGroup(r.Context(), groupID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load members")
		return
	}
	respondJSON(w, http.StatusOK, normalizeMembers(members))
}

func (h *Handler) ListGroupTransactions(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	page := parseInt(query.Get("page"), 1)
	offset := (page - 1) * limit
	rows, err := h.transactions.ListByGroup(r.Context(), groupID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load transactions")
		return
	}
	respondJSON(w, http.StatusOK, normalizeTransactions(rows))
}

func normalizeGroup(group models.Group) map[string]any {
	return map[string]any{
		"id":                  group.ID,
		"name":                group.Name,
		"creator_id":          group.CreatorID,
		"contribution_amount": money.FormatMinor(group.ContributionAmount),
		"frequency":           group.Frequency,
		"max_members":         group.MaxMembers,
		"current_members":     group.CurrentMembers,
		"status":              group.Status,
		"current_cycle":       group.CurrentCycle,
		"created_at":          group.CreatedAt,
	}
}

func normalizeGroups(groups []models.Group) []map[string]any {
	normalized := make([]map[string]any, 0, len(groups))
	for _, group := range groups {
		normalized = append(normalized, normalizeGroup(group))
	}
	return normalized
}

func normalizeMembers(members []store.MemberRank) []map[string]any {
	normalized := make([]map[string]any, 0, len(members))
	for _, member := range members {
		normalized = append(normalized, map[string]any{
			"user_id":         member.UserID,
			"username":        member.Username,
			"trust_score":     member.TrustScore,
			"payout_position": member.PayoutPosition,
			"joined_at":       member.JoinedAt,
		})
	}
	return normalized
}

func normalizeTransactions(rows []map[string]any) []map[string]any {
	normalized := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		normalized = append(normalized, map[string]any{
			"id":         valueToString(row["id"]),
			"user_id":    valueToString(row["user_id"]),
			"username":   valueToString(row["username"]),
			"group_id":   valueToString(row["group_id"]),
			"group_name": valueToString(row["group_name"]),
			"type":       valueToString(row["type"]),
			"status":     valueToString(row["status"]),
			"amount":     valueToMoney(row["amount"]),
			"cycle":      row["cycle"],
			"metadata":   row["metadata"],
			"created_at": row["created_at"],
		})
	}
	return normalized
}
