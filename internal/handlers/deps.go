package handlers

import (
	"context"

	"payfesa/internal/models"
	"payfesa/internal/services"
	"payfesa/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, phone, username, pinHash string) error
	GetByPhone(ctx context.Context, phone string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
}

type GroupStore interface {
	GetByID(ctx context.Context, groupID string) (models.Group, error)
	List(ctx context.Context, status string, limit, offset int) ([]models.Group, error)
	ListByMember(ctx context.Context, userID string) ([]models.Group, error)
	UpdateStatus(ctx context.Context, tx store.Execer, groupID, status string) error
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type MemberStore interface {
	Get(ctx context.Context, groupID, userID string) (models.GroupMember, error)
	ListByGroup(ctx context.Context, groupID string) ([]store.MemberRank, error)
}

type EscrowStore interface {
	Get(ctx context.Context, groupID string) (models.GroupEscrow, error)
	SetLocked(ctx context.Context, tx store.Execer, groupID string, locked bool) error
}

type ReserveStore interface {
	Get(ctx context.Context) (models.ReserveWallet, error)
}

type ContributionStore interface {
	ListByGroup(ctx context.Context, groupID string, cycle int) ([]models.Contribution, error)
}

type TransactionStore interface {
	Create(ctx context.Context, tx store.Execer, input store.TransactionInput) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]map[string]any, error)
	ListByGroup(ctx context.Context, groupID string, limit, offset int) ([]map[string]any, error)
	SumAllByType(ctx context.Context, txType string) (int64, error)
}

type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, bool, error)
	CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	HasAnyAdmin(ctx context.Context) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	List(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

type GroupService interface {
	CreateGroup(ctx context.Context, req services.CreateGroupRequest) (string, error)
	Join(ctx context.Context, groupID, userID string) error
	Leave(ctx context.Context, groupID, userID string) error
}

type ContributionService interface {
	Contribute(ctx context.Context, groupID, userID string, amount int64) (string, error)
	Complete(ctx context.Context, contributionID, userID string) error
}

type PayoutService interface {
	RequestPayout(ctx context.Context, groupID, callerID string) (services.PayoutResult, error)
}

type ShortfallService interface {
	Check(ctx context.Context, groupID string) (services.ShortfallReport, error)
	Sweep(ctx context.Context, groupID string) ([]services.SweepResult, error)
}

type RankingService interface {
	Recompute(ctx context.Context, groupID string) ([]services.PositionChange, error)
	RecomputeForUser(ctx context.Context, userID string) error
	RecomputeAllActive(ctx context.Context) error
}

type LedgerService interface {
	AdjustReserveWallet(ctx context.Context, delta int64, groupID, userID, reason string) (int64, error)
}
