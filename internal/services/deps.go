package services

import (
	"context"
	"time"

	"payfesa/internal/models"
	"payfesa/internal/store"
	"payfesa/internal/websocket"
)

type UserStore interface {
	GetByID(ctx context.Context, userID string) (models.User, error)
	AdjustWallet(ctx context.Context, tx store.Execer, userID string, delta int64) (int64, error)
	AdjustEscrow(ctx context.Context, tx store.Execer, userID string, delta int64) (int64, error)
	AdjustTrust(ctx context.Context, tx store.Execer, userID string, delta int) error
}

type GroupStore interface {
	Create(ctx context.Context, tx store.Execer, input store.GroupInput) error
	GetByID(ctx context.Context, groupID string) (models.Group, error)
	GetForUpdate(ctx context.Context, tx store.Getter, groupID string) (models.Group, error)
	ListActive(ctx context.Context) ([]models.Group, error)
	ListByMember(ctx context.Context, userID string) ([]models.Group, error)
	IncrementMembers(ctx context.Context, tx store.Execer, groupID string) (int64, error)
	DecrementMembers(ctx context.Context, tx store.Execer, groupID string) error
	UpdateStatus(ctx context.Context, tx store.Execer, groupID, status string) error
	AdvanceCycle(ctx context.Context, tx store.Execer, groupID string) error
}

type MemberStore interface {
	Create(ctx context.Context, tx store.Execer, input store.MemberInput) error
	Get(ctx context.Context, groupID, userID string) (models.GroupMember, error)
	ListForRanking(ctx context.Context, q store.Selecter, groupID string) ([]store.MemberRank, error)
	ListUserIDs(ctx context.Context, groupID string) ([]string, error)
	UpdatePosition(ctx context.Context, tx store.Execer, memberID string, position int) error
	Remove(ctx context.Context, tx store.Execer, groupID, userID string) (int64, error)
	NextRecipient(ctx context.Context, q store.Getter, groupID string) (models.GroupMember, error)
	SetHasContributed(ctx context.Context, tx store.Execer, groupID, userID string, contributed bool) error
	ResetContributions(ctx context.Context, tx store.Execer, groupID string) error
	SetLastPayout(ctx context.Context, tx store.Execer, memberID string, at time.Time) error
}

type EscrowStore interface {
	Create(ctx context.Context, tx store.Execer, groupID string) error
	Get(ctx context.Context, groupID string) (models.GroupEscrow, error)
	Credit(ctx context.Context, tx store.Execer, groupID string, amount int64) error
	Debit(ctx context.Context, tx store.Execer, groupID string, amount int64) (int64, error)
	SetLocked(ctx context.Context, tx store.Execer, groupID string, locked bool) error
	AdvanceCycle(ctx context.Context, tx store.Execer, groupID string) error
}

type ReserveStore interface {
	Balance(ctx context.Context, q store.Getter) (int64, error)
	Withdraw(ctx context.Context, tx store.Execer, amount int64) (int64, error)
	Deposit(ctx context.Context, tx store.Execer, amount int64) error
}

type ContributionStore interface {
	Create(ctx context.Context, input store.ContributionInput) error
	Get(ctx context.Context, contributionID string) (models.Contribution, error)
	MarkCompleted(ctx context.Context, tx store.Execer, contributionID string) (int64, error)
	MarkFailed(ctx context.Context, tx store.Execer, contributionID string) error
	SumCompleted(ctx context.Context, groupID string, cycle int) (int64, error)
}

type TransactionStore interface {
	Create(ctx context.Context, tx store.Execer, input store.TransactionInput) error
	SumByType(ctx context.Context, groupID string, cycle int, txType string) (int64, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type UpdateHub interface {
	Broadcast(userID string, update websocket.Update)
}
