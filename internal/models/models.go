package models

import "time"

const (
	GroupStatusPending   = "pending"
	GroupStatusActive    = "active"
	GroupStatusSuspended = "suspended"

	FrequencyWeekly   = "weekly"
	FrequencyBiweekly = "biweekly"
	FrequencyMonthly  = "monthly"

	ContributionPending   = "pending"
	ContributionCompleted = "completed"
	ContributionFailed    = "failed"

	TxTypeContribution    = "contribution"
	TxTypePayout          = "payout"
	TxTypeReserveCoverage = "reserve_coverage"
	TxTypeReserveTopup    = "reserve_topup"
)

type User struct {
	ID            string    `db:"id" json:"id"`
	Phone         string    `db:"phone" json:"phone"`
	Username      string    `db:"username" json:"username"`
	PinHash       string    `db:"pin_hash" json:"-"`
	TrustScore    int       `db:"trust_score" json:"trust_score"`
	WalletBalance int64     `db:"wallet_balance" json:"wallet_balance"`
	EscrowBalance int64     `db:"escrow_balance" json:"escrow_balance"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type Group struct {
	ID                 string    `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	CreatorID          string    `db:"creator_id" json:"creator_id"`
	ContributionAmount int64     `db:"contribution_amount" json:"contribution_amount"`
	Frequency          string    `db:"frequency" json:"frequency"`
	MaxMembers         int       `db:"max_members" json:"max_members"`
	CurrentMembers     int       `db:"current_members" json:"current_members"`
	Status             string    `db:"status" json:"status"`
	CurrentCycle       int       `db:"current_cycle" json:"current_cycle"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

type GroupMember struct {
	ID              string     `db:"id" json:"id"`
	GroupID         string     `db:"group_id" json:"group_id"`
	UserID          string     `db:"user_id" json:"user_id"`
	PayoutPosition  *int       `db:"payout_position" json:"payout_position,omitempty"`
	PositionInCycle int        `db:"position_in_cycle" json:"position_in_cycle"`
	HasContributed  bool       `db:"has_contributed" json:"has_contributed"`
	LastPayoutAt    *time.Time `db:"last_payout_at" json:"last_payout_at,omitempty"`
	JoinedAt        time.Time  `db:"joined_at" json:"joined_at"`
}

type GroupEscrow struct {
	GroupID      string `db:"group_id" json:"group_id"`
	TotalBalance int64  `db:"total_balance" json:"total_balance"`
	Locked       bool   `db:"locked" json:"locked"`
	PayoutCycle  int    `db:"payout_cycle" json:"payout_cycle"`
}

// ReserveWallet is the single platform-wide fund backing payout guarantees.
// It is a singleton row; the store enforces id = 1.
type ReserveWallet struct {
	ID          int       `db:"id" json:"id"`
	TotalAmount int64     `db:"total_amount" json:"total_amount"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type Contribution struct {
	ID        string    `db:"id" json:"id"`
	GroupID   string    `db:"group_id" json:"group_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Amount    int64     `db:"amount" json:"amount"`
	Cycle     int       `db:"cycle" json:"cycle"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Transaction struct {
	ID        string    `db:"id" json:"id"`
	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
	GroupID   *string   `db:"group_id" json:"group_id,omitempty"`
	Type      string    `db:"type" json:"type"`
	Status    string    `db:"status" json:"status"`
	Amount    int64     `db:"amount" json:"amount"`
	Cycle     int       `db:"cycle" json:"cycle"`
	Metadata  string    `db:"metadata" json:"metadata"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type AuditLog struct {
	ID          string    `db:"id" json:"id"`
	ActorUserID *string   `db:"actor_user_id" json:"actor_user_id,omitempty"`
	Action      string    `db:"action" json:"action"`
	EntityType  string    `db:"entity_type" json:"entity_type"`
	EntityID    string    `db:"entity_id" json:"entity_id"`
	Data        string    `db:"data" json:"data"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
