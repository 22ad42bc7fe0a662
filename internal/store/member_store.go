package store

import (
	"context"
	"time"

	"payfesa/internal/models"
)

type MemberStore struct {
	db DB
}

func NewMemberStore(db DB) *MemberStore {
	return &MemberStore{db: db}
}

type MemberInput struct {
	ID              string
	GroupID         string
	UserID          string
	PositionInCycle int
}

// MemberRank is the view the ranking engine sorts: membership joined with the
// member's current trust score.
type MemberRank struct {
	MemberID       string    `db:"member_id"`
	UserID         string    `db:"user_id"`
	Username       string    `db:"username"`
	TrustScore     int       `db:"trust_score"`
	JoinedAt       time.Time `db:"joined_at"`
	PayoutPosition *int      `db:"payout_position"`
}

func (s *MemberStore) Create(ctx context.Context, tx Execer, input MemberInput) error {
	query := `
		INSERT INTO group_members (id, group_id, user_id, position_in_cycle)
		VALUES ($1, $2, $3, $4)
	`
	_, err := tx.ExecContext(ctx, query, input.ID, input.GroupID, input.UserID, input.PositionInCycle)
	return err
}

func (s *MemberStore) Get(ctx context.Context, groupID, userID string) (models.GroupMember, error) {
	var row models.GroupMember
	err := s.db.GetContext(ctx, &row, `
		SELECT id, group_id, user_id, payout_position, position_in_cycle, has_contributed, last_payout_at, joined_at
		FROM group_members
		WHERE group_id = $1 AND user_id = $2
	`, groupID, userID)
	return row, err
}

// ListForRanking reads members with trust scores inside the caller's
// transaction so the read-sort-write sequence sees a consistent snapshot.
func (s *MemberStore) ListForRanking(ctx context.Context, q Selecter, groupID string) ([]MemberRank, error) {
	var rows []MemberRank
	err := q.SelectContext(ctx, &rows, `
		SELECT m.id AS member_id, m.user_id, u.username, u.trust_score, m.joined_at, m.payout_position
		FROM group_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = $1
	`, groupID)
	return rows, err
}

func (s *MemberStore) ListByGroup(ctx context.Context, groupID string) ([]MemberRank, error) {
	var rows []MemberRank
	err := s.db.SelectContext(ctx, &rows, `
		SELECT m.id AS member_id, m.user_id, u.username, u.trust_score, m.joined_at, m.payout_position
		FROM group_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = $1
		ORDER BY m.payout_position NULLS LAST, m.joined_at
	`, groupID)
	return rows, err
}

func (s *MemberStore) ListUserIDs(ctx context.Context, groupID string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT user_id FROM group_members WHERE group_id = $1 ORDER BY joined_at
	`, groupID)
	return ids, err
}

func (s *MemberStore) UpdatePosition(ctx context.Context, tx Execer, memberID string, position int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE group_members SET payout_position = $1 WHERE id = $2
	`, position, memberID)
	return err
}

func (s *MemberStore) Remove(ctx context.Context, tx Execer, groupID, userID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		DELETE FROM group_members WHERE group_id = $1 AND user_id = $2
	`, groupID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// NextRecipient picks the payout target: never-paid members first in position
// order, then the least recently paid. Ordering by payment recency keeps the
// rotation going after everyone has been paid once; sorting only on a
// paid/unpaid flag would hand every later payout to position 1.
func (s *MemberStore) NextRecipient(ctx context.Context, q Getter, groupID string) (models.GroupMember, error) {
	var row models.GroupMember
	err := q.GetContext(ctx, &row, `
		SELECT id, group_id, user_id, payout_position, position_in_cycle, has_contributed, last_payout_at, joined_at
		FROM group_members
		WHERE group_id = $1 AND payout_position IS NOT NULL
		ORDER BY last_payout_at ASC NULLS FIRST, payout_position
		LIMIT 1
	`, groupID)
	return row, err
}

func (s *MemberStore) SetHasContributed(ctx context.Context, tx Execer, groupID, userID string, contributed bool) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE group_members SET has_contributed = $1 WHERE group_id = $2 AND user_id = $3
	`, contributed, groupID, userID)
	return err
}

func (s *MemberStore) ResetContributions(ctx context.Context, tx Execer, groupID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE group_members SET has_contributed = FALSE WHERE group_id = $1
	`, groupID)
	return err
}

func (s *MemberStore) SetLastPayout(ctx context.Context, tx Execer, memberID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE group_members SET last_payout_at = $1 WHERE id = $2
	`, at, memberID)
	return err
}
