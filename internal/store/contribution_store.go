package store

import (
	"context"

	"payfesa/internal/models"
)

type ContributionStore struct {
	db DB
}

func NewContributionStore(db DB) *ContributionStore {
	return &ContributionStore{db: db}
}

type ContributionInput struct {
	ID      string
	GroupID string
	UserID  string
	Amount  int64
	Cycle   int
}

func (s *ContributionStore) Create(ctx context.Context, input ContributionInput) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contributions (id, group_id, user_id, amount, cycle, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
	`, input.ID, input.GroupID, input.UserID, input.Amount, input.Cycle)
	return err
}

func (s *ContributionStore) Get(ctx context.Context, contributionID string) (models.Contribution, error) {
	var row models.Contribution
	err := s.db.GetContext(ctx, &row, `
		SELECT id, group_id, user_id, amount, cycle, status, created_at
		FROM contributions
		WHERE id = $1
	`, contributionID)
	return row, err
}

// MarkCompleted transitions pending → completed; a zero affected-row count
// means the contribution was already settled or failed.
func (s *ContributionStore) MarkCompleted(ctx context.Context, tx Execer, contributionID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE contributions SET status = 'completed' WHERE id = $1 AND status = 'pending'
	`, contributionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *ContributionStore) MarkFailed(ctx context.Context, tx Execer, contributionID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE contributions SET status = 'failed' WHERE id = $1 AND status = 'pending'
	`, contributionID)
	return err
}

// SumCompleted totals completed contributions for one group and cycle. The
// cycle scoping matters: without it, past cycles' contributions would count
// toward the current cycle's expected total.
func (s *ContributionStore) SumCompleted(ctx context.Context, groupID string, cycle int) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM contributions
		WHERE group_id = $1 AND cycle = $2 AND status = 'completed'
	`, groupID, cycle)
	return sum, err
}

func (s *ContributionStore) ListByGroup(ctx context.Context, groupID string, cycle int) ([]models.Contribution, error) {
	var rows []models.Contribution
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, group_id, user_id, amount, cycle, status, created_at
		FROM contributions
		WHERE group_id = $1 AND cycle = $2
		ORDER BY created_at
	`, groupID, cycle)
	return rows, err
}
