package store

import (
	"context"

	"payfesa/internal/models"
)

type GroupStore struct {
	db DB
}

func NewGroupStore(db DB) *GroupStore {
	return &GroupStore{db: db}
}

type GroupInput struct {
	ID                 string
	Name               string
	CreatorID          string
	ContributionAmount int64
	Frequency          string
	MaxMembers         int
}

func (s *GroupStore) Create(ctx context.Context, tx Execer, input GroupInput) error {
	query := `
		INSERT INTO rosca_groups (id, name, creator_id, contribution_amount, frequency, max_members, current_members, status, current_cycle)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 'pending', 1)
	`
	_, err := tx.ExecContext(ctx, query, input.ID, input.Name, input.CreatorID, input.ContributionAmount, input.Frequency, input.MaxMembers)
	return err
}

func (s *GroupStore) GetByID(ctx context.Context, groupID string) (models.Group, error) {
	var row models.Group
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, creator_id, contribution_amount, frequency, max_members, current_members, status, current_cycle, created_at
		FROM rosca_groups
		WHERE id = $1
	`, groupID)
	return row, err
}

// GetForUpdate locks the group row for the duration of the enclosing
// transaction. Ranking recomputes and payouts take this lock so concurrent
// runs for the same group serialize at the database.
func (s *GroupStore) GetForUpdate(ctx context.Context, tx Getter, groupID string) (models.Group, error) {
	var row models.Group
	err := tx.GetContext(ctx, &row, `
		SELECT id, name, creator_id, contribution_amount, frequency, max_members, current_members, status, current_cycle, created_at
		FROM rosca_groups
		WHERE id = $1
		FOR UPDATE
	`, groupID)
	return row, err
}

func (s *GroupStore) ListActive(ctx context.Context) ([]models.Group, error) {
	var rows []models.Group
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, creator_id, contribution_amount, frequency, max_members, current_members, status, current_cycle, created_at
		FROM rosca_groups
		WHERE status = 'active'
		ORDER BY created_at
	`)
	return rows, err
}

func (s *GroupStore) List(ctx context.Context, status string, limit, offset int) ([]models.Group, error) {
	var rows []models.Group
	if status != "" {
		err := s.db.SelectContext(ctx, &rows, `
			SELECT id, name, creator_id, contribution_amount, frequency, max_members, current_members, status, current_cycle, created_at
			FROM rosca_groups
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`, status, limit, offset)
		return rows, err
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, creator_id, contribution_amount, frequency, max_members, current_members, status, current_cycle, created_at
		FROM rosca_groups
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return rows, err
}

func (s *GroupStore) ListByMember(ctx context.Context, userID string) ([]models.Group, error) {
	var rows []models.Group
	err := s.db.SelectContext(ctx, &rows, `
		SELECT g.id, g.name, g.creator_id, g.contribution_amount, g.frequency, g.max_members, g.current_members, g.status, g.current_cycle, g.created_at
		FROM rosca_groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = $1
		ORDER BY g.created_at
	`, userID)
	return rows, err
}

// IncrementMembers adds one member, conditioned on capacity; a zero
// affected-row count means the group is already full.
func (s *GroupStore) IncrementMembers(ctx context.Context, tx Execer, groupID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE rosca_groups
		SET current_members = current_members + 1, updated_at = NOW()
		WHERE id = $1 AND current_members < max_members
	`, groupID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *GroupStore) DecrementMembers(ctx context.Context, tx Execer, groupID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE rosca_groups
		SET current_members = GREATEST(0, current_members - 1), updated_at = NOW()
		WHERE id = $1
	`, groupID)
	return err
}

func (s *GroupStore) UpdateStatus(ctx context.Context, tx Execer, groupID, status string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE rosca_groups SET status = $1, updated_at = NOW() WHERE id = $2
	`, status, groupID)
	return err
}

func (s *GroupStore) AdvanceCycle(ctx context.Context, tx Execer, groupID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE rosca_groups SET current_cycle = current_cycle + 1, updated_at = NOW() WHERE id = $1
	`, groupID)
	return err
}

func (s *GroupStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT status, COUNT(*) AS count FROM rosca_groups GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
