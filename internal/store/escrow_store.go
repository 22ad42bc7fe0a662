package store

import (
	"context"

	"payfesa/internal/models"
)

type EscrowStore struct {
	db DB
}

func NewEscrowStore(db DB) *EscrowStore {
	return &EscrowStore{db: db}
}

func (s *EscrowStore) Create(ctx context.Context, tx Execer, groupID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO group_escrows (group_id, total_balance, locked, payout_cycle)
		VALUES ($1, 0, FALSE, 1)
	`, groupID)
	return err
}

func (s *EscrowStore) Get(ctx context.Context, groupID string) (models.GroupEscrow, error) {
	var row models.GroupEscrow
	err := s.db.GetContext(ctx, &row, `
		SELECT group_id, total_balance, locked, payout_cycle
		FROM group_escrows
		WHERE group_id = $1
	`, groupID)
	return row, err
}

func (s *EscrowStore) Credit(ctx context.Context, tx Execer, groupID string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE group_escrows
		SET total_balance = total_balance + $1, updated_at = NOW()
		WHERE group_id = $2
	`, amount, groupID)
	return err
}

// Debit is conditioned on sufficient balance; a zero affected-row count means
// the escrow cannot fund the requested amount.
func (s *EscrowStore) Debit(ctx context.Context, tx Execer, groupID string, amount int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE group_escrows
		SET total_balance = total_balance - $1, updated_at = NOW()
		WHERE group_id = $2 AND total_balance >= $1
	`, amount, groupID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *EscrowStore) SetLocked(ctx context.Context, tx Execer, groupID string, locked bool) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE group_escrows SET locked = $1, updated_at = NOW() WHERE group_id = $2
	`, locked, groupID)
	return err
}

func (s *EscrowStore) AdvanceCycle(ctx context.Context, tx Execer, groupID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE group_escrows SET payout_cycle = payout_cycle + 1, updated_at = NOW() WHERE group_id = $1
	`, groupID)
	return err
}
