package store

import (
	"context"

	"payfesa/internal/models"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, tx Execer, id, phone, username, pinHash string) error {
	query := `
		INSERT INTO users (id, phone, username, pin_hash)
		VALUES ($1, $2, $3, $4)
	`
	_, err := tx.ExecContext(ctx, query, id, phone, username, pinHash)
	return err
}

func (s *UserStore) GetByPhone(ctx context.Context, phone string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `
		SELECT id, phone, username, pin_hash, trust_score, wallet_balance, escrow_balance, created_at
		FROM users
		WHERE phone = $1
	`, phone)
	return row, err
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `
		SELECT id, phone, username, pin_hash, trust_score, wallet_balance, escrow_balance, created_at
		FROM users
		WHERE id = $1
	`, userID)
	return row, err
}

// AdjustWallet applies a signed delta to wallet_balance. The update is
// conditioned so the balance can never go negative; callers check the
// affected-row count.
func (s *UserStore) AdjustWallet(ctx context.Context, tx Execer, userID string, delta int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET wallet_balance = wallet_balance + $1, updated_at = NOW()
		WHERE id = $2 AND wallet_balance + $1 >= 0
	`, delta, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AdjustEscrow applies a signed delta to escrow_balance under the same
// non-negative condition. Credits always satisfy the condition.
func (s *UserStore) AdjustEscrow(ctx context.Context, tx Execer, userID string, delta int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET escrow_balance = escrow_balance + $1, updated_at = NOW()
		WHERE id = $2 AND escrow_balance + $1 >= 0
	`, delta, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AdjustTrust shifts trust_score by delta, clamped to [0, 100].
func (s *UserStore) AdjustTrust(ctx context.Context, tx Execer, userID string, delta int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET trust_score = LEAST(100, GREATEST(0, trust_score + $1)), updated_at = NOW()
		WHERE id = $2
	`, delta, userID)
	return err
}
