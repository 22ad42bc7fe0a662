package store

import (
	"context"

	"payfesa/internal/models"
)

// ReserveStore owns the singleton reserve_wallet row. Withdrawals are
// conditioned on the balance in a single UPDATE so two concurrent coverage
// calls can never drive the fund negative.
type ReserveStore struct {
	db DB
}

func NewReserveStore(db DB) *ReserveStore {
	return &ReserveStore{db: db}
}

func (s *ReserveStore) Get(ctx context.Context) (models.ReserveWallet, error) {
	var row models.ReserveWallet
	err := s.db.GetContext(ctx, &row, `
		SELECT id, total_amount, updated_at FROM reserve_wallet WHERE id = 1
	`)
	return row, err
}

func (s *ReserveStore) Balance(ctx context.Context, q Getter) (int64, error) {
	var balance int64
	err := q.GetContext(ctx, &balance, `
		SELECT total_amount FROM reserve_wallet WHERE id = 1
	`)
	return balance, err
}

// Withdraw debits the reserve only if the balance covers the amount; callers
// check the affected-row count. A zero count means insufficient reserve.
func (s *ReserveStore) Withdraw(ctx context.Context, tx Execer, amount int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE reserve_wallet
		SET total_amount = total_amount - $1, updated_at = NOW()
		WHERE id = 1 AND total_amount >= $1
	`, amount)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Deposit credits the reserve; crediting cannot fail a balance check, so it
// is also the compensation path for an aborted coverage.
func (s *ReserveStore) Deposit(ctx context.Context, tx Execer, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE reserve_wallet
		SET total_amount = total_amount + $1, updated_at = NOW()
		WHERE id = 1
	`, amount)
	return err
}
