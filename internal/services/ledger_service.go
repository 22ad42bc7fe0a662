package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"payfesa/internal/db"
	"payfesa/internal/metrics"

	"github.com/jmoiron/sqlx"
)

// LedgerService is the only legal mutation path for escrow balances and the
// reserve wallet. Every call applies atomically (balance change plus exactly
// one audit row) or not at all.
type LedgerService struct {
	txRunner db.TxRunner
	users    UserStore
	escrows  EscrowStore
	reserve  ReserveStore
	audit    AuditStore
}

func NewLedgerService(txRunner db.TxRunner, users UserStore, escrows EscrowStore, reserve ReserveStore, audit AuditStore) *LedgerService {
	return &LedgerService{
		txRunner: txRunner,
		users:    users,
		escrows:  escrows,
		reserve:  reserve,
		audit:    audit,
	}
}

// AdjustEscrowBalance applies a signed delta to a user's escrow balance.
// Debits that would drive the balance negative fail with
// ErrInsufficientBalance; credits are always allowed, which is what lets the
// coverage engine top up a verified deficit.
func (s *LedgerService) AdjustEscrowBalance(ctx context.Context, userID string, delta int64, reason string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.users.AdjustEscrow(ctx, tx, userID, delta)
		if err != nil {
			return err
		}
		if rows == 0 {
			if delta < 0 {
				return ErrInsufficientBalance
			}
			return sql.ErrNoRows
		}
		data, _ := json.Marshal(map[string]any{
			"delta":  delta,
			"reason": reason,
		})
		return s.audit.Log(ctx, tx, userID, "escrow_adjust", "user", userID, string(data))
	})
}

// AdjustWalletBalance applies a signed delta to a user's wallet balance under
// the same non-negative guarantee.
func (s *LedgerService) AdjustWalletBalance(ctx context.Context, userID string, delta int64, reason string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.users.AdjustWallet(ctx, tx, userID, delta)
		if err != nil {
			return err
		}
		if rows == 0 {
			if delta < 0 {
				return ErrInsufficientBalance
			}
			return sql.ErrNoRows
		}
		data, _ := json.Marshal(map[string]any{
			"delta":  delta,
			"reason": reason,
		})
		return s.audit.Log(ctx, tx, userID, "wallet_adjust", "user", userID, string(data))
	})
}

// CreditGroupEscrow adds funds to a group's pooled escrow.
func (s *LedgerService) CreditGroupEscrow(ctx context.Context, actorID, groupID string, amount int64, reason string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.escrows.Credit(ctx, tx, groupID, amount); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"delta":  amount,
			"reason": reason,
		})
		return s.audit.Log(ctx, tx, actorID, "group_escrow_credit", "group_escrow", groupID, string(data))
	})
}

// DebitGroupEscrow removes funds from a group's pooled escrow, failing with
// ErrInsufficientBalance when the pool cannot fund the amount.
func (s *LedgerService) DebitGroupEscrow(ctx context.Context, actorID, groupID string, amount int64, reason string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.escrows.Debit(ctx, tx, groupID, amount)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrInsufficientBalance
		}
		data, _ := json.Marshal(map[string]any{
			"delta":  -amount,
			"reason": reason,
		})
		return s.audit.Log(ctx, tx, actorID, "group_escrow_debit", "group_escrow", groupID, string(data))
	})
}

// AdjustReserveWallet applies a signed delta to the platform reserve and
// returns the balance after the mutation. Withdrawals are conditioned on the
// balance inside a single UPDATE; a losing race surfaces as
// ErrInsufficientReserve, never as a negative balance.
func (s *LedgerService) AdjustReserveWallet(ctx context.Context, delta int64, groupID, userID, reason string) (int64, error) {
	var balanceAfter int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if delta < 0 {
			rows, err := s.reserve.Withdraw(ctx, tx, -delta)
			if err != nil {
				return err
			}
			if rows == 0 {
				return ErrInsufficientReserve
			}
		} else if delta > 0 {
			if err := s.reserve.Deposit(ctx, tx, delta); err != nil {
				return err
			}
		}
		balance, err := s.reserve.Balance(ctx, tx)
		if err != nil {
			return err
		}
		balanceAfter = balance
		actor := userID
		if actor == "" {
			actor = "system"
		}
		data, _ := json.Marshal(map[string]any{
			"group_id":      groupID,
			"user_id":       userID,
			"delta":         delta,
			"reason":        reason,
			"balance_after": balance,
		})
		return s.audit.Log(ctx, tx, actor, "reserve_adjust", "reserve_wallet", "1", string(data))
	})
	if err != nil {
		return 0, err
	}
	metrics.ReserveBalance.Set(float64(balanceAfter))
	return balanceAfter, nil
}

// IsInsufficient reports whether err is one of the two balance-check
// failures, which callers treat as clean no-ops rather than faults.
func IsInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) || errors.Is(err, ErrInsufficientReserve)
}
