package services

import (
	"context"
	"encoding/json"

	"payfesa/internal/db"
	"payfesa/internal/models"
	"payfesa/internal/money"
	"payfesa/internal/store"
	"payfesa/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// ContributionService moves a member's periodic payment from wallet to the
// group escrow. An on-time completed contribution nudges trust score up,
// which feeds back into payout ordering.
type ContributionService struct {
	txRunner      db.TxRunner
	groups        GroupStore
	members       MemberStore
	users         UserStore
	escrows       EscrowStore
	contributions ContributionStore
	transactions  TransactionStore
	audit         AuditStore
	hub           UpdateHub
	log           *logrus.Logger
}

func NewContributionService(txRunner db.TxRunner, groups GroupStore, members MemberStore, users UserStore, escrows EscrowStore, contributions ContributionStore, transactions TransactionStore, audit AuditStore, hub UpdateHub, log *logrus.Logger) *ContributionService {
	return &ContributionService{
		txRunner:      txRunner,
		groups:        groups,
		members:       members,
		users:         users,
		escrows:       escrows,
		contributions: contributions,
		transactions:  transactions,
		audit:         audit,
		hub:           hub,
		log:           log,
	}
}

// Contribute records a pending contribution for the group's current cycle.
func (s *ContributionService) Contribute(ctx context.Context, groupID, userID string, amount int64) (string, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return "", err
	}
	if group.Status != models.GroupStatusActive {
		return "", ErrGroupNotActive
	}
	member, err := s.members.Get(ctx, groupID, userID)
	if err != nil {
		return "", ErrNotMember
	}
	if member.HasContributed {
		return "", ErrAlreadyContributed
	}
	if amount != group.ContributionAmount {
		return "", ErrWrongAmount
	}
	contributionID := uuid.NewString()
	if err := s.contributions.Create(ctx, store.ContributionInput{
		ID:      contributionID,
		GroupID: groupID,
		UserID:  userID,
		Amount:  amount,
		Cycle:   group.CurrentCycle,
	}); err != nil {
		return "", err
	}
	return contributionID, nil
}

// Complete settles a pending contribution: wallet debit, group escrow
// credit, status flip, and a small trust bump, all in one transaction. An
// underfunded wallet marks the contribution failed.
func (s *ContributionService) Complete(ctx context.Context, contributionID, userID string) error {
	contribution, err := s.contributions.Get(ctx, contributionID)
	if err != nil {
		return err
	}
	if contribution.UserID != userID {
		return ErrNotContributionOwner
	}
	group, err := s.groups.GetByID(ctx, contribution.GroupID)
	if err != nil {
		return err
	}
	if contribution.Cycle != group.CurrentCycle {
		// A pending row left over from a past cycle must not settle now: its
		// escrow credit would count toward the old cycle's sum while
		// has_contributed marks the current one.
		s.markFailed(ctx, contributionID)
		return ErrContributionStale
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.contributions.MarkCompleted(ctx, tx, contributionID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrContributionNotPending
		}
		debited, err := s.users.AdjustWallet(ctx, tx, userID, -contribution.Amount)
		if err != nil {
			return err
		}
		if debited == 0 {
			return ErrInsufficientBalance
		}
		if err := s.escrows.Credit(ctx, tx, contribution.GroupID, contribution.Amount); err != nil {
			return err
		}
		if err := s.members.SetHasContributed(ctx, tx, contribution.GroupID, userID, true); err != nil {
			return err
		}
		if err := s.users.AdjustTrust(ctx, tx, userID, 1); err != nil {
			return err
		}
		if err := s.transactions.Create(ctx, tx, store.TransactionInput{
			ID:       uuid.NewString(),
			UserID:   &userID,
			GroupID:  &contribution.GroupID,
			Type:     models.TxTypeContribution,
			Status:   "completed",
			Amount:   contribution.Amount,
			Cycle:    contribution.Cycle,
			Metadata: "{}",
		}); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"contribution_id": contributionID,
			"amount":          contribution.Amount,
			"cycle":           contribution.Cycle,
		})
		return s.audit.Log(ctx, tx, userID, "contribution_completed", "contribution", contributionID, string(data))
	})
	if err != nil {
		if err == ErrInsufficientBalance {
			s.markFailed(ctx, contributionID)
		}
		return err
	}
	escrow, escrowErr := s.escrows.Get(ctx, contribution.GroupID)
	if escrowErr == nil {
		s.hub.Broadcast(userID, websocket.Update{
			Type:    websocket.UpdateEscrowBalance,
			GroupID: contribution.GroupID,
			Balance: money.FormatMinor(escrow.TotalBalance),
		})
	}
	return nil
}

func (s *ContributionService) markFailed(ctx context.Context, contributionID string) {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.contributions.MarkFailed(ctx, tx, contributionID)
	})
	if err != nil {
		s.log.WithError(err).WithField("contribution_id", contributionID).Warn("could not mark contribution failed")
	}
}
