package services

import (
	"context"
	"encoding/json"
	"time"

	"payfesa/internal/db"
	"payfesa/internal/models"
	"payfesa/internal/money"
	"payfesa/internal/notify"
	"payfesa/internal/store"
	"payfesa/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ShortfallChecker interface {
	Check(ctx context.Context, groupID string) (ShortfallReport, error)
}

type PayoutResult struct {
	Covered       bool   `json:"covered"`
	Shortfall     int64  `json:"shortfall"`
	TransactionID string `json:"transaction_id,omitempty"`
	RecipientID   string `json:"recipient_id,omitempty"`
	Amount        int64  `json:"amount,omitempty"`
}

// PayoutService disburses the pooled pot to the next member in rotation. A
// payout request runs the point-mode shortfall check first and tops up from
// the reserve when the cycle is short, so payouts land on schedule even when
// a member pays late.
type PayoutService struct {
	txRunner     db.TxRunner
	groups       GroupStore
	members      MemberStore
	users        UserStore
	escrows      EscrowStore
	transactions TransactionStore
	audit        AuditStore
	shortfall    ShortfallChecker
	coverage     CoverageEngine
	ranking      Recomputer
	notifier     notify.Notifier
	hub          UpdateHub
	log          *logrus.Logger
}

func NewPayoutService(txRunner db.TxRunner, groups GroupStore, members MemberStore, users UserStore, escrows EscrowStore, transactions TransactionStore, audit AuditStore, shortfall ShortfallChecker, coverage CoverageEngine, ranking Recomputer, notifier notify.Notifier, hub UpdateHub, log *logrus.Logger) *PayoutService {
	return &PayoutService{
		txRunner:     txRunner,
		groups:       groups,
		members:      members,
		users:        users,
		escrows:      escrows,
		transactions: transactions,
		audit:        audit,
		shortfall:    shortfall,
		coverage:     coverage,
		ranking:      ranking,
		notifier:     notifier,
		hub:          hub,
		log:          log,
	}
}

// RequestPayout checks the current cycle, covers any shortfall from the
// reserve, and if the pot is fully funded disburses it to the next recipient
// and advances the cycle. A shortfall the reserve cannot fund comes back as
// covered=false with no mutation.
func (s *PayoutService) RequestPayout(ctx context.Context, groupID, callerID string) (PayoutResult, error) {
	if _, err := s.members.Get(ctx, groupID, callerID); err != nil {
		return PayoutResult{}, ErrNotMember
	}
	report, err := s.shortfall.Check(ctx, groupID)
	if err != nil {
		return PayoutResult{}, err
	}
	if report.EscrowLocked {
		return PayoutResult{}, ErrEscrowLocked
	}
	if report.Shortfall > 0 {
		coverage, err := s.coverage.Cover(ctx, groupID, nil, report.Shortfall, ShortfallDetail{
			Expected:    report.Expected,
			Contributed: report.Contributed,
			Cycle:       report.Cycle,
		})
		if err != nil {
			return PayoutResult{}, err
		}
		if !coverage.Covered() {
			return PayoutResult{Covered: false, Shortfall: report.Shortfall}, nil
		}
	}

	transactionID := uuid.NewString()
	var recipient models.GroupMember
	var pot int64
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		// Pot and cycle come from the locked row. A join or cycle advance
		// racing in between must not disburse a stale amount.
		group, err := s.groups.GetForUpdate(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if group.Status != models.GroupStatusActive {
			return ErrGroupNotActive
		}
		pot = group.ContributionAmount * int64(group.CurrentMembers)
		member, err := s.members.NextRecipient(ctx, tx, groupID)
		if err != nil {
			return err
		}
		recipient = member
		rows, err := s.escrows.Debit(ctx, tx, groupID, pot)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrInsufficientBalance
		}
		credited, err := s.users.AdjustWallet(ctx, tx, member.UserID, pot)
		if err != nil {
			return err
		}
		if credited == 0 {
			return ErrInsufficientBalance
		}
		if err := s.members.SetLastPayout(ctx, tx, member.ID, time.Now().UTC()); err != nil {
			return err
		}
		if err := s.members.ResetContributions(ctx, tx, groupID); err != nil {
			return err
		}
		if err := s.groups.AdvanceCycle(ctx, tx, groupID); err != nil {
			return err
		}
		if err := s.escrows.AdvanceCycle(ctx, tx, groupID); err != nil {
			return err
		}
		metadata, _ := json.Marshal(map[string]any{
			"requested_by": callerID,
			"pot":          pot,
		})
		if err := s.transactions.Create(ctx, tx, store.TransactionInput{
			ID:       transactionID,
			UserID:   &member.UserID,
			GroupID:  &groupID,
			Type:     models.TxTypePayout,
			Status:   "completed",
			Amount:   pot,
			Cycle:    group.CurrentCycle,
			Metadata: string(metadata),
		}); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, callerID, "payout_disbursed", "group", groupID, string(metadata))
	})
	if err != nil {
		return PayoutResult{}, err
	}

	s.announcePayout(ctx, groupID, recipient.UserID, pot)
	if _, err := s.ranking.Recompute(ctx, groupID); err != nil {
		s.log.WithError(err).WithField("group_id", groupID).Error("position recompute after payout failed")
	}
	return PayoutResult{
		Covered:       true,
		Shortfall:     report.Shortfall,
		TransactionID: transactionID,
		RecipientID:   recipient.UserID,
		Amount:        pot,
	}, nil
}

func (s *PayoutService) announcePayout(ctx context.Context, groupID, recipientID string, pot int64) {
	if err := s.notifier.Notify(ctx, notify.Notification{
		UserIDs: []string{recipientID},
		Title:   "Payout received",
		Body:    "Your group payout of MWK " + money.FormatMinor(pot) + " has been credited to your wallet.",
		Data: map[string]any{
			"group_id": groupID,
			"amount":   pot,
		},
	}); err != nil {
		s.log.WithError(err).WithField("user_id", recipientID).Warn("payout notification failed")
	}
	s.hub.Broadcast(recipientID, websocket.Update{
		Type:    websocket.UpdatePayout,
		GroupID: groupID,
		Balance: money.FormatMinor(pot),
	})
}
