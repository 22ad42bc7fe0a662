package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"payfesa/internal/db"
	"payfesa/internal/metrics"
	"payfesa/internal/models"
	"payfesa/internal/notify"
	"payfesa/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// CoverageOutcome classifies one coverage attempt.
type CoverageOutcome string

const (
	OutcomeCovered            CoverageOutcome = "covered"
	OutcomeNotCovered         CoverageOutcome = "not_covered"
	OutcomeCompensatedFailure CoverageOutcome = "compensated_failure"
	OutcomeFatalInconsistency CoverageOutcome = "fatal_inconsistency"
)

type CoverageResult struct {
	Outcome             CoverageOutcome `json:"outcome"`
	Shortfall           int64           `json:"shortfall"`
	ReserveBalanceAfter int64           `json:"reserve_balance_after,omitempty"`
	Reason              string          `json:"reason,omitempty"`
}

func (r CoverageResult) Covered() bool {
	return r.Outcome == OutcomeCovered
}

// ShortfallDetail carries the figures the detector computed, recorded on the
// coverage transaction for reconciliation.
type ShortfallDetail struct {
	Expected    int64
	Contributed int64
	Cycle       int
}

// CoverageService covers a verified shortfall from the shared reserve as a
// two-step compensating transaction: debit the reserve, credit the affected
// escrow, and reverse the debit if the credit fails. The two balances live in
// independent rows, so this is deliberately a saga rather than one database
// transaction.
type CoverageService struct {
	txRunner     db.TxRunner
	ledger       LedgerAdjuster
	escrows      EscrowStore
	transactions TransactionStore
	members      MemberStore
	audit        AuditStore
	notifier     notify.Notifier
	log          *logrus.Logger
}

type LedgerAdjuster interface {
	AdjustReserveWallet(ctx context.Context, delta int64, groupID, userID, reason string) (int64, error)
	AdjustEscrowBalance(ctx context.Context, userID string, delta int64, reason string) error
	CreditGroupEscrow(ctx context.Context, actorID, groupID string, amount int64, reason string) error
}

func NewCoverageService(txRunner db.TxRunner, ledger LedgerAdjuster, escrows EscrowStore, transactions TransactionStore, members MemberStore, audit AuditStore, notifier notify.Notifier, log *logrus.Logger) *CoverageService {
	return &CoverageService{
		txRunner:     txRunner,
		ledger:       ledger,
		escrows:      escrows,
		transactions: transactions,
		members:      members,
		audit:        audit,
		notifier:     notifier,
		log:          log,
	}
}

// Cover draws shortfall from the reserve and credits the affected party's
// escrow: the member's balance when userID is set, the group's pooled escrow
// otherwise. An underfunded reserve is a clean no-op. A failed credit is
// compensated by re-crediting the reserve; if the compensation itself fails
// the group's escrow is locked and automated coverage halts for that group
// until an operator intervenes.
func (s *CoverageService) Cover(ctx context.Context, groupID string, userID *string, shortfall int64, detail ShortfallDetail) (CoverageResult, error) {
	if shortfall <= 0 {
		return CoverageResult{Outcome: OutcomeNotCovered, Reason: "nothing to cover"}, nil
	}
	uid := ""
	if userID != nil {
		uid = *userID
	}
	reason := fmt.Sprintf("shortfall coverage: group %s cycle %d", groupID, detail.Cycle)

	balanceAfter, err := s.ledger.AdjustReserveWallet(ctx, -shortfall, groupID, uid, reason)
	if errors.Is(err, ErrInsufficientReserve) {
		metrics.CoverageOutcomes.WithLabelValues(string(OutcomeNotCovered)).Inc()
		s.log.WithFields(logrus.Fields{
			"group_id":  groupID,
			"shortfall": shortfall,
		}).Warn("reserve cannot fund shortfall")
		return CoverageResult{Outcome: OutcomeNotCovered, Shortfall: shortfall, Reason: "insufficient reserve"}, nil
	}
	if err != nil {
		return CoverageResult{}, err
	}

	var creditErr error
	if userID != nil {
		creditErr = s.ledger.AdjustEscrowBalance(ctx, *userID, shortfall, reason)
	} else {
		creditErr = s.ledger.CreditGroupEscrow(ctx, "system", groupID, shortfall, reason)
	}
	if creditErr != nil {
		if _, rbErr := s.ledger.AdjustReserveWallet(ctx, shortfall, groupID, uid, "rollback: "+reason); rbErr != nil {
			s.log.WithFields(logrus.Fields{
				"group_id":       groupID,
				"user_id":        uid,
				"shortfall":      shortfall,
				"credit_error":   creditErr.Error(),
				"rollback_error": rbErr.Error(),
			}).Error("ledger inconsistency: reserve debited, credit and rollback both failed")
			s.lockEscrow(ctx, groupID, map[string]any{
				"shortfall":      shortfall,
				"credit_error":   creditErr.Error(),
				"rollback_error": rbErr.Error(),
			})
			metrics.CoverageOutcomes.WithLabelValues(string(OutcomeFatalInconsistency)).Inc()
			return CoverageResult{
				Outcome:   OutcomeFatalInconsistency,
				Shortfall: shortfall,
				Reason:    "credit and compensating rollback both failed; manual reconciliation required",
			}, nil
		}
		metrics.CoverageOutcomes.WithLabelValues(string(OutcomeCompensatedFailure)).Inc()
		s.log.WithFields(logrus.Fields{
			"group_id":  groupID,
			"user_id":   uid,
			"shortfall": shortfall,
		}).WithError(creditErr).Warn("escrow credit failed; reserve debit compensated")
		return CoverageResult{
			Outcome:   OutcomeCompensatedFailure,
			Shortfall: shortfall,
			Reason:    creditErr.Error(),
		}, nil
	}

	if err := s.recordCoverage(ctx, groupID, userID, shortfall, detail); err != nil {
		// The coverage transaction row is what the detector counts as already
		// covered. Without it the next run would recompute the same shortfall
		// and debit the reserve a second time, so a failed record locks the
		// escrow until an operator reconciles.
		s.log.WithError(err).WithField("group_id", groupID).Error("failed to record reserve coverage transaction; locking escrow")
		s.lockEscrow(ctx, groupID, map[string]any{
			"shortfall":    shortfall,
			"record_error": err.Error(),
		})
		metrics.CoverageOutcomes.WithLabelValues(string(OutcomeCovered)).Inc()
		return CoverageResult{
			Outcome:             OutcomeCovered,
			Shortfall:           shortfall,
			ReserveBalanceAfter: balanceAfter,
			Reason:              "coverage granted but not recorded; escrow locked pending reconciliation",
		}, nil
	}
	s.announceCoverage(ctx, groupID, userID, shortfall)
	metrics.CoverageOutcomes.WithLabelValues(string(OutcomeCovered)).Inc()
	return CoverageResult{
		Outcome:             OutcomeCovered,
		Shortfall:           shortfall,
		ReserveBalanceAfter: balanceAfter,
	}, nil
}

// lockEscrow halts automated coverage for the group: the sweep and payout
// checks skip locked escrows until an operator reconciles and unlocks.
func (s *CoverageService) lockEscrow(ctx context.Context, groupID string, data map[string]any) {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.escrows.SetLocked(ctx, tx, groupID, true); err != nil {
			return err
		}
		payload, _ := json.Marshal(data)
		return s.audit.Log(ctx, tx, "system", "coverage_halted", "group_escrow", groupID, string(payload))
	})
	if err != nil {
		s.log.WithError(err).WithField("group_id", groupID).Error("failed to lock escrow after ledger inconsistency")
	}
}

func (s *CoverageService) recordCoverage(ctx context.Context, groupID string, userID *string, shortfall int64, detail ShortfallDetail) error {
	metadata, _ := json.Marshal(map[string]any{
		"original_expected":  detail.Expected,
		"actual_contributed": detail.Contributed,
		"shortfall":          shortfall,
		"covered_by_reserve": true,
	})
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.transactions.Create(ctx, tx, store.TransactionInput{
			ID:       uuid.NewString(),
			UserID:   userID,
			GroupID:  &groupID,
			Type:     models.TxTypeReserveCoverage,
			Status:   "completed",
			Amount:   shortfall,
			Cycle:    detail.Cycle,
			Metadata: string(metadata),
		})
	})
}

func (s *CoverageService) announceCoverage(ctx context.Context, groupID string, userID *string, shortfall int64) {
	var recipients []string
	if userID != nil {
		recipients = []string{*userID}
	} else {
		ids, err := s.members.ListUserIDs(ctx, groupID)
		if err != nil {
			s.log.WithError(err).WithField("group_id", groupID).Warn("could not list members for coverage notification")
			return
		}
		recipients = ids
	}
	if len(recipients) == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, notify.Notification{
		UserIDs: recipients,
		Title:   "Payout guaranteed",
		Body:    "A contribution shortfall in your group was covered by the PayFesa reserve. Your payout stays on schedule.",
		Data: map[string]any{
			"group_id":  groupID,
			"shortfall": shortfall,
		},
	}); err != nil {
		s.log.WithError(err).WithField("group_id", groupID).Warn("coverage notification failed")
		return
	}
	metrics.NotificationsSent.Inc()
}
