package services

import (
	"context"
	"errors"
	"testing"

	"payfesa/internal/models"
	"payfesa/internal/store"
)

func TestCoverDebitsReserveAndCreditsGroupEscrow(t *testing.T) {
	ctx := context.Background()
	var reserveDeltas []int64
	var credited int64
	var recorded []store.TransactionInput
	notifier := &recordingNotifier{}
	svc := NewCoverageService(
		fakeTxRunner{},
		stubLedger{
			adjustReserveFn: func(_ context.Context, delta int64, _, _, _ string) (int64, error) {
				reserveDeltas = append(reserveDeltas, delta)
				return 80000, nil
			},
			creditGroupFn: func(_ context.Context, _, _ string, amount int64, _ string) error {
				credited = amount
				return nil
			},
		},
		stubEscrowStore{},
		stubTransactionStore{
			createFn: func(_ context.Context, _ store.Execer, input store.TransactionInput) error {
				recorded = append(recorded, input)
				return nil
			},
		},
		stubMemberStore{
			listUserIDsFn: func(_ context.Context, _ string) ([]string, error) {
				return []string{"user-1", "user-2"}, nil
			},
		},
		stubAuditStore{},
		notifier,
		newTestLogger(),
	)
	result, err := svc.Cover(ctx, "group-1", nil, 20000, ShortfallDetail{Expected: 50000, Contributed: 30000, Cycle: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeCovered {
		t.Fatalf("expected covered, got %s", result.Outcome)
	}
	if len(reserveDeltas) != 1 || reserveDeltas[0] != -20000 {
		t.Fatalf("expected one reserve debit of -20000, got %#v", reserveDeltas)
	}
	if credited != 20000 {
		t.Fatalf("expected escrow credit of 20000, got %d", credited)
	}
	if result.ReserveBalanceAfter != 80000 {
		t.Fatalf("unexpected reserve balance: %d", result.ReserveBalanceAfter)
	}
	if len(recorded) != 1 || recorded[0].Type != models.TxTypeReserveCoverage || recorded[0].Cycle != 2 {
		t.Fatalf("expected one reserve_coverage transaction for cycle 2, got %#v", recorded)
	}
	if len(notifier.sent()) != 1 || len(notifier.sent()[0].UserIDs) != 2 {
		t.Fatalf("all members must be notified: %#v", notifier.sent())
	}
}

func TestCoverLocksEscrowWhenRecordFails(t *testing.T) {
	ctx := context.Background()
	var reserveDeltas []int64
	locked := false
	var auditedActions []string
	notifier := &recordingNotifier{}
	svc := NewCoverageService(
		fakeTxRunner{},
		stubLedger{
			adjustReserveFn: func(_ context.Context, delta int64, _, _, _ string) (int64, error) {
				reserveDeltas = append(reserveDeltas, delta)
				return 49000, nil
			},
		},
		stubEscrowStore{
			setLockedFn: func(_ context.Context, _ store.Execer, groupID string, lock bool) error {
				if groupID == "group-1" && lock {
					locked = true
				}
				return nil
			},
		},
		stubTransactionStore{
			createFn: func(_ context.Context, _ store.Execer, _ store.TransactionInput) error {
				return errors.New("transactions table unavailable")
			},
		},
		stubMemberStore{},
		stubAuditStore{
			logFn: func(_ context.Context, _ store.Execer, _, action, _, _, _ string) error {
				auditedActions = append(auditedActions, action)
				return nil
			},
		},
		notifier,
		newTestLogger(),
	)
	result, err := svc.Cover(ctx, "group-1", nil, 1000, ShortfallDetail{Expected: 5000, Contributed: 4000, Cycle: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeCovered {
		t.Fatalf("funds did move, expected covered, got %s", result.Outcome)
	}
	if len(reserveDeltas) != 1 || reserveDeltas[0] != -1000 {
		t.Fatalf("expected a single reserve debit, got %#v", reserveDeltas)
	}
	if !locked {
		t.Fatalf("a coverage the detector cannot see must lock the escrow, or the next sweep double-covers")
	}
	found := false
	for _, action := range auditedActions {
		if action == "coverage_halted" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected coverage_halted audit entry, got %#v", auditedActions)
	}
	if len(notifier.sent()) != 0 {
		t.Fatalf("no member notification until the books reconcile, got %#v", notifier.sent())
	}
}

func TestCoverTargetsMemberEscrowWhenUserGiven(t *testing.T) {
	ctx := context.Background()
	var creditedUser string
	userID := "user-1"
	svc := NewCoverageService(
		fakeTxRunner{},
		stubLedger{
			adjustEscrowFn: func(_ context.Context, uid string, delta int64, _ string) error {
				creditedUser = uid
				if delta != 5000 {
					t.Fatalf("unexpected credit delta: %d", delta)
				}
				return nil
			},
		},
		stubEscrowStore{},
		stubTransactionStore{},
		stubMemberStore{},
		stubAuditStore{},
		&recordingNotifier{},
		newTestLogger(),
	)
	result, err := svc.Cover(ctx, "group-1", &userID, 5000, ShortfallDetail{Cycle: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Covered() {
		t.Fatalf("expected covered, got %s", result.Outcome)
	}
	if creditedUser != "user-1" {
		t.Fatalf("expected credit to user-1, got %q", creditedUser)
	}
}

func TestCoverInsufficientReserveIsCleanNoOp(t *testing.T) {
	ctx := context.Background()
	svc := NewCoverageService(
		fakeTxRunner{},
		stubLedger{
			adjustReserveFn: func(_ context.Context, _ int64, _, _, _ string) (int64, error) {
				return 0, ErrInsufficientReserve
			},
			creditGroupFn: func(_ context.Context, _, _ string, _ int64, _ string) error {
				t.Fatalf("no credit expected when the reserve cannot fund")
				return nil
			},
		},
		stubEscrowStore{},
		stubTransactionStore{},
		stubMemberStore{},
		stubAuditStore{},
		&recordingNotifier{},
		newTestLogger(),
	)
	result, err := svc.Cover(ctx, "group-1", nil, 999999, ShortfallDetail{Cycle: 1})
	if err != nil {
		t.Fatalf("insufficient reserve is not a fault: %v", err)
	}
	if result.Outcome != OutcomeNotCovered {
		t.Fatalf("expected not_covered, got %s", result.Outcome)
	}
}

func TestCoverCompensatesFailedCredit(t *testing.T) {
	ctx := context.Background()
	var reserveDeltas []int64
	svc := NewCoverageService(
		fakeTxRunner{},
		stubLedger{
			adjustReserveFn: func(_ context.Context, delta int64, _, _, _ string) (int64, error) {
				reserveDeltas = append(reserveDeltas, delta)
				return 0, nil
			},
			creditGroupFn: func(_ context.Context, _, _ string, _ int64, _ string) error {
				return errors.New("escrow row gone")
			},
		},
		stubEscrowStore{
			setLockedFn: func(_ context.Context, _ store.Execer, _ string, _ bool) error {
				t.Fatalf("a compensated failure must not lock the escrow")
				return nil
			},
		},
		stubTransactionStore{},
		stubMemberStore{},
		stubAuditStore{},
		&recordingNotifier{},
		newTestLogger(),
	)
	result, err := svc.Cover(ctx, "group-1", nil, 7000, ShortfallDetail{Cycle: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeCompensatedFailure {
		t.Fatalf("expected compensated_failure, got %s", result.Outcome)
	}
	var net int64
	for _, delta := range reserveDeltas {
		net += delta
	}
	if net != 0 {
		t.Fatalf("reserve must net to zero after compensation, got %d (%#v)", net, reserveDeltas)
	}
}

func TestCoverFatalInconsistencyLocksEscrow(t *testing.T) {
	ctx := context.Background()
	locked := false
	var auditedActions []string
	calls := 0
	svc := NewCoverageService(
		fakeTxRunner{},
		stubLedger{
			adjustReserveFn: func(_ context.Context, delta int64, _, _, _ string) (int64, error) {
				calls++
				if calls == 1 {
					return 0, nil
				}
				return 0, errors.New("reserve row lock timeout")
			},
			creditGroupFn: func(_ context.Context, _, _ string, _ int64, _ string) error {
				return errors.New("escrow row gone")
			},
		},
		stubEscrowStore{
			setLockedFn: func(_ context.Context, _ store.Execer, groupID string, lock bool) error {
				if groupID == "group-1" && lock {
					locked = true
				}
				return nil
			},
		},
		stubTransactionStore{},
		stubMemberStore{},
		stubAuditStore{
			logFn: func(_ context.Context, _ store.Execer, _, action, _, _, _ string) error {
				auditedActions = append(auditedActions, action)
				return nil
			},
		},
		&recordingNotifier{},
		newTestLogger(),
	)
	result, err := svc.Cover(ctx, "group-1", nil, 7000, ShortfallDetail{Cycle: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeFatalInconsistency {
		t.Fatalf("expected fatal_inconsistency, got %s", result.Outcome)
	}
	if !locked {
		t.Fatalf("fatal inconsistency must lock the group escrow")
	}
	found := false
	for _, action := range auditedActions {
		if action == "coverage_halted" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected coverage_halted audit entry, got %#v", auditedActions)
	}
}

func TestCoverRejectsNonPositiveShortfall(t *testing.T) {
	ctx := context.Background()
	svc := NewCoverageService(
		fakeTxRunner{},
		stubLedger{
			adjustReserveFn: func(_ context.Context, _ int64, _, _, _ string) (int64, error) {
				t.Fatalf("no reserve touch expected for a zero shortfall")
				return 0, nil
			},
		},
		stubEscrowStore{},
		stubTransactionStore{},
		stubMemberStore{},
		stubAuditStore{},
		&recordingNotifier{},
		newTestLogger(),
	)
	result, err := svc.Cover(ctx, "group-1", nil, 0, ShortfallDetail{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeNotCovered {
		t.Fatalf("expected not_covered, got %s", result.Outcome)
	}
}
