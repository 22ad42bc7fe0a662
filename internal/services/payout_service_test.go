package services

import (
	"context"
	"errors"
	"testing"

	"payfesa/internal/models"
	"payfesa/internal/store"
)

func payoutFixtureGroup() models.Group {
	group := activeGroup("group-1", 10000, 3, 2)
	return group
}

func TestRequestPayoutRejectsNonMembers(t *testing.T) {
	ctx := context.Background()
	svc := NewPayoutService(
		fakeTxRunner{},
		stubGroupStore{},
		stubMemberStore{
			getFn: func(_ context.Context, _, _ string) (models.GroupMember, error) {
				return models.GroupMember{}, errors.New("no rows")
			},
		},
		stubUserStore{},
		stubEscrowStore{},
		stubTransactionStore{},
		stubAuditStore{},
		stubShortfallChecker{},
		stubCoverage{},
		stubRecomputer{},
		&recordingNotifier{},
		&recordingHub{},
		newTestLogger(),
	)
	_, err := svc.RequestPayout(ctx, "group-1", "user-x")
	if !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}

func TestRequestPayoutHaltsOnLockedEscrow(t *testing.T) {
	ctx := context.Background()
	svc := NewPayoutService(
		fakeTxRunner{},
		stubGroupStore{},
		stubMemberStore{},
		stubUserStore{},
		stubEscrowStore{},
		stubTransactionStore{},
		stubAuditStore{},
		stubShortfallChecker{
			checkFn: func(_ context.Context, groupID string) (ShortfallReport, error) {
				return ShortfallReport{GroupID: groupID, EscrowLocked: true}, nil
			},
		},
		stubCoverage{},
		stubRecomputer{},
		&recordingNotifier{},
		&recordingHub{},
		newTestLogger(),
	)
	_, err := svc.RequestPayout(ctx, "group-1", "user-1")
	if !errors.Is(err, ErrEscrowLocked) {
		t.Fatalf("expected ErrEscrowLocked, got %v", err)
	}
}

func TestRequestPayoutUncoveredShortfallIsNotAnError(t *testing.T) {
	ctx := context.Background()
	svc := NewPayoutService(
		fakeTxRunner{},
		stubGroupStore{},
		stubMemberStore{},
		stubUserStore{},
		stubEscrowStore{
			debitFn: func(_ context.Context, _ store.Execer, _ string, _ int64) (int64, error) {
				t.Fatalf("no escrow debit expected when coverage fails")
				return 0, nil
			},
		},
		stubTransactionStore{},
		stubAuditStore{},
		stubShortfallChecker{
			checkFn: func(_ context.Context, groupID string) (ShortfallReport, error) {
				return ShortfallReport{GroupID: groupID, Cycle: 2, Expected: 30000, Contributed: 10000, Shortfall: 20000}, nil
			},
		},
		stubCoverage{
			coverFn: func(_ context.Context, _ string, _ *string, shortfall int64, _ ShortfallDetail) (CoverageResult, error) {
				return CoverageResult{Outcome: OutcomeNotCovered, Shortfall: shortfall, Reason: "insufficient reserve"}, nil
			},
		},
		stubRecomputer{},
		&recordingNotifier{},
		&recordingHub{},
		newTestLogger(),
	)
	result, err := svc.RequestPayout(ctx, "group-1", "user-1")
	if err != nil {
		t.Fatalf("uncovered shortfall must not be a fault: %v", err)
	}
	if result.Covered {
		t.Fatalf("expected covered=false")
	}
	if result.Shortfall != 20000 {
		t.Fatalf("unexpected shortfall: %d", result.Shortfall)
	}
}

func TestRequestPayoutDisbursesPotAndAdvancesCycle(t *testing.T) {
	ctx := context.Background()
	var debited int64
	var walletCredit int64
	var groupAdvanced, escrowAdvanced, contributionsReset bool
	var recordedType string
	var recordedCycle int
	notifier := &recordingNotifier{}
	recomputed := false
	svc := NewPayoutService(
		fakeTxRunner{},
		stubGroupStore{
			getByIDFn: func(_ context.Context, _ string) (models.Group, error) {
				t.Fatalf("pot and cycle must come from the locked row, not an unlocked read")
				return models.Group{}, nil
			},
			getForUpdateFn: func(_ context.Context, _ store.Getter, _ string) (models.Group, error) {
				return payoutFixtureGroup(), nil
			},
			advanceCycleFn: func(_ context.Context, _ store.Execer, _ string) error {
				groupAdvanced = true
				return nil
			},
		},
		stubMemberStore{
			nextRecipientFn: func(_ context.Context, _ store.Getter, _ string) (models.GroupMember, error) {
				return models.GroupMember{ID: "member-2", UserID: "user-2"}, nil
			},
			resetFn: func(_ context.Context, _ store.Execer, _ string) error {
				contributionsReset = true
				return nil
			},
		},
		stubUserStore{
			adjustWalletFn: func(_ context.Context, _ store.Execer, userID string, delta int64) (int64, error) {
				if userID != "user-2" {
					t.Fatalf("pot must go to the next recipient, got %s", userID)
				}
				walletCredit = delta
				return 1, nil
			},
		},
		stubEscrowStore{
			debitFn: func(_ context.Context, _ store.Execer, _ string, amount int64) (int64, error) {
				debited = amount
				return 1, nil
			},
			advanceCycleFn: func(_ context.Context, _ store.Execer, _ string) error {
				escrowAdvanced = true
				return nil
			},
		},
		stubTransactionStore{
			createFn: func(_ context.Context, _ store.Execer, input store.TransactionInput) error {
				recordedType = input.Type
				recordedCycle = input.Cycle
				return nil
			},
		},
		stubAuditStore{},
		stubShortfallChecker{},
		stubCoverage{},
		stubRecomputer{
			recomputeFn: func(_ context.Context, _ string) ([]PositionChange, error) {
				recomputed = true
				return nil, nil
			},
		},
		notifier,
		&recordingHub{},
		newTestLogger(),
	)
	result, err := svc.RequestPayout(ctx, "group-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Covered || result.RecipientID != "user-2" {
		t.Fatalf("unexpected result: %#v", result)
	}
	if debited != 30000 || walletCredit != 30000 {
		t.Fatalf("pot must be contribution x members: debit %d credit %d", debited, walletCredit)
	}
	if !groupAdvanced || !escrowAdvanced || !contributionsReset {
		t.Fatalf("cycle state must advance: group=%v escrow=%v reset=%v", groupAdvanced, escrowAdvanced, contributionsReset)
	}
	if recordedType != models.TxTypePayout {
		t.Fatalf("unexpected transaction type: %q", recordedType)
	}
	if recordedCycle != 2 {
		t.Fatalf("payout must record the locked row's cycle, got %d", recordedCycle)
	}
	if !recomputed {
		t.Fatalf("payout must trigger a position recompute")
	}
	if len(notifier.sent()) != 1 {
		t.Fatalf("recipient must be notified, got %d", len(notifier.sent()))
	}
}
