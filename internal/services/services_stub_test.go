package services

import (
	"context"
	"io"
	"sync"
	"time"

	"payfesa/internal/models"
	"payfesa/internal/notify"
	"payfesa/internal/store"
	"payfesa/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type stubUserStore struct {
	getByIDFn      func(ctx context.Context, userID string) (models.User, error)
	adjustWalletFn func(ctx context.Context, tx store.Execer, userID string, delta int64) (int64, error)
	adjustEscrowFn func(ctx context.Context, tx store.Execer, userID string, delta int64) (int64, error)
	adjustTrustFn  func(ctx context.Context, tx store.Execer, userID string, delta int) error
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{ID: userID}, nil
	}
	return s.getByIDFn(ctx, userID)
}

func (s stubUserStore) AdjustWallet(ctx context.Context, tx store.Execer, userID string, delta int64) (int64, error) {
	if s.adjustWalletFn == nil {
		return 1, nil
	}
	return s.adjustWalletFn(ctx, tx, userID, delta)
}

func (s stubUserStore) AdjustEscrow(ctx context.Context, tx store.Execer, userID string, delta int64) (int64, error) {
	if s.adjustEscrowFn == nil {
		return 1, nil
	}
	return s.adjustEscrowFn(ctx, tx, userID, delta)
}

func (s stubUserStore) AdjustTrust(ctx context.Context, tx store.Execer, userID string, delta int) error {
	if s.adjustTrustFn == nil {
		return nil
	}
	return s.adjustTrustFn(ctx, tx, userID, delta)
}

type stubGroupStore struct {
	groupCreateFn  func(ctx context.Context, tx store.Execer, input store.GroupInput) error
	getByIDFn      func(ctx context.Context, groupID string) (models.Group, error)
	getForUpdateFn func(ctx context.Context, tx store.Getter, groupID string) (models.Group, error)
	listActiveFn   func(ctx context.Context) ([]models.Group, error)
	listByMemberFn func(ctx context.Context, userID string) ([]models.Group, error)
	incrementFn    func(ctx context.Context, tx store.Execer, groupID string) (int64, error)
	decrementFn    func(ctx context.Context, tx store.Execer, groupID string) error
	updateStatusFn func(ctx context.Context, tx store.Execer, groupID, status string) error
	advanceCycleFn func(ctx context.Context, tx store.Execer, groupID string) error
}

func (s stubGroupStore) Create(ctx context.Context, tx store.Execer, input store.GroupInput) error {
	if s.groupCreateFn == nil {
		return nil
	}
	return s.groupCreateFn(ctx, tx, input)
}

func (s stubGroupStore) GetByID(ctx context.Context, groupID string) (models.Group, error) {
	if s.getByIDFn == nil {
		return models.Group{ID: groupID, Status: models.GroupStatusActive}, nil
	}
	return s.getByIDFn(ctx, groupID)
}

func (s stubGroupStore) GetForUpdate(ctx context.Context, tx store.Getter, groupID string) (models.Group, error) {
	if s.getForUpdateFn == nil {
		return models.Group{ID: groupID, Status: models.GroupStatusActive}, nil
	}
	return s.getForUpdateFn(ctx, tx, groupID)
}

func (s stubGroupStore) ListActive(ctx context.Context) ([]models.Group, error) {
	if s.listActiveFn == nil {
		return nil, nil
	}
	return s.listActiveFn(ctx)
}

func (s stubGroupStore) ListByMember(ctx context.Context, userID string) ([]models.Group, error) {
	if s.listByMemberFn == nil {
		return nil, nil
	}
	return s.listByMemberFn(ctx, userID)
}

func (s stubGroupStore) IncrementMembers(ctx context.Context, tx store.Execer, groupID string) (int64, error) {
	if s.incrementFn == nil {
		return 1, nil
	}
	return s.incrementFn(ctx, tx, groupID)
}

func (s stubGroupStore) DecrementMembers(ctx context.Context, tx store.Execer, groupID string) error {
	if s.decrementFn == nil {
		return nil
	}
	return s.decrementFn(ctx, tx, groupID)
}

func (s stubGroupStore) UpdateStatus(ctx context.Context, tx store.Execer, groupID, status string) error {
	if s.updateStatusFn == nil {
		return nil
	}
	return s.updateStatusFn(ctx, tx, groupID, status)
}

func (s stubGroupStore) AdvanceCycle(ctx context.Context, tx store.Execer, groupID string) error {
	if s.advanceCycleFn == nil {
		return nil
	}
	return s.advanceCycleFn(ctx, tx, groupID)
}

type stubMemberStore struct {
	createFn            func(ctx context.Context, tx store.Execer, input store.MemberInput) error
	getFn               func(ctx context.Context, groupID, userID string) (models.GroupMember, error)
	listForRankingFn    func(ctx context.Context, q store.Selecter, groupID string) ([]store.MemberRank, error)
	listUserIDsFn       func(ctx context.Context, groupID string) ([]string, error)
	updatePositionFn    func(ctx context.Context, tx store.Execer, memberID string, position int) error
	removeFn            func(ctx context.Context, tx store.Execer, groupID, userID string) (int64, error)
	nextRecipientFn     func(ctx context.Context, q store.Getter, groupID string) (models.GroupMember, error)
	setHasContributedFn func(ctx context.Context, tx store.Execer, groupID, userID string, contributed bool) error
	resetFn             func(ctx context.Context, tx store.Execer, groupID string) error
	setLastPayoutFn     func(ctx context.Context, tx store.Execer, memberID string, at time.Time) error
}

func (s stubMemberStore) Create(ctx context.Context, tx store.Execer, input store.MemberInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubMemberStore) Get(ctx context.Context, groupID, userID string) (models.GroupMember, error) {
	if s.getFn == nil {
		return models.GroupMember{GroupID: groupID, UserID: userID}, nil
	}
	return s.getFn(ctx, groupID, userID)
}

func (s stubMemberStore) ListForRanking(ctx context.Context, q store.Selecter, groupID string) ([]store.MemberRank, error) {
	if s.listForRankingFn == nil {
		return nil, nil
	}
	return s.listForRankingFn(ctx, q, groupID)
}

func (s stubMemberStore) ListUserIDs(ctx context.Context, groupID string) ([]string, error) {
	if s.listUserIDsFn == nil {
		return nil, nil
	}
	return s.listUserIDsFn(ctx, groupID)
}

func (s stubMemberStore) UpdatePosition(ctx context.Context, tx store.Execer, memberID string, position int) error {
	if s.updatePositionFn == nil {
		return nil
	}
	return s.updatePositionFn(ctx, tx, memberID, position)
}

func (s stubMemberStore) Remove(ctx context.Context, tx store.Execer, groupID, userID string) (int64, error) {
	if s.removeFn == nil {
		return 1, nil
	}
	return s.removeFn(ctx, tx, groupID, userID)
}

func (s stubMemberStore) NextRecipient(ctx context.Context, q store.Getter, groupID string) (models.GroupMember, error) {
	if s.nextRecipientFn == nil {
		return models.GroupMember{}, nil
	}
	return s.nextRecipientFn(ctx, q, groupID)
}

func (s stubMemberStore) SetHasContributed(ctx context.Context, tx store.Execer, groupID, userID string, contributed bool) error {
	if s.setHasContributedFn == nil {
		return nil
	}
	return s.setHasContributedFn(ctx, tx, groupID, userID, contributed)
}

func (s stubMemberStore) ResetContributions(ctx context.Context, tx store.Execer, groupID string) error {
	if s.resetFn == nil {
		return nil
	}
	return s.resetFn(ctx, tx, groupID)
}

func (s stubMemberStore) SetLastPayout(ctx context.Context, tx store.Execer, memberID string, at time.Time) error {
	if s.setLastPayoutFn == nil {
		return nil
	}
	return s.setLastPayoutFn(ctx, tx, memberID, at)
}

type stubEscrowStore struct {
	createFn       func(ctx context.Context, tx store.Execer, groupID string) error
	getFn          func(ctx context.Context, groupID string) (models.GroupEscrow, error)
	creditFn       func(ctx context.Context, tx store.Execer, groupID string, amount int64) error
	debitFn        func(ctx context.Context, tx store.Execer, groupID string, amount int64) (int64, error)
	setLockedFn    func(ctx context.Context, tx store.Execer, groupID string, locked bool) error
	advanceCycleFn func(ctx context.Context, tx store.Execer, groupID string) error
}

func (s stubEscrowStore) Create(ctx context.Context, tx store.Execer, groupID string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, groupID)
}

func (s stubEscrowStore) Get(ctx context.Context, groupID string) (models.GroupEscrow, error) {
	if s.getFn == nil {
		return models.GroupEscrow{GroupID: groupID}, nil
	}
	return s.getFn(ctx, groupID)
}

func (s stubEscrowStore) Credit(ctx context.Context, tx store.Execer, groupID string, amount int64) error {
	if s.creditFn == nil {
		return nil
	}
	return s.creditFn(ctx, tx, groupID, amount)
}

func (s stubEscrowStore) Debit(ctx context.Context, tx store.Execer, groupID string, amount int64) (int64, error) {
	if s.debitFn == nil {
		return 1, nil
	}
	return s.debitFn(ctx, tx, groupID, amount)
}

func (s stubEscrowStore) SetLocked(ctx context.Context, tx store.Execer, groupID string, locked bool) error {
	if s.setLockedFn == nil {
		return nil
	}
	return s.setLockedFn(ctx, tx, groupID, locked)
}

func (s stubEscrowStore) AdvanceCycle(ctx context.Context, tx store.Execer, groupID string) error {
	if s.advanceCycleFn == nil {
		return nil
	}
	return s.advanceCycleFn(ctx, tx, groupID)
}

type stubReserveStore struct {
	balanceFn  func(ctx context.Context, q store.Getter) (int64, error)
	withdrawFn func(ctx context.Context, tx store.Execer, amount int64) (int64, error)
	depositFn  func(ctx context.Context, tx store.Execer, amount int64) error
}

func (s stubReserveStore) Balance(ctx context.Context, q store.Getter) (int64, error) {
	if s.balanceFn == nil {
		return 0, nil
	}
	return s.balanceFn(ctx, q)
}

func (s stubReserveStore) Withdraw(ctx context.Context, tx store.Execer, amount int64) (int64, error) {
	if s.withdrawFn == nil {
		return 1, nil
	}
	return s.withdrawFn(ctx, tx, amount)
}

func (s stubReserveStore) Deposit(ctx context.Context, tx store.Execer, amount int64) error {
	if s.depositFn == nil {
		return nil
	}
	return s.depositFn(ctx, tx, amount)
}

type stubContributionStore struct {
	createFn        func(ctx context.Context, input store.ContributionInput) error
	getFn           func(ctx context.Context, contributionID string) (models.Contribution, error)
	markCompletedFn func(ctx context.Context, tx store.Execer, contributionID string) (int64, error)
	markFailedFn    func(ctx context.Context, tx store.Execer, contributionID string) error
	sumCompletedFn  func(ctx context.Context, groupID string, cycle int) (int64, error)
}

func (s stubContributionStore) Create(ctx context.Context, input store.ContributionInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, input)
}

func (s stubContributionStore) Get(ctx context.Context, contributionID string) (models.Contribution, error) {
	if s.getFn == nil {
		return models.Contribution{ID: contributionID}, nil
	}
	return s.getFn(ctx, contributionID)
}

func (s stubContributionStore) MarkCompleted(ctx context.Context, tx store.Execer, contributionID string) (int64, error) {
	if s.markCompletedFn == nil {
		return 1, nil
	}
	return s.markCompletedFn(ctx, tx, contributionID)
}

func (s stubContributionStore) MarkFailed(ctx context.Context, tx store.Execer, contributionID string) error {
	if s.markFailedFn == nil {
		return nil
	}
	return s.markFailedFn(ctx, tx, contributionID)
}

func (s stubContributionStore) SumCompleted(ctx context.Context, groupID string, cycle int) (int64, error) {
	if s.sumCompletedFn == nil {
		return 0, nil
	}
	return s.sumCompletedFn(ctx, groupID, cycle)
}

type stubTransactionStore struct {
	createFn    func(ctx context.Context, tx store.Execer, input store.TransactionInput) error
	sumByTypeFn func(ctx context.Context, groupID string, cycle int, txType string) (int64, error)
}

func (s stubTransactionStore) Create(ctx context.Context, tx store.Execer, input store.TransactionInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubTransactionStore) SumByType(ctx context.Context, groupID string, cycle int, txType string) (int64, error) {
	if s.sumByTypeFn == nil {
		return 0, nil
	}
	return s.sumByTypeFn(ctx, groupID, cycle, txType)
}

type stubAuditStore struct {
	logFn func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

type recordingNotifier struct {
	mu            sync.Mutex
	err           error
	notifications []notify.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, notification notify.Notification) error {
	if n.err != nil {
		return n.err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
	return nil
}

func (n *recordingNotifier) sent() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Notification(nil), n.notifications...)
}

type recordingHub struct {
	mu      sync.Mutex
	updates []websocket.Update
}

func (h *recordingHub) Broadcast(userID string, update websocket.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, update)
}

func (h *recordingHub) broadcasts() []websocket.Update {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]websocket.Update(nil), h.updates...)
}

type stubLedger struct {
	adjustReserveFn func(ctx context.Context, delta int64, groupID, userID, reason string) (int64, error)
	adjustEscrowFn  func(ctx context.Context, userID string, delta int64, reason string) error
	creditGroupFn   func(ctx context.Context, actorID, groupID string, amount int64, reason string) error
}

func (s stubLedger) AdjustReserveWallet(ctx context.Context, delta int64, groupID, userID, reason string) (int64, error) {
	if s.adjustReserveFn == nil {
		return 0, nil
	}
	return s.adjustReserveFn(ctx, delta, groupID, userID, reason)
}

func (s stubLedger) AdjustEscrowBalance(ctx context.Context, userID string, delta int64, reason string) error {
	if s.adjustEscrowFn == nil {
		return nil
	}
	return s.adjustEscrowFn(ctx, userID, delta, reason)
}

func (s stubLedger) CreditGroupEscrow(ctx context.Context, actorID, groupID string, amount int64, reason string) error {
	if s.creditGroupFn == nil {
		return nil
	}
	return s.creditGroupFn(ctx, actorID, groupID, amount, reason)
}

type stubCoverage struct {
	coverFn func(ctx context.Context, groupID string, userID *string, shortfall int64, detail ShortfallDetail) (CoverageResult, error)
}

func (s stubCoverage) Cover(ctx context.Context, groupID string, userID *string, shortfall int64, detail ShortfallDetail) (CoverageResult, error) {
	if s.coverFn == nil {
		return CoverageResult{Outcome: OutcomeCovered, Shortfall: shortfall}, nil
	}
	return s.coverFn(ctx, groupID, userID, shortfall, detail)
}

type stubRecomputer struct {
	recomputeFn func(ctx context.Context, groupID string) ([]PositionChange, error)
}

func (s stubRecomputer) Recompute(ctx context.Context, groupID string) ([]PositionChange, error) {
	if s.recomputeFn == nil {
		return nil, nil
	}
	return s.recomputeFn(ctx, groupID)
}

type stubShortfallChecker struct {
	checkFn func(ctx context.Context, groupID string) (ShortfallReport, error)
}

func (s stubShortfallChecker) Check(ctx context.Context, groupID string) (ShortfallReport, error) {
	if s.checkFn == nil {
		return ShortfallReport{GroupID: groupID}, nil
	}
	return s.checkFn(ctx, groupID)
}
