package handlers

import (
	"context"
	"io"
	"time"

	"payfesa/internal/config"
	"payfesa/internal/models"
	"payfesa/internal/services"
	"payfesa/internal/store"
	"payfesa/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn     func(ctx context.Context, tx store.Execer, id, phone, username, pinHash string) error
	getByPhoneFn func(ctx context.Context, phone string) (models.User, error)
	getByIDFn    func(ctx context.Context, userID string) (models.User, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, id, phone, username, pinHash string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, phone, username, pinHash)
}

func (s stubUserStore) GetByPhone(ctx context.Context, phone string) (models.User, error) {
	if s.getByPhoneFn == nil {
		return models.User{}, nil
	}
	return s.getByPhoneFn(ctx, phone)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{ID: userID}, nil
	}
	return s.getByIDFn(ctx, userID)
}

type stubGroupStore struct {
	getByIDFn       func(ctx context.Context, groupID string) (models.Group, error)
	listFn          func(ctx context.Context, status string, limit, offset int) ([]models.Group, error)
	listByMemberFn  func(ctx context.Context, userID string) ([]models.Group, error)
	updateStatusFn  func(ctx context.Context, tx store.Execer, groupID, status string) error
	countByStatusFn func(ctx context.Context) (map[string]int, error)
}

func (s stubGroupStore) GetByID(ctx context.Context, groupID string) (models.Group, error) {
	if s.getByIDFn == nil {
		return models.Group{ID: groupID}, nil
	}
	return s.getByIDFn(ctx, groupID)
}

func (s stubGroupStore) List(ctx context.Context, status string, limit, offset int) ([]models.Group, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, status, limit, offset)
}

func (s stubGroupStore) ListByMember(ctx context.Context, userID string) ([]models.Group, error) {
	if s.listByMemberFn == nil {
		return nil, nil
	}
	return s.listByMemberFn(ctx, userID)
}

func (s stubGroupStore) UpdateStatus(ctx context.Context, tx store.Execer, groupID, status string) error {
	if s.updateStatusFn == nil {
		return nil
	}
	return s.updateStatusFn(ctx, tx, groupID, status)
}

func (s stubGroupStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	if s.countByStatusFn == nil {
		return nil, nil
	}
	return s.countByStatusFn(ctx)
}

type stubMemberStore struct {
	getFn         func(ctx context.Context, groupID, userID string) (models.GroupMember, error)
	listByGroupFn func(ctx context.Context, groupID string) ([]store.MemberRank, error)
}

func (s stubMemberStore) Get(ctx context.Context, groupID, userID string) (models.GroupMember, error) {
	if s.getFn == nil {
		return models.GroupMember{}, nil
	}
	return s.getFn(ctx, groupID, userID)
}

func (s stubMemberStore) ListByGroup(ctx context.Context, groupID string) ([]store.MemberRank, error) {
	if s.listByGroupFn == nil {
		return nil, nil
	}
	return s.listByGroupFn(ctx, groupID)
}

type stubEscrowStore struct {
	getFn       func(ctx context.Context, groupID string) (models.GroupEscrow, error)
	setLockedFn func(ctx context.Context, tx store.Execer, groupID string, locked bool) error
}

func (s stubEscrowStore) Get(ctx context.Context, groupID string) (models.GroupEscrow, error) {
	if s.getFn == nil {
		return models.GroupEscrow{GroupID: groupID}, nil
	}
	return s.getFn(ctx, groupID)
}

func (s stubEscrowStore) SetLocked(ctx context.Context, tx store.Execer, groupID string, locked bool) error {
	if s.setLockedFn == nil {
		return nil
	}
	return s.setLockedFn(ctx, tx, groupID, locked)
}

type stubReserveStore struct {
	getFn func(ctx context.Context) (models.ReserveWallet, error)
}

func (s stubReserveStore) Get(ctx context.Context) (models.ReserveWallet, error) {
	if s.getFn == nil {
		return models.ReserveWallet{ID: 1}, nil
	}
	return s.getFn(ctx)
}

type stubContributionStore struct {
	listByGroupFn func(ctx context.Context, groupID string, cycle int) ([]models.Contribution, error)
}

func (s stubContributionStore) ListByGroup(ctx context.Context, groupID string, cycle int) ([]models.Contribution, error) {
	if s.listByGroupFn == nil {
		return nil, nil
	}
	return s.listByGroupFn(ctx, groupID, cycle)
}

type stubTransactionStore struct {
	createFn       func(ctx context.Context, tx store.Execer, input store.TransactionInput) error
	listByUserFn   func(ctx context.Context, userID string, limit, offset int) ([]map[string]any, error)
	listByGroupFn  func(ctx context.Context, groupID string, limit, offset int) ([]map[string]any, error)
	sumAllByTypeFn func(ctx context.Context, txType string) (int64, error)
}

func (s stubTransactionStore) Create(ctx context.Context, tx store.Execer, input store.TransactionInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubTransactionStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]map[string]any, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, limit, offset)
}

func (s stubTransactionStore) ListByGroup(ctx context.Context, groupID string, limit, offset int) ([]map[string]any, error) {
	if s.listByGroupFn == nil {
		return nil, nil
	}
	return s.listByGroupFn(ctx, groupID, limit, offset)
}

func (s stubTransactionStore) SumAllByType(ctx context.Context, txType string) (int64, error) {
	if s.sumAllByTypeFn == nil {
		return 0, nil
	}
	return s.sumAllByTypeFn(ctx, txType)
}

type stubAdminStore struct {
	isAdminFn     func(ctx context.Context, userID string) (bool, bool, error)
	createAdminFn func(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	hasAnyAdminFn func(ctx context.Context) (bool, error)
}

func (s stubAdminStore) IsAdmin(ctx context.Context, userID string) (bool, bool, error) {
	if s.isAdminFn == nil {
		return false, false, nil
	}
	return s.isAdminFn(ctx, userID)
}

func (s stubAdminStore) CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error {
	if s.createAdminFn == nil {
		return nil
	}
	return s.createAdminFn(ctx, tx, userID, isSuper, createdBy)
}

func (s stubAdminStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	if s.hasAnyAdminFn == nil {
		return true, nil
	}
	return s.hasAnyAdminFn(ctx)
}

type stubAuditStore struct {
	logFn  func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	listFn func(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubGroupService struct {
	createFn func(ctx context.Context, req services.CreateGroupRequest) (string, error)
	joinFn   func(ctx context.Context, groupID, userID string) error
	leaveFn  func(ctx context.Context, groupID, userID string) error
}

func (s stubGroupService) CreateGroup(ctx context.Context, req services.CreateGroupRequest) (string, error) {
	if s.createFn == nil {
		return "group-1", nil
	}
	return s.createFn(ctx, req)
}

func (s stubGroupService) Join(ctx context.Context, groupID, userID string) error {
	if s.joinFn == nil {
		return nil
	}
	return s.joinFn(ctx, groupID, userID)
}

func (s stubGroupService) Leave(ctx context.Context, groupID, userID string) error {
	if s.leaveFn == nil {
		return nil
	}
	return s.leaveFn(ctx, groupID, userID)
}

type stubContributionService struct {
	contributeFn func(ctx context.Context, groupID, userID string, amount int64) (string, error)
	completeFn   func(ctx context.Context, contributionID, userID string) error
}

func (s stubContributionService) Contribute(ctx context.Context, groupID, userID string, amount int64) (string, error) {
	if s.contributeFn == nil {
		return "contribution-1", nil
	}
	return s.contributeFn(ctx, groupID, userID, amount)
}

func (s stubContributionService) Complete(ctx context.Context, contributionID, userID string) error {
	if s.completeFn == nil {
		return nil
	}
	return s.completeFn(ctx, contributionID, userID)
}

type stubPayoutService struct {
	requestFn func(ctx context.Context, groupID, callerID string) (services.PayoutResult, error)
}

func (s stubPayoutService) RequestPayout(ctx context.Context, groupID, callerID string) (services.PayoutResult, error) {
	if s.requestFn == nil {
		return services.PayoutResult{Covered: true}, nil
	}
	return s.requestFn(ctx, groupID, callerID)
}

type stubShortfallService struct {
	checkFn func(ctx context.Context, groupID string) (services.ShortfallReport, error)
	sweepFn func(ctx context.Context, groupID string) ([]services.SweepResult, error)
}

func (s stubShortfallService) Check(ctx context.Context, groupID string) (services.ShortfallReport, error) {
	if s.checkFn == nil {
		return services.ShortfallReport{GroupID: groupID}, nil
	}
	return s.checkFn(ctx, groupID)
}

func (s stubShortfallService) Sweep(ctx context.Context, groupID string) ([]services.SweepResult, error) {
	if s.sweepFn == nil {
		return nil, nil
	}
	return s.sweepFn(ctx, groupID)
}

type stubRankingService struct {
	recomputeFn func(ctx context.Context, groupID string) ([]services.PositionChange, error)
	forUserFn   func(ctx context.Context, userID string) error
	allActiveFn func(ctx context.Context) error
}

func (s stubRankingService) Recompute(ctx context.Context, groupID string) ([]services.PositionChange, error) {
	if s.recomputeFn == nil {
		return nil, nil
	}
	return s.recomputeFn(ctx, groupID)
}

func (s stubRankingService) RecomputeForUser(ctx context.Context, userID string) error {
	if s.forUserFn == nil {
		return nil
	}
	return s.forUserFn(ctx, userID)
}

func (s stubRankingService) RecomputeAllActive(ctx context.Context) error {
	if s.allActiveFn == nil {
		return nil
	}
	return s.allActiveFn(ctx)
}

type stubLedgerService struct {
	adjustReserveFn func(ctx context.Context, delta int64, groupID, userID, reason string) (int64, error)
}

func (s stubLedgerService) AdjustReserveWallet(ctx context.Context, delta int64, groupID, userID, reason string) (int64, error) {
	if s.adjustReserveFn == nil {
		return delta, nil
	}
	return s.adjustReserveFn(ctx, delta, groupID, userID, reason)
}

type testDeps struct {
	txRunner      fakeTxRunner
	users         UserStore
	groups        GroupStore
	members       MemberStore
	escrows       EscrowStore
	reserve       ReserveStore
	contributions ContributionStore
	transactions  TransactionStore
	admin         AdminStore
	audit         AuditStore
	groupSvc      GroupService
	contribSvc    ContributionService
	payoutSvc     PayoutService
	shortfallSvc  ShortfallService
	rankingSvc    RankingService
	ledger        LedgerService
}

func newTestHandler(d testDeps) *Handler {
	if d.users == nil {
		d.users = stubUserStore{}
	}
	if d.groups == nil {
		d.groups = stubGroupStore{}
	}
	if d.members == nil {
		d.members = stubMemberStore{}
	}
	if d.escrows == nil {
		d.escrows = stubEscrowStore{}
	}
	if d.reserve == nil {
		d.reserve = stubReserveStore{}
	}
	if d.contributions == nil {
		d.contributions = stubContributionStore{}
	}
	if d.transactions == nil {
		d.transactions = stubTransactionStore{}
	}
	if d.admin == nil {
		d.admin = stubAdminStore{}
	}
	if d.audit == nil {
		d.audit = stubAuditStore{}
	}
	if d.groupSvc == nil {
		d.groupSvc = stubGroupService{}
	}
	if d.contribSvc == nil {
		d.contribSvc = stubContributionService{}
	}
	if d.payoutSvc == nil {
		d.payoutSvc = stubPayoutService{}
	}
	if d.shortfallSvc == nil {
		d.shortfallSvc = stubShortfallService{}
	}
	if d.rankingSvc == nil {
		d.rankingSvc = stubRankingService{}
	}
	if d.ledger == nil {
		d.ledger = stubLedgerService{}
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := config.Config{
		JWTSecret:      "test-secret",
		TokenTTL:       time.Hour,
		AllowedOrigins: "*",
	}
	return New(d.txRunner, cfg, d.users, d.groups, d.members, d.escrows, d.reserve, d.contributions, d.transactions, d.admin, d.audit, d.groupSvc, d.contribSvc, d.payoutSvc, d.shortfallSvc, d.rankingSvc, d.ledger, websocket.NewHub(), log)
}
