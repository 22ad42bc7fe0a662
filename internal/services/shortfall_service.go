package services

import (
	"context"

	"payfesa/internal/metrics"
	"payfesa/internal/models"

	"github.com/sirupsen/logrus"
)

// ShortfallReport is the detector's answer for one group and cycle.
type ShortfallReport struct {
	GroupID      string `json:"group_id"`
	Cycle        int    `json:"cycle"`
	Expected     int64  `json:"expected"`
	Contributed  int64  `json:"contributed"`
	Covered      int64  `json:"covered"`
	Shortfall    int64  `json:"shortfall"`
	EscrowLocked bool   `json:"escrow_locked"`
}

// SweepResult is one group's slice of a sweep run.
type SweepResult struct {
	GroupID  string          `json:"group_id"`
	Report   ShortfallReport `json:"report"`
	Coverage *CoverageResult `json:"coverage,omitempty"`
	Skipped  string          `json:"skipped,omitempty"`
	Err      string          `json:"error,omitempty"`
}

type CoverageEngine interface {
	Cover(ctx context.Context, groupID string, userID *string, shortfall int64, detail ShortfallDetail) (CoverageResult, error)
}

// ShortfallService compares what a cycle should have collected against what
// it actually collected. Sums are scoped to the group's current cycle, and
// reserve coverage already granted counts as collected, so a topped-up cycle
// reports zero and is never covered twice.
type ShortfallService struct {
	groups        GroupStore
	contributions ContributionStore
	transactions  TransactionStore
	escrows       EscrowStore
	coverage      CoverageEngine
	log           *logrus.Logger
}

func NewShortfallService(groups GroupStore, contributions ContributionStore, transactions TransactionStore, escrows EscrowStore, coverage CoverageEngine, log *logrus.Logger) *ShortfallService {
	return &ShortfallService{
		groups:        groups,
		contributions: contributions,
		transactions:  transactions,
		escrows:       escrows,
		coverage:      coverage,
		log:           log,
	}
}

// Check computes the shortfall for one group without taking any action.
// This is the point-mode entry used when a payout is requested.
func (s *ShortfallService) Check(ctx context.Context, groupID string) (ShortfallReport, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return ShortfallReport{}, err
	}
	return s.check(ctx, group)
}

func (s *ShortfallService) check(ctx context.Context, group models.Group) (ShortfallReport, error) {
	escrow, err := s.escrows.Get(ctx, group.ID)
	if err != nil {
		return ShortfallReport{}, err
	}
	contributed, err := s.contributions.SumCompleted(ctx, group.ID, group.CurrentCycle)
	if err != nil {
		return ShortfallReport{}, err
	}
	covered, err := s.transactions.SumByType(ctx, group.ID, group.CurrentCycle, models.TxTypeReserveCoverage)
	if err != nil {
		return ShortfallReport{}, err
	}
	expected := group.ContributionAmount * int64(group.CurrentMembers)
	shortfall := expected - contributed - covered
	if shortfall < 0 {
		shortfall = 0
	}
	return ShortfallReport{
		GroupID:      group.ID,
		Cycle:        group.CurrentCycle,
		Expected:     expected,
		Contributed:  contributed,
		Covered:      covered,
		Shortfall:    shortfall,
		EscrowLocked: escrow.Locked,
	}, nil
}

// Sweep runs the detector over all active groups (or one, when groupID is
// set) and hands every positive shortfall to the coverage engine. A single
// group's failure is recorded and the sweep moves on.
func (s *ShortfallService) Sweep(ctx context.Context, groupID string) ([]SweepResult, error) {
	var groups []models.Group
	if groupID != "" {
		group, err := s.groups.GetByID(ctx, groupID)
		if err != nil {
			return nil, err
		}
		groups = []models.Group{group}
	} else {
		active, err := s.groups.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		groups = active
	}

	results := make([]SweepResult, 0, len(groups))
	for _, group := range groups {
		result := SweepResult{GroupID: group.ID}
		if group.Status != models.GroupStatusActive {
			result.Skipped = "group not active"
			results = append(results, result)
			continue
		}
		report, err := s.check(ctx, group)
		if err != nil {
			result.Err = err.Error()
			s.log.WithError(err).WithField("group_id", group.ID).Error("shortfall check failed")
			results = append(results, result)
			continue
		}
		result.Report = report
		if report.EscrowLocked {
			result.Skipped = "escrow locked pending reconciliation"
			results = append(results, result)
			continue
		}
		if report.Shortfall == 0 {
			results = append(results, result)
			continue
		}
		metrics.ShortfallsDetected.Inc()
		s.log.WithFields(logrus.Fields{
			"group_id":    group.ID,
			"cycle":       report.Cycle,
			"expected":    report.Expected,
			"contributed": report.Contributed,
			"shortfall":   report.Shortfall,
		}).Info("contribution shortfall detected")
		coverage, err := s.coverage.Cover(ctx, group.ID, nil, report.Shortfall, ShortfallDetail{
			Expected:    report.Expected,
			Contributed: report.Contributed,
			Cycle:       report.Cycle,
		})
		if err != nil {
			result.Err = err.Error()
			s.log.WithError(err).WithField("group_id", group.ID).Error("reserve coverage failed")
			results = append(results, result)
			continue
		}
		result.Coverage = &coverage
		results = append(results, result)
	}
	return results, nil
}
