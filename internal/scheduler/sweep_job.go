package scheduler

import (
	"context"
	"time"

	"payfesa/internal/services"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type ShortfallSweeper interface {
	Sweep(ctx context.Context, groupID string) ([]services.SweepResult, error)
}

// SweepScheduler runs the shortfall detector over all active groups on a
// cron cadence, so late contributions are reconciled against the reserve
// even when nobody requests a payout.
type SweepScheduler struct {
	cron      *cron.Cron
	shortfall ShortfallSweeper
	log       *logrus.Logger
	spec      string
}

func NewSweepScheduler(shortfall ShortfallSweeper, spec string, log *logrus.Logger) *SweepScheduler {
	return &SweepScheduler{
		cron:      cron.New(),
		shortfall: shortfall,
		log:       log,
		spec:      spec,
	}
}

func (s *SweepScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.run); err != nil {
		return err
	}
	s.cron.Start()
	s.log.WithField("spec", s.spec).Info("shortfall sweep scheduler started")
	return nil
}

func (s *SweepScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("shortfall sweep scheduler stopped")
}

func (s *SweepScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	started := time.Now()
	results, err := s.shortfall.Sweep(ctx, "")
	if err != nil {
		s.log.WithError(err).Error("shortfall sweep failed")
		return
	}
	var covered, short, failed int
	for _, result := range results {
		if result.Err != "" {
			failed++
			continue
		}
		if result.Report.Shortfall > 0 {
			short++
		}
		if result.Coverage != nil && result.Coverage.Covered() {
			covered++
		}
	}
	s.log.WithFields(logrus.Fields{
		"groups":   len(results),
		"short":    short,
		"covered":  covered,
		"failed":   failed,
		"duration": time.Since(started).String(),
	}).Info("shortfall sweep completed")
}
