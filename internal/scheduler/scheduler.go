package scheduler

import (
	"context"
	"time"

	"book-rental-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

// BillingScheduler drives periodic billing runs in-process. Runs are safe to
// trigger from several replicas at once: the service layer holds a Redis run
// lease and row locks make double-charging impossible either way.
type BillingScheduler struct {
	billing  ports.BillingService
	interval time.Duration
	log      zerolog.Logger
}

// NewBillingScheduler creates a scheduler ticking at the given interval.
func NewBillingScheduler(billing ports.BillingService, interval time.Duration, log zerolog.Logger) *BillingScheduler {
	return &BillingScheduler{
		billing:  billing,
		interval: interval,
		log:      log,
	}
}

// Run blocks until ctx is cancelled. The first run fires immediately so
// charges that came due while the process was down are not delayed by a
// full interval.
func (s *BillingScheduler) Run(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("billing scheduler started")

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("billing scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *BillingScheduler) runOnce(ctx context.Context) {
	report, err := s.billing.ProcessDueContracts(ctx)
	if err != nil {
		// The next tick retries; due contracts stay due until charged.
		s.log.Error().Err(err).Msg("billing run failed")
		return
	}

	s.log.Info().
		Int("selected", report.Selected).
		Int("charged", report.Charged).
		Int("force_closed", report.ForceClosed).
		Int("insufficient_funds", report.InsufficientFunds).
		Int("skipped_unavailable", report.SkippedUnavailable).
		Int("failed", report.Failed).
		Msg("billing run complete")
}
