// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/subscriptions"
)

// UserLister yields the users that have expenses, with their row counts.
type UserLister interface {
	CountByUser(ctx context.Context) (map[string]int64, error)
}

// Detector runs one subscription sweep for a user.
type Detector interface {
	Detect(ctx context.Context, userID string, opts subscriptions.Options) (*subscriptions.Report, error)
}

// Scheduler manages background scheduled jobs.
type Scheduler struct {
	cron     *cron.Cron
	users    UserLister
	detector Detector
	logger   *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(users UserLister, detector Detector, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:     c,
		users:    users,
		detector: detector,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	// Subscription sweep: runs daily at 3:00 AM
	_, err := s.cron.AddFunc("0 3 * * *", s.sweepSubscriptions)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the subscription sweep (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.sweepSubscriptions()
}

// sweepSubscriptions detects recurring payments for every known user and
// logs the result. The sweep is purely observational; reports stay derived
// and are recomputed on demand by the API.
func (s *Scheduler) sweepSubscriptions() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	s.logger.Info("starting nightly subscription sweep")

	counts, err := s.users.CountByUser(ctx)
	if err != nil {
		s.logger.Error("failed to list users", slog.Any("error", err))
		return
	}

	swept := 0
	failed := 0
	for userID := range counts {
		report, err := s.detector.Detect(ctx, userID, subscriptions.Options{})
		if err != nil {
			s.logger.Warn("subscription sweep failed",
				slog.String("user_id", userID),
				slog.Any("error", err),
			)
			failed++
			continue
		}
		swept++
		s.logger.Info("subscription sweep result",
			slog.String("user_id", userID),
			slog.Int("detected", len(report.Subscriptions)),
			slog.String("monthly_commitment", report.MonthlyCommitment.String()),
		)
	}

	s.logger.Info("nightly subscription sweep complete",
		slog.Int("users", swept),
		slog.Int("failures", failed),
	)
}
