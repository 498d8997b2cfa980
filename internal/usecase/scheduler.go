package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"newsbrief/internal/domain"
	"newsbrief/internal/ports"
)

// Scheduler wires the daily driver with the briefing pipeline: on each
// trigger it briefs every stored profile that has topics configured.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	store    ports.PreferenceStore
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring daily briefs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, store ports.PreferenceStore, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, store: store, logger: logger}
}

// Start registers the daily job with the provided driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil || s.store == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.runAll(ctx, trigger)
	}
	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}

// runAll briefs profiles sequentially; one user's failure never blocks the
// next, and each run carries its own request ID.
func (s *Scheduler) runAll(ctx context.Context, trigger time.Time) {
	profiles, err := s.store.Profiles(ctx)
	if err != nil {
		s.logger.Error("cannot list profiles for daily briefs", "error", err)
		return
	}
	s.logger.Info("daily briefs starting", "profiles", len(profiles), "trigger", trigger)

	for _, profile := range profiles {
		if len(profile.Topics) == 0 {
			continue
		}
		req := domain.BriefingRequest{
			ID:     uuid.NewString(),
			UserID: profile.UserID,
			Topics: profile.Topics,
		}
		outcome := s.pipeline.Run(ctx, req, profile)
		if outcome.Status == domain.StatusFailed {
			s.logger.Warn("daily brief failed", "user", profile.UserID, "error", outcome.Err)
		}
	}
}
