package watch

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Scheduler wraps a gocron scheduler running the periodic rebuild.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// NewScheduler creates a stopped scheduler.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryWatch, "create rebuild scheduler").Build()
	}
	return &Scheduler{scheduler: s}, nil
}

// SchedulePeriodicRebuild runs trigger every interval. Overlapping runs are
// skipped. Returns the job ID.
func (s *Scheduler) SchedulePeriodicRebuild(interval time.Duration, trigger func()) (string, error) {
	if interval <= 0 {
		return "", ferrors.WatchError("rebuild interval must be positive").WithContext("interval", interval.String()).Build()
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(trigger),
		gocron.WithName("periodic-rebuild"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryWatch, "schedule periodic rebuild").Build()
	}
	return job.ID().String(), nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Debug("Starting scheduler")
	s.scheduler.Start()
}

// Stop shuts down the scheduler and waits for running jobs.
func (s *Scheduler) Stop() error {
	slog.Debug("Stopping scheduler")
	return s.scheduler.Shutdown()
}
