// Package janitor periodically removes build workspaces left behind by child
// processes that died before cleaning up after themselves.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/sitedeploy/internal/config"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
	"git.home.luguber.info/inful/sitedeploy/internal/metrics"
)

// Sweeper removes workspaces older than maxAge.
type Sweeper interface {
	Sweep(maxAge time.Duration) ([]string, error)
}

// Janitor wraps a gocron scheduler running one sweep job.
type Janitor struct {
	scheduler gocron.Scheduler
	sweeper   Sweeper
	maxAge    time.Duration
	recorder  metrics.Recorder
	logger    *slog.Logger
	jobID     string
}

// New schedules a sweep every cfg.Interval. The scheduler is not started
// until Start.
func New(cfg config.JanitorConfig, sweeper Sweeper, recorder metrics.Recorder, logger *slog.Logger) (*Janitor, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("janitor interval must be positive, got %s", cfg.Interval)
	}
	if cfg.MaxAge <= 0 {
		return nil, fmt.Errorf("janitor max age must be positive, got %s", cfg.MaxAge)
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	j := &Janitor{scheduler: s, sweeper: sweeper, maxAge: cfg.MaxAge, recorder: recorder, logger: logger}

	job, err := s.NewJob(
		gocron.DurationJob(cfg.Interval),
		gocron.NewTask(func() { j.SweepOnce() }),
		gocron.WithName("workspace-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create sweep job: %w", err)
	}
	j.jobID = job.ID().String()
	return j, nil
}

// Start begins the scheduler.
func (j *Janitor) Start() {
	j.logger.Info("Starting workspace janitor", slog.Duration("max_age", j.maxAge), slog.String("job_id", j.jobID))
	j.scheduler.Start()
}

// Stop waits for a running sweep and shuts the scheduler down.
func (j *Janitor) Stop(context.Context) error {
	j.logger.Info("Stopping workspace janitor")
	return j.scheduler.Shutdown()
}

// SweepOnce runs one sweep and returns how many workspaces were removed.
func (j *Janitor) SweepOnce() int {
	removed, err := j.sweeper.Sweep(j.maxAge)
	if err != nil {
		j.logger.Warn("Workspace sweep failed", logfields.Error(err))
		return 0
	}
	for _, dir := range removed {
		j.logger.Info("Removed stale workspace", logfields.Path(dir))
	}
	if len(removed) > 0 {
		j.recorder.IncWorkspacesSwept(len(removed))
	}
	return len(removed)
}
