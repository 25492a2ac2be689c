package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"volume/internal/metrics"
)

const defaultTimeout = 5 * time.Minute

// Job is a unit of periodic work. Run is called once at start and then
// every Interval; each call gets its own Timeout.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	jobs   []Job
	logger *slog.Logger
}

func NewScheduler(logger *slog.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:   jobs,
		logger: logger.With("component", "scheduler"),
	}
}

// Start runs every job on its own ticker until ctx is cancelled. A failed
// run is logged and retried at the next tick.
func (s *Scheduler) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		g.Go(func() error {
			return s.loop(ctx, job)
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) error {
	logger := s.logger.With("job", job.Name)
	logger.Info("job scheduled", "interval", job.Interval)

	s.runJob(ctx, job, logger)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("job stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runJob(ctx, job, logger)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job, logger *slog.Logger) {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	if err := job.Run(runCtx); err != nil {
		metrics.RecordJobRun(job.Name, "error", time.Since(started).Seconds())
		logger.Error("job failed", "error", err)
		return
	}
	metrics.RecordJobRun(job.Name, "ok", time.Since(started).Seconds())
}
