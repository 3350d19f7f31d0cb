package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Task is a periodic unit of work. Errors are logged; the job keeps its schedule.
type Task func(ctx context.Context) error

// Scheduler runs named periodic tasks.
type Scheduler struct {
	inner   gocron.Scheduler
	logger  *zap.Logger
	timeout time.Duration
}

// New creates a stopped scheduler. Each run gets timeout as its deadline (default one minute).
func New(logger *zap.Logger, timeout time.Duration) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	inner, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}
	return &Scheduler{inner: inner, logger: logger, timeout: timeout}, nil
}

// Every registers task to run every interval. Overlapping runs are skipped and rescheduled.
func (s *Scheduler) Every(name string, interval time.Duration, task Task) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	_, err := s.inner.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.run, name, task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}
	s.logger.Info("scheduled job registered", zap.String("job", name), zap.Duration("interval", interval))
	return nil
}

func (s *Scheduler) run(name string, task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := task(ctx); err != nil {
		s.logger.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
		return
	}
	s.logger.Debug("scheduled job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.inner.Jobs())
}

// Start begins running registered jobs.
func (s *Scheduler) Start() {
	s.inner.Start()
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	return s.inner.Shutdown()
}
