package jobs

import (
	"context"
	"fmt"
	"time"

	"anoa.com/loyaltyledger/pkg/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Scheduler struct {
	cron    *cron.Cron
	jobs    []Job
	timeout time.Duration
}

// NewScheduler evaluates cron expressions in loc. Each run gets timeout to finish.
func NewScheduler(loc *time.Location, timeout time.Duration) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		timeout: timeout,
	}
}

// Register adds job and schedules it when it has a cron expression.
func (s *Scheduler) Register(job Job) error {
	s.jobs = append(s.jobs, job)

	expr := job.Schedule()
	if expr == "" {
		logger.L.Info("job registered on demand", zap.String("job", job.Name()))
		return nil
	}

	if _, err := s.cron.AddFunc(expr, func() { s.run(context.Background(), job) }); err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name(), err)
	}
	logger.L.Info("job scheduled", zap.String("job", job.Name()), zap.String("schedule", expr))
	return nil
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := job.Execute(ctx); err != nil {
		logger.L.Error("job failed", zap.String("job", job.Name()), zap.Error(err))
		return
	}
	logger.L.Info("job finished", zap.String("job", job.Name()), zap.Duration("took", time.Since(start)))
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.L.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.L.Info("scheduler stopped")
}

// RunByName executes a registered job immediately.
func (s *Scheduler) RunByName(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name() == name {
			return job.Execute(ctx)
		}
	}
	return fmt.Errorf("job %q not registered", name)
}

func (s *Scheduler) Names() []string {
	names := make([]string, len(s.jobs))
	for i, job := range s.jobs {
		names[i] = job.Name()
	}
	return names
}
