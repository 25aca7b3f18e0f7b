// Package sched provides a small cron-based task scheduler.
//
// Specs follow the standard cron format with a seconds field (6 fields).
// Every task run is logged with its duration; a failing task never stops
// the schedule.
package sched

import (
	"context"
	"time"

	"github.com/realmorph/datakit/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TaskFunc is the body of a scheduled task.
type TaskFunc func(ctx context.Context) error

// Scheduler runs named tasks on cron schedules.
type Scheduler interface {
	// Add registers a task under the given cron spec.
	// Example spec: "0 */5 * * * *" (every five minutes).
	Add(name, spec string, fn TaskFunc) error

	// Start begins the scheduler
	Start()

	// Close stops the scheduler and waits for running tasks to complete
	Close()
}

type cronScheduler struct {
	cron   *cron.Cron
	logger logger.Logger
}

// New creates a Scheduler with the given logger.
func New(log logger.Logger) Scheduler {
	return &cronScheduler{
		cron:   cron.New(cron.WithSeconds()),
		logger: log,
	}
}

func (s *cronScheduler) Add(name, spec string, fn TaskFunc) error {
	if fn == nil {
		return ErrNilTask(name)
	}

	job := func() {
		start := time.Now()
		s.logger.Debug("task started", zap.String("task", name))

		if err := fn(context.Background()); err != nil {
			s.logger.Error("task failed",
				zap.String("task", name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		s.logger.Debug("task completed",
			zap.String("task", name),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	if _, err := s.cron.AddFunc(spec, job); err != nil {
		return ErrInvalidSpec(name, spec, err)
	}
	return nil
}

func (s *cronScheduler) Start() {
	s.cron.Start()
}

func (s *cronScheduler) Close() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
