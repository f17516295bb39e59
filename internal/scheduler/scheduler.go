// Package scheduler drives periodic scan passes from a cron expression.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/relayhq/relay-core/internal/automation"
)

// Logger defines the logging interface used by the scheduler.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ScanRunner is the engine surface the scheduler invokes. Satisfied by
// automation.Engine.
type ScanRunner interface {
	RunScan(ctx context.Context) (automation.ScanSummary, error)
}

// Scheduler runs the engine on a fixed cron schedule.
//
// An overlapping pass is skipped rather than stacked: if a scan is
// still running when the next tick fires, the tick is dropped. The
// skipped entities are simply picked up by the following pass.
type Scheduler struct {
	cron     *cron.Cron
	runner   ScanRunner
	schedule string
	logger   Logger
}

// New creates a scheduler for the given cron expression.
//
// Parameters:
//   - runner: Engine invoked once per tick
//   - schedule: Standard five-field cron expression (descriptors such
//     as @hourly and @every are also accepted)
func New(runner ScanRunner, schedule string) *Scheduler {
	return &Scheduler{
		runner:   runner,
		schedule: schedule,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// Start validates the schedule and begins ticking.
//
// The provided context bounds every scan pass the scheduler launches;
// cancel it (or call Stop) during shutdown.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	_, err := s.cron.AddFunc(s.schedule, func() {
		summary, runErr := s.runner.RunScan(ctx)
		if runErr != nil {
			s.logger.Error("scheduled scan failed", "error", runErr)
			return
		}
		s.logger.Info("scheduled scan complete",
			"triggers_found", summary.TriggersFound,
			"successes", summary.Successes,
			"failures", summary.Failures,
		)
	})
	if err != nil {
		return fmt.Errorf("invalid scan schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.schedule)
	return nil
}

// Stop halts ticking and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}
