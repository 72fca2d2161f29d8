// Package schedule runs a job on a cron expression.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Validate reports whether spec is a usable five-field cron expression or
// descriptor such as "@hourly".
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Scheduler runs one job on a cron schedule. A tick that arrives while the
// previous job is still running is skipped.
type Scheduler struct {
	spec   string
	loc    *time.Location
	logger *slog.Logger
}

// New creates a scheduler for spec, evaluated in loc (local time when nil).
func New(spec string, loc *time.Location, logger *slog.Logger) (*Scheduler, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{spec: spec, loc: loc, logger: logger.With("component", "schedule")}, nil
}

// Next returns the first activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	sched, _ := cron.ParseStandard(s.spec)
	return sched.Next(t.In(s.loc))
}

// Run calls job on every activation until ctx is cancelled, then waits
// for a running job to return.
func (s *Scheduler) Run(ctx context.Context, job func(context.Context)) error {
	l := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	if _, err := c.AddFunc(s.spec, func() { job(ctx) }); err != nil {
		return fmt.Errorf("adding job: %w", err)
	}

	s.logger.Info("scheduler started", "schedule", s.spec, "next", s.Next(time.Now()))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// cronLogger adapts slog to the cron library's logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
