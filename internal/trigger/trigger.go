// Package trigger drives the notification scheduler from a cron schedule and
// runs housekeeping jobs next to it. All scheduled work is driven from Go
// since the API is already a persistent, long-running service.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/albapepper/freshtrack/internal/notifications"
)

// Runner is the scheduler entry point the trigger invokes.
type Runner interface {
	Run(ctx context.Context, source notifications.Source) (*notifications.RunSummary, error)
}

// Config controls the job schedules. An empty CleanupSpec disables cleanup.
type Config struct {
	NotifySpec  string // standard 5-field cron expression
	CleanupSpec string
	Location    *time.Location
}

// Trigger owns the cron instance. Start blocks; RunNow and Next may be called
// from any goroutine at any time.
type Trigger struct {
	runner  Runner
	pruner  notifications.Pruner
	cfg     Config
	notify  cron.Schedule
	cleanup cron.Schedule
	logger  *slog.Logger
}

// New validates the schedules. pruner may be nil to skip the cleanup job.
func New(runner Runner, pruner notifications.Pruner, cfg Config, logger *slog.Logger) (*Trigger, error) {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	notify, err := cron.ParseStandard(cfg.NotifySpec)
	if err != nil {
		return nil, fmt.Errorf("parse notify schedule %q: %w", cfg.NotifySpec, err)
	}
	t := &Trigger{
		runner: runner,
		pruner: pruner,
		cfg:    cfg,
		notify: notify,
		logger: logger,
	}
	if cfg.CleanupSpec != "" && pruner != nil {
		if t.cleanup, err = cron.ParseStandard(cfg.CleanupSpec); err != nil {
			return nil, fmt.Errorf("parse cleanup schedule %q: %w", cfg.CleanupSpec, err)
		}
	}
	return t, nil
}

// Start runs the cron loop until ctx is cancelled, then waits for running
// jobs to return. Intended to be called with `go`.
func (t *Trigger) Start(ctx context.Context) {
	cl := cronLogger{t.logger}
	c := cron.New(
		cron.WithLocation(t.cfg.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	c.Schedule(t.notify, cron.FuncJob(func() { t.scheduledRun(ctx) }))
	if t.cleanup != nil {
		c.Schedule(t.cleanup, cron.FuncJob(func() { t.purge(ctx) }))
	}

	c.Start()
	t.logger.Info("Trigger started",
		"notify", t.cfg.NotifySpec,
		"cleanup", t.cfg.CleanupSpec,
		"zone", t.cfg.Location.String(),
		"next_run", t.Next(time.Now()))

	<-ctx.Done()
	<-c.Stop().Done()
	t.logger.Info("Trigger stopped")
}

// RunNow performs a manual run synchronously.
func (t *Trigger) RunNow(ctx context.Context) (*notifications.RunSummary, error) {
	return t.runner.Run(ctx, notifications.SourceManual)
}

// Next returns the first scheduled run strictly after now.
func (t *Trigger) Next(now time.Time) time.Time {
	return t.notify.Next(now.In(t.cfg.Location))
}

// Spec returns the notify cron expression.
func (t *Trigger) Spec() string { return t.cfg.NotifySpec }

// Location returns the zone schedules are evaluated in.
func (t *Trigger) Location() *time.Location { return t.cfg.Location }

// --------------------------------------------------------------------------
// Jobs
// --------------------------------------------------------------------------

func (t *Trigger) scheduledRun(ctx context.Context) {
	if _, err := t.runner.Run(ctx, notifications.SourceScheduled); err != nil {
		// The scheduler already logged the details; tomorrow's run retries.
		t.logger.Warn("Scheduled notification run did not complete", "error", err)
	}
}

// purge removes notification log rows whose item was deleted.
func (t *Trigger) purge(ctx context.Context) {
	n, err := t.pruner.PurgeOrphans(ctx)
	if err != nil {
		t.logger.Warn("Cleanup: failed to purge orphaned log rows", "error", err)
		return
	}
	if n > 0 {
		t.logger.Info("Cleanup: purged orphaned log rows", "count", n)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
