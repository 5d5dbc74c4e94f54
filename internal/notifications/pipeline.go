package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/albapepper/freshtrack/internal/dates"
	"github.com/albapepper/freshtrack/internal/pantry"
)

// ItemSource is the item store query the scheduler needs.
type ItemSource interface {
	FindEligible(ctx context.Context, from, to time.Time) ([]pantry.Eligible, error)
}

// Scheduler runs expiration notification passes. It is safe to call Run
// concurrently; duplicate suppression lives in the Log.
type Scheduler struct {
	items       ItemSource
	log         Log
	sender      Dispatcher
	thresholds  Thresholds
	loc         *time.Location
	now         func() time.Time
	concurrency int
	metrics     *Metrics
	logger      *slog.Logger
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock injects the source of "now" used to derive today's date.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLocation sets the zone whose calendar defines day boundaries.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithConcurrency caps how many items are in flight at once.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithThresholds replaces the threshold table.
func WithThresholds(ts Thresholds) Option {
	return func(s *Scheduler) { s.thresholds = ts }
}

// WithMetrics records run outcomes to Prometheus.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// NewScheduler wires a scheduler over explicit collaborators.
func NewScheduler(items ItemSource, log Log, sender Dispatcher, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		items:       items,
		log:         log,
		sender:      sender,
		thresholds:  DefaultThresholds,
		loc:         time.Local,
		now:         time.Now,
		concurrency: defaultConcurrency,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the zone used for day boundaries.
func (s *Scheduler) Location() *time.Location { return s.loc }

// Run performs one full pass. Per-item failures are reported in the summary
// and never stop the batch. The error is non-nil only when the pass could not
// start (item store unreachable) or was cancelled; a cancelled pass still
// returns the partial summary.
func (s *Scheduler) Run(ctx context.Context, source Source) (*RunSummary, error) {
	start := time.Now()
	today := dates.Midnight(s.now(), s.loc)
	from, to := dates.Window(today, s.thresholds.MaxOffset(), s.loc)

	eligible, err := s.items.FindEligible(ctx, from, to)
	if err != nil {
		s.metrics.observeRun(source, err, time.Since(start))
		s.logger.Error("Notification run failed", "source", source, "error", err)
		return nil, fmt.Errorf("find eligible items: %w", err)
	}

	sum := &RunSummary{
		Source:    source,
		Date:      today.Format("2006-01-02"),
		StartedAt: start,
		Eligible:  len(eligible),
		Failures:  []ItemFailure{},
	}
	s.logger.Info("Notification run started", "source", source, "date", sum.Date, "eligible", len(eligible))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.concurrency)
	for _, e := range eligible {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			o := s.process(ctx, today, e)
			s.metrics.observeItem(o)
			mu.Lock()
			sum.add(o)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	sum.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		s.metrics.observeRun(source, err, sum.Duration)
		s.logger.Warn("Notification run cancelled", "summary", sum.Summary(), "error", err)
		return sum, fmt.Errorf("notification run cancelled: %w", err)
	}

	s.metrics.observeRun(source, nil, sum.Duration)
	s.logger.Info("Notification run complete", "summary", sum.Summary())
	return sum, nil
}
