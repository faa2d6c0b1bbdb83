// Package refresh drives the fetch → transform → save cycle in the
// background. A failed cycle is logged and abandoned; the snapshot on disk
// stays as it was and the scheduler waits for the next slot.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/albapepper/scoracle-standings/internal/metrics"
	"github.com/albapepper/scoracle-standings/internal/provider"
	"github.com/albapepper/scoracle-standings/internal/snapshot"
	"github.com/albapepper/scoracle-standings/internal/standings"
)

// DefaultInterval is the pause between cycles when none is configured.
const DefaultInterval = 600 * time.Second

// Saver persists a finished document.
type Saver interface {
	Save(doc *standings.Document) error
}

// Options controls scheduling. Zero values fall back to defaults.
type Options struct {
	Interval     time.Duration // sleep after each cycle
	RetryBackoff time.Duration // first retry delay after a failure; 0 waits a full Interval
	FetchTimeout time.Duration // bound on the upstream call; 0 is unbounded
	Cron         string        // when set, cycles follow this schedule instead of Interval
}

// Scheduler runs refresh cycles until its context is cancelled.
type Scheduler struct {
	fetcher  provider.Fetcher
	saver    Saver
	opts     Options
	logger   *slog.Logger
	metrics  *metrics.Metrics
	failures atomic.Int32
}

// New creates a scheduler. A nil metrics set records nothing.
func New(fetcher provider.Fetcher, saver Saver, opts Options, logger *slog.Logger, m *metrics.Metrics) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Scheduler{
		fetcher: fetcher,
		saver:   saver,
		opts:    opts,
		logger:  logger,
		metrics: m,
	}
}

// Run blocks until ctx is cancelled. The first cycle starts immediately.
// It only returns an error for an invalid cron expression.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.opts.Cron != "" {
		return s.runCron(ctx)
	}

	s.logger.Info("Refresh scheduler started",
		"interval", s.opts.Interval,
		"retry_backoff", s.opts.RetryBackoff,
		"fetch_timeout", s.opts.FetchTimeout)

	for {
		s.RunOnce(ctx)
		if ctx.Err() != nil {
			break
		}

		wait := Backoff(s.opts.Interval, s.opts.RetryBackoff, int(s.failures.Load()))
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
		if ctx.Err() != nil {
			break
		}
	}

	s.logger.Info("Refresh scheduler stopped")
	return nil
}

func (s *Scheduler) runCron(ctx context.Context) error {
	schedule, err := cron.ParseStandard(s.opts.Cron)
	if err != nil {
		return fmt.Errorf("parse refresh cron %q: %w", s.opts.Cron, err)
	}

	clog := cronLogger{s.logger}
	c := cron.New(
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	c.Schedule(schedule, cron.FuncJob(func() { s.RunOnce(ctx) }))

	s.logger.Info("Refresh scheduler started", "cron", s.opts.Cron, "fetch_timeout", s.opts.FetchTimeout)
	s.RunOnce(ctx)

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	s.logger.Info("Refresh scheduler stopped")
	return nil
}

// RunOnce performs a single cycle and records its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) Cycle {
	c := s.cycle(ctx)
	s.record(c)
	return c
}

func (s *Scheduler) cycle(ctx context.Context) Cycle {
	c := Cycle{Started: time.Now(), Stage: StageFetch}

	s.logger.Info("Fetching NBA standings...")

	fctx := ctx
	if s.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, s.opts.FetchTimeout)
		defer cancel()
	}
	tbl, err := s.fetcher.FetchStandings(fctx)
	if err != nil {
		c.Err = &FetchError{Err: err}
		c.Stopped = ctx.Err() != nil && errors.Is(err, context.Canceled)
		c.Duration = time.Since(c.Started)
		return c
	}

	c.Stage = StageTransform
	doc, err := standings.Transform(tbl)
	if err != nil {
		c.Err = err
		c.Duration = time.Since(c.Started)
		return c
	}
	c.East, c.West = len(doc.East), len(doc.West)

	c.Stage = StageSave
	if err := s.saver.Save(doc); err != nil {
		c.Err = err
		c.Duration = time.Since(c.Started)
		return c
	}

	c.Stage = StageDone
	if p, ok := s.saver.(interface{ Path() string }); ok {
		c.Path = p.Path()
	}
	c.Duration = time.Since(c.Started)
	return c
}

func (s *Scheduler) record(c Cycle) {
	if c.Stopped {
		s.logger.Info("Refresh cycle interrupted by shutdown",
			"stage", c.Stage,
			"duration", c.Duration.Round(time.Millisecond))
		return
	}

	s.metrics.RefreshCycles.WithLabelValues(c.Outcome()).Inc()
	s.metrics.RefreshDuration.Observe(c.Duration.Seconds())

	if !c.OK() {
		n := s.failures.Add(1)
		s.metrics.ConsecutiveFailure.Set(float64(n))
		s.logger.Error("Refresh cycle failed, keeping previous snapshot",
			"stage", c.Stage,
			"consecutive_failures", n,
			"duration", c.Duration.Round(time.Millisecond),
			"error", c.Err)
		return
	}

	s.failures.Store(0)
	s.metrics.ConsecutiveFailure.Set(0)
	s.metrics.LastSuccess.SetToCurrentTime()
	s.metrics.SnapshotTeams.WithLabelValues(standings.East).Set(float64(c.East))
	s.metrics.SnapshotTeams.WithLabelValues(standings.West).Set(float64(c.West))
	if st, ok := s.saver.(interface{ Stat() (snapshot.Info, error) }); ok {
		if info, err := st.Stat(); err == nil {
			s.metrics.SnapshotBytes.Set(float64(info.Size))
		}
	}
	s.logger.Info("Standings saved",
		"path", c.Path,
		"summary", c.Summary())
}

// Backoff returns the sleep before the next cycle after the given number of
// consecutive failures. With no failures or no base delay it is interval;
// otherwise base doubles per failure, capped at interval.
func Backoff(interval, base time.Duration, failures int) time.Duration {
	if failures <= 0 || base <= 0 || base >= interval {
		return interval
	}
	d := base
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= interval {
			return interval
		}
	}
	return d
}

// cronLogger routes robfig/cron's logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
