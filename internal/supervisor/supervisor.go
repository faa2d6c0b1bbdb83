// Package supervisor wires the refresh scheduler and the serving endpoint
// together and runs them until the process is told to stop.
//
// The two never talk to each other directly. The scheduler replaces the
// snapshot file; the endpoint reads it per request.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/albapepper/scoracle-standings/internal/api"
	"github.com/albapepper/scoracle-standings/internal/api/handler"
	"github.com/albapepper/scoracle-standings/internal/config"
	"github.com/albapepper/scoracle-standings/internal/metrics"
	"github.com/albapepper/scoracle-standings/internal/provider"
	"github.com/albapepper/scoracle-standings/internal/refresh"
	"github.com/albapepper/scoracle-standings/internal/snapshot"
)

// Supervisor owns the long-lived parts of the process.
type Supervisor struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *snapshot.Store
	scheduler *refresh.Scheduler
	router    http.Handler
	ops       http.Handler
}

// New builds the snapshot store, scheduler and routers from cfg. A nil
// registry gets a fresh one. The ops router is only built when
// cfg.MetricsPort is set.
func New(cfg *config.Config, fetcher provider.Fetcher, logger *slog.Logger, reg *prometheus.Registry) (*Supervisor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	store, err := snapshot.New(cfg.OutputFile)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}

	m := metrics.New(reg)
	sched := refresh.New(fetcher, store, refresh.Options{
		Interval:     cfg.UpdateInterval,
		RetryBackoff: cfg.RetryBackoff,
		FetchTimeout: cfg.FetchTimeout,
		Cron:         cfg.RefreshCron,
	}, logger, m)

	router := api.NewRouter(store, api.Options{
		CORSAllowOrigins:  cfg.CORSAllowOrigins,
		RateLimitEnabled:  cfg.RateLimitEnabled,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		Logger:            logger,
		Requests:          m.HTTPRequests,
	})

	s := &Supervisor{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		scheduler: sched,
		router:    router,
	}

	if cfg.MetricsPort > 0 {
		var upstream handler.Pinger
		if p, ok := fetcher.(handler.Pinger); ok {
			upstream = p
		}
		s.ops = api.OpsRouter(store, upstream, reg)
	}
	return s, nil
}

// Store returns the snapshot store.
func (s *Supervisor) Store() *snapshot.Store { return s.store }

// OpsHandler returns the ops router, or nil when it is disabled.
func (s *Supervisor) OpsHandler() http.Handler { return s.ops }

// RunOnce performs a single refresh cycle without serving.
func (s *Supervisor) RunOnce(ctx context.Context) refresh.Cycle {
	return s.scheduler.RunOnce(ctx)
}

// Run binds the serving port and serves until ctx is cancelled. A
// *api.BindError means the port is taken; the caller should exit.
func (s *Supervisor) Run(ctx context.Context) error {
	ln, err := api.Listen(s.cfg.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the scheduler and the serving endpoint on ln (plus the ops
// endpoint when configured) until ctx is cancelled, then waits for all of
// them to stop.
func (s *Supervisor) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.logger.Info("Serving standings",
		"addr", ln.Addr().String(),
		"url", s.cfg.ClientURL(),
		"file", s.store.Path())

	var wg sync.WaitGroup

	// A scheduler failure is logged; the endpoint keeps serving whatever
	// snapshot is on disk.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.scheduler.Run(ctx); err != nil {
			s.logger.Error("Refresh scheduler stopped, serving last snapshot", "error", err)
		}
	}()

	if s.ops != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveOps(ctx)
		}()
	}

	err := api.Serve(ctx, ln, s.router, s.logger)
	cancel()
	wg.Wait()
	return err
}

// serveOps never fails the process; a taken port is only logged.
func (s *Supervisor) serveOps(ctx context.Context) {
	ln, err := api.Listen(s.cfg.MetricsAddr())
	if err != nil {
		s.logger.Error("Ops endpoint unavailable", "error", err)
		return
	}
	s.logger.Info("Ops endpoint listening", "addr", ln.Addr().String())
	if err := api.Serve(ctx, ln, s.ops, s.logger); err != nil {
		s.logger.Error("Ops endpoint failed", "error", err)
	}
}
