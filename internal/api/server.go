// Package api exposes the snapshot file over HTTP and, optionally, a
// separate ops endpoint for health and metrics.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corslib "github.com/rs/cors"

	"github.com/albapepper/scoracle-standings/internal/api/handler"
)

// Snapshot locates the file being served.
type Snapshot interface {
	Dir() string
	Name() string
}

// Options configures the serving router.
type Options struct {
	CORSAllowOrigins  []string
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	Logger   *slog.Logger
	Requests *prometheus.CounterVec // nil disables request counting
}

// NewRouter creates the serving router. It answers GET and HEAD for the
// snapshot file only; every other path is a 404. The file is read from disk
// on each request, so a replaced snapshot is picked up immediately.
func NewRouter(snap Snapshot, opts Options) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))
	r.Use(TimingMiddleware)
	if opts.Requests != nil {
		r.Use(CountRequests(opts.Requests))
	}

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   opts.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD"},
		AllowedHeaders:   []string{"Accept", "If-Modified-Since", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "Last-Modified"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if opts.RateLimitEnabled {
		r.Use(RateLimitMiddleware(opts.RateLimitRequests, opts.RateLimitWindow))
	}

	// --- Routes ---
	files := http.FileServer(http.Dir(snap.Dir()))
	route := "/" + snap.Name()
	r.Get(route, files.ServeHTTP)
	r.Head(route, files.ServeHTTP)

	return r
}

// OpsRouter creates the ops router: service info, snapshot health, an
// upstream check when upstream is non-nil, and Prometheus metrics.
func OpsRouter(snap handler.SnapshotStat, upstream handler.Pinger, gatherer prometheus.Gatherer) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	h := handler.New(snap, upstream)

	r.Get("/", h.Root)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		if h.HasUpstream() {
			r.Get("/upstream", h.HealthCheckUpstream)
		}
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
