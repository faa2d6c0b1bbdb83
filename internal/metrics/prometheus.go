// Package metrics defines the Prometheus collectors for the standings feed.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh outcomes, used as the "outcome" label.
const (
	OutcomeSuccess        = "success"
	OutcomeFetchError     = "fetch_error"
	OutcomeTransformError = "transform_error"
	OutcomeWriteError     = "write_error"
)

// Metrics groups every collector. Collectors are registered on the registry
// passed to New, so tests can use a fresh one.
type Metrics struct {
	RefreshCycles      *prometheus.CounterVec
	RefreshDuration    prometheus.Histogram
	LastSuccess        prometheus.Gauge
	SnapshotBytes      prometheus.Gauge
	SnapshotTeams      *prometheus.GaugeVec
	ConsecutiveFailure prometheus.Gauge
	HTTPRequests       *prometheus.CounterVec
}

// New registers all collectors on reg. A nil reg creates an unregistered
// set, useful when metrics are disabled.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RefreshCycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "standings_refresh_cycles_total",
				Help: "Total number of refresh cycles by outcome",
			},
			[]string{"outcome"},
		),
		RefreshDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "standings_refresh_duration_seconds",
				Help:    "Duration of refresh cycles in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		LastSuccess: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "standings_snapshot_last_success_timestamp_seconds",
				Help: "Unix time of the last successfully written snapshot",
			},
		),
		SnapshotBytes: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "standings_snapshot_bytes",
				Help: "Size of the last written snapshot",
			},
		),
		SnapshotTeams: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "standings_snapshot_teams",
				Help: "Teams in the last written snapshot by conference",
			},
			[]string{"conference"},
		),
		ConsecutiveFailure: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "standings_refresh_consecutive_failures",
				Help: "Failed refresh cycles since the last success",
			},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "standings_http_requests_total",
				Help: "Total number of snapshot HTTP requests",
			},
			[]string{"code", "method"},
		),
	}
}
