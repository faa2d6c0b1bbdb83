// Package handler provides the ops endpoint handlers. They only inspect the
// snapshot file's metadata and never read or hold standings data.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/albapepper/scoracle-standings/internal/api/respond"
	"github.com/albapepper/scoracle-standings/internal/snapshot"
)

// SnapshotStat reports on the snapshot file.
type SnapshotStat interface {
	Name() string
	Stat() (snapshot.Info, error)
}

// Pinger checks an upstream dependency, such as the Postgres provider.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Handler holds shared dependencies for the ops handlers.
type Handler struct {
	snap     SnapshotStat
	upstream Pinger
	now      func() time.Time
}

// New creates a Handler. upstream may be nil.
func New(snap SnapshotStat, upstream Pinger) *Handler {
	return &Handler{snap: snap, upstream: upstream, now: time.Now}
}

// HasUpstream reports whether an upstream check is available.
func (h *Handler) HasUpstream() bool { return h.upstream != nil }

// Root serves basic service info at /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":     "NBA Standings Feed",
		"status":   "running",
		"snapshot": "/" + h.snap.Name(),
	})
}

// HealthCheck reports whether a snapshot exists and how old it is.
// Before the first successful refresh it answers 503.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	info, err := h.snap.Stat()
	if err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "waiting",
			"snapshot":  "missing",
			"timestamp": now.Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"snapshot": map[string]interface{}{
			"file":        h.snap.Name(),
			"bytes":       info.Size,
			"modified":    info.ModTime.UTC().Format(time.RFC3339),
			"age_seconds": int64(now.Sub(info.ModTime).Seconds()),
		},
		"timestamp": now.Format(time.RFC3339),
	})
}

// HealthCheckUpstream verifies the upstream provider is reachable.
func (h *Handler) HealthCheckUpstream(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.upstream.HealthCheck(ctx); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"upstream":  "disconnected",
			"error":     "Upstream connection check failed",
			"timestamp": h.now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"upstream":  "connected",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
