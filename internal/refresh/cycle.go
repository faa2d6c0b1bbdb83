package refresh

import (
	"errors"
	"fmt"
	"time"

	"github.com/albapepper/scoracle-standings/internal/metrics"
	"github.com/albapepper/scoracle-standings/internal/snapshot"
	"github.com/albapepper/scoracle-standings/internal/standings"
)

// Stage is the step a cycle stopped at.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageTransform Stage = "transform"
	StageSave      Stage = "save"
	StageDone      Stage = "done"
)

// FetchError wraps a failed or timed-out upstream call.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch standings: %v", e.Err) }

func (e *FetchError) Unwrap() error { return e.Err }

// Cycle is the outcome of one fetch → transform → save pass.
type Cycle struct {
	Started  time.Time
	Duration time.Duration
	Stage    Stage
	Err      error
	East     int
	West     int
	Path     string
	Stopped  bool // the fetch was cancelled because the process is shutting down
}

// OK reports whether the snapshot was replaced.
func (c Cycle) OK() bool { return c.Err == nil && c.Stage == StageDone }

// Outcome returns the metrics label for the cycle.
func (c Cycle) Outcome() string {
	var (
		ferr *FetchError
		terr *standings.TransformError
		werr *snapshot.WriteError
	)
	switch {
	case c.Err == nil:
		return metrics.OutcomeSuccess
	case errors.As(c.Err, &terr):
		return metrics.OutcomeTransformError
	case errors.As(c.Err, &werr):
		return metrics.OutcomeWriteError
	case errors.As(c.Err, &ferr):
		return metrics.OutcomeFetchError
	}
	switch c.Stage {
	case StageTransform:
		return metrics.OutcomeTransformError
	case StageSave:
		return metrics.OutcomeWriteError
	}
	return metrics.OutcomeFetchError
}

// Summary returns a human-readable summary.
func (c Cycle) Summary() string {
	status := "ok"
	switch {
	case c.Stopped:
		status = "stopped at " + string(c.Stage)
	case !c.OK():
		status = "FAILED at " + string(c.Stage)
	}
	return fmt.Sprintf("east=%d west=%d status=%s dur=%s",
		c.East, c.West, status, c.Duration.Round(time.Millisecond))
}
