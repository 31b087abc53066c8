package airquality

import (
	"context"
	"sync/atomic"
	"time"
)

// Status is the outcome tag of a source fetch.
type Status string

const (
	// StatusOK means the source produced a reading it stands behind, live or estimated.
	StatusOK Status = "ok"
	// StatusNoData means the source has nothing for this location.
	StatusNoData Status = "no_data"
	// StatusUnavailable means the provider could not be reached or answered badly.
	StatusUnavailable Status = "unavailable"
)

// Outcome is the result of one source fetch. Failures travel in Err and never
// inside the Reading; Reading may still be set when Synthesized is true.
type Outcome struct {
	Status      Status
	Reading     *Reading
	Err         error
	Synthesized bool
}

// OK returns a successful live outcome.
func OK(r *Reading) Outcome {
	return Outcome{Status: StatusOK, Reading: r}
}

// Estimated returns a successful outcome carrying a synthesized reading.
func Estimated(r *Reading) Outcome {
	return Outcome{Status: StatusOK, Reading: r, Synthesized: true}
}

// NoData returns an outcome for a location the source does not cover.
// A synthesized substitute may be attached.
func NoData(substitute *Reading, err error) Outcome {
	return Outcome{Status: StatusNoData, Reading: substitute, Err: err, Synthesized: substitute != nil}
}

// Unavailable returns a failed outcome, optionally carrying a synthesized substitute.
func Unavailable(substitute *Reading, err error) Outcome {
	return Outcome{Status: StatusUnavailable, Reading: substitute, Err: err, Synthesized: substitute != nil}
}

// Source is one external provider wrapped behind a uniform fetch.
// Fetch never returns an error; failures are folded into the Outcome.
type Source interface {
	Name() SourceName
	Fetch(ctx context.Context, lat, lon float64) Outcome
}

// HealthReporter is implemented by sources that track their own health.
type HealthReporter interface {
	Health() HealthSnapshot
}

// Health tracks the rolling health of a source. It is safe for concurrent use.
type Health struct {
	lastSuccess       atomic.Int64
	lastFailure       atomic.Int64
	consecutiveErrors atomic.Int64
	totalRequests     atomic.Int64
}

// HealthSnapshot is a point-in-time copy of a source's health.
type HealthSnapshot struct {
	LastSuccess       time.Time `json:"last_success,omitempty"`
	LastFailure       time.Time `json:"last_failure,omitempty"`
	ConsecutiveErrors int64     `json:"consecutive_errors"`
	TotalRequests     int64     `json:"total_requests"`
}

// RecordSuccess marks a successful live fetch.
func (h *Health) RecordSuccess(at time.Time) {
	h.totalRequests.Add(1)
	h.lastSuccess.Store(at.UnixNano())
	h.consecutiveErrors.Store(0)
}

// RecordFailure marks a failed live fetch.
func (h *Health) RecordFailure(at time.Time) {
	h.totalRequests.Add(1)
	h.lastFailure.Store(at.UnixNano())
	h.consecutiveErrors.Add(1)
}

// Snapshot returns the current health values.
func (h *Health) Snapshot() HealthSnapshot {
	s := HealthSnapshot{
		ConsecutiveErrors: h.consecutiveErrors.Load(),
		TotalRequests:     h.totalRequests.Load(),
	}
	if ns := h.lastSuccess.Load(); ns != 0 {
		s.LastSuccess = time.Unix(0, ns).UTC()
	}
	if ns := h.lastFailure.Load(); ns != 0 {
		s.LastFailure = time.Unix(0, ns).UTC()
	}
	return s
}
