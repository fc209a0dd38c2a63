package api

import (
	"github.com/phistack/phistack/pkg/phi"
	"github.com/phistack/phistack/pkg/tracker"
	"github.com/phistack/phistack/server/internal/alerts"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	OverallHealthPct float64 `json:"overall_health_pct"`
	State            string  `json:"state"`
	RunCount         int     `json:"run_count"`
	QubitCount       int     `json:"qubit_count"`
	HealthyCount     int     `json:"healthy_count"`
	DegradedCount    int     `json:"degraded_count"`
	CriticalCount    int     `json:"critical_count"`
	AlertCount       int     `json:"alert_count"`
	LatestRunID      string  `json:"latest_run_id,omitempty"`
}

// SequenceResponse is the payload for GET /api/v1/sequence.
type SequenceResponse struct {
	Multiplier int               `json:"multiplier"`
	Timesteps  int               `json:"timesteps"`
	Period     int               `json:"period"`
	Summary    phi.HealthSummary `json:"summary"`
	Records    []phi.Record      `json:"records"`
}

// RunRequest is the body of POST /api/v1/runs. Omitted fields take the
// server's tracker defaults; explicit zeros are validated as given.
type RunRequest struct {
	Baseline          *int     `json:"baseline"`
	Qubits            *int     `json:"qubits"`
	Timesteps         *int     `json:"timesteps"`
	DecoherenceChance *float64 `json:"decoherence_chance"`
	Replacements      []int    `json:"replacements"`
	Seed              int64    `json:"seed"`
}

// QubitResponse is one qubit within a run. Records is omitted in list views.
type QubitResponse struct {
	Name        string            `json:"name"`
	State       string            `json:"state"`
	Summary     phi.HealthSummary `json:"summary"`
	Diagnostics []DiagnosticHint  `json:"diagnostics"`
	Records     []phi.Record      `json:"records,omitempty"`
}

// RunResponse is one run in GET /api/v1/runs or GET /api/v1/runs/{id}.
type RunResponse struct {
	ID        string            `json:"id"`
	CreatedAt string            `json:"created_at"` // RFC3339
	Params    tracker.Params    `json:"params"`
	Aggregate tracker.Aggregate `json:"aggregate"`
	Qubits    []QubitResponse   `json:"qubits"`
}

// TraceInfo is one entry in GET /api/v1/traces.
type TraceInfo struct {
	ID string `json:"id"`
}

// AlertsResponse is the payload for GET /api/v1/alerts.
type AlertsResponse struct {
	Alerts []*alerts.Alert `json:"alerts"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket broadcast.
type SnapshotResponse struct {
	Runs        []RunResponse `json:"runs"`
	GeneratedAt string        `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
