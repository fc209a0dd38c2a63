// Package api implements the HTTP REST API for phistack-server.
//
// New(store, tracker, alerts, traces) returns an http.Handler that serves:
//
//	GET  /api/v1/health                 — mean health, state, per-state qubit counts
//	GET  /api/v1/sequence               — unperturbed Φ(n,k) sequence, summary and period
//	GET  /api/v1/runs                   — all live runs without per-timestep records
//	POST /api/v1/runs                   — simulate a run; omitted fields use tracker defaults
//	GET  /api/v1/runs/{id}              — single run with records; 404 if unknown or stale
//	GET  /api/v1/runs/{id}/health.csv   — per-qubit health scores
//	GET  /api/v1/runs/{id}/sequence.csv — per-timestep records
//	GET  /api/v1/traces                 — configured probability trace sources
//	GET  /api/v1/traces/{id}/compare    — trace probabilities next to Φ(n,baseline)
//	GET  /api/v1/traces/{id}/cert       — TLS certificate of an HTTPS trace source
//	GET  /api/v1/alerts                 — firing and recently resolved alerts
//	GET  /api/v1/snapshot               — all live runs + generated_at
//
// Errors are returned as {"error": "..."}. Invalid parameters map to 400,
// unknown IDs to 404 and trace fetch failures to 502.
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
