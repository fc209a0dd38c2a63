package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/phistack/phistack/pkg/export"
	"github.com/phistack/phistack/pkg/phi"
	"github.com/phistack/phistack/pkg/tracker"
	"github.com/phistack/phistack/server/internal/alerts"
	"github.com/phistack/phistack/server/internal/store"
	"github.com/phistack/phistack/server/internal/trace"
)

// maxRequestBody caps the size of a POST /api/v1/runs body.
const maxRequestBody = 64 << 10

// TraceSource lists and loads probability traces.
type TraceSource interface {
	IDs() []string
	Load(ctx context.Context, id string) (*trace.Trace, error)
	Cert(ctx context.Context, id string) (*trace.CertStatus, error)
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store   *store.Store
	tracker *tracker.Engine
	alerts  *alerts.Engine
	traces  TraceSource
	publish func(*tracker.Run)
	mux     *http.ServeMux
}

// Option configures a Handler.
type Option func(*Handler)

// WithPublisher registers fn to receive every run created through the API,
// after it has been stored and evaluated for alerts.
func WithPublisher(fn func(*tracker.Run)) Option {
	return func(h *Handler) { h.publish = fn }
}

// New creates a Handler and registers all routes. alertEngine and traces may
// be nil.
func New(st *store.Store, eng *tracker.Engine, alertEngine *alerts.Engine, traces TraceSource, opts ...Option) http.Handler {
	h := &Handler{
		store:   st,
		tracker: eng,
		alerts:  alertEngine,
		traces:  traces,
		mux:     http.NewServeMux(),
	}
	for _, o := range opts {
		o(h)
	}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/sequence", h.sequence)
	h.mux.HandleFunc("/api/v1/runs", h.runs)
	h.mux.HandleFunc("/api/v1/runs/", h.runSubtree) // {id}, {id}/health.csv, {id}/sequence.csv
	h.mux.HandleFunc("/api/v1/traces", h.listTraces)
	h.mux.HandleFunc("/api/v1/traces/", h.traceSubtree) // {id}/compare, {id}/cert
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: mean health across live runs and
// per-qubit state counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	entries := h.store.List()
	resp := HealthResponse{RunCount: len(entries)}
	if h.alerts != nil {
		resp.AlertCount = h.alerts.FiringCount()
	}
	if len(entries) == 0 {
		resp.State = tracker.StateUnknown
		jsonResp(w, http.StatusOK, resp)
		return
	}
	resp.LatestRunID = entries[0].Run.ID

	var total float64
	for _, e := range entries {
		for _, q := range e.Run.Qubits {
			resp.QubitCount++
			total += q.Summary.HealthPercent
			switch q.State {
			case tracker.StateHealthy:
				resp.HealthyCount++
			case tracker.StateDegraded:
				resp.DegradedCount++
			default:
				resp.CriticalCount++
			}
		}
	}
	if resp.QubitCount == 0 {
		resp.State = tracker.StateUnknown
		jsonResp(w, http.StatusOK, resp)
		return
	}
	resp.OverallHealthPct = total / float64(resp.QubitCount)
	resp.State = tracker.StateFor(resp.OverallHealthPct)
	jsonResp(w, http.StatusOK, resp)
}

// sequence returns GET /api/v1/sequence?multiplier=&timesteps= — the
// unperturbed Φ(n, multiplier) sequence.
func (h *Handler) sequence(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	defaults := h.tracker.Defaults()
	q := r.URL.Query()
	mult, err := intParam(q.Get("multiplier"), defaults.Baseline)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "multiplier: "+err.Error())
		return
	}
	steps, err := intParam(q.Get("timesteps"), defaults.Timesteps)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "timesteps: "+err.Error())
		return
	}
	if lim := h.tracker.Limits(); steps > lim.MaxTimesteps {
		jsonErr(w, http.StatusBadRequest, fmt.Sprintf("timesteps %d exceeds limit %d", steps, lim.MaxTimesteps))
		return
	}

	seq, err := phi.Generate(mult, steps, nil, nil)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	sum, err := phi.Summarize(seq)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, SequenceResponse{
		Multiplier: mult,
		Timesteps:  steps,
		Period:     phi.Period(mult),
		Summary:    sum,
		Records:    seq.Records,
	})
}

// runs handles GET /api/v1/runs (list) and POST /api/v1/runs (simulate).
func (h *Handler) runs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries := h.store.List()
		out := make([]RunResponse, 0, len(entries))
		for _, e := range entries {
			out = append(out, NewRunResponse(e.Run, false))
		}
		jsonResp(w, http.StatusOK, out)

	case http.MethodPost:
		h.createRun(w, r)

	default:
		w.Header().Set("Allow", "GET, POST")
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) createRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		jsonErr(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
	}

	p := h.tracker.Defaults()
	if req.Baseline != nil {
		p.Baseline = *req.Baseline
	}
	if req.Qubits != nil {
		p.Qubits = *req.Qubits
	}
	if req.Timesteps != nil {
		p.Timesteps = *req.Timesteps
	}
	if req.DecoherenceChance != nil {
		p.DecoherenceChance = *req.DecoherenceChance
	}
	if req.Replacements != nil {
		p.Replacements = req.Replacements
	}
	if req.Seed != 0 {
		p.Seed = req.Seed
	}

	run, err := h.tracker.Run(p)
	if err != nil {
		if errors.Is(err, phi.ErrInvalidInput) {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("api: simulation failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "simulation failed")
		return
	}

	h.store.Put(run)
	if h.alerts != nil {
		h.alerts.Evaluate(run)
	}
	if h.publish != nil {
		h.publish(run)
	}
	slog.Info("api: run created",
		"run", run.ID,
		"qubits", run.Params.Qubits,
		"timesteps", run.Params.Timesteps,
		"mean_health_pct", run.Aggregate.MeanHealthPct,
	)
	w.Header().Set("Location", "/api/v1/runs/"+run.ID)
	jsonResp(w, http.StatusCreated, NewRunResponse(run, true))
}

// runSubtree serves GET /api/v1/runs/{id} and its CSV exports.
func (h *Handler) runSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	if rest == "" {
		h.runs(w, r)
		return
	}
	if !allow(w, r, http.MethodGet) {
		return
	}

	id, view, _ := strings.Cut(rest, "/")
	e, ok := h.store.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "run not found")
		return
	}

	switch view {
	case "":
		jsonResp(w, http.StatusOK, NewRunResponse(e.Run, true))
	case "health.csv":
		csvResp(w, "health_scores.csv", func(out io.Writer) error {
			return export.WriteHealthCSV(out, e.Run.Qubits)
		})
	case "sequence.csv":
		csvResp(w, "qubit_sequences.csv", func(out io.Writer) error {
			return export.WriteSequenceCSV(out, e.Run.Qubits)
		})
	default:
		jsonErr(w, http.StatusNotFound, "unknown run view")
	}
}

// listTraces returns GET /api/v1/traces — the configured trace sources.
func (h *Handler) listTraces(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	out := make([]TraceInfo, 0)
	if h.traces != nil {
		for _, id := range h.traces.IDs() {
			out = append(out, TraceInfo{ID: id})
		}
	}
	jsonResp(w, http.StatusOK, out)
}

// traceSubtree serves GET /api/v1/traces/{id}/compare?baseline= and
// GET /api/v1/traces/{id}/cert.
func (h *Handler) traceSubtree(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	id, view, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/api/v1/traces/"), "/")
	if id == "" {
		h.listTraces(w, r)
		return
	}

	switch view {
	case "compare":
		h.compareTrace(w, r, id)
	case "cert":
		h.traceCert(w, r, id)
	default:
		jsonErr(w, http.StatusNotFound, "unknown trace view")
	}
}

func (h *Handler) compareTrace(w http.ResponseWriter, r *http.Request, id string) {
	baseline, err := intParam(r.URL.Query().Get("baseline"), h.tracker.Defaults().Baseline)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "baseline: "+err.Error())
		return
	}
	if h.traces == nil {
		jsonErr(w, http.StatusNotFound, "trace not found")
		return
	}

	tr, err := h.traces.Load(r.Context(), id)
	switch {
	case errors.Is(err, trace.ErrUnknownSource):
		jsonErr(w, http.StatusNotFound, "trace not found")
		return
	case err != nil:
		slog.Warn("api: trace load failed", "trace", id, "err", err)
		jsonErr(w, http.StatusBadGateway, "trace load failed: "+err.Error())
		return
	}

	cmp, err := trace.Compare(tr, baseline)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, cmp)
}

// traceCert reports the TLS certificate of an HTTPS trace source. Sources
// without TLS answer 204.
func (h *Handler) traceCert(w http.ResponseWriter, r *http.Request, id string) {
	if h.traces == nil {
		jsonErr(w, http.StatusNotFound, "trace not found")
		return
	}
	cs, err := h.traces.Cert(r.Context(), id)
	switch {
	case errors.Is(err, trace.ErrUnknownSource):
		jsonErr(w, http.StatusNotFound, "trace not found")
	case err != nil:
		jsonErr(w, http.StatusInternalServerError, err.Error())
	case cs == nil:
		w.WriteHeader(http.StatusNoContent)
	default:
		jsonResp(w, http.StatusOK, cs)
	}
}

// listAlerts returns GET /api/v1/alerts — firing and recently resolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	resp := AlertsResponse{Alerts: []*alerts.Alert{}}
	if h.alerts != nil {
		resp.Alerts = h.alerts.Active()
	}
	jsonResp(w, http.StatusOK, resp)
}

// snapshot returns GET /api/v1/snapshot — summaries of all live runs.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store))
}

// BuildSnapshot assembles the snapshot payload from the store. Per-timestep
// records are left out to keep broadcasts small.
func BuildSnapshot(st *store.Store) SnapshotResponse {
	entries := st.List()
	runs := make([]RunResponse, 0, len(entries))
	for _, e := range entries {
		runs = append(runs, NewRunResponse(e.Run, false))
	}
	return SnapshotResponse{
		Runs:        runs,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// --- helpers ----------------------------------------------------------------

// allow writes 405 and returns false unless r.Method is method.
func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// csvResp renders the table into memory first so a write error can still
// produce a JSON 500 instead of a truncated download.
func csvResp(w http.ResponseWriter, filename string, write func(io.Writer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		slog.Error("api: csv export failed", "file", filename, "err", err)
		jsonErr(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

// intParam parses a query value, returning def when it is empty.
func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", v)
	}
	return n, nil
}

// NewRunResponse maps a run to its JSON representation. Per-timestep records
// are included only when withRecords is set.
func NewRunResponse(run *tracker.Run, withRecords bool) RunResponse {
	qs := make([]QubitResponse, 0, len(run.Qubits))
	for i := range run.Qubits {
		q := &run.Qubits[i]
		qr := QubitResponse{
			Name:        q.Name,
			State:       q.State,
			Summary:     q.Summary,
			Diagnostics: computeDiagnostics(q),
		}
		if withRecords {
			qr.Records = q.Sequence.Records
		}
		qs = append(qs, qr)
	}
	return RunResponse{
		ID:        run.ID,
		CreatedAt: run.CreatedAt.UTC().Format(time.RFC3339),
		Params:    run.Params,
		Aggregate: run.Aggregate,
		Qubits:    qs,
	}
}
