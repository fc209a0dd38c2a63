package trace

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/phistack/phistack/server/internal/config"
)

// amplitudes is a four-step trace: |0⟩ probability 1, 0.5, 0.25, 0.
const amplitudes = `
# HELP qdataset_state_amplitude Amplitude of |0> per timestep.
# TYPE qdataset_state_amplitude gauge
qdataset_state_amplitude{timestep="0",part="real"} 1
qdataset_state_amplitude{timestep="0",part="imag"} 0
qdataset_state_amplitude{timestep="1",part="real"} 0.5
qdataset_state_amplitude{timestep="1",part="imag"} 0.5
qdataset_state_amplitude{timestep="2",part="real"} 0.5
qdataset_state_amplitude{timestep="3",part="imag"} 0
`

var approx = cmpopts.EquateApprox(0, 1e-9)

func writeTrace(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "trace.prom")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write trace: %v", err)
	}
	return p
}

func fileSource(path string) config.TraceSource {
	return config.TraceSource{ID: "file-test", Type: "file", Path: path, Metric: config.DefaultTraceMetric}
}

// --- file loader ---

func TestFileLoader_Amplitudes(t *testing.T) {
	l, err := New(fileSource(writeTrace(t, amplitudes)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []float64{1, 0.5, 0.25, 0}
	if diff := cmp.Diff(want, tr.Probabilities, approx); diff != "" {
		t.Errorf("probabilities mismatch (-want +got):\n%s", diff)
	}
	if tr.SourceID != "file-test" || tr.Metric != config.DefaultTraceMetric {
		t.Errorf("trace identity = %q/%q", tr.SourceID, tr.Metric)
	}
}

func TestFileLoader_ProbabilityPart(t *testing.T) {
	body := `
qdataset_state_amplitude{timestep="1",part="probability"} 0.3
qdataset_state_amplitude{timestep="0",part="probability"} 0.9
`
	l, _ := New(fileSource(writeTrace(t, body)))
	tr, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]float64{0.9, 0.3}, tr.Probabilities, approx); diff != "" {
		t.Errorf("probabilities mismatch (-want +got):\n%s", diff)
	}
}

func TestFileLoader_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"metric absent", "other_metric 1\n"},
		{"gap in timesteps", "qdataset_state_amplitude{timestep=\"0\"} 1\nqdataset_state_amplitude{timestep=\"2\"} 1\n"},
		{"missing timestep label", "qdataset_state_amplitude{part=\"real\"} 1\n"},
		{"unknown part", "qdataset_state_amplitude{timestep=\"0\",part=\"phase\"} 1\n"},
		{"garbage", "{{{ not an exposition\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, _ := New(fileSource(writeTrace(t, tc.body)))
			if _, err := l.Load(context.Background()); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestFileLoader_MetricAbsentIsNoData(t *testing.T) {
	l, _ := New(fileSource(writeTrace(t, "other_metric 1\n")))
	if _, err := l.Load(context.Background()); !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestFileLoader_MissingFile(t *testing.T) {
	l, _ := New(fileSource("/nonexistent/trace.prom"))
	if _, err := l.Load(context.Background()); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

// --- HTTP loader ---

func TestHTTPLoader_BearerAuth(t *testing.T) {
	t.Setenv("TRACE_TOKEN", "s3cret")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(amplitudes))
	}))
	defer srv.Close()

	l, err := New(config.TraceSource{
		ID:       "live",
		Type:     "prometheus",
		Endpoint: srv.URL,
		Metric:   config.DefaultTraceMetric,
		Auth:     config.SourceAuthConfig{Mode: "bearer", TokenEnv: "TRACE_TOKEN"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tr.Probabilities) != 4 {
		t.Errorf("len = %d, want 4", len(tr.Probabilities))
	}
}

func TestHTTPLoader_APIKeyDefaultHeader(t *testing.T) {
	t.Setenv("TRACE_KEY", "k1")
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("x-api-key")
		_, _ = w.Write([]byte(amplitudes))
	}))
	defer srv.Close()

	l, _ := New(config.TraceSource{
		ID: "k", Type: "prometheus", Endpoint: srv.URL, Metric: config.DefaultTraceMetric,
		Auth: config.SourceAuthConfig{Mode: "apikey", KeyEnv: "TRACE_KEY"},
	})
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "k1" {
		t.Errorf("x-api-key = %q, want k1", got)
	}
}

func TestHTTPLoader_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	l, _ := New(config.TraceSource{ID: "down", Type: "prometheus", Endpoint: srv.URL, Metric: config.DefaultTraceMetric})
	if _, err := l.Load(context.Background()); err == nil {
		t.Fatal("expected error for 503, got nil")
	}
}

func TestHTTPLoader_ConnectFailure(t *testing.T) {
	l, _ := New(config.TraceSource{ID: "gone", Type: "prometheus", Endpoint: "http://127.0.0.1:1", Metric: config.DefaultTraceMetric})
	if _, err := l.Load(context.Background()); err == nil {
		t.Fatal("expected error when endpoint is unreachable")
	}
}

func TestNew_MTLSMissingCert(t *testing.T) {
	_, err := New(config.TraceSource{
		ID: "m", Type: "prometheus", Endpoint: "https://x",
		Auth: config.SourceAuthConfig{Mode: "mtls", CertFile: "/nope.crt", KeyFile: "/nope.key"},
	})
	if err == nil {
		t.Fatal("expected error for missing client cert")
	}
}

// --- Registry ---

func TestRegistry(t *testing.T) {
	reg := NewRegistry([]config.TraceSource{
		fileSource(writeTrace(t, amplitudes)),
		{ID: "bad", Type: "hdf5"},
	})
	if diff := cmp.Diff([]string{"file-test"}, reg.IDs()); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}
	if _, err := reg.Load(context.Background(), "file-test"); err != nil {
		t.Errorf("Load(file-test): %v", err)
	}
	if _, err := reg.Load(context.Background(), "bad"); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("Load(bad) err = %v, want ErrUnknownSource", err)
	}
}

// --- Compare ---

func TestCompare_AlternatingTrace(t *testing.T) {
	tr := &Trace{SourceID: "alt", Probabilities: []float64{1, 0, 1, 0, 1, 0}}
	c, err := Compare(tr, 3)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if c.Timesteps != 6 || c.Sequence.Len() != 6 {
		t.Errorf("timesteps = %d/%d, want 6", c.Timesteps, c.Sequence.Len())
	}
	if len(c.NonVibrating) != 0 {
		t.Errorf("NonVibrating = %v, want none for baseline 3", c.NonVibrating)
	}
	// Roots alternate 3,6 against probabilities 1,0: perfectly anti-correlated.
	if math.Abs(c.Correlation+1) > 1e-9 {
		t.Errorf("Correlation = %v, want -1", c.Correlation)
	}
	if c.MeanProbVibrating != 0.5 || c.MeanProbQuiet != 0 {
		t.Errorf("means = %v/%v, want 0.5/0", c.MeanProbVibrating, c.MeanProbQuiet)
	}
	if c.Summary.HealthPercent != 100 {
		t.Errorf("HealthPercent = %v, want 100", c.Summary.HealthPercent)
	}
}

func TestCompare_NonVibratingBaseline(t *testing.T) {
	tr := &Trace{Probabilities: []float64{0.2, 0.4, 0.6}}
	c, err := Compare(tr, 1)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, c.NonVibrating); diff != "" {
		t.Errorf("NonVibrating mismatch:\n%s", diff)
	}
	if math.Abs(c.MeanProbQuiet-0.4) > 1e-9 {
		t.Errorf("MeanProbQuiet = %v, want 0.4", c.MeanProbQuiet)
	}
}

func TestCompare_ConstantTraceZeroCorrelation(t *testing.T) {
	c, err := Compare(&Trace{Probabilities: []float64{0.5, 0.5, 0.5, 0.5}}, 3)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if c.Correlation != 0 {
		t.Errorf("Correlation = %v, want 0 for constant trace", c.Correlation)
	}
}

func TestCompare_Empty(t *testing.T) {
	if _, err := Compare(&Trace{}, 3); !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}
