package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/phistack/phistack/server/internal/config"
)

// Label names read from trace samples.
const (
	labelTimestep = "timestep"
	labelPart     = "part"
)

// ErrNoData is returned when a source holds no samples of the configured metric.
var ErrNoData = errors.New("trace: no samples")

// ErrUnknownSource is returned by Registry.Load for an unconfigured ID.
var ErrUnknownSource = errors.New("trace: unknown source")

// Trace is a probability-of-|0⟩ series indexed by timestep.
type Trace struct {
	SourceID      string    `json:"source_id"`
	Metric        string    `json:"metric"`
	LoadedAt      time.Time `json:"loaded_at"`
	Probabilities []float64 `json:"probabilities"`
}

// Loader fetches one trace.
type Loader interface {
	Load(ctx context.Context) (*Trace, error)
}

// New returns the Loader for src.
func New(src config.TraceSource) (Loader, error) {
	switch src.Type {
	case "prometheus":
		client, err := buildHTTPClient(src)
		if err != nil {
			return nil, fmt.Errorf("trace %q: build http client: %w", src.ID, err)
		}
		return &httpLoader{src: src, client: client}, nil
	case "file":
		return &fileLoader{src: src}, nil
	default:
		return nil, fmt.Errorf("trace: unsupported type %q", src.Type)
	}
}

type httpLoader struct {
	src    config.TraceSource
	client *http.Client
}

// Load fetches the exposition from the source endpoint.
func (l *httpLoader) Load(ctx context.Context) (*Trace, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.src.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("trace %q: build request: %w", l.src.ID, err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trace %q: http get: %w", l.src.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trace %q: unexpected status %d", l.src.ID, resp.StatusCode)
	}
	return decode(l.src, resp.Body)
}

type fileLoader struct {
	src config.TraceSource
}

// Load reads the exposition file from disk.
func (l *fileLoader) Load(_ context.Context) (*Trace, error) {
	f, err := os.Open(l.src.Path)
	if err != nil {
		return nil, fmt.Errorf("trace %q: %w", l.src.ID, err)
	}
	defer f.Close()
	return decode(l.src, f)
}

// decode parses an exposition and builds the trace for src.Metric.
func decode(src config.TraceSource, r io.Reader) (*Trace, error) {
	mfs, err := parseMetrics(r)
	if err != nil {
		return nil, fmt.Errorf("trace %q: %w", src.ID, err)
	}
	probs, err := probabilities(mfs[src.Metric])
	if err != nil {
		return nil, fmt.Errorf("trace %q: %w", src.ID, err)
	}
	return &Trace{
		SourceID:      src.ID,
		Metric:        src.Metric,
		LoadedAt:      time.Now().UTC(),
		Probabilities: probs,
	}, nil
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	if err != nil {
		slog.Debug("trace: partial exposition parse", "err", err)
	}
	return mfs, nil
}

// amplitude accumulates the parts seen for one timestep.
type amplitude struct {
	re, im   float64
	prob     float64
	haveProb bool
}

// probabilities converts the samples of mf into a dense per-timestep series.
func probabilities(mf *dto.MetricFamily) ([]float64, error) {
	if mf == nil || len(mf.GetMetric()) == 0 {
		return nil, ErrNoData
	}

	byStep := make(map[int]*amplitude)
	for _, m := range mf.GetMetric() {
		var stepLabel, part string
		for _, lp := range m.GetLabel() {
			switch lp.GetName() {
			case labelTimestep:
				stepLabel = lp.GetValue()
			case labelPart:
				part = lp.GetValue()
			}
		}
		step, err := strconv.Atoi(stepLabel)
		if err != nil || step < 0 {
			return nil, fmt.Errorf("sample has invalid %s label %q", labelTimestep, stepLabel)
		}

		a, ok := byStep[step]
		if !ok {
			a = &amplitude{}
			byStep[step] = a
		}
		v := sampleValue(m)
		switch part {
		case "", "real":
			a.re = v
		case "imag":
			a.im = v
		case "probability":
			a.prob = v
			a.haveProb = true
		default:
			return nil, fmt.Errorf("timestep %d: unknown %s %q", step, labelPart, part)
		}
	}

	steps := make([]int, 0, len(byStep))
	for s := range byStep {
		steps = append(steps, s)
	}
	sort.Ints(steps)

	out := make([]float64, len(steps))
	for i, s := range steps {
		if s != i {
			return nil, fmt.Errorf("timestep %d missing", i)
		}
		a := byStep[s]
		if a.haveProb {
			out[i] = a.prob
		} else {
			out[i] = a.re*a.re + a.im*a.im
		}
	}
	return out, nil
}

// sampleValue returns the gauge, counter or untyped value of m.
func sampleValue(m *dto.Metric) float64 {
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}

// Registry holds one Loader per configured trace source.
type Registry struct {
	ids     []string
	loaders map[string]Loader
	sources map[string]config.TraceSource
}

// NewRegistry builds loaders for every source. Sources whose loader cannot be
// built are logged and skipped.
func NewRegistry(sources []config.TraceSource) *Registry {
	r := &Registry{
		loaders: make(map[string]Loader, len(sources)),
		sources: make(map[string]config.TraceSource, len(sources)),
	}
	for _, src := range sources {
		l, err := New(src)
		if err != nil {
			slog.Error("skipping trace source, could not build loader", "source", src.ID, "err", err)
			continue
		}
		r.ids = append(r.ids, src.ID)
		r.loaders[src.ID] = l
		r.sources[src.ID] = src
		slog.Info("registered trace source", "id", src.ID, "type", src.Type)
	}
	return r
}

// IDs returns the registered source IDs in configuration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Load fetches the trace for id.
func (r *Registry) Load(ctx context.Context, id string) (*Trace, error) {
	l, ok := r.loaders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, id)
	}
	return l.Load(ctx)
}
