package tracker

import (
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/phistack/phistack/pkg/phi"
)

// Default parameters, matching the initial slider positions of the dashboard.
const (
	DefaultQubits            = 5
	DefaultTimesteps         = 100
	DefaultDecoherenceChance = 0.03
	DefaultMaxQubits         = 10
	DefaultMaxTimesteps      = 200
)

// Params describes one simulation run.
type Params struct {
	Baseline          int     `json:"baseline" yaml:"baseline"`
	Qubits            int     `json:"qubits" yaml:"qubits"`
	Timesteps         int     `json:"timesteps" yaml:"timesteps"`
	DecoherenceChance float64 `json:"decoherence_chance" yaml:"decoherence_chance"`
	Replacements      []int   `json:"replacements" yaml:"replacements"`

	// Seed selects the random source. Zero means derive one from the clock;
	// the derived seed is recorded on the Run.
	Seed int64 `json:"seed" yaml:"seed"`
}

// DefaultParams returns the stock simulation parameters.
func DefaultParams() Params {
	return Params{
		Baseline:          phi.DefaultBaseline,
		Qubits:            DefaultQubits,
		Timesteps:         DefaultTimesteps,
		DecoherenceChance: DefaultDecoherenceChance,
		Replacements:      slices.Clone(phi.DefaultReplacements),
	}
}

// Limits bounds the size of a run.
type Limits struct {
	MaxQubits    int `json:"max_qubits" yaml:"max_qubits"`
	MaxTimesteps int `json:"max_timesteps" yaml:"max_timesteps"`
}

// DefaultLimits returns the stock run limits.
func DefaultLimits() Limits {
	return Limits{MaxQubits: DefaultMaxQubits, MaxTimesteps: DefaultMaxTimesteps}
}

// Validate checks p against lim. Every count must be positive: zero is
// rejected rather than read as "use the default". Perturbation checks are left
// to phi.Generate.
func (p Params) Validate(lim Limits) error {
	if p.Baseline < 1 {
		return fmt.Errorf("%w: baseline multiplier %d must be >= 1", phi.ErrInvalidInput, p.Baseline)
	}
	if p.Qubits < 1 || (lim.MaxQubits > 0 && p.Qubits > lim.MaxQubits) {
		return fmt.Errorf("%w: qubits %d out of range [1, %d]", phi.ErrInvalidInput, p.Qubits, lim.MaxQubits)
	}
	if p.Timesteps < 1 || (lim.MaxTimesteps > 0 && p.Timesteps > lim.MaxTimesteps) {
		return fmt.Errorf("%w: timesteps %d out of range [1, %d]", phi.ErrInvalidInput, p.Timesteps, lim.MaxTimesteps)
	}
	return nil
}

// QubitResult is the simulated sequence and health of one qubit.
type QubitResult struct {
	Name     string            `json:"name"`
	Sequence phi.Sequence      `json:"sequence"`
	Summary  phi.HealthSummary `json:"summary"`
	State    string            `json:"state"`
}

// Aggregate summarises health across all qubits of a run.
type Aggregate struct {
	MeanHealthPct   float64 `json:"mean_health_pct"`
	StdDevHealthPct float64 `json:"stddev_health_pct"`
	MinHealthPct    float64 `json:"min_health_pct"`
	MaxHealthPct    float64 `json:"max_health_pct"`
	State           string  `json:"state"`
}

// Run is the result of one simulation.
type Run struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Params    Params        `json:"params"`
	Qubits    []QubitResult `json:"qubits"`
	Aggregate Aggregate     `json:"aggregate"`
}

// Engine runs simulations against a mutable set of default parameters.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	mu       sync.RWMutex
	defaults Params
	limits   Limits

	now   func() time.Time // injectable for deterministic tests
	newID func() string
}

// NewEngine returns an Engine using defaults for omitted Params fields.
func NewEngine(defaults Params, limits Limits) *Engine {
	return &Engine{
		defaults: defaults,
		limits:   limits,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// Defaults returns a copy of the current default parameters.
func (e *Engine) Defaults() Params {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d := e.defaults
	d.Replacements = slices.Clone(d.Replacements)
	return d
}

// Limits returns the current run limits.
func (e *Engine) Limits() Limits {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.limits
}

// Reconfigure replaces the defaults and limits used by subsequent runs.
func (e *Engine) Reconfigure(defaults Params, limits Limits) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defaults = defaults
	e.limits = limits
}

// Run simulates p exactly as given. Callers that want the configured
// defaults start from Defaults() and override fields.
func (e *Engine) Run(p Params) (*Run, error) {
	lim := e.Limits()

	if err := p.Validate(lim); err != nil {
		return nil, fmt.Errorf("tracker: %w", err)
	}

	now := e.now()
	if p.Seed == 0 {
		p.Seed = now.UnixNano()
	}
	rng := rand.New(rand.NewSource(p.Seed))
	pert := &phi.Perturbation{Probability: p.DecoherenceChance, Replacements: p.Replacements}

	run := &Run{
		ID:        e.newID(),
		CreatedAt: now,
		Params:    p,
		Qubits:    make([]QubitResult, 0, p.Qubits),
	}
	for q := 0; q < p.Qubits; q++ {
		seq, err := phi.Generate(p.Baseline, p.Timesteps, pert, rng)
		if err != nil {
			return nil, fmt.Errorf("tracker: %w", err)
		}
		sum, err := phi.Summarize(seq)
		if err != nil {
			return nil, fmt.Errorf("tracker: %w", err)
		}
		run.Qubits = append(run.Qubits, QubitResult{
			Name:     fmt.Sprintf("Qubit %d", q+1),
			Sequence: seq,
			Summary:  sum,
			State:    StateFor(sum.HealthPercent),
		})
	}
	run.Aggregate = aggregate(run.Qubits)
	return run, nil
}

// aggregate computes cross-qubit health statistics.
func aggregate(qs []QubitResult) Aggregate {
	if len(qs) == 0 {
		return Aggregate{State: StateUnknown}
	}
	pcts := make([]float64, len(qs))
	for i, q := range qs {
		pcts[i] = q.Summary.HealthPercent
	}
	agg := Aggregate{
		MeanHealthPct: stat.Mean(pcts, nil),
		MinHealthPct:  slices.Min(pcts),
		MaxHealthPct:  slices.Max(pcts),
	}
	// StdDev is NaN for a single sample.
	if len(pcts) > 1 {
		agg.StdDevHealthPct = stat.StdDev(pcts, nil)
	}
	agg.State = StateFor(agg.MeanHealthPct)
	return agg
}
