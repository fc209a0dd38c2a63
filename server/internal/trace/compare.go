package trace

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/phistack/phistack/pkg/phi"
)

// Comparison lines a trace up against the Φ sequence of the same length.
type Comparison struct {
	SourceID      string            `json:"source_id"`
	Timesteps     int               `json:"timesteps"`
	Probabilities []float64         `json:"probabilities"`
	Sequence      phi.Sequence      `json:"sequence"`
	Summary       phi.HealthSummary `json:"summary"`

	// NonVibrating lists timesteps whose digital root is outside {3, 6}.
	NonVibrating []int `json:"non_vibrating"`

	// Correlation is the Pearson correlation between probability and digital
	// root. It is 0 when either series is constant.
	Correlation float64 `json:"correlation"`

	MeanProbVibrating float64 `json:"mean_prob_vibrating"`
	MeanProbQuiet     float64 `json:"mean_prob_quiet"`
}

// Compare generates the unperturbed Φ(n, baseline) sequence with one timestep
// per trace sample and derives comparison statistics.
func Compare(tr *Trace, baseline int) (*Comparison, error) {
	if tr == nil || len(tr.Probabilities) == 0 {
		return nil, ErrNoData
	}
	n := len(tr.Probabilities)

	seq, err := phi.Generate(baseline, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("trace compare: %w", err)
	}
	sum, err := phi.Summarize(seq)
	if err != nil {
		return nil, fmt.Errorf("trace compare: %w", err)
	}

	out := &Comparison{
		SourceID:      tr.SourceID,
		Timesteps:     n,
		Probabilities: tr.Probabilities,
		Sequence:      seq,
		Summary:       sum,
		NonVibrating:  []int{},
	}

	roots := make([]float64, n)
	var vib, quiet []float64
	for i, r := range seq.Records {
		roots[i] = float64(r.DigitalRoot)
		if r.IsVibrating {
			vib = append(vib, tr.Probabilities[i])
		} else {
			quiet = append(quiet, tr.Probabilities[i])
			out.NonVibrating = append(out.NonVibrating, r.Timestep)
		}
	}

	if n > 1 {
		out.Correlation = finite(stat.Correlation(tr.Probabilities, roots, nil))
	}
	if len(vib) > 0 {
		out.MeanProbVibrating = stat.Mean(vib, nil)
	}
	if len(quiet) > 0 {
		out.MeanProbQuiet = stat.Mean(quiet, nil)
	}
	return out, nil
}

// finite maps NaN and ±Inf to 0 so the value survives JSON encoding.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
