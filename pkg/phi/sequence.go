package phi

import (
	"errors"
	"fmt"
)

// DefaultBaseline is the reference multiplier k of Φ(n,k).
const DefaultBaseline = 3

// DefaultReplacements are the multipliers a perturbation switches to.
// None of them is a multiple of 3, so a perturbed sequence never vibrates.
var DefaultReplacements = []int{2, 4, 5, 7}

// ErrInvalidInput is returned when Generate rejects its arguments.
var ErrInvalidInput = errors.New("phi: invalid input")

// State labels a record by the multiplier in force at that timestep.
type State string

const (
	StateBaseline  State = "baseline"
	StatePerturbed State = "perturbed"
)

// Record is one timestep of a Sequence.
type Record struct {
	Timestep    int   `json:"timestep"`
	Multiplier  int   `json:"multiplier"`
	DigitalRoot int   `json:"digital_root"`
	IsVibrating bool  `json:"is_vibrating"`
	State       State `json:"state"`

	// Perturbed is true when a perturbation draw fired at this timestep,
	// even if the replacement happened to equal the previous multiplier.
	Perturbed bool `json:"perturbed,omitempty"`
}

// Sequence is the ordered, gap-free list of records for timesteps 0..n-1.
type Sequence struct {
	Baseline int      `json:"baseline"`
	Records  []Record `json:"records"`
}

// Len returns the number of timesteps in s.
func (s Sequence) Len() int { return len(s.Records) }

// Roots returns the digital roots of s in timestep order.
func (s Sequence) Roots() []int {
	out := make([]int, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.DigitalRoot
	}
	return out
}

// Perturbation replaces the active multiplier with a uniformly chosen
// replacement whenever a per-step draw is below Probability. The replacement
// persists until the next draw that fires.
type Perturbation struct {
	Probability  float64
	Replacements []int
}

// Rand is the random source Generate draws from. *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Validate checks that p is usable.
func (p *Perturbation) Validate() error {
	if p.Probability < 0 || p.Probability > 1 {
		return fmt.Errorf("%w: perturbation probability %v outside [0, 1]", ErrInvalidInput, p.Probability)
	}
	if len(p.Replacements) == 0 {
		return fmt.Errorf("%w: perturbation needs at least one replacement multiplier", ErrInvalidInput)
	}
	for _, m := range p.Replacements {
		if m < 1 {
			return fmt.Errorf("%w: replacement multiplier %d must be >= 1", ErrInvalidInput, m)
		}
	}
	return nil
}

// Generate returns the Φ(n, baseline) sequence for timesteps 0..timesteps-1.
//
// p may be nil, in which case rng is ignored and the result depends only on
// baseline and timesteps. When p is set, one draw is taken from rng per
// timestep, plus one more to pick the replacement when the draw fires.
func Generate(baseline, timesteps int, p *Perturbation, rng Rand) (Sequence, error) {
	if baseline < 1 {
		return Sequence{}, fmt.Errorf("%w: baseline multiplier %d must be >= 1", ErrInvalidInput, baseline)
	}
	if timesteps < 1 {
		return Sequence{}, fmt.Errorf("%w: timestep count %d must be >= 1", ErrInvalidInput, timesteps)
	}
	if p != nil {
		if err := p.Validate(); err != nil {
			return Sequence{}, err
		}
		if rng == nil {
			return Sequence{}, fmt.Errorf("%w: perturbation requires a random source", ErrInvalidInput)
		}
	}

	seq := Sequence{
		Baseline: baseline,
		Records:  make([]Record, 0, timesteps),
	}
	active := baseline
	for t := 0; t < timesteps; t++ {
		fired := false
		if p != nil && rng.Float64() < p.Probability {
			active = p.Replacements[rng.Intn(len(p.Replacements))]
			fired = true
		}
		root := RootAt(active, t)
		seq.Records = append(seq.Records, Record{
			Timestep:    t,
			Multiplier:  active,
			DigitalRoot: root,
			IsVibrating: IsVibrating(root),
			State:       Classify(active, baseline),
			Perturbed:   fired,
		})
	}
	return seq, nil
}

// Classify labels a multiplier relative to the baseline.
func Classify(multiplier, baseline int) State {
	if multiplier == baseline {
		return StateBaseline
	}
	return StatePerturbed
}
