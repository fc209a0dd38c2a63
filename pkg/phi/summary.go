package phi

import (
	"errors"
	"math"
)

// ErrEmptySequence is returned by Summarize for a sequence with no records.
var ErrEmptySequence = errors.New("phi: empty sequence")

// HealthSummary is the health score of one sequence.
type HealthSummary struct {
	VibratingCount int     `json:"vibrating_count"`
	TotalTimesteps int     `json:"total_timesteps"`
	HealthPercent  float64 `json:"health_pct"`

	// PerturbedSteps counts records whose state is StatePerturbed.
	PerturbedSteps int `json:"perturbed_steps"`
	// DecoherenceEvents lists the timesteps at which a perturbation fired.
	DecoherenceEvents []int `json:"decoherence_events"`
}

// Summarize computes the health score of s.
func Summarize(s Sequence) (HealthSummary, error) {
	if len(s.Records) == 0 {
		return HealthSummary{}, ErrEmptySequence
	}
	out := HealthSummary{
		TotalTimesteps:    len(s.Records),
		DecoherenceEvents: []int{},
	}
	for _, r := range s.Records {
		if r.IsVibrating {
			out.VibratingCount++
		}
		if r.State == StatePerturbed {
			out.PerturbedSteps++
		}
		if r.Perturbed {
			out.DecoherenceEvents = append(out.DecoherenceEvents, r.Timestep)
		}
	}
	out.HealthPercent = round2(float64(out.VibratingCount) / float64(out.TotalTimesteps) * 100)
	return out, nil
}

// round2 rounds v to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
