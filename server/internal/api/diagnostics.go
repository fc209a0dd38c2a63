package api

import (
	"fmt"
	"strings"

	"github.com/phistack/phistack/pkg/tracker"
)

// DiagnosticHint is one human-readable insight about a qubit's health.
// The UI displays these as chips on the qubit card.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level  string `json:"level"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

// maxListedEvents caps how many decoherence timesteps are spelled out in a hint.
const maxListedEvents = 5

// computeDiagnostics derives hints from one qubit's sequence.
// Ordered critical first, then warnings, then info.
func computeDiagnostics(q *tracker.QubitResult) []DiagnosticHint {
	var hints []DiagnosticHint
	s := q.Summary
	baseline := q.Sequence.Baseline

	// ── Health level ─────────────────────────────────────────────────────────
	pct := s.HealthPercent
	switch q.State {
	case tracker.StateCritical:
		hints = append(hints, DiagnosticHint{
			Key:   "low_health",
			Level: "critical",
			Title: fmt.Sprintf("%.1f%% vibrating", pct),
			Detail: fmt.Sprintf(
				"Only %d of %d timesteps stayed in the {3, 6} band. "+
					"The multiplier spent %d steps away from the baseline of %d.",
				s.VibratingCount, s.TotalTimesteps, s.PerturbedSteps, baseline,
			),
			Value: &pct,
		})
	case tracker.StateDegraded:
		hints = append(hints, DiagnosticHint{
			Key:   "low_health",
			Level: "warning",
			Title: fmt.Sprintf("%.1f%% vibrating", pct),
			Detail: fmt.Sprintf(
				"%d of %d timesteps left the {3, 6} band after decoherence.",
				s.TotalTimesteps-s.VibratingCount, s.TotalTimesteps,
			),
			Value: &pct,
		})
	}

	// ── Decoherence events ───────────────────────────────────────────────────
	if n := len(s.DecoherenceEvents); n > 0 {
		first := float64(s.DecoherenceEvents[0])
		listed := s.DecoherenceEvents
		suffix := ""
		if n > maxListedEvents {
			listed = listed[:maxListedEvents]
			suffix = fmt.Sprintf(" and %d more", n-maxListedEvents)
		}
		ts := make([]string, len(listed))
		for i, t := range listed {
			ts[i] = fmt.Sprintf("t=%d", t)
		}
		hints = append(hints, DiagnosticHint{
			Key:   "decoherence",
			Level: "info",
			Title: fmt.Sprintf("Decohered at t=%d", s.DecoherenceEvents[0]),
			Detail: fmt.Sprintf(
				"The multiplier was replaced %d time(s): %s%s.",
				n, strings.Join(ts, ", "), suffix,
			),
			Value: &first,
		})
	}

	// ── All clear ────────────────────────────────────────────────────────────
	if s.TotalTimesteps > 0 && s.VibratingCount == s.TotalTimesteps {
		hints = append(hints, DiagnosticHint{
			Key:    "coherent",
			Level:  "ok",
			Title:  "Fully coherent",
			Detail: fmt.Sprintf("Every one of %d timesteps vibrated.", s.TotalTimesteps),
		})
	}

	if hints == nil {
		hints = []DiagnosticHint{}
	}
	return hints
}
