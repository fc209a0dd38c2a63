package alerts

import (
	"strconv"
	"strings"

	"github.com/phistack/phistack/pkg/tracker"
)

// evalCondition evaluates a rule condition string against one qubit result.
//
// Supported expressions (field operator value):
//
//	health_pct < 50
//	vibrating_count < 40
//	perturbed_steps > 10
//	decoherence_events >= 3
//	first_decoherence < 20
//	state == critical
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed or the field is unknown.
func evalCondition(cond string, q *tracker.QubitResult) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	if field == "state" {
		if op == "==" {
			return q.State == rhs, 0
		}
		if op == "!=" {
			return q.State != rhs, 0
		}
		return false, 0
	}

	v, ok := numericField(field, q)
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericField maps a field name to its value for q. The boolean is false for
// unknown fields and for first_decoherence when no perturbation fired.
func numericField(field string, q *tracker.QubitResult) (float64, bool) {
	s := q.Summary
	switch field {
	case "health_pct":
		return s.HealthPercent, true
	case "vibrating_count":
		return float64(s.VibratingCount), true
	case "perturbed_steps":
		return float64(s.PerturbedSteps), true
	case "decoherence_events":
		return float64(len(s.DecoherenceEvents)), true
	case "first_decoherence":
		if len(s.DecoherenceEvents) == 0 {
			return 0, false
		}
		return float64(s.DecoherenceEvents[0]), true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
