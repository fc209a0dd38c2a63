package tracker

// State constants returned by StateFor.
const (
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateCritical = "critical"
	StateUnknown  = "unknown"
)

// Thresholds that map a health percentage to a state.
const (
	ThresholdHealthy  = 85.0
	ThresholdDegraded = 60.0
)

// StateFor converts a 0–100 health percentage to a state string.
func StateFor(healthPct float64) string {
	switch {
	case healthPct >= ThresholdHealthy:
		return StateHealthy
	case healthPct >= ThresholdDegraded:
		return StateDegraded
	default:
		return StateCritical
	}
}
