// Package tracker simulates qubit health runs on top of package phi.
//
// engine.go provides Engine, which holds the default Params and turns a
// Params value into a Run: one Φ sequence per qubit, drawn from a single
// seeded random source so a run is reproducible from its recorded seed.
//
// score.go maps a health percentage to a state: Healthy ≥85,
// Degraded 60–84, Critical <60.
//
// Aggregates across qubits (mean, stddev, min, max) are computed with
// gonum/stat.
package tracker
