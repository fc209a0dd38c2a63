// Package phi computes the Φ(n,k) digital-root sequence and its vibration
// classification.
//
// digitalroot.go holds DigitalRoot and the mod-9 helpers. Powers of two are
// never materialised: 2^t mod 9 cycles through [1 2 4 8 7 5], so the residue
// of k·2^t is taken from the cycle and the sequence is safe for any timestep.
//
// sequence.go provides Generate, which walks timesteps 0..n-1 and optionally
// perturbs the active multiplier with a caller-supplied random source.
// Without a perturbation Generate is a pure function of its arguments.
//
// summary.go provides Summarize, the health score of a sequence: the share of
// vibrating timesteps as a percentage rounded to two decimals.
//
// A timestep is vibrating when its digital root is 3 or 6.
package phi
