// Package trace loads externally sourced qubit probability traces and lines
// them up against the Φ(n,3) sequence for side-by-side comparison.
//
// Traces are read in the Prometheus text exposition format, either from an
// HTTP endpoint (type "prometheus") or from a file on disk (type "file").
// Each sample of the configured metric family carries a "timestep" label and
// a "part" label of real, imag or probability:
//
//	qdataset_state_amplitude{timestep="0",part="real"} 0.7071
//	qdataset_state_amplitude{timestep="0",part="imag"} 0.7071
//
// The probability of |0⟩ at a timestep is real² + imag², or the sample value
// itself when part is "probability". Timesteps must be contiguous from 0.
//
// Authentication for HTTP sources (mTLS, API key, bearer, basic) is handled
// by the authRoundTripper in client.go. CheckCert (certs.go) reports the
// expiry of the leaf certificate behind an HTTPS source. Compare (compare.go) never feeds data
// back into package phi; it only generates a fresh sequence of equal length.
package trace
