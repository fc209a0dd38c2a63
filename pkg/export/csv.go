// Package export serialises tracker results as delimited tables: one row per
// qubit for health scores, one row per timestep for full sequences.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/phistack/phistack/pkg/tracker"
)

// Column headers of the exported tables.
var (
	HealthHeader   = []string{"Qubit", "Health Score (%)"}
	SequenceHeader = []string{"Qubit", "Timestep", "DigitalRoot", "FormState", "State"}
)

// WriteHealthCSV writes one row per qubit with its health percentage.
func WriteHealthCSV(w io.Writer, qubits []tracker.QubitResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(HealthHeader); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for _, q := range qubits {
		row := []string{q.Name, strconv.FormatFloat(q.Summary.HealthPercent, 'f', 2, 64)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: write %q: %w", q.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSequenceCSV writes one row per qubit timestep.
func WriteSequenceCSV(w io.Writer, qubits []tracker.QubitResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SequenceHeader); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for _, q := range qubits {
		for _, r := range q.Sequence.Records {
			row := []string{
				q.Name,
				strconv.Itoa(r.Timestep),
				strconv.Itoa(r.DigitalRoot),
				strconv.FormatBool(r.IsVibrating),
				string(r.State),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("export: write %q t=%d: %w", q.Name, r.Timestep, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
