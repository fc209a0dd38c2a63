// Command phitrack runs one qubit health simulation and writes the result as
// CSV, either the per-qubit health scores or the full per-timestep sequence.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/phistack/phistack/pkg/export"
	"github.com/phistack/phistack/pkg/tracker"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		slog.Error("phitrack failed", "err", err)
		os.Exit(1)
	}
}

// run parses args, simulates and writes CSV to stdout unless -out names a file.
// Logs go to stderr so stdout stays a clean table.
func run(args []string, stdout, stderr io.Writer) error {
	d := tracker.DefaultParams()
	lim := tracker.DefaultLimits()

	fs := flag.NewFlagSet("phitrack", flag.ContinueOnError)
	fs.SetOutput(stderr)
	qubits := fs.Int("qubits", d.Qubits, "number of qubits to simulate")
	timesteps := fs.Int("timesteps", d.Timesteps, "timesteps per qubit")
	chance := fs.Float64("chance", d.DecoherenceChance, "per-timestep decoherence probability in [0, 1]")
	baseline := fs.Int("baseline", d.Baseline, "baseline multiplier k")
	replacements := fs.String("replacements", joinInts(d.Replacements), "comma-separated replacement multipliers")
	seed := fs.Int64("seed", 0, "random seed; 0 derives one from the clock")
	maxQubits := fs.Int("max-qubits", lim.MaxQubits, "upper bound for -qubits")
	maxTimesteps := fs.Int("max-timesteps", lim.MaxTimesteps, "upper bound for -timesteps")
	format := fs.String("format", "health", "table to write: health | sequence")
	out := fs.String("out", "", "write CSV to this file instead of stdout")
	verbose := fs.Bool("v", false, "log debug output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level})))

	var write func(io.Writer, []tracker.QubitResult) error
	switch *format {
	case "health":
		write = export.WriteHealthCSV
	case "sequence":
		write = export.WriteSequenceCSV
	default:
		return fmt.Errorf("unknown -format %q: want health|sequence", *format)
	}

	reps, err := parseInts(*replacements)
	if err != nil {
		return fmt.Errorf("-replacements: %w", err)
	}

	// Flags already carry the defaults, so every value is passed through and
	// zero is rejected like any other out-of-range count.
	eng := tracker.NewEngine(d, tracker.Limits{MaxQubits: *maxQubits, MaxTimesteps: *maxTimesteps})
	res, err := eng.Run(tracker.Params{
		Baseline:          *baseline,
		Qubits:            *qubits,
		Timesteps:         *timesteps,
		DecoherenceChance: *chance,
		Replacements:      reps,
		Seed:              *seed,
	})
	if err != nil {
		return err
	}
	slog.Info("simulation complete",
		"run", res.ID,
		"seed", res.Params.Seed,
		"qubits", len(res.Qubits),
		"mean_health_pct", res.Aggregate.MeanHealthPct,
		"state", res.Aggregate.State,
	)
	for _, q := range res.Qubits {
		slog.Debug("qubit",
			"name", q.Name,
			"health_pct", q.Summary.HealthPercent,
			"decoherence_events", len(q.Summary.DecoherenceEvents),
		)
	}

	dst := stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		dst = f
	}
	if err := write(dst, res.Qubits); err != nil {
		return err
	}
	if *out != "" {
		slog.Info("wrote table", "format", *format, "path", *out)
	}
	return nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", f)
		}
		out = append(out, n)
	}
	return out, nil
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
