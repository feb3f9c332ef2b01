package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/alchemy/internal/cli/output"
	"github.com/leapstack-labs/alchemy/internal/experiment"
	"github.com/leapstack-labs/alchemy/internal/metrics"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	NoStore     bool
	Concurrency int
	Replicates  int
	MetricsFile string
}

// ReplicateJSON is one replicate in the JSON output of run.
type ReplicateJSON struct {
	Replicate  int            `json:"replicate"`
	RunID      string         `json:"run_id,omitempty"`
	Seed       string         `json:"seed"`
	Collisions int            `json:"collisions"`
	Productive int            `json:"productive"`
	Rejected   map[string]int `json:"rejected"`
	Polls      []PollJSON     `json:"polls"`
	DurationMS int64          `json:"duration_ms"`
}

// PollJSON is one poll in JSON output.
type PollJSON struct {
	Collisions int                `json:"collisions"`
	Values     map[string]float64 `json:"values"`
	Top        []TopTermJSON      `json:"top,omitempty"`
	State      []string           `json:"state,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <experiment.yaml>",
		Short: "Run an experiment",
		Long: `Run every replicate of an experiment file and record the results.

An experiment names its initial population, the reactor limits, the number
of collisions, how often to poll and which measurements to take. Replicates
run concurrently, each with a seed derived from the reactor seed. Every run
and poll is recorded in the state database unless --no-store is given.`,
		Example: `  alchemy run experiments/skk.yaml
  alchemy run experiments/skk.yaml --replicates 8 --concurrency 4
  alchemy run experiments/skk.yaml --no-store -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExperiment(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoStore, "no-store", false, "Do not record results in the state database")
	cmd.Flags().IntVarP(&opts.Concurrency, "concurrency", "j", 0, "Replicates run at once (default GOMAXPROCS)")
	cmd.Flags().IntVar(&opts.Replicates, "replicates", 0, "Override the number of replicates")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file")

	return cmd
}

func runExperiment(cmd *cobra.Command, path string, opts *RunOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	spec, err := experiment.Load(path)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("replicates") {
		spec.Replicates = opts.Replicates
		if err := spec.Validate(); err != nil {
			return err
		}
	}

	runnerOpts := []experiment.Option{
		experiment.WithLogger(cmdCtx.Logger),
		experiment.WithConcurrency(opts.Concurrency),
	}
	if !opts.NoStore {
		store, cleanup, err := openStore(cmdCtx.Cfg, cmdCtx.Logger)
		if err != nil {
			return err
		}
		defer cleanup()
		runnerOpts = append(runnerOpts, experiment.WithStore(store))
	}
	var m *metrics.Metrics
	if opts.MetricsFile != "" {
		m = metrics.New()
		runnerOpts = append(runnerOpts, experiment.WithMetrics(m))
	}

	start := time.Now()
	result, err := experiment.NewRunner(runnerOpts...).Run(cmd.Context(), spec)
	if err != nil {
		return fmt.Errorf("experiment %s failed: %w", spec.Name, err)
	}
	if m != nil {
		if err := m.WriteTextfile(opts.MetricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	reps := make([]ReplicateJSON, len(result.Replicates))
	for i, rep := range result.Replicates {
		reps[i] = replicateJSON(rep)
	}
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]any{"name": result.Name, "replicates": reps})
	}

	r.Header(1, fmt.Sprintf("Experiment %s", result.Name))
	rows := make([][]any, len(reps))
	for i, rep := range reps {
		rows[i] = []any{rep.Replicate, rep.RunID, shortSeed(rep.Seed), rep.Collisions, rep.Productive, finalValue(rep, "len"), finalValue(rep, "entropy")}
	}
	if err := r.Table([]string{"Replicate", "Run", "Seed", "Collisions", "Productive", "Len", "Entropy"}, rows); err != nil {
		return err
	}
	r.Println()
	r.Success(fmt.Sprintf("Completed %d replicate(s) in %s", len(reps), time.Since(start).Round(time.Millisecond)))
	return nil
}

func replicateJSON(rep *experiment.ReplicateResult) ReplicateJSON {
	out := ReplicateJSON{
		Replicate:  rep.Replicate,
		RunID:      rep.RunID,
		Seed:       rep.Seed,
		Collisions: rep.Stats.Collisions,
		Productive: rep.Stats.Productive,
		Rejected:   rejectedByName(rep.Stats),
		Polls:      make([]PollJSON, len(rep.Polls)),
		DurationMS: rep.Duration.Milliseconds(),
	}
	for i, p := range rep.Polls {
		values := make(map[string]float64, len(p.Values))
		for m, v := range p.Values {
			values[string(m)] = v
		}
		out.Polls[i] = PollJSON{Collisions: p.Collisions, Values: values, State: p.State}
		if p.TopK != nil {
			out.Polls[i].Top = topTermsJSON(p.TopK)
		}
	}
	return out
}

// finalValue returns a measurement from the last poll, or "-".
func finalValue(rep ReplicateJSON, name string) string {
	if len(rep.Polls) == 0 {
		return "-"
	}
	v, ok := rep.Polls[len(rep.Polls)-1].Values[name]
	if !ok {
		return "-"
	}
	return formatValue(v)
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.4f", v)
}

// shortSeed abbreviates a hex seed for tables.
func shortSeed(seed string) string {
	if len(seed) <= 12 {
		return seed
	}
	return seed[:12] + "…"
}
