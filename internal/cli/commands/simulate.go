package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/alchemy/internal/analysis"
	"github.com/leapstack-labs/alchemy/internal/cli/output"
	"github.com/leapstack-labs/alchemy/internal/experiment"
	"github.com/leapstack-labs/alchemy/internal/generators"
	"github.com/leapstack-labs/alchemy/internal/metrics"
	"github.com/leapstack-labs/alchemy/internal/soup"
	"github.com/leapstack-labs/alchemy/pkg/lambda"
)

// SimulateOptions holds options for the simulate command.
type SimulateOptions struct {
	Generate    string
	Count       int
	Collisions  int
	Poll        int
	Top         int
	Seed        string
	Log         bool
	MetricsFile string
}

// EntropyPoint is the population entropy after a number of collisions.
type EntropyPoint struct {
	Collisions int     `json:"collisions"`
	Entropy    float64 `json:"entropy"`
}

// TopTermJSON is one ranked term in JSON output.
type TopTermJSON struct {
	Rank  int    `json:"rank"`
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// SimulationJSON is the JSON output of simulate.
type SimulationJSON struct {
	Seed          string         `json:"seed"`
	Initial       int            `json:"initial"`
	Len           int            `json:"len"`
	Collisions    int            `json:"collisions"`
	Productive    int            `json:"productive"`
	Rejected      map[string]int `json:"rejected"`
	Unique        int            `json:"unique"`
	Entropy       float64        `json:"entropy"`
	EntropySeries []EntropyPoint `json:"entropy_series,omitempty"`
	Top           []TopTermJSON  `json:"top"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand() *cobra.Command {
	opts := &SimulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate [terms-file...]",
		Short: "Run a soup of lambda terms",
		Long: `Fill a soup with terms and let random pairs react.

Each collision applies one random term to another and reduces the result to
normal form. Products that reduce within the step and depth limits, are not
the identity, differ from both parents and introduce no free variables
replace the term they were applied to.

Terms are read one per line from the given files, from stdin, or generated
with --generate.`,
		Example: `  # Simulate 10000 collisions on 500 generated terms
  alchemy simulate --generate btree --count 500 -n 10000

  # Print the entropy every 1000 collisions
  alchemy simulate terms.txt -n 10000 --poll 1000

  # Export reaction statistics for the node exporter
  alchemy simulate terms.txt --metrics-file alchemy.prom`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Generate, "generate", "g", "", "Generate the initial terms (btree|fontana)")
	cmd.Flags().IntVar(&opts.Count, "count", 1000, "Number of terms to generate")
	cmd.Flags().IntVarP(&opts.Collisions, "collisions", "n", 10000, "Number of collisions")
	cmd.Flags().IntVar(&opts.Poll, "poll", 0, "Record the entropy every N collisions")
	cmd.Flags().IntVar(&opts.Top, "top", 10, "Number of most frequent terms to show")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "Reactor seed as 64 hex digits")
	cmd.Flags().BoolVar(&opts.Log, "log", false, "Log every reaction at debug level")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	cmd.Flags().Int("step-limit", 0, "Beta steps allowed per reaction")
	cmd.Flags().Int("depth-limit", 0, "Term depth allowed during reduction")
	cmd.Flags().Int("capacity", 0, "Maximum number of terms in the soup")

	_ = cmd.RegisterFlagCompletionFunc("generate", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"btree", "fontana"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runSimulate(cmd *cobra.Command, args []string, opts *SimulateOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	if opts.Collisions < 0 || opts.Poll < 0 || opts.Top < 0 {
		return fmt.Errorf("--collisions, --poll and --top must not be negative")
	}
	if opts.Generate != "" && len(args) > 0 {
		return fmt.Errorf("--generate cannot be combined with terms files")
	}

	initial, err := initialTerms(cmd, args, opts)
	if err != nil {
		return err
	}

	reactor := cfg.Reactor
	if reactor.Seed, err = seedValue(opts.Seed, reactor.Seed); err != nil {
		return err
	}
	s := soup.New(reactor, soup.WithLogger(cmdCtx.Logger))
	s.Perturb(initial...)
	cmdCtx.Logger.Debug("seeded soup", "initial", len(initial), "len", s.Len(), "capacity", reactor.Capacity)

	series := simulateWithPolls(s, opts)

	st := s.Stats()
	pop := s.Snapshot()
	entropy := analysis.PopulationEntropy(pop)

	if opts.MetricsFile != "" {
		m := metrics.New()
		m.AddStats("simulate", st)
		m.SetPopulation("simulate", 0, len(pop), entropy)
		if err := m.WriteTextfile(opts.MetricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	result := SimulationJSON{
		Seed:          reactor.Seed.String(),
		Initial:       len(initial),
		Len:           len(pop),
		Collisions:    st.Collisions,
		Productive:    st.Productive,
		Rejected:      rejectedByName(st),
		Unique:        len(analysis.UniqueExpressions(pop)),
		Entropy:       entropy,
		EntropySeries: series,
		Top:           topTermsJSON(analysis.KMostFrequent(pop, opts.Top)),
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(result)
	}
	return renderSimulation(r, &result)
}

func initialTerms(cmd *cobra.Command, args []string, opts *SimulateOptions) ([]*lambda.Term, error) {
	cfg := getConfig()
	switch opts.Generate {
	case "":
		return readTerms(cmd, args)
	case "btree":
		gen, err := generators.NewBTreeGen(cfg.BTree)
		if err != nil {
			return nil, err
		}
		return gen.GenerateN(opts.Count), nil
	case "fontana":
		gen, err := generators.NewFontanaGen(cfg.Fontana)
		if err != nil {
			return nil, err
		}
		return gen.GenerateN(opts.Count), nil
	default:
		return nil, fmt.Errorf("unknown generator %q (use btree or fontana)", opts.Generate)
	}
}

// simulateWithPolls runs the collisions, sampling the entropy before the
// first and after every opts.Poll collisions. It stops early once the soup
// is too small to react.
func simulateWithPolls(s *soup.Soup, opts *SimulateOptions) []EntropyPoint {
	if opts.Poll == 0 {
		s.SimulateFor(opts.Collisions, opts.Log)
		return nil
	}
	series := []EntropyPoint{{Collisions: s.Collisions(), Entropy: s.PopulationEntropy()}}
	for done := 0; done < opts.Collisions; {
		batch := min(opts.Poll, opts.Collisions-done)
		before := s.Collisions()
		s.SimulateFor(batch, opts.Log)
		if s.Collisions() == before {
			break
		}
		done += batch
		series = append(series, EntropyPoint{Collisions: s.Collisions(), Entropy: s.PopulationEntropy()})
	}
	return series
}

func rejectedByName(st soup.Stats) map[string]int {
	out := make(map[string]int, len(st.Rejected))
	for kind, n := range st.Rejected {
		out[kind.String()] = n
	}
	return out
}

func topTermsJSON(counts []analysis.ExpressionCount) []TopTermJSON {
	top := experiment.TopTerms(counts)
	out := make([]TopTermJSON, len(top))
	for i, t := range top {
		out[i] = TopTermJSON{Rank: t.Rank, Term: t.Expression, Count: t.Count}
	}
	return out
}

func renderSimulation(r *output.Renderer, res *SimulationJSON) error {
	r.Header(1, "Simulation")
	r.KeyValue("seed", res.Seed)
	r.KeyValue("initial terms", res.Initial)
	r.KeyValue("collisions", res.Collisions)
	r.KeyValue("productive", res.Productive)
	r.KeyValue("population", res.Len)
	r.KeyValue("unique", res.Unique)
	r.KeyValue("entropy", fmt.Sprintf("%.4f", res.Entropy))
	r.Println()

	names := make([]string, 0, len(res.Rejected))
	for name := range res.Rejected {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]any, 0, len(names))
	for _, name := range names {
		rows = append(rows, []any{name, res.Rejected[name]})
	}
	r.Header(2, "Rejected reactions")
	if err := r.Table([]string{"Outcome", "Count"}, rows); err != nil {
		return err
	}
	r.Println()

	if len(res.EntropySeries) > 0 {
		rows = rows[:0]
		for _, p := range res.EntropySeries {
			rows = append(rows, []any{p.Collisions, fmt.Sprintf("%.4f", p.Entropy)})
		}
		r.Header(2, "Entropy")
		if err := r.Table([]string{"Collisions", "Entropy"}, rows); err != nil {
			return err
		}
		r.Println()
	}

	r.Header(2, "Most frequent terms")
	if len(res.Top) == 0 {
		r.Muted("(soup is empty)")
		return nil
	}
	rows = rows[:0]
	for _, t := range res.Top {
		rows = append(rows, []any{t.Rank, t.Term, t.Count})
	}
	return r.Table([]string{"Rank", "Term", "Count"}, rows)
}
