package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/alchemy/internal/cli/output"
	"github.com/leapstack-labs/alchemy/internal/state"
)

// NewRunsCommand creates the runs command for inspecting recorded results.
func NewRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded experiment runs",
		Long:  `List and show the runs recorded in the state database by 'alchemy run'.`,
	}
	cmd.AddCommand(newRunsListCommand())
	cmd.AddCommand(newRunsShowCommand())
	return cmd
}

// RunJSON is a run in JSON output.
type RunJSON struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Replicate   int        `json:"replicate"`
	Seed        string     `json:"seed"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

func runJSON(run *state.Run) RunJSON {
	return RunJSON{
		ID:          run.ID,
		Name:        run.Name,
		Replicate:   run.Replicate,
		Seed:        run.Seed,
		Status:      string(run.Status),
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Error:       run.Error,
	}
}

func newRunsListCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			r := cmdCtx.Renderer

			store, cleanup, err := openStore(cmdCtx.Cfg, cmdCtx.Logger)
			if err != nil {
				return err
			}
			defer cleanup()

			runs, err := store.ListRuns(limit)
			if err != nil {
				return err
			}

			if r.EffectiveMode() == output.ModeJSON {
				out := make([]RunJSON, len(runs))
				for i, run := range runs {
					out[i] = runJSON(run)
				}
				return r.JSON(out)
			}

			r.Header(1, fmt.Sprintf("Runs (%d)", len(runs)))
			if len(runs) == 0 {
				r.Muted("No runs recorded. Start one with 'alchemy run <experiment.yaml>'.")
				return nil
			}
			rows := make([][]any, len(runs))
			for i, run := range runs {
				rows[i] = []any{run.ID, run.Name, run.Replicate, string(run.Status), run.StartedAt.Local().Format(time.DateTime)}
			}
			return r.Table([]string{"ID", "Experiment", "Replicate", "Status", "Started"}, rows)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of runs")
	return cmd
}

// RunDetailJSON is the JSON output of runs show.
type RunDetailJSON struct {
	Run      RunJSON       `json:"run"`
	Polls    []PollJSON    `json:"polls"`
	Snapshot []string      `json:"snapshot,omitempty"`
	Top      []TopTermJSON `json:"top,omitempty"`
}

func newRunsShowCommand() *cobra.Command {
	var series int
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the polls of a run",
		Long: `Show a run's measurements at every poll and its most frequent terms at
the last poll. With --series, show the population snapshot taken after that
many collisions instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			r := cmdCtx.Renderer

			store, cleanup, err := openStore(cmdCtx.Cfg, cmdCtx.Logger)
			if err != nil {
				return err
			}
			defer cleanup()

			run, err := store.GetRun(args[0])
			if err != nil {
				return err
			}
			polls, err := store.GetPolls(run.ID)
			if err != nil {
				return err
			}

			detail := RunDetailJSON{Run: runJSON(run), Polls: make([]PollJSON, len(polls))}
			for i, p := range polls {
				detail.Polls[i] = PollJSON{Collisions: p.SeriesNumber, Values: p.Values}
			}

			at := -1
			if cmd.Flags().Changed("series") {
				at = series
				if detail.Snapshot, err = store.GetSnapshot(run.ID, at); err != nil {
					return err
				}
			} else if len(polls) > 0 {
				at = polls[len(polls)-1].SeriesNumber
			}
			if at >= 0 {
				top, err := store.GetTopTerms(run.ID, at)
				if err != nil {
					return err
				}
				for _, t := range top {
					detail.Top = append(detail.Top, TopTermJSON{Rank: t.Rank, Term: t.Expression, Count: t.Count})
				}
			}

			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(detail)
			}
			return renderRunDetail(r, &detail, cmd.Flags().Changed("series"))
		},
	}
	cmd.Flags().IntVar(&series, "series", 0, "Show the snapshot taken after this many collisions")
	return cmd
}

func renderRunDetail(r *output.Renderer, d *RunDetailJSON, snapshot bool) error {
	r.Header(1, fmt.Sprintf("Run %s", d.Run.ID))
	r.KeyValue("experiment", d.Run.Name)
	r.KeyValue("replicate", d.Run.Replicate)
	r.KeyValue("seed", d.Run.Seed)
	r.KeyValue("status", d.Run.Status)
	if d.Run.Error != "" {
		r.KeyValue("error", d.Run.Error)
	}
	r.Println()

	if snapshot {
		r.Header(2, "Snapshot")
		if len(d.Snapshot) == 0 {
			r.Muted("(no snapshot at this series)")
		} else if err := renderLines(r, d.Snapshot); err != nil {
			return err
		}
		r.Println()
	} else if len(d.Polls) > 0 {
		names := pollNames(d.Polls)
		headers := append([]string{"Collisions"}, names...)
		rows := make([][]any, len(d.Polls))
		for i, p := range d.Polls {
			row := []any{p.Collisions}
			for _, name := range names {
				if v, ok := p.Values[name]; ok {
					row = append(row, formatValue(v))
				} else {
					row = append(row, "-")
				}
			}
			rows[i] = row
		}
		r.Header(2, "Polls")
		if err := r.Table(headers, rows); err != nil {
			return err
		}
		r.Println()
	}

	if len(d.Top) > 0 {
		rows := make([][]any, len(d.Top))
		for i, t := range d.Top {
			rows[i] = []any{t.Rank, t.Term, t.Count}
		}
		r.Header(2, "Most frequent terms")
		return r.Table([]string{"Rank", "Term", "Count"}, rows)
	}
	return nil
}

// pollNames returns every measurement name across polls, sorted.
func pollNames(polls []PollJSON) []string {
	seen := make(map[string]bool)
	var names []string
	for _, p := range polls {
		for name := range p.Values {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}
