package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/alchemy/internal/analysis"
	"github.com/leapstack-labs/alchemy/internal/cli/output"
)

// AnalysisJSON is the JSON output of analyze.
type AnalysisJSON struct {
	Len     int           `json:"len"`
	Unique  int           `json:"unique"`
	Entropy float64       `json:"entropy"`
	Top     []TopTermJSON `json:"top"`
	// Jaccard is set only with --compare.
	Jaccard *float64 `json:"jaccard,omitempty"`
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	var (
		top     int
		compare string
	)

	cmd := &cobra.Command{
		Use:   "analyze [terms-file...]",
		Short: "Summarize a population of terms",
		Long: `Read a population, one term per line, and report its size, the number
of distinct terms, its Shannon entropy and its most frequent members.

Terms are compared up to renaming of bound variables. With --compare the
Jaccard index against a second population is reported as well.`,
		Example: `  alchemy analyze snapshot.txt --top 5
  alchemy generate btree -n 100 | alchemy analyze
  alchemy analyze before.txt --compare after.txt -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			r := cmdCtx.Renderer

			if top < 0 {
				return fmt.Errorf("--top must not be negative")
			}
			pop, err := readTerms(cmd, args)
			if err != nil {
				return err
			}
			res := AnalysisJSON{
				Len:     len(pop),
				Unique:  len(analysis.UniqueExpressions(pop)),
				Entropy: analysis.PopulationEntropy(pop),
				Top:     topTermsJSON(analysis.KMostFrequent(pop, top)),
			}
			if compare != "" {
				other, err := readTerms(cmd, []string{compare})
				if err != nil {
					return err
				}
				j := analysis.JaccardIndex(pop, other)
				res.Jaccard = &j
			}
			cmdCtx.Logger.Debug("analyzed population", "len", res.Len, "unique", res.Unique)

			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(res)
			}
			return renderAnalysis(r, &res)
		},
	}

	cmd.Flags().IntVar(&top, "top", 10, "Number of most frequent terms to show")
	cmd.Flags().StringVar(&compare, "compare", "", "Second population for the Jaccard index")

	return cmd
}

func renderAnalysis(r *output.Renderer, res *AnalysisJSON) error {
	r.Header(1, "Population")
	r.KeyValue("len", res.Len)
	r.KeyValue("unique", res.Unique)
	r.KeyValue("entropy", fmt.Sprintf("%.4f", res.Entropy))
	if res.Jaccard != nil {
		r.KeyValue("jaccard", fmt.Sprintf("%.4f", *res.Jaccard))
	}
	r.Println()

	if len(res.Top) == 0 {
		return nil
	}
	rows := make([][]any, len(res.Top))
	for i, t := range res.Top {
		rows[i] = []any{t.Rank, t.Term, t.Count}
	}
	r.Header(2, "Most frequent terms")
	return r.Table([]string{"Rank", "Term", "Count"}, rows)
}
