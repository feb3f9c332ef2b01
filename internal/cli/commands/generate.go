package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/alchemy/internal/cli/output"
	intconfig "github.com/leapstack-labs/alchemy/internal/config"
	"github.com/leapstack-labs/alchemy/internal/generators"
	"github.com/leapstack-labs/alchemy/pkg/lambda"
)

// NewGenerateCommand creates the generate command and its generator
// subcommands.
func NewGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate random lambda terms",
		Long: `Generate random lambda terms with one of the stochastic generators.

Generator parameters default to the btree and fontana sections of
alchemy.yaml. Flags override them for a single invocation. Both generators
use the all-zero seed unless --seed is given, so output is reproducible.`,
	}
	cmd.AddCommand(newGenerateBTreeCommand())
	cmd.AddCommand(newGenerateFontanaCommand())
	return cmd
}

func newGenerateBTreeCommand() *cobra.Command {
	var (
		count int
		seed  string
	)
	cmd := &cobra.Command{
		Use:   "btree",
		Short: "Generate terms shaped as random binary trees",
		Example: `  # Ten terms of twenty nodes
  alchemy generate btree -n 10

  # Closed terms with postfix binder standardization
  alchemy generate btree --freevar-probability 0 --standardization postfix`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			cfg, err := btreeFlags(cmd, cmdCtx.Cfg.BTree, seed)
			if err != nil {
				return err
			}
			gen, err := generators.NewBTreeGen(cfg)
			if err != nil {
				return err
			}
			cmdCtx.Logger.Debug("generating terms", "generator", "btree", "count", count, "size", cfg.Size)
			return renderTerms(cmdCtx.Renderer, gen.GenerateN(count))
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of terms")
	cmd.Flags().Int("size", 0, "Node budget of each term")
	cmd.Flags().Float64("freevar-probability", 0, "Chance that a leaf is a free variable")
	cmd.Flags().Int("max-free-vars", 0, "Distinct free variables per term")
	cmd.Flags().String("standardization", "", "Binder standardization (prefix|postfix|none)")
	cmd.Flags().StringVar(&seed, "seed", "", "Seed as 64 hex digits")
	_ = cmd.RegisterFlagCompletionFunc("standardization", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"prefix", "postfix", "none"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func newGenerateFontanaCommand() *cobra.Command {
	var (
		count int
		seed  string
	)
	cmd := &cobra.Command{
		Use:   "fontana",
		Short: "Generate terms by depth-weighted recursive choice",
		Long: `Generate terms by recursive choice between abstraction, application and
variable, with probabilities interpolated between depth zero and max depth.
Attempts that reach max depth yield nothing, so fewer than --count terms
may be printed.`,
		Example: `  alchemy generate fontana -n 5 --abstraction-range 0.5,0.2 --max-depth 8`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			cfg, err := fontanaFlags(cmd, cmdCtx.Cfg.Fontana, seed)
			if err != nil {
				return err
			}
			gen, err := generators.NewFontanaGen(cfg)
			if err != nil {
				return err
			}
			terms := gen.GenerateN(count)
			cmdCtx.Logger.Debug("generated terms", "generator", "fontana", "attempts", count, "terms", len(terms))
			return renderTerms(cmdCtx.Renderer, terms)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of attempts")
	cmd.Flags().Float64Slice("abstraction-range", nil, "Abstraction probability at depth 0 and at max depth")
	cmd.Flags().Float64Slice("application-range", nil, "Application probability at depth 0 and at max depth")
	cmd.Flags().Int("max-depth", 0, "Depth at which an attempt fails")
	cmd.Flags().Int("max-free-vars", 0, "Distinct free variables per term")
	cmd.Flags().StringVar(&seed, "seed", "", "Seed as 64 hex digits")
	return cmd
}

// btreeFlags applies explicitly set flags on top of base.
func btreeFlags(cmd *cobra.Command, base intconfig.BTreeGenConfig, seed string) (intconfig.BTreeGenConfig, error) {
	cfg := base
	flags := cmd.Flags()
	if flags.Changed("size") {
		cfg.Size, _ = flags.GetInt("size")
	}
	if flags.Changed("freevar-probability") {
		cfg.FreeVarProbability, _ = flags.GetFloat64("freevar-probability")
	}
	if flags.Changed("max-free-vars") {
		cfg.MaxFreeVars, _ = flags.GetInt("max-free-vars")
	}
	if flags.Changed("standardization") {
		tag, _ := flags.GetString("standardization")
		mode, err := intconfig.ParseStandardization(tag)
		if err != nil {
			return cfg, fmt.Errorf("--standardization: %w", err)
		}
		cfg.Standardization = mode
	}
	var err error
	cfg.Seed, err = seedValue(seed, cfg.Seed)
	return cfg, err
}

// fontanaFlags applies explicitly set flags on top of base.
func fontanaFlags(cmd *cobra.Command, base intconfig.FontanaGenConfig, seed string) (intconfig.FontanaGenConfig, error) {
	cfg := base
	flags := cmd.Flags()
	for _, r := range []struct {
		name string
		dst  *[2]float64
	}{
		{"abstraction-range", &cfg.AbstractionRange},
		{"application-range", &cfg.ApplicationRange},
	} {
		if !flags.Changed(r.name) {
			continue
		}
		v, _ := flags.GetFloat64Slice(r.name)
		if len(v) != 2 {
			return cfg, fmt.Errorf("%w: --%s takes two probabilities, got %d", intconfig.ErrInvalidArgument, r.name, len(v))
		}
		*r.dst = [2]float64{v[0], v[1]}
	}
	if flags.Changed("max-depth") {
		cfg.MaxDepth, _ = flags.GetInt("max-depth")
	}
	if flags.Changed("max-free-vars") {
		cfg.MaxFreeVars, _ = flags.GetInt("max-free-vars")
	}
	var err error
	cfg.Seed, err = seedValue(seed, cfg.Seed)
	return cfg, err
}

// renderTerms prints terms one per line.
func renderTerms(r *output.Renderer, terms []*lambda.Term) error {
	return renderLines(r, termStrings(terms))
}

// renderLines prints term text one per line, as a code block in markdown or
// a list in JSON.
func renderLines(r *output.Renderer, lines []string) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(lines)
	case output.ModeMarkdown:
		if len(lines) == 0 {
			return nil
		}
		r.Println(output.FormatCodeBlock("", strings.Join(lines, "\n")))
	default:
		for _, l := range lines {
			r.Println(r.Styles().Term.Render(l))
		}
	}
	return nil
}
