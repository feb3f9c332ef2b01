package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.starlark.net/starlark"

	"github.com/leapstack-labs/alchemy/internal/cli/output"
	alchemystar "github.com/leapstack-labs/alchemy/internal/starlark"
)

// ScriptOptions holds options for the script command.
type ScriptOptions struct {
	Expr     string
	Defines  []string
	MaxSteps uint64
}

// NewScriptCommand creates the script command.
func NewScriptCommand() *cobra.Command {
	opts := &ScriptOptions{}

	cmd := &cobra.Command{
		Use:   "script [file.star]",
		Short: "Run a Starlark script against the soup builtins",
		Long: `Run a Starlark script with Soup, Reactor, Standardization, BTreeGen,
FontanaGen, decode_hex, encode_hex and read_terms predeclared.

Scripts may load() other .star files relative to their own directory.
Values defined with -D are visible as globals. With -o json the script's
public globals are printed as JSON once it finishes, and print() output goes
to stderr.`,
		Example: `  # Run a script
  alchemy script experiments/skk.star

  # Evaluate one expression
  alchemy script -e 'BTreeGen(size=5).generate_n(3)'

  # Pass parameters
  alchemy script sweep.star -D collisions=5000 -D label=baseline`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Expr, "eval", "e", "", "Evaluate an expression instead of a file")
	cmd.Flags().StringArrayVarP(&opts.Defines, "define", "D", nil, "Define a global as name=value")
	cmd.Flags().Uint64Var(&opts.MaxSteps, "max-steps", 0, "Abort after this many Starlark steps (0 = unlimited)")

	return cmd
}

func runScript(cmd *cobra.Command, args []string, opts *ScriptOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	if (opts.Expr == "") == (len(args) == 0) {
		return fmt.Errorf("give either a script file or --eval")
	}

	var printOut io.Writer = cmd.OutOrStdout()
	if r.EffectiveMode() == output.ModeJSON {
		printOut = cmd.ErrOrStderr()
	}
	interp := alchemystar.NewInterpreter(
		alchemystar.WithOutput(printOut),
		alchemystar.WithLogger(cmdCtx.Logger),
		alchemystar.WithMaxSteps(opts.MaxSteps),
		alchemystar.WithDir(loadDir(cmdCtx.Cfg.ProjectRoot)),
	)

	defines, err := parseDefines(opts.Defines)
	if err != nil {
		return err
	}
	if err := interp.AddGlobals(defines); err != nil {
		return err
	}

	if opts.Expr != "" {
		v, err := interp.Eval(cmd.Context(), opts.Expr)
		if err != nil {
			return err
		}
		return renderValue(r, v)
	}

	cmdCtx.Logger.Debug("running script", "file", args[0])
	globals, err := interp.ExecFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if r.EffectiveMode() != output.ModeJSON {
		return nil
	}
	values, err := alchemystar.GlobalsToGo(globals)
	if err != nil {
		return err
	}
	return r.JSON(values)
}

// parseDefines converts name=value pairs into globals. Values that parse as
// an int, float or bool keep that type; everything else is a string.
func parseDefines(defs []string) (starlark.StringDict, error) {
	globals := make(starlark.StringDict, len(defs))
	for _, def := range defs {
		name, value, ok := strings.Cut(def, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid define %q, expected name=value", def)
		}
		globals[name] = defineValue(value)
	}
	return globals, nil
}

func defineValue(s string) starlark.Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return starlark.MakeInt64(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return starlark.Float(f)
	}
	switch s {
	case "True", "true":
		return starlark.True
	case "False", "false":
		return starlark.False
	}
	return starlark.String(s)
}

// renderValue prints an evaluated expression.
func renderValue(r *output.Renderer, v starlark.Value) error {
	if r.EffectiveMode() == output.ModeJSON {
		goValue, err := alchemystar.ToGo(v)
		if err != nil {
			return err
		}
		return r.JSON(goValue)
	}
	if s, ok := starlark.AsString(v); ok {
		r.Println(s)
		return nil
	}
	r.Println(v.String())
	return nil
}

// loadDir is where load() resolves modules for chunks that are not files:
// the project root, or the working directory without one.
func loadDir(root string) string {
	if root != "" {
		return root
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
