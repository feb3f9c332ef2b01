package commands

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"

	"github.com/leapstack-labs/alchemy/internal/cli/output"
	"github.com/leapstack-labs/alchemy/internal/cli/testutil"
	alchemystar "github.com/leapstack-labs/alchemy/internal/starlark"
)

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewSimulateCommand(), "simulate [terms-file...]", []string{"generate", "count", "collisions", "poll", "top", "seed", "log", "metrics-file", "step-limit", "depth-limit", "capacity"}},
		{NewAnalyzeCommand(), "analyze [terms-file...]", []string{"top", "compare"}},
		{NewRunCommand(), "run <experiment.yaml>", []string{"no-store", "concurrency", "replicates", "metrics-file"}},
		{NewScriptCommand(), "script [file.star]", []string{"eval", "define", "max-steps"}},
		{NewREPLCommand(), "repl", []string{"max-steps"}},
		{NewVersionCommand("1.2.3"), "version", nil},
	}
	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}

	subs := func(cmd *cobra.Command) []string {
		var names []string
		for _, c := range cmd.Commands() {
			names = append(names, c.Name())
		}
		return names
	}
	assert.ElementsMatch(t, []string{"btree", "fontana"}, subs(NewGenerateCommand()))
	assert.ElementsMatch(t, []string{"list", "show"}, subs(NewRunsCommand()))
	assert.ElementsMatch(t, []string{"encode", "decode"}, subs(NewHexCommand()))
}

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCommand("dev")
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "alchemy vdev")
}

func TestParseDefines(t *testing.T) {
	globals, err := parseDefines([]string{"n=3", "p=0.5", "flag=true", "name=skk", "expr=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, "int", globals["n"].Type())
	assert.Equal(t, "3", globals["n"].String())
	assert.Equal(t, starlark.Float(0.5), globals["p"])
	assert.Equal(t, starlark.True, globals["flag"])
	assert.Equal(t, starlark.String("skk"), globals["name"])
	assert.Equal(t, starlark.String("a=b"), globals["expr"], "only the first = separates")
	assert.Equal(t, starlark.String(""), globals["empty"])

	_, err = parseDefines([]string{"=1"})
	assert.Error(t, err)
	_, err = parseDefines([]string{"bare"})
	assert.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "12", formatValue(12))
	assert.Equal(t, "0.5000", formatValue(0.5))
	assert.Equal(t, "-", finalValue(ReplicateJSON{}, "len"))
	rep := ReplicateJSON{Polls: []PollJSON{{Values: map[string]float64{"len": 3}}, {Values: map[string]float64{"len": 4}}}}
	assert.Equal(t, "4", finalValue(rep, "len"))
	assert.Equal(t, "-", finalValue(rep, "entropy"))
}

func TestShortSeed(t *testing.T) {
	assert.Equal(t, "none", shortSeed("none"))
	assert.Equal(t, "000000000000…", shortSeed(testutil.ZeroSeed))
}

func TestPollNames(t *testing.T) {
	polls := []PollJSON{
		{Values: map[string]float64{"len": 1, "entropy": 0}},
		{Values: map[string]float64{"unique": 1, "len": 2}},
	}
	assert.Equal(t, []string{"entropy", "len", "unique"}, pollNames(polls))
}

func TestRenderSimulation_Text(t *testing.T) {
	tr := testutil.NewTestRenderer(output.ModeText, false)
	res := &SimulationJSON{
		Seed:          "none",
		Initial:       3,
		Len:           3,
		Collisions:    10,
		Productive:    4,
		Rejected:      map[string]int{"IsParent": 6},
		Entropy:       1.5,
		EntropySeries: []EntropyPoint{{0, 1.58}, {10, 1.5}},
		Top:           []TopTermJSON{{Rank: 1, Term: "λa.a", Count: 2}},
	}
	require.NoError(t, renderSimulation(tr.Renderer, res))

	out := tr.Output()
	assert.Contains(t, out, "Simulation")
	assert.Contains(t, out, "IsParent")
	assert.Contains(t, out, "1.5000")
	assert.Contains(t, out, "λa.a")
	assert.Contains(t, out, "┌", "text mode draws boxed tables")
	testutil.AssertNoANSI(t, out)
}

func TestRenderSimulation_EmptySoup(t *testing.T) {
	tr := testutil.NewTestRenderer(output.ModeMarkdown, false)
	require.NoError(t, renderSimulation(tr.Renderer, &SimulationJSON{Rejected: map[string]int{}}))
	assert.Contains(t, tr.Output(), "(soup is empty)")
	assert.NotContains(t, tr.Output(), "## Entropy")
	testutil.AssertValidMarkdown(t, tr.Output())
}

func TestRenderLines(t *testing.T) {
	tr := testutil.NewTestRenderer(output.ModeJSON, false)
	require.NoError(t, renderLines(tr.Renderer, []string{}))
	assert.Equal(t, "[]\n", tr.Output())

	tr = testutil.NewTestRenderer(output.ModeMarkdown, false)
	require.NoError(t, renderLines(tr.Renderer, nil))
	assert.Empty(t, tr.Output())

	tr = testutil.NewTestRenderer(output.ModeText, false)
	require.NoError(t, renderLines(tr.Renderer, []string{"λa.a", "λa.λb.a"}))
	assert.Equal(t, "λa.a\nλa.λb.a\n", tr.Output())
}

// scriptedReader replays lines, then reports EOF.
type scriptedReader struct {
	lines   []string
	prompts []string
}

func (r *scriptedReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	if line == "^C" {
		return "", readline.ErrInterrupt
	}
	return line, nil
}

func (r *scriptedReader) SetPrompt(prompt string) { r.prompts = append(r.prompts, prompt) }

func runScripted(t *testing.T, lines ...string) (string, string, *scriptedReader) {
	t.Helper()
	session := alchemystar.NewInterpreter(alchemystar.WithOutput(io.Discard)).NewSession()
	rl := &scriptedReader{lines: lines}
	var out, errOut bytes.Buffer
	require.NoError(t, runREPL(context.Background(), rl, session, &out, &errOut))
	return out.String(), errOut.String(), rl
}

func TestREPL(t *testing.T) {
	t.Run("expressions and statements", func(t *testing.T) {
		out, errOut, _ := runScripted(t,
			`s = Soup()`,
			`s.perturb(["\\x.x", "\\x.\\y.x"])`,
			``,
			`s.len()`,
			`x = 1`,
		)
		assert.Equal(t, "2\n2\n", out)
		assert.Empty(t, errOut)
	})

	t.Run("blocks", func(t *testing.T) {
		out, _, rl := runScripted(t,
			`def double(n):`,
			`    return 2 * n`,
			``,
			`double(4)`,
		)
		assert.Equal(t, "8\n", out)
		assert.Equal(t, []string{replContinuePrompt, replContinuePrompt, replPrompt}, rl.prompts)
	})

	t.Run("interrupt discards a block", func(t *testing.T) {
		out, errOut, _ := runScripted(t,
			`def broken(n):`,
			`^C`,
			`1 + 1`,
		)
		assert.Equal(t, "2\n", out)
		assert.Empty(t, errOut)
	})

	t.Run("errors do not end the session", func(t *testing.T) {
		out, errOut, _ := runScripted(t,
			`undefined_name`,
			`Reactor(capacity=-1)`,
			`3`,
		)
		assert.Equal(t, "3\n", out)
		assert.Contains(t, errOut, "undefined_name")
		assert.Contains(t, errOut, "InvalidArgument")
	})

	t.Run("dot commands", func(t *testing.T) {
		out, errOut, _ := runScripted(t,
			`answer = 42`,
			`.names`,
			`.bogus`,
			`.help`,
			`.quit`,
			`1`,
		)
		assert.Contains(t, out, "answer")
		assert.Contains(t, out, "Soup")
		assert.Contains(t, out, "Commands:")
		assert.NotContains(t, out, "\n1\n", "input after .quit is not read")
		assert.Contains(t, errOut, "Unknown command: .bogus")
	})
}

func TestGlobalsCompleter(t *testing.T) {
	session := alchemystar.NewInterpreter().NewSession()
	completer := newGlobalsCompleter(session)
	require.NotNil(t, completer)

	var names []string
	for _, child := range completer.GetChildren() {
		names = append(names, string(child.GetName()))
	}
	assert.Contains(t, names, ".help ")
}
