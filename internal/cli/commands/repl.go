package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"go.starlark.net/starlark"

	alchemystar "github.com/leapstack-labs/alchemy/internal/starlark"
)

const (
	replPrompt         = "alchemy> "
	replContinuePrompt = "     ...> "
)

// lineReader is the part of *readline.Instance the REPL loop uses.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	var maxSteps uint64

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive Starlark session",
		Long: `Start an interactive Starlark session with the soup builtins predeclared.

Globals persist between inputs. A line ending in ':' opens a block that is
closed by an empty line. Tab completes global names.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			interp := alchemystar.NewInterpreter(
				alchemystar.WithOutput(cmd.OutOrStdout()),
				alchemystar.WithLogger(cmdCtx.Logger),
				alchemystar.WithMaxSteps(maxSteps),
				alchemystar.WithDir(loadDir(cmdCtx.Cfg.ProjectRoot)),
			)
			session := interp.NewSession()

			historyFile := ""
			if cmdCtx.Cfg.StatePath != ":memory:" {
				historyFile = filepath.Join(filepath.Dir(cmdCtx.Cfg.StatePath), "repl_history")
			}
			rl, err := readline.NewEx(&readline.Config{
				Prompt:          replPrompt,
				HistoryFile:     historyFile,
				AutoComplete:    newGlobalsCompleter(session),
				InterruptPrompt: "^C",
				EOFPrompt:       ".quit",
			})
			if err != nil {
				return fmt.Errorf("failed to initialize REPL: %w", err)
			}
			defer func() { _ = rl.Close() }()

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Alchemy Starlark REPL")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
			_, _ = fmt.Fprintln(cmd.OutOrStdout())

			return runREPL(cmd.Context(), rl, session, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().Uint64Var(&maxSteps, "max-steps", 0, "Abort an input after this many Starlark steps (0 = unlimited)")
	return cmd
}

// runREPL reads chunks until EOF or .quit and runs each in session.
func runREPL(ctx context.Context, rl lineReader, session *alchemystar.Session, out, errOut io.Writer) error {
	var block strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			block.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if block.Len() == 0 {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			if strings.HasPrefix(trimmed, ".") {
				if quit := handleREPLCommand(trimmed, session, out, errOut); quit {
					return nil
				}
				continue
			}
			if !strings.HasSuffix(trimmed, ":") {
				evalChunk(ctx, session, line, out, errOut)
				continue
			}
		}

		// Accumulate an indented block until an empty line
		if strings.TrimSpace(line) != "" {
			block.WriteString(line)
			block.WriteString("\n")
			rl.SetPrompt(replContinuePrompt)
			continue
		}
		rl.SetPrompt(replPrompt)
		chunk := block.String()
		block.Reset()
		evalChunk(ctx, session, chunk, out, errOut)
	}
}

func evalChunk(ctx context.Context, session *alchemystar.Session, src string, out, errOut io.Writer) {
	v, err := session.Run(ctx, src)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		return
	}
	if v != nil && v != starlark.None {
		_, _ = fmt.Fprintln(out, v.String())
	}
}

// handleREPLCommand runs a dot-command and reports whether to quit.
func handleREPLCommand(line string, session *alchemystar.Session, out, errOut io.Writer) bool {
	switch strings.Fields(line)[0] {
	case ".quit", ".exit":
		return true
	case ".help":
		printREPLHelp(out)
	case ".names":
		_, _ = fmt.Fprintln(out, strings.Join(session.Names(), " "))
	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", line)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .names          List global names
  .quit / .exit   Exit the REPL

Builtins:
  Soup(config=None)         Reactor(step_limit, depth_limit, capacity, seed)
  BTreeGen(...)             FontanaGen(...)
  Standardization(tag)      read_terms(text)
  decode_hex(text)          encode_hex(bytes)

Tips:
  - Expressions print their value
  - End a line with ':' to start a block, finish it with an empty line
  - Tab completes global names
`
	_, _ = fmt.Fprintln(w, help)
}

// newGlobalsCompleter completes global names, read at completion time so
// new definitions are offered.
func newGlobalsCompleter(session *alchemystar.Session) *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItemDynamic(func(string) []string { return session.Names() }),
		readline.PcItem(".help"),
		readline.PcItem(".names"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
