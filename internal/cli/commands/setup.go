package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/alchemy/internal/cli/config"
	"github.com/leapstack-labs/alchemy/internal/cli/output"
	intconfig "github.com/leapstack-labs/alchemy/internal/config"
	"github.com/leapstack-labs/alchemy/internal/state"
	"github.com/leapstack-labs/alchemy/pkg/lambda"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration
// and the logger stored on the command context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, or the defaults when the
// command runs without the root (as in unit tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

// openStore opens and migrates the result store. The returned cleanup
// closes it.
func openStore(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, func(), error) {
	// Ensure state directory exists
	if cfg.StatePath != ":memory:" {
		if dir := filepath.Dir(cfg.StatePath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to migrate state database: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

// readTerms reads one term per line from each path, or from stdin when
// paths is empty or a path is "-". Malformed lines are skipped.
func readTerms(cmd *cobra.Command, paths []string) ([]*lambda.Term, error) {
	if len(paths) == 0 {
		paths = []string{"-"}
	}
	var terms []*lambda.Term
	for _, path := range paths {
		var r io.Reader
		if path == "-" {
			r = cmd.InOrStdin()
		} else {
			f, err := os.Open(path) //nolint:gosec // G304: path is named by the user
			if err != nil {
				return nil, fmt.Errorf("failed to open terms: %w", err)
			}
			defer func() { _ = f.Close() }()
			r = f
		}
		for t := range lambda.ReadTerms(r) {
			terms = append(terms, t)
		}
	}
	return terms, nil
}

// seedValue overrides def with a --seed flag value when one is given.
func seedValue(flag string, def intconfig.Seed) (intconfig.Seed, error) {
	if flag == "" {
		return def, nil
	}
	s, err := intconfig.ParseSeed(flag)
	if err != nil {
		return def, fmt.Errorf("--seed: %w", err)
	}
	return s, nil
}

// termStrings prints each term.
func termStrings(terms []*lambda.Term) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.String()
	}
	return out
}
