package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/alchemy/internal/cli/output"
	sharedcfg "github.com/leapstack-labs/alchemy/internal/config"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.StatePath == "" {
		return fmt.Errorf("%w: state_path is required", sharedcfg.ErrInvalidArgument)
	}
	if !output.ValidMode(c.OutputFormat) {
		return fmt.Errorf("%w: output must be one of %s, got %q",
			sharedcfg.ErrInvalidArgument, strings.Join(output.Modes(), ", "), c.OutputFormat)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if err := c.Reactor.Validate(); err != nil {
		return fmt.Errorf("reactor: %w", err)
	}
	if err := c.BTree.Validate(); err != nil {
		return fmt.Errorf("btree: %w", err)
	}
	if err := c.Fontana.Validate(); err != nil {
		return fmt.Errorf("fontana: %w", err)
	}
	return nil
}

// ParseLevel converts a log_level value. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log_level: %w", sharedcfg.ErrInvalidArgument, err)
	}
	return level, nil
}
