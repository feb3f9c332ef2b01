// Package config loads the alchemy CLI configuration.
//
// Settings come from defaults, then alchemy.yaml, then ALCHEMY_ environment
// variables, then explicitly set flags. The simulation sections reuse the
// types of the shared internal/config package.
package config

import (
	sharedcfg "github.com/leapstack-labs/alchemy/internal/config"
)

// ReactorConfig is an alias for the shared reactor configuration.
type ReactorConfig = sharedcfg.ReactorConfig

// BTreeGenConfig is an alias for the shared binary-tree generator configuration.
type BTreeGenConfig = sharedcfg.BTreeGenConfig

// FontanaGenConfig is an alias for the shared Fontana generator configuration.
type FontanaGenConfig = sharedcfg.FontanaGenConfig

// Config holds all CLI configuration options.
type Config struct {
	StatePath    string           `koanf:"state_path"`
	Verbose      bool             `koanf:"verbose"`
	LogLevel     string           `koanf:"log_level"`
	OutputFormat string           `koanf:"output"`
	Reactor      ReactorConfig    `koanf:"reactor"`
	BTree        BTreeGenConfig   `koanf:"btree"`
	Fontana      FontanaGenConfig `koanf:"fontana"`

	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultStateFile = ".alchemy/state.db"
	DefaultLogLevel  = "info"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "ALCHEMY_"

// Default returns the configuration used when nothing is loaded.
func Default() *Config {
	s := sharedcfg.DefaultSettings()
	return &Config{
		StatePath:    DefaultStateFile,
		LogLevel:     DefaultLogLevel,
		OutputFormat: DefaultOutput,
		Reactor:      s.Reactor,
		BTree:        s.BTree,
		Fontana:      s.Fontana,
	}
}
