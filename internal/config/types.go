// Package config provides the shared configuration types for alchemy: seeds,
// reactor limits and generator parameters. It is decoupled from CLI concerns
// so the Starlark bindings and the experiment runner can build the same
// values the command line does.
package config

import (
	"fmt"
)

// Standardization selects how a generated term's free variables are renumbered.
type Standardization int

// Standardization strategies.
const (
	// StandardizationNone keeps the generator's own numbering.
	StandardizationNone Standardization = iota
	// StandardizationPrefix numbers free variables outer-to-inner: the
	// variable with the shallowest occurrence becomes 1.
	StandardizationPrefix
	// StandardizationPostfix numbers free variables inner-to-outer: the
	// variable with the deepest occurrence becomes 1.
	StandardizationPostfix
)

// ParseStandardization accepts exactly "prefix", "postfix" or "none".
func ParseStandardization(tag string) (Standardization, error) {
	switch tag {
	case "prefix":
		return StandardizationPrefix, nil
	case "postfix":
		return StandardizationPostfix, nil
	case "none":
		return StandardizationNone, nil
	default:
		return StandardizationNone, fmt.Errorf("%w: invalid standardization type %q (want prefix, postfix or none)", ErrInvalidArgument, tag)
	}
}

func (s Standardization) String() string {
	switch s {
	case StandardizationPrefix:
		return "prefix"
	case StandardizationPostfix:
		return "postfix"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Standardization) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Standardization) UnmarshalText(text []byte) error {
	parsed, err := ParseStandardization(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ReactorConfig holds the limits of a soup.
type ReactorConfig struct {
	// StepLimit bounds the beta steps of a single reaction.
	StepLimit int `koanf:"step_limit" yaml:"step_limit"`
	// DepthLimit bounds the depth of every intermediate reduct.
	DepthLimit int `koanf:"depth_limit" yaml:"depth_limit"`
	// Capacity bounds the population size.
	Capacity int  `koanf:"capacity" yaml:"capacity"`
	Seed     Seed `koanf:"seed" yaml:"seed"`
}

// Validate checks the reactor limits.
func (c ReactorConfig) Validate() error {
	if c.StepLimit < 0 {
		return fmt.Errorf("%w: step_limit must be >= 0, got %d", ErrInvalidArgument, c.StepLimit)
	}
	if c.DepthLimit < 1 {
		return fmt.Errorf("%w: depth_limit must be >= 1, got %d", ErrInvalidArgument, c.DepthLimit)
	}
	if c.Capacity < 0 {
		return fmt.Errorf("%w: capacity must be >= 0, got %d", ErrInvalidArgument, c.Capacity)
	}
	return nil
}

// BTreeGenConfig parameterizes the binary-tree term generator.
type BTreeGenConfig struct {
	// Size is the node budget of each generated term.
	Size int `koanf:"size" yaml:"size"`
	// FreeVarProbability is the chance that a leaf references a free variable.
	FreeVarProbability float64 `koanf:"freevar_probability" yaml:"freevar_probability"`
	// MaxFreeVars bounds the distinct free variables of one term.
	MaxFreeVars     int             `koanf:"max_free_vars" yaml:"max_free_vars"`
	Standardization Standardization `koanf:"standardization" yaml:"standardization"`
	Seed            Seed            `koanf:"seed" yaml:"seed"`
}

// Validate checks the generator parameters.
func (c BTreeGenConfig) Validate() error {
	if c.Size < 1 {
		return fmt.Errorf("%w: size must be >= 1, got %d", ErrInvalidArgument, c.Size)
	}
	if err := checkProbability("freevar_probability", c.FreeVarProbability); err != nil {
		return err
	}
	if c.MaxFreeVars < 0 {
		return fmt.Errorf("%w: max_free_vars must be >= 0, got %d", ErrInvalidArgument, c.MaxFreeVars)
	}
	return nil
}

// FontanaGenConfig parameterizes the depth-bounded recursive generator.
// Each range holds the probability at depth 0 and at MaxDepth; values in
// between are interpolated linearly.
type FontanaGenConfig struct {
	AbstractionRange [2]float64 `koanf:"abstraction_range" yaml:"abstraction_range"`
	ApplicationRange [2]float64 `koanf:"application_range" yaml:"application_range"`
	MaxDepth         int        `koanf:"max_depth" yaml:"max_depth"`
	MaxFreeVars      int        `koanf:"max_free_vars" yaml:"max_free_vars"`
	Seed             Seed       `koanf:"seed" yaml:"seed"`
}

// Validate checks the generator parameters.
func (c FontanaGenConfig) Validate() error {
	for i, p := range c.AbstractionRange {
		if err := checkProbability(fmt.Sprintf("abstraction_range[%d]", i), p); err != nil {
			return err
		}
	}
	for i, p := range c.ApplicationRange {
		if err := checkProbability(fmt.Sprintf("application_range[%d]", i), p); err != nil {
			return err
		}
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("%w: max_depth must be >= 1, got %d", ErrInvalidArgument, c.MaxDepth)
	}
	if c.MaxFreeVars < 0 {
		return fmt.Errorf("%w: max_free_vars must be >= 0, got %d", ErrInvalidArgument, c.MaxFreeVars)
	}
	return nil
}

func checkProbability(name string, p float64) error {
	if p < 0 || p > 1 || p != p {
		return fmt.Errorf("%w: %s must be within [0, 1], got %v", ErrInvalidArgument, name, p)
	}
	return nil
}

// Settings groups every simulation section of a configuration file.
type Settings struct {
	Reactor ReactorConfig    `koanf:"reactor"`
	BTree   BTreeGenConfig   `koanf:"btree"`
	Fontana FontanaGenConfig `koanf:"fontana"`
}
