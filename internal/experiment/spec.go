// Package experiment runs batches of soup simulations described in YAML.
//
// An experiment names an initial population, a reactor, a collision budget
// and the measurements to poll. Replicates run concurrently, each in its own
// soup with a seed derived from the reactor seed, and every poll is recorded
// to the result store when one is configured.
package experiment

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/alchemy/internal/config"
)

// Measurement names a value computed at every poll.
type Measurement string

// Supported measurements.
const (
	MeasureLen        Measurement = "len"
	MeasureCollisions Measurement = "collisions"
	MeasureProductive Measurement = "productive"
	MeasureUnique     Measurement = "unique"
	MeasureEntropy    Measurement = "entropy"
	MeasureTopK       Measurement = "top_k"
	MeasureState      Measurement = "state"
)

// Measurements lists every supported measurement.
func Measurements() []Measurement {
	return []Measurement{
		MeasureLen, MeasureCollisions, MeasureProductive, MeasureUnique,
		MeasureEntropy, MeasureTopK, MeasureState,
	}
}

// ErrUnknownMeasurement is returned for a measurement name that is not
// implemented. It wraps config.ErrInvalidArgument.
var ErrUnknownMeasurement = fmt.Errorf("%w: unknown measurement", config.ErrInvalidArgument)

// DefaultTopK is the list length of the top_k measurement.
const DefaultTopK = 10

// Spec describes one experiment.
type Spec struct {
	Name    string               `yaml:"name"`
	Reactor config.ReactorConfig `yaml:"reactor"`
	Initial Initial              `yaml:"initial"`
	// Collisions is the number of reaction attempts per replicate.
	Collisions int `yaml:"collisions"`
	// PollEvery is the number of collisions between polls. Zero polls only
	// at the start and the end.
	PollEvery    int           `yaml:"poll_every"`
	Measurements []Measurement `yaml:"measurements"`
	TopK         int           `yaml:"top_k,omitempty"`
	Replicates   int           `yaml:"replicates"`
	// Log writes every reaction to the runner's logger.
	Log bool `yaml:"log,omitempty"`

	// dir resolves relative paths in Initial.
	dir string
}

// Initial describes the starting population. Exactly one source is used.
type Initial struct {
	Expressions []string                 `yaml:"expressions,omitempty"`
	File        string                   `yaml:"file,omitempty"`
	BTree       *config.BTreeGenConfig   `yaml:"btree,omitempty"`
	Fontana     *config.FontanaGenConfig `yaml:"fontana,omitempty"`
	// Count is the number of generator calls for BTree and Fontana.
	Count int `yaml:"count,omitempty"`
}

// UnmarshalYAML fills generator sections over their defaults, so a file
// only needs to name the parameters it changes.
func (in *Initial) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Expressions []string  `yaml:"expressions"`
		File        string    `yaml:"file"`
		BTree       yaml.Node `yaml:"btree"`
		Fontana     yaml.Node `yaml:"fontana"`
		Count       int       `yaml:"count"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*in = Initial{Expressions: raw.Expressions, File: raw.File, Count: raw.Count}
	if raw.BTree.Kind != 0 {
		cfg := config.DefaultBTreeGenConfig()
		if err := raw.BTree.Decode(&cfg); err != nil {
			return fmt.Errorf("btree: %w", err)
		}
		in.BTree = &cfg
	}
	if raw.Fontana.Kind != 0 {
		cfg := config.DefaultFontanaGenConfig()
		if err := raw.Fontana.Decode(&cfg); err != nil {
			return fmt.Errorf("fontana: %w", err)
		}
		in.Fontana = &cfg
	}
	return nil
}

// Load reads and validates an experiment file. Relative paths inside it are
// resolved against the file's directory.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is user-provided experiment file
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment: %w", err)
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	spec.dir = filepath.Dir(path)
	return spec, nil
}

// Parse decodes and validates an experiment. Unknown keys are rejected.
func Parse(data []byte) (*Spec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	spec := &Spec{Reactor: config.DefaultReactorConfig()}
	if err := dec.Decode(spec); err != nil {
		return nil, fmt.Errorf("%w: invalid experiment: %v", config.ErrInvalidArgument, err)
	}
	spec.applyDefaults()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

func (s *Spec) applyDefaults() {
	config.ApplyReactorDefaults(&s.Reactor)
	if s.Replicates == 0 {
		s.Replicates = 1
	}
	if s.TopK == 0 {
		s.TopK = DefaultTopK
	}
	if len(s.Measurements) == 0 {
		s.Measurements = []Measurement{MeasureLen, MeasureCollisions, MeasureEntropy}
	}
	if (s.Initial.BTree != nil || s.Initial.Fontana != nil) && s.Initial.Count == 0 {
		s.Initial.Count = s.Reactor.Capacity
	}
}

// Validate checks the experiment eagerly so a bad file fails before any
// simulation starts.
func (s *Spec) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, fmt.Errorf("%w: name is required", config.ErrInvalidArgument))
	}
	if err := s.Reactor.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("reactor: %w", err))
	}
	if s.Collisions < 0 {
		errs = append(errs, fmt.Errorf("%w: collisions must be >= 0", config.ErrInvalidArgument))
	}
	if s.PollEvery < 0 {
		errs = append(errs, fmt.Errorf("%w: poll_every must be >= 0", config.ErrInvalidArgument))
	}
	if s.Replicates < 1 {
		errs = append(errs, fmt.Errorf("%w: replicates must be >= 1", config.ErrInvalidArgument))
	}
	if s.TopK < 0 {
		errs = append(errs, fmt.Errorf("%w: top_k must be >= 0", config.ErrInvalidArgument))
	}
	known := Measurements()
	for _, m := range s.Measurements {
		if !slices.Contains(known, m) {
			errs = append(errs, fmt.Errorf("%w %q", ErrUnknownMeasurement, m))
		}
	}
	if err := s.Initial.validate(); err != nil {
		errs = append(errs, fmt.Errorf("initial: %w", err))
	}
	return errors.Join(errs...)
}

func (in Initial) validate() error {
	sources := 0
	if len(in.Expressions) > 0 {
		sources++
	}
	if in.File != "" {
		sources++
	}
	if in.BTree != nil {
		sources++
		if err := in.BTree.Validate(); err != nil {
			return fmt.Errorf("btree: %w", err)
		}
	}
	if in.Fontana != nil {
		sources++
		if err := in.Fontana.Validate(); err != nil {
			return fmt.Errorf("fontana: %w", err)
		}
	}
	if sources != 1 {
		return fmt.Errorf("%w: exactly one of expressions, file, btree or fontana is required, got %d", config.ErrInvalidArgument, sources)
	}
	if in.Count < 0 {
		return fmt.Errorf("%w: count must be >= 0", config.ErrInvalidArgument)
	}
	return nil
}

// Measures reports whether m is requested.
func (s *Spec) Measures(m Measurement) bool {
	return slices.Contains(s.Measurements, m)
}

// YAML returns the normalized experiment as YAML.
func (s *Spec) YAML() (string, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode experiment: %w", err)
	}
	return string(out), nil
}

// resolve returns path relative to the experiment file.
func (s *Spec) resolve(path string) string {
	if filepath.IsAbs(path) || s.dir == "" {
		return path
	}
	return filepath.Join(s.dir, path)
}
