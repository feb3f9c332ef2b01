package starlark

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/leapstack-labs/alchemy/internal/config"
	"github.com/leapstack-labs/alchemy/internal/generators"
	"github.com/leapstack-labs/alchemy/internal/soup"
	"github.com/leapstack-labs/alchemy/pkg/lambda"
)

// builtinNames are the predeclared globals AddGlobals may not shadow.
var builtinNames = []string{
	"BTreeGen", "ErrorKind", "FontanaGen", "Reactor", "Soup", "Standardization",
	"decode_hex", "encode_hex", "read_terms",
}

// Predeclared returns the builtins every script sees.
func Predeclared() starlark.StringDict {
	kinds := make(starlark.StringDict, len(kindNames))
	for _, k := range Kinds() {
		kinds[k.String()] = starlark.String(k.String())
	}
	return starlark.StringDict{
		"Soup":            starlark.NewBuiltin("Soup", newSoup),
		"Reactor":         starlark.NewBuiltin("Reactor", newReactor),
		"Standardization": starlark.NewBuiltin("Standardization", newStandardization),
		"BTreeGen":        starlark.NewBuiltin("BTreeGen", newBTreeGen),
		"FontanaGen":      starlark.NewBuiltin("FontanaGen", newFontanaGen),
		"decode_hex":      starlark.NewBuiltin("decode_hex", decodeHex),
		"encode_hex":      starlark.NewBuiltin("encode_hex", encodeHex),
		"read_terms":      starlark.NewBuiltin("read_terms", readTerms),
		"ErrorKind":       starlarkstruct.FromStringDict(starlark.String("ErrorKind"), kinds),
	}
}

// Soup(config=None) creates an empty soup. simulate_for(log=True) writes to
// the logger of the calling thread.
func newSoup(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cfg starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "config?", &cfg); err != nil {
		return nil, err
	}
	rc := config.DefaultReactorConfig()
	switch c := cfg.(type) {
	case starlark.NoneType:
	case *Reactor:
		rc = c.cfg
	default:
		return nil, invalidArgument(b.Name(), "config must be a Reactor or None, got %s", cfg.Type())
	}
	return &Soup{inner: soup.New(rc, soup.WithLogger(threadLogger(thread)))}, nil
}

// Reactor(step_limit, depth_limit, capacity, seed) describes a soup. Every
// argument is optional; seed is 64 hex digits or 32 bytes.
func newReactor(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	cfg := config.DefaultReactorConfig()
	var seed starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"step_limit?", &cfg.StepLimit,
		"depth_limit?", &cfg.DepthLimit,
		"capacity?", &cfg.Capacity,
		"seed?", &seed,
	); err != nil {
		return nil, err
	}
	s, err := seedArg(b.Name(), seed, config.Seed{})
	if err != nil {
		return nil, err
	}
	cfg.Seed = s
	if err := cfg.Validate(); err != nil {
		return nil, &KindError{Kind: KindInvalidArgument, Err: fmt.Errorf("%s: %w", b.Name(), err)}
	}
	return NewReactor(cfg), nil
}

func newStandardization(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var tag string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &tag); err != nil {
		return nil, err
	}
	mode, err := standardizationArg(b.Name(), starlark.String(tag))
	if err != nil {
		return nil, err
	}
	return Standardization{mode: mode}, nil
}

// BTreeGen(size, freevar_generation_probability, max_free_vars,
// standardization, seed). Omitted arguments take their defaults, so
// BTreeGen() is the default generator with the all-zero seed.
func newBTreeGen(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	cfg := config.DefaultBTreeGenConfig()
	var std, seed starlark.Value = starlark.None, starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"size?", &cfg.Size,
		"freevar_generation_probability?", &cfg.FreeVarProbability,
		"max_free_vars?", &cfg.MaxFreeVars,
		"standardization?", &std,
		"seed?", &seed,
	); err != nil {
		return nil, err
	}
	if std != starlark.None {
		mode, err := standardizationArg(b.Name(), std)
		if err != nil {
			return nil, err
		}
		cfg.Standardization = mode
	}
	s, err := seedArg(b.Name(), seed, cfg.Seed)
	if err != nil {
		return nil, err
	}
	cfg.Seed = s
	gen, err := generators.NewBTreeGen(cfg)
	if err != nil {
		return nil, &KindError{Kind: KindInvalidArgument, Err: fmt.Errorf("%s: %w", b.Name(), err)}
	}
	return &BTreeGen{gen: gen}, nil
}

// FontanaGen(abstraction_prob_range, application_prob_range, max_depth,
// max_free_vars, seed). Ranges are pairs of probabilities at depth zero and
// at max_depth.
func newFontanaGen(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	cfg := config.DefaultFontanaGenConfig()
	var absRange, appRange, seed starlark.Value = starlark.None, starlark.None, starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"abstraction_prob_range?", &absRange,
		"application_prob_range?", &appRange,
		"max_depth?", &cfg.MaxDepth,
		"max_free_vars?", &cfg.MaxFreeVars,
		"seed?", &seed,
	); err != nil {
		return nil, err
	}
	var err error
	if cfg.AbstractionRange, err = pairArg(b.Name(), "abstraction_prob_range", absRange, cfg.AbstractionRange); err != nil {
		return nil, err
	}
	if cfg.ApplicationRange, err = pairArg(b.Name(), "application_prob_range", appRange, cfg.ApplicationRange); err != nil {
		return nil, err
	}
	if cfg.Seed, err = seedArg(b.Name(), seed, cfg.Seed); err != nil {
		return nil, err
	}
	gen, err := generators.NewFontanaGen(cfg)
	if err != nil {
		return nil, &KindError{Kind: KindInvalidArgument, Err: fmt.Errorf("%s: %w", b.Name(), err)}
	}
	return &FontanaGen{gen: gen}, nil
}

func decodeHex(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &text); err != nil {
		return nil, err
	}
	out, err := config.DecodeHex(text)
	if err != nil {
		return nil, &KindError{Kind: KindInvalidArgument, Err: fmt.Errorf("%s: %w", b.Name(), err)}
	}
	return starlark.Bytes(out), nil
}

func encodeHex(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var data starlark.Bytes
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &data); err != nil {
		return nil, err
	}
	return starlark.String(config.EncodeHex([]byte(data))), nil
}

// read_terms(text) parses one term per line and returns the printed form of
// each. Blank and malformed lines are skipped.
func readTerms(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &text); err != nil {
		return nil, err
	}
	var terms []*lambda.Term
	for t := range lambda.ReadTerms(strings.NewReader(text)) {
		terms = append(terms, t)
	}
	return termList(terms), nil
}

// seedArg accepts None (keep def), 64 hex digits, or 32 bytes.
func seedArg(fn string, v starlark.Value, def config.Seed) (config.Seed, error) {
	switch v := v.(type) {
	case starlark.NoneType:
		return def, nil
	case starlark.String:
		s, err := config.ParseSeed(string(v))
		if err != nil {
			return config.Seed{}, &KindError{Kind: KindInvalidArgument, Err: fmt.Errorf("%s: %w", fn, err)}
		}
		return s, nil
	case starlark.Bytes:
		if len(v) != config.SeedSize {
			return config.Seed{}, invalidArgument(fn, "seed must be %d bytes, got %d", config.SeedSize, len(v))
		}
		var b [config.SeedSize]byte
		copy(b[:], v)
		return config.NewSeed(b), nil
	}
	return config.Seed{}, invalidArgument(fn, "seed must be a string or bytes, got %s", v.Type())
}

// pairArg accepts None (keep def) or a sequence of two numbers.
func pairArg(fn, name string, v starlark.Value, def [2]float64) ([2]float64, error) {
	if v == starlark.None {
		return def, nil
	}
	seq, ok := v.(starlark.Indexable)
	if !ok || seq.Len() != 2 {
		return def, invalidArgument(fn, "%s must be a pair of numbers", name)
	}
	var out [2]float64
	for i := range out {
		f, ok := starlark.AsFloat(seq.Index(i))
		if !ok {
			return def, invalidArgument(fn, "%s[%d] must be a number, got %s", name, i, seq.Index(i).Type())
		}
		out[i] = f
	}
	return out, nil
}
