package starlark

import (
	"errors"
	"fmt"
	"slices"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"github.com/leapstack-labs/alchemy/internal/analysis"
	"github.com/leapstack-labs/alchemy/internal/config"
	"github.com/leapstack-labs/alchemy/internal/generators"
	"github.com/leapstack-labs/alchemy/internal/soup"
	"github.com/leapstack-labs/alchemy/pkg/lambda"
)

type builtinFunc = func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

// methodSet binds the methods of a value on attribute lookup.
type methodSet map[string]builtinFunc

func (m methodSet) attr(recv starlark.Value, name string) (starlark.Value, error) {
	fn, ok := m[name]
	if !ok {
		return nil, nil
	}
	return starlark.NewBuiltin(name, fn).BindReceiver(recv), nil
}

func (m methodSet) names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func termList(terms []*lambda.Term) *starlark.List {
	out := make([]starlark.Value, len(terms))
	for i, t := range terms {
		out[i] = starlark.String(t.String())
	}
	return starlark.NewList(out)
}

// Reactor is the Starlark view of a reactor configuration.
type Reactor struct {
	cfg config.ReactorConfig
}

var _ starlark.HasAttrs = (*Reactor)(nil)

// NewReactor wraps cfg.
func NewReactor(cfg config.ReactorConfig) *Reactor { return &Reactor{cfg: cfg} }

// Config returns the wrapped configuration.
func (r *Reactor) Config() config.ReactorConfig { return r.cfg }

func (r *Reactor) String() string {
	return fmt.Sprintf("Reactor(step_limit=%d, depth_limit=%d, capacity=%d, seed=%q)",
		r.cfg.StepLimit, r.cfg.DepthLimit, r.cfg.Capacity, r.cfg.Seed.String())
}
func (r *Reactor) Type() string          { return "Reactor" }
func (r *Reactor) Freeze()               {}
func (r *Reactor) Truth() starlark.Bool  { return starlark.True }
func (r *Reactor) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: Reactor") }

func (r *Reactor) Attr(name string) (starlark.Value, error) {
	switch name {
	case "step_limit":
		return starlark.MakeInt(r.cfg.StepLimit), nil
	case "depth_limit":
		return starlark.MakeInt(r.cfg.DepthLimit), nil
	case "capacity":
		return starlark.MakeInt(r.cfg.Capacity), nil
	case "seed":
		if !r.cfg.Seed.IsSet() {
			return starlark.None, nil
		}
		return starlark.String(r.cfg.Seed.String()), nil
	}
	return nil, nil
}

func (r *Reactor) AttrNames() []string {
	return []string{"capacity", "depth_limit", "seed", "step_limit"}
}

// Standardization is the Starlark view of a free variable numbering mode.
type Standardization struct {
	mode config.Standardization
}

var _ starlark.Comparable = Standardization{}

func (s Standardization) String() string        { return fmt.Sprintf("Standardization(%q)", s.mode) }
func (s Standardization) Type() string          { return "Standardization" }
func (s Standardization) Freeze()               {}
func (s Standardization) Truth() starlark.Bool  { return starlark.True }
func (s Standardization) Hash() (uint32, error) { return uint32(s.mode) + 1, nil }

func (s Standardization) CompareSameType(op syntax.Token, y starlark.Value, _ int) (bool, error) {
	other := y.(Standardization)
	switch op {
	case syntax.EQL:
		return s.mode == other.mode, nil
	case syntax.NEQ:
		return s.mode != other.mode, nil
	}
	return false, fmt.Errorf("%s %s %s not implemented", s.Type(), op, y.Type())
}

// standardizationArg accepts a Standardization or its tag.
func standardizationArg(fn string, v starlark.Value) (config.Standardization, error) {
	switch v := v.(type) {
	case Standardization:
		return v.mode, nil
	case starlark.String:
		mode, err := config.ParseStandardization(string(v))
		if err != nil {
			return 0, &KindError{Kind: KindInvalidArgument, Err: fmt.Errorf("%s: %w", fn, err)}
		}
		return mode, nil
	}
	return 0, invalidArgument(fn, "standardization must be a Standardization or string, got %s", v.Type())
}

// Soup is the Starlark view of a reaction soup. A frozen soup rejects
// every call that changes it.
type Soup struct {
	inner  *soup.Soup
	frozen bool
}

var _ starlark.HasAttrs = (*Soup)(nil)

// Inner returns the wrapped soup.
func (s *Soup) Inner() *soup.Soup { return s.inner }

func (s *Soup) String() string {
	return fmt.Sprintf("Soup(len=%d, collisions=%d)", s.inner.Len(), s.inner.Collisions())
}
func (s *Soup) Type() string          { return "Soup" }
func (s *Soup) Freeze()               { s.frozen = true }
func (s *Soup) Truth() starlark.Bool  { return s.inner.Len() > 0 }
func (s *Soup) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: Soup") }

func (s *Soup) Attr(name string) (starlark.Value, error) { return soupMethods.attr(s, name) }
func (s *Soup) AttrNames() []string                      { return soupMethods.names() }

func (s *Soup) checkMutable(op string) error {
	if s.frozen {
		return fmt.Errorf("cannot %s frozen Soup", op)
	}
	return nil
}

var soupMethods = methodSet{
	"set_limit":          soupSetLimit,
	"perturb":            soupPerturb,
	"simulate_for":       soupSimulateFor,
	"react":              soupReact,
	"expressions":        soupExpressions,
	"len":                soupLen,
	"collisions":         soupCollisions,
	"unique_expressions": soupUniqueExpressions,
	"expression_counts":  soupExpressionCounts,
	"k_most_frequent":    soupKMostFrequent,
	"population_entropy": soupPopulationEntropy,
	"jaccard_index":      soupJaccardIndex,
	"stats":              soupStats,
}

func soupSetLimit(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s := b.Receiver().(*Soup)
	var n int
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &n); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, invalidArgument(b.Name(), "limit must be >= 0, got %d", n)
	}
	if err := s.checkMutable("set_limit of"); err != nil {
		return nil, err
	}
	s.inner.SetLimit(n)
	return starlark.None, nil
}

func soupPerturb(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s := b.Receiver().(*Soup)
	var exprs starlark.Iterable
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &exprs); err != nil {
		return nil, err
	}
	if err := s.checkMutable("perturb"); err != nil {
		return nil, err
	}
	var texts []string
	iter := exprs.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		text, ok := starlark.AsString(x)
		if !ok {
			return nil, invalidArgument(b.Name(), "expressions must be strings, got %s", x.Type())
		}
		texts = append(texts, text)
	}
	return starlark.MakeInt(s.inner.PerturbText(texts...)), nil
}

func soupSimulateFor(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s := b.Receiver().(*Soup)
	var n int
	var log bool
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n", &n, "log?", &log); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, invalidArgument(b.Name(), "n must be >= 0, got %d", n)
	}
	if err := s.checkMutable("simulate"); err != nil {
		return nil, err
	}
	return starlark.MakeInt(s.inner.SimulateFor(n, log)), nil
}

// soupReact performs one collision and describes it. Rejected reactions are
// reported in the result; only a soup too small to react raises.
func soupReact(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s := b.Receiver().(*Soup)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	if err := s.checkMutable("react in"); err != nil {
		return nil, err
	}
	r, err := s.inner.React()
	if errors.Is(err, soup.NotEnoughExpressions) {
		return nil, &KindError{Kind: KindNotEnoughExpressions, Err: err}
	}

	var kind starlark.Value = starlark.None
	var re soup.ReactionError
	if errors.As(err, &re) {
		kind = starlark.String(KindOfReaction(re).String())
	}
	product, _ := GoToStarlark(r.Product)
	return starlarkstruct.FromStringDict(starlark.String("Reaction"), starlark.StringDict{
		"enzyme":    starlark.String(r.Enzyme.String()),
		"substrate": starlark.String(r.Substrate.String()),
		"product":   product,
		"steps":     starlark.MakeInt(r.Steps),
		"outcome":   starlark.String(soup.OutcomeName(err)),
		"error":     kind,
	}), nil
}

func soupExpressions(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return termList(b.Receiver().(*Soup).inner.Snapshot()), nil
}

func soupLen(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return starlark.MakeInt(b.Receiver().(*Soup).inner.Len()), nil
}

func soupCollisions(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return starlark.MakeInt(b.Receiver().(*Soup).inner.Collisions()), nil
}

func soupUniqueExpressions(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return termList(b.Receiver().(*Soup).inner.UniqueExpressions()), nil
}

// countList renders (expression, count) pairs as a list of tuples.
func countList(counts []analysis.ExpressionCount) *starlark.List {
	out := make([]starlark.Value, len(counts))
	for i, c := range counts {
		out[i] = starlark.Tuple{starlark.String(c.Term.String()), starlark.MakeInt(c.Count)}
	}
	return starlark.NewList(out)
}

func soupExpressionCounts(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return countList(b.Receiver().(*Soup).inner.ExpressionCounts()), nil
}

func soupKMostFrequent(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var k int
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &k); err != nil {
		return nil, err
	}
	if k < 0 {
		return nil, invalidArgument(b.Name(), "k must be >= 0, got %d", k)
	}
	return countList(b.Receiver().(*Soup).inner.KMostFrequent(k)), nil
}

func soupPopulationEntropy(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return starlark.Float(b.Receiver().(*Soup).inner.PopulationEntropy()), nil
}

func soupJaccardIndex(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var other *Soup
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &other); err != nil {
		return nil, err
	}
	return starlark.Float(b.Receiver().(*Soup).inner.JaccardIndex(other.inner)), nil
}

func soupStats(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	st := b.Receiver().(*Soup).inner.Stats()
	rejected := make(map[string]int, len(st.Rejected))
	for kind, n := range st.Rejected {
		rejected[kind.String()] = n
	}
	return GoToStarlark(map[string]any{
		"collisions": st.Collisions,
		"productive": st.Productive,
		"rejected":   rejected,
	})
}

// BTreeGen is the Starlark view of a binary-tree generator.
type BTreeGen struct {
	gen *generators.BTreeGen
}

var _ starlark.HasAttrs = (*BTreeGen)(nil)

func (g *BTreeGen) String() string {
	cfg := g.gen.Config()
	return fmt.Sprintf("BTreeGen(size=%d, freevar_generation_probability=%g, max_free_vars=%d, standardization=%q)",
		cfg.Size, cfg.FreeVarProbability, cfg.MaxFreeVars, cfg.Standardization)
}
func (g *BTreeGen) Type() string          { return "BTreeGen" }
func (g *BTreeGen) Freeze()               {}
func (g *BTreeGen) Truth() starlark.Bool  { return starlark.True }
func (g *BTreeGen) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: BTreeGen") }

func (g *BTreeGen) Attr(name string) (starlark.Value, error) { return btreeMethods.attr(g, name) }
func (g *BTreeGen) AttrNames() []string                      { return btreeMethods.names() }

var btreeMethods = methodSet{
	"generate": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
			return nil, err
		}
		return starlark.String(b.Receiver().(*BTreeGen).gen.Generate().String()), nil
	},
	"generate_n": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var n int
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &n); err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, invalidArgument(b.Name(), "n must be >= 0, got %d", n)
		}
		return termList(b.Receiver().(*BTreeGen).gen.GenerateN(n)), nil
	},
}

// FontanaGen is the Starlark view of a Fontana generator.
type FontanaGen struct {
	gen *generators.FontanaGen
}

var _ starlark.HasAttrs = (*FontanaGen)(nil)

func (g *FontanaGen) String() string {
	cfg := g.gen.Config()
	return fmt.Sprintf("FontanaGen(abstraction_prob_range=(%g, %g), application_prob_range=(%g, %g), max_depth=%d, max_free_vars=%d)",
		cfg.AbstractionRange[0], cfg.AbstractionRange[1],
		cfg.ApplicationRange[0], cfg.ApplicationRange[1],
		cfg.MaxDepth, cfg.MaxFreeVars)
}
func (g *FontanaGen) Type() string          { return "FontanaGen" }
func (g *FontanaGen) Freeze()               {}
func (g *FontanaGen) Truth() starlark.Bool  { return starlark.True }
func (g *FontanaGen) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: FontanaGen") }

func (g *FontanaGen) Attr(name string) (starlark.Value, error) { return fontanaMethods.attr(g, name) }
func (g *FontanaGen) AttrNames() []string                      { return fontanaMethods.names() }

var fontanaMethods = methodSet{
	"generate": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
			return nil, err
		}
		t, ok := b.Receiver().(*FontanaGen).gen.Generate()
		if !ok {
			return starlark.None, nil
		}
		return starlark.String(t.String()), nil
	},
	"generate_n": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var n int
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &n); err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, invalidArgument(b.Name(), "n must be >= 0, got %d", n)
		}
		return termList(b.Receiver().(*FontanaGen).gen.GenerateN(n)), nil
	},
}
