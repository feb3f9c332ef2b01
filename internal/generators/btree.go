// Package generators produces random lambda terms for seeding and perturbing
// soups. Each generator owns a pseudorandom source keyed by its config seed,
// so two generators built from the same config yield the same sequence.
package generators

import (
	"fmt"
	"math/rand/v2"

	"github.com/leapstack-labs/alchemy/internal/config"
	"github.com/leapstack-labs/alchemy/pkg/lambda"
)

// BTreeGen grows terms as random binary trees with a fixed node budget.
type BTreeGen struct {
	cfg config.BTreeGenConfig
	rng *rand.Rand

	// distinct free variables introduced into the current term
	freeUsed int
}

// NewBTreeGen validates cfg and returns a generator seeded from cfg.Seed.
func NewBTreeGen(cfg config.BTreeGenConfig) (*BTreeGen, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("btree generator: %w", err)
	}
	return &BTreeGen{cfg: cfg, rng: cfg.Seed.Rand()}, nil
}

// Config returns the generator configuration.
func (g *BTreeGen) Config() config.BTreeGenConfig { return g.cfg }

// Generate builds one term and advances the generator.
//
// Every node spends one unit of the size budget. A budget of one is a leaf,
// two is an abstraction over a leaf, and anything larger is an abstraction or
// an application chosen with equal odds, the application splitting what
// remains between its two sides at random. A node with no binder in scope
// that may not reference a free variable is always an abstraction, so such
// terms can exceed the budget by one node.
func (g *BTreeGen) Generate() *lambda.Term {
	g.freeUsed = 0
	t := g.grow(g.cfg.Size, 0)
	return Standardize(t, g.cfg.Standardization)
}

// GenerateN returns n terms from sequential Generate calls.
func (g *BTreeGen) GenerateN(n int) []*lambda.Term {
	out := make([]*lambda.Term, 0, max(n, 0))
	for range n {
		out = append(out, g.Generate())
	}
	return out
}

func (g *BTreeGen) canUseFree() bool {
	return g.cfg.MaxFreeVars > 0 && g.cfg.FreeVarProbability > 0
}

func (g *BTreeGen) grow(budget, binders int) *lambda.Term {
	if binders == 0 && !g.canUseFree() {
		return lambda.Abs(g.grow(budget-1, 1))
	}
	switch {
	case budget <= 1:
		return g.leaf(binders)
	case budget == 2:
		return lambda.Abs(g.leaf(binders + 1))
	case g.rng.IntN(2) == 0:
		return lambda.Abs(g.grow(budget-1, binders+1))
	default:
		left := 1 + g.rng.IntN(budget-2)
		fn := g.grow(left, binders)
		arg := g.grow(budget-1-left, binders)
		return lambda.App(fn, arg)
	}
}

func (g *BTreeGen) leaf(binders int) *lambda.Term {
	free := binders == 0
	if !free && g.canUseFree() {
		free = g.rng.Float64() < g.cfg.FreeVarProbability
	}
	if !free {
		return lambda.Var(1 + g.rng.IntN(binders))
	}
	// Reuse an existing free variable or open the next one while the
	// budget allows.
	limit := min(g.freeUsed+1, g.cfg.MaxFreeVars)
	j := 1 + g.rng.IntN(limit)
	g.freeUsed = max(g.freeUsed, j)
	return lambda.Var(binders + j)
}
