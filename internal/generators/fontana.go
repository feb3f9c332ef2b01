package generators

import (
	"fmt"
	"math/rand/v2"

	"github.com/leapstack-labs/alchemy/internal/config"
	"github.com/leapstack-labs/alchemy/pkg/lambda"
)

// FontanaGen grows terms top down with depth dependent odds, after the
// generator Fontana and Buss used for their AlChemy experiments.
type FontanaGen struct {
	cfg config.FontanaGenConfig
	rng *rand.Rand

	freeUsed int
}

// NewFontanaGen validates cfg and returns a generator seeded from cfg.Seed.
func NewFontanaGen(cfg config.FontanaGenConfig) (*FontanaGen, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("fontana generator: %w", err)
	}
	return &FontanaGen{cfg: cfg, rng: cfg.Seed.Rand()}, nil
}

// Config returns the generator configuration.
func (g *FontanaGen) Config() config.FontanaGenConfig { return g.cfg }

// Generate builds one term. It reports false when the walk reaches MaxDepth,
// or when it needs a variable outside every binder and MaxFreeVars is zero.
// The random draws made along the way are consumed either way.
func (g *FontanaGen) Generate() (*lambda.Term, bool) {
	g.freeUsed = 0
	return g.grow(0, 0)
}

// GenerateN makes n attempts and returns the terms that completed.
func (g *FontanaGen) GenerateN(n int) []*lambda.Term {
	var out []*lambda.Term
	for range n {
		if t, ok := g.Generate(); ok {
			out = append(out, t)
		}
	}
	return out
}

// odds interpolates the abstraction and application probabilities at depth.
func (g *FontanaGen) odds(depth int) (pAbs, pApp float64) {
	frac := float64(depth) / float64(g.cfg.MaxDepth)
	lerp := func(r [2]float64) float64 { return r[0] + (r[1]-r[0])*frac }
	return lerp(g.cfg.AbstractionRange), lerp(g.cfg.ApplicationRange)
}

func (g *FontanaGen) grow(depth, binders int) (*lambda.Term, bool) {
	if depth >= g.cfg.MaxDepth {
		return nil, false
	}
	pAbs, pApp := g.odds(depth)
	coin := g.rng.Float64()
	switch {
	case coin < pAbs:
		body, ok := g.grow(depth+1, binders+1)
		if !ok {
			return nil, false
		}
		return lambda.Abs(body), true
	case coin < pAbs+pApp:
		fn, ok := g.grow(depth+1, binders)
		if !ok {
			return nil, false
		}
		arg, ok := g.grow(depth+1, binders)
		if !ok {
			return nil, false
		}
		return lambda.App(fn, arg), true
	default:
		return g.variable(binders)
	}
}

func (g *FontanaGen) variable(binders int) (*lambda.Term, bool) {
	if binders > 0 {
		return lambda.Var(1 + g.rng.IntN(binders)), true
	}
	if g.cfg.MaxFreeVars == 0 {
		return nil, false
	}
	limit := min(g.freeUsed+1, g.cfg.MaxFreeVars)
	j := 1 + g.rng.IntN(limit)
	g.freeUsed = max(g.freeUsed, j)
	return lambda.Var(j), true
}
