// Package soup implements the reaction engine: a bounded population of lambda
// terms in which randomly chosen pairs collide. The enzyme is applied to the
// substrate, the result is reduced under step and depth limits, and a valid
// product replaces the substrate.
//
// A Soup is not safe for concurrent use. Run independent replicates in
// separate Soups with distinct seeds.
package soup

import (
	"errors"
	"iter"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/leapstack-labs/alchemy/internal/analysis"
	"github.com/leapstack-labs/alchemy/internal/config"
	"github.com/leapstack-labs/alchemy/pkg/lambda"
)

// Soup is a capacity-bounded population of terms.
type Soup struct {
	terms      []*lambda.Term
	limit      int
	stepLimit  int
	depthLimit int
	rng        *rand.Rand
	logger     *slog.Logger

	collisions int
	productive int
	rejected   [NumReactionErrors + 1]int
}

// Option configures a Soup.
type Option func(*Soup)

// WithLogger sets the sink for per-reaction records. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Soup) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRand replaces the source seeded from the config.
func WithRand(rng *rand.Rand) Option {
	return func(s *Soup) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// New returns an empty soup with the limits and seed of cfg.
func New(cfg config.ReactorConfig, opts ...Option) *Soup {
	s := &Soup{
		limit:      max(cfg.Capacity, 0),
		stepLimit:  cfg.StepLimit,
		depthLimit: cfg.DepthLimit,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = cfg.Seed.Rand()
	}
	return s
}

// NewDefault returns an empty soup with the default reactor config.
func NewDefault(opts ...Option) *Soup {
	return New(config.DefaultReactorConfig(), opts...)
}

// SetLimit changes the capacity for future growth. Members beyond a smaller
// limit stay; Perturb adds nothing until the soup is back under it.
func (s *Soup) SetLimit(n int) {
	s.limit = max(n, 0)
}

// Limit returns the current capacity.
func (s *Soup) Limit() int { return s.limit }

// Perturb appends terms while there is room and returns how many were added.
// Terms past the capacity are dropped in input order; nil terms are skipped.
func (s *Soup) Perturb(terms ...*lambda.Term) int {
	added := 0
	for _, t := range terms {
		if len(s.terms) >= s.limit {
			break
		}
		if t == nil {
			continue
		}
		s.terms = append(s.terms, t)
		added++
	}
	return added
}

// PerturbText parses each entry and perturbs with the ones that parse.
func (s *Soup) PerturbText(texts ...string) int {
	return s.Perturb(lambda.ParseAll(texts)...)
}

// React performs one collision. It returns the reaction and nil when the
// product replaced the substrate, or a ReactionError naming why the soup was
// left unchanged. Every call except one failing with NotEnoughExpressions
// counts as a collision.
func (s *Soup) React() (Reaction, error) {
	n := len(s.terms)
	if n < 2 {
		return Reaction{}, NotEnoughExpressions
	}
	s.collisions++

	i := s.rng.IntN(n)
	j := s.rng.IntN(n - 1)
	if j >= i {
		j++
	}
	r := Reaction{
		Enzyme:         s.terms[i],
		Substrate:      s.terms[j],
		EnzymeIndex:    i,
		SubstrateIndex: j,
	}

	product, steps, err := lambda.App(r.Enzyme, r.Substrate).Reduce(s.stepLimit, s.depthLimit)
	r.Steps = steps
	if err != nil {
		kind := ExceedsReductionLimit
		if errors.Is(err, lambda.ErrDepthLimit) {
			kind = ExceedsDepthLimit
		}
		return r, s.reject(kind)
	}
	r.Product = product

	switch {
	case introducesFreeVars(product, r.Enzyme, r.Substrate):
		return r, s.reject(HasFreeVariables)
	case product.IsIdentity():
		return r, s.reject(IsIdentity)
	case product.Equal(r.Enzyme) || product.Equal(r.Substrate):
		return r, s.reject(IsParent)
	}

	s.terms[j] = product
	s.productive++
	return r, nil
}

func (s *Soup) reject(kind ReactionError) ReactionError {
	s.rejected[kind]++
	return kind
}

// introducesFreeVars reports whether product references a free variable
// that neither reactant references. Reduction never adds a free variable
// to App(enzyme, substrate), so with lambda.Reduce this only guards
// against a broken reducer.
func introducesFreeVars(product, enzyme, substrate *lambda.Term) bool {
	if !product.HasFreeVars() {
		return false
	}
	known := enzyme.FreeVars()
	known = append(known, substrate.FreeVars()...)
	for _, v := range product.FreeVars() {
		if !slices.Contains(known, v) {
			return true
		}
	}
	return false
}

// SimulateFor performs up to n collisions and returns how many were
// productive. It stops early when the soup has fewer than two members. With
// log set, every collision is written to the soup's logger.
func (s *Soup) SimulateFor(n int, log bool) int {
	productive := 0
	for range n {
		r, err := s.React()
		if errors.Is(err, NotEnoughExpressions) {
			if log {
				s.logger.Info("reaction", "outcome", OutcomeName(err), "len", len(s.terms))
			}
			break
		}
		if err == nil {
			productive++
		}
		if log {
			s.logReaction(r, err)
		}
	}
	return productive
}

func (s *Soup) logReaction(r Reaction, err error) {
	product := ""
	if r.Product != nil {
		product = r.Product.String()
	}
	s.logger.Info("reaction",
		"collision", s.collisions,
		"enzyme", r.Enzyme.String(),
		"substrate", r.Substrate.String(),
		"product", product,
		"steps", r.Steps,
		"outcome", OutcomeName(err),
	)
}

// Expressions yields the current members in insertion order. The sequence
// reads the soup as it is when iterated and may be ranged over again.
func (s *Soup) Expressions() iter.Seq[*lambda.Term] {
	return func(yield func(*lambda.Term) bool) {
		for _, t := range s.terms {
			if !yield(t) {
				return
			}
		}
	}
}

// Snapshot returns a copy of the current members.
func (s *Soup) Snapshot() []*lambda.Term {
	return slices.Clone(s.terms)
}

// Len returns the number of members.
func (s *Soup) Len() int { return len(s.terms) }

// Collisions returns the number of collisions since the soup was created.
func (s *Soup) Collisions() int { return s.collisions }

// Productive returns the number of accepted reactions since the soup was
// created.
func (s *Soup) Productive() int { return s.productive }

// Stats tallies collision outcomes.
type Stats struct {
	Collisions int
	Productive int
	Rejected   map[ReactionError]int
}

// Stats returns the outcome tally. Rejected holds every kind that can follow
// a collision, including those with a zero count.
func (s *Soup) Stats() Stats {
	st := Stats{
		Collisions: s.collisions,
		Productive: s.productive,
		Rejected:   make(map[ReactionError]int, NumReactionErrors),
	}
	for _, kind := range ReactionErrors() {
		if kind == NotEnoughExpressions {
			continue
		}
		st.Rejected[kind] = s.rejected[kind]
	}
	return st
}

// UniqueExpressions returns the distinct members.
func (s *Soup) UniqueExpressions() []*lambda.Term {
	return analysis.UniqueExpressions(s.terms)
}

// ExpressionCounts returns the distinct members with their counts.
func (s *Soup) ExpressionCounts() []analysis.ExpressionCount {
	return analysis.ExpressionCounts(s.terms)
}

// KMostFrequent returns up to k of the most common members, least common
// first.
func (s *Soup) KMostFrequent(k int) []analysis.ExpressionCount {
	return analysis.KMostFrequent(s.terms, k)
}

// PopulationEntropy returns the Shannon entropy of the population in bits.
func (s *Soup) PopulationEntropy() float64 {
	return analysis.PopulationEntropy(s.terms)
}

// JaccardIndex returns the multiset similarity of two soups.
func (s *Soup) JaccardIndex(other *Soup) float64 {
	return analysis.JaccardIndex(s.terms, other.terms)
}
