package soup

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/alchemy/internal/config"
	"github.com/leapstack-labs/alchemy/internal/testutil"
	"github.com/leapstack-labs/alchemy/pkg/lambda"
)

const (
	identity = `\x.x`
	combK    = `\x.\y.x`
	combF    = `\x.\y.y`
	// applies to itself to give itself back
	selfApply = `\x.\y.x y`
)

func testConfig(capacity int) config.ReactorConfig {
	return config.ReactorConfig{
		StepLimit:  500,
		DepthLimit: 100,
		Capacity:   capacity,
		Seed:       config.ZeroSeed(),
	}
}

func newSoup(t *testing.T, capacity int, terms ...string) *Soup {
	t.Helper()
	s := New(testConfig(capacity), WithLogger(testutil.NewTestLogger(t)))
	for _, src := range terms {
		require.Equal(t, 1, s.Perturb(lambda.MustParse(src)))
	}
	return s
}

func TestSimulate_IdentityAndTrue(t *testing.T) {
	s := newSoup(t, 10, identity, combK)
	before := s.Snapshot()

	productive := s.SimulateFor(1, false)

	assert.Equal(t, 1, s.Collisions())
	assert.Equal(t, 2, s.Len())
	after := s.Snapshot()

	switch productive {
	case 0:
		for i := range before {
			assert.True(t, before[i].Equal(after[i]), "rejected reaction changed slot %d", i)
		}
	case 1:
		changed := 0
		for i := range before {
			if !before[i].Equal(after[i]) {
				changed++
				assert.False(t, after[i].Equal(before[0]))
				assert.False(t, after[i].Equal(before[1]))
			}
		}
		assert.Equal(t, 1, changed)
	default:
		t.Fatalf("one collision produced %d products", productive)
	}
}

func TestSimulate_NotEnoughExpressions(t *testing.T) {
	for _, terms := range [][]string{nil, {identity}} {
		s := newSoup(t, 10, terms...)
		assert.Zero(t, s.SimulateFor(100, true))
		assert.Zero(t, s.Collisions())
		assert.Equal(t, len(terms), s.Len())

		_, err := s.React()
		assert.ErrorIs(t, err, NotEnoughExpressions)
	}
}

func TestSimulate_CollisionsCountEveryAttempt(t *testing.T) {
	s := newSoup(t, 10, identity, combK, combF, selfApply, `\x.x x`)
	for i := 1; i <= 50; i++ {
		s.SimulateFor(1, false)
		require.Equal(t, i, s.Collisions())
	}
	s.SimulateFor(25, false)
	assert.Equal(t, 75, s.Collisions())

	st := s.Stats()
	total := st.Productive
	for _, n := range st.Rejected {
		total += n
	}
	assert.Equal(t, st.Collisions, total)
}

func TestSimulate_LenMatchesExpressions(t *testing.T) {
	s := newSoup(t, 10, identity, combK, combF, selfApply)
	s.SimulateFor(40, false)

	assert.Equal(t, s.Len(), len(slices.Collect(s.Expressions())))
	// restartable
	assert.Equal(t, s.Len(), len(slices.Collect(s.Expressions())))
}

func TestReact_Outcomes(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.ReactorConfig
		terms  []string
		want   ReactionError
		stable bool
	}{
		{name: "divergent", cfg: testConfig(4), terms: []string{`\x.x x`, `\x.x x`}, want: ExceedsReductionLimit},
		{
			name:  "growing",
			cfg:   config.ReactorConfig{StepLimit: 10000, DepthLimit: 20, Capacity: 4, Seed: config.ZeroSeed()},
			terms: []string{`\x.x x x`, `\x.x x x`},
			want:  ExceedsDepthLimit,
		},
		{name: "identity product", cfg: testConfig(4), terms: []string{combF, combF}, want: IsIdentity},
		{name: "parent product", cfg: testConfig(4), terms: []string{selfApply, selfApply}, want: IsParent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.cfg)
			s.PerturbText(tt.terms...)
			before := s.Snapshot()

			r, err := s.React()
			require.Error(t, err)
			assert.Equal(t, tt.want, err)
			assert.NotNil(t, r.Enzyme)
			assert.NotNil(t, r.Substrate)
			assert.NotEqual(t, r.EnzymeIndex, r.SubstrateIndex)
			assert.Equal(t, before, s.Snapshot())
			assert.Equal(t, 1, s.Stats().Rejected[tt.want])
		})
	}
}

func TestReact_Productive(t *testing.T) {
	s := New(testConfig(4))
	s.PerturbText(combK, identity)

	for s.Productive() == 0 {
		_, _ = s.React()
		require.Less(t, s.Collisions(), 100)
	}
	assert.Equal(t, 2, s.Len())
	assert.Contains(t, termStrings(s), "λa.λb.b")
}

func TestIntroducesFreeVars(t *testing.T) {
	enzyme := lambda.MustParse(`\a.x1 a`)
	substrate := lambda.MustParse(`x2`)

	assert.False(t, introducesFreeVars(lambda.MustParse(`\a.a`), enzyme, substrate))
	assert.False(t, introducesFreeVars(lambda.MustParse(`x1 x2`), enzyme, substrate))
	assert.True(t, introducesFreeVars(lambda.MustParse(`x3`), enzyme, substrate))
}

func TestReact_InheritedFreeVars(t *testing.T) {
	s := newSoup(t, 4, `\a.x1`, `\a.x1`)

	r, err := s.React()
	require.NoError(t, err)
	assert.Equal(t, "x1", r.Product.String())
	assert.Equal(t, []int{1}, r.Product.FreeVars())
	assert.Contains(t, termStrings(s), "x1")
	assert.Zero(t, s.Stats().Rejected[HasFreeVariables])
}

func TestSimulate_NeverAddsFreeVars(t *testing.T) {
	s := newSoup(t, 8, `\a.x1 a`, `\a.\b.x2 b a`, `x1`, combK, `\a.a x2`, identity, selfApply)
	s.SimulateFor(300, false)

	assert.Equal(t, 300, s.Collisions())
	assert.Zero(t, s.Stats().Rejected[HasFreeVariables])
	for term := range s.Expressions() {
		for _, v := range term.FreeVars() {
			assert.Contains(t, []int{1, 2}, v, term.String())
		}
	}
}

func TestPerturb_Capacity(t *testing.T) {
	s := New(testConfig(3))
	added := s.PerturbText(identity, combK, combF, selfApply, `\x.x x`)
	assert.Equal(t, 3, added)
	assert.Equal(t, []string{"λa.a", "λa.λb.a", "λa.λb.b"}, termStrings(s))

	s.SetLimit(1)
	assert.Equal(t, 3, s.Len(), "lowering the limit never evicts")
	assert.Zero(t, s.PerturbText(identity))

	s.SetLimit(5)
	assert.Equal(t, 2, s.PerturbText(`\x.x x`, `\x.x x`, `\x.x x`))
	assert.Equal(t, 5, s.Len())
}

func TestPerturb_SkipsMalformed(t *testing.T) {
	s := New(testConfig(10))
	assert.Equal(t, 2, s.PerturbText(identity, "(((", "", combK, `\.`))
	assert.Equal(t, 1, s.Perturb(nil, lambda.Identity()))
	assert.Equal(t, 3, s.Len())
}

func TestSimulate_Reproducible(t *testing.T) {
	terms := []string{identity, combK, combF, selfApply, `\x.\y.\z.x z (y z)`}
	a, b := New(testConfig(10)), New(testConfig(10))
	a.PerturbText(terms...)
	b.PerturbText(terms...)

	assert.Equal(t, a.SimulateFor(200, false), b.SimulateFor(200, false))
	assert.Equal(t, termStrings(a), termStrings(b))
	assert.Equal(t, a.Stats(), b.Stats())
	assert.InDelta(t, 1.0, a.JaccardIndex(b), 1e-12)
}

func TestSimulate_Logging(t *testing.T) {
	logger, rec := testutil.NewRecordingLogger()
	s := New(testConfig(4), WithLogger(logger))
	s.PerturbText(combF, combF)

	s.SimulateFor(3, false)
	assert.Empty(t, rec.Records())

	s.SimulateFor(3, true)
	records := rec.Records()
	require.Len(t, records, 3)
	for i, r := range records {
		attrs := testutil.Attrs(r)
		assert.Equal(t, "reaction", r.Message)
		assert.Equal(t, "λa.λb.b", attrs["enzyme"].String())
		assert.Equal(t, "λa.a", attrs["product"].String())
		assert.Equal(t, IsIdentity.String(), attrs["outcome"].String())
		assert.Equal(t, int64(4+i), attrs["collision"].Int64())
	}
}

func TestSoup_Analysis(t *testing.T) {
	s := New(testConfig(10))
	s.PerturbText(identity, identity, combK, combF)

	assert.Len(t, s.UniqueExpressions(), 3)
	assert.Len(t, s.ExpressionCounts(), 3)
	top := s.KMostFrequent(1)
	require.Len(t, top, 1)
	assert.Equal(t, 2, top[0].Count)
	assert.InDelta(t, 1.5, s.PopulationEntropy(), 1e-12)
	assert.Equal(t, 1.0, s.JaccardIndex(s))
	assert.Equal(t, 1.0, New(testConfig(1)).JaccardIndex(New(testConfig(1))))
}

func TestReactionErrors(t *testing.T) {
	kinds := ReactionErrors()
	require.Len(t, kinds, NumReactionErrors)
	seen := map[string]bool{}
	for _, k := range kinds {
		assert.NotEqual(t, "unknown", k.String())
		assert.False(t, seen[k.String()])
		seen[k.String()] = true
		assert.NotEmpty(t, k.Error())
	}
	assert.Equal(t, "productive", OutcomeName(nil))
	assert.Equal(t, "is_parent", OutcomeName(IsParent))
}

func termStrings(s *Soup) []string {
	var out []string
	for t := range s.Expressions() {
		out = append(out, t.String())
	}
	return out
}
