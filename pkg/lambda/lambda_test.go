package lambda

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	combI = `\x.x`
	combK = `\x.\y.x`
	combS = `\x.\y.\z.x z (y z)`
)

func TestParse_Print(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "identity", input: combI, want: "λa.a"},
		{name: "identity unicode", input: "λx.x", want: "λa.a"},
		{name: "true", input: combK, want: "λa.λb.a"},
		{name: "multi binder", input: `\x y.y`, want: "λa.λb.b"},
		{name: "S combinator", input: combS, want: "λa.λb.λc.a c (b c)"},
		{name: "application of abstraction", input: `(\x.x) y`, want: "(λa.a) x1"},
		{name: "abstraction argument", input: `f (\x.x)`, want: "x1 (λa.a)"},
		{name: "left associative", input: "a b c", want: "x1 x2 x3"},
		{name: "right nested", input: "a (b c)", want: "x1 (x2 x3)"},
		{name: "free under binder", input: `\x.y x`, want: "λa.x1 a"},
		{name: "shadowing", input: `\x.\x.x`, want: "λa.λb.b"},
		{name: "numbered free kept", input: `x3 x1`, want: "x3 x1"},
		{name: "named free avoids numbered", input: `y x1`, want: "x2 x1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, term.String())

			again, err := Parse(term.String())
			require.NoError(t, err)
			assert.True(t, term.Equal(again), "round trip changed %q into %q", term, again)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	inputs := []string{"", "   ", `\.x`, `\x x`, "(x", "x)", "#comment", `\x.`, "()"}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSyntax))

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, in, pe.Input)
		})
	}
}

func TestTerm_Structure(t *testing.T) {
	s := MustParse(combS)
	assert.Equal(t, KindAbs, s.Kind())
	assert.Equal(t, 10, s.Size())
	assert.Equal(t, 6, s.Depth())
	assert.False(t, s.HasFreeVars())
	assert.Nil(t, s.FreeVars())
	assert.True(t, s.IsNormal())

	open := MustParse(`\x.y (z x) y`)
	assert.True(t, open.HasFreeVars())
	assert.Equal(t, []int{1, 2}, open.FreeVars())

	redex := MustParse(`(\x.x) (\x.x)`)
	assert.False(t, redex.IsNormal())
	assert.Nil(t, redex.Body())
	assert.True(t, redex.Func().IsIdentity())
	assert.True(t, redex.Arg().IsIdentity())
}

func TestTerm_EqualIsAlphaEquivalence(t *testing.T) {
	assert.True(t, MustParse(`\x.x`).Equal(MustParse(`\y.y`)))
	assert.True(t, MustParse(`\a.\b.a b`).Equal(MustParse(`λp.λq.p q`)))
	assert.False(t, MustParse(`\x.\y.x`).Equal(MustParse(`\x.\y.y`)))
	assert.False(t, MustParse(`\x.x`).Equal(nil))

	assert.Equal(t, MustParse(combK).Key(), MustParse(`\p.\q.p`).Key())
	assert.NotEqual(t, MustParse(combK).Key(), MustParse(`\p.\q.q`).Key())
	assert.NotEqual(t, MustParse("a (b c)").Key(), MustParse("a b c").Key())
}

func TestTerm_IsIdentity(t *testing.T) {
	assert.True(t, Identity().IsIdentity())
	assert.True(t, MustParse(`\z.z`).IsIdentity())
	assert.False(t, MustParse(`\z.\y.z`).IsIdentity())
	assert.False(t, MustParse(`\z.y`).IsIdentity())
}

func TestReduce(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "already normal", input: combK, want: "λa.λb.a"},
		{name: "identity application", input: `(\x.x) y`, want: "x1"},
		{name: "SKK is identity", input: "(" + combS + ") (" + combK + ") (" + combK + ")", want: "λa.a"},
		{name: "K applied to I", input: "(" + combK + ") (" + combI + ")", want: "λa.λb.b"},
		{name: "reduces under binder", input: `\y.(\x.x) y`, want: "λa.a"},
		{name: "capture avoidance", input: `(\x.\y.x) y`, want: "λa.x1"},
		{name: "normal order discards divergent argument", input: `(\x.\y.y) ((\x.x x) (\x.x x))`, want: "λa.a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := MustParse(tt.input).Reduce(1000, 100)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
			assert.True(t, got.IsNormal())
		})
	}
}

func TestReduce_Limits(t *testing.T) {
	omega := MustParse(`(\x.x x) (\x.x x)`)
	_, steps, err := omega.Reduce(50, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStepLimit)
	assert.Equal(t, 50, steps)

	growing := MustParse(`(\x.x x x) (\x.x x x)`)
	_, _, err = growing.Reduce(1000, 10)
	assert.ErrorIs(t, err, ErrDepthLimit)

	_, _, err = MustParse(combS).Reduce(10, 3)
	assert.ErrorIs(t, err, ErrDepthLimit)

	got, steps, err := MustParse(combK).Reduce(0, 0)
	require.NoError(t, err)
	assert.Zero(t, steps)
	assert.Equal(t, "λa.λb.a", got.String())

	_, _, err = MustParse(`(\x.x) (\x.x)`).Reduce(0, 0)
	assert.ErrorIs(t, err, ErrStepLimit)
}

func TestMapVars(t *testing.T) {
	open := MustParse(`\a.x2 (x1 a)`)
	closed := open.MapVars(func(free int) *Term {
		if free == 1 {
			return Identity()
		}
		return Var(free - 1)
	})
	assert.Equal(t, "λa.x1 ((λb.b) a)", closed.String())
}

func TestConstructors(t *testing.T) {
	assert.Panics(t, func() { Var(0) })
	assert.Equal(t, "λa.λb.λc.a", Abstract(3, Var(3)).String())
	assert.Equal(t, "x1 x2 x3", Apply(Var(1), Var(2), Var(3)).String())
	assert.Equal(t, "abs", KindAbs.String())
}

func TestReadTerms(t *testing.T) {
	input := strings.Join([]string{
		combI,
		"",
		"   ",
		"(((",
		combK,
		"not ) valid",
		combS,
	}, "\n")

	terms := slices.Collect(ReadTerms(strings.NewReader(input)))
	require.Len(t, terms, 3)
	assert.True(t, terms[0].IsIdentity())
	assert.Equal(t, "λa.λb.a", terms[1].String())
	assert.Equal(t, "λa.λb.λc.a c (b c)", terms[2].String())

	var first []*Term
	for term := range ReadTerms(strings.NewReader(input)) {
		first = append(first, term)
		break
	}
	assert.Len(t, first, 1)
}

func TestParseAll(t *testing.T) {
	terms := ParseAll([]string{combI, ")", combK})
	assert.Len(t, terms, 2)
}
