package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/alchemy/pkg/lambda"
)

func terms(t *testing.T, src ...string) []*lambda.Term {
	t.Helper()
	out := make([]*lambda.Term, 0, len(src))
	for _, s := range src {
		term, err := lambda.Parse(s)
		require.NoError(t, err)
		out = append(out, term)
	}
	return out
}

func TestUniqueExpressions(t *testing.T) {
	pop := terms(t, `\x.x`, `\y.y`, `\x.\y.x`, `\x.x`, `\a.\b.b`)
	unique := UniqueExpressions(pop)
	require.Len(t, unique, 3)
	assert.Equal(t, "λa.a", unique[0].String())
	assert.Equal(t, "λa.λb.a", unique[1].String())
	assert.Equal(t, "λa.λb.b", unique[2].String())

	assert.Empty(t, UniqueExpressions(nil))
}

func TestExpressionCounts(t *testing.T) {
	pop := terms(t, `\x.x`, `\x.\y.x`, `\z.z`, `\z.z`)
	counts := ExpressionCounts(pop)
	require.Len(t, counts, 2)
	assert.Equal(t, "λa.a", counts[0].Term.String())
	assert.Equal(t, 3, counts[0].Count)
	assert.Equal(t, 1, counts[1].Count)

	total := 0
	for _, c := range counts {
		total += c.Count
	}
	assert.Equal(t, len(pop), total)
}

func TestKMostFrequent(t *testing.T) {
	pop := terms(t,
		`\x.x`, `\x.x`, `\x.x`, `\x.x`,
		`\x.\y.x`, `\x.\y.x`, `\x.\y.x`,
		`\x.\y.y`, `\x.\y.y`,
		`\x.x x`,
	)

	tests := []struct {
		k          int
		wantCounts []int
	}{
		{k: 0, wantCounts: nil},
		{k: 1, wantCounts: []int{4}},
		{k: 2, wantCounts: []int{3, 4}},
		{k: 3, wantCounts: []int{2, 3, 4}},
		{k: 10, wantCounts: []int{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		got := KMostFrequent(pop, tt.k)
		var counts []int
		for _, ec := range got {
			counts = append(counts, ec.Count)
		}
		assert.Equal(t, tt.wantCounts, counts, "k=%d", tt.k)
		assert.LessOrEqual(t, len(got), min(tt.k, len(UniqueExpressions(pop))))
	}

	top := KMostFrequent(pop, 1)
	require.Len(t, top, 1)
	assert.True(t, top[0].Term.IsIdentity())
}

func TestKMostFrequent_Ties(t *testing.T) {
	pop := terms(t, `\x.x`, `\x.\y.x`, `\x.\y.y`, `\x.x x`, `\x.x x`)
	got := KMostFrequent(pop, 2)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Count)
	assert.Equal(t, 2, got[1].Count)
	assert.Equal(t, "λa.a a", got[1].Term.String())
}

func TestPopulationEntropy(t *testing.T) {
	assert.Zero(t, PopulationEntropy(nil))

	same := terms(t, `\x.x`, `\y.y`, `\z.z`)
	assert.Zero(t, PopulationEntropy(same))
	assert.False(t, math.Signbit(PopulationEntropy(same)))

	distinct := terms(t, `\x.x`, `\x.\y.x`, `\x.\y.y`, `\x.x x`)
	assert.InDelta(t, math.Log2(4), PopulationEntropy(distinct), 1e-12)

	skewed := terms(t, `\x.x`, `\x.x`, `\x.x`, `\x.\y.x`)
	want := -(0.75*math.Log2(0.75) + 0.25*math.Log2(0.25))
	assert.InDelta(t, want, PopulationEntropy(skewed), 1e-12)
}

func TestJaccardIndex(t *testing.T) {
	a := terms(t, `\x.x`, `\x.x`, `\x.\y.x`)
	b := terms(t, `\x.x`, `\x.\y.y`)

	assert.Equal(t, 1.0, JaccardIndex(nil, nil))
	assert.Equal(t, 1.0, JaccardIndex(a, a))
	assert.Equal(t, 1.0, JaccardIndex(b, b))
	assert.Equal(t, JaccardIndex(a, b), JaccardIndex(b, a))
	// shared = 1, union = 3 + 2 - 1
	assert.InDelta(t, 0.25, JaccardIndex(a, b), 1e-12)
	assert.Zero(t, JaccardIndex(a, nil))
	assert.Zero(t, JaccardIndex(terms(t, `\x.x`), terms(t, `\x.x x`)))
}
