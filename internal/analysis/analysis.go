// Package analysis measures soup populations. Every function reads a
// snapshot of terms and never modifies it; duplicates in the snapshot are
// meaningful and counted.
package analysis

import (
	"container/heap"
	"math"

	"github.com/leapstack-labs/alchemy/pkg/lambda"
)

// ExpressionCount pairs a distinct term with its number of occurrences.
type ExpressionCount struct {
	Term  *lambda.Term
	Count int
}

// tally counts pop by term key, remembering first-occurrence order.
type tally struct {
	order  []string
	terms  map[string]*lambda.Term
	counts map[string]int
}

func newTally(pop []*lambda.Term) *tally {
	t := &tally{
		terms:  make(map[string]*lambda.Term),
		counts: make(map[string]int),
	}
	for _, term := range pop {
		if term == nil {
			continue
		}
		key := term.Key()
		if _, ok := t.terms[key]; !ok {
			t.order = append(t.order, key)
			t.terms[key] = term
		}
		t.counts[key]++
	}
	return t
}

// UniqueExpressions returns the structurally distinct terms of pop in order
// of first occurrence.
func UniqueExpressions(pop []*lambda.Term) []*lambda.Term {
	t := newTally(pop)
	out := make([]*lambda.Term, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.terms[key])
	}
	return out
}

// ExpressionCounts returns every distinct term of pop with its count, in
// order of first occurrence.
func ExpressionCounts(pop []*lambda.Term) []ExpressionCount {
	t := newTally(pop)
	out := make([]ExpressionCount, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, ExpressionCount{Term: t.terms[key], Count: t.counts[key]})
	}
	return out
}

// countHeap is a min-heap on Count.
type countHeap []ExpressionCount

func (h countHeap) Len() int           { return len(h) }
func (h countHeap) Less(i, j int) bool { return h[i].Count < h[j].Count }
func (h countHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *countHeap) Push(x any)        { *h = append(*h, x.(ExpressionCount)) }
func (h *countHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// KMostFrequent returns up to k distinct terms with the highest counts,
// ordered by ascending count. Terms with equal counts come out in no
// particular order.
func KMostFrequent(pop []*lambda.Term, k int) []ExpressionCount {
	if k <= 0 {
		return nil
	}
	h := make(countHeap, 0, k+1)
	for _, ec := range ExpressionCounts(pop) {
		heap.Push(&h, ec)
		if h.Len() > k {
			heap.Pop(&h)
		}
	}
	out := make([]ExpressionCount, 0, h.Len())
	for h.Len() > 0 {
		out = append(out, heap.Pop(&h).(ExpressionCount))
	}
	return out
}

// PopulationEntropy returns the Shannon entropy, in bits, of the distribution
// of distinct terms in pop. An empty population has entropy 0.
func PopulationEntropy(pop []*lambda.Term) float64 {
	t := newTally(pop)
	total := 0
	for _, c := range t.counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	var h float64
	for _, key := range t.order {
		p := float64(t.counts[key]) / float64(total)
		h -= p * math.Log2(p)
	}
	// A single species sums to -0.
	return math.Abs(h)
}

// JaccardIndex compares two populations as multisets: the shared count of
// each term is the smaller of its two counts. Two empty populations are
// identical and score 1.
func JaccardIndex(a, b []*lambda.Term) float64 {
	ta, tb := newTally(a), newTally(b)
	var sizeA, sizeB, shared int
	for key, ca := range ta.counts {
		sizeA += ca
		shared += min(ca, tb.counts[key])
	}
	for _, cb := range tb.counts {
		sizeB += cb
	}
	union := sizeA + sizeB - shared
	if union == 0 {
		return 1
	}
	return float64(shared) / float64(union)
}
