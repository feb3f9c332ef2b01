package lambda

import (
	"errors"
	"fmt"
)

// Reduction failures.
var (
	// ErrStepLimit is returned when a term is still reducible after the
	// allowed number of beta steps.
	ErrStepLimit = errors.New("reduction step limit exceeded")

	// ErrDepthLimit is returned when an intermediate term grows deeper than
	// the allowed depth.
	ErrDepthLimit = errors.New("term depth limit exceeded")
)

// Reduce normalizes the term using leftmost-outermost (normal order) beta
// reduction. It performs at most stepLimit beta steps and fails as soon as an
// intermediate term exceeds depthLimit. A depthLimit <= 0 disables the depth
// check. The number of beta steps performed is returned alongside the result.
func (t *Term) Reduce(stepLimit, depthLimit int) (*Term, int, error) {
	cur := t
	if depthLimit > 0 && cur.depth > depthLimit {
		return nil, 0, fmt.Errorf("%w: depth %d > %d", ErrDepthLimit, cur.depth, depthLimit)
	}
	for steps := 0; ; steps++ {
		next, ok := step(cur)
		if !ok {
			return cur, steps, nil
		}
		if steps >= stepLimit {
			return nil, steps, fmt.Errorf("%w: %d steps", ErrStepLimit, stepLimit)
		}
		cur = next
		if depthLimit > 0 && cur.depth > depthLimit {
			return nil, steps + 1, fmt.Errorf("%w: depth %d > %d", ErrDepthLimit, cur.depth, depthLimit)
		}
	}
}

// step contracts the leftmost-outermost redex of t.
func step(t *Term) (*Term, bool) {
	if t.normal {
		return t, false
	}
	switch t.kind {
	case KindApp:
		if t.left.kind == KindAbs {
			return subst(t.left.left, 1, t.right), true
		}
		if l, ok := step(t.left); ok {
			return App(l, t.right), true
		}
		if r, ok := step(t.right); ok {
			return App(t.left, r), true
		}
	case KindAbs:
		if b, ok := step(t.left); ok {
			return Abs(b), true
		}
	}
	return t, false
}

// subst replaces Var(depth) in t with arg, lowering every index above depth
// by one to account for the binder that was consumed.
func subst(t *Term, depth int, arg *Term) *Term {
	if t.free < depth {
		return t
	}
	switch t.kind {
	case KindVar:
		if t.index == depth {
			return shift(arg, depth-1, 0)
		}
		return Var(t.index - 1)
	case KindAbs:
		return Abs(subst(t.left, depth+1, arg))
	default:
		return App(subst(t.left, depth, arg), subst(t.right, depth, arg))
	}
}

// shift adds d to every variable of t with an index above cutoff.
func shift(t *Term, d, cutoff int) *Term {
	if d == 0 || t.free <= cutoff {
		return t
	}
	switch t.kind {
	case KindVar:
		return Var(t.index + d)
	case KindAbs:
		return Abs(shift(t.left, d, cutoff+1))
	default:
		return App(shift(t.left, d, cutoff), shift(t.right, d, cutoff))
	}
}
