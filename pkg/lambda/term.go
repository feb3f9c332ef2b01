// Package lambda provides the untyped lambda-calculus terms that populate a soup.
//
// Terms use 1-based de Bruijn indices: Var(1) refers to the nearest enclosing
// abstraction. Because bound variables carry no names, structural equality of
// two terms is alpha-equivalence. Free variables are indices that point past
// the outermost binder; the free variable k of a closed context is printed as
// "x<k>".
//
// Terms are immutable. Constructors precompute size, depth, the largest free
// index and whether the term is in normal form, so those reads are O(1) and
// reduction can skip subterms that have nothing left to do.
package lambda

import (
	"slices"
	"strconv"
	"strings"
)

// Kind identifies the shape of a term node.
type Kind uint8

// Term kinds.
const (
	KindVar Kind = iota
	KindAbs
	KindApp
)

func (k Kind) String() string {
	switch k {
	case KindVar:
		return "var"
	case KindAbs:
		return "abs"
	case KindApp:
		return "app"
	default:
		return "unknown"
	}
}

// Term is an immutable lambda-calculus expression.
type Term struct {
	kind  Kind
	index int   // de Bruijn index (KindVar)
	left  *Term // body (KindAbs) or function (KindApp)
	right *Term // argument (KindApp)

	size   int
	depth  int
	free   int // largest free index relative to this node, 0 when closed
	normal bool
}

// Var returns a variable reference. Indices start at 1.
func Var(index int) *Term {
	if index < 1 {
		panic("lambda: variable index must be >= 1, got " + strconv.Itoa(index))
	}
	return &Term{kind: KindVar, index: index, size: 1, depth: 1, free: index, normal: true}
}

// Abs returns the abstraction λ.body.
func Abs(body *Term) *Term {
	return &Term{
		kind:   KindAbs,
		left:   body,
		size:   body.size + 1,
		depth:  body.depth + 1,
		free:   max(body.free-1, 0),
		normal: body.normal,
	}
}

// App returns the application (fn arg).
func App(fn, arg *Term) *Term {
	return &Term{
		kind:   KindApp,
		left:   fn,
		right:  arg,
		size:   fn.size + arg.size + 1,
		depth:  max(fn.depth, arg.depth) + 1,
		free:   max(fn.free, arg.free),
		normal: fn.kind != KindAbs && fn.normal && arg.normal,
	}
}

// Abstract wraps body in n abstractions.
func Abstract(n int, body *Term) *Term {
	for range n {
		body = Abs(body)
	}
	return body
}

// Apply builds the left-associated application fn a1 a2 ... an.
func Apply(fn *Term, args ...*Term) *Term {
	for _, a := range args {
		fn = App(fn, a)
	}
	return fn
}

// Identity returns λx.x.
func Identity() *Term {
	return Abs(Var(1))
}

// Kind reports the node kind.
func (t *Term) Kind() Kind { return t.kind }

// Index returns the de Bruijn index of a variable, or 0 for other kinds.
func (t *Term) Index() int { return t.index }

// Body returns the body of an abstraction, or nil.
func (t *Term) Body() *Term {
	if t.kind != KindAbs {
		return nil
	}
	return t.left
}

// Func returns the function side of an application, or nil.
func (t *Term) Func() *Term {
	if t.kind != KindApp {
		return nil
	}
	return t.left
}

// Arg returns the argument side of an application, or nil.
func (t *Term) Arg() *Term {
	return t.right
}

// Size returns the number of nodes in the term.
func (t *Term) Size() int { return t.size }

// Depth returns the nesting depth of the term. A lone variable has depth 1.
func (t *Term) Depth() int { return t.depth }

// IsNormal reports whether the term contains no beta redex.
func (t *Term) IsNormal() bool { return t.normal }

// HasFreeVars reports whether any variable escapes the outermost binder.
func (t *Term) HasFreeVars() bool { return t.free > 0 }

// FreeVars returns the distinct free variables of the term, numbered relative
// to the top of the term and sorted ascending.
func (t *Term) FreeVars() []int {
	if t.free == 0 {
		return nil
	}
	seen := make(map[int]struct{})
	collectFree(t, 0, seen)
	out := make([]int, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func collectFree(t *Term, depth int, seen map[int]struct{}) {
	if t.free <= depth {
		return
	}
	switch t.kind {
	case KindVar:
		seen[t.index-depth] = struct{}{}
	case KindAbs:
		collectFree(t.left, depth+1, seen)
	case KindApp:
		collectFree(t.left, depth, seen)
		collectFree(t.right, depth, seen)
	}
}

// Equal reports structural equality, which for de Bruijn terms is
// alpha-equivalence.
func (t *Term) Equal(u *Term) bool {
	if t == u {
		return true
	}
	if t == nil || u == nil {
		return false
	}
	if t.kind != u.kind || t.size != u.size || t.depth != u.depth || t.free != u.free {
		return false
	}
	switch t.kind {
	case KindVar:
		return t.index == u.index
	case KindAbs:
		return t.left.Equal(u.left)
	default:
		return t.left.Equal(u.left) && t.right.Equal(u.right)
	}
}

// IsIdentity reports whether the term is alpha-equivalent to λx.x.
func (t *Term) IsIdentity() bool {
	return t.kind == KindAbs && t.left.kind == KindVar && t.left.index == 1
}

// Key returns a compact canonical encoding of the term suitable as a map key.
// Two terms have the same key exactly when they are Equal.
func (t *Term) Key() string {
	var b strings.Builder
	b.Grow(t.size * 2)
	writeKey(&b, t)
	return b.String()
}

func writeKey(b *strings.Builder, t *Term) {
	switch t.kind {
	case KindVar:
		b.WriteString(strconv.Itoa(t.index))
		b.WriteByte(',')
	case KindAbs:
		b.WriteByte('L')
		writeKey(b, t.left)
	case KindApp:
		b.WriteByte('@')
		writeKey(b, t.left)
		writeKey(b, t.right)
	}
}

// MapVars rebuilds the term, replacing every free variable with the term
// returned by fn. fn receives the free index relative to the top of the term
// and must return a term valid at the top level; it is shifted under binders.
func (t *Term) MapVars(fn func(free int) *Term) *Term {
	return mapFree(t, 0, fn)
}

func mapFree(t *Term, depth int, fn func(int) *Term) *Term {
	if t.free <= depth {
		return t
	}
	switch t.kind {
	case KindVar:
		return shift(fn(t.index-depth), depth, 0)
	case KindAbs:
		return Abs(mapFree(t.left, depth+1, fn))
	default:
		return App(mapFree(t.left, depth, fn), mapFree(t.right, depth, fn))
	}
}
