package generators

import (
	"cmp"
	"slices"

	"github.com/leapstack-labs/alchemy/internal/config"
	"github.com/leapstack-labs/alchemy/pkg/lambda"
)

// occurrence summarizes where one free variable appears in a term.
type occurrence struct {
	free    int
	first   int // position of the first occurrence, left to right
	shallow int // smallest node depth of any occurrence
	deep    int // largest node depth of any occurrence
}

// Standardize renumbers the free variables of t. Prefix assigns 1 to the
// variable whose shallowest occurrence is nearest the root, Postfix assigns 1
// to the variable whose deepest occurrence is farthest from it. Ties go to the
// variable that appears first reading left to right. None returns t as is.
func Standardize(t *lambda.Term, mode config.Standardization) *lambda.Term {
	if mode == config.StandardizationNone || !t.HasFreeVars() {
		return t
	}

	byFree := make(map[int]*occurrence)
	pos := 0
	var walk func(n *lambda.Term, binders, depth int)
	walk = func(n *lambda.Term, binders, depth int) {
		switch n.Kind() {
		case lambda.KindVar:
			pos++
			if n.Index() <= binders {
				return
			}
			free := n.Index() - binders
			o, ok := byFree[free]
			if !ok {
				byFree[free] = &occurrence{free: free, first: pos, shallow: depth, deep: depth}
				return
			}
			o.shallow = min(o.shallow, depth)
			o.deep = max(o.deep, depth)
		case lambda.KindAbs:
			walk(n.Body(), binders+1, depth+1)
		case lambda.KindApp:
			walk(n.Func(), binders, depth+1)
			walk(n.Arg(), binders, depth+1)
		}
	}
	walk(t, 0, 0)

	order := make([]*occurrence, 0, len(byFree))
	for _, o := range byFree {
		order = append(order, o)
	}
	slices.SortFunc(order, func(a, b *occurrence) int {
		var c int
		if mode == config.StandardizationPostfix {
			c = cmp.Compare(b.deep, a.deep)
		} else {
			c = cmp.Compare(a.shallow, b.shallow)
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.first, b.first)
	})

	rename := make(map[int]int, len(order))
	for i, o := range order {
		rename[o.free] = i + 1
	}
	return t.MapVars(func(free int) *lambda.Term {
		return lambda.Var(rename[free])
	})
}
