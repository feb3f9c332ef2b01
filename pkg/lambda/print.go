package lambda

import (
	"strconv"
	"strings"
)

// binderAlphabet names binders by nesting level. The letter x is reserved
// for free variables so printed terms always parse back to the same indices.
const binderAlphabet = "abcdefghijklmnopqrstuvwyz"

// FreePrefix starts the printed name of a free variable.
const FreePrefix = "x"

// String prints the term in classic notation, e.g. "λa.λb.a b".
func (t *Term) String() string {
	var b strings.Builder
	b.Grow(t.size * 3)
	printTerm(&b, t, 0)
	return b.String()
}

func binderName(level int) string {
	n := len(binderAlphabet)
	name := string(binderAlphabet[level%n])
	if level >= n {
		name += strconv.Itoa(level / n)
	}
	return name
}

func printTerm(b *strings.Builder, t *Term, depth int) {
	switch t.kind {
	case KindVar:
		if t.index <= depth {
			b.WriteString(binderName(depth - t.index))
			return
		}
		b.WriteString(FreePrefix)
		b.WriteString(strconv.Itoa(t.index - depth))
	case KindAbs:
		b.WriteString("λ")
		b.WriteString(binderName(depth))
		b.WriteByte('.')
		printTerm(b, t.left, depth+1)
	case KindApp:
		if t.left.kind == KindAbs {
			b.WriteByte('(')
			printTerm(b, t.left, depth)
			b.WriteByte(')')
		} else {
			printTerm(b, t.left, depth)
		}
		b.WriteByte(' ')
		if t.right.kind == KindVar {
			printTerm(b, t.right, depth)
		} else {
			b.WriteByte('(')
			printTerm(b, t.right, depth)
			b.WriteByte(')')
		}
	}
}
