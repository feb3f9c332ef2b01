package lambda

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrSyntax is wrapped by every ParseError.
var ErrSyntax = errors.New("syntax error")

// ParseError describes malformed term text.
type ParseError struct {
	Input string
	Pos   int // byte offset into Input
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q at offset %d: %s", e.Input, e.Pos, e.Msg)
}

// Unwrap allows errors.Is(err, ErrSyntax).
func (e *ParseError) Unwrap() error { return ErrSyntax }

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) *Term {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Parse reads a term in classic notation. Abstractions are written with a
// backslash or λ, may bind several names at once (\x y.x) and extend as far
// right as possible; application is left-associative juxtaposition.
//
// Unbound names become free variables. A free name of the form x<k> is given
// free index k, which is how String prints free variables; any other free
// name receives the smallest unused index in order of first appearance.
func Parse(s string) (*Term, error) {
	p := &parser{input: s}
	p.next()
	n, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errorf("unexpected %s", p.tok)
	}
	return resolve(n), nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokLambda
	tokDot
	tokLParen
	tokRParen
	tokIdent
	tokInvalid
)

type token struct {
	kind tokKind
	text string
	pos  int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return fmt.Sprintf("identifier %q", t.text)
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

type parser struct {
	input string
	off   int
	tok   token
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Input: p.input, Pos: p.tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func isIdentStart(r rune) bool {
	return r == '_' || (unicode.IsLetter(r) && r != 'λ')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r) || r == '\''
}

// next advances to the following token.
func (p *parser) next() {
	for p.off < len(p.input) {
		r, w := utf8.DecodeRuneInString(p.input[p.off:])
		if !unicode.IsSpace(r) {
			break
		}
		p.off += w
	}
	start := p.off
	if p.off >= len(p.input) {
		p.tok = token{kind: tokEOF, pos: start}
		return
	}
	r, w := utf8.DecodeRuneInString(p.input[p.off:])
	p.off += w
	switch {
	case r == '\\' || r == 'λ':
		p.tok = token{kind: tokLambda, text: string(r), pos: start}
	case r == '.':
		p.tok = token{kind: tokDot, text: ".", pos: start}
	case r == '(':
		p.tok = token{kind: tokLParen, text: "(", pos: start}
	case r == ')':
		p.tok = token{kind: tokRParen, text: ")", pos: start}
	case isIdentStart(r):
		for p.off < len(p.input) {
			r, w := utf8.DecodeRuneInString(p.input[p.off:])
			if !isIdentPart(r) {
				break
			}
			p.off += w
		}
		p.tok = token{kind: tokIdent, text: p.input[start:p.off], pos: start}
	default:
		p.tok = token{kind: tokInvalid, text: string(r), pos: start}
	}
}

// pnode is the named syntax tree produced before index resolution.
type pnode struct {
	kind  Kind
	name  string // variable name or binder name
	left  *pnode
	right *pnode
}

func (p *parser) parseTerm() (*pnode, error) {
	var acc *pnode
	for {
		var item *pnode
		var err error
		switch p.tok.kind {
		case tokLambda:
			item, err = p.parseAbs()
		case tokLParen:
			p.next()
			item, err = p.parseTerm()
			if err == nil {
				if p.tok.kind != tokRParen {
					return nil, p.errorf("expected ')', found %s", p.tok)
				}
				p.next()
			}
		case tokIdent:
			item = &pnode{kind: KindVar, name: p.tok.text}
			p.next()
		default:
			if acc == nil {
				return nil, p.errorf("expected term, found %s", p.tok)
			}
			return acc, nil
		}
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = item
		} else {
			acc = &pnode{kind: KindApp, left: acc, right: item}
		}
	}
}

func (p *parser) parseAbs() (*pnode, error) {
	p.next() // lambda
	var names []string
	for p.tok.kind == tokIdent {
		names = append(names, p.tok.text)
		p.next()
	}
	if len(names) == 0 {
		return nil, p.errorf("expected binder name, found %s", p.tok)
	}
	if p.tok.kind != tokDot {
		return nil, p.errorf("expected '.', found %s", p.tok)
	}
	p.next()
	body, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for i := len(names) - 1; i >= 0; i-- {
		body = &pnode{kind: KindAbs, name: names[i], left: body}
	}
	return body, nil
}

// freeIndex parses names of the form x<k> with k >= 1.
func freeIndex(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, FreePrefix)
	if !ok || digits == "" || digits[0] == '0' {
		return 0, false
	}
	k, err := strconv.Atoi(digits)
	if err != nil || k < 1 {
		return 0, false
	}
	return k, true
}

// resolve converts the named tree into de Bruijn form.
func resolve(n *pnode) *Term {
	var order []string
	seen := make(map[string]bool)
	collectFreeNames(n, nil, seen, &order)

	free := make(map[string]int, len(order))
	used := make(map[int]bool)
	for _, name := range order {
		if k, ok := freeIndex(name); ok {
			free[name] = k
			used[k] = true
		}
	}
	next := 1
	for _, name := range order {
		if _, ok := free[name]; ok {
			continue
		}
		for used[next] {
			next++
		}
		free[name] = next
		used[next] = true
	}
	return build(n, nil, free)
}

func lookup(env []string, name string) int {
	for i := len(env) - 1; i >= 0; i-- {
		if env[i] == name {
			return len(env) - i
		}
	}
	return 0
}

func collectFreeNames(n *pnode, env []string, seen map[string]bool, order *[]string) {
	switch n.kind {
	case KindVar:
		if lookup(env, n.name) == 0 && !seen[n.name] {
			seen[n.name] = true
			*order = append(*order, n.name)
		}
	case KindAbs:
		collectFreeNames(n.left, append(env, n.name), seen, order)
	case KindApp:
		collectFreeNames(n.left, env, seen, order)
		collectFreeNames(n.right, env, seen, order)
	}
}

func build(n *pnode, env []string, free map[string]int) *Term {
	switch n.kind {
	case KindVar:
		if i := lookup(env, n.name); i > 0 {
			return Var(i)
		}
		return Var(len(env) + free[n.name])
	case KindAbs:
		return Abs(build(n.left, append(env, n.name), free))
	default:
		return App(build(n.left, env, free), build(n.right, env, free))
	}
}
