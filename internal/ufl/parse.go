package ufl

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"unicode"
)

// ErrParse is returned for malformed expression source.
var ErrParse = errors.New("parse error")

// Parse parses an integrand such as "u*c + sin(x)^2" into an expression.
// Identifiers are looked up in scope; "pi" is predefined. Supported functions
// are sin, cos, exp, ln (alias log), sqrt and tanh.
//
// Grammar:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = "-" unary | power
//	power   = primary [ "^" unary ]
//	primary = number | ident | ident "(" expr ")" | "(" expr ")"
func Parse(src string, scope map[string]Expr) (Expr, error) {
	p := &parser{src: []rune(src), scope: scope}
	p.next()
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errorf("unexpected %q", p.tok.text)
	}
	return e, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokIdent
	tokOp
)

type token struct {
	kind tokKind
	text string
	pos  int
}

type parser struct {
	src   []rune
	pos   int
	tok   token
	scope map[string]Expr
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrParse, p.tok.pos, fmt.Sprintf(format, args...))
}

// next advances to the next token.
func (p *parser) next() {
	for p.pos < len(p.src) && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
	start := p.pos
	if p.pos >= len(p.src) {
		p.tok = token{kind: tokEOF, pos: start}
		return
	}
	r := p.src[p.pos]
	switch {
	case unicode.IsDigit(r) || r == '.':
		for p.pos < len(p.src) && (unicode.IsDigit(p.src[p.pos]) || p.src[p.pos] == '.') {
			p.pos++
		}
		// Exponent: 1e-3, 2.5E+4
		if p.pos < len(p.src) && (p.src[p.pos] == 'e' || p.src[p.pos] == 'E') {
			q := p.pos + 1
			if q < len(p.src) && (p.src[q] == '+' || p.src[q] == '-') {
				q++
			}
			if q < len(p.src) && unicode.IsDigit(p.src[q]) {
				p.pos = q
				for p.pos < len(p.src) && unicode.IsDigit(p.src[p.pos]) {
					p.pos++
				}
			}
		}
		p.tok = token{kind: tokNum, text: string(p.src[start:p.pos]), pos: start}
	case unicode.IsLetter(r) || r == '_':
		for p.pos < len(p.src) && (unicode.IsLetter(p.src[p.pos]) || unicode.IsDigit(p.src[p.pos]) || p.src[p.pos] == '_') {
			p.pos++
		}
		p.tok = token{kind: tokIdent, text: string(p.src[start:p.pos]), pos: start}
	default:
		p.pos++
		p.tok = token{kind: tokOp, text: string(r), pos: start}
	}
}

func (p *parser) isOp(s string) bool { return p.tok.kind == tokOp && p.tok.text == s }

func (p *parser) expr() (Expr, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.tok.text
		p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		if op == "+" {
			left = Add(left, right)
		} else {
			left = Sub(left, right)
		}
	}
	return left, nil
}

func (p *parser) term() (Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") {
		op := p.tok.text
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		if op == "*" {
			left = Mul(left, right)
		} else {
			left = Quo(left, right)
		}
	}
	return left, nil
}

func (p *parser) unary() (Expr, error) {
	if p.isOp("-") {
		p.next()
		e, err := p.unary()
		if err != nil {
			return nil, err
		}
		return Neg(e), nil
	}
	return p.power()
}

func (p *parser) power() (Expr, error) {
	base, err := p.primary()
	if err != nil {
		return nil, err
	}
	if !p.isOp("^") {
		return base, nil
	}
	p.next()
	exp, err := p.unary()
	if err != nil {
		return nil, err
	}
	return Pow(base, exp), nil
}

func (p *parser) primary() (Expr, error) {
	switch p.tok.kind {
	case tokNum:
		v, err := strconv.ParseFloat(p.tok.text, 64)
		if err != nil {
			return nil, p.errorf("bad number %q", p.tok.text)
		}
		p.next()
		return Lit(v), nil
	case tokIdent:
		name := p.tok.text
		p.next()
		if p.isOp("(") {
			return p.call(name)
		}
		if e, ok := p.scope[name]; ok {
			return e, nil
		}
		if name == "pi" {
			return Lit(math.Pi), nil
		}
		return nil, p.errorf("undefined name %q", name)
	case tokOp:
		if p.isOp("(") {
			p.next()
			e, err := p.expr()
			if err != nil {
				return nil, err
			}
			if !p.isOp(")") {
				return nil, p.errorf("expected \")\"")
			}
			p.next()
			return e, nil
		}
		return nil, p.errorf("unexpected %q", p.tok.text)
	}
	return nil, p.errorf("unexpected end of input")
}

func (p *parser) call(name string) (Expr, error) {
	if name == "log" {
		name = "ln"
	}
	if _, ok := elementary[name]; !ok && name != "sqrt" {
		return nil, p.errorf("unknown function %q", name)
	}
	p.next() // (
	arg, err := p.expr()
	if err != nil {
		return nil, err
	}
	if !p.isOp(")") {
		return nil, p.errorf("expected \")\" after argument of %s", name)
	}
	p.next()
	return Apply(name, arg), nil
}
