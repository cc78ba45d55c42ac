// Package ufl is the symbolic layer: expression trees over interval meshes,
// integral forms, Gateaux differentiation and substitution.
//
// Constructors simplify eagerly (literal folding, dropping zeros and ones) so that
// derivatives of expressions independent of the variable collapse to Zero.
// Every node has a structural Key used for replacement and differentiation:
// two nodes with the same Key are the same symbolic object.
package ufl

import (
	"math"
	"strconv"
	"strings"
	"sync/atomic"
)

var idCounter atomic.Int64

func nextID() int64 { return idCounter.Add(1) }

// Expr is a node of a symbolic expression tree.
type Expr interface {
	// Key returns the structural identity of the node.
	Key() string
	String() string
	// Operands returns the child nodes (nil for terminals).
	Operands() []Expr
	// Reconstruct returns a node of the same kind with new operands.
	// Terminals return themselves.
	Reconstruct(operands ...Expr) Expr
	// Eval evaluates the expression at a quadrature point.
	Eval(p *Point) float64
}

// Point is a quadrature point: the midpoint of one cell, optionally with an
// Argument bound to one of its basis functions.
type Point struct {
	Mesh  *Mesh
	Cell  int
	Arg   *Argument
	Basis int
}

// sloped is implemented by terminals whose derivative in x can be evaluated,
// which is what Div needs.
type sloped interface {
	Slope(p *Point) float64
}

// Literal is a real number.
type Literal struct{ v float64 }

// Zero is the additive identity.
var Zero Expr = &Literal{v: 0}

// Lit creates a literal.
func Lit(v float64) Expr {
	if v == 0 {
		return Zero
	}
	return &Literal{v: v}
}

// Value returns the literal value.
func (l *Literal) Value() float64           { return l.v }
func (l *Literal) Key() string              { return strconv.FormatFloat(l.v, 'g', -1, 64) }
func (l *Literal) String() string           { return l.Key() }
func (l *Literal) Operands() []Expr         { return nil }
func (l *Literal) Reconstruct(...Expr) Expr { return l }
func (l *Literal) Eval(*Point) float64      { return l.v }
func (l *Literal) Slope(*Point) float64     { return 0 }

// IsZero reports whether e is the literal 0.
func IsZero(e Expr) bool {
	l, ok := e.(*Literal)
	return ok && l.v == 0
}

func isLit(e Expr, v float64) bool {
	l, ok := e.(*Literal)
	return ok && l.v == v
}

// Sum is a sum of terms.
type Sum struct{ terms []Expr }

// Add returns the simplified sum of terms.
func Add(terms ...Expr) Expr {
	flat := make([]Expr, 0, len(terms))
	acc := 0.0
	for _, t := range terms {
		switch v := t.(type) {
		case *Sum:
			for _, inner := range v.terms {
				if l, ok := inner.(*Literal); ok {
					acc += l.v
					continue
				}
				flat = append(flat, inner)
			}
		case *Literal:
			acc += v.v
		default:
			flat = append(flat, t)
		}
	}
	if acc != 0 {
		flat = append(flat, Lit(acc))
	}
	switch len(flat) {
	case 0:
		return Zero
	case 1:
		return flat[0]
	}
	return &Sum{terms: flat}
}

// Sub returns a - b.
func Sub(a, b Expr) Expr { return Add(a, Neg(b)) }

// Neg returns -e.
func Neg(e Expr) Expr { return Mul(Lit(-1), e) }

func (s *Sum) Key() string                       { return "(" + joinKeys(s.terms, "+") + ")" }
func (s *Sum) String() string                    { return "(" + joinStrings(s.terms, " + ") + ")" }
func (s *Sum) Operands() []Expr                  { return s.terms }
func (s *Sum) Reconstruct(operands ...Expr) Expr { return Add(operands...) }

func (s *Sum) Eval(p *Point) float64 {
	acc := 0.0
	for _, t := range s.terms {
		acc += t.Eval(p)
	}
	return acc
}

// Product is a product of factors.
type Product struct{ factors []Expr }

// Mul returns the simplified product of factors.
func Mul(factors ...Expr) Expr {
	flat := make([]Expr, 0, len(factors))
	coeff := 1.0
	for _, f := range factors {
		switch v := f.(type) {
		case *Product:
			for _, inner := range v.factors {
				if l, ok := inner.(*Literal); ok {
					coeff *= l.v
					continue
				}
				flat = append(flat, inner)
			}
		case *Literal:
			coeff *= v.v
		default:
			flat = append(flat, f)
		}
	}
	if coeff == 0 {
		return Zero
	}
	if coeff != 1 || len(flat) == 0 {
		flat = append([]Expr{Lit(coeff)}, flat...)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &Product{factors: flat}
}

// Quo returns a / b.
func Quo(a, b Expr) Expr { return Mul(a, Pow(b, Lit(-1))) }

func (m *Product) Key() string                       { return "(" + joinKeys(m.factors, "*") + ")" }
func (m *Product) String() string                    { return "(" + joinStrings(m.factors, "*") + ")" }
func (m *Product) Operands() []Expr                  { return m.factors }
func (m *Product) Reconstruct(operands ...Expr) Expr { return Mul(operands...) }

func (m *Product) Eval(p *Point) float64 {
	acc := 1.0
	for _, f := range m.factors {
		acc *= f.Eval(p)
	}
	return acc
}

// Power is base^exponent.
type Power struct{ base, exp Expr }

// Pow returns the simplified power base^exp.
func Pow(base, exp Expr) Expr {
	if IsZero(exp) {
		return Lit(1)
	}
	if isLit(exp, 1) {
		return base
	}
	if IsZero(base) {
		return Zero
	}
	bl, bok := base.(*Literal)
	el, eok := exp.(*Literal)
	if bok && eok {
		return Lit(math.Pow(bl.v, el.v))
	}
	return &Power{base: base, exp: exp}
}

// Sqrt returns e^(1/2).
func Sqrt(e Expr) Expr { return Pow(e, Lit(0.5)) }

func (w *Power) Key() string                       { return "(" + w.base.Key() + "^" + w.exp.Key() + ")" }
func (w *Power) String() string                    { return w.base.String() + "^" + w.exp.String() }
func (w *Power) Operands() []Expr                  { return []Expr{w.base, w.exp} }
func (w *Power) Reconstruct(operands ...Expr) Expr { return Pow(operands[0], operands[1]) }
func (w *Power) Eval(p *Point) float64             { return math.Pow(w.base.Eval(p), w.exp.Eval(p)) }

// Func is an elementary function applied to one argument.
type Func struct {
	name string
	arg  Expr
}

var elementary = map[string]func(float64) float64{
	"sin":  math.Sin,
	"cos":  math.Cos,
	"exp":  math.Exp,
	"ln":   math.Log,
	"tanh": math.Tanh,
}

// Apply returns name(arg) for one of sin, cos, exp, ln, tanh (or sqrt).
// Literal arguments are folded.
func Apply(name string, arg Expr) Expr {
	if name == "sqrt" {
		return Sqrt(arg)
	}
	fn, ok := elementary[name]
	if !ok {
		panic("ufl: unknown function " + name)
	}
	if l, ok := arg.(*Literal); ok {
		return Lit(fn(l.v))
	}
	return &Func{name: name, arg: arg}
}

// Sin returns sin(e).
func Sin(e Expr) Expr { return Apply("sin", e) }

// Cos returns cos(e).
func Cos(e Expr) Expr { return Apply("cos", e) }

// Exp returns exp(e).
func Exp(e Expr) Expr { return Apply("exp", e) }

// Ln returns the natural logarithm of e.
func Ln(e Expr) Expr { return Apply("ln", e) }

// Tanh returns tanh(e).
func Tanh(e Expr) Expr { return Apply("tanh", e) }

// Name returns the function name.
func (f *Func) Name() string                      { return f.name }
func (f *Func) Key() string                       { return f.name + "(" + f.arg.Key() + ")" }
func (f *Func) String() string                    { return f.name + "(" + f.arg.String() + ")" }
func (f *Func) Operands() []Expr                  { return []Expr{f.arg} }
func (f *Func) Reconstruct(operands ...Expr) Expr { return Apply(f.name, operands[0]) }
func (f *Func) Eval(p *Point) float64             { return elementary[f.name](f.arg.Eval(p)) }

// Div is the divergence (d/dx on an interval) of a coordinate-space quantity:
// an Argument, a Field or the SpatialCoordinate.
type Div struct{ arg Expr }

// NewDiv returns div(e). div(0) is 0.
func NewDiv(e Expr) Expr {
	if IsZero(e) {
		return Zero
	}
	if _, ok := e.(sloped); !ok {
		panic("ufl: div of " + e.String())
	}
	return &Div{arg: e}
}

func (d *Div) Key() string                       { return "div(" + d.arg.Key() + ")" }
func (d *Div) String() string                    { return "div(" + d.arg.String() + ")" }
func (d *Div) Operands() []Expr                  { return []Expr{d.arg} }
func (d *Div) Reconstruct(operands ...Expr) Expr { return NewDiv(operands[0]) }
func (d *Div) Eval(p *Point) float64             { return d.arg.(sloped).Slope(p) }

// SpatialCoordinate is the coordinate field x of a mesh.
type SpatialCoordinate struct{ mesh *Mesh }

// X returns the spatial coordinate of m.
func X(m *Mesh) *SpatialCoordinate { return &SpatialCoordinate{mesh: m} }

// Mesh returns the mesh.
func (x *SpatialCoordinate) Mesh() *Mesh              { return x.mesh }
func (x *SpatialCoordinate) Key() string              { return "x@" + x.mesh.Key() }
func (x *SpatialCoordinate) String() string           { return "x" }
func (x *SpatialCoordinate) Operands() []Expr         { return nil }
func (x *SpatialCoordinate) Reconstruct(...Expr) Expr { return x }
func (x *SpatialCoordinate) Eval(p *Point) float64    { return x.mesh.Midpoint(p.Cell) }
func (x *SpatialCoordinate) Slope(*Point) float64     { return 1 }

// Argument is a probe (test) function: a placeholder for the basis functions of
// its space. Forms containing one Argument assemble to vectors.
type Argument struct {
	id    int64
	space *Space
}

// TestFunction creates a new Argument in s.
func TestFunction(s *Space) *Argument { return &Argument{id: nextID(), space: s} }

// Space returns the argument space.
func (a *Argument) Space() *Space            { return a.space }
func (a *Argument) Key() string              { return "v" + strconv.FormatInt(a.id, 10) }
func (a *Argument) String() string           { return "v_" + a.space.Family().String() }
func (a *Argument) Operands() []Expr         { return nil }
func (a *Argument) Reconstruct(...Expr) Expr { return a }

func (a *Argument) Eval(p *Point) float64 {
	v, _ := a.bound(p).Basis(p.Basis, p.Cell)
	return v
}

func (a *Argument) Slope(p *Point) float64 {
	_, s := a.bound(p).Basis(p.Basis, p.Cell)
	return s
}

func (a *Argument) bound(p *Point) *Space {
	if p.Arg != a {
		panic("ufl: argument " + a.Key() + " evaluated while unbound")
	}
	return a.space
}

func joinKeys(es []Expr, sep string) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Key()
	}
	return strings.Join(parts, sep)
}

func joinStrings(es []Expr, sep string) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return strings.Join(parts, sep)
}
