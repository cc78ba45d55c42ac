package ufl

import (
	"strconv"
	"strings"
)

// Variable is implemented by everything a form can depend on: the four
// coefficient kinds and the mesh. Evaluators dispatch through it instead of
// switching on concrete types.
type Variable interface {
	Key() string
	// InducedSpace returns the space derivatives with respect to the variable
	// are taken in. The domain is used by kinds that carry no space of their own.
	InducedSpace(domain *Mesh) *Space
	// IsShape reports whether the variable is the geometry of the domain.
	IsShape() bool
	// Paired reports whether derivatives are only meaningful together with the
	// induced space they were taken in.
	Paired() bool
}

// Coefficient is a Variable that appears in expressions.
type Coefficient interface {
	Expr
	Variable
	Name() string
}

// Field is a discrete function: degrees of freedom in a Space.
type Field struct {
	id     int64
	name   string
	space  *Space
	values []float64
}

// NewField creates a zero field in s.
func NewField(s *Space, name string) *Field {
	return &Field{id: nextID(), name: name, space: s, values: make([]float64, s.Dim())}
}

// FieldFrom creates a field in s with a copy of values.
// Panics if len(values) != s.Dim().
func FieldFrom(s *Space, name string, values []float64) *Field {
	if len(values) != s.Dim() {
		panic("ufl: field " + name + " needs " + strconv.Itoa(s.Dim()) + " values, got " + strconv.Itoa(len(values)))
	}
	f := NewField(s, name)
	copy(f.values, values)
	return f
}

// Space returns the field's function space.
func (f *Field) Space() *Space { return f.space }

// Name returns the display name.
func (f *Field) Name() string { return f.name }

// Values returns a copy of the degrees of freedom.
func (f *Field) Values() []float64 {
	v := make([]float64, len(f.values))
	copy(v, f.values)
	return v
}

// At returns degree of freedom i.
func (f *Field) At(i int) float64 { return f.values[i] }

// Checkpoint returns a copy with its own identity.
func (f *Field) Checkpoint() *Field { return FieldFrom(f.space, f.name, f.values) }

// Axpy returns a new field holding f + a*dir.
func (f *Field) Axpy(a float64, dir []float64) *Field {
	g := f.Checkpoint()
	for i := range g.values {
		g.values[i] += a * dir[i]
	}
	return g
}

func (f *Field) Key() string              { return "w" + strconv.FormatInt(f.id, 10) }
func (f *Field) String() string           { return f.name }
func (f *Field) Operands() []Expr         { return nil }
func (f *Field) Reconstruct(...Expr) Expr { return f }

func (f *Field) Eval(p *Point) float64 {
	v, _ := f.space.Eval(f.values, p.Cell)
	return v
}

func (f *Field) Slope(p *Point) float64 {
	_, s := f.space.Eval(f.values, p.Cell)
	return s
}

func (f *Field) InducedSpace(*Mesh) *Space { return f.space }
func (f *Field) IsShape() bool             { return false }
func (f *Field) Paired() bool              { return false }

// Constant is a spatially constant real value.
type Constant struct {
	id    int64
	name  string
	value float64
}

// NewConstant creates a constant.
func NewConstant(value float64, name string) *Constant {
	return &Constant{id: nextID(), name: name, value: value}
}

// Value returns the constant's value.
func (c *Constant) Value() float64 { return c.value }

// Name returns the display name.
func (c *Constant) Name() string { return c.name }

// Checkpoint returns a copy with its own identity.
func (c *Constant) Checkpoint() *Constant { return NewConstant(c.value, c.name) }

// Shift returns a new constant holding c + d.
func (c *Constant) Shift(d float64) *Constant { return NewConstant(c.value+d, c.name) }

func (c *Constant) Key() string              { return "c" + strconv.FormatInt(c.id, 10) }
func (c *Constant) String() string           { return c.name }
func (c *Constant) Operands() []Expr         { return nil }
func (c *Constant) Reconstruct(...Expr) Expr { return c }
func (c *Constant) Eval(*Point) float64      { return c.value }

// InducedSpace returns the Real space of the domain.
func (c *Constant) InducedSpace(domain *Mesh) *Space {
	if domain == nil {
		return nil
	}
	return domain.Real()
}

func (c *Constant) IsShape() bool { return false }
func (c *Constant) Paired() bool  { return false }

// Expression is an externally supplied function of x. It is not tape native:
// its values are produced by a callback, sampled at quadrature points.
type Expression struct {
	id   int64
	name string
	fn   func(x float64) float64
}

// NewExpression wraps fn.
func NewExpression(name string, fn func(x float64) float64) *Expression {
	return &Expression{id: nextID(), name: name, fn: fn}
}

// Name returns the display name.
func (e *Expression) Name() string { return e.name }

// At evaluates the callback.
func (e *Expression) At(x float64) float64 { return e.fn(x) }

func (e *Expression) Key() string              { return "e" + strconv.FormatInt(e.id, 10) }
func (e *Expression) String() string           { return e.name }
func (e *Expression) Operands() []Expr         { return nil }
func (e *Expression) Reconstruct(...Expr) Expr { return e }
func (e *Expression) Eval(p *Point) float64    { return e.fn(p.Mesh.Midpoint(p.Cell)) }

// InducedSpace returns the cellwise-constant space of the domain, the space the
// expression is interpolated into when differentiated.
func (e *Expression) InducedSpace(domain *Mesh) *Space {
	if domain == nil {
		return nil
	}
	return domain.DG0()
}

func (e *Expression) IsShape() bool { return false }
func (e *Expression) Paired() bool  { return true }

// Body builds an operator's defining expression from its operands.
type Body func(operands []Expr) Expr

// Operator is a nested operator coefficient: a coefficient whose value is the
// result of applying Body to other expressions. Its identity is its id plus the
// keys of its operands, so an operator rebuilt with different operands is a
// different symbolic object with the same ID.
//
// Operators are opaque to Diff: the derivative of an operator with respect to
// its operands is carried by the block that produced it, not by the forms that
// consume it. The value is held separately from the symbolic operands so that
// Detach can rewire the operands without changing what the operator evaluates
// to.
type Operator struct {
	id       int64
	name     string
	space    *Space
	body     Body
	operands []Expr
	expanded Expr
	value    Expr
}

// NewOperator creates an operator in space s.
func NewOperator(name string, s *Space, body Body, operands ...Expr) *Operator {
	return newOperator(nextID(), name, s, body, operands)
}

func newOperator(id int64, name string, s *Space, body Body, operands []Expr) *Operator {
	ops := make([]Expr, len(operands))
	copy(ops, operands)
	expanded := body(ops)
	return &Operator{id: id, name: name, space: s, body: body, operands: ops, expanded: expanded, value: expanded}
}

// ID returns the operator identity independent of its operands.
func (o *Operator) ID() int64 { return o.id }

// Name returns the display name.
func (o *Operator) Name() string { return o.name }

// Space returns the space the operator's values live in.
func (o *Operator) Space() *Space { return o.space }

// Expand returns Body applied to the current operands.
func (o *Operator) Expand() Expr { return o.expanded }

// With returns the operator rebuilt with new operands. Its value follows the
// new operands.
func (o *Operator) With(operands ...Expr) *Operator {
	return newOperator(o.id, o.name, o.space, o.body, operands)
}

// Detach returns the operator rebuilt with new symbolic operands that keeps
// evaluating to o's value.
func (o *Operator) Detach(operands ...Expr) *Operator {
	d := newOperator(o.id, o.name, o.space, o.body, operands)
	d.value = o.value
	return d
}

func (o *Operator) Key() string {
	return "N" + strconv.FormatInt(o.id, 10) + "[" + joinKeys(o.operands, ",") + "]"
}

func (o *Operator) String() string {
	parts := make([]string, len(o.operands))
	for i, op := range o.operands {
		parts[i] = op.String()
	}
	return o.name + "[" + strings.Join(parts, ", ") + "]"
}

func (o *Operator) Operands() []Expr                  { return o.operands }
func (o *Operator) Reconstruct(operands ...Expr) Expr { return o.With(operands...) }
func (o *Operator) Eval(p *Point) float64             { return o.value.Eval(p) }

func (o *Operator) InducedSpace(*Mesh) *Space { return o.space }
func (o *Operator) IsShape() bool             { return false }
func (o *Operator) Paired() bool              { return false }
