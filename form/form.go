// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package form provides symbolic integral forms over interval meshes.
//
// Forms are built from coefficients (fields, constants, expressions, nested
// operators), the spatial coordinate and elementary functions, and can be
// differentiated with respect to any coefficient or the mesh geometry.
//
// Example:
//
//	import "github.com/born-ml/formgrad/form"
//
//	func main() {
//	    mesh := form.UnitInterval(8)
//	    u := form.NewField(mesh.DG0(), "u")
//	    c := form.NewConstant(2, "c")
//	    J := form.Integral(form.Mul(u, c), mesh)
//
//	    // Derivative with respect to c, tested against v in the Real space
//	    dJ := form.Derivative(J, c, form.TestFunction(mesh.Real()))
//	}
package form

import (
	"github.com/born-ml/formgrad/internal/fem"
	"github.com/born-ml/formgrad/internal/ufl"
)

// Expr is a symbolic expression.
type Expr = ufl.Expr

// Form is an integral of an expression over a mesh.
type Form = ufl.Form

// Mesh is an interval mesh.
type Mesh = ufl.Mesh

// Space is a function space on a mesh.
type Space = ufl.Space

// Field is a discrete function in a space.
type Field = ufl.Field

// Constant is a spatially constant value.
type Constant = ufl.Constant

// Expression is an externally supplied function of x.
type Expression = ufl.Expression

// Operator is a nested operator coefficient.
type Operator = ufl.Operator

// Body builds an operator's defining expression from its operands.
type Body = ufl.Body

// Value is an assembled scalar or vector.
type Value = fem.Value

// Vector wraps data as a value, e.g. a direction for a field control.
func Vector(data []float64) Value { return fem.Vector(data) }

// Scalar wraps v as a value.
func Scalar(v float64) Value { return fem.Scalar(v) }

// UnitInterval creates a uniform mesh of [0, 1] with n cells.
func UnitInterval(n int) *Mesh { return ufl.UnitInterval(n) }

// IntervalMesh creates a mesh with the given vertex coordinates.
func IntervalMesh(coords []float64) (*Mesh, error) { return ufl.IntervalMesh(coords) }

// Interval creates a uniform mesh of [a, b] with n cells.
func Interval(n int, a, b float64) *Mesh { return ufl.Interval(n, a, b) }

// NewField creates a zero field in s.
func NewField(s *Space, name string) *Field { return ufl.NewField(s, name) }

// FieldFrom creates a field in s holding a copy of values.
func FieldFrom(s *Space, name string, values []float64) *Field { return ufl.FieldFrom(s, name, values) }

// NewConstant creates a constant.
func NewConstant(v float64, name string) *Constant { return ufl.NewConstant(v, name) }

// NewExpression wraps fn as an externally supplied expression.
func NewExpression(name string, fn func(x float64) float64) *Expression {
	return ufl.NewExpression(name, fn)
}

// X returns the spatial coordinate of m.
func X(m *Mesh) Expr { return ufl.X(m) }

// TestFunction returns a probe function in s.
func TestFunction(s *Space) Expr { return ufl.TestFunction(s) }

// Add returns the sum of terms.
func Add(terms ...Expr) Expr { return ufl.Add(terms...) }

// Mul returns the product of factors.
func Mul(factors ...Expr) Expr { return ufl.Mul(factors...) }

// Pow returns base^exp.
func Pow(base, exp Expr) Expr { return ufl.Pow(base, exp) }

// Lit returns a literal.
func Lit(v float64) Expr { return ufl.Lit(v) }

// Integral returns ∫ e dx over m.
func Integral(e Expr, m *Mesh) Form { return ufl.Integral(e, m) }

// Derivative returns the Gateaux derivative of f with respect to w along dir.
func Derivative(f Form, w, dir Expr) Form { return ufl.Derivative(f, w, dir) }

// Parse parses an integrand such as "u*c + sin(x)".
func Parse(src string, scope map[string]Expr) (Expr, error) { return ufl.Parse(src, scope) }

// Assemble evaluates f without recording it.
func Assemble(f Form) (Value, error) { return fem.NewAssembler().Assemble(f) }
