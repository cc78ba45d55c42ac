package ufl

// Algebra exposes the package functions as a value, so the symbolic layer can be
// handed to evaluators as a dependency and replaced in tests.
type Algebra struct{}

func (Algebra) Derivative(f Form, w, dir Expr) Form { return Derivative(f, w, dir) }
func (Algebra) Replace(f Form, m Mapping) Form      { return Replace(f, m) }
func (Algebra) ReplaceExpr(e Expr, m Mapping) Expr  { return ReplaceExpr(e, m) }
func (Algebra) Coefficients(f Form) []Coefficient   { return Coefficients(f) }
func (Algebra) Operators(f Form) []*Operator        { return Operators(f) }
func (Algebra) Domain(f Form) (*Mesh, error)        { return Domain(f) }
func (Algebra) TestFunction(s *Space) *Argument     { return TestFunction(s) }
func (Algebra) SpatialCoordinate(m *Mesh) Expr      { return X(m) }

// Reconstruct rebuilds op on new operands, keeping its value.
func (Algebra) Reconstruct(op *Operator, operands []Expr) *Operator {
	return op.Detach(operands...)
}

// ZeroLike returns a zero of the same kind as c: a zero constant for constants,
// a zero field in s otherwise.
func (Algebra) ZeroLike(c Coefficient, s *Space) Expr {
	if _, ok := c.(*Constant); ok {
		return NewConstant(0, "0")
	}
	return NewField(s, "0")
}
