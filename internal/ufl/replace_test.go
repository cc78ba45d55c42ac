package ufl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(a []Expr) Expr { return Mul(a[0], a[0]) }

func TestReplaceExpr_Terminals(t *testing.T) {
	m := UnitInterval(3)
	u := NewField(m.DG0(), "u")
	c := NewConstant(2, "c")

	got := ReplaceExpr(Mul(u, Sin(u)), Mapping{u.Key(): c})
	assert.Equal(t, Mul(c, Sin(c)).Key(), got.Key())

	same := Mul(u, c)
	assert.Same(t, same, ReplaceExpr(same, nil))
}

func TestReplaceExpr_OperatorOperandsFollow(t *testing.T) {
	m := UnitInterval(3)
	u := NewField(m.DG0(), "u")
	c := NewConstant(2, "c")
	op := NewOperator("N", m.DG0(), square, u)

	got := ReplaceExpr(Mul(op, u), Mapping{u.Key(): c})
	ops := Operators(Integral(got, m))
	require.Len(t, ops, 1)
	assert.Equal(t, op.ID(), ops[0].ID())
	assert.Equal(t, c.Key(), ops[0].Operands()[0].Key())
}

func TestReplaceExpr_ReplacementOperator(t *testing.T) {
	m := UnitInterval(3)
	u := NewField(m.DG0(), "u")
	w := NewField(m.DG0(), "w")
	c := NewConstant(2, "c")
	op := NewOperator("N", m.DG0(), square, u)
	other := NewOperator("M", m.DG0(), square, w)

	got := ReplaceExpr(op, Mapping{op.Key(): other})
	assert.Same(t, other, got, "unaffected operands keep the replacement as is")

	got = ReplaceExpr(op, Mapping{op.Key(): other, w.Key(): c})
	rebuilt, ok := got.(*Operator)
	require.True(t, ok)
	assert.Equal(t, other.ID(), rebuilt.ID())
	assert.Equal(t, c.Key(), rebuilt.Operands()[0].Key())
}

func TestReplace_Form(t *testing.T) {
	m := UnitInterval(3)
	u := NewField(m.DG0(), "u")
	v := TestFunction(m.DG0())

	f := Replace(Integral(u, m), Mapping{u.Key(): Mul(u, v)})
	assert.Equal(t, 1, f.Rank())
	assert.Same(t, m, f.Domain)
	assert.True(t, Replace(Form{}, Mapping{u.Key(): v}).IsEmpty())
}

func TestOperator_DetachKeepsValue(t *testing.T) {
	m := UnitInterval(2)
	u := FieldFrom(m.DG0(), "u", []float64{1, 2})
	zero := NewField(m.DG0(), "0")
	op := NewOperator("N", m.DG0(), square, u)

	p := &Point{Mesh: m, Cell: 1}
	require.InDelta(t, 4.0, op.Eval(p), 1e-15)

	detached := op.Detach(zero)
	assert.Equal(t, op.ID(), detached.ID())
	assert.NotEqual(t, op.Key(), detached.Key())
	assert.InDelta(t, 4.0, detached.Eval(p), 1e-15)

	rebuilt := op.With(zero)
	assert.InDelta(t, 0.0, rebuilt.Eval(p), 1e-15)

	var alg Algebra
	assert.InDelta(t, 4.0, alg.Reconstruct(op, []Expr{zero}).Eval(p), 1e-15)
}

func TestCoefficients_Order(t *testing.T) {
	m := UnitInterval(3)
	u := NewField(m.DG0(), "u")
	c := NewConstant(2, "c")
	op := NewOperator("N", m.DG0(), square, u)

	got := Coefficients(Integral(Add(Mul(op, c), c), m))
	keys := make([]string, len(got))
	for i, k := range got {
		keys[i] = k.Key()
	}
	assert.Equal(t, []string{op.Key(), u.Key(), c.Key()}, keys)
	assert.Empty(t, Coefficients(Form{}))
}

func TestDomain(t *testing.T) {
	m := UnitInterval(3)
	u := NewField(m.DG0(), "u")
	c := NewConstant(2, "c")

	got, err := Domain(Integral(Mul(u, c), nil))
	require.NoError(t, err)
	assert.Same(t, m, got)

	got, err = Domain(Integral(Mul(X(m), c), nil))
	require.NoError(t, err)
	assert.Same(t, m, got)

	_, err = Domain(Integral(c, nil))
	assert.ErrorIs(t, err, ErrNoDomain)
}

func TestAlgebra_ZeroLike(t *testing.T) {
	m := UnitInterval(3)
	var alg Algebra

	z := alg.ZeroLike(NewConstant(5, "c"), m.Real())
	c, ok := z.(*Constant)
	require.True(t, ok)
	assert.Zero(t, c.Value())

	z = alg.ZeroLike(NewField(m.DG0(), "u"), m.DG0())
	f, ok := z.(*Field)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0, 0}, f.Values())
}
