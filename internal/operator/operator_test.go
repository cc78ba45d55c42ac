package operator

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/formgrad/internal/assembly"
	"github.com/born-ml/formgrad/internal/fem"
	"github.com/born-ml/formgrad/internal/tape"
	"github.com/born-ml/formgrad/internal/ufl"
)

const h = 0.25

var uv = []float64{1, 2, 3, 4}

// cubic records N = u²c and J = ∫ N u dx = c Σ h u³ on the unit interval with
// 4 cells.
func cubic(t *testing.T) (*tape.Functional, *ufl.Field, *ufl.Constant, *ufl.Operator) {
	t.Helper()
	tp := tape.New()
	m := ufl.UnitInterval(4)
	u := ufl.FieldFrom(m.DG0(), "u", uv)
	c := ufl.NewConstant(2, "c")
	n, err := Apply(tp, "N", m.DG0(), func(a []ufl.Expr) ufl.Expr { return ufl.Mul(a[0], a[0], a[1]) }, u, c)
	require.NoError(t, err)
	out, err := assembly.Assemble(context.Background(), tp, ufl.Integral(ufl.Mul(n, u), m), assembly.DefaultBackend())
	require.NoError(t, err)
	return tape.NewFunctional(tp, out), u, c, n
}

func TestApply_Records(t *testing.T) {
	f, u, c, n := cubic(t)
	blocks := f.Tape().Blocks()
	require.Len(t, blocks, 2)

	blk, ok := blocks[0].(*Block)
	require.True(t, ok)
	assert.Same(t, n, blk.Operator())
	require.Len(t, blk.Dependencies(), 2)
	assert.Equal(t, u.Key(), blk.Dependencies()[0].Output().Key())
	assert.Equal(t, c.Key(), blk.Dependencies()[1].Output().Key())

	v, err := f.Value(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 2*h*100, v, 1e-12)
}

func TestApply_Errors(t *testing.T) {
	tp := tape.New()
	m := ufl.UnitInterval(2)
	other := ufl.UnitInterval(2)
	id := func(a []ufl.Expr) ufl.Expr { return a[0] }

	_, err := Apply(tp, "N", m.CoordinateSpace(), id, ufl.NewConstant(1, "c"))
	assert.ErrorIs(t, err, ErrSpace)

	_, err = Apply(tp, "N", m.DG0(), id, ufl.NewField(m.CoordinateSpace(), "p"))
	assert.ErrorIs(t, err, ErrSpace)

	_, err = Apply(tp, "N", m.DG0(), id, ufl.NewField(other.DG0(), "w"))
	assert.ErrorIs(t, err, ErrMesh)

	u := ufl.NewField(m.DG0(), "u")
	_, err = Apply(tp, "N", m.DG0(), func(a []ufl.Expr) ufl.Expr { return ufl.Mul(a[0], ufl.X(m)) }, u)
	assert.ErrorIs(t, err, ErrCoordinate)

	assert.Empty(t, tp.Blocks())
}

func TestAdjoint_ThroughOperator(t *testing.T) {
	f, u, c, _ := cubic(t)

	grads, err := f.Gradient(context.Background(), u, c)
	require.NoError(t, err)
	want := make([]float64, len(uv))
	for i, x := range uv {
		want[i] = h * 3 * 2 * x * x
	}
	assert.InDeltaSlice(t, want, grads[0].Data(), 1e-12)
	assert.InDeltaSlice(t, []float64{25}, grads[1].Data(), 1e-12)

	fdc, err := tape.FiniteDifference(context.Background(), f, c, fem.Scalar(1), 1e-4)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, fdc, 1e-7)
}

func TestTLM_ThroughOperator(t *testing.T) {
	f, u, c, _ := cubic(t)
	ctx := context.Background()
	du := fem.Vector([]float64{1, -1, 0.5, 2})
	dc := fem.Scalar(0.5)

	grads, err := f.Gradient(ctx, u, c)
	require.NoError(t, err)
	v, err := f.TLM(ctx, tape.Seed{Control: u, Direction: du}, tape.Seed{Control: c, Direction: dc})
	require.NoError(t, err)
	assert.InDelta(t, grads[0].Dot(du)+grads[1].Dot(dc), v.Float(), 1e-12)
}

// TestHessian_ThroughOperator checks H·(du, dc) for J = c Σ h u³:
// H_uu = 6chu, H_uc = 3hu², H_cc = 0.
func TestHessian_ThroughOperator(t *testing.T) {
	f, u, c, _ := cubic(t)
	du := []float64{1, -1, 0.5, 2}
	const dc, cv = 0.5, 2.0

	hs, err := f.Hessian(context.Background(), []tape.Seed{
		{Control: u, Direction: fem.Vector(du)},
		{Control: c, Direction: fem.Scalar(dc)},
	}, u, c)
	require.NoError(t, err)

	wantU := make([]float64, len(uv))
	wantC := 0.0
	for i, x := range uv {
		wantU[i] = 6*cv*h*x*du[i] + 3*h*x*x*dc
		wantC += 3 * h * x * x * du[i]
	}
	assert.InDeltaSlice(t, wantU, hs[0].Data(), 1e-12)
	assert.InDeltaSlice(t, []float64{wantC}, hs[1].Data(), 1e-12)
}

func TestTaylor_ThroughOperator(t *testing.T) {
	f, u, _, _ := cubic(t)

	res, err := tape.TaylorTest(context.Background(), f, u, fem.Vector([]float64{0.2, 0.1, -0.3, 0.4}), 0.1, 4)
	require.NoError(t, err)
	assert.Greater(t, res.MinGradRate(), 1.8)
}

// TestOperatorOfOperator checks J = ∫ sin(u²) dx built from two operators.
func TestOperatorOfOperator(t *testing.T) {
	tp := tape.New()
	m := ufl.UnitInterval(4)
	vals := []float64{0.1, 0.5, 0.9, 1.2}
	u := ufl.FieldFrom(m.DG0(), "u", vals)
	n, err := Apply(tp, "N", m.DG0(), func(a []ufl.Expr) ufl.Expr { return ufl.Mul(a[0], a[0]) }, u)
	require.NoError(t, err)
	s, err := Apply(tp, "S", m.DG0(), func(a []ufl.Expr) ufl.Expr { return ufl.Sin(a[0]) }, n)
	require.NoError(t, err)
	out, err := assembly.Assemble(context.Background(), tp, ufl.Integral(s, m), assembly.DefaultBackend())
	require.NoError(t, err)
	f := tape.NewFunctional(tp, out)
	ctx := context.Background()

	grads, err := f.Gradient(ctx, u)
	require.NoError(t, err)
	want := make([]float64, len(vals))
	for i, x := range vals {
		want[i] = h * math.Cos(x*x) * 2 * x
	}
	assert.InDeltaSlice(t, want, grads[0].Data(), 1e-12)

	dir := fem.Vector([]float64{1, 0.5, -1, 0.25})
	d, err := f.TLM(ctx, tape.Seed{Control: u, Direction: dir})
	require.NoError(t, err)
	assert.InDelta(t, grads[0].Dot(dir), d.Float(), 1e-12)

	v1, err := f.ValueAt(ctx, u, dir, 1e-3)
	require.NoError(t, err)
	v0, err := f.Value(ctx)
	require.NoError(t, err)
	assert.InDelta(t, grads[0].Dot(dir), (v1-v0)/1e-3, 1e-2)
}

func TestExpressionOperand(t *testing.T) {
	tp := tape.New()
	m := ufl.UnitInterval(4)
	u := ufl.FieldFrom(m.DG0(), "u", uv)
	g := ufl.NewExpression("g", func(x float64) float64 { return x * x })
	n, err := Apply(tp, "N", m.DG0(), func(a []ufl.Expr) ufl.Expr { return ufl.Mul(a[0], a[1]) }, g, u)
	require.NoError(t, err)
	out, err := assembly.Assemble(context.Background(), tp, ufl.Integral(n, m), assembly.DefaultBackend())
	require.NoError(t, err)
	f := tape.NewFunctional(tp, out)

	grads, err := f.Gradient(context.Background(), g)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.25, 0.5, 0.75, 1}, grads[0].Data(), 1e-12)
	v, ok := tp.Lookup(g)
	require.True(t, ok)
	assert.Same(t, m.DG0(), v.AdjSpace())
}

func TestRealOperand(t *testing.T) {
	tp := tape.New()
	m := ufl.UnitInterval(4)
	u := ufl.FieldFrom(m.DG0(), "u", uv)
	r := ufl.FieldFrom(m.Real(), "r", []float64{3})
	n, err := Apply(tp, "N", m.DG0(), func(a []ufl.Expr) ufl.Expr { return ufl.Mul(a[0], a[1]) }, r, u)
	require.NoError(t, err)
	out, err := assembly.Assemble(context.Background(), tp, ufl.Integral(n, m), assembly.DefaultBackend())
	require.NoError(t, err)
	f := tape.NewFunctional(tp, out)

	grads, err := f.Gradient(context.Background(), r, u)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2.5}, grads[0].Data(), 1e-12)
	assert.InDeltaSlice(t, []float64{0.75, 0.75, 0.75, 0.75}, grads[1].Data(), 1e-12)
}

func TestUsesCoordinate(t *testing.T) {
	m := ufl.UnitInterval(2)
	u := ufl.NewField(m.DG0(), "u")
	x := ufl.X(m)
	inner := ufl.NewOperator("M", m.DG0(), func(a []ufl.Expr) ufl.Expr { return a[0] }, u)

	assert.True(t, UsesCoordinate(ufl.Sin(ufl.Mul(u, x))))
	assert.False(t, UsesCoordinate(ufl.Mul(u, u)))
	assert.False(t, UsesCoordinate(ufl.Mul(inner, u)), "nested operators are opaque")
}

// TestHessian_MixedShape records N = u² and J = ∫ N x dx on a nonuniform mesh.
// With h_i m_i = (X_{i+1}² - X_i²)/2 the mixed second derivative is
// Σ_i 2 u_i du_i (X_{i+1} dX_{i+1} - X_i dX_i), and both orders of seeding
// must agree on it.
func TestHessian_MixedShape(t *testing.T) {
	xs := []float64{0, 0.2, 0.5, 0.6, 1}
	us := []float64{0.3, -1, 2, 0.7}
	du := []float64{1, 0.5, -2, 0.25}
	dm := []float64{0.1, -0.3, 0.2, 0.05, 0.4}

	tp := tape.New()
	m, err := ufl.IntervalMesh(xs)
	require.NoError(t, err)
	u := ufl.FieldFrom(m.DG0(), "u", us)
	n, err := Apply(tp, "N", m.DG0(), func(a []ufl.Expr) ufl.Expr { return ufl.Mul(a[0], a[0]) }, u)
	require.NoError(t, err)
	out, err := assembly.Assemble(context.Background(), tp, ufl.Integral(ufl.Mul(n, ufl.X(m)), m), assembly.DefaultBackend())
	require.NoError(t, err)
	f := tape.NewFunctional(tp, out)
	ctx := context.Background()

	want := 0.0
	for i := range us {
		want += 2 * us[i] * du[i] * (xs[i+1]*dm[i+1] - xs[i]*dm[i])
	}
	require.InDelta(t, 0.4935, want, 1e-12)

	hm, err := f.Hessian(ctx, []tape.Seed{{Control: u, Direction: fem.Vector(du)}}, m)
	require.NoError(t, err)
	hu, err := f.Hessian(ctx, []tape.Seed{{Control: m, Direction: fem.Vector(dm)}}, u)
	require.NoError(t, err)

	assert.InDelta(t, want, floats.Dot(dm, hm[0].Data()), 1e-12)
	assert.InDelta(t, want, floats.Dot(du, hu[0].Data()), 1e-12)
}
