package optim_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/born-ml/formgrad/internal/assembly"
	"github.com/born-ml/formgrad/internal/fem"
	"github.com/born-ml/formgrad/internal/optim"
	"github.com/born-ml/formgrad/internal/tape"
	"github.com/born-ml/formgrad/internal/ufl"
)

// TestSGD_SimpleUpdate tests SGD without momentum.
func TestSGD_SimpleUpdate(t *testing.T) {
	opt := optim.NewSGD(optim.SGDConfig{LR: 0.1})

	// Expected: step = -lr * grad
	steps := opt.Step([]fem.Value{fem.Vector([]float64{1, -2}), fem.Scalar(3)})
	require.Len(t, steps, 2)
	assert.InDeltaSlice(t, []float64{-0.1, 0.2}, steps[0].Data(), 1e-15)
	assert.InDeltaSlice(t, []float64{-0.3}, steps[1].Data(), 1e-15)
}

// TestSGD_WithMomentum tests SGD with momentum.
func TestSGD_WithMomentum(t *testing.T) {
	opt := optim.NewSGD(optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	g := []fem.Value{fem.Vector([]float64{1})}

	// v1 = 1, v2 = 0.9 * 1 + 1 = 1.9
	assert.InDeltaSlice(t, []float64{-0.1}, opt.Step(g)[0].Data(), 1e-15)
	assert.InDeltaSlice(t, []float64{-0.19}, opt.Step(g)[0].Data(), 1e-15)

	opt.Reset()
	assert.InDeltaSlice(t, []float64{-0.1}, opt.Step(g)[0].Data(), 1e-15)
}

func TestSGD_ZeroGrad(t *testing.T) {
	opt := optim.NewSGD(optim.SGDConfig{Momentum: 0.5})

	steps := opt.Step([]fem.Value{{}, fem.Vector([]float64{1})})
	assert.True(t, steps[0].IsZero())
	assert.InDeltaSlice(t, []float64{-0.01}, steps[1].Data(), 1e-15)
}

func TestSGD_GetSetLR(t *testing.T) {
	opt := optim.NewSGD(optim.SGDConfig{})
	assert.Equal(t, 0.01, opt.GetLR())

	opt.SetLR(0.5)
	assert.Equal(t, 0.5, opt.GetLR())
}

// TestAdam_SimpleUpdate checks that the first step has size lr per entry.
func TestAdam_SimpleUpdate(t *testing.T) {
	opt := optim.NewAdam(optim.AdamConfig{LR: 0.1})

	steps := opt.Step([]fem.Value{fem.Vector([]float64{2, -0.5})})
	assert.InDeltaSlice(t, []float64{-0.1, 0.1}, steps[0].Data(), 1e-6)
}

func TestAdam_BiasCorrection(t *testing.T) {
	opt := optim.NewAdam(optim.AdamConfig{LR: 0.1})

	// Constant gradients keep m_hat = g and v_hat = g², so every step is -lr.
	for i := range 5 {
		s := opt.Step([]fem.Value{fem.Vector([]float64{4})})
		assert.InDeltaSlice(t, []float64{-0.1}, s[0].Data(), 1e-6, "step %d", i)
	}

	opt.Reset()
	s := opt.Step([]fem.Value{fem.Vector([]float64{-4})})
	assert.InDeltaSlice(t, []float64{0.1}, s[0].Data(), 1e-6)
	assert.Equal(t, 0.1, opt.GetLR())
}

// misfit records J = ∫ (u - x)² dx with u = 0 on 4 cells. The minimizer is
// u = x at the cell midpoints.
func misfit(t *testing.T) (*tape.Functional, *ufl.Field, *ufl.Mesh) {
	t.Helper()
	tp := tape.New()
	m := ufl.UnitInterval(4)
	u := ufl.NewField(m.DG0(), "u")
	e := ufl.Pow(ufl.Sub(u, ufl.X(m)), ufl.Lit(2))
	out, err := assembly.Assemble(context.Background(), tp, ufl.Integral(e, m), assembly.DefaultBackend())
	require.NoError(t, err)
	return tape.NewFunctional(tp, out), u, m
}

func TestMinimize_SGD(t *testing.T) {
	f, u, _ := misfit(t)
	ctx := context.Background()

	// dJ/du = 2h(u - x) = (u - x)/2, so lr 1 halves the error every step.
	res, err := optim.Minimize(ctx, f, []tape.Overloaded{u}, optim.NewSGD(optim.SGDConfig{LR: 1}), optim.MinimizeConfig{
		MaxIter: 200,
		GTol:    1e-10,
		Logger:  zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Less(t, res.Iterations, 50)
	assert.Len(t, res.History, res.Iterations+1)
	for i := 1; i < len(res.History); i++ {
		assert.Less(t, res.History[i], res.History[i-1])
	}
	assert.InDelta(t, 0, res.Value, 1e-18)

	cur, err := f.Current(u)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.125, 0.375, 0.625, 0.875}, cur.(*ufl.Field).Values(), 1e-9)
	assert.Equal(t, []float64{0, 0, 0, 0}, u.Values(), "the recorded field is not mutated")

	grads, err := f.Gradient(ctx, u)
	require.NoError(t, err)
	assert.Less(t, grads[0].Norm(), 1e-10)
}

func TestMinimize_AdamConstant(t *testing.T) {
	tp := tape.New()
	m := ufl.UnitInterval(2)
	c := ufl.NewConstant(0, "c")
	out, err := assembly.Assemble(context.Background(), tp, ufl.Integral(ufl.Pow(ufl.Sub(c, ufl.Lit(3)), ufl.Lit(2)), m), assembly.DefaultBackend())
	require.NoError(t, err)
	f := tape.NewFunctional(tp, out)

	res, err := optim.Minimize(context.Background(), f, []tape.Overloaded{c}, optim.NewAdam(optim.AdamConfig{LR: 0.05}), optim.MinimizeConfig{MaxIter: 400})
	require.NoError(t, err)
	assert.InDelta(t, 9.0, res.History[0], 1e-12)
	assert.Less(t, res.Value, 1e-2)

	cur, err := f.Current(c)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, cur.(*ufl.Constant).Value(), 0.1)
}

func TestMinimize_MaxIter(t *testing.T) {
	f, u, _ := misfit(t)

	res, err := optim.Minimize(context.Background(), f, []tape.Overloaded{u}, optim.NewSGD(optim.SGDConfig{LR: 1}), optim.MinimizeConfig{MaxIter: 2})
	require.NoError(t, err)
	assert.False(t, res.Converged)
	assert.Equal(t, 2, res.Iterations)
	assert.Len(t, res.History, 3)
	assert.False(t, math.IsNaN(res.GradNorm))
}

func TestMinimize_Errors(t *testing.T) {
	f, _, mesh := misfit(t)
	ctx := context.Background()

	_, err := optim.Minimize(ctx, f, nil, optim.NewSGD(optim.SGDConfig{}), optim.MinimizeConfig{})
	assert.ErrorIs(t, err, optim.ErrNoControls)

	_, err = optim.Minimize(ctx, f, []tape.Overloaded{mesh}, optim.NewSGD(optim.SGDConfig{}), optim.MinimizeConfig{MaxIter: 1})
	assert.ErrorIs(t, err, tape.ErrNotPerturbable)
}
