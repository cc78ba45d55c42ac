package tape

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"

	"github.com/born-ml/formgrad/internal/fem"
)

// TaylorResult holds the remainders of a Taylor test and their convergence
// rates. Without the gradient the remainder decays like h, with it like h².
type TaylorResult struct {
	Steps         []float64
	Residuals     []float64
	GradResiduals []float64
	Rates         []float64
	GradRates     []float64
}

// MinGradRate returns the smallest observed rate with the gradient term.
func (r TaylorResult) MinGradRate() float64 {
	m := math.Inf(1)
	for _, v := range r.GradRates {
		m = math.Min(m, v)
	}
	return m
}

// TaylorTest evaluates
//
//	|J(m + h·dm) - J(m)|           and
//	|J(m + h·dm) - J(m) - h·dJ·dm|
//
// for h = h0, h0/2, ... (n steps) and returns the observed rates.
func TaylorTest(ctx context.Context, f *Functional, control Overloaded, dir fem.Value, h0 float64, n int) (TaylorResult, error) {
	if n < 2 {
		return TaylorResult{}, fmt.Errorf("taylor test needs at least 2 steps, got %d", n)
	}
	j0, err := f.Value(ctx)
	if err != nil {
		return TaylorResult{}, err
	}
	grads, err := f.Gradient(ctx, control)
	if err != nil {
		return TaylorResult{}, err
	}
	dJdm := grads[0].Dot(dir)

	var res TaylorResult
	h := h0
	for i := 0; i < n; i++ {
		jh, err := f.ValueAt(ctx, control, dir, h)
		if err != nil {
			return TaylorResult{}, err
		}
		res.Steps = append(res.Steps, h)
		res.Residuals = append(res.Residuals, math.Abs(jh-j0))
		res.GradResiduals = append(res.GradResiduals, math.Abs(jh-j0-h*dJdm))
		h /= 2
	}
	res.Rates = rates(res.Residuals)
	res.GradRates = rates(res.GradResiduals)
	return res, nil
}

func rates(r []float64) []float64 {
	out := make([]float64, 0, len(r)-1)
	for i := 1; i < len(r); i++ {
		out = append(out, math.Log2(r[i-1]/r[i]))
	}
	return out
}

// FiniteDifference approximates dJ·dm with a central difference of the given
// step.
func FiniteDifference(ctx context.Context, f *Functional, control Overloaded, dir fem.Value, step float64) (float64, error) {
	var ferr error
	d := fd.Derivative(func(h float64) float64 {
		if ferr != nil {
			return math.NaN()
		}
		v, err := f.ValueAt(ctx, control, dir, h)
		if err != nil {
			ferr = err
			return math.NaN()
		}
		return v
	}, 0, &fd.Settings{Formula: fd.Central, Step: step})
	if ferr != nil {
		return 0, ferr
	}
	return d, nil
}
