package operator

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/formgrad/internal/fem"
	"github.com/born-ml/formgrad/internal/tape"
	"github.com/born-ml/formgrad/internal/ufl"
)

// state is the operator rebuilt on saved operand values, shared by the
// component calls of one sweep.
type state struct {
	op   *ufl.Operator
	reps []ufl.Expr
}

func (b *Block) prepare() (*state, error) {
	deps := b.Dependencies()
	m := make(ufl.Mapping, len(deps))
	for _, dep := range deps {
		saved, ok := dep.SavedOutput().(ufl.Expr)
		if !ok {
			return nil, fmt.Errorf("saved value of %s is %T, not an expression", dep.Output().Key(), dep.SavedOutput())
		}
		m[dep.Output().Key()] = saved
	}
	// Operands that are operators are rebuilt on the saved values, so their
	// representatives go through the same substitution.
	reps := make([]ufl.Expr, len(deps))
	for i, dep := range deps {
		reps[i] = ufl.ReplaceExpr(dep.Output().(ufl.Expr), m)
	}
	operands := make([]ufl.Expr, len(b.op.Operands()))
	for i, o := range b.op.Operands() {
		operands[i] = ufl.ReplaceExpr(o, m)
	}
	return &state{op: b.op.With(operands...), reps: reps}, nil
}

// PrepareRecompute rebuilds the operator.
func (b *Block) PrepareRecompute(context.Context) (*state, error) { return b.prepare() }

// RecomputeComponent returns the rebuilt operator.
func (b *Block) RecomputeComponent(_ context.Context, s *state, _ *tape.BlockVariable, _ int) (tape.Overloaded, error) {
	return s.op, nil
}

// PrepareAdj rebuilds the operator.
func (b *Block) PrepareAdj(context.Context, []fem.Value, []int) (*state, error) { return b.prepare() }

// AdjComponent returns J_k^T a for dependency k, where J_k is the pointwise
// partial derivative of the body.
func (b *Block) AdjComponent(_ context.Context, s *state, adjInputs []fem.Value, dep *tape.BlockVariable, idx int) (*tape.Contribution, error) {
	a := adjInputs[0]
	if a.IsScalar() {
		return nil, nil
	}
	p, err := b.partial(ufl.Diff(s.op.Expand(), s.reps[idx], ufl.Lit(1)))
	if err != nil {
		return nil, err
	}
	return b.pullback(dep, weighted(a.Data(), p))
}

// PrepareTLM rebuilds the operator.
func (b *Block) PrepareTLM(context.Context, []int) (*state, error) { return b.prepare() }

// TLMComponent returns Σ_k J_k tlm_k.
func (b *Block) TLMComponent(_ context.Context, s *state, _ *tape.BlockVariable, _ int) (*tape.Contribution, error) {
	d, err := b.directional(s, s.op.Expand())
	if err != nil {
		return nil, err
	}
	vals, err := b.partial(d)
	if err != nil {
		return nil, err
	}
	return &tape.Contribution{Value: fem.Vector(vals)}, nil
}

// PrepareHessian rebuilds the operator.
func (b *Block) PrepareHessian(context.Context, []fem.Value, []fem.Value, []int) (*state, error) {
	return b.prepare()
}

// HessianComponent returns J_k^T h + (Σ_m ∂²N/∂k∂m tlm_m)^T a for dependency k.
func (b *Block) HessianComponent(_ context.Context, s *state, adjInputs, hessianInputs []fem.Value, dep *tape.BlockVariable, idx int) (*tape.Contribution, error) {
	first := ufl.Diff(s.op.Expand(), s.reps[idx], ufl.Lit(1))
	w := make([]float64, b.op.Space().Dim())
	if h := hessianInputs[0]; !h.IsScalar() {
		p, err := b.partial(first)
		if err != nil {
			return nil, err
		}
		floats.Add(w, weighted(h.Data(), p))
	}
	if a := adjInputs[0]; !a.IsScalar() {
		d, err := b.directional(s, first)
		if err != nil {
			return nil, err
		}
		q, err := b.partial(d)
		if err != nil {
			return nil, err
		}
		floats.Add(w, weighted(a.Data(), q))
	}
	return b.pullback(dep, w)
}

// directional returns Σ_m Diff(e, rep_m, tlm_m) over the seeded dependencies.
func (b *Block) directional(s *state, e ufl.Expr) (ufl.Expr, error) {
	terms := make([]ufl.Expr, 0, len(s.reps))
	for i, dep := range b.Dependencies() {
		seed, ok := dep.TLM()
		if !ok {
			continue
		}
		dir, err := b.direction(dep, seed)
		if err != nil {
			return nil, err
		}
		terms = append(terms, ufl.Diff(e, s.reps[i], dir))
	}
	return ufl.Add(terms...), nil
}

func (b *Block) direction(dep *tape.BlockVariable, seed fem.Value) (ufl.Expr, error) {
	space, err := b.space(dep)
	if err != nil {
		return nil, err
	}
	key := dep.Output().Key()
	if space.Family() == ufl.Real {
		return ufl.NewConstant(seed.Float(), "d"+key), nil
	}
	if seed.Len() != space.Dim() {
		return nil, fmt.Errorf("direction for %s: %d entries, %s has %d", key, seed.Len(), space, space.Dim())
	}
	return ufl.FieldFrom(space, "d"+key, seed.Data()), nil
}

// partial samples e at the cell midpoints of the operator's space.
func (b *Block) partial(e ufl.Expr) ([]float64, error) {
	v, err := fem.Interpolate(e, b.op.Space())
	if err != nil {
		return nil, fmt.Errorf("operator %s: %w", b.op.Name(), err)
	}
	return v, nil
}

func (b *Block) space(dep *tape.BlockVariable) (*ufl.Space, error) {
	v, ok := dep.Output().(ufl.Variable)
	if !ok {
		return nil, fmt.Errorf("dependency %s: %w", dep.Output().Key(), ErrSpace)
	}
	s := v.InducedSpace(b.op.Space().Mesh())
	if s == nil {
		return nil, fmt.Errorf("dependency %s: %w", dep.Output().Key(), ErrSpace)
	}
	return s, nil
}

// pullback maps cellwise values to the dependency's space: Real dependencies
// receive the sum.
func (b *Block) pullback(dep *tape.BlockVariable, w []float64) (*tape.Contribution, error) {
	v, ok := dep.Output().(ufl.Variable)
	if !ok {
		return nil, nil
	}
	s, err := b.space(dep)
	if err != nil {
		return nil, err
	}
	c := &tape.Contribution{}
	if s.Family() == ufl.Real {
		c.Value = fem.Vector([]float64{floats.Sum(w)})
	} else {
		c.Value = fem.Vector(w)
	}
	if v.Paired() {
		c.Space = s
	}
	return c, nil
}

func weighted(a, p []float64) []float64 {
	out := make([]float64, len(a))
	floats.MulTo(out, a, p)
	return out
}
