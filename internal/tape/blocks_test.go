package tape

import (
	"context"

	"github.com/born-ml/formgrad/internal/fem"
	"github.com/born-ml/formgrad/internal/ufl"
)

// sumSquares records n = Σ c_i² over constants.
type sumSquares struct {
	Base
	prepares   map[string]int
	components int
}

func newSumSquares(t *Tape, cs ...*ufl.Constant) (*Number, *sumSquares) {
	b := &sumSquares{prepares: make(map[string]int)}
	acc := 0.0
	for _, c := range cs {
		b.AddDependency(t.Variable(c), true)
		acc += c.Value() * c.Value()
	}
	out := NewNumber(fem.Scalar(acc))
	b.AddOutput(t.Variable(out))
	t.Record(b)
	return out, b
}

func (b *sumSquares) values(kind string) []float64 {
	b.prepares[kind]++
	vals := make([]float64, len(b.Dependencies()))
	for i, dep := range b.Dependencies() {
		vals[i] = dep.SavedOutput().(*ufl.Constant).Value()
	}
	return vals
}

func (b *sumSquares) String() string { return "sumSquares" }

func (b *sumSquares) Recompute(ctx context.Context) error {
	return RunRecompute[[]float64](ctx, &b.Base, b)
}

func (b *sumSquares) EvaluateAdj(ctx context.Context) error {
	return RunAdj[[]float64](ctx, &b.Base, b)
}

func (b *sumSquares) EvaluateTLM(ctx context.Context) error {
	return RunTLM[[]float64](ctx, &b.Base, b)
}

func (b *sumSquares) EvaluateHessian(ctx context.Context) error {
	return RunHessian[[]float64](ctx, &b.Base, b)
}

func (b *sumSquares) PrepareRecompute(context.Context) ([]float64, error) {
	return b.values("recompute"), nil
}

func (b *sumSquares) RecomputeComponent(_ context.Context, vals []float64, out *BlockVariable, _ int) (Overloaded, error) {
	acc := 0.0
	for _, v := range vals {
		acc += v * v
	}
	return out.SavedOutput().(*Number).Recomputed(fem.Scalar(acc)), nil
}

func (b *sumSquares) PrepareAdj(context.Context, []fem.Value, []int) ([]float64, error) {
	return b.values("adj"), nil
}

func (b *sumSquares) AdjComponent(_ context.Context, vals []float64, adj []fem.Value, _ *BlockVariable, idx int) (*Contribution, error) {
	b.components++
	return &Contribution{Value: adj[0].Scale(2 * vals[idx])}, nil
}

func (b *sumSquares) PrepareTLM(context.Context, []int) ([]float64, error) {
	return b.values("tlm"), nil
}

func (b *sumSquares) TLMComponent(_ context.Context, vals []float64, _ *BlockVariable, _ int) (*Contribution, error) {
	acc := fem.Value{}
	for i, dep := range b.Dependencies() {
		if dir, ok := dep.TLM(); ok {
			acc = acc.Add(dir.Scale(2 * vals[i]))
		}
	}
	return &Contribution{Value: acc}, nil
}

func (b *sumSquares) PrepareHessian(context.Context, []fem.Value, []fem.Value, []int) ([]float64, error) {
	return b.values("hessian"), nil
}

func (b *sumSquares) HessianComponent(_ context.Context, vals []float64, adj, hess []fem.Value, dep *BlockVariable, idx int) (*Contribution, error) {
	out := hess[0].Scale(2 * vals[idx])
	if dir, ok := dep.TLM(); ok {
		out = out.Add(adj[0].Mul(dir).Scale(2))
	}
	return &Contribution{Value: out}, nil
}

// scaled records m = k·n for a number n. It evaluates its sweeps directly,
// without the component drivers.
type scaled struct {
	Base
	k float64
}

func newScaled(t *Tape, n *Number, k float64) *Number {
	b := &scaled{k: k}
	b.AddDependency(t.Variable(n), true)
	out := NewNumber(n.Value().Scale(k))
	b.AddOutput(t.Variable(out))
	t.Record(b)
	return out
}

func (b *scaled) String() string { return "scaled" }

func (b *scaled) Recompute(context.Context) error {
	n := b.Dependencies()[0].SavedOutput().(*Number)
	out := b.Outputs()[0]
	out.SetSavedOutput(out.SavedOutput().(*Number).Recomputed(n.Value().Scale(b.k)))
	return nil
}

func (b *scaled) EvaluateAdj(context.Context) error {
	if adj, ok := b.Outputs()[0].AdjValue(); ok {
		b.Dependencies()[0].AddAdj(&Contribution{Value: adj.Scale(b.k)})
	}
	return nil
}

func (b *scaled) EvaluateTLM(context.Context) error {
	if dir, ok := b.Dependencies()[0].TLM(); ok {
		b.Outputs()[0].AddTLM(dir.Scale(b.k))
	}
	return nil
}

func (b *scaled) EvaluateHessian(context.Context) error {
	if h, ok := b.Outputs()[0].HessianValue(); ok {
		b.Dependencies()[0].AddHessian(&Contribution{Value: h.Scale(b.k)})
	}
	return nil
}

// failing returns err from every sweep.
type failing struct {
	Base
	err error
}

func (b *failing) String() string                        { return "failing" }
func (b *failing) Recompute(context.Context) error       { return b.err }
func (b *failing) EvaluateAdj(context.Context) error     { return b.err }
func (b *failing) EvaluateTLM(context.Context) error     { return b.err }
func (b *failing) EvaluateHessian(context.Context) error { return b.err }
