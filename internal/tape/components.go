package tape

import (
	"context"

	"github.com/born-ml/formgrad/internal/fem"
)

// Most blocks compute their derivatives one dependency (or one output) at a
// time from state that only depends on the sweep. The drivers below run the
// block's prepare step once per sweep, hand the prepared state to every
// component call and drop it when the sweep returns.

// AdjComponents computes reverse-mode partial derivatives.
type AdjComponents[P any] interface {
	PrepareAdj(ctx context.Context, adjInputs []fem.Value, relevant []int) (P, error)
	// AdjComponent returns the contribution for dependency idx, or nil.
	AdjComponent(ctx context.Context, p P, adjInputs []fem.Value, dep *BlockVariable, idx int) (*Contribution, error)
}

// TLMComponents computes forward-mode directional derivatives.
type TLMComponents[P any] interface {
	PrepareTLM(ctx context.Context, relevant []int) (P, error)
	// TLMComponent returns the directional derivative of output idx, or nil.
	TLMComponent(ctx context.Context, p P, out *BlockVariable, idx int) (*Contribution, error)
}

// HessianComponents computes second-order adjoint contributions.
type HessianComponents[P any] interface {
	PrepareHessian(ctx context.Context, adjInputs, hessianInputs []fem.Value, relevant []int) (P, error)
	// HessianComponent returns the contribution for dependency idx, or nil.
	HessianComponent(ctx context.Context, p P, adjInputs, hessianInputs []fem.Value, dep *BlockVariable, idx int) (*Contribution, error)
}

// RecomputeComponents recomputes block outputs.
type RecomputeComponents[P any] interface {
	PrepareRecompute(ctx context.Context) (P, error)
	// RecomputeComponent returns the new value of output idx.
	RecomputeComponent(ctx context.Context, p P, out *BlockVariable, idx int) (Overloaded, error)
}

// RunAdj drives an adjoint sweep over b. Nothing happens when no output carries
// an adjoint. Outputs without one are treated as zero.
func RunAdj[P any](ctx context.Context, b *Base, c AdjComponents[P]) error {
	inputs, seeded := collect(b.outputs, (*BlockVariable).AdjValue)
	if !seeded {
		return nil
	}
	relevant := indices(b.deps)
	p, err := c.PrepareAdj(ctx, inputs, relevant)
	if err != nil {
		return err
	}
	for _, idx := range relevant {
		dep := b.deps[idx]
		contrib, err := c.AdjComponent(ctx, p, inputs, dep, idx)
		if err != nil {
			return err
		}
		dep.AddAdj(contrib)
	}
	return nil
}

// RunTLM drives a tangent-linear sweep over b. Nothing happens when no
// dependency carries a forward seed.
func RunTLM[P any](ctx context.Context, b *Base, c TLMComponents[P]) error {
	relevant := make([]int, 0, len(b.deps))
	for i, dep := range b.deps {
		if _, ok := dep.TLM(); ok {
			relevant = append(relevant, i)
		}
	}
	if len(relevant) == 0 {
		return nil
	}
	p, err := c.PrepareTLM(ctx, relevant)
	if err != nil {
		return err
	}
	for idx, out := range b.outputs {
		contrib, err := c.TLMComponent(ctx, p, out, idx)
		if err != nil {
			return err
		}
		if contrib != nil {
			out.AddTLM(contrib.Value)
		}
	}
	return nil
}

// RunHessian drives a second-order adjoint sweep over b. Missing Hessian
// inputs are zero; nothing happens when no output carries either seed.
func RunHessian[P any](ctx context.Context, b *Base, c HessianComponents[P]) error {
	adjInputs, anyAdj := collect(b.outputs, (*BlockVariable).AdjValue)
	hessianInputs, anyHessian := collect(b.outputs, (*BlockVariable).HessianValue)
	if !anyAdj && !anyHessian {
		return nil
	}
	relevant := indices(b.deps)
	p, err := c.PrepareHessian(ctx, adjInputs, hessianInputs, relevant)
	if err != nil {
		return err
	}
	for _, idx := range relevant {
		dep := b.deps[idx]
		contrib, err := c.HessianComponent(ctx, p, adjInputs, hessianInputs, dep, idx)
		if err != nil {
			return err
		}
		dep.AddHessian(contrib)
	}
	return nil
}

// RunRecompute drives recomputation of every output of b.
func RunRecompute[P any](ctx context.Context, b *Base, c RecomputeComponents[P]) error {
	p, err := c.PrepareRecompute(ctx)
	if err != nil {
		return err
	}
	for idx, out := range b.outputs {
		v, err := c.RecomputeComponent(ctx, p, out, idx)
		if err != nil {
			return err
		}
		out.SetSavedOutput(v)
	}
	return nil
}

func collect(vars []*BlockVariable, get func(*BlockVariable) (fem.Value, bool)) ([]fem.Value, bool) {
	out := make([]fem.Value, len(vars))
	found := false
	for i, v := range vars {
		val, ok := get(v)
		if ok {
			out[i] = val
			found = true
		}
	}
	return out, found
}

func indices(vars []*BlockVariable) []int {
	out := make([]int, len(vars))
	for i := range out {
		out[i] = i
	}
	return out
}
