package assembly

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/born-ml/formgrad/internal/fem"
	"github.com/born-ml/formgrad/internal/tape"
	"github.com/born-ml/formgrad/internal/ufl"
)

// PrepareHessian substitutes saved values. Only scalar forms can be
// differentiated.
func (b *Block) PrepareHessian(ctx context.Context, _, _ []fem.Value, relevant []int) (*Sweep, error) {
	if err := b.requireScalar("hessian"); err != nil {
		return nil, err
	}
	s, err := b.prepare(ctx)
	if err != nil {
		return nil, err
	}
	s.relevant = relevant
	return s, nil
}

// HessianComponent returns the second-order adjoint for dependency idx:
//
//	hessian · ∂F/∂c1 + adj · Σ_c2 ∂²F/∂c1∂c2 [tlm(c2)]
//
// summed over every dependency c2 with a forward seed, c1 included. The first
// derivative is taken directly with respect to c1, without isolating it from
// nested operators. Dependencies of no recognized kind yield no contribution.
func (b *Block) HessianComponent(ctx context.Context, s *Sweep, adjInputs, hessianInputs []fem.Value, dep *tape.BlockVariable, idx int) (*tape.Contribution, error) {
	d := s.deps[idx]
	if d.kind == unknownKind {
		return nil, nil
	}
	key := dep.Output().Key()
	df := b.backend.Derivative(s.form, d.rep, b.backend.TestFunction(d.space))

	var out fem.Value
	if h := hessianInputs[0]; !h.IsZero() {
		v, err := b.assemble(ctx, df)
		if err != nil {
			return nil, fmt.Errorf("hessian for %s: %w", key, err)
		}
		out = out.Add(h.Mul(v))
	}

	if adj := adjInputs[0]; !adj.IsZero() {
		deps := b.Dependencies()
		var second ufl.Form
		for _, j := range s.relevant {
			seed, ok := deps[j].TLM()
			if !ok {
				continue
			}
			dj := s.deps[j]
			if dj.kind == unknownKind {
				continue
			}
			dir, err := direction(seed, dj.space, deps[j].Output().Key())
			if err != nil {
				return nil, fmt.Errorf("hessian for %s: %w", key, err)
			}
			second = second.Add(b.backend.Derivative(df, dj.rep, dir))
		}
		v, err := b.assemble(ctx, second)
		if err != nil {
			return nil, fmt.Errorf("hessian for %s: %w", key, err)
		}
		out = out.Add(adj.Mul(v))
	}

	b.logger.Debug("hessian component",
		zap.Int("dependency", idx),
		zap.Stringer("kind", d.kind),
	)
	c := &tape.Contribution{Value: out}
	if d.kind == pairedKind {
		c.Space = d.space
	}
	return c, nil
}
