package assembly

import (
	"context"
	"fmt"

	"github.com/born-ml/formgrad/internal/tape"
	"github.com/born-ml/formgrad/internal/ufl"
)

// PrepareTLM substitutes saved values. relevant lists the seeded dependencies.
func (b *Block) PrepareTLM(ctx context.Context, relevant []int) (*Sweep, error) {
	s, err := b.prepare(ctx)
	if err != nil {
		return nil, err
	}
	s.relevant = relevant
	return s, nil
}

// TLMComponent returns the derivative of the form along the forward seeds of
// its dependencies. Geometric terms are collected separately from value terms;
// each accumulator is assembled only if something was added to it. Leaves are
// isolated from nested operators exactly as in the adjoint.
func (b *Block) TLMComponent(ctx context.Context, s *Sweep, _ *tape.BlockVariable, _ int) (*tape.Contribution, error) {
	deps := b.Dependencies()
	var value, shape ufl.Form
	for _, i := range s.relevant {
		seed, ok := deps[i].TLM()
		if !ok {
			continue
		}
		d := s.deps[i]
		key := deps[i].Output().Key()
		if d.kind == unknownKind {
			return nil, fmt.Errorf("tlm for %s: %w", key, ErrUnknownDependency)
		}
		dir, err := direction(seed, d.space, key)
		if err != nil {
			return nil, fmt.Errorf("tlm: %w", err)
		}
		switch d.kind {
		case domainKind:
			shape = shape.Add(b.backend.Derivative(s.form, d.rep, dir))
		case leafKind:
			value = value.Add(b.backend.Derivative(b.isolate(s, d), d.rep, dir))
		default:
			value = value.Add(b.backend.Derivative(s.form, d.rep, dir))
		}
	}

	v, err := b.assemble(ctx, value)
	if err != nil {
		return nil, fmt.Errorf("tlm: %w", err)
	}
	sh, err := b.assemble(ctx, shape)
	if err != nil {
		return nil, fmt.Errorf("tlm: %w", err)
	}
	return &tape.Contribution{Value: v.Add(sh)}, nil
}
