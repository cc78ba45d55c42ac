package assembly

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/born-ml/formgrad/internal/fem"
	"github.com/born-ml/formgrad/internal/tape"
	"github.com/born-ml/formgrad/internal/ufl"
)

// PrepareAdj substitutes saved values. Only scalar forms can be differentiated.
func (b *Block) PrepareAdj(ctx context.Context, _ []fem.Value, relevant []int) (*Sweep, error) {
	if err := b.requireScalar("adjoint"); err != nil {
		return nil, err
	}
	s, err := b.prepare(ctx)
	if err != nil {
		return nil, err
	}
	s.relevant = relevant
	return s, nil
}

// AdjComponent returns the partial derivative of the form with respect to
// dependency idx, tested against a probe in its induced space and scaled by the
// adjoint of the output.
//
// Leaves are differentiated directly: their occurrences as operands of nested
// operators are zeroed first, since those contributions reach them through the
// operators' own blocks. Expressions are differentiated in the recorded form
// and the result is paired with the space it lives in.
func (b *Block) AdjComponent(ctx context.Context, s *Sweep, adjInputs []fem.Value, dep *tape.BlockVariable, idx int) (*tape.Contribution, error) {
	d := s.deps[idx]
	if d.kind == unknownKind {
		return nil, fmt.Errorf("adjoint for %s: %w", dep.Output().Key(), ErrUnknownDependency)
	}
	probe := b.backend.TestFunction(d.space)

	var df ufl.Form
	switch d.kind {
	case domainKind:
		df = b.backend.Derivative(s.form, d.rep, probe)
	case pairedKind:
		df = b.backend.Derivative(b.form, d.rep, probe)
	case nestedKind:
		df = b.backend.Derivative(s.form, d.rep, probe)
	default:
		df = b.backend.Derivative(b.isolate(s, d), d.rep, probe)
	}

	v, err := b.assemble(ctx, df)
	if err != nil {
		return nil, fmt.Errorf("adjoint for %s: %w", dep.Output().Key(), err)
	}
	b.logger.Debug("adjoint component",
		zap.Int("dependency", idx),
		zap.Stringer("kind", d.kind),
		zap.Stringer("derivative", df),
	)
	c := &tape.Contribution{Value: adjInputs[0].Mul(v)}
	if d.kind == pairedKind {
		c.Space = d.space
	}
	return c, nil
}
