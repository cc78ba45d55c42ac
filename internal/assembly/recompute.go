package assembly

import (
	"context"
	"fmt"

	"github.com/born-ml/formgrad/internal/tape"
)

// PrepareRecompute substitutes saved values.
func (b *Block) PrepareRecompute(ctx context.Context) (*Sweep, error) {
	return b.prepare(ctx)
}

// RecomputeComponent assembles the substituted form.
func (b *Block) RecomputeComponent(ctx context.Context, s *Sweep, out *tape.BlockVariable, _ int) (tape.Overloaded, error) {
	n, ok := out.Output().(*tape.Number)
	if !ok {
		return nil, fmt.Errorf("recompute: output %T is not a number", out.Output())
	}
	v, err := b.assemble(ctx, s.form)
	if err != nil {
		return nil, err
	}
	return n.Recomputed(v), nil
}
