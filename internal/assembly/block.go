// Package assembly implements the assemble block: the tape node that records
// the assembly of an integral form and replays it in the four sweeps.
//
// The block depends on the form's domain and on every distinct coefficient of
// the form, including the operands of nested operators. Each sweep starts by
// substituting saved values for every coefficient once (see Sweep); derivatives
// are then taken of the substituted form one dependency at a time.
package assembly

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/born-ml/formgrad/internal/fem"
	"github.com/born-ml/formgrad/internal/tape"
	"github.com/born-ml/formgrad/internal/ufl"
)

// ErrUnknownDependency is returned when a forward seed or adjoint is requested
// for a dependency that is none of field, constant, expression, operator or
// mesh.
var ErrUnknownDependency = errors.New("unrecognized dependency kind")

// Block is an assemble block.
type Block struct {
	tape.Base

	form    ufl.Form
	mesh    *ufl.Mesh
	backend Backend
	logger  *zap.Logger
}

// New creates a block for f and registers its dependencies on t: the domain
// first, then the distinct coefficients in order of first appearance. It fails
// when f has no domain.
func New(t *tape.Tape, f ufl.Form, b Backend) (*Block, error) {
	b = b.withDefaults()
	mesh, err := b.Domain(f)
	if err != nil {
		return nil, fmt.Errorf("assemble block: %w", err)
	}
	blk := &Block{
		form:    f,
		mesh:    mesh,
		backend: b,
		logger:  b.Logger.With(zap.String("block", "assemble")),
	}
	blk.AddDependency(t.Variable(mesh), true)
	for _, c := range b.Coefficients(f) {
		blk.AddDependency(t.Variable(c), true)
	}
	return blk, nil
}

// Assemble assembles f, records the block on t and returns the tracked result.
func Assemble(ctx context.Context, t *tape.Tape, f ufl.Form, b Backend) (*tape.Number, error) {
	blk, err := New(t, f, b)
	if err != nil {
		return nil, err
	}
	s, err := blk.prepare(ctx)
	if err != nil {
		return nil, err
	}
	v, err := blk.assemble(ctx, s.form)
	if err != nil {
		return nil, err
	}
	out := tape.NewNumber(v)
	blk.AddOutput(t.Variable(out))
	t.Record(blk)
	return out, nil
}

// Form returns the recorded form.
func (b *Block) Form() ufl.Form { return b.form }

// Mesh returns the integration domain.
func (b *Block) Mesh() *ufl.Mesh { return b.mesh }

func (b *Block) String() string { return "AssembleBlock(" + b.form.String() + ")" }

// Recompute reassembles the form from the saved dependency values.
func (b *Block) Recompute(ctx context.Context) error {
	ctx, span := startBlockSpan(ctx, "Recompute", b)
	defer span.End()
	return spanErr(span, tape.RunRecompute[*Sweep](ctx, &b.Base, b))
}

// EvaluateAdj accumulates the adjoint of every dependency.
func (b *Block) EvaluateAdj(ctx context.Context) error {
	ctx, span := startBlockSpan(ctx, "EvaluateAdj", b)
	defer span.End()
	return spanErr(span, tape.RunAdj[*Sweep](ctx, &b.Base, b))
}

// EvaluateTLM accumulates the directional derivative of the output.
func (b *Block) EvaluateTLM(ctx context.Context) error {
	ctx, span := startBlockSpan(ctx, "EvaluateTLM", b)
	defer span.End()
	return spanErr(span, tape.RunTLM[*Sweep](ctx, &b.Base, b))
}

// EvaluateHessian accumulates the second-order adjoint of every dependency.
func (b *Block) EvaluateHessian(ctx context.Context) error {
	ctx, span := startBlockSpan(ctx, "EvaluateHessian", b)
	defer span.End()
	return spanErr(span, tape.RunHessian[*Sweep](ctx, &b.Base, b))
}

func spanErr(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// assemble assembles f. The empty form is the additive identity and is not
// assembled.
func (b *Block) assemble(ctx context.Context, f ufl.Form) (fem.Value, error) {
	if f.IsEmpty() {
		return fem.Value{}, nil
	}
	recordAssemble(ctx, f.Rank())
	v, err := b.backend.Assemble(f)
	if err != nil {
		return fem.Value{}, fmt.Errorf("assemble: %w", err)
	}
	return v, nil
}

// requireScalar rejects derivative sweeps of vector-valued forms.
func (b *Block) requireScalar(sweep string) error {
	if r := b.form.Rank(); r != 0 {
		return fmt.Errorf("%s of rank %d form: %w", sweep, r, fem.ErrRank)
	}
	return nil
}

// direction turns a forward seed into an expression in space s: a constant for
// the Real space, a field otherwise.
func direction(v fem.Value, s *ufl.Space, name string) (ufl.Expr, error) {
	if s.Family() == ufl.Real {
		if v.Len() != 1 {
			return nil, fmt.Errorf("direction for %s: %d entries for a constant", name, v.Len())
		}
		return ufl.NewConstant(v.Float(), "d"+name), nil
	}
	if v.Len() != s.Dim() {
		return nil, fmt.Errorf("direction for %s: %d entries, %s has %d", name, v.Len(), s, s.Dim())
	}
	return ufl.FieldFrom(s, "d"+name, v.Data()), nil
}
