// Package operator records nested operator coefficients on the tape.
//
// An operator N = body(operands) is a cellwise (DG0) quantity. Forms that use
// N treat it as an opaque coefficient; the block recorded here carries the
// derivatives of N with respect to the coefficients of its operands, so that
// the contributions reach them through separate tape edges.
package operator

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/born-ml/formgrad/internal/tape"
	"github.com/born-ml/formgrad/internal/ufl"
)

var tracer = otel.Tracer("formgrad.operator")

var (
	// ErrSpace is returned for operator or operand spaces other than DG0 and
	// Real.
	ErrSpace = errors.New("unsupported space")
	// ErrMesh is returned when an operand lives on another mesh.
	ErrMesh = errors.New("operand on a different mesh")
	// ErrCoordinate is returned for operator bodies that reference the
	// spatial coordinate. The block carries no mesh dependency, so its
	// second derivatives would miss the mixed shape terms.
	ErrCoordinate = errors.New("operator body references the spatial coordinate")
)

// Block records one operator application.
type Block struct {
	tape.Base

	op     *ufl.Operator
	logger *zap.Logger
}

// Apply creates the operator name = body(operands) in space, records its block
// on t and returns it. space must be DG0; field operands must be DG0 fields on
// the same mesh or Real fields. The body must not reference the spatial
// coordinate.
func Apply(t *tape.Tape, name string, space *ufl.Space, body ufl.Body, operands ...ufl.Expr) (*ufl.Operator, error) {
	if space.Family() != ufl.DG0 {
		return nil, fmt.Errorf("operator %s in %s: %w", name, space, ErrSpace)
	}
	op := ufl.NewOperator(name, space, body, operands...)
	if UsesCoordinate(op.Expand()) {
		return nil, fmt.Errorf("operator %s: %w", name, ErrCoordinate)
	}
	blk := &Block{op: op, logger: t.Logger().With(zap.String("operator", name))}
	for _, operand := range operands {
		for _, c := range ufl.Coefficients(ufl.Integral(operand, space.Mesh())) {
			if err := checkOperand(c, space.Mesh()); err != nil {
				return nil, fmt.Errorf("operator %s: %w", name, err)
			}
			blk.AddDependency(t.Variable(c), true)
		}
	}
	blk.AddOutput(t.Variable(op))
	t.Record(blk)
	return op, nil
}

// UsesCoordinate reports whether e references a spatial coordinate outside
// of nested operators.
func UsesCoordinate(e ufl.Expr) bool {
	found := false
	ufl.Walk(e, func(n ufl.Expr) bool {
		switch n.(type) {
		case *ufl.SpatialCoordinate:
			found = true
		case *ufl.Operator:
			return false
		}
		return !found
	})
	return found
}

func checkOperand(c ufl.Coefficient, mesh *ufl.Mesh) error {
	var s *ufl.Space
	switch x := c.(type) {
	case *ufl.Field:
		s = x.Space()
	case *ufl.Operator:
		s = x.Space()
	default:
		return nil
	}
	if s.Family() == ufl.P1 {
		return fmt.Errorf("operand %s in %s: %w", c, s, ErrSpace)
	}
	if s.Mesh() != mesh {
		return fmt.Errorf("operand %s: %w", c, ErrMesh)
	}
	return nil
}

// Operator returns the recorded operator.
func (b *Block) Operator() *ufl.Operator { return b.op }

func (b *Block) String() string { return "OperatorBlock(" + b.op.String() + ")" }

// Recompute rebuilds the operator on the saved operand values.
func (b *Block) Recompute(ctx context.Context) error {
	ctx, span := b.startSpan(ctx, "Recompute")
	defer span.End()
	return spanErr(span, tape.RunRecompute[*state](ctx, &b.Base, b))
}

// EvaluateAdj applies the transposed Jacobian to the operator's adjoint.
func (b *Block) EvaluateAdj(ctx context.Context) error {
	ctx, span := b.startSpan(ctx, "EvaluateAdj")
	defer span.End()
	return spanErr(span, tape.RunAdj[*state](ctx, &b.Base, b))
}

// EvaluateTLM applies the Jacobian to the operand seeds.
func (b *Block) EvaluateTLM(ctx context.Context) error {
	ctx, span := b.startSpan(ctx, "EvaluateTLM")
	defer span.End()
	return spanErr(span, tape.RunTLM[*state](ctx, &b.Base, b))
}

// EvaluateHessian propagates the operator's second-order adjoint.
func (b *Block) EvaluateHessian(ctx context.Context) error {
	ctx, span := b.startSpan(ctx, "EvaluateHessian")
	defer span.End()
	return spanErr(span, tape.RunHessian[*state](ctx, &b.Base, b))
}

func (b *Block) startSpan(ctx context.Context, sweep string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "OperatorBlock."+sweep,
		trace.WithAttributes(
			attribute.String("operator.name", b.op.Name()),
			attribute.Int("operator.dependencies", len(b.Dependencies())),
		),
	)
}

func spanErr(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
