package assembly

import (
	"go.uber.org/zap"

	"github.com/born-ml/formgrad/internal/fem"
	"github.com/born-ml/formgrad/internal/ufl"
)

// Symbolic is the symbolic-expression layer the block orchestrates.
type Symbolic interface {
	Derivative(f ufl.Form, w, dir ufl.Expr) ufl.Form
	Replace(f ufl.Form, m ufl.Mapping) ufl.Form
	ReplaceExpr(e ufl.Expr, m ufl.Mapping) ufl.Expr
	Coefficients(f ufl.Form) []ufl.Coefficient
	Operators(f ufl.Form) []*ufl.Operator
	Domain(f ufl.Form) (*ufl.Mesh, error)
	TestFunction(s *ufl.Space) *ufl.Argument
	SpatialCoordinate(m *ufl.Mesh) ufl.Expr
	Reconstruct(op *ufl.Operator, operands []ufl.Expr) *ufl.Operator
	ZeroLike(c ufl.Coefficient, s *ufl.Space) ufl.Expr
}

// Assembler turns forms into values.
type Assembler interface {
	Assemble(f ufl.Form) (fem.Value, error)
}

// Backend is the capability bundle a block is constructed with.
type Backend struct {
	Symbolic
	Assembler
	Logger *zap.Logger
}

// DefaultBackend returns the ufl algebra and the midpoint assembler.
func DefaultBackend() Backend {
	return Backend{
		Symbolic:  ufl.Algebra{},
		Assembler: fem.NewAssembler(),
		Logger:    zap.NewNop(),
	}
}

func (b Backend) withDefaults() Backend {
	d := DefaultBackend()
	if b.Symbolic == nil {
		b.Symbolic = d.Symbolic
	}
	if b.Assembler == nil {
		b.Assembler = d.Assembler
	}
	if b.Logger == nil {
		b.Logger = d.Logger
	}
	return b
}
