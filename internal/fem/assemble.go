// Package fem assembles ufl forms into numbers and vectors on interval meshes.
//
// Integrals use one-point (midpoint) quadrature per cell:
//
//	∫ f dx ≈ Σ_c h_c f(m_c)
//
// Rank 1 forms are assembled one basis function at a time, visiting only the
// cells in the basis function's support. Large meshes split the cell and basis
// loops across goroutines; every entry is owned by one index, so results do not
// depend on the schedule.
package fem

import (
	"errors"
	"fmt"

	"github.com/born-ml/formgrad/internal/parallel"
	"github.com/born-ml/formgrad/internal/ufl"
)

// ErrRank is returned for forms with more than one argument.
var ErrRank = errors.New("unsupported form rank")

// Assembler turns forms into Values.
type Assembler struct {
	par parallel.Config
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithParallel sets the loop parallelism.
func WithParallel(cfg parallel.Config) Option {
	return func(a *Assembler) { a.par = cfg }
}

// NewAssembler creates an assembler. Loops run in parallel per
// parallel.DefaultConfig unless WithParallel says otherwise.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{par: parallel.DefaultConfig()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble evaluates f. Rank 0 forms give scalars, rank 1 forms give vectors
// over the argument's space.
func (a *Assembler) Assemble(f ufl.Form) (Value, error) {
	if f.IsEmpty() {
		return Value{}, nil
	}
	mesh, err := ufl.Domain(f)
	if err != nil {
		return Value{}, fmt.Errorf("assemble %s: %w", f, err)
	}
	switch f.Rank() {
	case 0:
		return Scalar(a.integrate(f.Integrand, mesh)), nil
	case 1:
		return a.assembleVector(f.Integrand, mesh, f.Arguments[0]), nil
	default:
		return Value{}, fmt.Errorf("assemble: %w: %d arguments", ErrRank, f.Rank())
	}
}

func (a *Assembler) integrate(e ufl.Expr, mesh *ufl.Mesh) float64 {
	if ufl.IsZero(e) {
		return 0
	}
	return parallel.Sum(mesh.NumCells(), func(c int) float64 {
		return mesh.CellSize(c) * e.Eval(&ufl.Point{Mesh: mesh, Cell: c})
	}, a.par)
}

func (a *Assembler) assembleVector(e ufl.Expr, mesh *ufl.Mesh, arg *ufl.Argument) Value {
	space := arg.Space()
	out := make([]float64, space.Dim())
	if ufl.IsZero(e) {
		return Vector(out)
	}
	parallel.For(len(out), func(i int) {
		p := &ufl.Point{Mesh: mesh, Arg: arg, Basis: i}
		for _, c := range space.Support(i) {
			p.Cell = c
			out[i] += mesh.CellSize(c) * e.Eval(p)
		}
	}, a.par)
	return Vector(out)
}

// Interpolate samples e at the cell midpoints of a DG0 space.
func Interpolate(e ufl.Expr, s *ufl.Space) ([]float64, error) {
	if s.Family() != ufl.DG0 {
		return nil, fmt.Errorf("interpolate into %s: only DG0 is supported", s)
	}
	mesh := s.Mesh()
	out := make([]float64, s.Dim())
	p := &ufl.Point{Mesh: mesh}
	for c := range out {
		p.Cell = c
		out[c] = e.Eval(p)
	}
	return out, nil
}
