package assembly

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/born-ml/formgrad/internal/tape"
	"github.com/born-ml/formgrad/internal/ufl"
)

type kind int

const (
	leafKind    kind = iota // field or constant
	pairedKind              // externally supplied expression
	domainKind              // the mesh
	nestedKind              // operator present in the substituted form
	unknownKind
)

func (k kind) String() string {
	switch k {
	case leafKind:
		return "leaf"
	case pairedKind:
		return "expression"
	case domainKind:
		return "domain"
	case nestedKind:
		return "nested"
	}
	return "unknown"
}

// dependency is a dependency resolved for one sweep.
type dependency struct {
	kind kind
	// rep is what derivatives are taken with respect to: the saved value, the
	// reconstructed operator, or the spatial coordinate of the domain.
	rep   ufl.Expr
	space *ufl.Space
}

// Sweep is the state shared by all component calls of one sweep. It is built
// once at sweep entry and dropped afterwards.
type Sweep struct {
	// form is the recorded form with every coefficient replaced by its saved
	// value.
	form ufl.Form
	// nested are the operators of the substituted form.
	nested []*ufl.Operator
	// deps is indexed like the block's dependencies.
	deps     []dependency
	relevant []int
}

// Form returns the substituted form.
func (s *Sweep) Form() ufl.Form { return s.form }

// prepare substitutes saved values into the form and classifies the
// dependencies against the substituted form.
func (b *Block) prepare(ctx context.Context) (*Sweep, error) {
	recordPrepare(ctx)
	deps := b.Dependencies()
	m := make(ufl.Mapping, len(deps))
	for _, dep := range deps {
		if _, ok := dep.Output().(ufl.Coefficient); !ok {
			continue
		}
		saved, ok := dep.SavedOutput().(ufl.Expr)
		if !ok {
			return nil, fmt.Errorf("saved value of %s is %T, not an expression", dep.Output().Key(), dep.SavedOutput())
		}
		m[dep.Output().Key()] = saved
	}

	s := &Sweep{form: b.backend.Replace(b.form, m)}
	s.nested = b.backend.Operators(s.form)
	present := make(map[int64]bool, len(s.nested))
	for _, op := range s.nested {
		present[op.ID()] = true
	}
	s.deps = make([]dependency, len(deps))
	for i, dep := range deps {
		s.deps[i] = b.resolve(dep, m, present)
	}
	b.logger.Debug("prepared sweep",
		zap.Stringer("form", s.form),
		zap.Int("nested", len(s.nested)),
	)
	return s, nil
}

func (b *Block) resolve(dep *tape.BlockVariable, m ufl.Mapping, present map[int64]bool) dependency {
	v, ok := dep.Output().(ufl.Variable)
	if !ok {
		return dependency{kind: unknownKind}
	}
	space := v.InducedSpace(b.mesh)
	if space == nil {
		return dependency{kind: unknownKind}
	}
	if v.IsShape() {
		return dependency{kind: domainKind, rep: b.backend.SpatialCoordinate(b.mesh), space: space}
	}
	saved, ok := dep.SavedOutput().(ufl.Expr)
	if !ok {
		return dependency{kind: unknownKind}
	}
	if v.Paired() {
		return dependency{kind: pairedKind, rep: saved, space: space}
	}
	if op, ok := saved.(*ufl.Operator); ok && present[op.ID()] {
		// One level: the operands are coefficients of the same form.
		operands := make([]ufl.Expr, len(op.Operands()))
		for i, o := range op.Operands() {
			operands[i] = b.backend.ReplaceExpr(o, m)
		}
		return dependency{kind: nestedKind, rep: b.backend.Reconstruct(op, operands), space: space}
	}
	return dependency{kind: leafKind, rep: saved, space: space}
}

// isolate returns the substituted form with d's value replaced by a zero of
// the same kind inside every nested operator, so that differentiating with
// respect to it only sees its direct occurrences. Operators keep their values.
func (b *Block) isolate(s *Sweep, d dependency) ufl.Form {
	c, ok := d.rep.(ufl.Coefficient)
	if !ok || len(s.nested) == 0 {
		return s.form
	}
	strip := ufl.Mapping{c.Key(): b.backend.ZeroLike(c, d.space)}
	m := make(ufl.Mapping)
	for _, op := range s.nested {
		operands := make([]ufl.Expr, len(op.Operands()))
		changed := false
		for i, o := range op.Operands() {
			operands[i] = b.backend.ReplaceExpr(o, strip)
			if operands[i].Key() != o.Key() {
				changed = true
			}
		}
		if changed {
			m[op.Key()] = b.backend.Reconstruct(op, operands)
		}
	}
	return b.backend.Replace(s.form, m)
}
