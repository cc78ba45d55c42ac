package ufl

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoDomain is returned when a form exposes no integration domain.
var ErrNoDomain = errors.New("form has no domain")

// Form is an integral of Integrand over a mesh, dx.
//
// Arguments lists the probe functions the form is linear in, in order. They are
// tracked explicitly so that a derivative which simplifies to Zero still
// assembles to a zero vector of the right size.
type Form struct {
	Integrand Expr
	Domain    *Mesh
	Arguments []*Argument
}

// Integral returns the form ∫ e dx over m. m may be nil, in which case the domain
// is inferred from the integrand.
func Integral(e Expr, m *Mesh) Form {
	return Form{Integrand: e, Domain: m, Arguments: Arguments(e)}
}

// IsEmpty reports whether f is the zero value: the additive identity
// placeholder that is never assembled.
func (f Form) IsEmpty() bool { return f.Integrand == nil }

// Add returns f + g. The empty form is the identity.
func (f Form) Add(g Form) Form {
	if f.IsEmpty() {
		return g
	}
	if g.IsEmpty() {
		return f
	}
	dom := f.Domain
	if dom == nil {
		dom = g.Domain
	}
	return Form{
		Integrand: Add(f.Integrand, g.Integrand),
		Domain:    dom,
		Arguments: mergeArguments(f.Arguments, g.Arguments),
	}
}

// Rank returns the number of arguments.
func (f Form) Rank() int { return len(f.Arguments) }

func (f Form) String() string {
	if f.IsEmpty() {
		return "0"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "∫ %s dx", f.Integrand)
	return b.String()
}

// Domain returns the integration domain of f: its explicit domain, or the mesh
// of the first space-carrying node found in the integrand.
func Domain(f Form) (*Mesh, error) {
	if f.Domain != nil {
		return f.Domain, nil
	}
	if f.IsEmpty() {
		return nil, ErrNoDomain
	}
	var found *Mesh
	Walk(f.Integrand, func(e Expr) bool {
		if found != nil {
			return false
		}
		switch n := e.(type) {
		case *Field:
			found = n.space.mesh
		case *Argument:
			found = n.space.mesh
		case *Operator:
			found = n.space.mesh
		case *SpatialCoordinate:
			found = n.mesh
		}
		return found == nil
	})
	if found == nil {
		return nil, ErrNoDomain
	}
	return found, nil
}

func mergeArguments(a, b []*Argument) []*Argument {
	out := make([]*Argument, 0, len(a)+len(b))
	seen := make(map[*Argument]bool, len(a)+len(b))
	for _, list := range [][]*Argument{a, b} {
		for _, arg := range list {
			if !seen[arg] {
				seen[arg] = true
				out = append(out, arg)
			}
		}
	}
	return out
}
