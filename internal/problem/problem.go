// Package problem builds a taped functional from a problem description.
package problem

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/born-ml/formgrad/internal/assembly"
	"github.com/born-ml/formgrad/internal/config"
	"github.com/born-ml/formgrad/internal/fem"
	"github.com/born-ml/formgrad/internal/operator"
	"github.com/born-ml/formgrad/internal/tape"
	"github.com/born-ml/formgrad/internal/ufl"
)

// ErrUnknownControl is returned for names that are not controls of the problem.
var ErrUnknownControl = errors.New("unknown control")

// Problem is a functional recorded on a tape together with its named controls.
type Problem struct {
	Tape       *tape.Tape
	Mesh       *ufl.Mesh
	Form       ufl.Form
	Output     *tape.Number
	Functional *tape.Functional

	names    []string
	controls map[string]tape.Overloaded
	logger   *zap.Logger
}

// Build creates the mesh and coefficients described by cfg, records the
// operators and the functional on a new tape, and returns the problem.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Problem, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mesh, err := buildMesh(cfg.Mesh)
	if err != nil {
		return nil, err
	}
	p := &Problem{
		Tape:     tape.New(tape.WithLogger(logger)),
		Mesh:     mesh,
		controls: map[string]tape.Overloaded{config.MeshName: mesh},
		logger:   logger,
	}
	x := ufl.X(mesh)
	scope := map[string]ufl.Expr{"x": x}

	for _, name := range cfg.ControlNames() {
		var c ufl.Coefficient
		switch {
		case hasKey(cfg.Fields, name):
			c, err = buildField(mesh, name, cfg.Fields[name], x)
		case hasKey(cfg.Constants, name):
			c = ufl.NewConstant(cfg.Constants[name], name)
		default:
			c, err = buildExpression(name, cfg.Expressions[name])
		}
		if err != nil {
			return nil, err
		}
		scope[name] = c
		p.controls[name] = c
		p.names = append(p.names, name)
	}

	for _, oc := range cfg.Operators {
		op, err := p.buildOperator(oc, scope)
		if err != nil {
			return nil, err
		}
		scope[oc.Name] = op
	}

	integrand, err := ufl.Parse(cfg.Functional, scope)
	if err != nil {
		return nil, fmt.Errorf("functional: %w", err)
	}
	p.Form = ufl.Integral(integrand, mesh)
	backend := assembly.DefaultBackend()
	backend.Logger = logger
	p.Output, err = assembly.Assemble(ctx, p.Tape, p.Form, backend)
	if err != nil {
		return nil, fmt.Errorf("functional: %w", err)
	}
	p.Functional = tape.NewFunctional(p.Tape, p.Output)
	logger.Info("problem built",
		zap.Stringer("mesh", mesh),
		zap.Stringer("form", p.Form),
		zap.Int("blocks", len(p.Tape.Blocks())),
	)
	return p, nil
}

func buildMesh(mc config.MeshConfig) (*ufl.Mesh, error) {
	if len(mc.Coordinates) > 0 {
		m, err := ufl.IntervalMesh(mc.Coordinates)
		if err != nil {
			return nil, fmt.Errorf("mesh: %w", err)
		}
		return m, nil
	}
	return ufl.Interval(mc.Cells, mc.Left, mc.Right), nil
}

func buildField(mesh *ufl.Mesh, name string, fc config.FieldConfig, x ufl.Expr) (*ufl.Field, error) {
	e, err := ufl.Parse(fc.Expr, map[string]ufl.Expr{"x": x})
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	switch fc.Space {
	case config.SpaceP1:
		s := mesh.CoordinateSpace()
		f, err := sampler(fc.Expr)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		vals := make([]float64, s.Dim())
		for i := range vals {
			vals[i] = f(mesh.Vertex(i))
		}
		return ufl.FieldFrom(s, name, vals), nil
	case config.SpaceReal:
		f, err := sampler(fc.Expr)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		return ufl.FieldFrom(mesh.Real(), name, []float64{f(0)}), nil
	default:
		s := mesh.DG0()
		vals, err := fem.Interpolate(e, s)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		return ufl.FieldFrom(s, name, vals), nil
	}
}

func buildExpression(name, src string) (*ufl.Expression, error) {
	f, err := sampler(src)
	if err != nil {
		return nil, fmt.Errorf("expression %s: %w", name, err)
	}
	return ufl.NewExpression(name, f), nil
}

// sampler parses src as a function of x alone.
func sampler(src string) (func(float64) float64, error) {
	xc := ufl.NewConstant(0, "x")
	e, err := ufl.Parse(src, map[string]ufl.Expr{"x": xc})
	if err != nil {
		return nil, err
	}
	return func(v float64) float64 {
		return ufl.ReplaceExpr(e, ufl.Mapping{xc.Key(): ufl.Lit(v)}).Eval(&ufl.Point{})
	}, nil
}

func (p *Problem) buildOperator(oc config.OperatorConfig, scope map[string]ufl.Expr) (*ufl.Operator, error) {
	operands := make([]ufl.Expr, len(oc.Operands))
	for i, name := range oc.Operands {
		e, ok := scope[name]
		if !ok {
			return nil, fmt.Errorf("operator %s: operand %q: %w", oc.Name, name, ErrUnknownControl)
		}
		operands[i] = e
	}
	x := scope["x"]
	// Validate the expression once; the body re-parses it on every rebuild.
	check := map[string]ufl.Expr{"x": x}
	for i, name := range oc.Operands {
		check[name] = operands[i]
	}
	parsed, err := ufl.Parse(oc.Expr, check)
	if err != nil {
		return nil, fmt.Errorf("operator %s: %w", oc.Name, err)
	}
	if operator.UsesCoordinate(parsed) {
		return nil, fmt.Errorf("operator %s: %w", oc.Name, operator.ErrCoordinate)
	}
	names := oc.Operands
	src := oc.Expr
	body := func(args []ufl.Expr) ufl.Expr {
		local := map[string]ufl.Expr{"x": x}
		for i, name := range names {
			local[name] = args[i]
		}
		e, err := ufl.Parse(src, local)
		if err != nil {
			panic("problem: operator body no longer parses: " + err.Error())
		}
		return e
	}
	op, err := operator.Apply(p.Tape, oc.Name, p.Mesh.DG0(), body, operands...)
	if err != nil {
		return nil, err
	}
	return op, nil
}

// Controls returns the control names: fields, constants and expressions.
func (p *Problem) Controls() []string { return p.names }

// Control returns the object registered under name. "mesh" is the domain.
func (p *Problem) Control(name string) (tape.Overloaded, error) {
	c, ok := p.controls[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownControl)
	}
	return c, nil
}

// Direction converts a configured direction to a value sized for the named
// control. A single entry is broadcast.
func (p *Problem) Direction(name string, vals []float64) (fem.Value, error) {
	c, err := p.Control(name)
	if err != nil {
		return fem.Value{}, err
	}
	v, ok := c.(ufl.Variable)
	if !ok {
		return fem.Value{}, fmt.Errorf("%q: %w", name, ErrUnknownControl)
	}
	n := v.InducedSpace(p.Mesh).Dim()
	switch {
	case len(vals) == n:
		return fem.Vector(vals), nil
	case len(vals) == 1:
		out := make([]float64, n)
		for i := range out {
			out[i] = vals[0]
		}
		return fem.Vector(out), nil
	}
	return fem.Value{}, fmt.Errorf("direction for %q: %d entries, expected 1 or %d", name, len(vals), n)
}

// Seeds converts configured seeds. The mesh comes first, then the controls in
// declaration order.
func (p *Problem) Seeds(seeds map[string][]float64) ([]tape.Seed, error) {
	names := make([]string, 0, len(seeds))
	for _, name := range append([]string{config.MeshName}, p.names...) {
		if _, ok := seeds[name]; ok {
			names = append(names, name)
		}
	}
	if len(names) != len(seeds) {
		for name := range seeds {
			if _, err := p.Control(name); err != nil {
				return nil, err
			}
		}
	}
	out := make([]tape.Seed, 0, len(names))
	for _, name := range names {
		dir, err := p.Direction(name, seeds[name])
		if err != nil {
			return nil, err
		}
		c, _ := p.Control(name)
		out = append(out, tape.Seed{Control: c, Direction: dir})
	}
	return out, nil
}

func hasKey[V any](m map[string]V, k string) bool {
	_, ok := m[k]
	return ok
}
