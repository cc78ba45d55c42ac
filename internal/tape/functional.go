package tape

import (
	"context"
	"errors"
	"fmt"

	"github.com/born-ml/formgrad/internal/fem"
	"github.com/born-ml/formgrad/internal/ufl"
)

var (
	// ErrUnknownControl is returned for controls the tape does not track.
	ErrUnknownControl = errors.New("control is not on the tape")
	// ErrNotPerturbable is returned for controls whose value cannot be moved.
	ErrNotPerturbable = errors.New("control cannot be perturbed")
)

// Seed is a forward direction for one control.
type Seed struct {
	Control   Overloaded
	Direction fem.Value
}

// Functional is a scalar tape output viewed as a function of its controls.
type Functional struct {
	tape   *Tape
	output *BlockVariable
}

// NewFunctional wraps out, which must have been produced by a block on t.
func NewFunctional(t *Tape, out *Number) *Functional {
	return &Functional{tape: t, output: t.Variable(out)}
}

// Tape returns the underlying tape.
func (f *Functional) Tape() *Tape { return f.tape }

// Value recomputes the tape and returns the functional value.
func (f *Functional) Value(ctx context.Context) (float64, error) {
	if err := f.tape.Recompute(ctx); err != nil {
		return 0, fmt.Errorf("value: %w", err)
	}
	v, err := f.current()
	if err != nil {
		return 0, err
	}
	return v.Float(), nil
}

func (f *Functional) current() (fem.Value, error) {
	n, ok := f.output.SavedOutput().(*Number)
	if !ok {
		return fem.Value{}, fmt.Errorf("functional output %T is not a number", f.output.SavedOutput())
	}
	return n.Value(), nil
}

// Gradient returns the derivative with respect to each control. Controls the
// functional does not depend on get a zero value.
func (f *Functional) Gradient(ctx context.Context, controls ...Overloaded) ([]fem.Value, error) {
	f.tape.ResetVariables()
	f.output.SetAdjValue(fem.Scalar(1))
	if err := f.tape.EvaluateAdj(ctx); err != nil {
		return nil, fmt.Errorf("gradient: %w", err)
	}
	return f.collect(controls, (*BlockVariable).AdjValue), nil
}

// TLM returns the directional derivative along seeds.
func (f *Functional) TLM(ctx context.Context, seeds ...Seed) (fem.Value, error) {
	f.tape.ResetVariables()
	if err := f.seed(seeds); err != nil {
		return fem.Value{}, err
	}
	if err := f.tape.EvaluateTLM(ctx); err != nil {
		return fem.Value{}, fmt.Errorf("tlm: %w", err)
	}
	v, _ := f.output.TLM()
	return v, nil
}

// Hessian returns the action of the Hessian along seeds, tested against each
// control.
func (f *Functional) Hessian(ctx context.Context, seeds []Seed, controls ...Overloaded) ([]fem.Value, error) {
	f.tape.ResetVariables()
	if err := f.seed(seeds); err != nil {
		return nil, err
	}
	if err := f.tape.EvaluateTLM(ctx); err != nil {
		return nil, fmt.Errorf("hessian: %w", err)
	}
	f.output.SetAdjValue(fem.Scalar(1))
	if err := f.tape.EvaluateAdj(ctx); err != nil {
		return nil, fmt.Errorf("hessian: %w", err)
	}
	f.output.SetHessianValue(fem.Scalar(0))
	if err := f.tape.EvaluateHessian(ctx); err != nil {
		return nil, fmt.Errorf("hessian: %w", err)
	}
	return f.collect(controls, (*BlockVariable).HessianValue), nil
}

func (f *Functional) seed(seeds []Seed) error {
	for _, s := range seeds {
		v, ok := f.tape.Lookup(s.Control)
		if !ok {
			return fmt.Errorf("seed %s: %w", s.Control.Key(), ErrUnknownControl)
		}
		v.SetTLM(s.Direction)
	}
	return nil
}

func (f *Functional) collect(controls []Overloaded, get func(*BlockVariable) (fem.Value, bool)) []fem.Value {
	out := make([]fem.Value, len(controls))
	for i, c := range controls {
		if v, ok := f.tape.Lookup(c); ok {
			out[i], _ = get(v)
		}
	}
	return out
}

// ValueAt returns the functional with control moved by h*dir. The recorded
// control value is restored and the tape recomputed before returning.
func (f *Functional) ValueAt(ctx context.Context, control Overloaded, dir fem.Value, h float64) (float64, error) {
	v, ok := f.tape.Lookup(control)
	if !ok {
		return 0, fmt.Errorf("perturb %s: %w", control.Key(), ErrUnknownControl)
	}
	old := v.SavedOutput()
	moved, err := perturb(old, dir, h)
	if err != nil {
		return 0, err
	}
	v.SetSavedOutput(moved)
	val, err := f.Value(ctx)
	v.SetSavedOutput(old)
	if err != nil {
		return 0, err
	}
	if err := f.tape.Recompute(ctx); err != nil {
		return 0, fmt.Errorf("restore: %w", err)
	}
	return val, nil
}

// Move shifts each seeded control by h times its direction and recomputes the
// tape. Unlike ValueAt the new values stay: later sweeps linearize around them.
// Zero directions are skipped. Nothing is moved if any seed is rejected.
func (f *Functional) Move(ctx context.Context, h float64, steps ...Seed) error {
	vars := make([]*BlockVariable, 0, len(steps))
	moved := make([]Overloaded, 0, len(steps))
	for _, s := range steps {
		if s.Direction.IsZero() {
			continue
		}
		v, ok := f.tape.Lookup(s.Control)
		if !ok {
			return fmt.Errorf("move %s: %w", s.Control.Key(), ErrUnknownControl)
		}
		m, err := perturb(v.SavedOutput(), s.Direction, h)
		if err != nil {
			return err
		}
		vars = append(vars, v)
		moved = append(moved, m)
	}
	for i, v := range vars {
		v.SetSavedOutput(moved[i])
	}
	if err := f.tape.Recompute(ctx); err != nil {
		return fmt.Errorf("move: %w", err)
	}
	return nil
}

// Current returns the value the tape currently holds for control.
func (f *Functional) Current(control Overloaded) (Overloaded, error) {
	v, ok := f.tape.Lookup(control)
	if !ok {
		return nil, fmt.Errorf("%s: %w", control.Key(), ErrUnknownControl)
	}
	return v.SavedOutput(), nil
}

func perturb(o Overloaded, dir fem.Value, h float64) (Overloaded, error) {
	switch x := o.(type) {
	case *ufl.Field:
		if dir.Len() != x.Space().Dim() {
			return nil, fmt.Errorf("perturb %s: direction has %d entries, space has %d", x, dir.Len(), x.Space().Dim())
		}
		return x.Axpy(h, dir.Data()), nil
	case *ufl.Constant:
		return x.Shift(h * dir.Float()), nil
	default:
		return nil, fmt.Errorf("perturb %s: %w", o.Key(), ErrNotPerturbable)
	}
}
