package problem

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/born-ml/formgrad/internal/fem"
	"github.com/born-ml/formgrad/internal/serialization"
	"github.com/born-ml/formgrad/internal/tape"
	"github.com/born-ml/formgrad/internal/ufl"
)

// Snapshot captures the values the tape currently holds for the named fields
// and constants. With no names every field and constant is captured.
func (p *Problem) Snapshot(names ...string) (*serialization.Snapshot, error) {
	if len(names) == 0 {
		for _, name := range p.names {
			if _, ok := p.controls[name].(*ufl.Expression); !ok {
				names = append(names, name)
			}
		}
	}
	s := &serialization.Snapshot{}
	for _, name := range names {
		c, err := p.Control(name)
		if err != nil {
			return nil, err
		}
		cur, _ := p.current(c)
		switch x := cur.(type) {
		case *ufl.Field:
			s.Controls = append(s.Controls, serialization.Entry{
				Name:   name,
				Kind:   serialization.KindField,
				Space:  x.Space().Family().String(),
				Values: x.Values(),
			})
		case *ufl.Constant:
			s.Controls = append(s.Controls, serialization.Entry{
				Name:   name,
				Kind:   serialization.KindConstant,
				Values: []float64{x.Value()},
			})
		default:
			return nil, fmt.Errorf("snapshot %q: %w", name, tape.ErrNotPerturbable)
		}
	}
	return s, nil
}

// Restore moves the taped controls to the values stored in s and recomputes
// the tape. Every entry must name a field or constant of matching shape.
// Entries for controls the functional does not depend on are ignored.
func (p *Problem) Restore(ctx context.Context, s *serialization.Snapshot) error {
	seeds := make([]tape.Seed, 0, len(s.Controls))
	for _, e := range s.Controls {
		c, err := p.Control(e.Name)
		if err != nil {
			return err
		}
		cur, taped := p.current(c)
		var old []float64
		switch x := cur.(type) {
		case *ufl.Field:
			if e.Kind != serialization.KindField || e.Space != x.Space().Family().String() {
				return fmt.Errorf("restore %q: stored %s %s, problem has a %s field", e.Name, e.Space, e.Kind, x.Space().Family())
			}
			old = x.Values()
		case *ufl.Constant:
			if e.Kind != serialization.KindConstant {
				return fmt.Errorf("restore %q: stored %s, problem has a constant", e.Name, e.Kind)
			}
			old = []float64{x.Value()}
		default:
			return fmt.Errorf("restore %q: %w", e.Name, tape.ErrNotPerturbable)
		}
		if len(old) != len(e.Values) {
			return fmt.Errorf("restore %q: %d values, expected %d", e.Name, len(e.Values), len(old))
		}
		if !taped {
			p.logger.Debug("functional does not depend on control", zap.String("control", e.Name))
			continue
		}
		dir := make([]float64, len(old))
		for i := range dir {
			dir[i] = e.Values[i] - old[i]
		}
		seeds = append(seeds, tape.Seed{Control: c, Direction: fem.Vector(dir)})
	}
	if err := p.Functional.Move(ctx, 1, seeds...); err != nil {
		return err
	}
	p.logger.Debug("restored controls", zap.Int("count", len(seeds)))
	return nil
}

// current returns the value the tape holds for c, or c itself when the
// functional does not depend on it.
func (p *Problem) current(c tape.Overloaded) (tape.Overloaded, bool) {
	if v, ok := p.Tape.Lookup(c); ok {
		return v.SavedOutput(), true
	}
	return c, false
}
