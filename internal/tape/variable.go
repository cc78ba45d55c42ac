package tape

import (
	"github.com/born-ml/formgrad/internal/fem"
	"github.com/born-ml/formgrad/internal/ufl"
)

// Overloaded is any object the tape can track.
type Overloaded interface {
	Key() string
}

// Contribution is one derivative produced by a block component.
//
// Space is set when Value is only meaningful together with the space it was
// differentiated into (externally supplied expressions). A nil *Contribution
// means no contribution.
type Contribution struct {
	Value fem.Value
	Space *ufl.Space
}

// BlockVariable is a dependency slot: the tracked object as it appears in
// expressions (Output), the value recorded for it (SavedOutput), and the seeds
// and derivatives flowing through it during sweeps.
type BlockVariable struct {
	output Overloaded
	saved  Overloaded

	adj      fem.Value
	adjSpace *ufl.Space
	hasAdj   bool

	tlm    fem.Value
	hasTLM bool

	hessian      fem.Value
	hessianSpace *ufl.Space
	hasHessian   bool
}

func newBlockVariable(o Overloaded) *BlockVariable {
	return &BlockVariable{output: o}
}

// Output returns the tracked object.
func (v *BlockVariable) Output() Overloaded { return v.output }

// SavedOutput returns the recorded value, or Output when nothing was saved.
func (v *BlockVariable) SavedOutput() Overloaded {
	if v.saved != nil {
		return v.saved
	}
	return v.output
}

// Save checkpoints the output unless a value is already saved.
func (v *BlockVariable) Save() {
	if v.saved == nil {
		v.saved = checkpoint(v.output)
	}
}

// SetSavedOutput replaces the recorded value.
func (v *BlockVariable) SetSavedOutput(o Overloaded) { v.saved = o }

// checkpoint copies mutable values. Meshes, expressions and operators are
// immutable views and are recorded as they are.
func checkpoint(o Overloaded) Overloaded {
	switch x := o.(type) {
	case *ufl.Field:
		return x.Checkpoint()
	case *ufl.Constant:
		return x.Checkpoint()
	default:
		return o
	}
}

// AdjValue returns the accumulated adjoint.
func (v *BlockVariable) AdjValue() (fem.Value, bool) { return v.adj, v.hasAdj }

// AdjSpace returns the space paired with the adjoint, if any.
func (v *BlockVariable) AdjSpace() *ufl.Space { return v.adjSpace }

// SetAdjValue overwrites the adjoint, typically to seed a reverse sweep.
func (v *BlockVariable) SetAdjValue(val fem.Value) {
	v.adj, v.hasAdj, v.adjSpace = val, true, nil
}

// AddAdj accumulates c into the adjoint. nil is ignored.
func (v *BlockVariable) AddAdj(c *Contribution) {
	if c == nil {
		return
	}
	if v.hasAdj {
		v.adj = v.adj.Add(c.Value)
	} else {
		v.adj, v.hasAdj = c.Value, true
	}
	if c.Space != nil {
		v.adjSpace = c.Space
	}
}

// TLM returns the forward seed; ok is false when it is absent.
func (v *BlockVariable) TLM() (val fem.Value, ok bool) { return v.tlm, v.hasTLM }

// SetTLM sets the forward seed.
func (v *BlockVariable) SetTLM(val fem.Value) { v.tlm, v.hasTLM = val, true }

// AddTLM accumulates into the forward seed.
func (v *BlockVariable) AddTLM(val fem.Value) {
	if v.hasTLM {
		v.tlm = v.tlm.Add(val)
		return
	}
	v.SetTLM(val)
}

// HessianValue returns the accumulated second-order adjoint.
func (v *BlockVariable) HessianValue() (fem.Value, bool) { return v.hessian, v.hasHessian }

// HessianSpace returns the space paired with the Hessian value, if any.
func (v *BlockVariable) HessianSpace() *ufl.Space { return v.hessianSpace }

// SetHessianValue overwrites the second-order adjoint.
func (v *BlockVariable) SetHessianValue(val fem.Value) {
	v.hessian, v.hasHessian, v.hessianSpace = val, true, nil
}

// AddHessian accumulates c into the second-order adjoint. nil is ignored.
func (v *BlockVariable) AddHessian(c *Contribution) {
	if c == nil {
		return
	}
	if v.hasHessian {
		v.hessian = v.hessian.Add(c.Value)
	} else {
		v.hessian, v.hasHessian = c.Value, true
	}
	if c.Space != nil {
		v.hessianSpace = c.Space
	}
}

// Reset clears adjoint, forward and Hessian values. The saved output is kept.
func (v *BlockVariable) Reset() {
	v.adj, v.hasAdj, v.adjSpace = fem.Value{}, false, nil
	v.tlm, v.hasTLM = fem.Value{}, false
	v.hessian, v.hasHessian, v.hessianSpace = fem.Value{}, false, nil
}
