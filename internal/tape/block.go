package tape

import "context"

// Block is a node of the tape: it consumes dependency slots and produces
// output slots, and can replay itself in the four sweeps.
//
// Each sweep method reads seeds from the block's own variables and accumulates
// results into them. The tape calls every block once per sweep.
type Block interface {
	// Dependencies returns the dependency slots in registration order.
	Dependencies() []*BlockVariable
	// Outputs returns the output slots.
	Outputs() []*BlockVariable

	// Recompute recomputes outputs from the saved dependency values.
	Recompute(ctx context.Context) error
	// EvaluateAdj propagates output adjoints to dependencies.
	EvaluateAdj(ctx context.Context) error
	// EvaluateTLM propagates dependency forward seeds to outputs.
	EvaluateTLM(ctx context.Context) error
	// EvaluateHessian propagates second-order adjoints to dependencies.
	EvaluateHessian(ctx context.Context) error

	String() string
}

// Base implements the dependency bookkeeping shared by blocks.
type Base struct {
	deps    []*BlockVariable
	outputs []*BlockVariable
	index   map[*BlockVariable]int
}

// AddDependency registers v as a dependency and checkpoints its value.
// With noDuplicates, a variable that is already registered is skipped.
func (b *Base) AddDependency(v *BlockVariable, noDuplicates bool) {
	if b.index == nil {
		b.index = make(map[*BlockVariable]int)
	}
	if _, ok := b.index[v]; ok && noDuplicates {
		return
	}
	v.Save()
	b.index[v] = len(b.deps)
	b.deps = append(b.deps, v)
}

// AddOutput registers v as an output.
func (b *Base) AddOutput(v *BlockVariable) {
	b.outputs = append(b.outputs, v)
}

// Dependencies returns the dependency slots.
func (b *Base) Dependencies() []*BlockVariable { return b.deps }

// Outputs returns the output slots.
func (b *Base) Outputs() []*BlockVariable { return b.outputs }

// DependencyIndex returns the registration index of v.
func (b *Base) DependencyIndex(v *BlockVariable) (int, bool) {
	i, ok := b.index[v]
	return i, ok
}
