// Package optim minimizes taped functionals with first-order methods.
//
// This package provides:
//   - Optimizer interface: turns gradients into steps
//   - SGD: gradient descent with momentum
//   - Adam: Adaptive Moment Estimation
//   - Minimize: the gradient/step/move loop over a tape.Functional
//
// Example usage:
//
//	opt := optim.NewAdam(optim.AdamConfig{LR: 0.05})
//	res, err := optim.Minimize(ctx, f, []tape.Overloaded{u, c}, opt, optim.MinimizeConfig{
//	    MaxIter: 200,
//	    GTol:    1e-8,
//	})
package optim

import (
	"github.com/born-ml/formgrad/internal/fem"
)

// Optimizer is the base interface for all optimization algorithms.
//
// Controls are addressed by position: the i-th gradient and the i-th step
// belong to the i-th control passed to Minimize.
type Optimizer interface {
	// Step returns the update for each control. The caller moves the controls
	// by +1 times the update, so descent steps point against the gradient.
	// A zero gradient gives a zero step.
	Step(grads []fem.Value) []fem.Value

	// Reset drops accumulated state (velocities, moments).
	Reset()

	// GetLR returns the current learning rate.
	GetLR() float64
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float64 // Learning rate
}

// state holds one slice of per-entry state for each control, created on first
// use with the gradient's length.
type state [][]float64

func (s *state) at(i, n int) []float64 {
	for len(*s) <= i {
		*s = append(*s, nil)
	}
	if len((*s)[i]) != n {
		(*s)[i] = make([]float64, n)
	}
	return (*s)[i]
}
