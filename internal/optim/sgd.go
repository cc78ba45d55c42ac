package optim

import (
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/formgrad/internal/fem"
)

// SGD implements gradient descent with optional momentum.
//
// Update rule without momentum:
//
//	step = -lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	step = -lr * velocity
type SGD struct {
	lr         float64
	momentum   float64
	velocities state
}

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD(config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{lr: config.LR, momentum: config.Momentum}
}

// Step returns -lr times the (momentum-averaged) gradients.
func (s *SGD) Step(grads []fem.Value) []fem.Value {
	steps := make([]fem.Value, len(grads))
	for i, g := range grads {
		if g.IsZero() {
			continue
		}
		d := g.Data()
		if s.momentum != 0 {
			v := s.velocities.at(i, len(d))
			floats.Scale(s.momentum, v)
			floats.Add(v, d)
			copy(d, v)
		}
		floats.Scale(-s.lr, d)
		steps[i] = fem.Vector(d)
	}
	return steps
}

// Reset clears the velocities.
func (s *SGD) Reset() { s.velocities = nil }

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float64 { return s.lr }

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float64) { s.lr = lr }
