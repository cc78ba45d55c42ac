package optim

import (
	"math"

	"github.com/born-ml/formgrad/internal/fem"
)

// Adam implements the Adam optimizer (Adaptive Moment Estimation).
//
// Update rule:
//
//	m = beta1 * m + (1 - beta1) * gradient
//	v = beta2 * v + (1 - beta2) * gradient²
//	m_hat = m / (1 - beta1^t)
//	v_hat = v / (1 - beta2^t)
//	step = -lr * m_hat / (sqrt(v_hat) + eps)
//
// The step size per entry is bounded by about lr regardless of the gradient
// scale, which suits functionals whose gradients scale with the cell size.
type Adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	t     int   // Timestep for bias correction
	m     state // First moment estimates
	v     state // Second moment estimates
}

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig struct {
	LR    float64    // Learning rate (default: 0.001)
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer.
func NewAdam(config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam{
		lr:    config.LR,
		beta1: config.Betas[0],
		beta2: config.Betas[1],
		eps:   config.Eps,
	}
}

// Step advances the timestep and returns the bias-corrected Adam update.
func (a *Adam) Step(grads []fem.Value) []fem.Value {
	a.t++
	biasCorrection1 := 1.0 - math.Pow(a.beta1, float64(a.t))
	biasCorrection2 := 1.0 - math.Pow(a.beta2, float64(a.t))

	steps := make([]fem.Value, len(grads))
	for i, g := range grads {
		if g.IsZero() {
			continue
		}
		d := g.Data()
		m := a.m.at(i, len(d))
		v := a.v.at(i, len(d))
		for k, gk := range d {
			m[k] = a.beta1*m[k] + (1.0-a.beta1)*gk
			v[k] = a.beta2*v[k] + (1.0-a.beta2)*gk*gk
			mHat := m[k] / biasCorrection1
			vHat := v[k] / biasCorrection2
			d[k] = -a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
		steps[i] = fem.Vector(d)
	}
	return steps
}

// Reset clears the moment estimates and the timestep.
func (a *Adam) Reset() {
	a.t = 0
	a.m, a.v = nil, nil
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float64 { return a.lr }

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float64) { a.lr = lr }
