// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim minimizes taped functionals over their controls.
//
// # Overview
//
// This package contains:
//   - SGD: gradient descent with momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Minimize: the gradient, step, move loop
//
// # Basic Usage
//
//	t := adjoint.NewTape()
//	m := form.UnitInterval(16)
//	u := form.NewField(m.DG0(), "u")
//	e := form.Pow(form.Add(u, form.Mul(form.Lit(-1), form.X(m))), form.Lit(2))
//	out, _ := adjoint.Assemble(ctx, t, form.Integral(e, m))
//	f := adjoint.NewFunctional(t, out)
//
//	res, err := optim.Minimize(ctx, f, []adjoint.Overloaded{u},
//	    optim.NewAdam(optim.AdamConfig{LR: 0.05}),
//	    optim.MinimizeConfig{MaxIter: 200, GTol: 1e-8},
//	)
//
// The tape keeps the final control values: f.Current(u) returns them and later
// gradients are taken there.
package optim

import (
	"context"

	"github.com/born-ml/formgrad/internal/optim"
	"github.com/born-ml/formgrad/internal/tape"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Config represents the base configuration for optimizers.
type Config = optim.Config

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
func NewSGD(config SGDConfig) *SGD { return optim.NewSGD(config) }

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer with bias correction.
func NewAdam(config AdamConfig) *Adam { return optim.NewAdam(config) }

// MinimizeConfig controls the optimization loop.
type MinimizeConfig = optim.MinimizeConfig

// Result summarizes a Minimize run.
type Result = optim.Result

// ErrNoControls is returned by Minimize when no control is given.
var ErrNoControls = optim.ErrNoControls

// Minimize runs opt on f over controls, moving their taped values in place.
func Minimize(ctx context.Context, f *tape.Functional, controls []tape.Overloaded, opt Optimizer, cfg MinimizeConfig) (*Result, error) {
	return optim.Minimize(ctx, f, controls, opt, cfg)
}
