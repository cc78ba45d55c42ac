// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package adjoint records form assembly on a tape and differentiates the
// result in reverse, forward and second-order mode.
//
// Example:
//
//	import (
//	    "github.com/born-ml/formgrad/adjoint"
//	    "github.com/born-ml/formgrad/form"
//	)
//
//	func main() {
//	    t := adjoint.NewTape()
//	    mesh := form.UnitInterval(8)
//	    u := form.NewField(mesh.DG0(), "u")
//	    c := form.NewConstant(2, "c")
//
//	    // Assembly is recorded on the tape
//	    J, _ := adjoint.Assemble(ctx, t, form.Integral(form.Mul(u, c), mesh))
//
//	    // Gradient with respect to u and c
//	    grads, _ := adjoint.NewFunctional(t, J).Gradient(ctx, u, c)
//	}
package adjoint

import (
	"context"

	"github.com/born-ml/formgrad/internal/assembly"
	"github.com/born-ml/formgrad/internal/fem"
	"github.com/born-ml/formgrad/internal/operator"
	"github.com/born-ml/formgrad/internal/tape"
	"github.com/born-ml/formgrad/internal/ufl"
)

// Tape records blocks for replay.
type Tape = tape.Tape

// Option configures a Tape.
type Option = tape.Option

// Number is an assembled value tracked by the tape.
type Number = tape.Number

// Functional is a scalar tape output viewed as a function of its controls.
type Functional = tape.Functional

// Seed is a forward direction for one control.
type Seed = tape.Seed

// Overloaded is any object the tape can track.
type Overloaded = tape.Overloaded

// TaylorResult holds Taylor test remainders and rates.
type TaylorResult = tape.TaylorResult

// Backend is the capability bundle of assemble blocks.
type Backend = assembly.Backend

// NewTape creates a recording tape.
func NewTape(opts ...Option) *Tape { return tape.New(opts...) }

// WithLogger sets the tape logger.
var WithLogger = tape.WithLogger

// Assemble assembles f with the default backend and records it on t.
func Assemble(ctx context.Context, t *Tape, f ufl.Form) (*Number, error) {
	return assembly.Assemble(ctx, t, f, assembly.DefaultBackend())
}

// AssembleWith assembles f with a custom backend and records it on t.
func AssembleWith(ctx context.Context, t *Tape, f ufl.Form, b Backend) (*Number, error) {
	return assembly.Assemble(ctx, t, f, b)
}

// ApplyOperator records the operator name = body(operands) in the DG0 space s.
func ApplyOperator(t *Tape, name string, s *ufl.Space, body ufl.Body, operands ...ufl.Expr) (*ufl.Operator, error) {
	return operator.Apply(t, name, s, body, operands...)
}

// NewFunctional wraps the output of an assembly.
func NewFunctional(t *Tape, out *Number) *Functional { return tape.NewFunctional(t, out) }

// TaylorTest checks the gradient of f with respect to control along dir.
func TaylorTest(ctx context.Context, f *Functional, control Overloaded, dir fem.Value, h0 float64, n int) (TaylorResult, error) {
	return tape.TaylorTest(ctx, f, control, dir, h0, n)
}
