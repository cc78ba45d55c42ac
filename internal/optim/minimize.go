package optim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/born-ml/formgrad/internal/tape"
)

// ErrNoControls is returned by Minimize when no control is given.
var ErrNoControls = errors.New("no controls to optimize")

// MinimizeConfig controls the optimization loop.
type MinimizeConfig struct {
	MaxIter int         // Iteration limit (default: 100)
	GTol    float64     // Stop once the gradient norm is at most GTol
	Logger  *zap.Logger // Per-iteration debug logging (default: no-op)
}

// Result summarizes a Minimize run.
type Result struct {
	Iterations int       // Steps taken
	Value      float64   // Functional at the final controls
	GradNorm   float64   // Gradient norm at the final controls
	History    []float64 // Functional value before each step, then the final value
	Converged  bool      // GradNorm reached GTol
}

// Minimize runs opt on f over controls, moving their taped values in place.
// Controls must be fields or constants. On return the tape holds the final
// controls, so later sweeps differentiate around the optimum.
func Minimize(ctx context.Context, f *tape.Functional, controls []tape.Overloaded, opt Optimizer, cfg MinimizeConfig) (*Result, error) {
	if len(controls) == 0 {
		return nil, ErrNoControls
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	res := &Result{}
	for {
		j, err := f.Value(ctx)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", res.Iterations, err)
		}
		grads, err := f.Gradient(ctx, controls...)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", res.Iterations, err)
		}
		norm := 0.0
		for _, g := range grads {
			norm += g.Dot(g)
		}
		norm = math.Sqrt(norm)

		res.Value, res.GradNorm = j, norm
		res.History = append(res.History, j)
		logger.Debug("iteration",
			zap.Int("iter", res.Iterations),
			zap.Float64("value", j),
			zap.Float64("grad_norm", norm),
		)
		if norm <= cfg.GTol {
			res.Converged = true
			return res, nil
		}
		if res.Iterations == cfg.MaxIter {
			return res, nil
		}

		steps := opt.Step(grads)
		seeds := make([]tape.Seed, len(controls))
		for i, c := range controls {
			seeds[i] = tape.Seed{Control: c, Direction: steps[i]}
		}
		if err := f.Move(ctx, 1, seeds...); err != nil {
			return nil, fmt.Errorf("iteration %d: %w", res.Iterations, err)
		}
		res.Iterations++
	}
}
