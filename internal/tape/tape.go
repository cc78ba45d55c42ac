// Package tape records blocks and replays them in four sweeps: recomputation,
// adjoint (reverse mode), tangent-linear (forward mode) and Hessian actions.
//
// Usage:
//
//	t := tape.New()
//	// ... record blocks ...
//	t.Variable(out).SetAdjValue(fem.Scalar(1))
//	err := t.EvaluateAdj(ctx)
package tape

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Tape records blocks in execution order and owns the variable registry that
// connects them: a tracked object maps to one BlockVariable for the lifetime of
// the tape, so outputs of one block are the dependencies of the next.
type Tape struct {
	id        uuid.UUID
	blocks    []Block
	vars      map[string]*BlockVariable
	recording bool
	logger    *zap.Logger
}

// Option configures a Tape.
type Option func(*Tape)

// WithLogger sets the logger used for sweep diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tape) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates a tape. Unlike a gradient tape for tensors, it starts recording
// immediately: blocks are only ever created by code that wants them taped.
func New(opts ...Option) *Tape {
	t := &Tape{
		id:        uuid.New(),
		blocks:    make([]Block, 0, 16),
		vars:      make(map[string]*BlockVariable),
		recording: true,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(zap.String("tape", t.id.String()))
	return t
}

// ID returns the tape identity.
func (t *Tape) ID() uuid.UUID { return t.id }

// Logger returns the tape logger.
func (t *Tape) Logger() *zap.Logger { return t.logger }

// StartRecording enables block recording.
func (t *Tape) StartRecording() { t.recording = true }

// StopRecording disables block recording.
func (t *Tape) StopRecording() { t.recording = false }

// IsRecording returns true if the tape is currently recording blocks.
func (t *Tape) IsRecording() bool { return t.recording }

// Record appends b. Only records if the tape is currently recording.
func (t *Tape) Record(b Block) {
	if !t.recording {
		return
	}
	t.blocks = append(t.blocks, b)
	t.logger.Debug("recorded block",
		zap.Int("index", len(t.blocks)-1),
		zap.Stringer("block", b),
		zap.Int("dependencies", len(b.Dependencies())),
	)
}

// Blocks returns the recorded blocks in execution order.
func (t *Tape) Blocks() []Block { return t.blocks }

// Variable returns the variable tracking o, creating it on first use.
func (t *Tape) Variable(o Overloaded) *BlockVariable {
	key := o.Key()
	if v, ok := t.vars[key]; ok {
		return v
	}
	v := newBlockVariable(o)
	t.vars[key] = v
	return v
}

// Lookup returns the variable tracking o without creating one.
func (t *Tape) Lookup(o Overloaded) (*BlockVariable, bool) {
	v, ok := t.vars[o.Key()]
	return v, ok
}

// ResetVariables clears adjoint, forward and Hessian values of every variable.
func (t *Tape) ResetVariables() {
	for _, v := range t.vars {
		v.Reset()
	}
}

// Clear removes all blocks and variables. Recording state is preserved.
func (t *Tape) Clear() {
	t.blocks = make([]Block, 0, 16)
	t.vars = make(map[string]*BlockVariable)
}

// Recompute replays every block forward from the saved dependency values.
func (t *Tape) Recompute(ctx context.Context) error {
	return t.sweep(ctx, "Recompute", false, Block.Recompute)
}

// EvaluateAdj propagates adjoint values backward through the tape.
func (t *Tape) EvaluateAdj(ctx context.Context) error {
	return t.sweep(ctx, "EvaluateAdj", true, Block.EvaluateAdj)
}

// EvaluateTLM propagates forward seeds through the tape.
func (t *Tape) EvaluateTLM(ctx context.Context) error {
	return t.sweep(ctx, "EvaluateTLM", false, Block.EvaluateTLM)
}

// EvaluateHessian propagates second-order adjoint values backward through the
// tape. Forward seeds and first-order adjoints must already be in place.
func (t *Tape) EvaluateHessian(ctx context.Context) error {
	return t.sweep(ctx, "EvaluateHessian", true, Block.EvaluateHessian)
}

func (t *Tape) sweep(ctx context.Context, kind string, reverse bool, step func(Block, context.Context) error) error {
	// Blocks run during a sweep must not be recorded.
	wasRecording := t.recording
	t.recording = false
	defer func() {
		t.recording = wasRecording
	}()

	ctx, span := startSweepSpan(ctx, kind, t.id.String(), len(t.blocks))
	defer span.End()
	start := time.Now()

	n := len(t.blocks)
	for i := 0; i < n; i++ {
		idx := i
		if reverse {
			idx = n - 1 - i
		}
		b := t.blocks[idx]
		if err := step(b, ctx); err != nil {
			recordBlockError(ctx, kind)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("%s: block %d (%s): %w", kind, idx, b, err)
		}
	}

	d := time.Since(start)
	recordSweep(ctx, kind, d)
	t.logger.Debug("sweep done",
		zap.String("sweep", kind),
		zap.Int("blocks", n),
		zap.Duration("duration", d),
	)
	return nil
}
