package tape

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for tape sweeps.
var (
	tracer = otel.Tracer("formgrad.tape")
	meter  = otel.Meter("formgrad.tape")
)

var (
	sweepTotal    metric.Int64Counter
	sweepDuration metric.Float64Histogram
	blockErrors   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		sweepTotal, err = meter.Int64Counter(
			"tape_sweeps_total",
			metric.WithDescription("Total number of tape sweeps"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		sweepDuration, err = meter.Float64Histogram(
			"tape_sweep_duration_seconds",
			metric.WithDescription("Duration of tape sweeps"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		blockErrors, err = meter.Int64Counter(
			"tape_block_errors_total",
			metric.WithDescription("Total number of blocks that failed during a sweep"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordSweep records a finished sweep.
func recordSweep(ctx context.Context, kind string, d time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("sweep", kind),
	)
	sweepTotal.Add(ctx, 1, attrs)
	sweepDuration.Record(ctx, d.Seconds(), attrs)
}

// recordBlockError counts a block that failed during a sweep.
func recordBlockError(ctx context.Context, kind string) {
	if err := initMetrics(); err != nil {
		return
	}
	blockErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("sweep", kind)))
}

// startSweepSpan creates a span for a sweep over the whole tape.
func startSweepSpan(ctx context.Context, kind, tapeID string, blocks int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Tape."+kind,
		trace.WithAttributes(
			attribute.String("tape.id", tapeID),
			attribute.Int("tape.blocks", blocks),
		),
	)
}
