package assembly

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for assemble blocks.
var (
	tracer = otel.Tracer("formgrad.assembly")
	meter  = otel.Meter("formgrad.assembly")
)

var (
	assembleTotal metric.Int64Counter
	prepareTotal  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		assembleTotal, err = meter.Int64Counter(
			"assembly_assemble_total",
			metric.WithDescription("Total number of forms assembled by assemble blocks"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		prepareTotal, err = meter.Int64Counter(
			"assembly_prepare_total",
			metric.WithDescription("Total number of substitutions performed by assemble blocks"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordAssemble counts one assembly call.
func recordAssemble(ctx context.Context, rank int) {
	if err := initMetrics(); err != nil {
		return
	}
	assembleTotal.Add(ctx, 1, metric.WithAttributes(attribute.Int("form.rank", rank)))
}

// recordPrepare counts one substitution.
func recordPrepare(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	prepareTotal.Add(ctx, 1)
}

// startBlockSpan creates a span for one sweep over a block.
func startBlockSpan(ctx context.Context, sweep string, b *Block) (context.Context, trace.Span) {
	return tracer.Start(ctx, "AssembleBlock."+sweep,
		trace.WithAttributes(
			attribute.String("block.form", b.form.String()),
			attribute.Int("block.dependencies", len(b.Dependencies())),
		),
	)
}
