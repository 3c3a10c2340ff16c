package monitor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "nvme-wipe-engine"

// Tracer wraps OpenTelemetry tracing for the wipe workflow.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Tracer using the global TracerProvider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartSpan creates a new span and returns the updated context. The phase
// name is always attached as an attribute alongside the callers' own.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, AttrPhase.String(name))
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("wipe.%s", name),
		trace.WithAttributes(attrs...),
	)
	return ctx, span
}

// Common attribute keys for workflow tracing.
var (
	AttrRunID  = attribute.Key("wipe.run.id")
	AttrDevice = attribute.Key("wipe.device")
	AttrMethod = attribute.Key("wipe.method")
	AttrPhase  = attribute.Key("wipe.phase")
)
