package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/reactor/internal/reactor"
)

// TracerName is the instrumentation scope used by Tracer.
const TracerName = "github.com/roach88/reactor"

// Tracing is a reactor.Observer that wraps each mutate call in a span.
// The span's context is the one mutate receives, so spans started inside
// mutate become its children.
type Tracing struct {
	reactor.NopObserver
	tracer trace.Tracer
}

// NewTracing creates a tracing observer.
func NewTracing(tracer trace.Tracer) *Tracing {
	return &Tracing{tracer: tracer}
}

// MutateStarted implements reactor.Observer.
func (t *Tracing) MutateStarted(ctx context.Context, info reactor.ActionInfo) context.Context {
	ctx, _ = t.tracer.Start(ctx, "reactor.mutate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("reactor.name", info.Reactor),
			attribute.String("reactor.id", info.ID),
			attribute.Int64("reactor.dispatch_seq", info.Seq),
			attribute.String("reactor.lane", info.Lane),
			attribute.String("reactor.action", info.Kind),
		),
	)
	return ctx
}

// MutateFinished implements reactor.Observer.
func (t *Tracing) MutateFinished(ctx context.Context, _ reactor.ActionInfo, err error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	outcome := Outcome(err)
	span.SetAttributes(attribute.String("reactor.outcome", outcome))

	switch outcome {
	case OutcomeOK, OutcomeCancelled:
		return
	case OutcomeExpected:
		span.RecordError(err)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
