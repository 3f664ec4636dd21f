package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/reactor/internal/reactor"
	"github.com/roach88/reactor/internal/testutil"
	"github.com/roach88/reactor/internal/textfield"
)

func newTestTracing(t *testing.T) (*Tracing, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewTracing(tp.Tracer(TracerName)), rec
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracing_SpanPerMutate(t *testing.T) {
	tr, rec := newTestTracing(t)
	info := reactor.ActionInfo{Reactor: "textfield", ID: "r-1", Seq: 3, Lane: "input", Kind: "set_text"}

	ctx := tr.MutateStarted(context.Background(), info)
	assert.True(t, trace.SpanFromContext(ctx).SpanContext().IsValid())
	tr.MutateFinished(ctx, info, nil)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "reactor.mutate", spans[0].Name())
	a := attrs(spans[0])
	assert.Equal(t, "textfield", a["reactor.name"].AsString())
	assert.Equal(t, "r-1", a["reactor.id"].AsString())
	assert.Equal(t, int64(3), a["reactor.dispatch_seq"].AsInt64())
	assert.Equal(t, "input", a["reactor.lane"].AsString())
	assert.Equal(t, "set_text", a["reactor.action"].AsString())
	assert.Equal(t, OutcomeOK, a["reactor.outcome"].AsString())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestTracing_Failures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus codes.Code
		wantEvents int
	}{
		{"unhandled", errors.New("boom"), codes.Error, 1},
		{"expected", reactor.Expected(errors.New("empty")), codes.Unset, 1},
		{"cancelled", context.Canceled, codes.Unset, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, rec := newTestTracing(t)
			info := reactor.ActionInfo{Reactor: "textfield", Seq: 1}

			ctx := tr.MutateStarted(context.Background(), info)
			tr.MutateFinished(ctx, info, tt.err)

			spans := rec.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.wantStatus, spans[0].Status().Code)
			assert.Len(t, spans[0].Events(), tt.wantEvents)
		})
	}
}

func TestTracing_WithReactor(t *testing.T) {
	tr, rec := newTestTracing(t)

	r := textfield.New(textfield.State{}, reactor.WithObserver(tr))
	t.Cleanup(r.Destroy)

	states := r.SubscribeState()
	defer states.Close()
	testutil.Receive(t, states.C(), testutil.DefaultTimeout)

	r.Send(textfield.SetText("hi"))
	got := testutil.Receive(t, states.C(), testutil.DefaultTimeout)
	assert.Equal(t, "hi", got.Text)

	require.Eventually(t, func() bool { return len(rec.Ended()) == 1 }, testutil.DefaultTimeout, 5*time.Millisecond)
	span := rec.Ended()[0]
	assert.Equal(t, textfield.Name, attrs(span)["reactor.name"].AsString())
	assert.Equal(t, textfield.InputLane, attrs(span)["reactor.lane"].AsString())
	assert.Equal(t, string(textfield.KindSetText), attrs(span)["reactor.action"].AsString())
}
