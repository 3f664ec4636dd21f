package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/reactor/internal/reactor"
)

// Mutate outcomes, used as the "outcome" label.
const (
	OutcomeOK        = "ok"
	OutcomeExpected  = "expected"
	OutcomeError     = "error"
	OutcomePanic     = "panic"
	OutcomeCancelled = "cancelled"
)

// Metrics is a reactor.Observer that records Prometheus metrics.
type Metrics struct {
	actionsQueued  *prometheus.CounterVec
	mutateTotal    *prometheus.CounterVec
	mutateDuration *prometheus.HistogramVec
	inflight       *prometheus.GaugeVec
	commits        *prometheus.CounterVec
	lastSeq        *prometheus.GaugeVec
	events         *prometheus.CounterVec
	errors         *prometheus.CounterVec
}

var _ reactor.Observer = (*Metrics)(nil)

// NewMetrics creates the reactor metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		actionsQueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reactor",
				Name:      "actions_queued_total",
				Help:      "Total number of actions sent",
			},
			[]string{"reactor"},
		),
		mutateTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reactor",
				Subsystem: "mutate",
				Name:      "total",
				Help:      "Total number of finished mutate calls by outcome",
			},
			[]string{"reactor", "outcome"},
		),
		mutateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "reactor",
				Subsystem: "mutate",
				Name:      "duration_seconds",
				Help:      "Duration of mutate calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"reactor"},
		),
		inflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "reactor",
				Subsystem: "mutate",
				Name:      "inflight",
				Help:      "Mutate calls currently running",
			},
			[]string{"reactor"},
		),
		commits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reactor",
				Name:      "commits_total",
				Help:      "Total number of committed states",
			},
			[]string{"reactor"},
		),
		lastSeq: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "reactor",
				Name:      "commit_seq",
				Help:      "Sequence number of the latest commit",
			},
			[]string{"reactor"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reactor",
				Name:      "events_total",
				Help:      "Total number of published events",
			},
			[]string{"reactor"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reactor",
				Name:      "errors_total",
				Help:      "Total number of raised errors by kind",
			},
			[]string{"reactor", "kind"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.actionsQueued, m.mutateTotal, m.mutateDuration, m.inflight,
		m.commits, m.lastSeq, m.events, m.errors,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

type startKey struct{}

// ActionQueued implements reactor.Observer.
func (m *Metrics) ActionQueued(name string) {
	m.actionsQueued.WithLabelValues(name).Inc()
}

// MutateStarted implements reactor.Observer.
func (m *Metrics) MutateStarted(ctx context.Context, info reactor.ActionInfo) context.Context {
	m.inflight.WithLabelValues(info.Reactor).Inc()
	return context.WithValue(ctx, startKey{}, time.Now())
}

// MutateFinished implements reactor.Observer.
func (m *Metrics) MutateFinished(ctx context.Context, info reactor.ActionInfo, err error) {
	m.inflight.WithLabelValues(info.Reactor).Dec()
	m.mutateTotal.WithLabelValues(info.Reactor, Outcome(err)).Inc()
	if start, ok := ctx.Value(startKey{}).(time.Time); ok {
		m.mutateDuration.WithLabelValues(info.Reactor).Observe(time.Since(start).Seconds())
	}
}

// Committed implements reactor.Observer.
func (m *Metrics) Committed(name string, seq int64) {
	m.commits.WithLabelValues(name).Inc()
	m.lastSeq.WithLabelValues(name).Set(float64(seq))
}

// EventPublished implements reactor.Observer.
func (m *Metrics) EventPublished(name string) {
	m.events.WithLabelValues(name).Inc()
}

// ErrorRaised implements reactor.Observer.
func (m *Metrics) ErrorRaised(name string, err error) {
	kind := "unhandled"
	switch {
	case reactor.IsExpected(err):
		kind = "expected"
	case reactor.IsMutatePanic(err):
		kind = "panic"
	}
	m.errors.WithLabelValues(name, kind).Inc()
}

// Outcome classifies a mutate result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case reactor.IsMutatePanic(err):
		return OutcomePanic
	case errors.Is(err, context.Canceled), errors.Is(err, reactor.ErrDestroyed):
		return OutcomeCancelled
	case reactor.IsExpected(err):
		return OutcomeExpected
	default:
		return OutcomeError
	}
}
