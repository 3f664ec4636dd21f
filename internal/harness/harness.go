package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/reactor/internal/journal"
	"github.com/roach88/reactor/internal/reactor"
	"github.com/roach88/reactor/internal/textfield"
)

const pollInterval = 2 * time.Millisecond

// Option configures Run.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	journal *journal.Journal
	timeout time.Duration
}

// WithLogger routes reactor and harness logs to l. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithJournal records everything the run observes into j.
func WithJournal(j *journal.Journal) Option {
	return func(o *options) {
		o.journal = j
	}
}

// WithTimeout overrides the scenario's own timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// Harness executes one scenario against one reactor.
type Harness struct {
	reactor *textfield.Reactor
	rec     *recorder
	journal *journal.Attachment
	count   *signalCounter
	timeout time.Duration
	logger  *slog.Logger
	sent    []textfield.Action
}

// Run executes a scenario and returns the result.
//
// Each run uses a fresh reactor with deterministic IDs. Execution flow:
//  1. Start the reactor in the scenario's initial state
//  2. Subscribe to all three streams
//  3. Execute steps; a failed await ends the step loop
//  4. Wait for the pipeline to go quiet
//  5. Compare observations with the expect block
//
// The returned error is reserved for scenarios that cannot run at all.
// Expectation failures are reported in Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	o := options{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: scenario.Timeout(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	faults := make(chan error, 1)
	count := &signalCounter{}
	r := textfield.New(scenario.Initial,
		reactor.WithName(scenario.Name),
		reactor.WithLogger(o.logger),
		reactor.WithIDGenerator(reactor.NewFixedGenerator("scenario-"+scenario.Name)),
		reactor.WithObserver(count),
		reactor.WithFaultHandler(func(err error) { faults <- err }),
	)
	defer r.Destroy()

	var att *journal.Attachment
	if o.journal != nil {
		var err error
		att, err = journal.Attach(context.Background(), o.journal, r)
		if err != nil {
			return nil, fmt.Errorf("failed to attach journal: %w", err)
		}
	}

	rec := &recorder{}
	binding := r.Bind(reactor.Handlers[textfield.State, *textfield.Event]{
		OnState: rec.state,
		OnEvent: rec.event,
		OnError: rec.err,
	})
	defer binding.Cancel()

	h := &Harness{
		reactor: r,
		rec:     rec,
		journal: att,
		count:   count,
		timeout: o.timeout,
		logger:  o.logger.With("scenario", scenario.Name),
	}

	result := NewResult()
	h.executeSteps(scenario.Steps, result)

	if !h.settle() {
		h.logger.Debug("reactor did not settle", "timeout", h.timeout, "stats", r.Stats())
	}

	select {
	case err := <-faults:
		result.AddError(fmt.Sprintf("reactor fault: %v", err))
	default:
	}

	if att != nil {
		if err := att.Close(); err != nil {
			result.AddError(fmt.Sprintf("journal: %v", err))
		}
	}

	observed := rec.snapshot()
	result.Trace = buildTrace(h.sent, observed)
	result.State = r.CurrentState()

	for _, msg := range EvaluateExpectations(scenario.Expect, result.State, observed, result.Trace) {
		result.AddError(msg)
	}

	h.logger.Info("scenario finished",
		"pass", result.Pass,
		"actions", len(h.sent),
		"states", len(result.Trace.States),
		"events", len(result.Trace.Events),
		"errors", len(result.Trace.Errors),
	)
	return result, nil
}

// executeSteps runs steps in order. An await that times out is recorded and
// ends the loop, since later steps assume it matched.
func (h *Harness) executeSteps(steps []Step, result *Result) {
	for i, step := range steps {
		if step.Send != nil {
			h.reactor.Send(*step.Send)
			h.sent = append(h.sent, *step.Send)
			h.logger.Debug("step sent", "step", i, "kind", step.Send.Kind)
			continue
		}

		if err := h.await(*step.Await); err != nil {
			result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
			return
		}
		h.logger.Debug("step matched", "step", i, "await", step.Await.String())
	}
}

// await polls the current state until want matches.
func (h *Harness) await(want PartialState) error {
	deadline := time.Now().Add(h.timeout)
	for {
		current := h.reactor.CurrentState()
		if want.Matches(current) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("await %s: timed out after %s, state is %+v", want, h.timeout, current)
		}
		time.Sleep(pollInterval)
	}
}

// settle waits until every sent action finished mutate and every commit,
// event and error reached the recorder.
func (h *Harness) settle() bool {
	deadline := time.Now().Add(h.timeout)
	for time.Now().Before(deadline) {
		st := h.reactor.Stats()
		if st.QueuedActions == 0 &&
			st.Dispatched == int64(len(h.sent)) &&
			st.InFlight == 0 &&
			h.rec.caughtUp(st.Commits+1, h.count.events.Load(), h.count.errors.Load()) &&
			h.journalCaughtUp(st.Commits+1) {
			return true
		}
		if h.reactor.Destroyed() {
			return false
		}
		time.Sleep(pollInterval)
	}
	return false
}

func (h *Harness) journalCaughtUp(states int64) bool {
	if h.journal == nil {
		return true
	}
	gotStates, gotSignals := h.journal.Recorded()
	return gotStates == states && gotSignals == h.count.events.Load()+h.count.errors.Load()
}

// recorder collects stream values delivered through Bind.
type recorder struct {
	mu     sync.Mutex
	states []textfield.State
	events []*textfield.Event
	errors []error
}

type observation struct {
	states []textfield.State
	events []*textfield.Event
	errors []error
}

func (r *recorder) state(s textfield.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) event(e *textfield.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) err(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *recorder) caughtUp(states, events, errors int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.states)) == states &&
		int64(len(r.events)) == events &&
		int64(len(r.errors)) == errors
}

func (r *recorder) snapshot() observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return observation{
		states: append([]textfield.State(nil), r.states...),
		events: append([]*textfield.Event(nil), r.events...),
		errors: append([]error(nil), r.errors...),
	}
}

// signalCounter counts what the reactor published, so settle knows how many
// values the recorder should have.
type signalCounter struct {
	reactor.NopObserver
	events atomic.Int64
	errors atomic.Int64
}

func (c *signalCounter) EventPublished(string) { c.events.Add(1) }

func (c *signalCounter) ErrorRaised(string, error) { c.errors.Add(1) }

func buildTrace(sent []textfield.Action, obs observation) Trace {
	trace := NewResult().Trace
	trace.Actions = append(trace.Actions, sent...)
	trace.States = append(trace.States, obs.states...)
	for _, e := range obs.events {
		trace.Events = append(trace.Events, *e)
	}
	for _, err := range obs.errors {
		trace.Errors = append(trace.Errors, TraceError{
			Message:  err.Error(),
			Expected: reactor.IsExpected(err),
		})
	}
	return trace
}
