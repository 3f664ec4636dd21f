package reactor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// MutateFunc turns one action into zero or more mutations, events and errors.
//
// It may block for as long as it likes; ctx is cancelled when the reactor is
// destroyed. A returned error is routed to the error stream as-is unless it is
// the cancellation itself. A panic is recovered and routed as a RuntimeError
// with code MUTATE_PANIC. Neither affects other in-flight actions.
type MutateFunc[A, M, S, E any] func(ctx context.Context, fx Effects[M, S, E], action A) error

// ReduceFunc folds one mutation into the state. It must be pure and must not
// block. A panic is a fatal fault.
type ReduceFunc[S, M any] func(state S, mutation M) S

// Definition is the domain half of a reactor: the mutate/reduce pair and the
// optional hooks around them.
type Definition[A, M, S, E any] struct {
	// Mutate is required.
	Mutate MutateFunc[A, M, S, E]

	// Reduce is required.
	Reduce ReduceFunc[S, M]

	// Lane assigns actions to ordering lanes. Actions sharing a non-empty lane
	// run mutate one at a time in submission order; unlaned actions fan out
	// concurrently. Nil means every action is unlaned.
	Lane func(A) string

	// Kind names an action for logs and observers. Nil means the action's
	// dynamic type, e.g. "textfield.Action".
	Kind func(A) string

	// TransformAction reshapes the action stream before dispatch.
	TransformAction Stage[A]

	// TransformMutation reshapes the merged mutation stream before reduce.
	TransformMutation Stage[M]

	// TransformState reshapes reduced states before they are committed.
	TransformState Stage[S]

	// OnDestroy runs synchronously at the end of the first Destroy. Calling
	// Destroy from inside it is a no-op.
	OnDestroy func()
}

// Reactor is a unidirectional state container.
//
// Pipeline:
//
//	Send -> action queue -> [TransformAction] -> dispatch
//	     -> Mutate (one goroutine per action, or per lane)
//	     -> [TransformMutation] -> Reduce -> [TransformState] -> commit
//
// Thread-safety model:
//   - Send, CurrentState, Snapshot, Subscribe*, Bind, Destroy: safe from any goroutine
//   - Reduce and commit run on exactly one goroutine
//   - the state cell is written only by the commit path
//
// Ordering: actions are dispatched in submission order, but unlaned actions
// run mutate concurrently, so their mutations may commit in any order. Give
// actions a common Definition.Lane when their commits must follow submission
// order.
//
// INVARIANTS:
//   - exactly one current state, produced only by Reduce
//   - commits are totally ordered and observed in that order by every state subscriber
//   - nothing is committed, published or raised after Destroy returns
type Reactor[A, M, S, E any] struct {
	id   string
	name string
	def  Definition[A, M, S, E]

	log      *slog.Logger
	observer Observer
	onFault  FaultHandler
	ids      IDGenerator

	actions   *queue[A]
	mutations chan M
	cell      *cell[S]
	events    *relay[E]
	errs      *relay[error]
	dispatch  *Clock
	inFlight  atomic.Int64

	laneMu sync.Mutex
	lanes  map[string]*queue[laned[A]]

	ctx    context.Context
	cancel context.CancelCauseFunc
	group  *errgroup.Group

	destroyed    atomic.Bool
	destroyOnce  sync.Once
	shutdownOnce sync.Once
	done         chan struct{}
	fault        error
}

type laned[A any] struct {
	action A
	info   ActionInfo
}

// Stats is a point-in-time view of a reactor's queues and subscribers.
type Stats struct {
	Commits    int64
	Dispatched int64

	// InFlight counts dispatched actions whose mutate has not returned,
	// including those waiting in a lane.
	InFlight int64

	QueuedActions    int
	BufferedEvents   int
	BufferedErrors   int
	StateSubscribers int
	EventSubscribers int
	ErrorSubscribers int
}

// New creates a reactor holding initial and starts its pipeline.
//
// Panics if def.Mutate or def.Reduce is nil.
func New[A, M, S, E any](initial S, def Definition[A, M, S, E], opts ...Option) *Reactor[A, M, S, E] {
	if def.Mutate == nil {
		panic("reactor: Definition.Mutate is required")
	}
	if def.Reduce == nil {
		panic("reactor: Definition.Reduce is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	id := o.ids.Generate()
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("reactor", o.name, "reactor_id", id)

	base, cancel := context.WithCancelCause(o.base)
	group, ctx := errgroup.WithContext(base)

	r := &Reactor[A, M, S, E]{
		id:        id,
		name:      o.name,
		def:       def,
		log:       logger,
		observer:  o.observer,
		onFault:   o.onFault,
		ids:       o.ids,
		actions:   newQueue[A](),
		mutations: make(chan M),
		cell:      newCell(initial),
		events:    newRelay[E](),
		errs:      newRelay[error](),
		dispatch:  NewClock(),
		lanes:     make(map[string]*queue[laned[A]]),
		ctx:       ctx,
		cancel:    cancel,
		group:     group,
		done:      make(chan struct{}),
	}

	r.start()
	go r.await()

	logger.Info("reactor started")
	return r
}

// ID returns the reactor's unique identifier.
func (r *Reactor[A, M, S, E]) ID() string {
	return r.id
}

// Name returns the reactor's name.
func (r *Reactor[A, M, S, E]) Name() string {
	return r.name
}

// Send enqueues an action and returns immediately.
// After Destroy it is a silent no-op.
func (r *Reactor[A, M, S, E]) Send(action A) {
	if r.destroyed.Load() {
		return
	}
	if r.actions.Enqueue(action) {
		r.observer.ActionQueued(r.name)
	}
}

// CurrentState returns the most recently committed state.
func (r *Reactor[A, M, S, E]) CurrentState() S {
	return r.cell.load().State
}

// Snapshot returns the most recently committed state with its sequence number.
func (r *Reactor[A, M, S, E]) Snapshot() Snapshot[S] {
	return r.cell.load()
}

// SubscribeState attaches a state subscriber. It receives the current state
// immediately, then every later commit in order.
func (r *Reactor[A, M, S, E]) SubscribeState() *Subscription[S] {
	return r.cell.subscribe(r.ids.Generate())
}

// SubscribeEvents attaches an event subscriber.
// See relay for the buffering rules.
func (r *Reactor[A, M, S, E]) SubscribeEvents() *Subscription[E] {
	return r.events.subscribe(r.ids.Generate())
}

// SubscribeErrors attaches an error subscriber.
// Same delivery rules as SubscribeEvents.
func (r *Reactor[A, M, S, E]) SubscribeErrors() *Subscription[error] {
	return r.errs.subscribe(r.ids.Generate())
}

// Destroy stops the reactor: no further commits, events or errors; in-flight
// mutate calls observe ctx cancellation; every subscription is released; then
// OnDestroy runs. Later calls do nothing.
func (r *Reactor[A, M, S, E]) Destroy() {
	first := false
	r.destroyOnce.Do(func() {
		first = true
		r.shutdown(ErrDestroyed)
		r.log.Info("reactor destroyed",
			"commits", r.cell.load().Seq,
			"dispatched", r.dispatch.Current(),
		)
	})
	if first && r.def.OnDestroy != nil {
		r.def.OnDestroy()
	}
}

// Destroyed reports whether the reactor has stopped accepting actions,
// through Destroy or a fault.
func (r *Reactor[A, M, S, E]) Destroyed() bool {
	return r.destroyed.Load()
}

// Done is closed once every pipeline goroutine has returned.
func (r *Reactor[A, M, S, E]) Done() <-chan struct{} {
	return r.done
}

// Err returns the fatal fault that stopped the reactor, if any.
// Always nil before Done is closed.
func (r *Reactor[A, M, S, E]) Err() error {
	select {
	case <-r.done:
		return r.fault
	default:
		return nil
	}
}

// Stats returns queue depths and subscriber counts.
func (r *Reactor[A, M, S, E]) Stats() Stats {
	return Stats{
		Commits:          r.cell.load().Seq,
		Dispatched:       r.dispatch.Current(),
		InFlight:         r.inFlight.Load(),
		QueuedActions:    r.actions.Len(),
		BufferedEvents:   r.events.buffered(),
		BufferedErrors:   r.errs.buffered(),
		StateSubscribers: r.cell.count(),
		EventSubscribers: r.events.count(),
		ErrorSubscribers: r.errs.count(),
	}
}

// start wires the pipeline goroutines into the group.
func (r *Reactor[A, M, S, E]) start() {
	fed := make(chan A)
	r.group.Go(func() error {
		r.feed(fed)
		return nil
	})

	var actions <-chan A = fed
	if st := r.def.TransformAction; st != nil {
		out := make(chan A)
		r.group.Go(func() error {
			return runStage[A](r.ctx, r.id, "action", st, fed, out)
		})
		actions = out
	}

	r.group.Go(func() error {
		return r.dispatchLoop(actions)
	})

	var mutations <-chan M = r.mutations
	if st := r.def.TransformMutation; st != nil {
		out := make(chan M)
		r.group.Go(func() error {
			return runStage[M](r.ctx, r.id, "mutation", st, r.mutations, out)
		})
		mutations = out
	}

	st := r.def.TransformState
	if st == nil {
		r.group.Go(func() error {
			return r.reduceLoop(mutations, nil)
		})
		return
	}

	reduced := make(chan S)
	committed := make(chan S)
	r.group.Go(func() error {
		return r.reduceLoop(mutations, reduced)
	})
	r.group.Go(func() error {
		return runStage[S](r.ctx, r.id, "state", st, reduced, committed)
	})
	r.group.Go(func() error {
		r.commitLoop(committed)
		return nil
	})
}

// feed moves actions from the unbounded queue into the pipeline in
// submission order.
func (r *Reactor[A, M, S, E]) feed(out chan<- A) {
	defer close(out)

	for {
		action, ok := r.actions.TryDequeue()
		if ok {
			select {
			case out <- action:
				continue
			case <-r.ctx.Done():
				return
			}
		}

		select {
		case <-r.ctx.Done():
			return
		case <-r.actions.Wait():
			if r.actions.Closed() && r.actions.Len() == 0 {
				return
			}
		}
	}
}

// dispatchLoop starts mutate for every action, directly or through its lane.
func (r *Reactor[A, M, S, E]) dispatchLoop(in <-chan A) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = newPanicError(ErrCodeStageFault, r.id, "lane", v, debug.Stack())
		}
	}()

	for {
		action, ok, _ := Receive(r.ctx, in)
		if !ok {
			return nil
		}

		info := ActionInfo{
			Reactor: r.name,
			ID:      r.id,
			Seq:     r.dispatch.Next(),
			Kind:    r.kind(action),
		}
		if r.def.Lane != nil {
			info.Lane = r.def.Lane(action)
		}
		r.inFlight.Add(1)

		if info.Lane == "" {
			r.group.Go(func() error {
				r.mutate(action, info)
				return nil
			})
			continue
		}
		r.enqueueLane(laned[A]{action: action, info: info})
	}
}

func (r *Reactor[A, M, S, E]) kind(action A) string {
	if r.def.Kind != nil {
		return r.def.Kind(action)
	}
	return fmt.Sprintf("%T", action)
}

// enqueueLane appends to the lane's queue, starting a worker if the lane is
// idle. The worker exits when the lane drains.
func (r *Reactor[A, M, S, E]) enqueueLane(item laned[A]) {
	key := item.info.Lane

	r.laneMu.Lock()
	q, running := r.lanes[key]
	if !running {
		q = newQueue[laned[A]]()
		r.lanes[key] = q
	}
	q.Enqueue(item)
	r.laneMu.Unlock()

	if running {
		return
	}

	r.group.Go(func() error {
		for {
			r.laneMu.Lock()
			if r.ctx.Err() != nil {
				dropped := q.Drain()
				delete(r.lanes, key)
				r.laneMu.Unlock()
				r.inFlight.Add(-int64(len(dropped)))
				return nil
			}
			next, ok := q.TryDequeue()
			if !ok {
				delete(r.lanes, key)
				r.laneMu.Unlock()
				return nil
			}
			r.laneMu.Unlock()

			r.mutate(next.action, next.info)
		}
	})
}

// mutate runs the user's mutate for one action inside the per-action
// isolation boundary.
func (r *Reactor[A, M, S, E]) mutate(action A, info ActionInfo) {
	ctx := r.observer.MutateStarted(r.ctx, info)

	var err error
	defer func() {
		defer r.inFlight.Add(-1)
		if v := recover(); v != nil {
			err = newPanicError(ErrCodeMutatePanic, r.id, "", v, debug.Stack())
		}
		r.observer.MutateFinished(ctx, info, err)

		switch {
		case err == nil:
		case isCancellation(r.ctx, err):
			r.log.Debug("mutate cancelled", "seq", info.Seq, "kind", info.Kind)
		default:
			r.log.Warn("mutate failed",
				"seq", info.Seq,
				"kind", info.Kind,
				"lane", info.Lane,
				"error", err,
			)
			r.raise(err)
		}
	}()

	err = r.def.Mutate(ctx, effects[A, M, S, E]{ctx: ctx, r: r}, action)
}

// reduceLoop folds mutations into an accumulator. Without a state stage it
// commits each result inline, which makes it the single commit point.
func (r *Reactor[A, M, S, E]) reduceLoop(in <-chan M, out chan<- S) (err error) {
	if out != nil {
		defer close(out)
	}
	defer func() {
		if v := recover(); v != nil {
			err = newPanicError(ErrCodeReducePanic, r.id, "reduce", v, debug.Stack())
		}
	}()

	acc := r.cell.load().State
	for {
		m, ok, _ := Receive(r.ctx, in)
		if !ok {
			return nil
		}

		acc = r.def.Reduce(acc, m)

		if out == nil {
			r.commit(acc)
			continue
		}
		select {
		case out <- acc:
		case <-r.ctx.Done():
			return nil
		}
	}
}

// commitLoop is the single commit point when a state stage is installed.
func (r *Reactor[A, M, S, E]) commitLoop(in <-chan S) {
	for {
		s, ok, _ := Receive(r.ctx, in)
		if !ok {
			return
		}
		r.commit(s)
	}
}

func (r *Reactor[A, M, S, E]) commit(s S) {
	snap, ok := r.cell.commit(s)
	if !ok {
		return
	}
	r.observer.Committed(r.name, snap.Seq)
	r.log.Debug("state committed", "seq", snap.Seq)
}

func (r *Reactor[A, M, S, E]) publish(e E) {
	if r.events.publish(e) {
		r.observer.EventPublished(r.name)
	}
}

func (r *Reactor[A, M, S, E]) raise(err error) {
	if err == nil {
		return
	}
	if r.errs.publish(err) {
		r.observer.ErrorRaised(r.name, err)
	}
}

// shutdown stops all output before cancelling the scope, so nothing is
// emitted once it returns.
func (r *Reactor[A, M, S, E]) shutdown(cause error) {
	r.shutdownOnce.Do(func() {
		r.destroyed.Store(true)
		r.cell.close()
		r.events.close()
		r.errs.close()
		r.cancel(cause)
		r.actions.Close()
	})
}

// await joins the group, then reports a fault if one stopped it.
func (r *Reactor[A, M, S, E]) await() {
	err := r.group.Wait()

	cause := err
	if cause == nil {
		cause = context.Cause(r.ctx)
	}
	r.shutdown(cause)

	if err != nil {
		r.fault = err
		r.log.Error("reactor fault", "error", err)
	} else {
		r.log.Debug("reactor stopped", "cause", cause)
	}
	close(r.done)

	if err != nil {
		r.onFault(err)
	}
}
