package journal

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/roach88/reactor/internal/reactor"
)

// Attachment is a live recording of one reactor.
type Attachment struct {
	binding *reactor.Binding
	states  atomic.Int64
	signals atomic.Int64

	mu  sync.Mutex
	err error
}

// Attach registers r and records every state, event and error it delivers
// until the attachment is closed or r is destroyed. Attach before the first
// Send to capture the full history.
func Attach[A, M, S, E any](ctx context.Context, j *Journal, r *reactor.Reactor[A, M, S, E]) (*Attachment, error) {
	if err := j.WriteReactor(ctx, r.ID(), r.Name()); err != nil {
		return nil, err
	}

	a := &Attachment{}
	id := r.ID()

	// Only the state callback goroutine touches position.
	var position int64
	a.binding = r.Bind(reactor.Handlers[S, E]{
		OnState: func(s S) {
			a.record(j.WriteState(ctx, id, position, s))
			position++
			a.states.Add(1)
		},
		OnEvent: func(e E) {
			a.record(j.WriteEvent(ctx, id, e))
			a.signals.Add(1)
		},
		OnError: func(err error) {
			a.record(j.WriteError(ctx, id, err))
			a.signals.Add(1)
		},
	})
	return a, nil
}

// record keeps the first write error.
func (a *Attachment) record(err error) {
	if err == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err == nil {
		a.err = err
	}
}

// Recorded returns how many states and signals (events plus errors) have
// been handled so far, including failed writes.
func (a *Attachment) Recorded() (states, signals int64) {
	return a.states.Load(), a.signals.Load()
}

// Err returns the first write failure, if any.
func (a *Attachment) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Close stops recording, waits for in-progress writes and returns Err.
// Values delivered to the attachment but not yet written are dropped; use
// Recorded to wait for a known count first.
func (a *Attachment) Close() error {
	a.binding.Cancel()
	a.binding.Wait()
	return a.Err()
}
