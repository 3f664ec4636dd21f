package reactor

import "sync"

// Handlers bundles callbacks for Bind. Nil callbacks are not subscribed.
type Handlers[S, E any] struct {
	OnState func(S)
	OnEvent func(E)
	OnError func(error)
}

// Binding is the single handle returned by Bind.
type Binding struct {
	closers []func()
	wg      sync.WaitGroup
	once    sync.Once
}

// Cancel detaches every subscription of the binding. Callbacks already
// running finish; no new callback starts after Cancel returns, except one
// already past its receive. Safe to call from inside a callback.
func (b *Binding) Cancel() {
	b.once.Do(func() {
		for _, c := range b.closers {
			c()
		}
	})
}

// Wait blocks until every callback goroutine has returned, which happens
// after Cancel or after the reactor is destroyed. Must not be called from a
// callback.
func (b *Binding) Wait() {
	b.wg.Wait()
}

// Bind subscribes the given callbacks and returns one cancellable handle.
// Each callback runs on its own goroutine, sequentially per stream, in the
// stream's delivery order. Intended for hosts that prefer callbacks over
// channels.
func (r *Reactor[A, M, S, E]) Bind(h Handlers[S, E]) *Binding {
	b := &Binding{}
	if h.OnState != nil {
		bindStream(b, r.SubscribeState(), h.OnState)
	}
	if h.OnEvent != nil {
		bindStream(b, r.SubscribeEvents(), h.OnEvent)
	}
	if h.OnError != nil {
		bindStream(b, r.SubscribeErrors(), h.OnError)
	}
	return b
}

func bindStream[T any](b *Binding, sub *Subscription[T], fn func(T)) {
	b.closers = append(b.closers, sub.Close)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for v := range sub.C() {
			fn(v)
		}
	}()
}
