package reactor

import "sync"

// relay is the buffered one-shot broadcast behind the event and error streams.
//
// Delivery rules:
//   - while no subscriber is attached, published items accumulate in backlog
//   - the first subscriber to attach after such a dry period drains the backlog
//   - with subscribers attached, each item is queued to all of them atomically
//   - nothing is replayed: a late subscriber sees only items published after
//     it attached (unless it is the one draining the backlog)
//
// When the last subscriber detaches, whatever it had been sent but never read
// goes back to the front of the backlog. The next subscriber receives exactly
// the undelivered items, with no duplicates and no gaps.
type relay[T any] struct {
	mu      sync.Mutex
	backlog []T
	subs    map[string]*Subscription[T]
	closed  bool
}

func newRelay[T any]() *relay[T] {
	return &relay[T]{
		subs: make(map[string]*Subscription[T]),
	}
}

// publish broadcasts v. Returns false if the relay is closed.
func (r *relay[T]) publish(v T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}

	if len(r.subs) == 0 {
		r.backlog = append(r.backlog, v)
		return true
	}

	for _, sub := range r.subs {
		sub.deliver(v)
	}
	return true
}

// subscribe attaches a new subscriber, handing it the backlog if it is the
// only one. On a closed relay the returned subscription is already closed.
func (r *relay[T]) subscribe(id string) *Subscription[T] {
	sub := newSubscription(id, r.detach)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		sub.start()
		sub.Close()
		return sub
	}
	if len(r.subs) == 0 && len(r.backlog) > 0 {
		sub.deliverAll(r.backlog)
		r.backlog = nil
	}
	r.subs[id] = sub
	r.mu.Unlock()

	sub.start()
	return sub
}

func (r *relay[T]) detach(sub *Subscription[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.subs, sub.id)

	if r.closed || len(r.subs) > 0 {
		return
	}

	rest := sub.leftover()
	if len(rest) == 0 {
		return
	}
	r.backlog = append(rest, r.backlog...)
}

// buffered returns the number of items waiting for a subscriber.
func (r *relay[T]) buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.backlog)
}

// count returns the number of attached subscribers.
func (r *relay[T]) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// close drops the backlog and releases every subscriber.
func (r *relay[T]) close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.backlog = nil
	subs := make([]*Subscription[T], 0, len(r.subs))
	for _, sub := range r.subs {
		subs = append(subs, sub)
	}
	r.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
