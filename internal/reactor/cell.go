package reactor

import (
	"sync"
	"sync/atomic"
)

// Snapshot is an immutable committed state with its commit sequence number.
// The initial state has Seq 0; every commit increments it by one.
type Snapshot[S any] struct {
	Seq   int64
	State S
}

// cell is the latest-value broadcast cell holding the current state.
//
// Reads go through an atomically swapped snapshot pointer and never take the
// lock. Commits and subscriber registration serialize on mu, so a subscriber
// sees the value current at registration followed by every later commit with
// no gap and no duplicate.
type cell[S any] struct {
	mu     sync.Mutex
	snap   atomic.Pointer[Snapshot[S]]
	clock  *Clock
	subs   map[string]*Subscription[S]
	closed bool
}

func newCell[S any](initial S) *cell[S] {
	c := &cell[S]{
		clock: NewClock(),
		subs:  make(map[string]*Subscription[S]),
	}
	c.snap.Store(&Snapshot[S]{Seq: 0, State: initial})
	return c
}

// load returns the current snapshot.
func (c *cell[S]) load() Snapshot[S] {
	return *c.snap.Load()
}

// commit publishes next as the new current state.
// Returns false without committing if the cell is closed.
func (c *cell[S]) commit(next S) (Snapshot[S], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Snapshot[S]{}, false
	}

	snap := &Snapshot[S]{Seq: c.clock.Next(), State: next}
	c.snap.Store(snap)

	for _, sub := range c.subs {
		sub.deliver(next)
	}

	return *snap, true
}

// subscribe attaches a subscriber that first receives the current value.
// On a closed cell the returned subscription is already closed.
func (c *cell[S]) subscribe(id string) *Subscription[S] {
	sub := newSubscription(id, c.detach)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sub.start()
		sub.Close()
		return sub
	}
	sub.deliver(c.load().State)
	c.subs[id] = sub
	c.mu.Unlock()

	sub.start()
	return sub
}

func (c *cell[S]) detach(sub *Subscription[S]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, sub.id)
}

// count returns the number of attached subscribers.
func (c *cell[S]) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// close stops further commits and releases every subscriber.
func (c *cell[S]) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := make([]*Subscription[S], 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
