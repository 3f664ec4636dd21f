package reactor

import "sync"

// Subscription is a live attachment to one of a reactor's output streams.
//
// Each subscription owns an unbounded mailbox fed by the publisher and a pump
// goroutine that forwards mailbox items to C in order. A slow reader never
// loses items and never blocks the publisher; backlog grows in the mailbox
// instead.
//
// C is closed after Close returns or after the reactor is destroyed.
type Subscription[T any] struct {
	id     string
	out    chan T
	box    *queue[T]
	done   chan struct{}
	exited chan struct{}
	once   sync.Once

	// held is the item the pump had dequeued but not delivered when it stopped.
	// Written by the pump, read only after exited is closed.
	held []T

	detach func(*Subscription[T])
}

func newSubscription[T any](id string, detach func(*Subscription[T])) *Subscription[T] {
	return &Subscription[T]{
		id:     id,
		out:    make(chan T),
		box:    newQueue[T](),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		detach: detach,
	}
}

// ID returns the subscription identifier.
func (s *Subscription[T]) ID() string {
	return s.id
}

// C returns the delivery channel.
func (s *Subscription[T]) C() <-chan T {
	return s.out
}

// Close detaches the subscription. Safe to call more than once and from the
// goroutine reading C.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		close(s.done)
		<-s.exited
		if s.detach != nil {
			s.detach(s)
		}
	})
}

// Pending returns the number of items queued but not yet read from C.
func (s *Subscription[T]) Pending() int {
	return s.box.Len()
}

// deliver queues v for this subscriber. Callers hold the publisher lock.
func (s *Subscription[T]) deliver(v T) {
	s.box.Enqueue(v)
}

// deliverAll queues vs in order. Callers hold the publisher lock.
func (s *Subscription[T]) deliverAll(vs []T) {
	s.box.EnqueueAll(vs)
}

// leftover returns everything that was queued for this subscriber but never
// read, in delivery order. Valid only after the pump exited.
func (s *Subscription[T]) leftover() []T {
	rest := s.box.Drain()
	if len(s.held) == 0 {
		return rest
	}
	out := make([]T, 0, len(s.held)+len(rest))
	out = append(out, s.held...)
	return append(out, rest...)
}

func (s *Subscription[T]) start() {
	go s.pump()
}

func (s *Subscription[T]) pump() {
	defer close(s.exited)
	defer close(s.out)

	for {
		v, ok := s.box.TryDequeue()
		if !ok {
			select {
			case <-s.done:
				return
			case <-s.box.Wait():
				continue
			}
		}

		select {
		case s.out <- v:
		case <-s.done:
			s.held = append(s.held, v)
			return
		}
	}
}
