package reactor

import "context"

// Effects is the side-effect surface handed to mutate for one action.
type Effects[M, S, E any] interface {
	// Emit hands a mutation to reduce. It blocks until the reduce loop has
	// accepted m, so mutations of one action are reduced in emission order.
	// Returns ctx.Err() once the reactor is destroyed.
	Emit(m M) error

	// Publish queues an event for broadcast. Never blocks on subscribers.
	Publish(e E)

	// Raise queues an error for broadcast. Never blocks on subscribers.
	// Wrap with Expected for business failures.
	Raise(err error)

	// State returns the current committed state.
	State() S
}

type effects[A, M, S, E any] struct {
	ctx context.Context
	r   *Reactor[A, M, S, E]
}

func (fx effects[A, M, S, E]) Emit(m M) error {
	if err := fx.ctx.Err(); err != nil {
		return err
	}
	select {
	case fx.r.mutations <- m:
		return nil
	case <-fx.ctx.Done():
		return fx.ctx.Err()
	}
}

func (fx effects[A, M, S, E]) Publish(e E) {
	fx.r.publish(e)
}

func (fx effects[A, M, S, E]) Raise(err error) {
	fx.r.raise(err)
}

func (fx effects[A, M, S, E]) State() S {
	return fx.r.CurrentState()
}
