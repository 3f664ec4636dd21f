package reactor

import "context"

// ActionInfo identifies one dispatched action for observers.
type ActionInfo struct {
	Reactor string // reactor name
	ID      string // reactor ID
	Seq     int64  // dispatch sequence number, starting at 1
	Lane    string // ordering lane, empty when unlaned
	Kind    string // Definition.Kind, or the dynamic type of the action
}

// Observer receives runtime notifications. Implementations must be safe for
// concurrent use and must not block: they are called inline on the hot path.
//
// Embed NopObserver to implement only the hooks you need.
type Observer interface {
	ActionQueued(reactor string)
	MutateStarted(ctx context.Context, info ActionInfo) context.Context
	MutateFinished(ctx context.Context, info ActionInfo, err error)
	Committed(reactor string, seq int64)
	EventPublished(reactor string)
	ErrorRaised(reactor string, err error)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) ActionQueued(string) {}

func (NopObserver) MutateStarted(ctx context.Context, _ ActionInfo) context.Context { return ctx }

func (NopObserver) MutateFinished(context.Context, ActionInfo, error) {}

func (NopObserver) Committed(string, int64) {}

func (NopObserver) EventPublished(string) {}

func (NopObserver) ErrorRaised(string, error) {}

// Observers fans notifications out to several observers in order.
func Observers(obs ...Observer) Observer {
	return multiObserver(obs)
}

type multiObserver []Observer

func (m multiObserver) ActionQueued(reactor string) {
	for _, o := range m {
		o.ActionQueued(reactor)
	}
}

func (m multiObserver) MutateStarted(ctx context.Context, info ActionInfo) context.Context {
	for _, o := range m {
		ctx = o.MutateStarted(ctx, info)
	}
	return ctx
}

func (m multiObserver) MutateFinished(ctx context.Context, info ActionInfo, err error) {
	for i := len(m) - 1; i >= 0; i-- {
		m[i].MutateFinished(ctx, info, err)
	}
}

func (m multiObserver) Committed(reactor string, seq int64) {
	for _, o := range m {
		o.Committed(reactor, seq)
	}
}

func (m multiObserver) EventPublished(reactor string) {
	for _, o := range m {
		o.EventPublished(reactor)
	}
}

func (m multiObserver) ErrorRaised(reactor string, err error) {
	for _, o := range m {
		o.ErrorRaised(reactor, err)
	}
}
