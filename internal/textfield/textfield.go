package textfield

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/reactor/internal/reactor"
)

// Name is the default reactor name.
const Name = "textfield"

// InputLane is the ordering lane shared by keystrokes.
const InputLane = "input"

// Reactor is a textfield reactor.
type Reactor = reactor.Reactor[Action, Mutation, State, *Event]

// Effects is the side-effect surface mutate receives.
type Effects = reactor.Effects[Mutation, State, *Event]

// Definition returns the textfield mutate/reduce pair.
func Definition() reactor.Definition[Action, Mutation, State, *Event] {
	return reactor.Definition[Action, Mutation, State, *Event]{
		Mutate: Mutate,
		Reduce: Reduce,
		Lane:   Lane,
		Kind:   ActionKind,
	}
}

// New starts a textfield reactor holding initial.
func New(initial State, opts ...reactor.Option) *Reactor {
	opts = append([]reactor.Option{reactor.WithName(Name)}, opts...)
	return reactor.New(initial, Definition(), opts...)
}

// Lane puts keystrokes in InputLane.
func Lane(a Action) string {
	switch a.Kind {
	case KindSetText, KindClear:
		return InputLane
	default:
		return ""
	}
}

// ActionKind labels an action by its kind in logs, metrics and spans.
func ActionKind(a Action) string {
	return string(a.Kind)
}

// Mutate handles one action.
func Mutate(ctx context.Context, fx Effects, a Action) error {
	switch a.Kind {
	case KindSetText:
		return fx.Emit(Mutation{kind: mutSetText, text: norm.NFC.String(a.Text)})

	case KindClear:
		return fx.Emit(Mutation{kind: mutSetText})

	case KindSubmit:
		return submit(ctx, fx, time.Duration(a.DelayMS)*time.Millisecond)

	case KindFail:
		fx.Raise(reactor.Expected(fmt.Errorf("%w: %s", ErrRejected, reason(a.Text))))
		return nil

	case KindCrash:
		return fmt.Errorf("%w: %s", ErrCrashed, reason(a.Text))

	case KindWait:
		<-ctx.Done()
		return ctx.Err()

	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, a.Kind)
	}
}

func submit(ctx context.Context, fx Effects, delay time.Duration) error {
	text := fx.State().Text
	if text == "" {
		fx.Raise(reactor.Expected(ErrEmptyText))
		return nil
	}

	if err := fx.Emit(Mutation{kind: mutSubmitting}); err != nil {
		return err
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	fx.Publish(&Event{Kind: EventSubmitted, Text: text})
	return fx.Emit(Mutation{kind: mutSubmitted})
}

func reason(text string) string {
	if text == "" {
		return "no reason given"
	}
	return text
}

// Reduce folds one mutation into s.
func Reduce(s State, m Mutation) State {
	switch m.kind {
	case mutSetText:
		s.Text = m.text
	case mutSubmitting:
		s.Submitting = true
	case mutSubmitted:
		s.Submitting = false
		s.Submissions++
	}
	return s
}
