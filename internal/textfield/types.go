package textfield

import (
	"errors"
	"fmt"
)

// Kind names an action.
type Kind string

const (
	KindSetText Kind = "set_text"
	KindClear   Kind = "clear"
	KindSubmit  Kind = "submit"
	KindFail    Kind = "fail"
	KindCrash   Kind = "crash"
	KindWait    Kind = "wait"
)

// Kinds lists every valid action kind.
var Kinds = []Kind{KindSetText, KindClear, KindSubmit, KindFail, KindCrash, KindWait}

// Action is a user intent.
type Action struct {
	Kind    Kind   `json:"kind" yaml:"kind"`
	Text    string `json:"text,omitempty" yaml:"text,omitempty"`
	DelayMS int    `json:"delay_ms,omitempty" yaml:"delay_ms,omitempty"`
}

// SetText returns a set_text action.
func SetText(text string) Action {
	return Action{Kind: KindSetText, Text: text}
}

// Submit returns a submit action that takes delayMS to complete.
func Submit(delayMS int) Action {
	return Action{Kind: KindSubmit, DelayMS: delayMS}
}

// Validate checks the action is well-formed.
func (a Action) Validate() error {
	known := false
	for _, k := range Kinds {
		if a.Kind == k {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %q", ErrUnknownKind, a.Kind)
	}
	if a.DelayMS < 0 {
		return fmt.Errorf("delay_ms must be >= 0, got %d", a.DelayMS)
	}
	return nil
}

// State is the committed form state.
type State struct {
	Text        string `json:"text" yaml:"text"`
	Submitting  bool   `json:"submitting" yaml:"submitting"`
	Submissions int    `json:"submissions" yaml:"submissions"`
}

// EventSubmitted is the kind of the event published by a completed submit.
const EventSubmitted = "submitted"

// Event is a one-shot notification.
type Event struct {
	Kind string `json:"kind" yaml:"kind"`
	Text string `json:"text" yaml:"text"`
}

type mutationKind int

const (
	mutSetText mutationKind = iota
	mutSubmitting
	mutSubmitted
)

// Mutation is a state change produced by mutate.
type Mutation struct {
	kind mutationKind
	text string
}

var (
	// ErrEmptyText is raised (as an expected error) when submitting an empty field.
	ErrEmptyText = errors.New("text is empty")

	// ErrRejected is raised (as an expected error) by the fail action.
	ErrRejected = errors.New("rejected")

	// ErrCrashed is returned, unhandled, by the crash action.
	ErrCrashed = errors.New("crashed")

	// ErrUnknownKind is returned for an action with an unrecognised kind.
	ErrUnknownKind = errors.New("unknown action kind")
)
