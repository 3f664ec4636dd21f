package harness

import "github.com/roach88/reactor/internal/textfield"

// Trace is everything the scenario's subscribers observed, per stream.
// Streams are kept apart because their relative interleaving is not
// deterministic; each stream on its own is.
type Trace struct {
	Actions []textfield.Action `json:"actions"`
	States  []textfield.State  `json:"states"`
	Events  []textfield.Event  `json:"events"`
	Errors  []TraceError       `json:"errors"`
}

// TraceError is the recorded form of an error-stream value.
type TraceError struct {
	Message  string `json:"message"`
	Expected bool   `json:"expected"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every await step matched and every expectation held.
	Pass bool `json:"pass"`

	// Trace is what the subscribers observed.
	Trace Trace `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the reactor's current state when the run ended.
	State textfield.State `json:"state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass: true,
		Trace: Trace{
			Actions: []textfield.Action{},
			States:  []textfield.State{},
			Events:  []textfield.Event{},
			Errors:  []TraceError{},
		},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
