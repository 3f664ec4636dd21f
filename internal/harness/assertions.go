package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/reactor/internal/reactor"
	"github.com/roach88/reactor/internal/textfield"
)

// Expectation kinds, used as AssertionError.Type.
const (
	AssertState  = "state"
	AssertEvents = "events"
	AssertErrors = "errors"
)

// AssertionError is returned when an expectation fails.
// It carries the trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    Trace
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace.Actions) > 0 {
		fmt.Fprintf(&buf, "\nActions sent:\n")
		for i, a := range e.Trace.Actions {
			fmt.Fprintf(&buf, "  [%d] %s %q\n", i+1, a.Kind, a.Text)
		}
	}

	return buf.String()
}

// EvaluateExpectations checks every set expectation and returns one message
// per failure.
func EvaluateExpectations(expect Expect, final textfield.State, obs observation, trace Trace) []string {
	var out []string

	if expect.State != nil {
		if err := assertState(*expect.State, final, trace); err != nil {
			out = append(out, err.Error())
		}
	}
	if expect.Events != nil {
		if err := assertEvents(expect.Events, trace); err != nil {
			out = append(out, err.Error())
		}
	}
	if expect.Errors != nil {
		if err := assertErrors(expect.Errors, obs.errors, trace); err != nil {
			out = append(out, err.Error())
		}
	}

	return out
}

func assertState(want PartialState, final textfield.State, trace Trace) error {
	diffs := want.Mismatches(final)
	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertState,
		Expected: want.String(),
		Actual:   fmt.Sprintf("%+v (%s)", final, strings.Join(diffs, "; ")),
		Trace:    trace,
	}
}

func assertEvents(want []textfield.Event, trace Trace) error {
	got := trace.Events
	if len(want) == len(got) {
		same := true
		for i := range want {
			if want[i] != got[i] {
				same = false
				break
			}
		}
		if same {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertEvents,
		Expected: formatEvents(want),
		Actual:   formatEvents(got),
		Trace:    trace,
	}
}

func assertErrors(want []ErrorSpec, got []error, trace Trace) error {
	if len(want) != len(got) {
		return &AssertionError{
			Type:     AssertErrors,
			Expected: fmt.Sprintf("%d errors", len(want)),
			Actual:   fmt.Sprintf("%d errors %s", len(got), formatErrors(got)),
			Trace:    trace,
		}
	}

	for i, spec := range want {
		if problem := matchError(spec, got[i]); problem != "" {
			return &AssertionError{
				Type:     AssertErrors,
				Expected: fmt.Sprintf("errors[%d] %s", i, problem),
				Actual:   fmt.Sprintf("%q (expected=%t)", got[i].Error(), reactor.IsExpected(got[i])),
				Trace:    trace,
			}
		}
	}
	return nil
}

// matchError returns a description of the first field of spec that err does
// not satisfy, or "" when it matches.
func matchError(spec ErrorSpec, err error) string {
	if spec.Message != "" && err.Error() != spec.Message {
		return fmt.Sprintf("message %q", spec.Message)
	}
	if spec.Expected != nil && reactor.IsExpected(err) != *spec.Expected {
		return fmt.Sprintf("expected=%t", *spec.Expected)
	}
	if spec.Is != "" && !errors.Is(err, sentinels[spec.Is]) {
		return fmt.Sprintf("is %s", spec.Is)
	}
	return ""
}

func formatEvents(events []textfield.Event) string {
	parts := make([]string, 0, len(events))
	for _, e := range events {
		parts = append(parts, fmt.Sprintf("%s(%q)", e.Kind, e.Text))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatErrors(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, fmt.Sprintf("%q", err.Error()))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
