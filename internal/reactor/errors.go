package reactor

import (
	"errors"
	"fmt"
)

// ErrDestroyed is the cancellation cause of a destroyed reactor's scope.
var ErrDestroyed = errors.New("reactor destroyed")

// ExpectedError marks a failure that mutate logic raises on purpose, such as
// a validation rule rejecting input. It is routed to the error stream like any
// other failure; subscribers use IsExpected to tell it apart from faults.
type ExpectedError struct {
	Err error
}

// Expected wraps err as an expected failure. Expected(nil) returns nil.
func Expected(err error) error {
	if err == nil {
		return nil
	}
	return &ExpectedError{Err: err}
}

// Error implements the error interface.
func (e *ExpectedError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *ExpectedError) Unwrap() error {
	return e.Err
}

// IsExpected reports whether err is, or wraps, an ExpectedError.
func IsExpected(err error) bool {
	var ee *ExpectedError
	return errors.As(err, &ee)
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeMutatePanic indicates mutate panicked while handling one action.
	// Recovered per action and routed to the error stream.
	ErrCodeMutatePanic RuntimeErrorCode = "MUTATE_PANIC"

	// ErrCodeReducePanic indicates reduce panicked. Fatal.
	ErrCodeReducePanic RuntimeErrorCode = "REDUCE_PANIC"

	// ErrCodeStageFault indicates a transform stage failed or panicked. Fatal.
	ErrCodeStageFault RuntimeErrorCode = "STAGE_FAULT"
)

// RuntimeError represents a failure detected by the runtime itself rather
// than returned by mutate.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Reactor is the ID of the reactor that produced the error.
	Reactor string

	// Stage names the pipeline stage ("action", "mutation", "state", "reduce")
	// for faults. Empty for mutate panics.
	Stage string

	// Err is the underlying error, or the panic value when it was an error.
	Err error

	// Stack is the goroutine stack captured at recovery, if any.
	Stack []byte
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s (reactor=%s, stage=%s)", e.Code, msg, e.Reactor, e.Stage)
	}
	if e.Reactor != "" {
		return fmt.Sprintf("%s: %s (reactor=%s)", e.Code, msg, e.Reactor)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying error.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsMutatePanic reports whether err is a recovered mutate panic.
func IsMutatePanic(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeMutatePanic
	}
	return false
}

// IsFault reports whether err is a fatal runtime fault (stage fault or
// reduce panic).
func IsFault(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeStageFault || re.Code == ErrCodeReducePanic
	}
	return false
}

// newPanicError converts a recovered panic value into a RuntimeError.
func newPanicError(code RuntimeErrorCode, reactorID, stage string, v any, stack []byte) *RuntimeError {
	re := &RuntimeError{
		Code:    code,
		Reactor: reactorID,
		Stage:   stage,
		Stack:   stack,
	}
	if err, ok := v.(error); ok {
		re.Message = "panic"
		re.Err = err
	} else {
		re.Message = fmt.Sprintf("panic: %v", v)
	}
	return re
}

// newStageFault wraps an error returned by a transform stage.
func newStageFault(reactorID, stage string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeStageFault,
		Message: "transform stage failed",
		Reactor: reactorID,
		Stage:   stage,
		Err:     err,
	}
}
