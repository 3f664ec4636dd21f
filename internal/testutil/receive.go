// Package testutil provides helpers for tests that consume reactor streams.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// DefaultTimeout bounds every wait in these helpers unless a caller passes
// its own.
const DefaultTimeout = 2 * time.Second

// Receive waits for one value from ch.
// Fails the test on timeout or if ch is closed.
func Receive[T any](t testing.TB, ch <-chan T, timeout time.Duration) T {
	t.Helper()

	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed before a value arrived")
		return v
	case <-time.After(timeout):
		require.FailNowf(t, "timeout", "no value within %s", timeout)
	}

	var zero T
	return zero
}

// ReceiveN collects exactly n values from ch, in order.
func ReceiveN[T any](t testing.TB, ch <-chan T, n int, timeout time.Duration) []T {
	t.Helper()

	out := make([]T, 0, n)
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case v, ok := <-ch:
			require.Truef(t, ok, "channel closed after %d of %d values", len(out), n)
			out = append(out, v)
		case <-deadline:
			require.FailNowf(t, "timeout", "received %d of %d values within %s", len(out), n, timeout)
		}
	}
	return out
}

// RequireSilent asserts that nothing arrives on ch for d.
// A closed channel counts as silent.
func RequireSilent[T any](t testing.TB, ch <-chan T, d time.Duration) {
	t.Helper()

	select {
	case v, ok := <-ch:
		if ok {
			require.FailNowf(t, "unexpected value", "got %v", v)
		}
	case <-time.After(d):
	}
}

// RequireClosed waits until ch is closed, discarding values.
func RequireClosed[T any](t testing.TB, ch <-chan T, timeout time.Duration) {
	t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			require.FailNowf(t, "timeout", "channel still open after %s", timeout)
		}
	}
}

// RequireDone waits for a done-style channel to close.
func RequireDone(t testing.TB, done <-chan struct{}, timeout time.Duration) {
	t.Helper()

	select {
	case <-done:
	case <-time.After(timeout):
		require.FailNowf(t, "timeout", "not done within %s", timeout)
	}
}
