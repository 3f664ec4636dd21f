package reactor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reactor/internal/testutil"
)

// feedStage runs st over values and collects what it writes.
func feedStage[T any](t *testing.T, st Stage[T], values ...T) ([]T, error) {
	t.Helper()

	in := make(chan T, len(values))
	for _, v := range values {
		in <- v
	}
	close(in)

	out := make(chan T)
	errc := make(chan error, 1)
	go func() {
		errc <- runStage[T](context.Background(), "r-1", "test", st, in, out)
	}()

	var got []T
	for v := range out {
		got = append(got, v)
	}
	return got, <-errc
}

func TestMapStage(t *testing.T) {
	got, err := feedStage(t, MapStage(func(v int) int { return v * 2 }), 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 6}, got)
}

func TestFilterStage(t *testing.T) {
	got, err := feedStage(t, FilterStage(func(v int) bool { return v%2 == 1 }), 1, 2, 3, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 5}, got)
}

func TestChain_ComposesInOrder(t *testing.T) {
	st := Chain(
		MapStage(func(v int) int { return v + 1 }),
		FilterStage(func(v int) bool { return v > 2 }),
		MapStage(func(v int) int { return v * 10 }),
	)

	got, err := feedStage(t, st, 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{30, 40}, got)
}

func TestChain_Empty(t *testing.T) {
	got, err := feedStage(t, Chain[string](), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestChain_PanicBecomesFault(t *testing.T) {
	st := Chain(
		MapStage(func(v int) int { return v }),
		MapStage(func(v int) int { panic("bad stage") }),
	)

	_, err := feedStage(t, st, 1)
	require.Error(t, err)
	assert.True(t, IsFault(err))
	assert.Contains(t, err.Error(), "bad stage")
}

func TestRunStage_PanicBecomesFault(t *testing.T) {
	_, err := feedStage(t, MapStage(func(v int) int { panic("boom") }), 1)

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeStageFault, re.Code)
	assert.Equal(t, "test", re.Stage)
}

func TestMergeStage(t *testing.T) {
	ext := make(chan int)
	in := make(chan int)
	out := make(chan int)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- runStage[int](ctx, "r-1", "merge", MergeStage[int](ext), in, out)
	}()

	in <- 1
	assert.Equal(t, 1, testutil.Receive(t, out, testutil.DefaultTimeout))
	ext <- 2
	assert.Equal(t, 2, testutil.Receive(t, out, testutil.DefaultTimeout))

	close(in)
	testutil.RequireClosed(t, out, testutil.DefaultTimeout)
	require.NoError(t, <-errc)
}

func TestReceive_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := Receive(ctx, make(chan int))
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunStage_CancellationIsNotAFault(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan int)
	err := runStage[int](ctx, "r-1", "test", MapStage(func(v int) int { return v }), make(chan int), out)
	assert.NoError(t, err)
	testutil.RequireClosed(t, out, testutil.DefaultTimeout)
}
