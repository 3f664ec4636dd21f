package reactor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_EnqueueDequeue(t *testing.T) {
	q := newQueue[string]()

	ok := q.Enqueue("a-1")
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, "a-1", got)
}

func TestQueue_FIFO(t *testing.T) {
	q := newQueue[string]()

	for _, v := range []string{"A", "B", "C"} {
		q.Enqueue(v)
	}

	for _, want := range []string{"A", "B", "C"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestQueue_TryDequeue_Empty(t *testing.T) {
	q := newQueue[int]()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestQueue_Enqueue_AfterClose(t *testing.T) {
	q := newQueue[int]()
	q.Close()

	assert.False(t, q.Enqueue(1), "enqueue after close should return false")
	assert.False(t, q.EnqueueAll([]int{1, 2}), "enqueue all after close should return false")
	assert.True(t, q.Closed())
}

func TestQueue_Close_WakesWaiter(t *testing.T) {
	q := newQueue[int]()

	woke := make(chan struct{})
	go func() {
		<-q.Wait()
		close(woke)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case <-woke:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("waiter did not wake after close")
	}
}

func TestQueue_Wait_SignalsOnEnqueue(t *testing.T) {
	q := newQueue[int]()

	q.Enqueue(1)

	select {
	case <-q.Wait():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no signal after enqueue")
	}
}

func TestQueue_DrainAndLen(t *testing.T) {
	q := newQueue[int]()

	assert.Equal(t, 0, q.Len())
	assert.Nil(t, q.Drain())

	q.EnqueueAll([]int{1, 2, 3})
	assert.Equal(t, 3, q.Len())

	assert.Equal(t, []int{1, 2, 3}, q.Drain())
	assert.Equal(t, 0, q.Len())

	q.Enqueue(4)
	got, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, 4, got)
}

func TestQueue_ThreadSafe(t *testing.T) {
	q := newQueue[int]()

	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(p*1000 + i)
			}
		}(p)
	}

	received := make([]int, 0, producers*perProducer)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for len(received) < producers*perProducer {
			v, ok := q.TryDequeue()
			if !ok {
				<-q.Wait()
				continue
			}
			received = append(received, v)
		}
	}()

	wg.Wait()

	select {
	case <-consumerDone:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer timeout")
	}

	assert.Len(t, received, producers*perProducer)

	// Per-producer order is preserved.
	last := make(map[int]int)
	for _, v := range received {
		p, i := v/1000, v%1000
		if prev, ok := last[p]; ok {
			assert.Greater(t, i, prev)
		}
		last[p] = i
	}
}
