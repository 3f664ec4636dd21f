package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/reactor/internal/testutil"
)

func TestRelay_BacklogGoesToFirstSubscriberOnly(t *testing.T) {
	r := newRelay[int]()

	r.publish(1)
	r.publish(2)
	assert.Equal(t, 2, r.buffered())

	a := r.subscribe("a")
	defer a.Close()
	b := r.subscribe("b")
	defer b.Close()

	assert.Equal(t, []int{1, 2}, testutil.ReceiveN(t, a.C(), 2, testutil.DefaultTimeout))
	testutil.RequireSilent(t, b.C(), 20*time.Millisecond)
	assert.Equal(t, 0, r.buffered())
}

func TestRelay_BroadcastToAll(t *testing.T) {
	r := newRelay[string]()

	a := r.subscribe("a")
	defer a.Close()
	b := r.subscribe("b")
	defer b.Close()

	r.publish("x")

	assert.Equal(t, "x", testutil.Receive(t, a.C(), testutil.DefaultTimeout))
	assert.Equal(t, "x", testutil.Receive(t, b.C(), testutil.DefaultTimeout))
	assert.Equal(t, 2, r.count())
}

func TestRelay_LastDetachReturnsUnread(t *testing.T) {
	r := newRelay[int]()

	a := r.subscribe("a")
	r.publish(1)
	r.publish(2)
	r.publish(3)

	assert.Equal(t, 1, testutil.Receive(t, a.C(), testutil.DefaultTimeout))
	a.Close()

	assert.Equal(t, 2, r.buffered())

	r.publish(4)

	b := r.subscribe("b")
	defer b.Close()
	assert.Equal(t, []int{2, 3, 4}, testutil.ReceiveN(t, b.C(), 3, testutil.DefaultTimeout))
}

func TestRelay_DetachWithOthersAttachedDropsNothingForThem(t *testing.T) {
	r := newRelay[int]()

	a := r.subscribe("a")
	b := r.subscribe("b")
	defer b.Close()

	r.publish(1)
	a.Close()

	assert.Equal(t, 0, r.buffered())
	assert.Equal(t, 1, testutil.Receive(t, b.C(), testutil.DefaultTimeout))
}

func TestRelay_Close(t *testing.T) {
	r := newRelay[int]()
	r.publish(1)

	a := r.subscribe("a")
	r.close()
	r.close()

	testutil.RequireClosed(t, a.C(), testutil.DefaultTimeout)
	assert.False(t, r.publish(2))
	assert.Equal(t, 0, r.buffered())

	late := r.subscribe("late")
	testutil.RequireClosed(t, late.C(), testutil.DefaultTimeout)
}

func TestCell_SubscribeThenCommit(t *testing.T) {
	c := newCell("init")

	sub := c.subscribe("s")
	defer sub.Close()

	snap, ok := c.commit("next")
	assert.True(t, ok)
	assert.Equal(t, int64(1), snap.Seq)

	assert.Equal(t, []string{"init", "next"}, testutil.ReceiveN(t, sub.C(), 2, testutil.DefaultTimeout))
	assert.Equal(t, Snapshot[string]{Seq: 1, State: "next"}, c.load())

	c.close()
	_, ok = c.commit("after")
	assert.False(t, ok)
	assert.Equal(t, "next", c.load().State)
	testutil.RequireClosed(t, sub.C(), testutil.DefaultTimeout)
}
