package textfield

import (
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reactor/internal/reactor"
	"github.com/roach88/reactor/internal/testutil"
)

func newField(t *testing.T, initial State) *Reactor {
	t.Helper()
	r := New(initial, reactor.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(r.Destroy)
	return r
}

func TestTextfield_HundredKeystrokes(t *testing.T) {
	r := newField(t, State{})

	sub := r.SubscribeState()
	defer sub.Close()

	for i := 0; i < 100; i++ {
		r.Send(SetText(strconv.Itoa(i)))
	}

	got := testutil.ReceiveN(t, sub.C(), 101, 5*time.Second)
	assert.Equal(t, "", got[0].Text)
	for i := 0; i < 100; i++ {
		assert.Equal(t, strconv.Itoa(i), got[i+1].Text)
	}
	testutil.RequireSilent(t, sub.C(), 50*time.Millisecond)
	assert.Equal(t, "99", r.CurrentState().Text)
}

func TestTextfield_SetTextNormalizesNFC(t *testing.T) {
	r := newField(t, State{})

	// "e" followed by a combining acute accent.
	r.Send(SetText("cafe\u0301"))

	require.Eventually(t, func() bool {
		return r.CurrentState().Text == "caf\u00e9"
	}, testutil.DefaultTimeout, time.Millisecond)
}

func TestTextfield_Clear(t *testing.T) {
	r := newField(t, State{Text: "draft"})

	r.Send(Action{Kind: KindClear})

	require.Eventually(t, func() bool {
		return r.CurrentState().Text == ""
	}, testutil.DefaultTimeout, time.Millisecond)
	assert.Equal(t, int64(1), r.Snapshot().Seq)
}

func TestTextfield_SubmitEmptyRaisesExpected(t *testing.T) {
	r := newField(t, State{})

	errs := r.SubscribeErrors()
	defer errs.Close()

	r.Send(Submit(0))

	err := testutil.Receive(t, errs.C(), testutil.DefaultTimeout)
	assert.True(t, reactor.IsExpected(err))
	assert.ErrorIs(t, err, ErrEmptyText)
	testutil.RequireSilent(t, errs.C(), 50*time.Millisecond)
	assert.Equal(t, State{}, r.CurrentState())
}

func TestTextfield_SubmitPublishesAndCommits(t *testing.T) {
	r := newField(t, State{Text: "hello"})

	states := r.SubscribeState()
	defer states.Close()
	events := r.SubscribeEvents()
	defer events.Close()

	r.Send(Submit(10))

	got := testutil.ReceiveN(t, states.C(), 3, testutil.DefaultTimeout)
	assert.Equal(t, []State{
		{Text: "hello"},
		{Text: "hello", Submitting: true},
		{Text: "hello", Submissions: 1},
	}, got)

	ev := testutil.Receive(t, events.C(), testutil.DefaultTimeout)
	assert.Equal(t, &Event{Kind: EventSubmitted, Text: "hello"}, ev)
}

func TestTextfield_TypingDuringSlowSubmit(t *testing.T) {
	r := newField(t, State{Text: "first"})

	r.Send(Submit(10_000))
	require.Eventually(t, func() bool {
		return r.CurrentState().Submitting
	}, testutil.DefaultTimeout, time.Millisecond)

	r.Send(SetText("second"))
	require.Eventually(t, func() bool {
		return r.CurrentState().Text == "second"
	}, testutil.DefaultTimeout, time.Millisecond)
	assert.True(t, r.CurrentState().Submitting)
}

func TestTextfield_FailAndCrash(t *testing.T) {
	r := newField(t, State{})

	errs := r.SubscribeErrors()
	defer errs.Close()

	r.Send(Action{Kind: KindFail, Text: "invalid email"})
	err := testutil.Receive(t, errs.C(), testutil.DefaultTimeout)
	assert.True(t, reactor.IsExpected(err))
	assert.ErrorIs(t, err, ErrRejected)
	assert.EqualError(t, err, "rejected: invalid email")

	r.Send(Action{Kind: KindCrash})
	err = testutil.Receive(t, errs.C(), testutil.DefaultTimeout)
	assert.False(t, reactor.IsExpected(err))
	assert.ErrorIs(t, err, ErrCrashed)
	assert.EqualError(t, err, "crashed: no reason given")
}

func TestTextfield_DestroyCancelsWait(t *testing.T) {
	r := newField(t, State{})

	errs := r.SubscribeErrors()

	r.Send(Action{Kind: KindWait})
	require.Eventually(t, func() bool {
		return r.Stats().Dispatched == 1
	}, testutil.DefaultTimeout, time.Millisecond)

	r.Destroy()
	testutil.RequireDone(t, r.Done(), testutil.DefaultTimeout)

	_, ok := <-errs.C()
	assert.False(t, ok, "cancellation must not reach the error stream")
}

func TestReduce(t *testing.T) {
	tests := []struct {
		name string
		in   State
		m    Mutation
		want State
	}{
		{"set text", State{Text: "a"}, Mutation{kind: mutSetText, text: "ab"}, State{Text: "ab"}},
		{"clear", State{Text: "a"}, Mutation{kind: mutSetText}, State{}},
		{"submitting", State{Text: "a"}, Mutation{kind: mutSubmitting}, State{Text: "a", Submitting: true}},
		{"submitted", State{Text: "a", Submitting: true, Submissions: 2}, Mutation{kind: mutSubmitted}, State{Text: "a", Submissions: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reduce(tt.in, tt.m))
		})
	}
}

func TestAction_Validate(t *testing.T) {
	for _, k := range Kinds {
		assert.NoError(t, Action{Kind: k}.Validate(), k)
	}

	err := Action{Kind: "paste"}.Validate()
	assert.True(t, errors.Is(err, ErrUnknownKind))

	assert.Error(t, Action{Kind: KindSubmit, DelayMS: -1}.Validate())
}

func TestLane(t *testing.T) {
	assert.Equal(t, InputLane, Lane(SetText("x")))
	assert.Equal(t, InputLane, Lane(Action{Kind: KindClear}))
	assert.Equal(t, "", Lane(Submit(0)))
	assert.Equal(t, "", Lane(Action{Kind: KindWait}))
}

func TestActionKind(t *testing.T) {
	assert.Equal(t, "set_text", ActionKind(SetText("x")))
	assert.Equal(t, "submit", ActionKind(Submit(0)))
	assert.Equal(t, "wait", ActionKind(Action{Kind: KindWait}))
}
