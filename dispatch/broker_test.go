package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swarmdeck/swarmdeck/core"
)

func collect[T any](t *testing.T, sub *Subscription[T], n int) []T {
	t.Helper()
	out := make([]T, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case v, ok := <-sub.C:
			if !ok {
				return out
			}
			out = append(out, v)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(out), n)
		}
	}
	return out
}

func TestBroker_WorkerStreamOrdering(t *testing.T) {
	b := NewBroker()
	sub := b.SubscribeWorker("w1")
	defer sub.Close()

	for _, text := range []string{"a", "b", "c"} {
		b.PublishWorker(core.NewDeltaEvent("s1", "w1", text))
	}

	events := collect(t, sub, 3)
	require.Equal(t, "a", events[0].Delta)
	require.Equal(t, "b", events[1].Delta)
	require.Equal(t, "c", events[2].Delta)
}

func TestBroker_TerminalEventClosesStream(t *testing.T) {
	b := NewBroker()
	sub := b.SubscribeWorker("w1")

	b.PublishWorker(core.NewDeltaEvent("s1", "w1", "partial"))
	b.PublishWorker(core.NewCompleteEvent("s1", "w1", "done", core.Usage{InputTokens: 1}, nil))
	// Anything after the terminal event is dropped.
	b.PublishWorker(core.NewDeltaEvent("s1", "w1", "late"))

	events := collect(t, sub, 2)
	require.Equal(t, core.EventDelta, events[0].Kind)
	require.Equal(t, core.EventComplete, events[1].Kind)

	_, ok := <-sub.C
	require.False(t, ok, "stream should be closed after the terminal event")

	// A late subscriber sees an already-terminated stream.
	late := b.SubscribeWorker("w1")
	_, ok = <-late.C
	require.False(t, ok)
}

func TestBroker_UnsubscribeIsolation(t *testing.T) {
	b := NewBroker()
	sub1 := b.SubscribeWorker("w1")
	sub2 := b.SubscribeWorker("w1")

	sub1.Close()
	sub1.Close() // idempotent

	b.PublishWorker(core.NewDeltaEvent("s1", "w1", "x"))

	events := collect(t, sub2, 1)
	require.Equal(t, "x", events[0].Delta)

	_, ok := <-sub1.C
	require.False(t, ok, "closed subscription receives nothing further")
	sub2.Close()
}

func TestBroker_WorkerStreamsAreIndependent(t *testing.T) {
	b := NewBroker()
	sub1 := b.SubscribeWorker("w1")
	sub2 := b.SubscribeWorker("w2")
	defer sub1.Close()
	defer sub2.Close()

	b.PublishWorker(core.NewDeltaEvent("s1", "w1", "for w1"))
	b.PublishWorker(core.NewErrorEvent("s1", "w2", "boom"))

	ev1 := collect(t, sub1, 1)
	require.Equal(t, "for w1", ev1[0].Delta)

	ev2 := collect(t, sub2, 1)
	require.Equal(t, core.EventError, ev2[0].Kind)
	require.Equal(t, "boom", ev2[0].ErrorMessage)
}

func TestBroker_SessionStatusStream(t *testing.T) {
	b := NewBroker()
	sub := b.SubscribeSession("s1")
	defer sub.Close()

	b.PublishStatus(core.StatusChange{SessionID: "s1", WorkerID: "w1", Status: core.WorkerRunning})
	b.PublishStatus(core.StatusChange{SessionID: "s2", WorkerID: "w9", Status: core.WorkerFailed})
	b.PublishStatus(core.StatusChange{SessionID: "s1", WorkerID: "w1", Status: core.WorkerCompleted, CostUSD: 0.5})

	changes := collect(t, sub, 2)
	require.Equal(t, core.WorkerRunning, changes[0].Status)
	require.Equal(t, core.WorkerCompleted, changes[1].Status)
	require.Equal(t, 0.5, changes[1].CostUSD)
}

func TestBroker_ResetWorkerReopensStream(t *testing.T) {
	b := NewBroker()
	b.PublishWorker(core.NewErrorEvent("s1", "w1", "transient"))

	b.ResetWorker("w1")
	sub := b.SubscribeWorker("w1")
	defer sub.Close()

	b.PublishWorker(core.NewDeltaEvent("s1", "w1", "second attempt"))
	events := collect(t, sub, 1)
	require.Equal(t, "second attempt", events[0].Delta)
}

func TestBroker_SlowSubscriberDoesNotBlockEmitter(t *testing.T) {
	b := NewBroker(func(o *Options) { o.WorkerBuffer = 1 })
	sub := b.SubscribeWorker("w1")
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			b.PublishWorker(core.NewDeltaEvent("s1", "w1", "x"))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
}
