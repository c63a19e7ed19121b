// Package dispatch implements the event fan-out between the session manager
// and its subscribers: one ordered broadcast stream per worker carrying
// delta/complete/error events, and one best-effort stream per session
// carrying worker status changes. Both are owned by the manager; consumers
// hold opaque subscriptions whose Close guarantees no further delivery.
package dispatch

import (
	"sync"

	"github.com/swarmdeck/swarmdeck/core"
)

const (
	defaultWorkerBuffer = 256
	defaultStatusBuffer = 64
)

// Options tunes the broker's channel buffering.
type Options struct {
	// WorkerBuffer is the per-subscriber buffer of a worker event stream.
	WorkerBuffer int
	// StatusBuffer is the per-subscriber buffer of a session status stream.
	StatusBuffer int
}

// Broker routes worker events and session status changes to any number of
// subscribers. Delivery is per-stream ordered and non-blocking: a subscriber
// that stops draining loses events rather than stalling emitters, and must
// resync from session snapshots (nothing is exclusively available on the
// stream).
type Broker struct {
	mu       sync.Mutex
	opts     Options
	workers  map[string]*topic[core.WorkerEvent]
	sessions map[string]*topic[core.StatusChange]
	finished map[string]bool
}

// NewBroker creates a broker with optional buffer overrides.
func NewBroker(optFns ...func(o *Options)) *Broker {
	opts := Options{WorkerBuffer: defaultWorkerBuffer, StatusBuffer: defaultStatusBuffer}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Broker{
		opts:     opts,
		workers:  map[string]*topic[core.WorkerEvent]{},
		sessions: map[string]*topic[core.StatusChange]{},
		finished: map[string]bool{},
	}
}

// SubscribeWorker attaches to a worker's ordered event stream. Subscribing to
// a worker whose stream already terminated yields an immediately-closed
// channel. The subscription does not affect other subscribers or the worker.
func (b *Broker) SubscribeWorker(workerID string) *Subscription[core.WorkerEvent] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finished[workerID] {
		return closedSubscription[core.WorkerEvent]()
	}
	t, ok := b.workers[workerID]
	if !ok {
		t = newTopic[core.WorkerEvent]()
		b.workers[workerID] = t
	}
	return t.subscribe(b.opts.WorkerBuffer)
}

// SubscribeSession attaches to a session's status-change stream.
func (b *Broker) SubscribeSession(sessionID string) *Subscription[core.StatusChange] {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.sessions[sessionID]
	if !ok {
		t = newTopic[core.StatusChange]()
		b.sessions[sessionID] = t
	}
	return t.subscribe(b.opts.StatusBuffer)
}

// PublishWorker delivers an event on its worker's stream. A terminal event
// (complete or error) closes the stream; anything published afterwards is
// dropped, honoring the at-most-one-terminal contract.
func (b *Broker) PublishWorker(ev core.WorkerEvent) {
	b.mu.Lock()
	if b.finished[ev.WorkerID] {
		b.mu.Unlock()
		return
	}
	t, ok := b.workers[ev.WorkerID]
	terminal := ev.Kind.Terminal()
	if terminal {
		b.finished[ev.WorkerID] = true
		delete(b.workers, ev.WorkerID)
	}
	b.mu.Unlock()

	if !ok {
		return
	}
	t.publish(ev)
	if terminal {
		t.closeAll()
	}
}

// PublishStatus delivers a status change on its session's stream,
// best-effort.
func (b *Broker) PublishStatus(change core.StatusChange) {
	b.mu.Lock()
	t, ok := b.sessions[change.SessionID]
	b.mu.Unlock()

	if ok {
		t.publish(change)
	}
}

// ResetWorker reopens a worker's stream after a retry so the next attempt's
// events reach new subscribers. Existing subscriptions from the failed
// attempt stay closed.
func (b *Broker) ResetWorker(workerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.finished, workerID)
}

// Subscription is an opaque handle on one stream. Receive from C; Close
// detaches the subscriber, closes C, and guarantees no further delivery.
// Close is idempotent and never disturbs other subscribers.
type Subscription[T any] struct {
	C      <-chan T
	cancel func()
	once   sync.Once
}

// Close detaches the subscription.
func (s *Subscription[T]) Close() {
	s.once.Do(s.cancel)
}

func closedSubscription[T any]() *Subscription[T] {
	ch := make(chan T)
	close(ch)
	return &Subscription[T]{C: ch, cancel: func() {}}
}

// topic is one broadcast stream. publish and unsubscribe share a mutex, so
// after Close returns no send can still be in flight for that subscriber.
type topic[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
	closed bool
}

func newTopic[T any]() *topic[T] {
	return &topic[T]{subs: map[int]chan T{}}
}

func (t *topic[T]) subscribe(buf int) *Subscription[T] {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		// Racing with a terminal event; behave as if attached just after it.
		ch := make(chan T)
		close(ch)
		return &Subscription[T]{C: ch, cancel: func() {}}
	}
	id := t.nextID
	t.nextID++
	ch := make(chan T, buf)
	t.subs[id] = ch

	return &Subscription[T]{
		C: ch,
		cancel: func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if c, ok := t.subs[id]; ok {
				delete(t.subs, id)
				close(c)
			}
		},
	}
}

// publish delivers v to every subscriber without blocking: a full buffer
// drops the event for that subscriber only.
func (t *topic[T]) publish(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ch := range t.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// closeAll terminates the stream for every remaining subscriber.
func (t *topic[T]) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
}
