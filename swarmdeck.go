// Package swarmdeck provides a high-level façade over the session manager and
// its collaborators (inbox store, event broker, pricing & logging) for
// orchestrating fleets of model-backed workers. Most applications interact
// with this package by:
//  1. Creating a Deck via New() (optionally overriding default in-memory services)
//  2. Creating a session and spawning workers for its tasks
//  3. Consuming worker output asynchronously (SubscribeWorker) or synchronously (RunSync)
//
// The façade delegates orchestration to manager.Manager while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply a vendor executor
// factory and a structured logger.
package swarmdeck

import (
	"context"

	"github.com/swarmdeck/swarmdeck/conflict"
	"github.com/swarmdeck/swarmdeck/core"
	"github.com/swarmdeck/swarmdeck/dispatch"
	"github.com/swarmdeck/swarmdeck/inbox"
	"github.com/swarmdeck/swarmdeck/logging"
	"github.com/swarmdeck/swarmdeck/manager"
	"github.com/swarmdeck/swarmdeck/pricing"
)

// Options configures the Deck instance.
type Options struct {
	// MaxConcurrentWorkers limits the number of workers that can execute
	// simultaneously across all sessions. This prevents resource exhaustion
	// and provides backpressure. Set to 0 for unlimited (not recommended).
	MaxConcurrentWorkers int

	// DefaultModel is the tier used when a session is created without a
	// model label.
	DefaultModel core.Model

	// Executor builds the execution backend with the deck's event sink.
	// Defaults to a no-op executor under which workers stay pending until
	// events are injected, which is what tests want.
	Executor manager.ExecutorFactory

	// Stores (defaults to in-memory implementations if not provided)
	Inbox  core.InboxStore
	Broker *dispatch.Broker

	// Cost prices a worker attempt. Defaults to the built-in table.
	Cost core.CostFunc

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Deck is the high-level façade aggregating the session manager and its
// services.
type Deck struct {
	opts    Options
	manager *manager.Manager
}

// New creates a new Deck with optional overrides. Any unset service is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Deck {
	opts := Options{
		DefaultModel: core.ModelSonnet,
		Inbox:        inbox.NewInMemoryStore(),
		Broker:       dispatch.NewBroker(),
		Cost:         pricing.DefaultTable().Cost,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	m := manager.New(func(o *manager.Options) {
		o.Inbox = opts.Inbox
		o.Broker = opts.Broker
		o.Executor = opts.Executor
		o.Cost = opts.Cost
		o.MaxConcurrentWorkers = opts.MaxConcurrentWorkers
		o.DefaultModel = opts.DefaultModel
		o.Logger = opts.Logger
	})

	return &Deck{opts: opts, manager: m}
}

// Manager exposes the underlying session manager for advanced wiring.
func (d *Deck) Manager() *manager.Manager { return d.manager }

// CreateSession allocates a new session for the prompt. The model label is
// free text ("opus", "claude-3-5-sonnet-latest", ...) and normalizes to a
// tier; empty means the configured default.
func (d *Deck) CreateSession(prompt, modelLabel string) *core.Session {
	return d.manager.Create(prompt, modelLabel)
}

// Session returns a point-in-time snapshot of the session.
func (d *Deck) Session(sessionID string) (*core.Session, error) {
	return d.manager.Get(sessionID)
}

// Sessions returns snapshots of all sessions ordered by creation time.
func (d *Deck) Sessions() []*core.Session { return d.manager.List() }

// Spawn starts one worker per task inside the session.
func (d *Deck) Spawn(ctx context.Context, sessionID string, tasks ...string) ([]*core.Worker, error) {
	return d.manager.Spawn(ctx, sessionID, tasks...)
}

// CancelWorker requests termination of a worker. Terminal workers are a
// no-op success.
func (d *Deck) CancelWorker(workerID string) error {
	return d.manager.CancelWorker(workerID)
}

// RetryWorker re-runs a failed worker under the same id, carrying its
// historical token and cost counters forward.
func (d *Deck) RetryWorker(ctx context.Context, workerID string) (*core.Worker, error) {
	return d.manager.RetryWorker(ctx, workerID)
}

// Conflicts reports files touched by more than one worker of the session.
func (d *Deck) Conflicts(sessionID string) ([]conflict.FileConflict, error) {
	return d.manager.Conflicts(sessionID)
}

// Cost returns the session's accumulated cost in USD.
func (d *Deck) Cost(sessionID string) (float64, error) {
	return d.manager.Cost(sessionID)
}

// Inbox exposes the message store for direct participant messaging.
func (d *Deck) Inbox() core.InboxStore { return d.manager.Inbox() }

// SubscribeWorker attaches to a worker's ordered output stream. The channel
// closes after the terminal event.
func (d *Deck) SubscribeWorker(workerID string) *dispatch.Subscription[core.WorkerEvent] {
	return d.manager.SubscribeWorker(workerID)
}

// SubscribeSession attaches to a session's status-change stream.
func (d *Deck) SubscribeSession(sessionID string) *dispatch.Subscription[core.StatusChange] {
	return d.manager.SubscribeSession(sessionID)
}

// ProposePlan records a plan draft on the session and notifies the user.
func (d *Deck) ProposePlan(sessionID, plan string) (*core.Message, error) {
	return d.manager.ProposePlan(sessionID, plan)
}

// ApprovePlan broadcasts approval of the session's pending plan to all
// workers.
func (d *Deck) ApprovePlan(sessionID string) error {
	return d.manager.ApprovePlan(sessionID)
}

// RejectPlan clears the pending plan and broadcasts the feedback.
func (d *Deck) RejectPlan(sessionID, feedback string) error {
	return d.manager.RejectPlan(sessionID, feedback)
}

// RunSync is a synchronous helper: it subscribes to the worker stream before
// spawning a single task, then drains events until the worker reaches a
// terminal state. It returns the final worker snapshot alongside the ordered
// events.
func (d *Deck) RunSync(ctx context.Context, sessionID, task string) (*core.Worker, []core.WorkerEvent, error) {
	// Spawn assigns the worker id, so subscribe after registration but
	// before any output: Spawn guarantees registration precedes the first
	// executor event only for sinks, hence the buffered broker stream is
	// attached immediately after Spawn returns the id. Events emitted in
	// between are replayed from worker state below.
	workers, err := d.manager.Spawn(ctx, sessionID, task)
	if err != nil {
		return nil, nil, err
	}
	worker := workers[0]

	sub := d.manager.SubscribeWorker(worker.ID)
	defer sub.Close()

	// The executor may already have finished synchronously; in that case the
	// subscription channel was created closed and the snapshot is final.
	var events []core.WorkerEvent
	for {
		snapshot, err := d.workerSnapshot(sessionID, worker.ID)
		if err != nil {
			return nil, events, err
		}
		if snapshot.Status.Terminal() {
			return snapshot, events, nil
		}

		select {
		case <-ctx.Done():
			return snapshot, events, ctx.Err()
		case event, ok := <-sub.C:
			if !ok {
				final, err := d.workerSnapshot(sessionID, worker.ID)
				return final, events, err
			}
			events = append(events, event)
		}
	}
}

func (d *Deck) workerSnapshot(sessionID, workerID string) (*core.Worker, error) {
	session, err := d.manager.Get(sessionID)
	if err != nil {
		return nil, err
	}
	w := session.Worker(workerID)
	if w == nil {
		return nil, core.ErrNotFound
	}
	return w, nil
}
