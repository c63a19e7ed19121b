// Package manager implements the orchestrator session manager: it owns the
// sessions, composes the inbox store, event broker, pricing function and
// executor, and exposes the control API (create/get/list/spawn/cancel/retry/
// conflicts/cost).
//
// Concurrency model: workers execute concurrently and independently, but all
// mutation of one session's state, worker transitions and the aggregate
// token/cost totals included, is serialized by that session's mutex. Cross-session
// operations share no lock. The manager itself is the core.EventSink handed
// to executors.
package manager

import (
	"fmt"
	"sort"
	"sync"

	"github.com/swarmdeck/swarmdeck/conflict"
	"github.com/swarmdeck/swarmdeck/core"
	"github.com/swarmdeck/swarmdeck/dispatch"
	"github.com/swarmdeck/swarmdeck/inbox"
	"github.com/swarmdeck/swarmdeck/logging"
	"github.com/swarmdeck/swarmdeck/pricing"
)

// ExecutorFactory builds the executor with the manager as its event sink.
// The indirection exists because the executor needs the sink at construction
// time while the manager needs the executor; a factory breaks the cycle.
type ExecutorFactory func(sink core.EventSink) core.Executor

// Options configures a Manager. Every unset service falls back to an
// in-memory or no-op default safe for local development and tests.
type Options struct {
	// Inbox stores per-(session, participant) mailboxes.
	Inbox core.InboxStore

	// Broker fans out worker events and session status changes.
	Broker *dispatch.Broker

	// Executor builds the execution collaborator. Defaults to a no-op
	// executor under which spawned workers stay pending until events are
	// injected through the sink (what tests do).
	Executor ExecutorFactory

	// Cost prices a worker attempt. Defaults to the built-in pricing table.
	Cost core.CostFunc

	// MaxConcurrentWorkers caps in-flight workers across sessions.
	// 0 means unlimited.
	MaxConcurrentWorkers int

	// DefaultModel is used when Create receives an empty model label.
	DefaultModel core.Model

	// Logger receives structured diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Manager owns orchestrator sessions and routes everything between the
// executor, the inbox and the event streams.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*sessionHandle
	workerIndex map[string]string // worker id -> session id

	inbox        core.InboxStore
	broker       *dispatch.Broker
	executor     core.Executor
	cost         core.CostFunc
	limiter      *core.WorkerLimiter
	defaultModel core.Model
	logger       logging.Logger
}

// sessionHandle pairs a session with its mutation lock.
type sessionHandle struct {
	mu      sync.Mutex
	session *core.Session
}

// New creates a Manager with optional overrides.
func New(optFns ...func(o *Options)) *Manager {
	opts := Options{
		Inbox:        inbox.NewInMemoryStore(),
		Broker:       dispatch.NewBroker(),
		Cost:         pricing.DefaultTable().Cost,
		DefaultModel: core.ModelSonnet,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	m := &Manager{
		sessions:     make(map[string]*sessionHandle),
		workerIndex:  make(map[string]string),
		inbox:        opts.Inbox,
		broker:       opts.Broker,
		cost:         opts.Cost,
		limiter:      core.NewWorkerLimiter(opts.MaxConcurrentWorkers),
		defaultModel: opts.DefaultModel,
		logger:       opts.Logger,
	}
	if opts.Executor != nil {
		m.executor = opts.Executor(m)
	} else {
		m.executor = noopExecutor{}
	}
	return m
}

// Create allocates a new pending session with an empty worker list. The model
// label is normalized immediately (unknown labels fall back to the default
// tier).
func (m *Manager) Create(prompt, modelLabel string) *core.Session {
	if modelLabel == "" {
		modelLabel = string(m.defaultModel)
	}
	session := core.NewSession(core.NewID(), prompt, modelLabel)

	m.mu.Lock()
	m.sessions[session.ID] = &sessionHandle{session: session}
	m.mu.Unlock()

	m.logger.Info("session created", "session_id", session.ID, "model", string(session.Model))
	return session.Clone()
}

// Get returns a snapshot of the session reflecting all worker mutations so
// far. Snapshots are deep copies; callers can never mutate manager state.
func (m *Manager) Get(sessionID string) (*core.Session, error) {
	h, err := m.handle(sessionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Clone(), nil
}

// List returns snapshots of all sessions ordered by creation time.
func (m *Manager) List() []*core.Session {
	m.mu.RLock()
	handles := make([]*sessionHandle, 0, len(m.sessions))
	for _, h := range m.sessions {
		handles = append(handles, h)
	}
	m.mu.RUnlock()

	out := make([]*core.Session, 0, len(handles))
	for _, h := range handles {
		h.mu.Lock()
		out = append(out, h.session.Clone())
		h.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

// Conflicts reports files touched by two or more workers of the session. It
// never fails for a valid session id; a session with no data yields nil.
func (m *Manager) Conflicts(sessionID string) ([]conflict.FileConflict, error) {
	h, err := m.handle(sessionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return conflict.Detect(h.session.Workers), nil
}

// Cost returns the session's aggregated cost in USD.
func (m *Manager) Cost(sessionID string) (float64, error) {
	h, err := m.handle(sessionID)
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.TotalCost, nil
}

// Inbox exposes the message store for direct reads and writes.
func (m *Manager) Inbox() core.InboxStore { return m.inbox }

// SubscribeWorker attaches to a worker's ordered delta/complete/error stream.
func (m *Manager) SubscribeWorker(workerID string) *dispatch.Subscription[core.WorkerEvent] {
	return m.broker.SubscribeWorker(workerID)
}

// SubscribeSession attaches to a session's best-effort status-change stream.
func (m *Manager) SubscribeSession(sessionID string) *dispatch.Subscription[core.StatusChange] {
	return m.broker.SubscribeSession(sessionID)
}

// handle resolves a session id to its handle.
func (m *Manager) handle(sessionID string) (*sessionHandle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, core.ErrNotFound)
	}
	return h, nil
}

// handleForWorker resolves a worker id to its session handle.
func (m *Manager) handleForWorker(workerID string) (*sessionHandle, error) {
	m.mu.RLock()
	sessionID, ok := m.workerIndex[workerID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("worker %s: %w", workerID, core.ErrNotFound)
	}
	return m.handle(sessionID)
}
