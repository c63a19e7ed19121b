package executor

import (
	"context"
	"sync"

	"github.com/swarmdeck/swarmdeck/core"
)

// Script drives a mocked worker: it receives the spawn request and the sink
// and emits whatever delta/complete/error sequence the test needs. Scripts
// run synchronously inside Spawn, so tests stay deterministic.
type Script func(ctx context.Context, req core.SpawnRequest, sink core.EventSink)

// Mock is an in-memory Executor that records every spawn and terminate call
// and optionally replays a Script per spawned worker.
type Mock struct {
	mu         sync.Mutex
	sink       core.EventSink
	script     Script
	spawned    []core.SpawnRequest
	terminated []string
}

// NewMock creates a Mock replaying the given script per spawn. A nil script
// leaves spawned workers pending. Hand Mock.Bind to the manager as its
// executor factory; the test keeps the Mock for assertions.
func NewMock(script Script) *Mock {
	return &Mock{script: script}
}

// Bind attaches the manager's sink and returns the mock as a core.Executor.
// Its signature matches the manager's executor factory.
func (m *Mock) Bind(sink core.EventSink) core.Executor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = sink
	return m
}

// Spawn records the request and replays the script, if any.
func (m *Mock) Spawn(ctx context.Context, req core.SpawnRequest) error {
	m.mu.Lock()
	m.spawned = append(m.spawned, req)
	script := m.script
	m.mu.Unlock()

	if script != nil {
		script(ctx, req, m.sink)
	}
	return nil
}

// Terminate records the termination request.
func (m *Mock) Terminate(workerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminated = append(m.terminated, workerID)
	return nil
}

// Spawned returns the spawn requests seen so far.
func (m *Mock) Spawned() []core.SpawnRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.SpawnRequest, len(m.spawned))
	copy(out, m.spawned)
	return out
}

// Terminated returns the worker ids terminate was called for.
func (m *Mock) Terminated() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.terminated))
	copy(out, m.terminated)
	return out
}

var _ core.Executor = (*Mock)(nil)
