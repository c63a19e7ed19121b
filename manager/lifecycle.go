package manager

import (
	"context"
	"fmt"

	"github.com/swarmdeck/swarmdeck/core"
)

// Spawn registers one worker per task and delegates execution to the
// executor. Workers are registered (in session, worker index, inbox and
// status stream) before the executor sees them, so every event the executor
// emits resolves to a known worker. Returned workers are snapshots in spawn
// order.
func (m *Manager) Spawn(ctx context.Context, sessionID string, tasks ...string) ([]*core.Worker, error) {
	h, err := m.handle(sessionID)
	if err != nil {
		return nil, err
	}

	spawned := make([]*core.Worker, 0, len(tasks))
	for _, task := range tasks {
		if err := m.limiter.Acquire(); err != nil {
			return spawned, fmt.Errorf("spawn in session %s: %w", sessionID, err)
		}

		h.mu.Lock()
		worker := core.NewWorker(core.NewID(), sessionID, task, h.session.Model)
		h.session.AddWorker(worker)
		h.mu.Unlock()

		m.mu.Lock()
		m.workerIndex[worker.ID] = sessionID
		m.mu.Unlock()

		if err := m.inbox.Register(sessionID, worker.ID); err != nil {
			m.logger.Warn("inbox registration failed", "worker_id", worker.ID, "error", err)
		}
		m.publishStatus(h, worker)
		m.logger.Info("worker spawned", "session_id", sessionID, "worker_id", worker.ID, "task", task)

		if err := m.executor.Spawn(ctx, core.SpawnRequest{
			WorkerID:  worker.ID,
			SessionID: sessionID,
			Task:      task,
			Model:     worker.Model,
		}); err != nil {
			// The worker exists but never started; surface the failure as a
			// worker error event so audit history stays complete.
			if sinkErr := m.OnError(worker.ID, fmt.Sprintf("spawn failed: %v", err)); sinkErr != nil {
				m.logger.Error("failed to record spawn failure", "worker_id", worker.ID, "error", sinkErr)
			}
		}

		h.mu.Lock()
		spawned = append(spawned, h.session.Worker(worker.ID).Clone())
		h.mu.Unlock()
	}
	return spawned, nil
}

// CancelWorker transitions a pending or running worker to cancelled and
// signals the executor to terminate the underlying process. The signal is
// fire-and-forget: local state flips immediately and the call reports success
// without waiting for process teardown. Cancelling an already-terminal worker
// is an idempotent no-op success.
func (m *Manager) CancelWorker(workerID string) error {
	h, err := m.handleForWorker(workerID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	worker := h.session.Worker(workerID)
	changed := worker.Cancel()
	h.mu.Unlock()

	if !changed {
		return nil
	}

	m.limiter.Release()
	m.publishStatus(h, worker)
	m.logger.Info("worker cancelled", "session_id", worker.SessionID, "worker_id", workerID)

	go func() {
		if err := m.executor.Terminate(workerID); err != nil {
			m.logger.Warn("terminate signal failed", "worker_id", workerID, "error", err)
		}
	}()
	return nil
}

// RetryWorker resets a failed worker to pending and re-delegates its task to
// the executor. Historical token and cost counters carry over as a floor; the
// worker keeps its id and files-touched history. Retrying a worker in any
// other state fails with ErrInvalidState.
func (m *Manager) RetryWorker(ctx context.Context, workerID string) (*core.Worker, error) {
	h, err := m.handleForWorker(workerID)
	if err != nil {
		return nil, err
	}

	if err := m.limiter.Acquire(); err != nil {
		return nil, fmt.Errorf("retry worker %s: %w", workerID, err)
	}

	h.mu.Lock()
	worker := h.session.Worker(workerID)
	if retryErr := worker.Retry(); retryErr != nil {
		h.mu.Unlock()
		m.limiter.Release()
		return nil, retryErr
	}
	req := core.SpawnRequest{
		WorkerID:  worker.ID,
		SessionID: worker.SessionID,
		Task:      worker.Task,
		Model:     worker.Model,
	}
	h.mu.Unlock()

	m.broker.ResetWorker(workerID)
	m.publishStatus(h, worker)
	m.logger.Info("worker retried", "session_id", worker.SessionID, "worker_id", workerID)

	if err := m.executor.Spawn(ctx, req); err != nil {
		if sinkErr := m.OnError(workerID, fmt.Sprintf("respawn failed: %v", err)); sinkErr != nil {
			m.logger.Error("failed to record respawn failure", "worker_id", workerID, "error", sinkErr)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Worker(workerID).Clone(), nil
}

// publishStatus emits a best-effort status change for the worker's current
// state. Callers must not hold the session lock; the snapshot race is benign
// because consumers can always poll.
func (m *Manager) publishStatus(h *sessionHandle, worker *core.Worker) {
	h.mu.Lock()
	change := core.StatusChange{
		SessionID: worker.SessionID,
		WorkerID:  worker.ID,
		Status:    worker.Status,
		CostUSD:   worker.CostUSD,
		Error:     worker.ErrorMessage,
		Timestamp: worker.Updated,
	}
	h.mu.Unlock()
	m.broker.PublishStatus(change)
}

// noopExecutor accepts every spawn and terminate without running anything.
// Workers stay pending until events arrive through the sink, which is exactly
// what tests and event-replaying callers want.
type noopExecutor struct{}

func (noopExecutor) Spawn(context.Context, core.SpawnRequest) error { return nil }
func (noopExecutor) Terminate(string) error                         { return nil }
