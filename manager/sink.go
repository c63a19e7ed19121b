package manager

import (
	"time"

	"github.com/swarmdeck/swarmdeck/core"
)

// The manager is the EventSink executors report into. Each method mutates the
// worker and its session's aggregates under the session lock, re-verifies the
// accounting invariant, and only then publishes on the event streams.
var _ core.EventSink = (*Manager)(nil)

// OnDelta appends a streamed output fragment to the worker's buffer, moving a
// pending worker to running on its first delta.
func (m *Manager) OnDelta(workerID, text string) error {
	h, err := m.handleForWorker(workerID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	worker := h.session.Worker(workerID)
	wasPending := worker.Status == core.WorkerPending
	if err := worker.ApplyDelta(text); err != nil {
		h.mu.Unlock()
		m.logger.Warn("delta rejected", "worker_id", workerID, "error", err)
		return err
	}
	sessionID := worker.SessionID
	h.mu.Unlock()

	if wasPending {
		m.publishStatus(h, worker)
	}
	m.broker.PublishWorker(core.NewDeltaEvent(sessionID, workerID, text))
	return nil
}

// OnComplete finalizes the worker with its full output and usage, prices the
// attempt, rolls the delta into the session totals, and records the files the
// worker touched.
func (m *Manager) OnComplete(workerID, output string, usage core.Usage, filesTouched []string) error {
	h, err := m.handleForWorker(workerID)
	if err != nil {
		return err
	}

	start := time.Now()
	h.mu.Lock()
	worker := h.session.Worker(workerID)
	costUSD := m.cost(worker.Model, usage.InputTokens, usage.OutputTokens)
	if err := worker.Complete(output, usage, costUSD); err != nil {
		h.mu.Unlock()
		m.logger.Warn("complete rejected", "worker_id", workerID, "error", err)
		return err
	}
	worker.TouchFiles(filesTouched...)
	h.session.AddUsage(usage, costUSD)
	invariantErr := h.session.CheckTotals()
	sessionID := worker.SessionID
	totalIn, totalOut, totalCost := h.session.TotalInputTokens, h.session.TotalOutputTokens, h.session.TotalCost
	h.mu.Unlock()

	if invariantErr != nil {
		// Accounting diverged. Fail loudly; never reconcile silently.
		m.logger.Error("aggregate invariant violated", "session_id", sessionID, "error", invariantErr)
		return invariantErr
	}

	m.limiter.Release()
	m.logger.Info("worker completed",
		"session_id", sessionID, "worker_id", workerID,
		"input_tokens", totalIn, "output_tokens", totalOut,
		"total_cost_usd", totalCost, "accounting_took", time.Since(start))

	m.broker.PublishWorker(core.NewCompleteEvent(sessionID, workerID, output, usage, filesTouched))
	m.publishStatus(h, worker)
	return nil
}

// OnError marks the worker failed. Accumulated counters are retained; the
// failure is surfaced as the worker's error event, never thrown to callers of
// create or list.
func (m *Manager) OnError(workerID, message string) error {
	h, err := m.handleForWorker(workerID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	worker := h.session.Worker(workerID)
	if err := worker.Fail(message); err != nil {
		h.mu.Unlock()
		m.logger.Warn("error event rejected", "worker_id", workerID, "error", err)
		return err
	}
	sessionID := worker.SessionID
	h.mu.Unlock()

	m.limiter.Release()
	m.logger.Warn("worker failed", "session_id", sessionID, "worker_id", workerID, "message", message)

	m.broker.PublishWorker(core.NewErrorEvent(sessionID, workerID, message))
	m.publishStatus(h, worker)
	return nil
}
