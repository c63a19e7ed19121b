package core

import (
	"fmt"
	"time"
)

// WorkerStatus is the lifecycle state of a single worker attempt.
//
// Transitions: pending → running → {completed, failed, cancelled}.
// failed → pending is permitted via Retry; completed and cancelled are
// absorbing.
type WorkerStatus string

const (
	// WorkerPending means the worker is registered but has produced no output yet.
	WorkerPending WorkerStatus = "pending"
	// WorkerRunning means the worker has started streaming output.
	WorkerRunning WorkerStatus = "running"
	// WorkerCompleted means the worker finished successfully.
	WorkerCompleted WorkerStatus = "completed"
	// WorkerFailed means the underlying process reported an error.
	WorkerFailed WorkerStatus = "failed"
	// WorkerCancelled means the worker was cancelled before completion.
	WorkerCancelled WorkerStatus = "cancelled"
)

// Terminal reports whether the status admits no further events.
func (s WorkerStatus) Terminal() bool {
	return s == WorkerCompleted || s == WorkerFailed || s == WorkerCancelled
}

// Usage captures token consumption reported by a completed worker attempt.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Worker is one concurrently-executing agent attempt at a sub-task within a
// session. Workers are never deleted; terminal states are retained for audit
// and cost history. A worker is owned exclusively by its parent session and
// all mutation happens under that session's lock (see the manager package),
// so Worker itself carries no mutex.
type Worker struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"session_id"`
	Task         string          `json:"task"`
	Status       WorkerStatus    `json:"status"`
	Model        Model           `json:"model"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	CostUSD      float64         `json:"cost_usd"`
	OutputBuffer string          `json:"output_buffer"`
	FilesTouched map[string]bool `json:"files_touched"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Created      time.Time       `json:"created"`
	Updated      time.Time       `json:"updated"`
}

// NewWorker creates a pending worker with zero counters, an empty output
// buffer and an empty file set.
func NewWorker(id, sessionID, task string, model Model) *Worker {
	now := time.Now().UTC()
	return &Worker{
		ID:           id,
		SessionID:    sessionID,
		Task:         task,
		Status:       WorkerPending,
		Model:        model,
		FilesTouched: map[string]bool{},
		Created:      now,
		Updated:      now,
	}
}

// ApplyDelta appends a streamed output fragment to the buffer. The first
// delta moves a pending worker to running; deltas after a terminal state are
// rejected.
func (w *Worker) ApplyDelta(text string) error {
	if w.Status.Terminal() {
		return fmt.Errorf("delta on %s worker %s: %w", w.Status, w.ID, ErrInvalidState)
	}
	if w.Status == WorkerPending {
		w.Status = WorkerRunning
	}
	w.OutputBuffer += text
	w.Updated = time.Now().UTC()
	return nil
}

// Complete finalizes the worker: the buffer is replaced by the full output,
// usage counters and cost are added on top of any prior attempt's floor
// (retries accumulate, they never reset), and the status becomes completed.
func (w *Worker) Complete(output string, usage Usage, costUSD float64) error {
	if w.Status.Terminal() {
		return fmt.Errorf("complete on %s worker %s: %w", w.Status, w.ID, ErrInvalidState)
	}
	w.Status = WorkerCompleted
	w.OutputBuffer = output
	w.InputTokens += usage.InputTokens
	w.OutputTokens += usage.OutputTokens
	w.CostUSD += costUSD
	w.Updated = time.Now().UTC()
	return nil
}

// Fail marks the worker failed with the given message. Accumulated counters
// are deliberately retained.
func (w *Worker) Fail(message string) error {
	if w.Status.Terminal() {
		return fmt.Errorf("error on %s worker %s: %w", w.Status, w.ID, ErrInvalidState)
	}
	w.Status = WorkerFailed
	w.ErrorMessage = message
	w.Updated = time.Now().UTC()
	return nil
}

// Cancel transitions a pending or running worker to cancelled and reports
// whether anything changed. Cancelling an already-terminal worker is an
// idempotent no-op, not an error.
func (w *Worker) Cancel() bool {
	if w.Status != WorkerPending && w.Status != WorkerRunning {
		return false
	}
	w.Status = WorkerCancelled
	w.Updated = time.Now().UTC()
	return true
}

// Retry resets a failed worker to pending for a fresh attempt. The error
// message and output buffer are cleared; token and cost counters carry over
// as a floor so session totals stay monotonic. The worker keeps its ID and
// files-touched history.
func (w *Worker) Retry() error {
	if w.Status != WorkerFailed {
		return fmt.Errorf("retry on %s worker %s: %w", w.Status, w.ID, ErrInvalidState)
	}
	w.Status = WorkerPending
	w.ErrorMessage = ""
	w.OutputBuffer = ""
	w.Updated = time.Now().UTC()
	return nil
}

// TouchFiles records file paths edited by this worker. Duplicates collapse;
// insertion order is irrelevant.
func (w *Worker) TouchFiles(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		w.FilesTouched[p] = true
	}
	if len(paths) > 0 {
		w.Updated = time.Now().UTC()
	}
}

// Files returns the touched file paths as a slice. Ordering is unspecified.
func (w *Worker) Files() []string {
	files := make([]string, 0, len(w.FilesTouched))
	for p := range w.FilesTouched {
		files = append(files, p)
	}
	return files
}

// Clone returns a deep copy safe for handing to readers outside the session
// lock.
func (w *Worker) Clone() *Worker {
	clone := *w
	clone.FilesTouched = make(map[string]bool, len(w.FilesTouched))
	for p := range w.FilesTouched {
		clone.FilesTouched[p] = true
	}
	return &clone
}
