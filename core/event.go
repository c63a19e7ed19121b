package core

import "time"

// WorkerEventKind discriminates the events a worker emits on its stream.
type WorkerEventKind string

const (
	// EventDelta carries an incremental fragment of streamed output.
	EventDelta WorkerEventKind = "delta"
	// EventComplete finalizes the worker with its full output and usage.
	EventComplete WorkerEventKind = "complete"
	// EventError reports a worker process failure.
	EventError WorkerEventKind = "error"
)

// Terminal reports whether the event kind ends the worker's stream. At most
// one terminal event is delivered per worker stream; nothing follows it.
func (k WorkerEventKind) Terminal() bool { return k == EventComplete || k == EventError }

// WorkerEvent is one entry in a worker's ordered output stream. After
// emission it is immutable. Delta events populate Delta; complete events
// populate Output, Usage and FilesTouched; error events populate
// ErrorMessage.
type WorkerEvent struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"session_id"`
	WorkerID     string          `json:"worker_id"`
	Kind         WorkerEventKind `json:"kind"`
	Delta        string          `json:"delta,omitempty"`
	Output       string          `json:"output,omitempty"`
	Usage        Usage           `json:"usage"`
	FilesTouched []string        `json:"files_touched,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

func newWorkerEvent(sessionID, workerID string, kind WorkerEventKind) WorkerEvent {
	return WorkerEvent{
		ID:        NewID(),
		SessionID: sessionID,
		WorkerID:  workerID,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeltaEvent creates a delta event for a streamed output fragment.
func NewDeltaEvent(sessionID, workerID, text string) WorkerEvent {
	ev := newWorkerEvent(sessionID, workerID, EventDelta)
	ev.Delta = text
	return ev
}

// NewCompleteEvent creates the terminal success event for a worker.
func NewCompleteEvent(sessionID, workerID, output string, usage Usage, filesTouched []string) WorkerEvent {
	ev := newWorkerEvent(sessionID, workerID, EventComplete)
	ev.Output = output
	ev.Usage = usage
	ev.FilesTouched = filesTouched
	return ev
}

// NewErrorEvent creates the terminal failure event for a worker.
func NewErrorEvent(sessionID, workerID, message string) WorkerEvent {
	ev := newWorkerEvent(sessionID, workerID, EventError)
	ev.ErrorMessage = message
	return ev
}

// StatusChange is a best-effort notification published on a session's status
// stream whenever a worker's derived contribution changes. Consumers may
// equally poll session snapshots; nothing is exclusively available here.
type StatusChange struct {
	SessionID string       `json:"session_id"`
	WorkerID  string       `json:"worker_id"`
	Status    WorkerStatus `json:"status"`
	CostUSD   float64      `json:"cost_usd"`
	Error     string       `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
