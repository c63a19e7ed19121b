package core

import "context"

// SpawnRequest describes one worker the executor should run. The worker id is
// assigned by the caller and registered before Spawn is invoked, so events
// tagged with it always resolve; the executor echoes the id back on every
// sink call rather than minting its own.
type SpawnRequest struct {
	WorkerID  string
	SessionID string
	Task      string
	Model     Model
}

// EventSink receives the executor's delta/complete/error callbacks. The
// session manager implements it; executors must deliver events for a single
// worker sequentially and stop after the first terminal call.
type EventSink interface {
	// OnDelta appends a streamed output fragment to the worker.
	OnDelta(workerID, text string) error

	// OnComplete finalizes the worker with its full output, token usage and
	// the files it touched.
	OnComplete(workerID, output string, usage Usage, filesTouched []string) error

	// OnError marks the worker failed with the given message.
	OnError(workerID, message string) error
}

// Executor is the boundary toward the excluded agent-process collaborator.
// Implementations run the actual work (a subprocess, a vendor API call) and
// report progress through the EventSink handed to them at construction.
type Executor interface {
	// Spawn starts asynchronous execution of the described worker. It must
	// return promptly; execution continues in the background and surfaces
	// exclusively through the sink.
	Spawn(ctx context.Context, req SpawnRequest) error

	// Terminate requests that the worker's underlying process stop. It is
	// fire-and-forget: callers do not block on process teardown, and
	// terminating an unknown or already-finished worker is harmless.
	Terminate(workerID string) error
}
