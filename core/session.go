package core

import (
	"fmt"
	"time"
)

// SessionStatus is derived from the statuses of a session's workers and is
// never stored or set independently.
type SessionStatus string

const (
	// SessionPending means no worker has started (or none exist yet).
	SessionPending SessionStatus = "pending"
	// SessionRunning means at least one worker is still making progress.
	SessionRunning SessionStatus = "running"
	// SessionCompleted means every worker completed.
	SessionCompleted SessionStatus = "completed"
	// SessionFailed means at least one worker failed and none are running.
	SessionFailed SessionStatus = "failed"
	// SessionCancelled means every worker was cancelled.
	SessionCancelled SessionStatus = "cancelled"
)

// Session is one user prompt and the set of worker attempts it spawned.
// Worker-level counters are the source of truth; the Total* fields are
// incrementally maintained aggregates that must always equal the sum over
// Workers (see CheckTotals). Mutation is serialized by the owning manager's
// per-session lock, so Session carries no mutex of its own.
type Session struct {
	ID                string    `json:"id"`
	Prompt            string    `json:"prompt"`
	Model             Model     `json:"model"`
	Workers           []*Worker `json:"workers"`
	TotalInputTokens  int       `json:"total_input_tokens"`
	TotalOutputTokens int       `json:"total_output_tokens"`
	TotalCost         float64   `json:"total_cost"`
	Plan              string    `json:"plan,omitempty"`
	Created           time.Time `json:"created"`
	Updated           time.Time `json:"updated"`
}

// NewSession creates an empty pending session for the given prompt. The model
// label is normalized immediately; raw labels never travel further.
func NewSession(id, prompt, modelLabel string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:      id,
		Prompt:  prompt,
		Model:   ModelFromLabel(modelLabel),
		Created: now,
		Updated: now,
	}
}

// AddWorker appends a worker in spawn order.
func (s *Session) AddWorker(w *Worker) {
	s.Workers = append(s.Workers, w)
	s.Updated = time.Now().UTC()
}

// Worker returns the worker with the given id, or nil.
func (s *Session) Worker(id string) *Worker {
	for _, w := range s.Workers {
		if w.ID == id {
			return w
		}
	}
	return nil
}

// Status derives the session-level status from the current worker set:
//
//   - failed if any worker failed and none are running
//   - cancelled if all workers are cancelled
//   - completed if every worker is terminal and none failed (a mix of
//     completed and cancelled still counts as a finished session)
//   - otherwise running or pending by majority rule over the non-terminal
//     workers, with ties resolving to running (work is in flight)
//
// An empty worker set is pending.
func (s *Session) Status() SessionStatus {
	if len(s.Workers) == 0 {
		return SessionPending
	}
	var running, pending, failed, completed, cancelled int
	for _, w := range s.Workers {
		switch w.Status {
		case WorkerRunning:
			running++
		case WorkerPending:
			pending++
		case WorkerFailed:
			failed++
		case WorkerCompleted:
			completed++
		case WorkerCancelled:
			cancelled++
		}
	}
	switch {
	case failed > 0 && running == 0:
		return SessionFailed
	case cancelled == len(s.Workers):
		return SessionCancelled
	case completed+cancelled == len(s.Workers):
		return SessionCompleted
	case running >= pending:
		return SessionRunning
	default:
		return SessionPending
	}
}

// AddUsage rolls a worker's usage delta into the session aggregates.
func (s *Session) AddUsage(usage Usage, costUSD float64) {
	s.TotalInputTokens += usage.InputTokens
	s.TotalOutputTokens += usage.OutputTokens
	s.TotalCost += costUSD
	s.Updated = time.Now().UTC()
}

// CheckTotals verifies the aggregate invariant: each Total* field must equal
// the sum of the corresponding worker counters. A mismatch is reported as
// ErrInternal and indicates a bug in aggregate maintenance, never a condition
// to repair in place.
func (s *Session) CheckTotals() error {
	var in, out int
	var cost float64
	for _, w := range s.Workers {
		in += w.InputTokens
		out += w.OutputTokens
		cost += w.CostUSD
	}
	if in != s.TotalInputTokens || out != s.TotalOutputTokens || !floatEq(cost, s.TotalCost) {
		return fmt.Errorf("session %s totals diverged: have (%d,%d,%f) want (%d,%d,%f): %w",
			s.ID, s.TotalInputTokens, s.TotalOutputTokens, s.TotalCost, in, out, cost, ErrInternal)
	}
	return nil
}

// floatEq compares accumulated costs with a tolerance for summation order.
func floatEq(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

// Clone returns a deep copy of the session and its workers, safe for readers
// outside the session lock.
func (s *Session) Clone() *Session {
	clone := *s
	clone.Workers = make([]*Worker, len(s.Workers))
	for i, w := range s.Workers {
		clone.Workers[i] = w.Clone()
	}
	return &clone
}
