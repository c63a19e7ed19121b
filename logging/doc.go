// Package logging provides a tiny abstraction over slog so the orchestration
// core can depend on a minimal interface (Logger) while callers plug in any
// structured logger. A richer OrchestratorLogger adds contextual helpers
// (component, session, worker) and domain-specific helpers for spawn, worker
// events and cost accounting.
package logging
