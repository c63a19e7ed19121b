// Package inbox houses concrete implementations of core.InboxStore. The
// interface (and the Message type) live in core to centralize domain
// contracts; keeping only implementations here lets the manager depend on
// the contract while the wiring layer picks the backend. Additional backends
// (Redis, SQLite, ...) belong in sub-packages without touching calling code.
package inbox
