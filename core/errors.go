package core

import "fmt"

var (
	// ErrNotFound is returned when a session or worker id does not resolve
	// to a known entity.
	ErrNotFound = fmt.Errorf("not found")

	// ErrInvalidState is returned when a lifecycle operation (cancel, retry)
	// is attempted from a worker state that forbids it.
	ErrInvalidState = fmt.Errorf("invalid state")

	// ErrInternal signals a violated accounting invariant (session totals
	// diverging from the sum of worker counters). It must never occur under
	// correct operation; callers should treat it as a bug, not a condition
	// to reconcile silently.
	ErrInternal = fmt.Errorf("internal invariant violation")
)
