package core

import (
	"fmt"
	"sync"
)

// WorkerLimiter bounds the number of workers executing concurrently across
// all sessions. It is a counting guard, not a queue: Acquire fails fast when
// the cap is reached instead of blocking the caller.
type WorkerLimiter struct {
	max    int
	active int
	mu     sync.Mutex
}

// NewWorkerLimiter creates a limiter allowing up to max concurrent workers.
// max == 0 means unlimited.
func NewWorkerLimiter(max int) *WorkerLimiter {
	return &WorkerLimiter{max: max}
}

// Acquire reserves a worker slot, failing if the cap is already reached.
func (l *WorkerLimiter) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max > 0 && l.active >= l.max {
		return fmt.Errorf("max concurrent workers reached: %d", l.max)
	}
	l.active++
	return nil
}

// Release frees a slot reserved by Acquire. Calls beyond the number of
// acquisitions are clamped at zero.
func (l *WorkerLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active > 0 {
		l.active--
	}
}

// Active returns the number of currently reserved slots.
func (l *WorkerLimiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.active
}
