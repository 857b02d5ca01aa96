package engine

import (
	"sync"
	"time"
)

// breakerState represents the circuit breaker state.
type breakerState int

const (
	breakerClosed   breakerState = iota // normal operation, calls pass through
	breakerOpen                         // calls rejected immediately
	breakerHalfOpen                     // one probe call allowed to test recovery
)

// breaker guards the remote engine against hammering a dead backend.
// Thread-safe: all state transitions use a mutex.
type breaker struct {
	mu           sync.Mutex
	state        breakerState
	failures     int
	successes    int
	threshold    int           // failures before opening
	resetTimeout time.Duration // how long to stay open before half-open
	halfOpenMax  int           // successes in half-open before closing
	lastFailure  time.Time
	now          func() time.Time // injectable clock for testing
}

func newBreaker(threshold int, resetTimeout time.Duration) *breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &breaker{
		state:        breakerClosed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		halfOpenMax:  2,
		now:          time.Now,
	}
}

// allow reports whether a call may proceed. An open breaker whose reset
// timeout has elapsed transitions to half-open and lets one probe pass.
func (cb *breaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeTransition()
	return cb.state != breakerOpen
}

func (cb *breaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case breakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.halfOpenMax {
			cb.state = breakerClosed
			cb.failures = 0
			cb.successes = 0
		}
	case breakerClosed:
		cb.failures = 0
	}
}

func (cb *breaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.lastFailure = cb.now()
	switch cb.state {
	case breakerClosed:
		cb.failures++
		if cb.failures >= cb.threshold {
			cb.state = breakerOpen
		}
	case breakerHalfOpen:
		// Any failure in half-open goes back to open.
		cb.state = breakerOpen
		cb.successes = 0
	}
}

// open reports whether the breaker is currently rejecting calls.
func (cb *breaker) open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeTransition()
	return cb.state == breakerOpen
}

// maybeTransition checks if an open breaker should move to half-open.
// Must be called with mu held.
func (cb *breaker) maybeTransition() {
	if cb.state == breakerOpen && cb.now().Sub(cb.lastFailure) >= cb.resetTimeout {
		cb.state = breakerHalfOpen
		cb.successes = 0
	}
}
