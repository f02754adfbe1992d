package retrieval

import (
	"sync"
	"time"
)

// breakerState is the circuit breaker state.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker is a process-wide circuit breaker guarding one downstream service.
//
// Closed: calls pass through; Threshold consecutive failures open the circuit.
// Open: calls are rejected without touching the downstream service until
// Cooldown elapses. Half-open: exactly one probe call is admitted; its success
// closes the circuit and resets the counter, its failure re-opens it and
// restarts the cool-down.
//
// All transitions happen under one mutex so concurrent requests cannot race
// the open -> half-open -> open cycle. The lock is never held across the
// guarded call itself.
type Breaker struct {
	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
	probing  bool

	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// NewBreaker creates a closed breaker tripping after threshold consecutive
// failures and cooling down for cooldown before admitting a probe.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. When it returns true the caller
// must report the outcome with Success or Failure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = stateHalfOpen
		b.probing = true
		return true
	default: // half-open
		if b.probing {
			return false // a probe is already in flight
		}
		b.probing = true
		return true
	}
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	b.state = stateClosed
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateHalfOpen:
		// Failed probe: re-open and restart the cool-down.
		b.state = stateOpen
		b.openedAt = b.now()
		b.probing = false
	default:
		b.failures++
		if b.failures >= b.threshold {
			b.state = stateOpen
			b.openedAt = b.now()
		}
	}
}

// State returns the current state name for logging.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}
