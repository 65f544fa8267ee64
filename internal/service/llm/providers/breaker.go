package providers

import (
	"sync"
	"time"
)

// State is a provider's place in the fallback state machine
type State int

const (
	// StateAvailable providers are tried in order
	StateAvailable State = iota
	// StateCoolingDown providers failed too often and are skipped until the cooldown ends
	StateCoolingDown
	// StateDisabled providers have no credential and are always skipped
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateAvailable:
		return "available"
	case StateCoolingDown:
		return "cooling-down"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Breaker counts consecutive failures. Reaching the threshold starts a
// cooldown; once it ends the provider is available again with a clean count.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	openUntil time.Time
	now       func() time.Time
}

// NewBreaker creates a breaker. A non-positive threshold means 1.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// State returns StateAvailable or StateCoolingDown
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Breaker) stateLocked() State {
	if b.openUntil.IsZero() {
		return StateAvailable
	}
	if b.now().Before(b.openUntil) {
		return StateCoolingDown
	}
	b.openUntil = time.Time{}
	b.failures = 0
	return StateAvailable
}

// Success resets the failure count
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.openUntil = time.Time{}
}

// Failure records a failed call and reports whether it started a cooldown
func (b *Breaker) Failure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stateLocked() == StateCoolingDown {
		return false
	}
	b.failures++
	if b.failures >= b.threshold && b.cooldown > 0 {
		b.openUntil = b.now().Add(b.cooldown)
		return true
	}
	return false
}
