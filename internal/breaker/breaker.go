// Package breaker implements a per-agent circuit breaker: a small state
// machine with Closed, Open, and Half-open states that guards availability
// and recovers automatically after a timeout.
package breaker

import (
	"sync"
	"time"
)

// State is one of the three breaker states.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

const (
	defaultThreshold       = 3
	defaultRecoveryTimeout = 30 * time.Second
)

// Breaker guards a single collaborator's availability. All state
// transitions are serialized behind a single mutex.
type Breaker struct {
	mu sync.Mutex

	threshold       int
	recoveryTimeout time.Duration

	state               State
	consecutiveFailures int
	lastFailureAt        time.Time
}

// New constructs a Breaker with the default threshold (3) and recovery
// timeout (30s).
func New() *Breaker {
	return &Breaker{
		threshold:       defaultThreshold,
		recoveryTimeout: defaultRecoveryTimeout,
		state:           Closed,
	}
}

// NewWithConfig constructs a Breaker with an explicit threshold and recovery
// timeout, falling back to the defaults for non-positive values.
func NewWithConfig(threshold int, recoveryTimeout time.Duration) *Breaker {
	b := New()
	if threshold > 0 {
		b.threshold = threshold
	}
	if recoveryTimeout > 0 {
		b.recoveryTimeout = recoveryTimeout
	}
	return b
}

// State returns the current effective state, lazily evaluating the
// open -> half_open transition against the recovery timeout.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.effectiveStateLocked()
}

func (b *Breaker) effectiveStateLocked() State {
	if b.state == Open && time.Since(b.lastFailureAt) > b.recoveryTimeout {
		b.state = HalfOpen
	}
	return b.state
}

// IsAvailable reports whether the guarded collaborator should be invoked.
func (b *Breaker) IsAvailable() bool {
	return b.State() != Open
}

// RecordSuccess resets the failure count and closes the breaker
// unconditionally (both from Closed and from Half-open).
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
	b.state = Closed
}

// RecordFailure increments the consecutive-failure count and, depending on
// the current effective state, may trip the breaker open. From Half-open, a
// single failure re-opens immediately regardless of the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	current := b.effectiveStateLocked()
	b.consecutiveFailures++
	b.lastFailureAt = time.Now()
	if current == HalfOpen || b.consecutiveFailures >= b.threshold {
		b.state = Open
	}
}

// Snapshot is a read-only view of breaker state, used for introspection
// endpoints.
type Snapshot struct {
	State               State
	ConsecutiveFailures int
	LastFailureAt       time.Time
}

// Inspect returns a point-in-time snapshot without mutating state.
func (b *Breaker) Inspect() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		State:               b.effectiveStateLocked(),
		ConsecutiveFailures: b.consecutiveFailures,
		LastFailureAt:       b.lastFailureAt,
	}
}

// Registry is a named collection of breakers, one per agent/intent.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry constructs an empty breaker registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*Breaker)}
}

// For returns the breaker for name, constructing one with default
// configuration on first use.
func (r *Registry) For(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	if !ok {
		b = New()
		r.breakers[name] = b
	}
	return b
}

// Snapshot returns a point-in-time view of every breaker currently tracked.
func (r *Registry) Snapshot() map[string]Snapshot {
	r.mu.Lock()
	names := make([]string, 0, len(r.breakers))
	breakers := make([]*Breaker, 0, len(r.breakers))
	for name, b := range r.breakers {
		names = append(names, name)
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	out := make(map[string]Snapshot, len(names))
	for i, name := range names {
		out[name] = breakers[i].Inspect()
	}
	return out
}
