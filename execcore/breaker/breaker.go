// Package breaker implements the closed/open/half-open circuit breaker
// gating execution attempts (spec.md §4.7). State transitions and the
// allow/deny decision are serialized behind a single mutex so concurrent
// executions see a consistent view without a separate lock per field.
package breaker

import (
	"sync"
	"time"
)

// State is one of the three breaker states.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Config holds the thresholds from spec.md §4.7 / config.BreakerConfig.
type Config struct {
	Enabled             bool
	FailureThreshold    int
	CooldownPeriod      time.Duration
	HalfOpenMaxAttempts int
}

// Breaker is one circuit breaker instance, typically one per chain.
type Breaker struct {
	mu sync.Mutex

	cfg Config

	state           State
	consecutiveFail int
	openedAt        time.Time
	halfOpenInUse   int

	onChange func(from, to State)
	now      func() time.Time
}

// New constructs a closed Breaker. onChange, if non-nil, is invoked
// synchronously on every state transition; spec.md §4.7 requires callback
// panics never escape this call, so each invocation runs under a recover.
func New(cfg Config, onChange func(from, to State)) *Breaker {
	if cfg.HalfOpenMaxAttempts <= 0 {
		cfg.HalfOpenMaxAttempts = 1
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	return &Breaker{
		cfg:      cfg,
		state:    StateClosed,
		onChange: onChange,
		now:      time.Now,
	}
}

// CanExecute reports whether a new execution attempt is allowed, lazily
// transitioning open -> half-open once the cooldown has elapsed and
// reserving one of the bounded half-open attempt slots.
func (b *Breaker) CanExecute() bool {
	if !b.cfg.Enabled {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.CooldownPeriod {
			return false
		}
		b.transitionLocked(StateHalfOpen)
		b.halfOpenInUse = 0
		fallthrough
	case StateHalfOpen:
		if b.halfOpenInUse >= b.cfg.HalfOpenMaxAttempts {
			return false
		}
		b.halfOpenInUse++
		return true
	}
	return false
}

// RecordSuccess closes the breaker from half-open. From closed it is a
// no-op. A success reported while open is a stale inflight completion (an
// execution that started before the breaker tripped) rather than evidence
// the breaker should close, so it is ignored.
func (b *Breaker) RecordSuccess() {
	if !b.cfg.Enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateHalfOpen {
		return
	}
	b.consecutiveFail = 0
	b.transitionLocked(StateClosed)
}

// RecordFailure increments the consecutive-failure count. In closed state
// it trips the breaker once the count reaches FailureThreshold; in
// half-open state a single failure reopens it immediately.
func (b *Breaker) RecordFailure() {
	if !b.cfg.Enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.openLocked()
	case StateClosed:
		b.consecutiveFail++
		if b.consecutiveFail >= b.cfg.FailureThreshold {
			b.openLocked()
		}
	}
}

func (b *Breaker) openLocked() {
	b.transitionLocked(StateOpen)
	b.openedAt = b.now()
	b.consecutiveFail = 0
}

// ForceOpen manually trips the breaker regardless of its failure count,
// backing the admin /admin/breaker/force-open operation.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openLocked()
}

// ForceClose manually resets the breaker, backing /admin/breaker/force-close.
func (b *Breaker) ForceClose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFail = 0
	b.transitionLocked(StateClosed)
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// GetConfig returns a copy of the breaker's configuration.
func (b *Breaker) GetConfig() Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onChange == nil {
		return
	}
	func() {
		defer func() { recover() }()
		b.onChange(from, to)
	}()
}
