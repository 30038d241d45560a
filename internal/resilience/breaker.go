// Package resilience guards the remote agent path against cascading
// failures. A turn dispatched while the agent is down would otherwise burn
// its full send timeout plus a retry; the breaker fails those turns fast
// until the agent recovers.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Execute] while the breaker is open and the
// cooldown has not elapsed.
var ErrOpen = errors.New("resilience: breaker is open")

// State is the breaker's operating mode.
type State int

const (
	// StateClosed forwards all calls.
	StateClosed State = iota

	// StateOpen rejects calls until the cooldown elapses.
	StateOpen

	// StateHalfOpen lets a single probe call through; its outcome decides
	// whether the breaker closes or re-opens.
	StateHalfOpen
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string

	// Trip is the number of consecutive failures that opens the breaker.
	// Default: 3.
	Trip int

	// Cooldown is how long the breaker stays open before allowing a probe.
	// Default: 30s.
	Cooldown time.Duration
}

// Breaker is a three-state circuit breaker with a single half-open probe.
type Breaker struct {
	name     string
	trip     int
	cooldown time.Duration

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a [Breaker]. Zero config fields take the documented
// defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Trip <= 0 {
		cfg.Trip = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{name: cfg.Name, trip: cfg.Trip, cooldown: cfg.Cooldown}
}

// Execute runs fn if the breaker allows it. While open it returns [ErrOpen]
// without calling fn; after the cooldown exactly one probe call is let
// through at a time.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if time.Since(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = StateHalfOpen
		b.probing = false
		slog.Info("breaker allowing probe", "name", b.name)
		fallthrough
	case StateHalfOpen:
		if b.probing {
			b.mu.Unlock()
			return ErrOpen
		}
		b.probing = true
	}
	probe := b.state == StateHalfOpen
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure(probe)
	} else {
		b.onSuccess(probe)
	}
	return err
}

// State returns the breaker's current state. An elapsed cooldown reports
// half-open; the transition itself happens on the next Execute.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && time.Since(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed and clears the failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probing = false
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure(probe bool) {
	if probe {
		b.state = StateOpen
		b.openedAt = time.Now()
		b.probing = false
		slog.Warn("breaker re-opened after failed probe", "name", b.name)
		return
	}
	b.failures++
	if b.failures >= b.trip {
		b.state = StateOpen
		b.openedAt = time.Now()
		slog.Warn("breaker opened", "name", b.name, "consecutive_failures", b.failures)
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess(probe bool) {
	if probe {
		slog.Info("breaker closed after successful probe", "name", b.name)
	}
	b.state = StateClosed
	b.failures = 0
	b.probing = false
}
