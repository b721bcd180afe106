// Package circuitbreaker protects calls to external LLM and geocoding
// services from cascading failure.
//
// This breaker fails CLOSED: once open, calls are rejected immediately with
// entity.ErrCircuitOpen rather than being allowed through. A provider that
// is actively erroring should stop receiving traffic, not keep receiving it
// at the caller's expense.
package circuitbreaker

import (
	"log/slog"
	"sync"
	"time"

	"threatfeed/internal/domain/entity"
	"threatfeed/internal/resilience/retry"
)

// State represents the current state of the circuit breaker.
type State int

const (
	// StateClosed allows calls through and tracks failures.
	StateClosed State = iota
	// StateOpen rejects all calls immediately.
	StateOpen
	// StateHalfOpen allows a single trial call to test recovery.
	StateHalfOpen
)

// String returns a string representation of the state.
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

// Config holds configuration for the circuit breaker.
type Config struct {
	// Name identifies the protected call, used in logs (e.g. "openai", "geocoder").
	Name string

	// ConsecutiveFailureThreshold trips the circuit after this many
	// consecutive failures. Default: 2.
	ConsecutiveFailureThreshold int

	// FailureRatioThreshold trips the circuit when the failure ratio over
	// the last MinRequests-or-more calls reaches this fraction. Default: 0.6.
	FailureRatioThreshold float64

	// MinRequests is the minimum number of calls in the rolling window
	// before the failure-ratio trip condition is evaluated. Default: 3.
	MinRequests int

	// BaseRecoveryTimeout is the initial wait before the first half-open
	// trial after the circuit opens (plus jitter). Default: 5s. Only a
	// failed half-open trial lengthens the wait: each reopen doubles it,
	// up to MaxRecoveryTimeout.
	BaseRecoveryTimeout time.Duration

	// MaxRecoveryTimeout caps the doubled recovery timeout after repeated
	// trip/reopen cycles. Default: 2m. Jitter is added after the cap, so
	// the wait can reach MaxRecoveryTimeout × (1 + JitterFraction).
	MaxRecoveryTimeout time.Duration

	// JitterFraction randomizes the recovery timeout to avoid synchronized
	// retries across concurrent callers. Default: 0.2.
	JitterFraction float64
}

// DefaultConfig returns the breaker configuration used for LLM enrichment
// provider calls.
func DefaultConfig(name string) Config {
	return Config{
		Name:                        name,
		ConsecutiveFailureThreshold: 2,
		FailureRatioThreshold:       0.6,
		MinRequests:                 3,
		BaseRecoveryTimeout:         5 * time.Second,
		MaxRecoveryTimeout:          2 * time.Minute,
		JitterFraction:              0.2,
	}
}

// GeocoderConfig returns the breaker configuration for the location
// resolver's external geocoding/LLM batch calls. Geocoding failures are
// less costly to retry against than LLM calls, so recovery is quicker.
func GeocoderConfig(name string) Config {
	cfg := DefaultConfig(name)
	cfg.BaseRecoveryTimeout = 3 * time.Second
	cfg.MaxRecoveryTimeout = 30 * time.Second
	return cfg
}

// CircuitBreaker implements a fail-closed, three-state circuit breaker.
type CircuitBreaker struct {
	config Config

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	windowTotal         int
	windowFailures      int
	recoveryTimeout     time.Duration
	openedAt            time.Time
	tripCount           int
}

// New creates a new circuit breaker with the given configuration, applying
// defaults for any zero-valued fields.
func New(config Config) *CircuitBreaker {
	if config.ConsecutiveFailureThreshold <= 0 {
		config.ConsecutiveFailureThreshold = 2
	}
	if config.FailureRatioThreshold <= 0 {
		config.FailureRatioThreshold = 0.6
	}
	if config.MinRequests <= 0 {
		config.MinRequests = 3
	}
	if config.BaseRecoveryTimeout <= 0 {
		config.BaseRecoveryTimeout = 5 * time.Second
	}
	if config.MaxRecoveryTimeout <= 0 {
		config.MaxRecoveryTimeout = 2 * time.Minute
	}
	if config.JitterFraction <= 0 {
		config.JitterFraction = 0.2
	}

	return &CircuitBreaker{
		config:          config,
		state:           StateClosed,
		recoveryTimeout: config.BaseRecoveryTimeout,
	}
}

// Execute runs operation under circuit breaker protection.
//
//   - Closed: operation runs, failures are tracked against both trip conditions.
//   - Open: operation does NOT run; returns entity.ErrCircuitOpen immediately,
//     unless the recovery timeout has elapsed, in which case the breaker
//     transitions to half-open and lets this one call through as a trial.
//   - Half-open: operation runs as a trial; success closes the circuit,
//     failure reopens it with an escalated recovery timeout.
func (cb *CircuitBreaker) Execute(operation func() error) error {
	if !cb.allow() {
		return entity.ErrCircuitOpen
	}

	err := operation()
	cb.recordResult(err)
	return err
}

// allow reports whether a call may proceed, transitioning open->half-open
// once the recovery timeout has elapsed.
func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.recoveryTimeout {
			cb.transitionTo(StateHalfOpen)
			return true
		}
		return false
	default:
		return true
	}
}

func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		if err != nil {
			cb.trip()
			return
		}
		cb.close()
		return
	case StateClosed:
		cb.windowTotal++
		if err != nil {
			cb.consecutiveFailures++
			cb.windowFailures++
		} else {
			cb.consecutiveFailures = 0
		}

		if cb.consecutiveFailures >= cb.config.ConsecutiveFailureThreshold {
			cb.trip()
			return
		}
		if cb.windowTotal >= cb.config.MinRequests {
			ratio := float64(cb.windowFailures) / float64(cb.windowTotal)
			if ratio >= cb.config.FailureRatioThreshold {
				cb.trip()
				return
			}
			// below the ratio: start a fresh window of MinRequests calls
			cb.windowTotal = 0
			cb.windowFailures = 0
		}
	case StateOpen:
		// a result landed while open: a concurrent allow() let a trial
		// through right as the state flipped back; treat like a half-open
		// failure and keep the circuit open.
		cb.trip()
	}
}

// trip opens (or reopens) the circuit and escalates the recovery timeout.
// Caller must hold cb.mu.
func (cb *CircuitBreaker) trip() {
	cb.tripCount++
	cb.openedAt = time.Now()
	if cb.tripCount > 1 {
		next := time.Duration(float64(cb.recoveryTimeout) * 2.0)
		if next > cb.config.MaxRecoveryTimeout {
			next = cb.config.MaxRecoveryTimeout
		}
		cb.recoveryTimeout = retry.AddJitter(next, cb.config.JitterFraction)
	} else {
		cb.recoveryTimeout = retry.AddJitter(cb.config.BaseRecoveryTimeout, cb.config.JitterFraction)
	}
	cb.transitionTo(StateOpen)
}

// close resets the circuit to closed after a successful half-open trial.
// Caller must hold cb.mu.
func (cb *CircuitBreaker) close() {
	cb.consecutiveFailures = 0
	cb.windowTotal = 0
	cb.windowFailures = 0
	cb.tripCount = 0
	cb.recoveryTimeout = cb.config.BaseRecoveryTimeout
	cb.transitionTo(StateClosed)
}

// transitionTo updates state and logs the change. Caller must hold cb.mu.
func (cb *CircuitBreaker) transitionTo(next State) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	slog.Warn("circuit breaker state changed",
		slog.String("name", cb.config.Name),
		slog.String("previous_state", prev.String()),
		slog.String("new_state", next.String()),
		slog.Duration("recovery_timeout", cb.recoveryTimeout),
	)
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// IsOpen returns true if the circuit is currently rejecting calls.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == StateOpen
}

// Name returns the breaker's configured name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Reset forces the circuit back to closed. Intended for tests and manual
// operator intervention.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.close()
}
