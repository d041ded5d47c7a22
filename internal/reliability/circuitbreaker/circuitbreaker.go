package circuitbreaker

import (
	"sync/atomic"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker provides fast-fail behavior when a dependency fails
// repeatedly. It guards the secondary store transport so a down document
// service degrades requests immediately instead of stacking timeouts.
type CircuitBreaker struct {
	state            atomic.Value
	failureCount     atomic.Int32
	successCount     atomic.Int32
	lastFailureTime  atomic.Value
	failureThreshold int32
	successThreshold int32
	timeout          time.Duration
	onStateChange    func(from, to State)
}

// New creates a circuit breaker. onStateChange may be nil.
func New(failureThreshold, successThreshold int32, timeout time.Duration, onStateChange func(from, to State)) *CircuitBreaker {
	if onStateChange == nil {
		onStateChange = func(_, _ State) {}
	}
	cb := &CircuitBreaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		onStateChange:    onStateChange,
	}
	cb.state.Store(StateClosed)
	return cb
}

// RecordSuccess resets the failure count and attempts half-open -> closed
func (cb *CircuitBreaker) RecordSuccess() {
	switch cb.State() {
	case StateHalfOpen:
		cb.successCount.Add(1)
		if cb.successCount.Load() >= cb.successThreshold {
			cb.setState(StateClosed)
			cb.failureCount.Store(0)
			cb.successCount.Store(0)
		}
	case StateClosed:
		cb.failureCount.Store(0)
	}
}

// RecordFailure increments the failure counter and may trip the circuit open
func (cb *CircuitBreaker) RecordFailure() {
	now := time.Now()
	cb.lastFailureTime.Store(&now)

	switch cb.State() {
	case StateClosed:
		cb.failureCount.Add(1)
		if cb.failureCount.Load() >= cb.failureThreshold {
			cb.setState(StateOpen)
			cb.failureCount.Store(0)
			cb.successCount.Store(0)
		}
	case StateHalfOpen:
		cb.setState(StateOpen)
		cb.failureCount.Store(0)
		cb.successCount.Store(0)
	}
}

// AllowRequest returns true if the circuit allows a request
func (cb *CircuitBreaker) AllowRequest() bool {
	switch cb.State() {
	case StateClosed, StateHalfOpen:
		return true
	}
	lastFailure, ok := cb.lastFailureTime.Load().(*time.Time)
	if !ok || lastFailure == nil {
		return false
	}
	if time.Since(*lastFailure) > cb.timeout {
		cb.setState(StateHalfOpen)
		cb.failureCount.Store(0)
		cb.successCount.Store(0)
		return true
	}
	return false
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	return cb.state.Load().(State)
}

func (cb *CircuitBreaker) setState(newState State) {
	oldState := cb.State()
	if oldState == newState {
		return
	}
	cb.state.Store(newState)
	cb.onStateChange(oldState, newState)
}
