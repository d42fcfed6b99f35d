// Package circuit implements the per-backend circuit breaker and the
// ordered fallback chain that sits above it.
package circuit

import (
	"sync"
	"time"
)

// State is one of CLOSED, OPEN, or HALF_OPEN.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker is a single backend's circuit breaker. It opens after
// FailureThreshold consecutive failures, stays open for RecoveryTimeout,
// then transitions to half-open and admits at most HalfOpenMaxCalls trial
// requests, closing only once HalfOpenMaxCalls consecutive successes have
// been recorded in that episode (any failure reopens it immediately).
type Breaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	halfOpenMaxCalls int

	mu                sync.Mutex
	state             State
	consecutiveFails  int
	openedAt          time.Time
	halfOpenInFlight  int // permits issued and not yet resolved, this half-open episode
	halfOpenSuccesses int // consecutive successes recorded, this half-open episode

	requests  int64
	successes int64
	failures  int64

	onTransition func(name string, from, to State)
}

// SetOnTransition installs a callback invoked synchronously, under the
// breaker's lock, every time its state changes. Intended for wiring a
// metrics recorder; the callback must not call back into the Breaker.
func (b *Breaker) SetOnTransition(fn func(name string, from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTransition = fn
}

// transitionLocked moves the breaker to to and fires onTransition, if set.
// Callers must hold b.mu.
func (b *Breaker) transitionLocked(to State) {
	from := b.state
	b.state = to
	if from != to && b.onTransition != nil {
		b.onTransition(b.name, from, to)
	}
}

// Status is a snapshot of a Breaker's counters, safe to serialize.
type Status struct {
	Name             string  `json:"name"`
	State            string  `json:"state"`
	ConsecutiveFails int     `json:"consecutive_fails"`
	Requests         int64   `json:"requests"`
	Successes        int64   `json:"successes"`
	Failures         int64   `json:"failures"`
	SuccessRate      float64 `json:"success_rate"`
}

// NewBreaker constructs a Breaker for one backend resource name.
func NewBreaker(name string, failureThreshold int, recoveryTimeout time.Duration, halfOpenMaxCalls int) *Breaker {
	if halfOpenMaxCalls < 1 {
		halfOpenMaxCalls = 1
	}
	return &Breaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		halfOpenMaxCalls: halfOpenMaxCalls,
		state:            Closed,
	}
}

// Allow reports whether a call should be let through right now, and
// transitions OPEN→HALF_OPEN when the recovery timeout has elapsed. In
// HALF_OPEN, at most halfOpenMaxCalls concurrent trial calls are admitted;
// callers that are admitted MUST eventually call RecordSuccess or
// RecordFailure exactly once to release their permit.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true

	case Open:
		if time.Since(b.openedAt) >= b.recoveryTimeout {
			b.transitionLocked(HalfOpen)
			b.halfOpenInFlight = 0
			b.halfOpenSuccesses = 0
			return b.admitHalfOpenLocked()
		}
		return false

	case HalfOpen:
		return b.admitHalfOpenLocked()

	default:
		return false
	}
}

func (b *Breaker) admitHalfOpenLocked() bool {
	if b.halfOpenInFlight >= b.halfOpenMaxCalls {
		return false
	}
	b.halfOpenInFlight++
	return true
}

// RecordSuccess reports a successful call. In CLOSED it clears the
// consecutive-failure count; in HALF_OPEN it counts toward the
// consecutive-success streak required to close the breaker, closing it
// once that streak reaches halfOpenMaxCalls.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests++
	b.successes++
	b.consecutiveFails = 0

	if b.state == HalfOpen {
		b.halfOpenInFlight--
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.halfOpenMaxCalls {
			b.transitionLocked(Closed)
		}
	}
}

// RecordFailure reports a failed call. In CLOSED it may trip the breaker
// open once consecutiveFails reaches failureThreshold. In HALF_OPEN any
// single failure reopens it immediately, discarding remaining trial
// permits and the success streak for this episode.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests++
	b.failures++

	if b.state == HalfOpen {
		b.halfOpenInFlight--
		b.halfOpenSuccesses = 0
		b.transitionLocked(Open)
		b.openedAt = time.Now()
		return
	}

	b.consecutiveFails++
	if b.state == Closed && b.consecutiveFails >= b.failureThreshold {
		b.transitionLocked(Open)
		b.openedAt = time.Now()
	}
}

// State returns the current state without mutating it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// GetStatus returns a point-in-time snapshot for diagnostics.
func (b *Breaker) GetStatus() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	var rate float64
	if b.requests > 0 {
		rate = float64(b.successes) / float64(b.requests) * 100.0
	}
	return Status{
		Name:             b.name,
		State:            b.state.String(),
		ConsecutiveFails: b.consecutiveFails,
		Requests:         b.requests,
		Successes:        b.successes,
		Failures:         b.failures,
		SuccessRate:      rate,
	}
}

// Reset forces the breaker back to CLOSED with all counters cleared.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionLocked(Closed)
	b.consecutiveFails = 0
	b.halfOpenInFlight = 0
	b.halfOpenSuccesses = 0
	b.requests, b.successes, b.failures = 0, 0, 0
}

// Metrics is the narrow recording surface circuit instruments call into.
// metrics.Collector satisfies it via duck typing. A nil Metrics (the
// default) means transitions go unrecorded.
type Metrics interface {
	RecordCircuitState(name, state string)
}

// Registry owns one Breaker per named backend, created lazily.
type Registry struct {
	failureThreshold int
	recoveryTimeout  time.Duration
	halfOpenMaxCalls int

	mu       sync.Mutex
	breakers map[string]*Breaker
	metrics  Metrics
}

// NewRegistry constructs a Registry applying the same thresholds to every
// backend it creates a Breaker for.
func NewRegistry(failureThreshold int, recoveryTimeout time.Duration, halfOpenMaxCalls int) *Registry {
	return &Registry{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		halfOpenMaxCalls: halfOpenMaxCalls,
		breakers:         make(map[string]*Breaker),
	}
}

// SetMetrics installs the recorder every Breaker this Registry owns
// reports state transitions to, wiring it into breakers already created
// as well as any created afterward by Get.
func (r *Registry) SetMetrics(m Metrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
	for _, b := range r.breakers {
		b.SetOnTransition(metricsTransitionHook(m))
	}
}

// metricsTransitionHook adapts a Metrics recorder to a Breaker's
// onTransition callback shape. Returns nil (clearing any existing hook)
// when m is nil.
func metricsTransitionHook(m Metrics) func(name string, from, to State) {
	if m == nil {
		return nil
	}
	return func(name string, from, to State) {
		m.RecordCircuitState(name, to.String())
	}
}

// Get returns the named backend's Breaker, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	if !ok {
		b = NewBreaker(name, r.failureThreshold, r.recoveryTimeout, r.halfOpenMaxCalls)
		if r.metrics != nil {
			b.SetOnTransition(metricsTransitionHook(r.metrics))
		}
		r.breakers[name] = b
	}
	return b
}

// Snapshot returns a Status for every breaker created so far.
func (r *Registry) Snapshot() map[string]Status {
	r.mu.Lock()
	names := make([]string, 0, len(r.breakers))
	breakers := make([]*Breaker, 0, len(r.breakers))
	for name, b := range r.breakers {
		names = append(names, name)
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	out := make(map[string]Status, len(names))
	for i, name := range names {
		out[name] = breakers[i].GetStatus()
	}
	return out
}
