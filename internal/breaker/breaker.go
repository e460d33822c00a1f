// Package breaker implements the per-provider circuit breaker described in
// spec §4.4: a closed/open/half-open state machine that stops hammering a
// failing upstream for a cooldown window before letting a bounded number of
// trial calls back through.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Wrap when the circuit is open (or half-open with
// its trial budget exhausted) instead of invoking the call. The Dispatcher
// treats this as "skip this provider, continue to the next candidate," never
// as a terminal error to the caller.
var ErrOpen = errors.New("circuit open")

// State is one of the three breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// Snapshot is a read-only copy of a Breaker's state, for diagnostics.
type Snapshot struct {
	State             State
	FailureCount      int
	LastFailureNs     int64
	LastStateChangeNs int64
}

// Breaker is a per-provider circuit breaker. Enabled=false makes it a
// permanent pass-through: failures still increment FailureCount for
// observability but Wrap always invokes the call.
type Breaker struct {
	mu             sync.Mutex
	state          State
	failureCount   int
	lastFailureNs  int64
	lastStateChgNs int64
	halfOpenUsed   int

	threshold        int
	timeout          time.Duration
	halfOpenAttempts int
	enabled          bool
	nowFn            func() time.Time
}

// New builds a Breaker. threshold is the number of consecutive failures in
// Closed that opens the circuit; timeout is how long Open lasts before a
// call attempt is allowed through as a half-open trial; halfOpenAttempts
// bounds how many trial calls are permitted while HalfOpen before further
// attempts short-circuit again (the spec's table is exactly reproduced at
// the default of 1). enabled=false disables short-circuiting entirely.
func New(threshold int, timeout time.Duration, halfOpenAttempts int, enabled bool) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	if halfOpenAttempts < 1 {
		halfOpenAttempts = 1
	}
	return &Breaker{
		state:            Closed,
		threshold:        threshold,
		timeout:          timeout,
		halfOpenAttempts: halfOpenAttempts,
		enabled:          enabled,
		nowFn:            time.Now,
	}
}

// Allow reports whether a call may proceed right now, transitioning
// Open→HalfOpen in place if the timeout has elapsed. In HalfOpen, each true
// result consumes one unit of the half-open trial budget; IsAvailable checks
// without consuming it.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowLocked()
}

func (b *Breaker) allowLocked() bool {
	if !b.enabled {
		return true
	}

	now := b.nowFn()
	b.maybeTimeOutLocked(now)

	switch b.state {
	case Closed:
		return true
	case Open:
		return false
	case HalfOpen:
		if b.halfOpenUsed >= b.halfOpenAttempts {
			return false
		}
		b.halfOpenUsed++
		return true
	default:
		return true
	}
}

// IsAvailable peeks at whether the circuit would currently let a call
// through, without consuming any of the half-open trial budget. The
// Dispatcher calls this once per provider before entering its per-key loop;
// Wrap (via Allow) governs each actual attempt inside that loop.
func (b *Breaker) IsAvailable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.enabled {
		return true
	}

	b.maybeTimeOutLocked(b.nowFn())

	switch b.state {
	case Closed:
		return true
	case Open:
		return false
	case HalfOpen:
		return b.halfOpenUsed < b.halfOpenAttempts
	default:
		return true
	}
}

func (b *Breaker) maybeTimeOutLocked(now time.Time) {
	if b.state == Open && now.UnixNano()-b.lastFailureNs >= b.timeout.Nanoseconds() {
		b.transitionLocked(HalfOpen, now)
		b.halfOpenUsed = 0
	}
}

// RecordSuccess resets FailureCount to 0 and, from Open or HalfOpen,
// transitions back to Closed.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	if b.state != Closed {
		b.transitionLocked(Closed, b.nowFn())
	}
}

// RecordFailure increments FailureCount and opens the circuit once the
// threshold is reached from Closed, or immediately from HalfOpen.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.nowFn()
	b.failureCount++
	b.lastFailureNs = now.UnixNano()

	if !b.enabled {
		return
	}

	switch b.state {
	case Closed:
		if b.failureCount >= b.threshold {
			b.transitionLocked(Open, now)
		}
	case HalfOpen:
		b.transitionLocked(Open, now)
	}
}

func (b *Breaker) transitionLocked(to State, now time.Time) {
	b.state = to
	b.lastStateChgNs = now.UnixNano()
}

// Wrap invokes call() if the circuit permits it, otherwise returns ErrOpen
// without calling it. A successful call (nil error) records success; any
// non-nil error records a failure and is returned as-is to the caller —
// Wrap itself never wraps the call's own error.
func (b *Breaker) Wrap(call func() error) error {
	if !b.Allow() {
		return ErrOpen
	}
	err := call()
	if err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

// Snapshot returns the breaker's current state for diagnostics/tests.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		State:             b.state,
		FailureCount:      b.failureCount,
		LastFailureNs:     b.lastFailureNs,
		LastStateChangeNs: b.lastStateChgNs,
	}
}
