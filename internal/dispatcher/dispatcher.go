// Package dispatcher implements the cascading-failover driver described in
// spec §4.7: given a tool, an optional symbol, and an executor closure, it
// walks the Source Router's candidate provider list, trying each provider's
// keys in turn, failing over on retryable errors and aborting immediately on
// a permanent one.
package dispatcher

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/LeeXN/finance-gateway/internal/breaker"
	"github.com/LeeXN/finance-gateway/internal/model"
	"github.com/LeeXN/finance-gateway/internal/provider"
	"github.com/LeeXN/finance-gateway/internal/router"
	"github.com/LeeXN/finance-gateway/internal/upstreamerr"
)

// Executor executes one operation against one provider's adapter using an
// already-acquired credential. The Tool Facade builds this closure, binding
// the tool and its typed arguments, so the Dispatcher never sees operation
// payload shapes.
type Executor func(ctx context.Context, adapter provider.Adapter, credential string) (any, error)

// Outcome classifies one entry in an attempt log.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFail    Outcome = "fail"
	OutcomeSkipped Outcome = "skipped"
)

// Attempt records one provider/key attempt within a single Dispatch call.
type Attempt struct {
	Provider provider.Tag
	KeyIndex int
	Outcome  Outcome
	Kind     upstreamerr.Kind
	Err      error
	Duration time.Duration
}

// Result is the successful outcome of a Dispatch call.
type Result struct {
	Data     any
	Provider provider.Tag
	Attempts []Attempt
	Total    time.Duration
}

// Kind enumerates the caller-visible failure kinds from spec §7.
type Kind string

const (
	KindServiceUnavailable Kind = "SERVICE_UNAVAILABLE"
	KindUpstreamPermanent  Kind = "UPSTREAM_PERMANENT"
	KindAggregateFailure   Kind = "AGGREGATE_FAILURE"
	KindDeadlineExceeded   Kind = "DEADLINE_EXCEEDED"
)

// Error is the error type Dispatch returns on any non-success outcome. It
// carries the attempt log so callers (the Tool Facade, logging) can report
// exactly what was tried.
type Error struct {
	Kind     Kind
	Message  string
	Attempts []Attempt
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// RetryConfig governs the optional same-provider retry that envelopes a
// single provider attempt (spec §6: RETRY_ENABLED and friends).
type RetryConfig struct {
	Enabled      bool
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Options configures a Dispatcher.
type Options struct {
	// FailoverEnabled mirrors API_FAILOVER_ENABLED; when false, Dispatch
	// only ever tries the router's first candidate.
	FailoverEnabled bool
	Retry           RetryConfig
	// DefaultDeadline is applied to ctx when the caller didn't already set
	// one, per spec §5's "default 30s global" cancellation semantics.
	DefaultDeadline time.Duration
}

// Dispatcher drives the cascading-failover algorithm over a fixed set of
// adapters and a Router, constructed once at startup per spec §3.
type Dispatcher struct {
	adapters map[provider.Tag]provider.Adapter
	router   *router.Router
	opts     Options
	nowFn    func() time.Time
	randFn   func() float64
}

// New builds a Dispatcher from the process's adapters, its Router, and
// tuning options.
func New(adapters []provider.Adapter, r *router.Router, opts Options) *Dispatcher {
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry.MaxAttempts = 1
	}
	if opts.DefaultDeadline <= 0 {
		opts.DefaultDeadline = 30 * time.Second
	}

	byTag := make(map[provider.Tag]provider.Adapter, len(adapters))
	for _, a := range adapters {
		byTag[a.Tag()] = a
	}

	return &Dispatcher{
		adapters: byTag,
		router:   r,
		opts:     opts,
		nowFn:    time.Now,
		randFn:   rand.Float64,
	}
}

// Dispatch runs the cascading-failover algorithm for one tool invocation.
func (d *Dispatcher) Dispatch(ctx context.Context, tool model.Tool, symbol string, executor Executor) (Result, error) {
	overallStart := d.nowFn()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.DefaultDeadline)
		defer cancel()
	}

	candidates := d.router.Route(tool, symbol)
	if !d.opts.FailoverEnabled && len(candidates) > 1 {
		candidates = candidates[:1]
	}
	if len(candidates) == 0 {
		return Result{}, &Error{
			Kind:    KindServiceUnavailable,
			Message: fmt.Sprintf("no candidate provider for %s", tool),
		}
	}

	var attempts []Attempt

	for _, tag := range candidates {
		adapter, ok := d.adapters[tag]
		if !ok || !adapter.IsAvailable() {
			continue
		}

		keys := adapter.Keys()
		cb := adapter.Breaker()
		n := keys.Size()

	keyLoop:
		for k := 0; k < n; k++ {
			if ctx.Err() != nil {
				return Result{}, &Error{
					Kind:     KindDeadlineExceeded,
					Message:  "deadline exceeded mid-cascade",
					Attempts: attempts,
				}
			}

			key, ok := keys.Acquire()
			if !ok {
				break keyLoop
			}

			start := d.nowFn()
			data, err, kind, circuitOpen := d.attemptWithRetry(ctx, cb, func() (any, error) {
				return executor(ctx, adapter, key.Credential)
			})
			dur := d.nowFn().Sub(start)

			if err == nil {
				attempts = append(attempts, Attempt{Provider: tag, KeyIndex: key.Index, Outcome: OutcomeSuccess, Duration: dur})
				keys.RecordSuccess(key.Index)
				return Result{Data: data, Provider: tag, Attempts: attempts, Total: d.nowFn().Sub(overallStart)}, nil
			}

			if circuitOpen {
				attempts = append(attempts, Attempt{Provider: tag, KeyIndex: key.Index, Outcome: OutcomeSkipped, Err: err, Duration: dur})
				break keyLoop
			}

			if ctx.Err() != nil {
				attempts = append(attempts, Attempt{Provider: tag, KeyIndex: key.Index, Outcome: OutcomeFail, Kind: upstreamerr.Timeout, Err: err, Duration: dur})
				return Result{}, &Error{
					Kind:     KindDeadlineExceeded,
					Message:  "deadline exceeded mid-cascade",
					Attempts: attempts,
				}
			}

			attempts = append(attempts, Attempt{Provider: tag, KeyIndex: key.Index, Outcome: OutcomeFail, Kind: kind, Err: err, Duration: dur})

			switch kind {
			case upstreamerr.RateLimit:
				keys.MarkRateLimited(key.Index)
				if !keys.Rotate() {
					break keyLoop
				}
			case upstreamerr.Timeout, upstreamerr.Transient:
				break keyLoop
			case upstreamerr.Permanent:
				return Result{}, &Error{
					Kind:     KindUpstreamPermanent,
					Message:  err.Error(),
					Attempts: attempts,
				}
			}
		}
	}

	return Result{}, &Error{
		Kind:     KindAggregateFailure,
		Message:  aggregateMessage(attempts),
		Attempts: attempts,
	}
}

// attemptWithRetry runs fn through the circuit breaker, retrying the same
// key/provider on a transient or timeout failure per RetryConfig before
// giving up; a rate-limit or permanent failure returns at once.
// Returns (data, nil, _, false) on success; otherwise the classifying error,
// its Kind, and whether it was a circuit-open skip rather than an upstream
// failure.
func (d *Dispatcher) attemptWithRetry(ctx context.Context, cb *breaker.Breaker, fn func() (any, error)) (any, error, upstreamerr.Kind, bool) {
	maxAttempts := 1
	if d.opts.Retry.Enabled {
		maxAttempts = d.opts.Retry.MaxAttempts
	}

	var lastErr error
	var lastKind upstreamerr.Kind

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err(), upstreamerr.Timeout, false
		}

		if !cb.Allow() {
			return nil, breaker.ErrOpen, upstreamerr.Permanent, true
		}

		data, err := fn()
		if err == nil {
			cb.RecordSuccess()
			return data, nil, upstreamerr.Permanent, false
		}

		if ctx.Err() != nil {
			// Caller-initiated abort: don't poison the key or count a
			// circuit failure for a call the dispatcher itself cut short.
			return nil, ctx.Err(), upstreamerr.Timeout, false
		}

		cb.RecordFailure()
		kind := upstreamerr.Classify(err, 0)
		lastErr, lastKind = err, kind

		if !d.opts.Retry.Enabled || (kind != upstreamerr.Transient && kind != upstreamerr.Timeout) || attempt == maxAttempts {
			return nil, err, kind, false
		}

		if err := d.sleepBackoff(ctx, attempt); err != nil {
			return nil, err, upstreamerr.Timeout, false
		}
	}

	return nil, lastErr, lastKind, false
}

func (d *Dispatcher) sleepBackoff(ctx context.Context, attempt int) error {
	delay := d.opts.Retry.InitialDelay << (attempt - 1)
	if d.opts.Retry.MaxDelay > 0 && delay > d.opts.Retry.MaxDelay {
		delay = d.opts.Retry.MaxDelay
	}
	if delay <= 0 {
		return nil
	}
	jittered := time.Duration(float64(delay) * (0.5 + d.randFn()*0.5))

	timer := time.NewTimer(jittered)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func aggregateMessage(attempts []Attempt) string {
	var b strings.Builder
	for _, a := range attempts {
		if a.Outcome != OutcomeFail || a.Err == nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %v", a.Provider, a.Err)
	}
	if b.Len() == 0 {
		return "no candidate provider attempted"
	}
	return b.String()
}
