// Package upstreamerr classifies an upstream provider failure into one of
// four kinds so the Dispatcher knows whether to fail over, and the Key Pool
// knows whether to cool a credential down.
package upstreamerr

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// Kind is the classification of an upstream error.
type Kind int

const (
	// Permanent errors are never retried; the Dispatcher propagates them
	// immediately and aborts the cascade.
	Permanent Kind = iota
	// RateLimit errors cool the offending key down and move to the next
	// key/provider.
	RateLimit
	// Transient errors move to the next provider without touching the key.
	Transient
	// Timeout errors behave like Transient but are distinguished for
	// logging/metrics.
	Timeout
)

func (k Kind) String() string {
	switch k {
	case RateLimit:
		return "RATE_LIMIT"
	case Transient:
		return "TRANSIENT"
	case Timeout:
		return "TIMEOUT"
	default:
		return "PERMANENT"
	}
}

// Retryable reports whether the Dispatcher should try the next candidate
// (key or provider) rather than propagating the error to the caller.
func (k Kind) Retryable() bool {
	return k != Permanent
}

var rateLimitSubstrings = []string{
	"429",
	"rate limit",
	"rate-limit",
	"ratelimit",
	"too many requests",
	"quota exceeded",
	"api limit",
	"throttl",
}

var timeoutSubstrings = []string{
	"timeout",
	"timed out",
}

var transientSubstrings = []string{
	"connection reset",
	"connection refused",
	"no such host",
	"broken pipe",
	"network",
}

// embeddedStatus matches the "status <code>" phrasing every adapter's
// StatusError/fmt.Errorf wrapping uses, so a 5xx is still recognized as
// transient when the caller didn't separately thread the HTTP status code
// through (the Dispatcher never parses a response itself; it only sees the
// error the adapter already formatted).
var embeddedStatus = regexp.MustCompile(`status[ =]+(\d{3})`)

// Classify tags an upstream failure using the rules in order: a context
// deadline-exceeded error or any net.Error reporting Timeout() first, then
// any net.OpError (dial/read/write failure) as transient, then rate-limit
// substrings, then timeout phrasing, then 5xx/connection-reset transient
// signals, then PERMANENT for anything else. statusCode is the HTTP status
// code if known, or 0.
func Classify(err error, statusCode int) Kind {
	if err == nil {
		return Permanent
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Transient
	}

	msg := strings.ToLower(err.Error())

	for _, s := range rateLimitSubstrings {
		if strings.Contains(msg, s) {
			return RateLimit
		}
	}

	if statusCode == 0 {
		if m := embeddedStatus.FindStringSubmatch(msg); m != nil {
			if code, err := strconv.Atoi(m[1]); err == nil {
				statusCode = code
			}
		}
	}

	if statusCode == 429 {
		return RateLimit
	}

	for _, s := range timeoutSubstrings {
		if strings.Contains(msg, s) {
			return Timeout
		}
	}

	if statusCode >= 500 && statusCode < 600 {
		return Transient
	}

	for _, s := range transientSubstrings {
		if strings.Contains(msg, s) {
			return Transient
		}
	}

	return Permanent
}
