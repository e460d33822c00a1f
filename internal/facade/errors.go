package facade

import (
	"errors"
	"fmt"

	"github.com/LeeXN/finance-gateway/internal/dispatcher"
)

// Sentinel errors checkable with errors.Is, per spec.md §7's error table.
// cmd/server's JSON-RPC loop writes any tool error, sentinel or not, back as
// an isError:true envelope carrying the error text.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrUpstreamPermanent  = errors.New("upstream permanent error")
	ErrDeadlineExceeded   = errors.New("deadline exceeded")
)

// AggregateFailureError wraps every attempt's failure when a tool call
// exhausts its full candidate list without success. Callers use errors.As
// to recover the attempt log for logging/diagnostics.
type AggregateFailureError struct {
	Message  string
	Attempts []dispatcher.Attempt
}

func (e *AggregateFailureError) Error() string {
	return fmt.Sprintf("all providers exhausted: %s", e.Message)
}

// translateDispatchError maps a *dispatcher.Error onto this package's
// sentinel family so facade callers never need to import internal/dispatcher
// themselves to classify a failure.
func translateDispatchError(err error) error {
	dispErr, ok := err.(*dispatcher.Error)
	if !ok {
		return err
	}

	switch dispErr.Kind {
	case dispatcher.KindServiceUnavailable:
		return fmt.Errorf("%s: %w", dispErr.Message, ErrServiceUnavailable)
	case dispatcher.KindUpstreamPermanent:
		return fmt.Errorf("%s: %w", dispErr.Message, ErrUpstreamPermanent)
	case dispatcher.KindDeadlineExceeded:
		return fmt.Errorf("%s: %w", dispErr.Message, ErrDeadlineExceeded)
	case dispatcher.KindAggregateFailure:
		return &AggregateFailureError{Message: dispErr.Message, Attempts: dispErr.Attempts}
	default:
		return dispErr
	}
}
