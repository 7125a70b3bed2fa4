package fetcher

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindTransport means no response was received.
	KindTransport Kind = iota
	// KindProtocol means the endpoint answered with a non-2xx status.
	KindProtocol
	// KindParse means a 2xx body did not hold a credential set.
	KindParse
	// KindBreakerOpen means no request was made at all.
	KindBreakerOpen
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindParse:
		return "parse"
	case KindBreakerOpen:
		return "breaker_open"
	default:
		return "unknown"
	}
}

// Error is returned by Fetch for every failure that reaches the caller.
type Error struct {
	Kind       Kind
	StatusCode int
	Attempt    int
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindBreakerOpen:
		return "circuit breaker is open, not contacting the credentials endpoint"
	case KindProtocol:
		return fmt.Sprintf("credentials endpoint returned HTTP %d (attempt %d)", e.StatusCode, e.Attempt)
	default:
		return fmt.Sprintf("%s error (attempt %d): %v", e.Kind, e.Attempt, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a fetch error, and false for anything else.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func IsBreakerOpen(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindBreakerOpen
}
