package circuitbreaker

import (
	"fmt"

	"github.com/juju/errors"

	"github.com/angeloszaimis/authguard/internal/filelock"
)

type Kind int

const (
	KindIO Kind = iota
	KindCorrupt
	KindLock
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindCorrupt:
		return "corrupt"
	case KindLock:
		return "lock"
	default:
		return "unknown"
	}
}

// Error describes a failure reading or writing the breaker state file.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("circuit breaker state %s (%s): %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCorrupt reports whether err came from an unparsable state file.
func IsCorrupt(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindCorrupt
}

func wrapLockErr(path string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if filelock.IsTimeout(err) {
		return &Error{Kind: KindLock, Path: path, Err: err}
	}
	return &Error{Kind: KindIO, Path: path, Err: err}
}
