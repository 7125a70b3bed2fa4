package config

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	KindMissingFile Kind = iota
	KindMissingField
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindMissingFile:
		return "missing file"
	case KindMissingField:
		return "missing field"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Error is returned for every configuration problem. All of them are fatal
// at startup.
type Error struct {
	Kind  Kind
	Field string
	Path  string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("configuration: ")
	b.WriteString(e.Kind.String())
	if e.Field != "" {
		fmt.Fprintf(&b, " %s", e.Field)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a configuration error, and false for anything
// else.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
