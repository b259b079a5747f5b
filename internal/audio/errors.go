package audio

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures to acquire or keep an audio stream.
type ErrorKind int

const (
	DeviceUnavailable ErrorKind = iota + 1
	PermissionDenied
	StreamInitFailed
)

func (k ErrorKind) String() string {
	switch k {
	case DeviceUnavailable:
		return "device unavailable"
	case PermissionDenied:
		return "permission denied"
	case StreamInitFailed:
		return "stream init failed"
	default:
		return "unknown audio error"
	}
}

// Sentinels for errors.Is matching on the kind alone.
var (
	ErrDeviceUnavailable = &Error{Kind: DeviceUnavailable}
	ErrPermissionDenied  = &Error{Kind: PermissionDenied}
	ErrStreamInitFailed  = &Error{Kind: StreamInitFailed}
)

// Error is a typed audio failure. Errors of this type end the current session.
type Error struct {
	Kind ErrorKind
	Op   string // e.g. "open", "read"
	Err  error
}

func (e *Error) Error() string {
	msg := "audio"
	if e.Op != "" {
		msg += ": " + e.Op
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors that carry only a kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Op == "" && t.Kind == e.Kind
}

// Wrap returns err as an *Error. Errors that already are one keep their kind.
func Wrap(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error from a formatted message.
func Errorf(kind ErrorKind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}
