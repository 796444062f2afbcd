package protocol

import (
	"errors"
	"strings"
)

// Kind classifies a failed operation.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindPortUnavailable: the port could not be opened, written or read.
	KindPortUnavailable
	// KindTimeout: nothing arrived within the wait window.
	KindTimeout
	// KindProtocolMismatch: data arrived but was not a recognizable reply.
	KindProtocolMismatch
	// KindBufferOverrun: more bytes arrived than a frame can hold.
	KindBufferOverrun
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindPortUnavailable:
		return "port unavailable"
	case KindTimeout:
		return "timeout"
	case KindProtocolMismatch:
		return "protocol mismatch"
	case KindBufferOverrun:
		return "buffer overrun"
	default:
		return "unknown"
	}
}

// Error is the error type returned by the driver.
//
// errors.Is matches an Error against the Err* kind sentinels of this package
// by Kind, so callers can test errors.Is(err, protocol.ErrTimeout) on any
// wrapped error.
type Error struct {
	Kind Kind
	Op   string
	Port string
	Err  error
}

// NewError creates an Error.
func NewError(kind Kind, op string, port string, err error) *Error {
	return &Error{Kind: kind, Op: op, Port: port, Err: err}
}

// Error implements error.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("numato")
	if e.Op != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Op)
	}
	if e.Port != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Port)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Kind.String())
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a kind sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || !t.isSentinel() {
		return false
	}

	return t.Kind == e.Kind
}

func (e *Error) isSentinel() bool {
	return e.Op == "" && e.Port == "" && e.Err == nil
}

// Kind sentinels.
var (
	ErrPortUnavailable  = &Error{Kind: KindPortUnavailable}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrProtocolMismatch = &Error{Kind: KindProtocolMismatch}
	ErrBufferOverrun    = &Error{Kind: KindBufferOverrun}
)

var (
	// ErrNotRecognized is returned by ParseValue when the text carries no
	// recognizable payload. It matches ErrProtocolMismatch.
	ErrNotRecognized = &Error{Kind: KindProtocolMismatch, Err: errors.New("response not recognized")}

	// ErrPortClosed is returned by reads on a closed connection.
	ErrPortClosed = errors.New("port not open")

	// ErrNoDevice is returned when discovery finds no answering board.
	ErrNoDevice = errors.New("no device answered")
)

// KindOf returns the Kind of err, or KindUnknown when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindUnknown
}

// Status is the coarse outcome of an operation.
type Status int8

const (
	// StatusFault: the operation failed.
	StatusFault Status = -1
	// StatusNoData: the operation completed but produced nothing usable.
	StatusNoData Status = 0
	// StatusSuccess: the operation completed.
	StatusSuccess Status = 1
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNoData:
		return "no data"
	case StatusFault:
		return "fault"
	default:
		return "unknown"
	}
}

// StatusOf maps an operation error to its Status. Timeouts, overruns and
// unrecognized replies are soft failures; anything else is a fault.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrNotRecognized),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrBufferOverrun):
		return StatusNoData
	default:
		return StatusFault
	}
}
