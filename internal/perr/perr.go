// Package perr defines the domain error kinds shared across pagewatch's
// components, per the error handling table in spec.md §7.
package perr

import "fmt"

// Kind identifies a domain-level error category. It is distinct from the
// underlying Go error type so components and the errors sink can classify
// failures without string matching.
type Kind string

const (
	MalformedRtp           Kind = "malformed_rtp"
	UnsupportedPayload     Kind = "unsupported_payload"
	CodecBackendFailure    Kind = "codec_backend_failure"
	SocketIoTransient      Kind = "socket_io_transient"
	SocketIoFatal          Kind = "socket_io_fatal"
	RecorderIoError        Kind = "recorder_io_error"
	RangeTooLarge          Kind = "range_too_large"
	NotMulticast           Kind = "not_multicast"
	InvalidPattern         Kind = "invalid_pattern"
	ShutdownDeadlineMissed Kind = "shutdown_deadline_missed"
	AmbiguousOutput        Kind = "ambiguous_output"
	UnknownCodec           Kind = "unknown_codec"
	InvalidOptions         Kind = "invalid_options"
)

// Error wraps a domain Kind with the endpoint it occurred on (if any) and
// the underlying cause.
type Error struct {
	Kind     Kind
	Endpoint string // "" if not endpoint-scoped
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error whose Message is cause's text ("" when cause is nil).
func New(kind Kind, endpoint string, cause error) *Error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: kind, Endpoint: endpoint, Message: msg, Cause: cause}
}

// Newf builds an *Error with an explicit formatted message and no cause.
func Newf(kind Kind, endpoint, format string, args ...any) *Error {
	return &Error{Kind: kind, Endpoint: endpoint, Message: fmt.Sprintf(format, args...)}
}

// Recovered reports whether errors of this kind are handled in place
// (dropped packet, retried socket op, ...) rather than ending a task.
func (k Kind) Recovered() bool {
	switch k {
	case MalformedRtp, SocketIoTransient:
		return true
	default:
		return false
	}
}
