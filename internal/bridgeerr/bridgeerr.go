// Package bridgeerr defines the error kinds shared by every reactor:
// ConfigError, IoError, ProtocolError, FramingError and Logic, as
// described in the bridge's error handling design. Recoverable kinds
// (ProtocolError, FramingError) are absorbed at the codec boundary;
// the rest bubble up and terminate the owning reactor.
package bridgeerr

import "github.com/pkg/errors"

type kind int

const (
	kindConfig kind = iota
	kindIO
	kindProtocol
	kindFraming
	kindLogic
)

func (k kind) String() string {
	switch k {
	case kindConfig:
		return "config"
	case kindIO:
		return "io"
	case kindProtocol:
		return "protocol"
	case kindFraming:
		return "framing"
	case kindLogic:
		return "logic"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with one of the bridge's error kinds.
type Error struct {
	Kind  kind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }
func (e *Error) Cause() error  { return e.cause }

func newf(k kind, format string, args ...any) *Error {
	return &Error{Kind: k, cause: errors.Errorf(format, args...)}
}

func wrap(k kind, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, cause: errors.Wrap(err, msg)}
}

// Config reports a configuration problem: unknown baud rate, empty
// label, invalid CLI combination. User-visible, non-zero exit.
func Config(format string, args ...any) *Error { return newf(kindConfig, format, args...) }

// IO wraps a serial, socket or signal-descriptor failure. Fatal to the
// owning reactor.
func IO(err error, msg string) *Error { return wrap(kindIO, err, msg) }

// Protocol reports a decoder-detected malformed escape or oversize
// packet. Recovered locally by the caller; never surfaced to a
// reactor.
func Protocol(format string, args ...any) *Error { return newf(kindProtocol, format, args...) }

// Framing reports an envelope label missing its trailing delimiter, or
// a target mismatch. Recovered by draining the message.
func Framing(format string, args ...any) *Error { return newf(kindFraming, format, args...) }

// Logic reports a codec operation-sequence violation (e.g. Close
// without Open). Indicates an implementation bug; always fatal.
func Logic(format string, args ...any) *Error { return newf(kindLogic, format, args...) }

func isKind(err error, k kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

func IsConfig(err error) bool   { return isKind(err, kindConfig) }
func IsIO(err error) bool       { return isKind(err, kindIO) }
func IsProtocol(err error) bool { return isKind(err, kindProtocol) }
func IsFraming(err error) bool  { return isKind(err, kindFraming) }
func IsLogic(err error) bool    { return isKind(err, kindLogic) }
