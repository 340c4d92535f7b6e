// internal/session/errors.go
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/tamzrod/register-programmer/internal/firmware"
	"github.com/tamzrod/register-programmer/internal/link"
	"github.com/tamzrod/register-programmer/internal/protocol"
	"github.com/tamzrod/register-programmer/internal/register"
)

// Kind is the failure taxonomy. The numeric value is the code published in
// the status mirror and MUST NOT be renumbered.
type Kind uint16

const (
	KindEncoding             Kind = 1
	KindProtocol             Kind = 2
	KindTransport            Kind = 3
	KindCompile              Kind = 4
	KindFlash                Kind = 5
	KindToolchainUnavailable Kind = 6
	KindBusy                 Kind = 7
	KindCancelled            Kind = 8
	KindTimeout              Kind = 9
	KindInvalidRequest       Kind = 10
)

func (k Kind) String() string {
	switch k {
	case KindEncoding:
		return "EncodingError"
	case KindProtocol:
		return "ProtocolError"
	case KindTransport:
		return "TransportError"
	case KindCompile:
		return "CompileFailure"
	case KindFlash:
		return "FlashFailure"
	case KindToolchainUnavailable:
		return "ToolchainUnavailable"
	case KindBusy:
		return "SessionBusy"
	case KindCancelled:
		return "Cancelled"
	case KindTimeout:
		return "Timeout"
	case KindInvalidRequest:
		return "InvalidRequest"
	default:
		return fmt.Sprintf("Kind(%d)", uint16(k))
	}
}

// ErrBusy is wrapped by the error Start returns while another session holds
// the transport.
var ErrBusy = errors.New("session: busy")

// ErrCancelled is wrapped by a Cancelled failure.
var ErrCancelled = errors.New("session: cancelled")

// Error is a classified session failure. Detail carries diagnostic text
// verbatim, such as toolchain output or the offending acknowledgement line.
type Error struct {
	Kind   Kind
	State  State // state the session was in when it failed
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("session: %s in %s", e.Kind, e.State)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Code is the taxonomy code for the status mirror.
func (e *Error) Code() uint16 { return uint16(e.Kind) }

// CodeUnclassified is the code for an error outside the taxonomy. It is
// distinct from every Kind.
const CodeUnclassified uint16 = 100

// CodeOf returns the taxonomy code of err: 0 for nil, the Kind's code for a
// classified failure and CodeUnclassified for anything else.
func CodeOf(err error) uint16 {
	if err == nil {
		return 0
	}
	if k := KindOf(err); k != 0 {
		return uint16(k)
	}
	return CodeUnclassified
}

// KindOf returns the taxonomy kind of err, or 0 when err is not classified.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// classify maps a step failure onto the taxonomy. fallback is used for
// errors with no better home, typically transport errors.
func classify(state State, err error, fallback Kind) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}

	e := &Error{Kind: fallback, State: state, Err: err}

	var (
		te  *firmware.ToolchainError
		ae  *protocol.AckError
		oor *register.OutOfRangeError
		uf  *register.UnknownFieldError
	)

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, ErrCancelled):
		e.Kind = KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		e.Kind = KindTimeout
	case errors.As(err, &te):
		switch te.Outcome {
		case firmware.CompileFailure:
			e.Kind = KindCompile
		case firmware.FlashFailure:
			e.Kind = KindFlash
		default:
			e.Kind = KindToolchainUnavailable
		}
		e.Detail = te.Output
	case errors.As(err, &ae):
		e.Kind = KindProtocol
		e.Detail = ae.Line
	case errors.Is(err, link.ErrLineTooLong):
		e.Kind = KindProtocol
	case errors.As(err, &oor), errors.As(err, &uf):
		e.Kind = KindEncoding
	}

	return e
}
