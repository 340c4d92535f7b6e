// internal/protocol/ack.go
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Ack is one acknowledgement token from the target.
type Ack int

const (
	AckDataAccepted Ack = iota + 1
	AckTransferComplete
	AckResetStarted
	AckResetComplete
	AckInvalidSize
)

var ackTokens = map[string]Ack{
	TokenDataUpdated:      AckDataAccepted,
	TokenTransferComplete: AckTransferComplete,
	TokenResetStarted:     AckResetStarted,
	TokenResetComplete:    AckResetComplete,
	TokenInvalidSize:      AckInvalidSize,
}

func (a Ack) String() string {
	switch a {
	case AckDataAccepted:
		return TokenDataUpdated
	case AckTransferComplete:
		return TokenTransferComplete
	case AckResetStarted:
		return TokenResetStarted
	case AckResetComplete:
		return TokenResetComplete
	case AckInvalidSize:
		return TokenInvalidSize
	default:
		return fmt.Sprintf("Ack(%d)", int(a))
	}
}

// ErrUnrecognized marks a line that is not one of the five tokens.
var ErrUnrecognized = errors.New("protocol: unrecognized acknowledgement")

// AckError carries the offending line verbatim.
type AckError struct {
	Line string
	Want Ack // zero when any token was acceptable
	Got  Ack // zero when the line was not a token at all
}

func (e *AckError) Error() string {
	if e.Got == 0 {
		return fmt.Sprintf("protocol: unrecognized acknowledgement %q", e.Line)
	}
	return fmt.Sprintf("protocol: unexpected acknowledgement %s, want %s", e.Got, e.Want)
}

func (e *AckError) Unwrap() error {
	if e.Got == 0 {
		return ErrUnrecognized
	}
	if e.Got == AckInvalidSize {
		return ErrInvalidSize
	}
	return nil
}

// ParseAck decodes one received line. Trailing CR/LF and surrounding blanks
// are ignored; anything else must match a token exactly.
func ParseAck(line string) (Ack, error) {
	tok := strings.TrimSpace(line)
	if a, ok := ackTokens[tok]; ok {
		return a, nil
	}
	return 0, &AckError{Line: line}
}

// Expect parses line and requires it to be want.
// An InvalidSize token unwraps to ErrInvalidSize.
func Expect(line string, want Ack) error {
	got, err := ParseAck(line)
	if err != nil {
		return err
	}
	if got != want {
		return &AckError{Line: line, Want: want, Got: got}
	}
	return nil
}
