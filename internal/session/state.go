// internal/session/state.go
package session

import "fmt"

// State is the lifecycle position of a session. States only move forward;
// Completed and Failed are terminal.
type State int

const (
	Idle State = iota
	Encoding
	Transferring
	Generating
	Compiling
	Flashing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Encoding:
		return "encoding"
	case Transferring:
		return "transferring"
	case Generating:
		return "generating"
	case Compiling:
		return "compiling"
	case Flashing:
		return "flashing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether s ends a session.
func (s State) Terminal() bool { return s == Completed || s == Failed }

// Mode selects the transport variant.
type Mode int

const (
	FastTransfer Mode = iota + 1
	FullUpload
	Reset
)

func (m Mode) String() string {
	switch m {
	case FastTransfer:
		return "fast"
	case FullUpload:
		return "upload"
	case Reset:
		return "reset"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts the names String returns.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "fast", "transfer":
		return FastTransfer, nil
	case "upload":
		return FullUpload, nil
	case "reset":
		return Reset, nil
	default:
		return 0, fmt.Errorf("session: unknown mode %q", s)
	}
}
