// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/register-programmer/internal/status"
)

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	At time.Time

	// Registers is the raw status block as read.
	Registers  []uint16
	Snapshot   status.Snapshot
	DeviceName string

	Err error // non-nil means the poll cycle failed
}
