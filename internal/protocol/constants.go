// internal/protocol/constants.go
package protocol

// Fast-transfer wire constants.
// These values are shared with the target firmware and MUST NOT be configurable.

// ---- FRAMING ----

// StartMarker opens a data frame.
const StartMarker byte = '<'

// EndMarker closes a data frame.
const EndMarker byte = '>'

// ResetCommand is the bare, unframed reset control byte.
const ResetCommand byte = 'R'

// PayloadSize is the exact number of bytes between the markers.
const PayloadSize = 16

// FrameSize is a full data frame on the wire.
const FrameSize = PayloadSize + 2

// ---- ACKNOWLEDGEMENT TOKENS (newline terminated) ----

const (
	TokenDataUpdated      = "DATA_UPDATED"
	TokenTransferComplete = "TRANSFER_COMPLETE"
	TokenResetStarted     = "RESET_STARTED"
	TokenResetComplete    = "RESET_COMPLETE"
	TokenInvalidSize      = "ERROR_INVALID_DATA_SIZE"
)

// ---- LINK ----

// DefaultBaudRate is the UART speed of the target firmware.
const DefaultBaudRate = 115200

// ---- CLOCK ----

// MinClockHz and MaxClockHz bound the requested shift clock.
const (
	MinClockHz     = 50_000
	MaxClockHz     = 10_000_000
	DefaultClockHz = 100_000
)

// ResetPulseCycles is how long the firmware holds reset low before shifting.
const ResetPulseCycles = 4
