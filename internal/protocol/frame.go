// internal/protocol/frame.go
package protocol

import (
	"errors"
	"fmt"

	"github.com/tamzrod/register-programmer/internal/register"
)

// ErrInvalidSize is the target's verdict on a frame whose payload is not
// exactly PayloadSize bytes. It is recoverable: the target discarded the
// buffer and is ready for a new frame.
var ErrInvalidSize = errors.New("protocol: invalid data size")

// DataFrame builds the wire frame for img: '<', 16 bytes MSB first, '>'.
func DataFrame(img register.Image) []byte {
	f := make([]byte, 0, FrameSize)
	f = append(f, StartMarker)
	f = append(f, img[:]...)
	f = append(f, EndMarker)
	return f
}

// ResetFrame is the single reset control byte.
func ResetFrame() []byte {
	return []byte{ResetCommand}
}

// CheckFrame verifies the framing of an outgoing data frame.
// A payload of any length other than PayloadSize reports ErrInvalidSize.
func CheckFrame(f []byte) error {
	if len(f) < 2 || f[0] != StartMarker || f[len(f)-1] != EndMarker {
		return errors.New("protocol: frame is not enclosed in markers")
	}
	if n := len(f) - 2; n != PayloadSize {
		return fmt.Errorf("%w: payload %d bytes, want %d", ErrInvalidSize, n, PayloadSize)
	}
	return nil
}
