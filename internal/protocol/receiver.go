// internal/protocol/receiver.go
package protocol

import (
	"github.com/tamzrod/register-programmer/internal/register"
)

// Receiver is a model of the target firmware's serial handler. It drives
// the link simulator and the tests; the real firmware follows the same rules.
//
// Capture is length aware: after StartMarker the next PayloadSize bytes are
// payload whatever their value, and the byte after them must be EndMarker.
// A frame that stops short is discarded when the line goes idle.
type Receiver struct {
	capturing bool
	buf       []byte
	reg       register.Image
	trace     []Sample

	// Applied is called with every image shifted out, in order.
	Applied func(register.Image)
}

// Feed consumes received bytes and returns the reply lines, newline included.
func (r *Receiver) Feed(b []byte) []string {
	var out []string
	for _, c := range b {
		out = append(out, r.feedByte(c)...)
	}
	return out
}

func (r *Receiver) feedByte(c byte) []string {
	if !r.capturing {
		switch c {
		case StartMarker:
			r.capturing = true
			r.buf = r.buf[:0]
		case ResetCommand:
			r.reg = register.Image{}
			r.trace = SynthesizeReset()
			return []string{TokenResetStarted + "\n", TokenResetComplete + "\n"}
		}
		// anything else between frames is line noise
		return nil
	}

	if len(r.buf) < PayloadSize {
		r.buf = append(r.buf, c)
		return nil
	}

	r.capturing = false
	if c != EndMarker {
		return []string{TokenInvalidSize + "\n"}
	}

	var img register.Image
	copy(img[:], r.buf)
	r.reg = img
	r.trace = Synthesize(img)
	if r.Applied != nil {
		r.Applied(img)
	}
	return []string{TokenDataUpdated + "\n", TokenTransferComplete + "\n"}
}

// Idle tells the receiver the line went quiet. An unfinished frame is
// dropped and reported as InvalidSize.
func (r *Receiver) Idle() []string {
	if !r.capturing {
		return nil
	}
	r.capturing = false
	r.buf = r.buf[:0]
	return []string{TokenInvalidSize + "\n"}
}

// Register is the image currently live on the downstream device.
func (r *Receiver) Register() register.Image { return r.reg }

// LastTrace is the waveform of the most recent shift or reset.
func (r *Receiver) LastTrace() []Sample { return r.trace }
