// internal/protocol/waveform.go
package protocol

import (
	"fmt"

	"github.com/tamzrod/register-programmer/internal/register"
)

// Sample is the level of the four target outputs during one half period.
// ResetN is active low.
type Sample struct {
	Clock  bool
	Data   bool
	Shift  bool
	ResetN bool
}

// SynthesizeReset renders the reset pulse alone: ResetPulseCycles clock
// cycles with ResetN low, followed by one idle half period.
func SynthesizeReset() []Sample {
	tr := make([]Sample, 0, 2*ResetPulseCycles+1)
	for i := 0; i < ResetPulseCycles; i++ {
		tr = append(tr, Sample{Clock: false}, Sample{Clock: true})
	}
	return append(tr, Sample{ResetN: true})
}

// Synthesize renders the reference waveform for shifting img: the reset
// pulse, then 128 bits MSB first with data stable around each rising clock
// edge and Shift high for the whole window, then Shift dropped at once.
func Synthesize(img register.Image) []Sample {
	tr := SynthesizeReset()
	for n := int(register.Size*8) - 1; n >= 0; n-- {
		d := img.Bit(uint(n)) == 1
		tr = append(tr,
			Sample{Clock: false, Data: d, Shift: true, ResetN: true},
			Sample{Clock: true, Data: d, Shift: true, ResetN: true},
		)
	}
	return append(tr, Sample{ResetN: true})
}

// Verify checks a captured trace against the timing contract and returns the
// image it shifted in:
//   - ResetN is low for at least ResetPulseCycles cycles and high again
//     strictly before Shift rises;
//   - Shift stays high across exactly 128 rising clock edges, ResetN high;
//   - data is sampled on rising edges, bit 127 first;
//   - Shift drops within one half period of the last rising edge.
func Verify(tr []Sample) (register.Image, error) {
	var img register.Image

	start := -1
	for i, s := range tr {
		if s.Shift {
			start = i
			break
		}
	}
	if start < 0 {
		return img, fmt.Errorf("protocol: trace: shift never asserted")
	}

	// reset pulse must precede the window
	lowRun, maxLowRun, lastLow := 0, 0, -1
	for i := 0; i < start; i++ {
		if !tr[i].ResetN {
			lowRun++
			lastLow = i
			if lowRun > maxLowRun {
				maxLowRun = lowRun
			}
		} else {
			lowRun = 0
		}
	}
	if maxLowRun < 2*ResetPulseCycles {
		return img, fmt.Errorf("protocol: trace: reset low for %d half periods, want >= %d",
			maxLowRun, 2*ResetPulseCycles)
	}
	if lastLow >= start-1 {
		return img, fmt.Errorf("protocol: trace: reset not released before shift")
	}

	end := len(tr)
	for i := start; i < len(tr); i++ {
		if !tr[i].Shift {
			end = i
			break
		}
		if !tr[i].ResetN {
			return img, fmt.Errorf("protocol: trace: reset asserted during shift at sample %d", i)
		}
	}
	if end == len(tr) {
		return img, fmt.Errorf("protocol: trace: shift never deasserted")
	}

	bits, lastRise := 0, -1
	for i := start; i < end; i++ {
		if !tr[i].Clock || tr[i-1].Clock {
			continue
		}
		if bits == register.Size*8 {
			return img, fmt.Errorf("protocol: trace: more than %d clock edges in shift window", register.Size*8)
		}
		if tr[i].Data {
			n := uint(register.Size*8 - 1 - bits)
			img[register.Size-1-int(n/8)] |= 1 << (n % 8)
		}
		bits++
		lastRise = i
	}
	if bits != register.Size*8 {
		return img, fmt.Errorf("protocol: trace: %d clock edges in shift window, want %d", bits, register.Size*8)
	}
	if end-lastRise > 1 {
		return img, fmt.Errorf("protocol: trace: shift held %d half periods past the last bit", end-lastRise-1)
	}

	return img, nil
}
