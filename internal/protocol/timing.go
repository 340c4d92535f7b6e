// internal/protocol/timing.go
package protocol

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrFrequencyTooLow is a request below MinClockHz. It is rejected, not rounded.
	ErrFrequencyTooLow = errors.New("protocol: clock frequency below floor")
	// ErrFrequencyTooHigh is a request whose half period would round below 1µs.
	ErrFrequencyTooHigh = errors.New("protocol: clock frequency too high")
)

// HalfPeriod returns round(1_000_000 / (2 × hz)) in microseconds, ties up.
// It performs no range check: HalfPeriod(10_000_000) is 0.
func HalfPeriod(hz int) int {
	if hz <= 0 {
		return 0
	}
	return (1_000_000 + hz) / (2 * hz)
}

// CheckClock validates a requested shift clock and returns its half period.
// Frequencies whose half period would round to zero are rejected rather
// than silently run at the 1µs floor.
func CheckClock(hz int) (int, error) {
	if hz < MinClockHz {
		return 0, fmt.Errorf("%w: %d Hz < %d Hz", ErrFrequencyTooLow, hz, MinClockHz)
	}
	if hz > MaxClockHz {
		return 0, fmt.Errorf("%w: %d Hz > %d Hz", ErrFrequencyTooHigh, hz, MaxClockHz)
	}
	half := HalfPeriod(hz)
	if half < 1 {
		return 0, fmt.Errorf("%w: %d Hz needs a half period under 1µs", ErrFrequencyTooHigh, hz)
	}
	return half, nil
}

// EffectiveHz is the clock the firmware actually produces for a half period.
func EffectiveHz(halfPeriodMicros int) int {
	if halfPeriodMicros <= 0 {
		return 0
	}
	return 1_000_000 / (2 * halfPeriodMicros)
}

// ShiftDuration is the wall time of one reset pulse plus a 128-bit shift.
func ShiftDuration(halfPeriodMicros int) time.Duration {
	cycles := ResetPulseCycles + PayloadSize*8
	return time.Duration(2*cycles*halfPeriodMicros) * time.Microsecond
}
