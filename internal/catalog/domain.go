// internal/catalog/domain.go
package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Domain is the legal value set of a field and its mapping onto raw codes.
// Values outside the domain are rejected, never clamped.
type Domain interface {
	// encode maps a value onto a raw code that fits in width bits.
	encode(v float64, width uint) (uint64, bool)
	// decode is the inverse of encode. Codes that encode never produces
	// (e.g. an enum index past the end) report false.
	decode(code uint64, width uint) (float64, bool)
	// check verifies at catalog build time that the domain fits in width bits.
	check(width uint) error

	String() string
}

// ---- unsigned integer range ----

// Range is a closed unsigned integer range packed verbatim.
type Range struct {
	Min uint64
	Max uint64
}

// Flag is the single-bit 0..1 range used by enable bits.
var Flag = Range{Min: 0, Max: 1}

// Bits returns the full unsigned range of a width-bit field.
func Bits(width uint) Range {
	return Range{Min: 0, Max: maxCode(width)}
}

func (r Range) encode(v float64, width uint) (uint64, bool) {
	if !isIntegral(v) || v < 0 {
		return 0, false
	}
	if v >= 0x1p64 {
		return 0, false
	}
	u := uint64(v)
	if u < r.Min || u > r.Max {
		return 0, false
	}
	return u, true
}

func (r Range) decode(code uint64, width uint) (float64, bool) {
	if code < r.Min || code > r.Max {
		return 0, false
	}
	return float64(code), true
}

func (r Range) check(width uint) error {
	if r.Min > r.Max {
		return fmt.Errorf("range min %d > max %d", r.Min, r.Max)
	}
	if width > maxIntegerBits {
		return fmt.Errorf("integer range limited to %d bits, got %d", maxIntegerBits, width)
	}
	if r.Max > maxCode(width) {
		return fmt.Errorf("range max %d does not fit in %d bits", r.Max, width)
	}
	return nil
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.Min, r.Max)
}

// ---- signed integer range ----

// Signed is a closed signed integer range stored as width-bit two's complement.
type Signed struct {
	Min int64
	Max int64
}

func (s Signed) encode(v float64, width uint) (uint64, bool) {
	if !isIntegral(v) || v < float64(s.Min) || v > float64(s.Max) {
		return 0, false
	}
	return uint64(int64(v)) & maxCode(width), true
}

func (s Signed) decode(code uint64, width uint) (float64, bool) {
	if code > maxCode(width) {
		return 0, false
	}
	n := int64(code)
	if width < 64 && code&(1<<(width-1)) != 0 {
		n -= int64(1) << width
	}
	if n < s.Min || n > s.Max {
		return 0, false
	}
	return float64(n), true
}

func (s Signed) check(width uint) error {
	if s.Min > s.Max {
		return fmt.Errorf("signed min %d > max %d", s.Min, s.Max)
	}
	if width < 2 {
		return fmt.Errorf("signed domain needs at least 2 bits, got %d", width)
	}
	if width > maxIntegerBits {
		return fmt.Errorf("signed range limited to %d bits, got %d", maxIntegerBits, width)
	}
	lo := -(int64(1) << (width - 1))
	hi := int64(1)<<(width-1) - 1
	if s.Min < lo || s.Max > hi {
		return fmt.Errorf("signed range [%d, %d] does not fit in %d bits", s.Min, s.Max, width)
	}
	return nil
}

func (s Signed) String() string {
	return fmt.Sprintf("[%d, %d] signed", s.Min, s.Max)
}

// ---- enumerated values ----

// Enum is a discrete value set; a value's code is its index in Values.
type Enum struct {
	Values []float64
}

func (e Enum) encode(v float64, width uint) (uint64, bool) {
	for i, ev := range e.Values {
		if ev == v {
			return uint64(i), true
		}
	}
	return 0, false
}

func (e Enum) decode(code uint64, width uint) (float64, bool) {
	if code >= uint64(len(e.Values)) {
		return 0, false
	}
	return e.Values[code], true
}

func (e Enum) check(width uint) error {
	if len(e.Values) == 0 {
		return fmt.Errorf("enum has no values")
	}
	if uint64(len(e.Values)-1) > maxCode(width) {
		return fmt.Errorf("enum of %d values does not fit in %d bits", len(e.Values), width)
	}
	seen := make(map[float64]struct{}, len(e.Values))
	for _, v := range e.Values {
		if _, dup := seen[v]; dup {
			return fmt.Errorf("enum value %s listed twice", formatValue(v))
		}
		seen[v] = struct{}{}
	}
	return nil
}

func (e Enum) String() string {
	parts := make([]string, len(e.Values))
	for i, v := range e.Values {
		parts[i] = formatValue(v)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ---- linear (analog) scale ----

// Linear maps a physical quantity in [Min, Max] linearly onto the full code
// range of the field: Min is code 0 and Max is the all-ones code.
//
// Encoding rounds to the nearest code, ties rounding up.
type Linear struct {
	Min  float64
	Max  float64
	Unit string
}

func (l Linear) step(width uint) float64 {
	return (l.Max - l.Min) / float64(maxCode(width))
}

func (l Linear) encode(v float64, width uint) (uint64, bool) {
	if math.IsNaN(v) || v < l.Min || v > l.Max {
		return 0, false
	}
	code := roundHalfUp((v - l.Min) / l.step(width))
	if code > float64(maxCode(width)) {
		code = float64(maxCode(width))
	}
	return uint64(code), true
}

func (l Linear) decode(code uint64, width uint) (float64, bool) {
	if code > maxCode(width) {
		return 0, false
	}
	return l.Min + float64(code)*l.step(width), true
}

func (l Linear) check(width uint) error {
	if !(l.Max > l.Min) {
		return fmt.Errorf("linear scale needs max > min, got [%g, %g]", l.Min, l.Max)
	}
	if width > 52 {
		return fmt.Errorf("linear scale limited to 52 bits, got %d", width)
	}
	return nil
}

func (l Linear) String() string {
	if l.Unit != "" {
		return fmt.Sprintf("[%g, %g] %s", l.Min, l.Max, l.Unit)
	}
	return fmt.Sprintf("[%g, %g]", l.Min, l.Max)
}

// ---- helpers ----

// maxIntegerBits is the widest integer field whose every code a float64
// value holds exactly.
const maxIntegerBits = 53

func maxCode(width uint) uint64 {
	if width >= 64 {
		return math.MaxUint64
	}
	return 1<<width - 1
}

func isIntegral(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v == math.Trunc(v)
}

// roundHalfUp rounds x (>= 0) to the nearest integer, .5 going up.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
