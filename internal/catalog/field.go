// internal/catalog/field.go
package catalog

import "fmt"

// RegisterBits is the size of the configuration register.
const RegisterBits = 128

// FieldSpec declares one named slice of the register.
// Bit positions count from 0 (LSB, last on the wire) to 127 (MSB, first on the wire).
type FieldSpec struct {
	Name   string
	Group  string
	Offset uint // lowest bit owned by the field
	Width  uint
	Domain Domain
	Help   string
}

// High returns the highest bit owned by the field (inclusive).
func (f FieldSpec) High() uint {
	return f.Offset + f.Width - 1
}

// Encode maps v onto the field's raw code.
// It reports false when v is outside the domain.
func (f FieldSpec) Encode(v float64) (uint64, bool) {
	return f.Domain.encode(v, f.Width)
}

// Decode maps a raw code back onto a value.
// It reports false for codes the domain never produces.
func (f FieldSpec) Decode(code uint64) (float64, bool) {
	return f.Domain.decode(code, f.Width)
}

// Default returns the value a field takes when a caller leaves it out:
// the value of code 0 when that code is legal, otherwise ok is false.
func (f FieldSpec) Default() (v float64, ok bool) {
	return f.Decode(0)
}

func (f FieldSpec) String() string {
	if f.Width == 1 {
		return fmt.Sprintf("%s bit %d %s", f.Name, f.Offset, f.Domain)
	}
	return fmt.Sprintf("%s bits %d..%d %s", f.Name, f.High(), f.Offset, f.Domain)
}
