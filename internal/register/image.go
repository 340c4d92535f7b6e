// internal/register/image.go
package register

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Size is the register length in bytes.
const Size = 16

// Image is the canonical 128-bit register value.
// Byte 0 holds bits 127..120; bit 127 is the first bit on the wire.
type Image [Size]byte

// Bit returns bit n (0 = LSB of byte 15, 127 = MSB of byte 0).
func (img Image) Bit(n uint) uint8 {
	byteIdx := Size - 1 - int(n/8)
	return (img[byteIdx] >> (n % 8)) & 1
}

// Bytes returns a copy of the image, most significant byte first.
func (img Image) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, img[:])
	return out
}

// Words returns the image as eight big-endian 16-bit words, high word first.
func (img Image) Words() []uint16 {
	out := make([]uint16, Size/2)
	for i := range out {
		out[i] = uint16(img[2*i])<<8 | uint16(img[2*i+1])
	}
	return out
}

// FromWords is the inverse of Words. Missing words are zero; extra words
// are ignored.
func FromWords(words []uint16) Image {
	var img Image
	for i := 0; i < len(words) && i < Size/2; i++ {
		img[2*i] = byte(words[i] >> 8)
		img[2*i+1] = byte(words[i])
	}
	return img
}

// String is the 32-digit hex form accepted by ParseHex.
func (img Image) String() string {
	return hex.EncodeToString(img[:])
}

// ParseHex reads an image from 32 hex digits. Spaces, underscores and a
// leading 0x are ignored.
func ParseHex(s string) (Image, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", "_", "").Replace(s)

	var img Image
	if len(s) != 2*Size {
		return img, fmt.Errorf("register: want %d hex digits, got %d", 2*Size, len(s))
	}
	if _, err := hex.Decode(img[:], []byte(s)); err != nil {
		return img, fmt.Errorf("register: %w", err)
	}
	return img, nil
}

// getBits extracts width bits starting at offset.
func (img Image) getBits(offset, width uint) uint64 {
	var v uint64
	for i := int(width) - 1; i >= 0; i-- {
		v = v<<1 | uint64(img.Bit(offset+uint(i)))
	}
	return v
}

// setBits ORs code into [offset, offset+width). Callers guarantee the span is
// unowned so far, which makes the order of writes irrelevant.
func (img *Image) setBits(offset, width uint, code uint64) {
	for i := uint(0); i < width; i++ {
		if code>>i&1 == 0 {
			continue
		}
		n := offset + i
		img[Size-1-int(n/8)] |= 1 << (n % 8)
	}
}
