// internal/status/encode.go
package status

import "errors"

// Encode converts a Snapshot and device name into a full status block.
// Layout is protocol-locked.
// No IO. No side effects.
func Encode(s Snapshot, name string) []uint16 {
	regs := make([]uint16, SlotsPerDevice)

	regs[SlotHealthCode] = s.Health
	regs[SlotLastErrorCode] = s.LastErrorCode
	regs[SlotSessionCount] = s.Sessions
	copy(regs[SlotImageStart:SlotImageEnd+1], s.Image[:])
	copy(regs[SlotDeviceNameStart:SlotDeviceNameEnd+1], EncodeDeviceName(name))

	return regs
}

// Decode is the inverse of Encode for a block read back from the mirror.
func Decode(regs []uint16) (Snapshot, string, error) {
	if len(regs) != SlotsPerDevice {
		return Snapshot{}, "", errors.New("status: block must be 20 registers")
	}

	var s Snapshot
	s.Health = regs[SlotHealthCode]
	s.LastErrorCode = regs[SlotLastErrorCode]
	s.Sessions = regs[SlotSessionCount]
	copy(s.Image[:], regs[SlotImageStart:SlotImageEnd+1])

	name := make([]byte, 0, DeviceNameMaxChars)
	for _, r := range regs[SlotDeviceNameStart : SlotDeviceNameEnd+1] {
		for _, b := range []byte{byte(r >> 8), byte(r)} {
			if b != 0 {
				name = append(name, b)
			}
		}
	}
	return s, string(name), nil
}

// EncodeDeviceName packs up to 16 ASCII characters into 8 registers,
// two bytes per register, big-endian. Non-printable bytes become '?'.
func EncodeDeviceName(name string) []uint16 {
	out := make([]uint16, SlotDeviceNameSlots)

	b := []byte(name)
	if len(b) > DeviceNameMaxChars {
		b = b[:DeviceNameMaxChars]
	}

	for i := 0; i < len(b); i++ {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < DeviceNameMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}

	return out
}
