// internal/status/constants.go
package status

// Programmer Status Block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of holding registers per programmer.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the programmer health state.
const SlotHealthCode = 0

// SlotLastErrorCode holds the taxonomy code of the last failed session (0 = none).
const SlotLastErrorCode = 1

// SlotSessionCount holds the number of finished sessions. It saturates.
const SlotSessionCount = 2

// ---- REGISTER IMAGE ----

// SlotImageStart is the first of eight slots holding the last image written
// to the chip, most significant word first.
const SlotImageStart = 3

// SlotImageSlots is the number of slots holding the image.
const SlotImageSlots = 8

// SlotImageEnd is the last image slot (inclusive).
const SlotImageEnd = SlotImageStart + SlotImageSlots - 1

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// Slot 19 is reserved.

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// ---- HEALTH CODES ----

// HealthUnknown is the state before the first session.
const HealthUnknown uint16 = 0

// HealthOK means the last session completed.
const HealthOK uint16 = 1

// HealthError means the last session failed.
const HealthError uint16 = 2

// HealthBusy means a session is in flight.
const HealthBusy uint16 = 3
