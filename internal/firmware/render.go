// internal/firmware/render.go
package firmware

import (
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tamzrod/register-programmer/internal/protocol"
	"github.com/tamzrod/register-programmer/internal/register"
)

// Template substitution markers.
// These strings are shared with the sketch template and MUST NOT change.
const (
	MarkerData  = "/*MODIFY DATA HERE*/"
	MarkerClock = "/*MODIFY CLK_FREQ HERE*/"
	MarkerPins  = "/*MODIFY GPIO PINS HERE*/"

	resetCall = "sendResetSequence();"
	dataCall  = "sendDataSequence();"
)

// LEDPin is the on-board LED of the reference board.
const LEDPin = 2

//go:embed template/main.ino
var defaultTemplate string

// DefaultTemplate returns the sketch template shipped with the binary.
func DefaultTemplate() string { return defaultTemplate }

// MissingMarkerError reports a template that cannot carry the parameters.
type MissingMarkerError struct {
	Marker string
}

func (e *MissingMarkerError) Error() string {
	return fmt.Sprintf("firmware: template has no %q", e.Marker)
}

// ErrClockNotKHz is returned for a clock the sketch's kHz constant cannot hold.
var ErrClockNotKHz = errors.New("firmware: clock must be a whole number of kHz")

// Pins is the GPIO assignment of the shift interface.
type Pins struct {
	Clock int `yaml:"clock"`
	Data  int `yaml:"data"`
	Shift int `yaml:"shift"`
	Reset int `yaml:"reset"`
}

// DefaultPins matches the reference board wiring.
func DefaultPins() Pins {
	return Pins{Clock: 18, Data: 23, Shift: 26, Reset: 33}
}

// Validate checks range and uniqueness, the LED pin included.
func (p Pins) Validate() error {
	seen := map[int]string{LEDPin: "led"}
	for _, pin := range []struct {
		name string
		n    int
	}{
		{"clock", p.Clock},
		{"data", p.Data},
		{"shift", p.Shift},
		{"reset", p.Reset},
	} {
		if pin.n < 0 || pin.n > 39 {
			return fmt.Errorf("firmware: %s pin %d out of range 0..39", pin.name, pin.n)
		}
		if other, dup := seen[pin.n]; dup {
			return fmt.Errorf("firmware: %s pin %d already used by %s", pin.name, pin.n, other)
		}
		seen[pin.n] = pin.name
	}
	return nil
}

// Params are the values baked into a generated sketch.
type Params struct {
	Image   register.Image
	ClockHz int
	Pins    Pins
}

// Render substitutes params into tmpl. It is pure; an empty tmpl means the
// embedded template. Every marker must be present, and setup() must make
// either sequence call.
func Render(tmpl string, p Params) (string, error) {
	if tmpl == "" {
		tmpl = defaultTemplate
	}
	if _, err := protocol.CheckClock(p.ClockHz); err != nil {
		return "", err
	}
	if p.ClockHz%1000 != 0 {
		return "", fmt.Errorf("%w: %d Hz", ErrClockNotKHz, p.ClockHz)
	}
	if err := p.Pins.Validate(); err != nil {
		return "", err
	}

	var out strings.Builder
	var sawData, sawClock, sawPins, sawSeq bool
	var inSetup, skipPins bool

	lines := strings.Split(tmpl, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "void setup()") {
			inSetup = true
		} else if inSetup && trimmed == "}" {
			inSetup = false
		}

		if skipPins {
			if isPinLine(trimmed) {
				continue
			}
			skipPins = false
		}

		switch {
		case strings.HasPrefix(line, MarkerData):
			line = dataLine(p.Image)
			sawData = true
		case strings.HasPrefix(line, MarkerClock):
			line = MarkerClock + " int clk_freq_khz = " + strconv.Itoa(p.ClockHz/1000) + ";"
			sawClock = true
		case strings.HasPrefix(line, MarkerPins):
			line = pinBlock(p.Pins)
			sawPins = true
			skipPins = true
		case inSetup && trimmed == resetCall:
			line = "  " + dataCall
			sawSeq = true
		case inSetup && trimmed == dataCall:
			sawSeq = true
		}

		out.WriteString(line)
		if i < len(lines)-1 {
			out.WriteByte('\n')
		}
	}

	switch {
	case !sawData:
		return "", &MissingMarkerError{Marker: MarkerData}
	case !sawClock:
		return "", &MissingMarkerError{Marker: MarkerClock}
	case !sawPins:
		return "", &MissingMarkerError{Marker: MarkerPins}
	case !sawSeq:
		return "", &MissingMarkerError{Marker: resetCall}
	}

	return out.String(), nil
}

func dataLine(img register.Image) string {
	parts := make([]string, len(img))
	for i, b := range img {
		parts[i] = strconv.Itoa(int(b))
	}
	return MarkerData + " byte Data[16] = {" + strings.Join(parts, ",") + "};"
}

func pinBlock(p Pins) string {
	return MarkerPins + "\n" +
		"const int CLOCK_PIN = " + strconv.Itoa(p.Clock) + ";\n" +
		"const int DATA_PIN = " + strconv.Itoa(p.Data) + ";\n" +
		"const int SHIFT_PIN = " + strconv.Itoa(p.Shift) + ";\n" +
		"const int RESET_PIN = " + strconv.Itoa(p.Reset) + ";\n" +
		"const int LED_BUILTIN = " + strconv.Itoa(LEDPin) + ";"
}

func isPinLine(trimmed string) bool {
	for _, prefix := range []string{
		"const int CLOCK_PIN",
		"const int DATA_PIN",
		"const int SHIFT_PIN",
		"const int RESET_PIN",
		"const int LED_BUILTIN",
	} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}
