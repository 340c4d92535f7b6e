// internal/firmware/firmware_test.go
package firmware

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tamzrod/register-programmer/internal/protocol"
	"github.com/tamzrod/register-programmer/internal/register"
)

func testParams() Params {
	var img register.Image
	img[0] = 0x38
	img[15] = 0x80
	return Params{Image: img, ClockHz: 250_000, Pins: DefaultPins()}
}

// ---- render ----

func TestRender_DefaultTemplate(t *testing.T) {
	src, err := Render("", testParams())
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	for _, want := range []string{
		MarkerData + " byte Data[16] = {56,0,0,0,0,0,0,0,0,0,0,0,0,0,0,128};",
		MarkerClock + " int clk_freq_khz = 250;",
		"const int CLOCK_PIN = 18;",
		"const int RESET_PIN = 33;",
		"  sendDataSequence();\n}",
	} {
		if !strings.Contains(src, want) {
			t.Fatalf("rendered sketch missing %q", want)
		}
	}

	if n := strings.Count(src, "const int CLOCK_PIN"); n != 1 {
		t.Fatalf("CLOCK_PIN declared %d times", n)
	}
	if n := strings.Count(src, "const int LED_BUILTIN"); n != 1 {
		t.Fatalf("LED_BUILTIN declared %d times", n)
	}
}

func TestRender_Pins(t *testing.T) {
	p := testParams()
	p.Pins = Pins{Clock: 4, Data: 5, Shift: 12, Reset: 13}

	src, err := Render("", p)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		"const int CLOCK_PIN = 4;",
		"const int DATA_PIN = 5;",
		"const int SHIFT_PIN = 12;",
		"const int RESET_PIN = 13;",
	} {
		if !strings.Contains(src, want) {
			t.Fatalf("rendered sketch missing %q", want)
		}
	}
	if strings.Contains(src, "CLOCK_PIN = 18") {
		t.Fatalf("stale pin assignment left in sketch")
	}
}

func TestRender_Idempotent(t *testing.T) {
	once, err := Render("", testParams())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	twice, err := Render(once, testParams())
	if err != nil {
		t.Fatalf("re-render: %v", err)
	}
	if once != twice {
		t.Fatalf("rendering a rendered sketch changed it")
	}
}

func TestRender_Pure(t *testing.T) {
	a, _ := Render("", testParams())
	b, _ := Render("", testParams())
	if a != b {
		t.Fatalf("render is not deterministic")
	}
}

func TestRender_MissingMarker(t *testing.T) {
	tmpl := DefaultTemplate()

	tests := []struct {
		name   string
		old    string
		new    string
		marker string
	}{
		{"data", MarkerData, "// removed", MarkerData},
		{"clock", MarkerClock, "// removed", MarkerClock},
		{"pins", MarkerPins, "// removed", MarkerPins},
		{"setup call", "  sendResetSequence();\n}", "}", resetCall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broken := strings.Replace(tmpl, tt.old, tt.new, 1)

			_, err := Render(broken, testParams())
			var me *MissingMarkerError
			if !errors.As(err, &me) {
				t.Fatalf("got=%v want=MissingMarkerError", err)
			}
			if me.Marker != tt.marker {
				t.Fatalf("marker got=%q want=%q", me.Marker, tt.marker)
			}
		})
	}
}

func TestRender_RejectsClock(t *testing.T) {
	p := testParams()

	p.ClockHz = 40_000
	if _, err := Render("", p); !errors.Is(err, protocol.ErrFrequencyTooLow) {
		t.Fatalf("got=%v want=ErrFrequencyTooLow", err)
	}

	p.ClockHz = 100_500
	if _, err := Render("", p); !errors.Is(err, ErrClockNotKHz) {
		t.Fatalf("got=%v want=ErrClockNotKHz", err)
	}
}

func TestPins_Validate(t *testing.T) {
	tests := []struct {
		name string
		pins Pins
		ok   bool
	}{
		{"default", DefaultPins(), true},
		{"duplicate", Pins{Clock: 18, Data: 18, Shift: 26, Reset: 33}, false},
		{"led", Pins{Clock: 2, Data: 23, Shift: 26, Reset: 33}, false},
		{"negative", Pins{Clock: -1, Data: 23, Shift: 26, Reset: 33}, false},
		{"too high", Pins{Clock: 18, Data: 23, Shift: 26, Reset: 40}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pins.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("got=%v ok=%v", err, tt.ok)
			}
		})
	}
}

// ---- sketch ----

func TestWriteSketch(t *testing.T) {
	dir := t.TempDir()

	sketch, err := WriteSketch(dir, "void setup() {}\n")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if sketch != filepath.Join(dir, "main") {
		t.Fatalf("sketch=%q", sketch)
	}

	b, err := os.ReadFile(filepath.Join(sketch, "main.ino"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(b) != "void setup() {}\n" {
		t.Fatalf("content=%q", b)
	}
}

func TestLoadTemplate(t *testing.T) {
	src, err := LoadTemplate("")
	if err != nil || src != DefaultTemplate() {
		t.Fatalf("empty path should give embedded template, err=%v", err)
	}

	path := filepath.Join(t.TempDir(), "custom.ino")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err = LoadTemplate(path)
	if err != nil || src != "x" {
		t.Fatalf("got=%q err=%v", src, err)
	}

	if _, err := LoadTemplate(filepath.Join(t.TempDir(), "missing.ino")); err == nil {
		t.Fatalf("expected error for missing template")
	}
}

// ---- toolchain ----

type call struct {
	name string
	args []string
}

func fakeRunner(calls *[]call, out string, code int, err error) Runner {
	return func(ctx context.Context, name string, args ...string) ([]byte, int, error) {
		*calls = append(*calls, call{name: name, args: args})
		return []byte(out), code, err
	}
}

func TestArduinoCLI_CommandLines(t *testing.T) {
	var calls []call
	cli := &ArduinoCLI{Run: fakeRunner(&calls, "ok", 0, nil)}

	if err := cli.Compile(context.Background(), "/tmp/s/main"); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if err := cli.Upload(context.Background(), "/tmp/s/main", "/dev/ttyUSB0"); err != nil {
		t.Fatalf("upload: %v", err)
	}

	want := []string{
		"arduino-cli compile --fqbn esp32:esp32:esp32 /tmp/s/main",
		"arduino-cli upload -p /dev/ttyUSB0 --fqbn esp32:esp32:esp32 /tmp/s/main",
	}
	for i, c := range calls {
		got := c.name + " " + strings.Join(c.args, " ")
		if got != want[i] {
			t.Fatalf("call %d got=%q want=%q", i, got, want[i])
		}
	}
}

func TestArduinoCLI_Outcomes(t *testing.T) {
	tests := []struct {
		name   string
		upload bool
		out    string
		code   int
		err    error
		want   Outcome
	}{
		{"compile error", false, "main.ino:3: error: expected ';'", 1, nil, CompileFailure},
		{"flash error", true, "Failed to connect to ESP32: port busy", 2, nil, FlashFailure},
		{"missing tool", false, "", -1, errors.New("exec: \"arduino-cli\": executable file not found in $PATH"), ToolchainUnavailable},
		{"missing core", false, "Error during build: Platform not installed", 1, nil, ToolchainUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []call
			cli := &ArduinoCLI{Run: fakeRunner(&calls, tt.out, tt.code, tt.err)}

			var err error
			if tt.upload {
				err = cli.Upload(context.Background(), "s", "COM3")
			} else {
				err = cli.Compile(context.Background(), "s")
			}

			var te *ToolchainError
			if !errors.As(err, &te) {
				t.Fatalf("got=%v want=ToolchainError", err)
			}
			if te.Outcome != tt.want {
				t.Fatalf("outcome got=%v want=%v", te.Outcome, tt.want)
			}
			if te.Output != tt.out {
				t.Fatalf("diagnostic text lost: got=%q want=%q", te.Output, tt.out)
			}
		})
	}
}

func TestArduinoCLI_ContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls []call
	cli := &ArduinoCLI{Run: fakeRunner(&calls, "", -1, context.Canceled)}

	err := cli.Compile(ctx, "s")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got=%v want=context.Canceled", err)
	}
	var te *ToolchainError
	if errors.As(err, &te) {
		t.Fatalf("context error must not be classified as a toolchain outcome")
	}
}

func TestArduinoCLI_NotInstalled(t *testing.T) {
	cli := &ArduinoCLI{Path: filepath.Join(t.TempDir(), "no-such-arduino-cli")}

	err := cli.Compile(context.Background(), t.TempDir())
	var te *ToolchainError
	if !errors.As(err, &te) || te.Outcome != ToolchainUnavailable {
		t.Fatalf("got=%v want=toolchain unavailable", err)
	}
}

func TestArduinoCLI_UploadNeedsPort(t *testing.T) {
	var calls []call
	cli := &ArduinoCLI{Run: fakeRunner(&calls, "", 0, nil)}

	err := cli.Upload(context.Background(), "s", "")
	var te *ToolchainError
	if !errors.As(err, &te) || te.Outcome != FlashFailure {
		t.Fatalf("got=%v want=flash failure", err)
	}
	if len(calls) != 0 {
		t.Fatalf("toolchain invoked without a port")
	}
}
