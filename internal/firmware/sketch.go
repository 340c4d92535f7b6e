// internal/firmware/sketch.go
package firmware

import (
	"fmt"
	"os"
	"path/filepath"
)

// SketchName is the sketch folder and main file stem; arduino-cli requires
// the two to match.
const SketchName = "main"

// WriteSketch materialises src as <dir>/main/main.ino and returns the
// sketch folder.
func WriteSketch(dir, src string) (string, error) {
	sketch := filepath.Join(dir, SketchName)
	if err := os.MkdirAll(sketch, 0o755); err != nil {
		return "", fmt.Errorf("firmware: create sketch dir: %w", err)
	}

	path := filepath.Join(sketch, SketchName+".ino")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(src), 0o644); err != nil {
		return "", fmt.Errorf("firmware: write sketch: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("firmware: write sketch: %w", err)
	}
	return sketch, nil
}

// LoadTemplate reads a template file; an empty path means the embedded one.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return defaultTemplate, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("firmware: read template: %w", err)
	}
	return string(b), nil
}
