// internal/preset/preset.go
package preset

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tamzrod/register-programmer/internal/catalog"
	"github.com/tamzrod/register-programmer/internal/register"
)

// ErrNotFound is returned for a preset name with no stored preset.
var ErrNotFound = errors.New("preset: not found")

// Preset is a named snapshot of field values plus the transfer settings
// that went with them.
type Preset struct {
	Name    string          `yaml:"name"`
	Values  register.Values `yaml:"values"`
	ClockHz int             `yaml:"clock_hz,omitempty"`
	Port    string          `yaml:"port,omitempty"`
	Saved   time.Time       `yaml:"saved"`
}

// Store persists presets by name.
type Store interface {
	Save(ctx context.Context, p Preset) error
	Load(ctx context.Context, name string) (Preset, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// ValidateName rejects names that are not safe as a file stem or key suffix.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("preset: invalid name %q", name)
	}
	return nil
}

// Check verifies that every value encodes against cat.
func (p Preset) Check(cat *catalog.Catalog) error {
	if _, err := register.Encode(cat, p.Values); err != nil {
		return fmt.Errorf("preset %s: %w", p.Name, err)
	}
	return nil
}

// ---- encoding shared by the backends ----

func marshal(p Preset) ([]byte, error) {
	if err := ValidateName(p.Name); err != nil {
		return nil, err
	}
	if p.Values == nil {
		p.Values = register.Values{}
	}
	b, err := yaml.Marshal(&p)
	if err != nil {
		return nil, fmt.Errorf("preset: encode %s: %w", p.Name, err)
	}
	return b, nil
}

func unmarshal(name string, b []byte) (Preset, error) {
	var p Preset
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Preset{}, fmt.Errorf("preset: decode %s: %w", name, err)
	}
	if p.Name == "" {
		p.Name = name
	}
	if p.Values == nil {
		p.Values = register.Values{}
	}
	return p, nil
}
