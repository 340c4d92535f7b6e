// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tamzrod/register-programmer/internal/firmware"
	"github.com/tamzrod/register-programmer/internal/protocol"
)

// DefaultPath is read when no --config is given.
const DefaultPath = "regprog.yaml"

type Config struct {
	Serial   SerialConfig   `yaml:"serial"`
	Transfer TransferConfig `yaml:"transfer"`
	Firmware FirmwareConfig `yaml:"firmware"`
	Presets  PresetsConfig  `yaml:"presets"`
	Status   StatusConfig   `yaml:"status"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ---- SERIAL ----

type SerialConfig struct {
	Port           string `yaml:"port"` // "sim" selects the in-process simulator
	BaudRate       int    `yaml:"baud"`
	SettleMs       int    `yaml:"settle_ms"`
	AckTimeoutMs   int    `yaml:"ack_timeout_ms"`
	ResetTimeoutMs int    `yaml:"reset_timeout_ms"`
}

// ---- TRANSFER ----

type TransferConfig struct {
	ClockHz int    `yaml:"clock_hz"`
	Mode    string `yaml:"mode"` // fast | upload
	DumpTo  string `yaml:"dump_to"`
}

// ---- FIRMWARE ----

type FirmwareConfig struct {
	SketchDir string        `yaml:"sketch_dir"`
	Template  string        `yaml:"template"` // empty = embedded
	CLI       string        `yaml:"cli"`
	FQBN      string        `yaml:"fqbn"`
	TimeoutMs int           `yaml:"timeout_ms"`
	Pins      firmware.Pins `yaml:"pins"`
}

// ---- PRESETS ----

type PresetsConfig struct {
	Backend string      `yaml:"backend"` // file | redis
	Dir     string      `yaml:"dir"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ---- STATUS MIRROR ----

type StatusConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint16 `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`

	// Device status block (optional, opt-in)
	Slot       *uint16 `yaml:"slot"`
	DeviceName string  `yaml:"device_name"`
}

// Enabled reports whether the status block was opted in.
func (s StatusConfig) Enabled() bool { return s.Slot != nil }

// ---- LOG / METRICS ----

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty = off
}

// Default is the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			BaudRate:       protocol.DefaultBaudRate,
			SettleMs:       100,
			AckTimeoutMs:   5000,
			ResetTimeoutMs: 3000,
		},
		Transfer: TransferConfig{
			ClockHz: protocol.DefaultClockHz,
			Mode:    "fast",
		},
		Firmware: FirmwareConfig{
			SketchDir: "sketch",
			CLI:       firmware.DefaultCLI,
			FQBN:      firmware.DefaultFQBN,
			TimeoutMs: 300000,
			Pins:      firmware.DefaultPins(),
		},
		Presets: PresetsConfig{
			Backend: "file",
			Dir:     "presets",
		},
		Status: StatusConfig{
			TimeoutMs: 1000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over Default. A missing file is not an error; a present
// but malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Ms converts a millisecond config value.
func Ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
