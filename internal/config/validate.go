// internal/config/validate.go
package config

import (
	"fmt"
	"net"

	"github.com/tamzrod/register-programmer/internal/protocol"
	"github.com/tamzrod/register-programmer/internal/session"
	"github.com/tamzrod/register-programmer/internal/status"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}

	// ------------------------------------------------------------
	// SERIAL LINK
	// ------------------------------------------------------------

	if cfg.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial: baud must be > 0 (got %d)", cfg.Serial.BaudRate)
	}
	if cfg.Serial.SettleMs < 0 {
		return fmt.Errorf("serial: settle_ms must be >= 0 (got %d)", cfg.Serial.SettleMs)
	}
	if cfg.Serial.AckTimeoutMs <= 0 {
		return fmt.Errorf("serial: ack_timeout_ms must be > 0 (got %d)", cfg.Serial.AckTimeoutMs)
	}
	if cfg.Serial.ResetTimeoutMs <= 0 {
		return fmt.Errorf("serial: reset_timeout_ms must be > 0 (got %d)", cfg.Serial.ResetTimeoutMs)
	}

	// ------------------------------------------------------------
	// TRANSFER
	// ------------------------------------------------------------

	if _, err := protocol.CheckClock(cfg.Transfer.ClockHz); err != nil {
		return fmt.Errorf("transfer: clock_hz: %w", err)
	}
	mode, err := session.ParseMode(cfg.Transfer.Mode)
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if mode == session.Reset {
		return fmt.Errorf("transfer: mode must be fast or upload (got %q)", cfg.Transfer.Mode)
	}

	// ------------------------------------------------------------
	// FIRMWARE
	// ------------------------------------------------------------

	if cfg.Firmware.SketchDir == "" {
		return fmt.Errorf("firmware: sketch_dir is required")
	}
	if cfg.Firmware.TimeoutMs <= 0 {
		return fmt.Errorf("firmware: timeout_ms must be > 0 (got %d)", cfg.Firmware.TimeoutMs)
	}
	if err := cfg.Firmware.Pins.Validate(); err != nil {
		return err
	}

	// ------------------------------------------------------------
	// PRESETS
	// ------------------------------------------------------------

	switch cfg.Presets.Backend {
	case "file":
		if cfg.Presets.Dir == "" {
			return fmt.Errorf("presets: dir is required for the file backend")
		}
	case "redis":
		if cfg.Presets.Redis.Addr == "" {
			return fmt.Errorf("presets: redis.addr is required for the redis backend")
		}
		if _, _, err := net.SplitHostPort(cfg.Presets.Redis.Addr); err != nil {
			return fmt.Errorf("presets: redis.addr %q: %w", cfg.Presets.Redis.Addr, err)
		}
		if cfg.Presets.Redis.DB < 0 {
			return fmt.Errorf("presets: redis.db must be >= 0 (got %d)", cfg.Presets.Redis.DB)
		}
	default:
		return fmt.Errorf("presets: unknown backend %q (want file or redis)", cfg.Presets.Backend)
	}

	// ------------------------------------------------------------
	// DEVICE STATUS BLOCK VALIDATION (OPT-IN)
	// ------------------------------------------------------------

	// device_name sanity (ASCII only)
	for i := 0; i < len(cfg.Status.DeviceName); i++ {
		if cfg.Status.DeviceName[i] > 0x7F {
			return fmt.Errorf("status: device_name must contain ASCII characters only")
		}
	}

	if cfg.Status.Enabled() {
		if cfg.Status.Endpoint == "" {
			return fmt.Errorf("status: slot is set but no endpoint is defined")
		}
		if cfg.Status.UnitID > 0xFF {
			return fmt.Errorf("status: unit_id out of range (0..255): %d", cfg.Status.UnitID)
		}
		if cfg.Status.TimeoutMs <= 0 {
			return fmt.Errorf("status: timeout_ms must be > 0 (got %d)", cfg.Status.TimeoutMs)
		}
		base := uint32(*cfg.Status.Slot) * status.SlotsPerDevice
		if base+status.SlotsPerDevice-1 > 0xFFFF {
			return fmt.Errorf("status: slot %d does not fit the register space", *cfg.Status.Slot)
		}
	}

	// ------------------------------------------------------------
	// LOG / METRICS
	// ------------------------------------------------------------

	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log: unknown format %q (want text or json)", cfg.Log.Format)
	}
	if cfg.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			return fmt.Errorf("metrics: listen %q: %w", cfg.Metrics.Listen, err)
		}
	}

	return nil
}
