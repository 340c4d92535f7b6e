// internal/config/normalize.go
package config

import (
	"github.com/tamzrod/register-programmer/internal/preset"
	"github.com/tamzrod/register-programmer/internal/status"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ------------------------------------------------------------
	// DEVICE STATUS BLOCK NORMALIZATION
	// ------------------------------------------------------------

	// Normalize device_name:
	// - ASCII already validated
	// - Truncate to max 16 characters
	if len(cfg.Status.DeviceName) > status.DeviceNameMaxChars {
		cfg.Status.DeviceName = cfg.Status.DeviceName[:status.DeviceNameMaxChars]
	}

	// ------------------------------------------------------------
	// PRESET BACKEND DEFAULTS
	// ------------------------------------------------------------

	if cfg.Presets.Redis.Prefix == "" {
		cfg.Presets.Redis.Prefix = preset.DefaultRedisPrefix
	}

	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
