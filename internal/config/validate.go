// internal/config/validate.go
package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	// ------------------------------------------------------------
	// KEYER
	// ------------------------------------------------------------

	if cfg.Keyer.WPM != 0 && (cfg.Keyer.WPM < 5 || cfg.Keyer.WPM > 60) {
		return fmt.Errorf("keyer: wpm %d out of range 5-60", cfg.Keyer.WPM)
	}

	switch cfg.Keyer.Mode {
	case "", "a", "b", "A", "B":
	default:
		return fmt.Errorf("keyer: unknown mode %q (want a or b)", cfg.Keyer.Mode)
	}

	switch cfg.Keyer.Memory {
	case "", "none", "dit", "dah", "both":
	default:
		return fmt.Errorf("keyer: unknown memory mode %q", cfg.Keyer.Memory)
	}

	switch cfg.Keyer.Squeeze {
	case "", "latch-off", "latch-on":
	default:
		return fmt.Errorf("keyer: unknown squeeze mode %q", cfg.Keyer.Squeeze)
	}

	start, end := uint8(0), uint8(100)
	if cfg.Keyer.MemWindowStartPct != nil {
		start = *cfg.Keyer.MemWindowStartPct
	}
	if cfg.Keyer.MemWindowEndPct != nil {
		end = *cfg.Keyer.MemWindowEndPct
	}
	if start > 100 || end > 100 {
		return fmt.Errorf("keyer: memory window bounds %d-%d exceed 100%%", start, end)
	}
	if start >= end {
		return fmt.Errorf("keyer: memory window start %d%% not below end %d%%", start, end)
	}

	// ------------------------------------------------------------
	// STREAM GEOMETRY
	// ------------------------------------------------------------

	if c := cfg.Stream.Capacity; c != 0 {
		if c < 2 || c&(c-1) != 0 {
			return fmt.Errorf("stream: capacity %d is not a power of two", c)
		}
	}

	// ------------------------------------------------------------
	// RUNTIME
	// ------------------------------------------------------------

	if cfg.Runtime.TickUs < 0 {
		return fmt.Errorf("runtime: negative tick_us %d", cfg.Runtime.TickUs)
	}

	// ------------------------------------------------------------
	// CONSUMERS
	// ------------------------------------------------------------

	if cfg.Decoder.Enabled {
		if w := cfg.Decoder.InitialWPM; w != 0 && (w < 5 || w > 60) {
			return fmt.Errorf("decoder: initial_wpm %v out of range 5-60", w)
		}
		if cfg.Decoder.PollMs < 0 {
			return fmt.Errorf("decoder: negative poll_ms %d", cfg.Decoder.PollMs)
		}
	}

	if cfg.Forward.Enabled && cfg.Forward.URL == "" {
		return fmt.Errorf("forward: enabled but url is empty")
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Listen == "" {
		return fmt.Errorf("telemetry: enabled but listen address is empty")
	}

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------

	if cfg.Log.Level != "" {
		if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
			return fmt.Errorf("log: unknown level %q", cfg.Log.Level)
		}
	}

	switch cfg.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log: unknown format %q (want console or json)", cfg.Log.Format)
	}

	return nil
}