// internal/config/normalize.go
package config

import (
	"strings"
	"time"

	"github.com/iu3qez/remotecwkeyer/internal/iambic"
	"github.com/iu3qez/remotecwkeyer/internal/keyer"
)

// Normalize applies post-validation normalization and defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ---- KEYER ----

	if cfg.Keyer.WPM == 0 {
		cfg.Keyer.WPM = 20
	}
	if cfg.Keyer.Mode == "" {
		cfg.Keyer.Mode = "b"
	}
	cfg.Keyer.Mode = strings.ToLower(cfg.Keyer.Mode)
	if cfg.Keyer.Memory == "" {
		cfg.Keyer.Memory = "both"
	}
	if cfg.Keyer.Squeeze == "" {
		cfg.Keyer.Squeeze = "latch-off"
	}

	// ---- STREAM ----

	if cfg.Stream.Capacity == 0 {
		cfg.Stream.Capacity = 1024
	}

	// ---- RUNTIME ----

	if cfg.Runtime.TickUs == 0 {
		cfg.Runtime.TickUs = 1000
	}
	if cfg.Runtime.MaxLag == 0 {
		cfg.Runtime.MaxLag = 2
	}

	// ---- DECODER ----

	if cfg.Decoder.InitialWPM == 0 {
		cfg.Decoder.InitialWPM = float64(cfg.Keyer.WPM)
	}
	if cfg.Decoder.PollMs == 0 {
		cfg.Decoder.PollMs = 10
	}
	if cfg.Decoder.BufferSize == 0 {
		cfg.Decoder.BufferSize = 128
	}

	// ---- FORWARD ----

	if cfg.Forward.Subject == "" {
		cfg.Forward.Subject = "keyer.events"
	}
	if cfg.Forward.PollMs == 0 {
		cfg.Forward.PollMs = 10
	}

	// ---- LOG ----

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

// IambicConfig converts the normalized keyer section into engine
// configuration.
func (c *Config) IambicConfig() iambic.Config {
	out := iambic.DefaultConfig()
	out.WPM = c.Keyer.WPM

	if c.Keyer.Mode == "a" {
		out.Mode = iambic.ModeA
	} else {
		out.Mode = iambic.ModeB
	}

	switch c.Keyer.Memory {
	case "none":
		out.Memory = iambic.MemoryNone
	case "dit":
		out.Memory = iambic.MemoryDit
	case "dah":
		out.Memory = iambic.MemoryDah
	default:
		out.Memory = iambic.MemoryBoth
	}

	if c.Keyer.Squeeze == "latch-on" {
		out.Squeeze = iambic.SqueezeLatchOn
	} else {
		out.Squeeze = iambic.SqueezeLatchOff
	}

	if c.Keyer.MemWindowStartPct != nil {
		out.MemWindowStartPct = *c.Keyer.MemWindowStartPct
	}
	if c.Keyer.MemWindowEndPct != nil {
		out.MemWindowEndPct = *c.Keyer.MemWindowEndPct
	}
	return out
}

// RuntimeConfig converts the normalized runtime section.
func (c *Config) RuntimeConfig() keyer.Config {
	return keyer.Config{
		TickInterval: time.Duration(c.Runtime.TickUs) * time.Microsecond,
		MaxLag:       c.Runtime.MaxLag,
		Keyer:        c.IambicConfig(),
	}
}