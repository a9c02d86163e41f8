// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Keyer     KeyerConfig     `yaml:"keyer"`
	Stream    StreamConfig    `yaml:"stream"`
	Runtime   RuntimeConfig   `yaml:"runtime"`
	Decoder   DecoderConfig   `yaml:"decoder"`
	Forward   ForwardConfig   `yaml:"forward"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// ---- KEYER ----

type KeyerConfig struct {
	WPM     uint32 `yaml:"wpm"`
	Mode    string `yaml:"mode"`    // "a" | "b"
	Memory  string `yaml:"memory"`  // "none" | "dit" | "dah" | "both"
	Squeeze string `yaml:"squeeze"` // "latch-off" | "latch-on"

	// Memory window bounds in percent of element duration.
	MemWindowStartPct *uint8 `yaml:"mem_window_start_pct"`
	MemWindowEndPct   *uint8 `yaml:"mem_window_end_pct"`
}

// ---- STREAM ----

type StreamConfig struct {
	// Capacity is the ring size in samples. Must be a power of two.
	Capacity int `yaml:"capacity"`
}

// ---- RUNTIME ----

type RuntimeConfig struct {
	TickUs int    `yaml:"tick_us"`
	MaxLag uint64 `yaml:"max_lag"`
}

// ---- DECODER ----

type DecoderConfig struct {
	Enabled       bool    `yaml:"enabled"`
	InitialWPM    float64 `yaml:"initial_wpm"`
	PollMs        int     `yaml:"poll_ms"`
	SkipThreshold uint64  `yaml:"skip_threshold"`
	SkipMargin    uint64  `yaml:"skip_margin"`
	BufferSize    int     `yaml:"buffer_size"`
}

// ---- FORWARD ----

type ForwardConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Subject       string `yaml:"subject"`
	PollMs        int    `yaml:"poll_ms"`
	SkipThreshold uint64 `yaml:"skip_threshold"`
	SkipMargin    uint64 `yaml:"skip_margin"`
}

// ---- TELEMETRY ----

type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// ---- LOG ----

type LogConfig struct {
	Level  string `yaml:"level"`  // zerolog level name
	Format string `yaml:"format"` // "console" | "json"
}

// Load reads and parses the YAML file at path. The result is raw:
// call Validate and then Normalize before use.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}