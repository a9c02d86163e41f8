// internal/iambic/config.go
package iambic

import "time"

// Element is one Morse keying element.
type Element uint8

const (
	Dit Element = 0
	Dah Element = 1
)

// Opposite returns the other element.
func (e Element) Opposite() Element {
	if e == Dit {
		return Dah
	}
	return Dit
}

func (e Element) String() string {
	if e == Dit {
		return "dit"
	}
	return "dah"
}

// Mode selects the keyer's behavior on paddle release.
type Mode uint8

const (
	// ModeA stops immediately when the paddles are released.
	ModeA Mode = 0
	// ModeB completes the current element plus one bonus opposite
	// element if a squeeze was seen during the element.
	ModeB Mode = 1
)

func (m Mode) String() string {
	if m == ModeB {
		return "B"
	}
	return "A"
}

// MemoryMode selects which paddles are remembered while an element or
// gap is in progress.
type MemoryMode uint8

const (
	MemoryNone MemoryMode = 0
	MemoryDit  MemoryMode = 1
	MemoryDah  MemoryMode = 2
	MemoryBoth MemoryMode = 3
)

func (m MemoryMode) String() string {
	switch m {
	case MemoryDit:
		return "dit"
	case MemoryDah:
		return "dah"
	case MemoryBoth:
		return "both"
	default:
		return "none"
	}
}

// DitEnabled reports whether dit presses are memorized.
func (m MemoryMode) DitEnabled() bool { return m == MemoryDit || m == MemoryBoth }

// DahEnabled reports whether dah presses are memorized.
func (m MemoryMode) DahEnabled() bool { return m == MemoryDah || m == MemoryBoth }

// SqueezeMode selects when paddle state is sampled for squeeze release
// detection.
type SqueezeMode uint8

const (
	// SqueezeLatchOff samples the live paddle state continuously.
	SqueezeLatchOff SqueezeMode = 0
	// SqueezeLatchOn snapshots the squeeze state at element start.
	SqueezeLatchOn SqueezeMode = 1
)

func (s SqueezeMode) String() string {
	if s == SqueezeLatchOn {
		return "latch-on"
	}
	return "latch-off"
}

// Config is the keyer timing configuration. Value type; the processor
// keeps its own copy. Apply changes only while the FSM is idle.
type Config struct {
	// WPM is the speed in words per minute (PARIS timing).
	WPM uint32
	// Mode is the iambic mode (A or B).
	Mode Mode
	// Memory selects which paddles are remembered.
	Memory MemoryMode
	// Squeeze selects squeeze sampling for the Mode-B bonus element.
	Squeeze SqueezeMode
	// MemWindowStartPct / MemWindowEndPct bound the portion of an
	// element (in percent of its duration) during which paddle presses
	// arm memory. 0/100 accepts the whole element.
	MemWindowStartPct uint8
	MemWindowEndPct   uint8
}

// DefaultConfig is 20 WPM Mode B with full iambic memory.
func DefaultConfig() Config {
	return Config{
		WPM:               20,
		Mode:              ModeB,
		Memory:            MemoryBoth,
		Squeeze:           SqueezeLatchOff,
		MemWindowStartPct: 0,
		MemWindowEndPct:   100,
	}
}

// parisDitUs is the PARIS constant: one word is 50 dit units, so
// dit_duration_us = 1,200,000 / WPM.
const parisDitUs = 1_200_000

// DitDuration returns the dit duration in microseconds.
func (c Config) DitDuration() int64 {
	wpm := c.WPM
	if wpm == 0 {
		wpm = 1
	}
	return parisDitUs / int64(wpm)
}

// DahDuration returns the dah duration (3 dits) in microseconds.
func (c Config) DahDuration() int64 { return c.DitDuration() * 3 }

// GapDuration returns the inter-element gap (1 dit) in microseconds.
func (c Config) GapDuration() int64 { return c.DitDuration() }

// DitTime returns the dit duration as a time.Duration, for callers that
// schedule in wall-clock terms.
func (c Config) DitTime() time.Duration {
	return time.Duration(c.DitDuration()) * time.Microsecond
}

// inMemoryWindow reports whether an element progress percentage falls
// inside the configured memory window.
func (c Config) inMemoryWindow(progressPct uint8) bool {
	return progressPct >= c.MemWindowStartPct && progressPct <= c.MemWindowEndPct
}
