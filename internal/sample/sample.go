// internal/sample/sample.go
package sample

// Paddles is the physical paddle state as a 2-bit set.
type Paddles uint8

const (
	// PaddleDit is set while the dit paddle is pressed.
	PaddleDit Paddles = 0x01
	// PaddleDah is set while the dah paddle is pressed.
	PaddleDah Paddles = 0x02
)

// FromPaddles builds a paddle set from individual contact states.
func FromPaddles(dit, dah bool) Paddles {
	var p Paddles
	if dit {
		p |= PaddleDit
	}
	if dah {
		p |= PaddleDah
	}
	return p
}

// Dit reports whether the dit paddle is pressed.
func (p Paddles) Dit() bool { return p&PaddleDit != 0 }

// Dah reports whether the dah paddle is pressed.
func (p Paddles) Dah() bool { return p&PaddleDah != 0 }

// Idle reports whether no paddle is pressed.
func (p Paddles) Idle() bool { return p == 0 }

// Both reports whether both paddles are pressed (squeeze).
func (p Paddles) Both() bool { return p&(PaddleDit|PaddleDah) == PaddleDit|PaddleDah }

// Flags marks edges and stream markers on a sample.
type Flags uint8

const (
	// FlagPaddleEdge: paddle state changed from the previous sample.
	FlagPaddleEdge Flags = 0x01
	// FlagConfigChange: configuration generation changed.
	FlagConfigChange Flags = 0x02
	// FlagTXStart: transmission started (set by outer layers).
	FlagTXStart Flags = 0x04
	// FlagRXStart: remote reception started (set by outer layers).
	FlagRXStart Flags = 0x08
	// FlagSilence: this sample is a run-length silence marker.
	FlagSilence Flags = 0x10
	// FlagKeyEdge: keyer output changed from the previous sample.
	FlagKeyEdge Flags = 0x20
)

// MaxSilenceTicks is the saturation cap for a silence run length.
const MaxSilenceTicks = 0xFFFF

// Sample is the fundamental keying event unit. Copied by value.
//
// Payload16 is dual purpose: when FlagSilence is set it is the silence
// run length in ticks; otherwise it carries the config generation tag.
type Sample struct {
	Paddles    Paddles
	KeyDown    bool
	AudioLevel uint8
	Flags      Flags
	Payload16  uint16
}

// Silence builds a run-length silence marker. A silence marker carries
// no paddle or key state; its only meaning is "ticks elapsed unchanged".
// The run length saturates at MaxSilenceTicks.
func Silence(ticks uint32) Sample {
	if ticks > MaxSilenceTicks {
		ticks = MaxSilenceTicks
	}
	return Sample{Flags: FlagSilence, Payload16: uint16(ticks)}
}

// IsSilence reports whether s is a run-length silence marker.
func (s Sample) IsSilence() bool { return s.Flags&FlagSilence != 0 }

// SilenceTicks returns the run length of a silence marker.
func (s Sample) SilenceTicks() uint32 {
	if !s.IsSilence() {
		return 0
	}
	return uint32(s.Payload16)
}

// ConfigGen returns the config generation tag. Zero for silence markers.
func (s Sample) ConfigGen() uint16 {
	if s.IsSilence() {
		return 0
	}
	return s.Payload16
}

// PaddleEdge reports whether the paddle-edge flag is set.
func (s Sample) PaddleEdge() bool { return s.Flags&FlagPaddleEdge != 0 }

// KeyEdge reports whether the key-output-edge flag is set.
func (s Sample) KeyEdge() bool { return s.Flags&FlagKeyEdge != 0 }

// ChangedFrom reports whether s differs from prev in the fields that
// matter for silence compression: paddles, key output, audio level.
func (s Sample) ChangedFrom(prev Sample) bool {
	return s.Paddles != prev.Paddles ||
		s.KeyDown != prev.KeyDown ||
		s.AudioLevel != prev.AudioLevel
}

// WithEdgesFrom returns s with edge flags computed against prev.
func (s Sample) WithEdgesFrom(prev Sample) Sample {
	if s.Paddles != prev.Paddles {
		s.Flags |= FlagPaddleEdge
	}
	if s.KeyDown != prev.KeyDown {
		s.Flags |= FlagKeyEdge
	}
	return s
}
