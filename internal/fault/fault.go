// internal/fault/fault.go
package fault

import "sync/atomic"

// Code identifies the kind of timing fault.
type Code uint32

const (
	// None means no fault is recorded.
	None Code = 0
	// ConsumerOverrun: a hard-RT reader fell behind and its data was overwritten.
	ConsumerOverrun Code = 1
	// LatencyExceeded: a hard-RT reader's lag crossed its configured bound.
	LatencyExceeded Code = 2
	// ProducerOverrun: the producer could not honor its own invariants.
	ProducerOverrun Code = 3
	// Hardware: fault raised outside the core, surfaced through the same path.
	Hardware Code = 4
)

func (c Code) String() string {
	switch c {
	case None:
		return "NONE"
	case ConsumerOverrun:
		return "OVERRUN"
	case LatencyExceeded:
		return "LATENCY_EXCEEDED"
	case ProducerOverrun:
		return "PRODUCER_OVERRUN"
	case Hardware:
		return "HARDWARE"
	default:
		return "UNKNOWN"
	}
}

// State is the shared fault record. While a fault is active the control
// loop forces key and audio to their safe state; clearing is an explicit
// operator action, never automatic.
//
// All fields are atomics. Set publishes code and data before the active
// flag, so a reader that observes IsActive() also observes them.
type State struct {
	active atomic.Bool
	code   atomic.Uint32
	data   atomic.Uint32
	count  atomic.Uint32
}

// Set records a fault: stores code and data, increments the occurrence
// counter, then raises the active flag.
func (s *State) Set(code Code, data uint32) {
	s.code.Store(uint32(code))
	s.data.Store(data)
	s.count.Add(1)
	s.active.Store(true)
}

// Clear drops the active flag and resets code and data. The occurrence
// counter is preserved. Pair with each consumer's Resync.
func (s *State) Clear() {
	s.active.Store(false)
	s.code.Store(uint32(None))
	s.data.Store(0)
}

// IsActive reports whether a fault is currently active.
func (s *State) IsActive() bool { return s.active.Load() }

// Code returns the recorded fault code.
func (s *State) Code() Code { return Code(s.code.Load()) }

// Data returns the auxiliary fault data (for example the observed lag).
func (s *State) Data() uint32 { return s.data.Load() }

// Count returns the total number of faults recorded since start.
func (s *State) Count() uint32 { return s.count.Load() }
