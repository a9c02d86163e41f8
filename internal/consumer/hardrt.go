// internal/consumer/hardrt.go
package consumer

import (
	"github.com/iu3qez/remotecwkeyer/internal/fault"
	"github.com/iu3qez/remotecwkeyer/internal/sample"
	"github.com/iu3qez/remotecwkeyer/internal/stream"
)

// Status is the outcome of one hard-RT tick.
type Status int

const (
	// OK: a sample was read and the cursor advanced.
	OK Status = iota
	// NoData: the consumer is caught up; reuse the last known output.
	NoData
	// Fault: the shared fault state is active. Detail lives there.
	Fault
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case NoData:
		return "NO_DATA"
	case Fault:
		return "FAULT"
	default:
		return "UNKNOWN"
	}
}

// HardRT is a stream reader that must never fall behind. A missed
// deadline is worse than stopping: when lag crosses maxLag or the
// cursor is overrun, it raises a fault and stays faulted until the
// operator clears the fault state and calls Resync. It never skips to
// catch up on its own.
type HardRT struct {
	cursor stream.Cursor
	fault  *fault.State
	maxLag uint64
}

// NewHardRT creates a hard-RT consumer starting at the stream's current
// write position.
func NewHardRT(s *stream.Stream, f *fault.State, maxLag uint64) *HardRT {
	return &HardRT{
		cursor: stream.NewCursor(s),
		fault:  f,
		maxLag: maxLag,
	}
}

// Tick runs one consume step. A prior fault is sticky: while the fault
// state is active every Tick returns Fault without touching it again.
func (h *HardRT) Tick(out *sample.Sample) Status {
	if h.fault.IsActive() {
		return Fault
	}

	lag := h.cursor.Lag()

	if lag > h.maxLag {
		h.fault.Set(fault.LatencyExceeded, uint32(lag))
		return Fault
	}

	if lag == 0 {
		return NoData
	}

	if h.cursor.IsOverrun() {
		h.fault.Set(fault.ConsumerOverrun, uint32(lag))
		return Fault
	}

	if !h.cursor.Next(out) {
		// lag > 0 and not overrun, so the producer wrapped between
		// the checks above and the read.
		h.fault.Set(fault.ConsumerOverrun, uint32(lag))
		return Fault
	}

	return OK
}

// Resync jumps the cursor to the stream's current write position,
// discarding everything not yet read. Explicit recovery action only,
// to be called after the operator clears the fault state.
func (h *HardRT) Resync() {
	h.cursor.SkipToLatest()
}

// Lag returns the consumer's current lag behind the producer.
func (h *HardRT) Lag() uint64 { return h.cursor.Lag() }
