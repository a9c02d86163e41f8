// internal/stream/stream.go
package stream

import (
	"fmt"
	"sync/atomic"

	"github.com/iu3qez/remotecwkeyer/internal/sample"
)

// Stream is a lock-free single-producer / multiple-consumer ring of
// keying samples. Exactly one goroutine calls Push/PushRaw/Flush for the
// stream's whole life; any number of goroutines may read.
//
// The write index is a logical, ever-increasing counter. A reader maps
// it to a slot with index & (capacity-1) and detects "fell too far
// behind" on its own, without the producer knowing readers exist.
//
// Runs of unchanged samples are collapsed into a single run-length
// silence marker (paddle-idle periods dominate real keying).
type Stream struct {
	buf      []sample.Sample
	capacity uint64
	mask     uint64

	writeIdx atomic.Uint64

	// Producer-local compression state. idleTicks is atomic only so
	// Flush may be called from the shutdown path.
	idleTicks atomic.Uint32
	last      sample.Sample
}

// New creates a stream with the given capacity. Capacity must be a
// power of two; anything else is a configuration bug and panics.
func New(capacity int) *Stream {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic(fmt.Sprintf("stream: capacity must be a power of two, got %d", capacity))
	}
	return &Stream{
		buf:      make([]sample.Sample, capacity),
		capacity: uint64(capacity),
		mask:     uint64(capacity) - 1,
	}
}

// writeSlot writes one slot and then publishes the new write index.
// The slot contents are stored before the atomic index store, so any
// reader that observes the new index observes a fully written sample.
func (s *Stream) writeSlot(sm sample.Sample) {
	idx := s.writeIdx.Load()
	s.buf[idx&s.mask] = sm
	s.writeIdx.Store(idx + 1)
}

// Push appends a sample, compressing runs of unchanged state. If sm is
// unchanged from the last pushed sample the idle-tick counter grows and
// no slot is written; on a change the pending run is flushed as a
// silence marker and sm is written with edge flags against the previous
// sample. Producer only. Never blocks.
//
// The false return signals a producer-side bookkeeping fault; writes
// overwrite the oldest slot, so with a valid stream it is unreachable.
func (s *Stream) Push(sm sample.Sample) bool {
	if !sm.ChangedFrom(s.last) {
		s.idleTicks.Add(1)
		return true
	}

	if idle := s.idleTicks.Swap(0); idle > 0 {
		s.writeSlot(sample.Silence(idle))
	}

	s.writeSlot(sm.WithEdgesFrom(s.last))
	s.last = sm
	return true
}

// PushRaw writes sm unconditionally, bypassing silence compression.
// Used when every sample must be individually observable.
func (s *Stream) PushRaw(sm sample.Sample) bool {
	s.writeSlot(sm)
	return true
}

// Flush forces any pending idle-tick run out as a trailing silence
// marker. Call before shutdown so no accumulated state is lost.
func (s *Stream) Flush() {
	if idle := s.idleTicks.Swap(0); idle > 0 {
		s.writeSlot(sample.Silence(idle))
	}
}

// Read copies the sample at the logical index idx. It returns false if
// the slot is not yet written (behind == 0) or already overwritten
// (behind > capacity). Pure read: no cursor is mutated. Any goroutine.
func (s *Stream) Read(idx uint64, out *sample.Sample) bool {
	write := s.writeIdx.Load()

	behind := write - idx // wrapping subtraction
	if behind == 0 || behind > s.capacity {
		return false
	}

	*out = s.buf[idx&s.mask]
	return true
}

// WritePosition returns the producer's current logical position. New
// consumers initialize their cursor here to start at "now".
func (s *Stream) WritePosition() uint64 { return s.writeIdx.Load() }

// Lag returns how far readIdx is behind the producer.
func (s *Stream) Lag(readIdx uint64) uint64 { return s.writeIdx.Load() - readIdx }

// IsOverrun reports whether the sample at readIdx has been overwritten.
func (s *Stream) IsOverrun(readIdx uint64) bool { return s.Lag(readIdx) > s.capacity }

// Capacity returns the ring capacity in samples.
func (s *Stream) Capacity() uint64 { return s.capacity }

// PendingIdleTicks returns the producer's accumulated, not yet flushed
// silence run. Telemetry only.
func (s *Stream) PendingIdleTicks() uint32 { return s.idleTicks.Load() }
