// internal/consumer/besteffort.go
package consumer

import (
	"github.com/iu3qez/remotecwkeyer/internal/sample"
	"github.com/iu3qez/remotecwkeyer/internal/stream"
)

// DefaultSkipMargin is how many samples a skip leaves between the
// cursor and the producer, so the read immediately after a skip does
// not itself race the producer.
const DefaultSkipMargin = 2

// BestEffort is a stream reader that degrades gracefully: when it falls
// too far behind it discards the backlog, counts the loss, and resumes
// near the producer. It never raises a fault — its downstreams (decoder,
// network relay) tolerate gaps but must never stop the system.
type BestEffort struct {
	cursor  stream.Cursor
	dropped uint64

	// skipThreshold triggers auto-skip when lag exceeds it; 0 disables.
	skipThreshold uint64
	// skipMargin is how far short of the write position a skip lands.
	skipMargin uint64
}

// NewBestEffort creates a best-effort consumer starting at the stream's
// current write position. skipThreshold of 0 disables auto-skip (the
// consumer still skips on overrun). Pass DefaultSkipMargin for
// skipMargin unless tuning.
func NewBestEffort(s *stream.Stream, skipThreshold, skipMargin uint64) *BestEffort {
	return &BestEffort{
		cursor:        stream.NewCursor(s),
		skipThreshold: skipThreshold,
		skipMargin:    skipMargin,
	}
}

// Tick tries to read one sample. It returns false when no data is
// available; the backlog may have been discarded to get there.
func (b *BestEffort) Tick(out *sample.Sample) bool {
	lag := b.cursor.Lag()

	if lag == 0 {
		return false
	}

	if b.cursor.IsOverrun() || (b.skipThreshold > 0 && lag > b.skipThreshold) {
		b.dropped += b.cursor.SkipTo(b.skipTarget())

		if b.cursor.Lag() == 0 {
			return false
		}
	}

	if !b.cursor.Next(out) {
		// The producer wrapped again during bookkeeping. Jump straight
		// to "now" rather than retrying indefinitely.
		b.cursor.SkipToLatest()
		b.dropped++
		return false
	}

	return true
}

// skipTarget is the producer's position minus the margin, clamped so a
// skip never moves the cursor backwards.
func (b *BestEffort) skipTarget() uint64 {
	pos := b.cursor.Position()
	write := pos + b.cursor.Lag()

	target := write
	if target > b.skipMargin {
		target -= b.skipMargin
	}
	if target < pos {
		target = pos
	}
	return target
}

// Dropped returns the total number of samples discarded so far.
// Monotonically non-decreasing.
func (b *BestEffort) Dropped() uint64 { return b.dropped }

// Lag returns the consumer's current lag behind the producer.
func (b *BestEffort) Lag() uint64 { return b.cursor.Lag() }
