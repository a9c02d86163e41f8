// internal/stream/cursor.go
package stream

import "github.com/iu3qez/remotecwkeyer/internal/sample"

// Cursor is a private, forward-only position into a stream's logical
// sequence. Each reader owns its cursor exclusively; no synchronization
// is needed on top of the stream's own index.
type Cursor struct {
	stream *Stream
	idx    uint64
}

// NewCursor returns a cursor positioned at the stream's current write
// position ("now").
func NewCursor(s *Stream) Cursor {
	return Cursor{stream: s, idx: s.WritePosition()}
}

// NewCursorAt returns a cursor at an explicit logical position.
func NewCursorAt(s *Stream, pos uint64) Cursor {
	return Cursor{stream: s, idx: pos}
}

// Next reads the sample under the cursor and advances on success.
func (c *Cursor) Next(out *sample.Sample) bool {
	if !c.stream.Read(c.idx, out) {
		return false
	}
	c.idx++
	return true
}

// Peek reads the sample under the cursor without advancing.
func (c *Cursor) Peek(out *sample.Sample) bool {
	return c.stream.Read(c.idx, out)
}

// Lag returns how far the cursor is behind the producer.
func (c *Cursor) Lag() uint64 { return c.stream.Lag(c.idx) }

// IsOverrun reports whether the cursor's sample has been overwritten.
func (c *Cursor) IsOverrun() bool { return c.stream.IsOverrun(c.idx) }

// Position returns the cursor's logical index.
func (c *Cursor) Position() uint64 { return c.idx }

// SkipTo moves the cursor to pos and returns how many samples were
// skipped over.
func (c *Cursor) SkipTo(pos uint64) uint64 {
	skipped := pos - c.idx
	c.idx = pos
	return skipped
}

// SkipToLatest jumps the cursor to the producer's current position,
// discarding everything not yet read.
func (c *Cursor) SkipToLatest() uint64 {
	return c.SkipTo(c.stream.WritePosition())
}

// Resync moves the cursor to the oldest still-valid position.
func (c *Cursor) Resync() {
	write := c.stream.WritePosition()
	capacity := c.stream.Capacity()
	if write >= capacity {
		c.idx = write - capacity
	} else {
		c.idx = 0
	}
}
