// internal/decoder/decoder.go

// Package decoder turns the keying stream back into text. It reads
// through a best-effort consumer, so under load it loses samples and
// decodes garbage for a moment instead of ever stalling the producer.
package decoder

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iu3qez/remotecwkeyer/internal/consumer"
	"github.com/iu3qez/remotecwkeyer/internal/morse"
	"github.com/iu3qez/remotecwkeyer/internal/sample"
	"github.com/iu3qez/remotecwkeyer/internal/stream"
)

const (
	// maxPatternLen bounds an accumulated element pattern (ITU max is
	// 6 for some punctuation, prosigns go longer).
	maxPatternLen = 10

	// inactivityDitUnits forces pattern finalization after this many
	// dit units without a key edge.
	inactivityDitUnits = 7

	// defaultBufferSize is the decoded character ring capacity.
	defaultBufferSize = 128
)

// Config configures a Decoder.
type Config struct {
	// InitialWPM seeds the timing classifier.
	InitialWPM float64
	// TickInterval is the producer's tick period; silence run lengths
	// are converted to time with it.
	TickInterval time.Duration
	// PollInterval is how often the decoder drains the stream.
	PollInterval time.Duration
	// SkipThreshold and SkipMargin tune the best-effort consumer.
	SkipThreshold uint64
	SkipMargin    uint64
	// BufferSize is the decoded character ring capacity.
	BufferSize int
}

// Decoded is one decoded character with its position in sample time.
type Decoded struct {
	Char   rune
	TimeUs int64
}

// Stats is a snapshot of decoder counters.
type Stats struct {
	CharsDecoded uint64
	Errors       uint64
	Dropped      uint64
	WPM          uint32
}

// Decoder consumes the keying stream and emits decoded text.
type Decoder struct {
	cfg  Config
	cons *consumer.BestEffort
	cls  *Classifier
	log  zerolog.Logger

	// Sample-domain clock: one tick per consumed sample, run length
	// ticks for silence markers.
	sampleTimeUs int64
	lastEdgeUs   int64
	keyDown      bool

	pattern []byte

	// mu guards everything below plus the consumer and classifier;
	// Drain and the observers both take it.
	mu      sync.Mutex
	decoded []Decoded
	chars   uint64
	errors  uint64
}

// New creates a decoder reading from s starting at "now".
func New(s *stream.Stream, cfg Config, log zerolog.Logger) *Decoder {
	if cfg.InitialWPM <= 0 {
		cfg.InitialWPM = 20
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Millisecond
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	if cfg.SkipMargin == 0 {
		cfg.SkipMargin = consumer.DefaultSkipMargin
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	return &Decoder{
		cfg:     cfg,
		cons:    consumer.NewBestEffort(s, cfg.SkipThreshold, cfg.SkipMargin),
		cls:     NewClassifier(cfg.InitialWPM),
		log:     log,
		pattern: make([]byte, 0, maxPatternLen),
	}
}

// Serve drains the stream on a fixed poll interval until ctx is done.
// Implements suture.Service.
func (d *Decoder) Serve(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.log.Info().Float64("initial_wpm", d.cfg.InitialWPM).Msg("decoder started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.Drain()
		}
	}
}

// Drain consumes everything currently readable and runs inactivity
// finalization. Exposed for tests and for synchronous callers.
func (d *Decoder) Drain() {
	d.mu.Lock()
	defer d.mu.Unlock()

	var s sample.Sample
	for d.cons.Tick(&s) {
		d.process(s)
	}
	d.checkInactivity()
}

func (d *Decoder) process(s sample.Sample) {
	tickUs := d.cfg.TickInterval.Microseconds()

	if s.IsSilence() {
		d.sampleTimeUs += int64(s.SilenceTicks()) * tickUs
		return
	}

	d.sampleTimeUs += tickUs

	if !s.KeyEdge() {
		return
	}

	duration := d.sampleTimeUs - d.lastEdgeUs
	wasMark := d.keyDown

	d.keyDown = s.KeyDown
	d.lastEdgeUs = d.sampleTimeUs

	d.handleEvent(d.cls.Classify(duration, wasMark))
}

func (d *Decoder) handleEvent(ev Event) {
	switch ev {
	case EventDit:
		d.appendElement('.')
	case EventDah:
		d.appendElement('-')
	case EventCharGap:
		d.finalize()
	case EventWordGap:
		d.finalize()
		d.emit(' ')
	case EventIntraGap, EventUnknown:
		// Nothing to do: intra gaps separate elements of one
		// character, unknown durations are noise.
	}
}

func (d *Decoder) appendElement(el byte) {
	if len(d.pattern) >= maxPatternLen {
		// Pattern ran away (noise); drop it and start over.
		d.pattern = d.pattern[:0]
		d.errors++
		return
	}
	d.pattern = append(d.pattern, el)
}

func (d *Decoder) finalize() {
	if len(d.pattern) == 0 {
		return
	}

	pat := string(d.pattern)
	d.pattern = d.pattern[:0]

	if c := morse.Lookup(pat); c != 0 {
		d.emit(c)
		d.log.Debug().Str("pattern", pat).Str("char", string(c)).Msg("decoded")
		return
	}

	d.errors++
	d.log.Debug().Str("pattern", pat).Msg("unknown pattern")
}

// checkInactivity finalizes a pending pattern once the key has been up
// for long enough that no further element can belong to it.
func (d *Decoder) checkInactivity() {
	if d.keyDown || len(d.pattern) == 0 {
		return
	}
	idle := d.sampleTimeUs - d.lastEdgeUs
	if idle > inactivityDitUnits*d.cls.DitAvgUs() {
		d.finalize()
	}
}

// emit appends a decoded character. Caller holds d.mu.
func (d *Decoder) emit(c rune) {
	if len(d.decoded) >= d.cfg.BufferSize {
		d.decoded = d.decoded[1:]
	}
	d.decoded = append(d.decoded, Decoded{Char: c, TimeUs: d.sampleTimeUs})
	if c != ' ' {
		d.chars++
	}
}

// Take returns and clears the decoded characters accumulated so far.
func (d *Decoder) Take() []Decoded {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := d.decoded
	d.decoded = nil
	return out
}

// Text returns the current decoded buffer as a string without
// consuming it.
func (d *Decoder) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf := make([]rune, len(d.decoded))
	for i, dc := range d.decoded {
		buf[i] = dc.Char
	}
	return string(buf)
}

// Stats returns a snapshot of the decoder counters.
func (d *Decoder) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Stats{
		CharsDecoded: d.chars,
		Errors:       d.errors,
		Dropped:      d.cons.Dropped(),
		WPM:          d.cls.WPM(),
	}
}
