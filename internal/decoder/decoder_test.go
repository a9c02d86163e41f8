// internal/decoder/decoder_test.go
package decoder

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iu3qez/remotecwkeyer/internal/morse"
	"github.com/iu3qez/remotecwkeyer/internal/sample"
	"github.com/iu3qez/remotecwkeyer/internal/stream"
)

// keyerSim pushes synthetic 20 WPM keying into a stream, one sample
// per millisecond tick, using the compressed producer path.
type keyerSim struct {
	s *stream.Stream
}

const (
	ditTicks     = 60 // 20 WPM, 1ms ticks
	dahTicks     = 3 * ditTicks
	charGapTicks = 3 * ditTicks
	wordGapTicks = 7 * ditTicks
)

func (k *keyerSim) key(down bool, ticks int) {
	sm := sample.Sample{KeyDown: down}
	for i := 0; i < ticks; i++ {
		k.s.Push(sm)
	}
}

func (k *keyerSim) sendChar(r rune) {
	pat := morse.Pattern(r)
	for i := 0; i < len(pat); i++ {
		if i > 0 {
			k.key(false, ditTicks)
		}
		if pat[i] == '.' {
			k.key(true, ditTicks)
		} else {
			k.key(true, dahTicks)
		}
	}
}

func (k *keyerSim) sendText(text string) {
	for i, word := range strings.Fields(text) {
		if i > 0 {
			k.key(false, wordGapTicks)
		}
		for j, r := range word {
			if j > 0 {
				k.key(false, charGapTicks)
			}
			k.sendChar(r)
		}
	}
	// Trailing idle so inactivity finalization fires.
	k.key(false, 10*ditTicks)
	k.s.Flush()
}

func newTestDecoder(s *stream.Stream) *Decoder {
	return New(s, Config{
		InitialWPM:   20,
		TickInterval: time.Millisecond,
	}, zerolog.Nop())
}

func TestDecodeSingleChar(t *testing.T) {
	s := stream.New(4096)
	d := newTestDecoder(s)
	sim := &keyerSim{s: s}

	sim.sendText("S")
	d.Drain()

	if got := d.Text(); got != "S" {
		t.Fatalf("decoded %q, want S", got)
	}
	st := d.Stats()
	if st.CharsDecoded != 1 || st.Errors != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestDecodeWords(t *testing.T) {
	s := stream.New(65536)
	d := newTestDecoder(s)
	sim := &keyerSim{s: s}

	sim.sendText("CQ DE PARIS")
	d.Drain()

	if got := d.Text(); got != "CQ DE PARIS" {
		t.Fatalf("decoded %q", got)
	}
}

func TestDecoderWPMEstimate(t *testing.T) {
	s := stream.New(16384)
	d := newTestDecoder(s)
	sim := &keyerSim{s: s}

	sim.sendText("PARIS")
	d.Drain()

	st := d.Stats()
	if st.WPM < 18 || st.WPM > 22 {
		t.Fatalf("WPM estimate = %d, want ~20", st.WPM)
	}
}

func TestDecoderTake(t *testing.T) {
	s := stream.New(4096)
	d := newTestDecoder(s)
	sim := &keyerSim{s: s}

	sim.sendText("E")
	d.Drain()

	got := d.Take()
	if len(got) != 1 || got[0].Char != 'E' {
		t.Fatalf("Take = %v", got)
	}
	if len(d.Take()) != 0 {
		t.Fatalf("second Take must be empty")
	}
}

func TestDecoderSurvivesOverrun(t *testing.T) {
	// Tiny stream: the simulated sender laps the decoder constantly.
	s := stream.New(16)
	d := newTestDecoder(s)
	sim := &keyerSim{s: s}

	sim.sendText("CQ CQ CQ DE TEST")
	d.Drain()

	// Data was lost, but the decoder kept going and counted the loss.
	if d.Stats().Dropped == 0 {
		t.Fatalf("expected drops on an overrun stream")
	}
}

func TestClassifier(t *testing.T) {
	c := NewClassifier(20)

	if c.Calibrated() {
		t.Fatalf("fresh classifier is not calibrated")
	}
	if c.WPM() != 0 {
		t.Fatalf("WPM before calibration = %d", c.WPM())
	}

	if ev := c.Classify(60000, true); ev != EventDit {
		t.Fatalf("60ms mark = %v", ev)
	}
	if ev := c.Classify(180000, true); ev != EventDah {
		t.Fatalf("180ms mark = %v", ev)
	}
	if ev := c.Classify(60000, false); ev != EventIntraGap {
		t.Fatalf("60ms space = %v", ev)
	}
	if ev := c.Classify(180000, false); ev != EventCharGap {
		t.Fatalf("180ms space = %v", ev)
	}
	if ev := c.Classify(420000, false); ev != EventWordGap {
		t.Fatalf("420ms space = %v", ev)
	}

	// Out-of-range durations are noise.
	if ev := c.Classify(1000, true); ev != EventUnknown {
		t.Fatalf("1ms mark = %v", ev)
	}
	if ev := c.Classify(10_000_000, true); ev != EventUnknown {
		t.Fatalf("10s mark = %v", ev)
	}

	c.Classify(60000, true)
	if !c.Calibrated() {
		t.Fatalf("3 marks must calibrate")
	}
	if wpm := c.WPM(); wpm < 18 || wpm > 22 {
		t.Fatalf("WPM = %d", wpm)
	}
	if r := c.Ratio(); r < 2.5 || r > 3.5 {
		t.Fatalf("dah/dit ratio = %v", r)
	}
}
