// internal/keyer/runtime_test.go
package keyer

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iu3qez/remotecwkeyer/internal/fault"
	"github.com/iu3qez/remotecwkeyer/internal/iambic"
	"github.com/iu3qez/remotecwkeyer/internal/sample"
	"github.com/iu3qez/remotecwkeyer/internal/stream"
	"github.com/iu3qez/remotecwkeyer/internal/text"
)

const tickUs = 1000

type fakeSource struct {
	p sample.Paddles
}

func (s *fakeSource) Paddles() sample.Paddles { return s.p }

type keyEdge struct {
	timeUs int64
	down   bool
}

type fakeOutput struct {
	down  bool
	nowUs *int64
	edges []keyEdge
}

func (o *fakeOutput) SetKey(down bool) {
	if down != o.down {
		o.down = down
		o.edges = append(o.edges, keyEdge{timeUs: *o.nowUs, down: down})
	}
}

func (o *fakeOutput) SetAudio(level uint8) {}

type harness struct {
	rt    *Runtime
	src   *fakeSource
	out   *fakeOutput
	s     *stream.Stream
	f     *fault.State
	snd   *text.Sender
	nowUs int64
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	h := &harness{
		src: &fakeSource{},
		s:   stream.New(1024),
		f:   &fault.State{},
		snd: text.NewSender(20, zerolog.Nop()),
	}
	h.out = &fakeOutput{nowUs: &h.nowUs}
	h.rt = New(h.s, h.f, h.src, h.out, h.snd, cfg, zerolog.Nop())
	return h
}

func defaultTestConfig() Config {
	return Config{
		TickInterval: time.Millisecond,
		MaxLag:       2,
		Keyer:        iambic.DefaultConfig(),
	}
}

// run ticks the runtime for the given duration at 1ms resolution.
func (h *harness) run(durationUs int64) {
	end := h.nowUs + durationUs
	for ; h.nowUs < end; h.nowUs += tickUs {
		h.rt.Tick(h.nowUs)
	}
}

func TestPaddleProducesKeying(t *testing.T) {
	h := newHarness(t, defaultTestConfig())

	// Tap the dit paddle: one 60ms element at 20 WPM.
	h.src.p = sample.PaddleDit
	h.run(10 * tickUs)
	h.src.p = 0
	h.run(200 * tickUs)

	if len(h.out.edges) != 2 {
		t.Fatalf("got %d output edges %v, want 2", len(h.out.edges), h.out.edges)
	}
	if !h.out.edges[0].down || h.out.edges[1].down {
		t.Fatalf("edge polarity: %v", h.out.edges)
	}
	if dur := h.out.edges[1].timeUs - h.out.edges[0].timeUs; dur < 59000 || dur > 62000 {
		t.Fatalf("element duration = %dus, want ~60000", dur)
	}
}

func TestTextSendDrivesOutput(t *testing.T) {
	h := newHarness(t, defaultTestConfig())

	if err := h.snd.Send("E"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	h.run(300 * tickUs)

	if len(h.out.edges) != 2 {
		t.Fatalf("got %d output edges %v, want 2", len(h.out.edges), h.out.edges)
	}
	if dur := h.out.edges[1].timeUs - h.out.edges[0].timeUs; dur < 59000 || dur > 62000 {
		t.Fatalf("dit duration = %dus", dur)
	}
	if h.snd.Active() {
		t.Fatalf("sender still active after send completed")
	}
}

func TestPaddleAbortsTextSend(t *testing.T) {
	h := newHarness(t, defaultTestConfig())

	if err := h.snd.Send("TTTTT"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	h.run(10 * tickUs)
	if !h.snd.Active() {
		t.Fatalf("sender idle before paddle touch")
	}

	h.src.p = sample.PaddleDit
	h.run(tickUs)

	if h.snd.Active() {
		t.Fatalf("paddle touch must abort the send")
	}
}

func TestFaultForcesOutputOff(t *testing.T) {
	h := newHarness(t, defaultTestConfig())

	// Key something so the output is live.
	h.src.p = sample.PaddleDit
	h.run(5 * tickUs)
	if !h.out.down {
		t.Fatalf("output not keyed")
	}

	h.f.Set(fault.Hardware, 0)
	h.run(5 * tickUs)
	if h.out.down {
		t.Fatalf("output still keyed while faulted")
	}

	// Output stays off until the fault is cleared, paddles or not.
	h.run(100 * tickUs)
	if h.out.down {
		t.Fatalf("output came back without ClearFault")
	}
}

func TestClearFaultRecovers(t *testing.T) {
	h := newHarness(t, defaultTestConfig())

	h.f.Set(fault.ConsumerOverrun, 0)
	h.src.p = sample.PaddleDit
	h.run(20 * tickUs)
	if h.out.down {
		t.Fatalf("faulted output keyed")
	}

	h.rt.ClearFault()
	if h.f.IsActive() {
		t.Fatalf("fault still active after ClearFault")
	}

	// Release and key again: output follows once more.
	h.src.p = 0
	h.run(300 * tickUs)
	h.out.edges = nil
	h.src.p = sample.PaddleDit
	h.run(10 * tickUs)
	if !h.out.down {
		t.Fatalf("output not keyed after recovery")
	}
}

func TestConfigAppliesOnlyAtIdle(t *testing.T) {
	h := newHarness(t, defaultTestConfig())

	fast := iambic.DefaultConfig()
	fast.WPM = 60 // dit = 20ms

	// Change speed mid-element: the running element keeps its timing.
	h.src.p = sample.PaddleDit
	h.run(10 * tickUs)
	h.rt.SetKeyerConfig(fast)
	h.src.p = 0
	h.run(300 * tickUs)

	if len(h.out.edges) != 2 {
		t.Fatalf("edges = %v", h.out.edges)
	}
	if dur := h.out.edges[1].timeUs - h.out.edges[0].timeUs; dur < 59000 || dur > 62000 {
		t.Fatalf("first element = %dus, want old 60ms timing", dur)
	}

	// Now idle: the next element uses the new speed.
	h.out.edges = nil
	h.src.p = sample.PaddleDit
	h.run(5 * tickUs)
	h.src.p = 0
	h.run(100 * tickUs)

	if len(h.out.edges) != 2 {
		t.Fatalf("edges = %v", h.out.edges)
	}
	if dur := h.out.edges[1].timeUs - h.out.edges[0].timeUs; dur < 19000 || dur > 22000 {
		t.Fatalf("second element = %dus, want 20ms timing", dur)
	}
}

func TestKeyerConfigReflectsPending(t *testing.T) {
	h := newHarness(t, defaultTestConfig())

	fast := iambic.DefaultConfig()
	fast.WPM = 35
	h.rt.SetKeyerConfig(fast)

	if got := h.rt.KeyerConfig(); got.WPM != 35 {
		t.Fatalf("KeyerConfig WPM = %d", got.WPM)
	}
}

func TestConfigChangeTagsStream(t *testing.T) {
	h := newHarness(t, defaultTestConfig())

	h.run(5 * tickUs)

	fast := iambic.DefaultConfig()
	fast.WPM = 30
	h.rt.SetKeyerConfig(fast)
	h.run(5 * tickUs)
	h.s.Flush()

	// Scan the stream for the generation marker.
	var found *sample.Sample
	for idx := uint64(0); idx < h.s.WritePosition(); idx++ {
		var sm sample.Sample
		if h.s.Read(idx, &sm) && sm.Flags&sample.FlagConfigChange != 0 {
			found = &sm
			break
		}
	}
	if found == nil {
		t.Fatalf("no config-change marker in stream")
	}
	if found.ConfigGen() != 1 {
		t.Fatalf("config generation = %d, want 1", found.ConfigGen())
	}
}

func TestStreamCarriesKeying(t *testing.T) {
	h := newHarness(t, defaultTestConfig())

	h.src.p = sample.PaddleDit
	h.run(5 * tickUs)

	if h.s.WritePosition() == 0 {
		t.Fatalf("nothing pushed to the stream")
	}

	var sm sample.Sample
	if !h.s.Read(0, &sm) {
		t.Fatalf("cannot read first sample")
	}
	if !sm.KeyDown || sm.Flags&sample.FlagKeyEdge == 0 {
		t.Fatalf("first sample = %+v, want key-down edge", sm)
	}
}