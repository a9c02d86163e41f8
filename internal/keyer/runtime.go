// internal/keyer/runtime.go

// Package keyer runs the producer tick: poll paddles, advance the
// iambic engine, push the result onto the keying stream and drive the
// transmit output through the hard-RT consumer. One goroutine owns
// the whole hot path; everything else reads the stream behind it.
package keyer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iu3qez/remotecwkeyer/internal/consumer"
	"github.com/iu3qez/remotecwkeyer/internal/fault"
	"github.com/iu3qez/remotecwkeyer/internal/iambic"
	"github.com/iu3qez/remotecwkeyer/internal/sample"
	"github.com/iu3qez/remotecwkeyer/internal/stream"
	"github.com/iu3qez/remotecwkeyer/internal/text"
)

// Source polls the paddle input. Implementations must not block.
type Source interface {
	Paddles() sample.Paddles
}

// Outputs drives the transmitter boundary. Implementations must not
// block; the tick calls them on every state decision.
type Outputs interface {
	SetKey(down bool)
	SetAudio(level uint8)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() sample.Paddles

func (f SourceFunc) Paddles() sample.Paddles { return f() }

// Config configures a Runtime.
type Config struct {
	// TickInterval is the producer tick period.
	TickInterval time.Duration
	// MaxLag is the hard-RT consumer's latency fault threshold in
	// samples.
	MaxLag uint64
	// Keyer is the initial iambic configuration.
	Keyer iambic.Config
}

// Runtime owns the producer loop.
type Runtime struct {
	cfg    Config
	src    Source
	out    Outputs
	stream *stream.Stream
	fault  *fault.State
	proc   *iambic.Processor
	sender *text.Sender
	cons   *consumer.HardRT
	log    zerolog.Logger

	// mu guards the staged and active config copies; the processor
	// itself is touched only by the tick goroutine.
	mu         sync.Mutex
	pendingCfg *iambic.Config
	activeCfg  iambic.Config

	cfgGen      uint16
	tagNext     bool
	faultLogged bool
}

// New creates a runtime. sender may be nil when text sending is
// disabled.
func New(s *stream.Stream, f *fault.State, src Source, out Outputs, sender *text.Sender, cfg Config, log zerolog.Logger) *Runtime {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Millisecond
	}
	if cfg.MaxLag == 0 {
		cfg.MaxLag = 2
	}
	return &Runtime{
		cfg:       cfg,
		src:       src,
		out:       out,
		stream:    s,
		fault:     f,
		proc:      iambic.NewProcessor(cfg.Keyer),
		sender:    sender,
		cons:      consumer.NewHardRT(s, f, cfg.MaxLag),
		log:       log,
		activeCfg: cfg.Keyer,
	}
}

// Serve runs the tick loop until ctx is done, then flushes the
// trailing silence run. Implements suture.Service.
func (r *Runtime) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()
	defer r.stream.Flush()
	defer func() {
		r.out.SetKey(false)
		r.out.SetAudio(0)
	}()

	start := time.Now()
	r.log.Info().
		Dur("tick", r.cfg.TickInterval).
		Uint64("max_lag", r.cfg.MaxLag).
		Msg("keyer runtime started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Tick(time.Since(start).Microseconds())
		}
	}
}

// Tick runs one producer cycle at nowUs. Exposed for tests.
func (r *Runtime) Tick(nowUs int64) {
	paddles := r.src.Paddles()

	if r.sender != nil {
		// A paddle touch always wins over a queued send.
		if !paddles.Idle() && r.sender.Active() {
			r.sender.Abort()
		}
		r.sender.Tick(nowUs)
	}

	r.applyPendingConfig()

	sm := r.proc.Tick(nowUs, paddles)
	if r.sender != nil && r.sender.KeyDown() {
		sm.KeyDown = true
	}
	sm.Payload16 = r.cfgGen

	pushed := true
	if r.tagNext {
		// The generation marker must land in the stream even when the
		// sample itself compresses away.
		r.tagNext = false
		sm.Flags |= sample.FlagConfigChange
		r.stream.Flush()
		pushed = r.stream.PushRaw(sm)
	} else {
		pushed = r.stream.Push(sm)
	}
	if !pushed {
		r.fault.Set(fault.ProducerOverrun, 0)
	}

	var out sample.Sample
	switch r.cons.Tick(&out) {
	case consumer.OK:
		if !out.IsSilence() {
			r.out.SetKey(out.KeyDown)
			r.out.SetAudio(out.AudioLevel)
		}
		r.faultLogged = false
	case consumer.Fault:
		// Force the safe state while faulted.
		r.out.SetKey(false)
		r.out.SetAudio(0)
		if !r.faultLogged {
			r.faultLogged = true
			r.log.Error().
				Stringer("code", r.fault.Code()).
				Uint32("data", r.fault.Data()).
				Msg("keying fault, output forced off")
		}
	case consumer.NoData:
	}
}

// ClearFault recovers from a latched fault: clears the flag and
// resynchronizes the hard-RT consumer to the stream head.
func (r *Runtime) ClearFault() {
	r.fault.Clear()
	r.cons.Resync()
	r.log.Info().Msg("fault cleared, consumer resynced")
}

// SetKeyerConfig stages a new iambic configuration. It takes effect
// on the first tick where the engine is idle, so element timing never
// changes mid-element.
func (r *Runtime) SetKeyerConfig(cfg iambic.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingCfg = &cfg
}

// KeyerConfig returns the active iambic configuration.
func (r *Runtime) KeyerConfig() iambic.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pendingCfg != nil {
		return *r.pendingCfg
	}
	return r.activeCfg
}

func (r *Runtime) applyPendingConfig() {
	if !r.proc.Idle() {
		return
	}

	r.mu.Lock()
	cfg := r.pendingCfg
	r.pendingCfg = nil
	if cfg != nil {
		r.activeCfg = *cfg
	}
	r.mu.Unlock()

	if cfg != nil {
		r.proc.SetConfig(*cfg)
		r.cfgGen++
		r.tagNext = true
		r.log.Info().
			Uint32("wpm", cfg.WPM).
			Stringer("mode", cfg.Mode).
			Msg("keyer config applied")
	}
}