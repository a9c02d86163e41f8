// internal/forward/forward.go

// Package forward streams key edge events to a message broker so
// remote peers can reproduce the local keying. It reads through a
// best-effort consumer: a slow or absent broker drops events, it
// never backpressures the producer.
package forward

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/iu3qez/remotecwkeyer/internal/consumer"
	"github.com/iu3qez/remotecwkeyer/internal/sample"
	"github.com/iu3qez/remotecwkeyer/internal/stream"
)

// Publisher is the broker boundary. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Event is one key or paddle transition in sample time.
type Event struct {
	Seq     uint64 `json:"seq"`
	TimeUs  int64  `json:"time_us"`
	KeyDown bool   `json:"key_down"`
	Paddles uint8  `json:"paddles,omitempty"`
}

// Config configures a Forwarder.
type Config struct {
	// Subject is the broker subject events are published to.
	Subject string
	// TickInterval is the producer's tick period.
	TickInterval time.Duration
	// PollInterval is how often the forwarder drains the stream.
	PollInterval time.Duration
	// SkipThreshold and SkipMargin tune the best-effort consumer.
	SkipThreshold uint64
	SkipMargin    uint64
}

// Stats is a snapshot of forwarder counters.
type Stats struct {
	Published    uint64
	PublishFails uint64
	Dropped      uint64
}

// Forwarder drains the keying stream and publishes one batch of edge
// events per drain.
type Forwarder struct {
	cfg  Config
	pub  Publisher
	cons *consumer.BestEffort
	log  zerolog.Logger

	mu           sync.Mutex
	seq          uint64
	sampleTimeUs int64
	keyDown      bool
	paddles      sample.Paddles
	published    uint64
	publishFails uint64
	pending      []Event
}

// New creates a forwarder reading from s and publishing through pub.
func New(s *stream.Stream, pub Publisher, cfg Config, log zerolog.Logger) *Forwarder {
	if cfg.Subject == "" {
		cfg.Subject = "keyer.events"
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
	return &Forwarder{
		cfg:  cfg,
		pub:  pub,
		cons: consumer.NewBestEffort(s, cfg.SkipThreshold, cfg.SkipMargin),
		log:  log,
	}
}

// Serve drains and publishes on a fixed poll interval until ctx is
// done. Implements suture.Service.
func (f *Forwarder) Serve(ctx context.Context) error {
	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	f.log.Info().Str("subject", f.cfg.Subject).Msg("forwarder started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.Drain()
		}
	}
}

// Drain consumes everything currently readable and publishes the edge
// events it produced as a single batch.
func (f *Forwarder) Drain() {
	f.mu.Lock()
	defer f.mu.Unlock()

	var s sample.Sample
	for f.cons.Tick(&s) {
		f.process(s)
	}
	f.flush()
}

func (f *Forwarder) process(s sample.Sample) {
	if s.IsSilence() {
		f.sampleTimeUs += int64(s.SilenceTicks()) * f.cfg.TickInterval.Microseconds()
		return
	}

	f.sampleTimeUs += f.cfg.TickInterval.Microseconds()

	if s.Flags&(sample.FlagKeyEdge|sample.FlagPaddleEdge) == 0 {
		return
	}

	f.keyDown = s.KeyDown
	f.paddles = s.Paddles
	f.seq++
	f.pending = append(f.pending, Event{
		Seq:     f.seq,
		TimeUs:  f.sampleTimeUs,
		KeyDown: s.KeyDown,
		Paddles: uint8(s.Paddles),
	})
}

// flush publishes pending events. Caller holds f.mu.
func (f *Forwarder) flush() {
	if len(f.pending) == 0 {
		return
	}

	data, err := json.Marshal(f.pending)
	if err != nil {
		// Events are plain fixed-shape structs; this cannot happen.
		f.pending = f.pending[:0]
		return
	}

	n := uint64(len(f.pending))
	f.pending = f.pending[:0]

	if err := f.pub.Publish(f.cfg.Subject, data); err != nil {
		f.publishFails++
		f.log.Warn().Err(err).Uint64("events", n).Msg("publish failed, events lost")
		return
	}
	f.published += n
}

// Stats returns a snapshot of the forwarder counters.
func (f *Forwarder) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	return Stats{
		Published:    f.published,
		PublishFails: f.publishFails,
		Dropped:      f.cons.Dropped(),
	}
}