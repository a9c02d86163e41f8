// cmd/keyerd/main.go
package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/iu3qez/remotecwkeyer/internal/config"
	"github.com/iu3qez/remotecwkeyer/internal/decoder"
	"github.com/iu3qez/remotecwkeyer/internal/fault"
	"github.com/iu3qez/remotecwkeyer/internal/forward"
	"github.com/iu3qez/remotecwkeyer/internal/keyer"
	"github.com/iu3qez/remotecwkeyer/internal/sample"
	"github.com/iu3qez/remotecwkeyer/internal/stream"
	"github.com/iu3qez/remotecwkeyer/internal/telemetry"
	"github.com/iu3qez/remotecwkeyer/internal/text"
)

func main() {
	if len(os.Args) < 2 {
		stdlog.Fatal("usage: keyerd <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stdlog.Fatalf("config load failed: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		stdlog.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	log := newLogger(cfg.Log)

	// --------------------
	// Core state
	// --------------------

	strm := stream.New(cfg.Stream.Capacity)
	faults := &fault.State{}
	sender := text.NewSender(cfg.Keyer.WPM, log.With().Str("component", "text").Logger())

	rt := keyer.New(strm, faults, hw{}, hw{}, sender, cfg.RuntimeConfig(),
		log.With().Str("component", "keyer").Logger())

	// --------------------
	// Readers
	// --------------------

	var dec *decoder.Decoder
	if cfg.Decoder.Enabled {
		dec = decoder.New(strm, decoder.Config{
			InitialWPM:    cfg.Decoder.InitialWPM,
			TickInterval:  time.Duration(cfg.Runtime.TickUs) * time.Microsecond,
			PollInterval:  time.Duration(cfg.Decoder.PollMs) * time.Millisecond,
			SkipThreshold: cfg.Decoder.SkipThreshold,
			SkipMargin:    cfg.Decoder.SkipMargin,
			BufferSize:    cfg.Decoder.BufferSize,
		}, log.With().Str("component", "decoder").Logger())
	}

	var fwd *forward.Forwarder
	if cfg.Forward.Enabled {
		flog := log.With().Str("component", "forward").Logger()
		nc, err := forward.Connect(cfg.Forward.URL, flog)
		if err != nil {
			log.Fatal().Err(err).Str("url", cfg.Forward.URL).Msg("nats connect failed")
		}
		defer nc.Close()

		fwd = forward.New(strm, nc, forward.Config{
			Subject:       cfg.Forward.Subject,
			TickInterval:  time.Duration(cfg.Runtime.TickUs) * time.Microsecond,
			PollInterval:  time.Duration(cfg.Forward.PollMs) * time.Millisecond,
			SkipThreshold: cfg.Forward.SkipThreshold,
			SkipMargin:    cfg.Forward.SkipMargin,
		}, flog)
	}

	// --------------------
	// Supervision tree
	// --------------------

	sup := suture.New("keyerd", suture.Spec{
		EventHook: func(ev suture.Event) {
			log.Warn().Str("event", ev.String()).Msg("supervisor event")
		},
	})

	sup.Add(rt)
	if dec != nil {
		sup.Add(dec)
	}
	if fwd != nil {
		sup.Add(fwd)
	}
	if cfg.Telemetry.Enabled {
		sup.Add(telemetry.NewServer(cfg.Telemetry.Listen, telemetry.Deps{
			Stream:    strm,
			Fault:     faults,
			Keyer:     rt,
			Sender:    sender,
			Decoder:   dec,
			Forwarder: fwd,
		}, log.With().Str("component", "telemetry").Logger()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Uint32("wpm", cfg.Keyer.WPM).
		Int("stream_capacity", cfg.Stream.Capacity).
		Msg("keyerd starting")

	if err := sup.Serve(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("supervisor exited")
	}

	log.Info().Msg("keyerd stopped")
}

// hw is the hardware attach point. Paddle input and the transmitter
// key line are platform specific; this build runs headless and keys
// from text sends, with keying observable via telemetry and the
// forwarder.
type hw struct{}

func (hw) Paddles() sample.Paddles { return 0 }
func (hw) SetKey(down bool)        {}
func (hw) SetAudio(level uint8)    {}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, _ := zerolog.ParseLevel(cfg.Level)

	var out zerolog.Logger
	if cfg.Format == "json" {
		out = zerolog.New(os.Stderr)
	} else {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return out.Level(level).With().Timestamp().Logger()
}