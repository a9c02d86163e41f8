// internal/telemetry/metrics.go

// Package telemetry exposes the keyer's state over HTTP: Prometheus
// metrics, a JSON status snapshot, and the control endpoints for text
// sending and fault recovery.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iu3qez/remotecwkeyer/internal/decoder"
	"github.com/iu3qez/remotecwkeyer/internal/forward"
)

// RegisterMetrics registers keyer collectors on reg. All collectors
// read live state through lock-free snapshots, so scrapes never touch
// the producer path. Nil deps (decoder, forwarder) are skipped.
func RegisterMetrics(reg *prometheus.Registry, deps Deps) {
	s := deps.Stream
	f := deps.Fault

	reg.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "keyer_stream_write_position",
			Help: "Monotonic logical write index of the keying stream",
		},
		func() float64 { return float64(s.WritePosition()) },
	))
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "keyer_stream_pending_idle_ticks",
			Help: "Unflushed silence run length at the producer",
		},
		func() float64 { return float64(s.PendingIdleTicks()) },
	))

	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "keyer_fault_active",
			Help: "1 while a fault is latched, 0 otherwise",
		},
		func() float64 {
			if f.IsActive() {
				return 1
			}
			return 0
		},
	))
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "keyer_fault_code",
			Help: "Numeric code of the latched fault (0 = none)",
		},
		func() float64 { return float64(f.Code()) },
	))
	reg.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "keyer_faults_total",
			Help: "Faults raised since start, including cleared ones",
		},
		func() float64 { return float64(f.Count()) },
	))

	if d := deps.Decoder; d != nil {
		registerDecoderMetrics(reg, d)
	}
	if fw := deps.Forwarder; fw != nil {
		registerForwarderMetrics(reg, fw)
	}
}

func registerDecoderMetrics(reg *prometheus.Registry, d *decoder.Decoder) {
	reg.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "keyer_decoder_chars_total",
			Help: "Characters decoded from the local keying stream",
		},
		func() float64 { return float64(d.Stats().CharsDecoded) },
	))
	reg.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "keyer_decoder_errors_total",
			Help: "Element patterns with no character match",
		},
		func() float64 { return float64(d.Stats().Errors) },
	))
	reg.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "keyer_decoder_dropped_total",
			Help: "Samples the decoder skipped to stay current",
		},
		func() float64 { return float64(d.Stats().Dropped) },
	))
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "keyer_decoder_wpm",
			Help: "Estimated operator speed, 0 before calibration",
		},
		func() float64 { return float64(d.Stats().WPM) },
	))
}

func registerForwarderMetrics(reg *prometheus.Registry, fw *forward.Forwarder) {
	reg.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "keyer_forward_published_total",
			Help: "Edge events published to the broker",
		},
		func() float64 { return float64(fw.Stats().Published) },
	))
	reg.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "keyer_forward_publish_failures_total",
			Help: "Batches lost to publish errors",
		},
		func() float64 { return float64(fw.Stats().PublishFails) },
	))
	reg.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "keyer_forward_dropped_total",
			Help: "Samples the forwarder skipped to stay current",
		},
		func() float64 { return float64(fw.Stats().Dropped) },
	))
}
