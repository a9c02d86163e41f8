// internal/telemetry/server.go
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iu3qez/remotecwkeyer/internal/decoder"
	"github.com/iu3qez/remotecwkeyer/internal/fault"
	"github.com/iu3qez/remotecwkeyer/internal/forward"
	"github.com/iu3qez/remotecwkeyer/internal/stream"
	"github.com/iu3qez/remotecwkeyer/internal/text"
)

// FaultClearer recovers a latched fault and resynchronizes the
// hard-RT consumer.
type FaultClearer interface {
	ClearFault()
}

// Deps are the keyer components the telemetry surface reads from and
// controls. Stream and Fault are required; the rest may be nil and
// their endpoints report 404 / are skipped.
type Deps struct {
	Stream    *stream.Stream
	Fault     *fault.State
	Keyer     FaultClearer
	Sender    *text.Sender
	Decoder   *decoder.Decoder
	Forwarder *forward.Forwarder
}

// Server serves /metrics, /status and the control endpoints.
type Server struct {
	addr string
	deps Deps
	reg  *prometheus.Registry
	log  zerolog.Logger
}

// NewServer builds the telemetry server and registers its collectors.
func NewServer(addr string, deps Deps, log zerolog.Logger) *Server {
	reg := prometheus.NewRegistry()
	RegisterMetrics(reg, deps)
	return &Server{addr: addr, deps: deps, reg: reg, log: log}
}

// Router returns the HTTP routes. Split out for tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	r.Get("/status", s.handleStatus)
	r.Post("/fault/clear", s.handleFaultClear)

	if s.deps.Sender != nil {
		r.Post("/send", s.handleSend)
		r.Post("/send/abort", s.handleSendAbort)
		r.Post("/send/pause", s.handleSendPause)
		r.Post("/send/resume", s.handleSendResume)
	}
	if s.deps.Decoder != nil {
		r.Get("/decoded", s.handleDecoded)
	}
	return r
}

// Serve runs the HTTP listener until ctx is done. Implements
// suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	s.log.Info().Str("addr", s.addr).Msg("telemetry listening")

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
		return ctx.Err()
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// statusSnapshot is the /status response body.
type statusSnapshot struct {
	Fault   faultStatus    `json:"fault"`
	Stream  streamStatus   `json:"stream"`
	Sender  *senderStatus  `json:"sender,omitempty"`
	Decoder *decoderStatus `json:"decoder,omitempty"`
	Forward *forward.Stats `json:"forward,omitempty"`
}

type faultStatus struct {
	Active bool   `json:"active"`
	Code   string `json:"code"`
	Data   uint32 `json:"data"`
	Count  uint32 `json:"count"`
}

type streamStatus struct {
	WritePosition    uint64 `json:"write_position"`
	Capacity         uint64 `json:"capacity"`
	PendingIdleTicks uint32 `json:"pending_idle_ticks"`
}

type senderStatus struct {
	State string `json:"state"`
	Sent  int    `json:"sent"`
	Total int    `json:"total"`
}

type decoderStatus struct {
	decoder.Stats
	Text string `json:"text"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := statusSnapshot{
		Fault: faultStatus{
			Active: s.deps.Fault.IsActive(),
			Code:   s.deps.Fault.Code().String(),
			Data:   s.deps.Fault.Data(),
			Count:  s.deps.Fault.Count(),
		},
		Stream: streamStatus{
			WritePosition:    s.deps.Stream.WritePosition(),
			Capacity:         s.deps.Stream.Capacity(),
			PendingIdleTicks: s.deps.Stream.PendingIdleTicks(),
		},
	}

	if snd := s.deps.Sender; snd != nil {
		sent, total := snd.Progress()
		snap.Sender = &senderStatus{State: snd.State().String(), Sent: sent, Total: total}
	}
	if d := s.deps.Decoder; d != nil {
		snap.Decoder = &decoderStatus{Stats: d.Stats(), Text: d.Text()}
	}
	if fw := s.deps.Forwarder; fw != nil {
		st := fw.Stats()
		snap.Forward = &st
	}

	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleFaultClear(w http.ResponseWriter, r *http.Request) {
	if s.deps.Keyer != nil {
		s.deps.Keyer.ClearFault()
	} else {
		s.deps.Fault.Clear()
	}
	s.log.Info().Msg("fault cleared via api")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type sendRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := s.deps.Sender.Send(req.Text); err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, text.ErrBusy) {
			code = http.StatusConflict
		}
		writeError(w, code, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sending"})
}

func (s *Server) handleSendAbort(w http.ResponseWriter, r *http.Request) {
	s.deps.Sender.Abort()
	writeJSON(w, http.StatusOK, map[string]string{"status": "aborted"})
}

func (s *Server) handleSendPause(w http.ResponseWriter, r *http.Request) {
	s.deps.Sender.Pause()
	writeJSON(w, http.StatusOK, map[string]string{"status": s.deps.Sender.State().String()})
}

func (s *Server) handleSendResume(w http.ResponseWriter, r *http.Request) {
	s.deps.Sender.Resume()
	writeJSON(w, http.StatusOK, map[string]string{"status": s.deps.Sender.State().String()})
}

type decodedResponse struct {
	Chars []decoder.Decoded `json:"chars"`
	Text  string            `json:"text"`
}

func (s *Server) handleDecoded(w http.ResponseWriter, r *http.Request) {
	chars := s.deps.Decoder.Take()
	buf := make([]rune, len(chars))
	for i, c := range chars {
		buf[i] = c.Char
	}
	writeJSON(w, http.StatusOK, decodedResponse{Chars: chars, Text: string(buf)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}