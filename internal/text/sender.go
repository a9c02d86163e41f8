// internal/text/sender.go

// Package text converts queued text into timed key-down state. The
// runtime tick polls KeyDown through an atomic, so senders and the
// producer loop never share a lock.
package text

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/iu3qez/remotecwkeyer/internal/morse"
)

// MaxTextLen bounds a single send request.
const MaxTextLen = 128

// State is the sender lifecycle state.
type State uint8

const (
	StateIdle State = iota
	StateSending
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

var (
	ErrBusy      = errors.New("text: transmission in progress")
	ErrEmptyText = errors.New("text: empty text")
)

type element uint8

const (
	elemNone element = iota
	elemDit
	elemDah
	elemIntraGap
	elemCharGap
	elemWordGap
)

// wordGapMarker stands in for a pattern when the next "character" is a
// word gap.
const wordGapMarker = " "

// Sender walks queued text pattern by pattern and drives the key with
// standard element timing: 1 dit intra-element, 3 dits between
// characters, 7 dits between words.
type Sender struct {
	log zerolog.Logger

	// keyDown is polled by the runtime tick without taking mu.
	keyDown atomic.Bool

	mu    sync.Mutex
	state State
	wpm   uint32

	text         string
	charIndex    int
	pattern      string
	patternIndex int
	element      element
	elementEndUs int64
	down         bool
}

// NewSender creates an idle sender keying at wpm.
func NewSender(wpm uint32, log zerolog.Logger) *Sender {
	return &Sender{log: log, wpm: wpm}
}

// KeyDown reports the current key state. Safe from any goroutine.
func (s *Sender) KeyDown() bool { return s.keyDown.Load() }

// Active reports whether a transmission is in progress or paused.
func (s *Sender) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != StateIdle
}

// State returns the sender lifecycle state.
func (s *Sender) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetWPM changes the keying speed. Takes effect from the next element.
func (s *Sender) SetWPM(wpm uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wpm = wpm
}

// Send queues text for transmission. Unknown characters are skipped,
// <..> sequences key as prosigns, spaces key as word gaps. Fails if a
// transmission is already in progress.
func (s *Sender) Send(text string) error {
	if text == "" {
		return ErrEmptyText
	}
	if len(text) > MaxTextLen {
		text = text[:MaxTextLen]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrBusy
	}

	s.text = text
	s.charIndex = 0
	s.pattern = ""
	s.patternIndex = 0
	s.element = elemNone
	s.elementEndUs = 0
	s.down = false
	s.state = StateSending

	s.log.Info().Str("text", text).Uint32("wpm", s.wpm).Msg("text send started")
	return nil
}

// Abort stops the transmission and releases the key. A paddle press
// during a send lands here.
func (s *Sender) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return
	}

	s.setKey(false)
	s.state = StateIdle
	s.text = ""
	s.pattern = ""
	s.element = elemNone
	s.elementEndUs = 0
	s.log.Info().Msg("text send aborted")
}

// Pause suspends a transmission with the key released.
func (s *Sender) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSending {
		return
	}
	s.setKey(false)
	s.state = StatePaused
}

// Resume restarts a paused transmission from the next element.
func (s *Sender) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePaused {
		return
	}
	s.elementEndUs = 0
	s.state = StateSending
}

// Progress returns bytes consumed and total queued bytes.
func (s *Sender) Progress() (sent, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.charIndex, len(s.text)
}

// Tick advances element timing. Called by the runtime on every tick.
func (s *Sender) Tick(nowUs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSending {
		return
	}

	// First tick after Send or Resume.
	if s.elementEndUs == 0 {
		if !s.startNextElement(nowUs) {
			s.finish()
		}
		return
	}

	if nowUs < s.elementEndUs {
		return
	}

	s.finishElement(nowUs)
	if s.elementEndUs == 0 {
		if !s.startNextElement(nowUs) {
			s.finish()
		}
	}
}

func (s *Sender) finish() {
	s.setKey(false)
	s.state = StateIdle
	s.log.Info().Msg("text send complete")
}

func (s *Sender) setKey(down bool) {
	s.down = down
	s.keyDown.Store(down)
}

func (s *Sender) ditUs() int64 {
	wpm := s.wpm
	if wpm < 5 {
		wpm = 5
	}
	if wpm > 60 {
		wpm = 60
	}
	return 1_200_000 / int64(wpm)
}

// nextPattern consumes text until it yields a keyable pattern, the
// word gap marker, or nothing (end of text).
func (s *Sender) nextPattern() string {
	for s.charIndex < len(s.text) {
		c := s.text[s.charIndex]

		if c == '<' {
			if pat, n := morse.MatchProsign(s.text[s.charIndex:]); n > 0 {
				s.charIndex += n
				return pat
			}
		}

		if c == ' ' {
			s.charIndex++
			return wordGapMarker
		}

		pat := morse.Pattern(rune(c))
		s.charIndex++
		if pat != "" {
			return pat
		}
		// Unknown character, skip.
	}
	return ""
}

func (s *Sender) startNextElement(nowUs int64) bool {
	dit := s.ditUs()

	if s.patternIndex >= len(s.pattern) {
		// Character gap before the next pattern, unless this follows
		// a word gap (which already covers it).
		if s.pattern != "" && s.pattern != wordGapMarker {
			s.element = elemCharGap
			s.elementEndUs = nowUs + dit*3
			s.setKey(false)
		}

		s.pattern = s.nextPattern()
		s.patternIndex = 0

		if s.pattern == "" {
			return false
		}

		if s.pattern == wordGapMarker {
			// A word gap replaces the character gap entirely.
			s.element = elemWordGap
			s.elementEndUs = nowUs + dit*7
			s.patternIndex = len(s.pattern)
			s.setKey(false)
			return true
		}

		if s.element == elemCharGap {
			// Let the gap we just scheduled elapse first.
			return true
		}
	}

	elem := s.pattern[s.patternIndex]
	s.patternIndex++

	switch elem {
	case '.':
		s.element = elemDit
		s.elementEndUs = nowUs + dit
	case '-':
		s.element = elemDah
		s.elementEndUs = nowUs + dit*3
	default:
		return s.startNextElement(nowUs)
	}

	s.setKey(true)
	return true
}

func (s *Sender) finishElement(nowUs int64) {
	if s.down {
		s.setKey(false)

		if s.patternIndex < len(s.pattern) {
			s.element = elemIntraGap
			s.elementEndUs = nowUs + s.ditUs()
			return
		}
	}
	s.elementEndUs = 0
}