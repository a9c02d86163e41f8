// internal/iambic/processor.go
package iambic

import "github.com/iu3qez/remotecwkeyer/internal/sample"

// state is the FSM state.
type state uint8

const (
	stateIdle state = iota
	stateSendDit
	stateSendDah
	stateGap
)

// Processor is the iambic keyer finite state machine. It consumes live
// paddle state plus a monotonic microsecond timestamp and produces one
// Sample per tick whose KeyDown bit reflects dit/dah/gap timing, paddle
// memory, and squeeze alternation. Pure logic: no I/O, no allocation,
// mutated only by its own tick.
type Processor struct {
	config Config

	state           state
	elementStartUs  int64
	elementEndUs    int64
	elementDuration int64
	lastElement     Element

	ditPressed bool
	dahPressed bool

	ditMemory bool
	dahMemory bool

	squeezeSeen    bool
	squeezeLatched bool

	keyDown bool
}

// NewProcessor creates a processor in the idle state.
func NewProcessor(cfg Config) *Processor {
	p := &Processor{config: cfg}
	// Start with dah as the last element so a first squeeze (or a dit
	// press) begins with a dit.
	p.lastElement = Dah
	return p
}

// SetConfig replaces the timing configuration. Only safe to apply while
// the FSM is idle; callers that hot-reload hold the new config until
// Idle() reports true.
func (p *Processor) SetConfig(cfg Config) { p.config = cfg }

// Config returns a copy of the current configuration.
func (p *Processor) Config() Config { return p.config }

// Idle reports whether the FSM is in the idle state.
func (p *Processor) Idle() bool { return p.state == stateIdle }

// KeyDown reports the current key output.
func (p *Processor) KeyDown() bool { return p.keyDown }

// Reset returns the FSM to idle, clearing memory, squeeze, and key
// state. The last-element history survives so alternation stays sane.
func (p *Processor) Reset() {
	p.state = stateIdle
	p.elementStartUs = 0
	p.elementEndUs = 0
	p.elementDuration = 0
	p.ditMemory = false
	p.dahMemory = false
	p.squeezeSeen = false
	p.squeezeLatched = false
	p.keyDown = false
}

// Tick advances the FSM to nowUs with the given paddle state and
// returns the sample for this instant. Audio level and stream flags are
// left for the push path and downstream layers to populate.
func (p *Processor) Tick(nowUs int64, paddles sample.Paddles) sample.Sample {
	p.updatePaddles(paddles, nowUs)

	switch p.state {
	case stateIdle:
		p.tickIdle(nowUs)
	case stateSendDit:
		p.tickSending(nowUs, Dit)
	case stateSendDah:
		p.tickSending(nowUs, Dah)
	case stateGap:
		p.tickGap(nowUs)
	}

	return sample.Sample{
		Paddles: paddles,
		KeyDown: p.keyDown,
	}
}

// updatePaddles tracks live paddle state, squeeze detection, and paddle
// memory arming. Memory arms on every tick while not idle, but only for
// the element opposite the one being sent, and only inside the memory
// window.
func (p *Processor) updatePaddles(paddles sample.Paddles, nowUs int64) {
	wasSqueeze := p.ditPressed && p.dahPressed

	p.ditPressed = paddles.Dit()
	p.dahPressed = paddles.Dah()

	isSqueeze := p.ditPressed && p.dahPressed
	if isSqueeze && !wasSqueeze {
		p.squeezeSeen = true
	}

	// Latch-off samples the squeeze state live; latch-on keeps the
	// snapshot taken at element start.
	if p.config.Squeeze == SqueezeLatchOff {
		p.squeezeLatched = isSqueeze
	}

	if p.state == stateIdle || !p.inMemoryWindow(nowUs) {
		return
	}

	canArmDit := p.state != stateSendDit
	canArmDah := p.state != stateSendDah

	if canArmDit && p.ditPressed && p.config.Memory.DitEnabled() {
		p.ditMemory = true
	}
	if canArmDah && p.dahPressed && p.config.Memory.DahEnabled() {
		p.dahMemory = true
	}
}

// inMemoryWindow reports whether nowUs falls inside the configured
// memory window of the element in progress. The gap always accepts.
func (p *Processor) inMemoryWindow(nowUs int64) bool {
	if p.state != stateSendDit && p.state != stateSendDah {
		return true
	}
	if p.elementDuration <= 0 {
		return true
	}

	elapsed := nowUs - p.elementStartUs
	if elapsed < 0 {
		elapsed = 0
	}

	var progressPct uint8
	if elapsed >= p.elementDuration {
		progressPct = 100
	} else {
		progressPct = uint8(elapsed * 100 / p.elementDuration)
	}

	return p.config.inMemoryWindow(progressPct)
}

func (p *Processor) tickIdle(nowUs int64) {
	if next, ok := p.decideNextElement(); ok {
		p.startElement(next, nowUs)
	}
}

func (p *Processor) tickSending(nowUs int64, element Element) {
	if nowUs < p.elementEndUs {
		return
	}

	p.keyDown = false
	p.lastElement = element

	p.state = stateGap
	p.elementStartUs = nowUs
	p.elementDuration = p.config.GapDuration()
	p.elementEndUs = nowUs + p.elementDuration
}

func (p *Processor) tickGap(nowUs int64) {
	if nowUs < p.elementEndUs {
		return
	}

	p.state = stateIdle
	p.elementDuration = 0

	// Re-evaluate immediately so a queued element starts with zero
	// extra latency.
	p.tickIdle(nowUs)
}

// decideNextElement picks the next element from idle. Priority order,
// first match wins: armed memory, Mode-B bonus element, live paddles.
func (p *Processor) decideNextElement() (Element, bool) {
	if p.ditMemory {
		p.ditMemory = false
		return Dit, true
	}
	if p.dahMemory {
		p.dahMemory = false
		return Dah, true
	}

	if p.config.Mode == ModeB && p.squeezeSeen {
		squeezed := p.squeezeLatched
		if p.config.Squeeze == SqueezeLatchOff {
			squeezed = p.ditPressed && p.dahPressed
		}
		if !squeezed {
			p.squeezeSeen = false
			return p.lastElement.Opposite(), true
		}
	}

	switch {
	case p.ditPressed && p.dahPressed:
		return p.lastElement.Opposite(), true
	case p.ditPressed:
		return Dit, true
	case p.dahPressed:
		return Dah, true
	default:
		p.squeezeSeen = false
		return 0, false
	}
}

func (p *Processor) startElement(element Element, nowUs int64) {
	p.keyDown = true

	// Snapshot the squeeze state at element start (used by latch-on).
	p.squeezeLatched = p.ditPressed && p.dahPressed
	p.squeezeSeen = p.squeezeLatched

	var duration int64
	switch element {
	case Dit:
		duration = p.config.DitDuration()
		p.state = stateSendDit
	case Dah:
		duration = p.config.DahDuration()
		p.state = stateSendDah
	}

	p.elementStartUs = nowUs
	p.elementDuration = duration
	p.elementEndUs = nowUs + duration
}
