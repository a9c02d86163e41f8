// internal/decoder/classifier.go
package decoder

// Event is a classified key timing event.
type Event uint8

const (
	EventUnknown Event = iota
	EventDit
	EventDah
	EventIntraGap
	EventCharGap
	EventWordGap
)

func (e Event) String() string {
	switch e {
	case EventDit:
		return "DIT"
	case EventDah:
		return "DAH"
	case EventIntraGap:
		return "INTRA_GAP"
	case EventCharGap:
		return "CHAR_GAP"
	case EventWordGap:
		return "WORD_GAP"
	default:
		return "UNKNOWN"
	}
}

const (
	// warmupEvents is how many marks the classifier needs before its
	// WPM estimate counts as calibrated.
	warmupEvents = 3

	defaultEMAAlpha     = 0.3
	defaultTolerancePct = 25.0

	// Durations outside this range are noise or idle, not elements.
	minDurationUs = 5_000
	maxDurationUs = 5_000_000
)

// Classifier learns an operator's timing with exponential moving
// averages of dit and dah durations and classifies marks and spaces
// against them.
type Classifier struct {
	ditAvgUs int64
	dahAvgUs int64

	ditCount uint32
	dahCount uint32
	warmup   uint32

	tolerancePct float64
	emaAlpha     float64
}

// NewClassifier seeds the averages from an initial WPM estimate
// (PARIS: dit = 1,200,000 µs / WPM; ideal dah = 3 dits).
func NewClassifier(initialWPM float64) *Classifier {
	c := &Classifier{}
	c.Reset(initialWPM)
	return c
}

// Reset reseeds the classifier from an initial WPM estimate.
func (c *Classifier) Reset(initialWPM float64) {
	dit := wpmToDitUs(initialWPM)
	c.ditAvgUs = dit
	c.dahAvgUs = dit * 3
	c.ditCount = 0
	c.dahCount = 0
	c.warmup = warmupEvents
	c.tolerancePct = defaultTolerancePct
	c.emaAlpha = defaultEMAAlpha
}

// Classify classifies one duration. Marks update the running averages;
// spaces are classified against the current dit average only.
func (c *Classifier) Classify(durationUs int64, isMark bool) Event {
	if durationUs < minDurationUs || durationUs > maxDurationUs {
		return EventUnknown
	}

	if !isMark {
		// Intra gap ~1 dit, char gap ~3 dits, word gap ~7 dits.
		dit := c.ditAvgUs
		switch {
		case durationUs < dit*2:
			return EventIntraGap
		case durationUs < dit*5:
			return EventCharGap
		default:
			return EventWordGap
		}
	}

	// The midpoint between the dit and dah averages, widened by the
	// tolerance band, separates dit from dah.
	threshold := (c.ditAvgUs*3 + c.dahAvgUs) / 4
	adjusted := int64(float64(threshold) * (1.0 + c.tolerancePct/100.0))

	var event Event
	if durationUs < adjusted {
		event = EventDit
		c.ditAvgUs = ema(c.ditAvgUs, durationUs, c.emaAlpha)
		c.ditCount++
	} else {
		event = EventDah
		c.dahAvgUs = ema(c.dahAvgUs, durationUs, c.emaAlpha)
		c.dahCount++
	}

	if c.warmup > 0 {
		c.warmup--
	}
	return event
}

// Calibrated reports whether the warmup period is over.
func (c *Classifier) Calibrated() bool { return c.warmup == 0 }

// WPM returns the estimated operator speed, or 0 before calibration.
func (c *Classifier) WPM() uint32 {
	if c.warmup > 0 || c.ditAvgUs <= 0 {
		return 0
	}
	return uint32(1_200_000 / c.ditAvgUs)
}

// DitAvgUs returns the current dit average in microseconds.
func (c *Classifier) DitAvgUs() int64 { return c.ditAvgUs }

// Ratio returns dah average over dit average (ideally 3.0).
func (c *Classifier) Ratio() float64 {
	if c.ditAvgUs <= 0 {
		return 0
	}
	return float64(c.dahAvgUs) / float64(c.ditAvgUs)
}

// SetTolerance adjusts the mark classification tolerance band.
func (c *Classifier) SetTolerance(pct float64) { c.tolerancePct = pct }

func wpmToDitUs(wpm float64) int64 {
	if wpm < 1 {
		wpm = 1
	}
	return int64(1_200_000 / wpm)
}

func ema(oldAvg, value int64, alpha float64) int64 {
	return int64(alpha*float64(value) + (1.0-alpha)*float64(oldAvg))
}
