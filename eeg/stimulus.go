package eeg

import (
	"math"
	"sync"
)

const (
	// TriggerPulseWidthSamples is the default width of the emulated GPIO
	// trigger pulse (~24 ms at 250 SPS). Independent of the playback length.
	TriggerPulseWidthSamples = 6

	// EvokedTableLength is the length of the precomputed evoked-response
	// waveform (500 ms at 250 SPS).
	EvokedTableLength = 125

	// EvokedTriggerOffset is where playback starts within the table.
	EvokedTriggerOffset = 0

	targetEventScale    = 1.0
	nontargetEventScale = 0.35
	defaultEventScale   = 0.25
)

// evokedWaveformUV is the evoked-response template in microvolts: a small
// negative deflection around 100 ms followed by a positive peak near 300 ms.
var evokedWaveformUV = buildEvokedWaveform()

func buildEvokedWaveform() [EvokedTableLength]float32 {
	var table [EvokedTableLength]float32
	for i := range table {
		t := float64(i) / float64(SampleRateHz) // seconds since trigger
		n1 := -4.0 * gaussian(t, 0.100, 0.025)
		p3 := 10.0 * gaussian(t, 0.300, 0.060)
		table[i] = float32(n1 + p3)
	}
	return table
}

func gaussian(t, mean, sigma float64) float64 {
	z := (t - mean) / sigma
	return math.Exp(-0.5 * z * z)
}

func eventAmplitudeScale(triggerClass byte) float32 {
	switch triggerClass {
	case 1:
		return targetEventScale
	case 2:
		return nontargetEventScale
	default:
		return defaultEventScale
	}
}

// StimulusFrame is the per-sample view of the stimulus state consumed by the
// synthesizer: the current table value, the amplitude scale for the active
// trigger class (zero while idle), and the trigger-state byte for this sample.
type StimulusFrame struct {
	EvokedUV     float32
	EventScale   float32
	TriggerState byte
}

// StimulusController tracks at most one active evoked-response playback and
// the trigger pulse counter. Trigger may be called from the command handling
// goroutine; Step and Reset run on the engine loop. All state is guarded by a
// short mutex that never waits on anything else.
type StimulusController struct {
	mu             sync.Mutex
	active         bool
	cursor         int
	triggerClass   byte
	pulseRemaining int
}

func NewStimulusController() *StimulusController {
	return &StimulusController{}
}

// Trigger starts (or restarts) evoked-response playback with the given class
// and reloads the pulse counter to pulseWidth samples.
func (s *StimulusController) Trigger(class byte, pulseWidth int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	s.cursor = EvokedTriggerOffset
	if s.cursor > EvokedTableLength-1 {
		s.cursor = EvokedTableLength - 1
	}
	s.triggerClass = class & 0x0F
	s.pulseRemaining = pulseWidth
}

// Reset discards any active playback and pulse. Running playback cannot be
// cancelled mid-flight except through this full reset on stop or disconnect.
func (s *StimulusController) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.cursor = 0
	s.triggerClass = 0
	s.pulseRemaining = 0
}

// Active reports whether a playback is in progress.
func (s *StimulusController) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Step consumes one sample period of stimulus state: it returns the current
// table value and scale, advances the playback cursor, and counts down the
// pulse. Playback length and pulse width advance independently.
func (s *StimulusController) Step() StimulusFrame {
	s.mu.Lock()
	defer s.mu.Unlock()

	var frame StimulusFrame
	if s.active {
		frame.EvokedUV = evokedWaveformUV[s.cursor]
		frame.EventScale = eventAmplitudeScale(s.triggerClass)
		s.cursor++
		if s.cursor >= EvokedTableLength {
			s.active = false
			s.cursor = 0
		}
	}
	if s.pulseRemaining > 0 {
		frame.TriggerState = s.triggerClass
		s.pulseRemaining--
	}
	return frame
}
