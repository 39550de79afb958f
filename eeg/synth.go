package eeg

import (
	"math"
	"math/rand"
)

// Signal model constants, matched to an ADS1299 frontend at gain 24 /
// Vref 4.5 V.
const (
	MicrovoltPerCount = 0.022
	microvoltToCount  = 1.0 / MicrovoltPerCount

	AlphaFreqHz       = 10.0
	BetaFreqHz        = 20.0
	AlphaAmplitudeUV  = 8.0
	BetaAmplitudeUV   = 3.0
	BackgroundNoiseUV = 1.2
	betaPhaseRatio    = 0.7
)

// ChannelProfile is the per-channel gain and phase offset applied to the
// background rhythms, noise and evoked overlay. Fixed for the process
// lifetime.
type ChannelProfile struct {
	Gain  float64
	Phase float64
}

// DefaultChannelProfiles returns the montage used by the emulated device:
// full gain on channel 1, falling off toward the back of the head.
func DefaultChannelProfiles() [ChannelCount]ChannelProfile {
	return [ChannelCount]ChannelProfile{
		{Gain: 1.0, Phase: 0.0},
		{Gain: 0.65, Phase: 0.7},
		{Gain: 0.55, Phase: 1.4},
		{Gain: 0.5, Phase: 2.1},
		{Gain: 0.45, Phase: 0.5},
		{Gain: 0.4, Phase: 1.2},
		{Gain: 0.35, Phase: 1.9},
		{Gain: 0.3, Phase: 2.6},
	}
}

// NoiseSource yields uniform deviates in [0, 1). Injectable so synthesis is
// reproducible under test.
type NoiseSource interface {
	Float64() float64
}

// NewSeededNoise returns a deterministic noise source for the given seed.
func NewSeededNoise(seed int64) NoiseSource {
	return rand.New(rand.NewSource(seed))
}

// WaveformSynthesizer produces one multichannel sample per call from the
// sample index and the current stimulus frame. Given the same index, profiles
// and noise sequence it is fully reproducible.
type WaveformSynthesizer struct {
	profiles [ChannelCount]ChannelProfile
	noiseUV  float64
	noise    NoiseSource
}

func NewWaveformSynthesizer(profiles [ChannelCount]ChannelProfile, noiseUV float64, noise NoiseSource) *WaveformSynthesizer {
	return &WaveformSynthesizer{
		profiles: profiles,
		noiseUV:  noiseUV,
		noise:    noise,
	}
}

// Synthesize generates the sample at index n. Each channel carries the
// alpha/beta background scaled by the channel gain, bounded uniform noise,
// and, while a stimulus is active, the evoked-response overlay scaled by the
// trigger class.
func (w *WaveformSynthesizer) Synthesize(n uint16, frame StimulusFrame) Sample {
	var out Sample
	t := float64(n) / float64(SampleRateHz)

	for ch, p := range w.profiles {
		alpha := AlphaAmplitudeUV * math.Sin(2*math.Pi*AlphaFreqHz*t+p.Phase)
		beta := BetaAmplitudeUV * math.Sin(2*math.Pi*BetaFreqHz*t+p.Phase*betaPhaseRatio)
		uv := (alpha + beta) * p.Gain
		uv += w.sampleNoiseUV() * p.Gain
		if frame.EventScale > 0 {
			uv += float64(frame.EvokedUV) * float64(frame.EventScale) * p.Gain
		}
		out.Signals[ch] = microvoltToCounts(uv)
	}

	out.TriggerState = frame.TriggerState
	out.Reserved[0] = frame.TriggerState
	if frame.TriggerState != 0 {
		out.Reserved[1] = 0xA5
	}
	return out
}

func (w *WaveformSynthesizer) sampleNoiseUV() float64 {
	centered := w.noise.Float64()*2 - 1
	return centered * w.noiseUV
}

// microvoltToCounts converts a microvolt value to the int16 count the wire
// format carries, saturating at the representable bounds rather than
// wrapping.
func microvoltToCounts(uv float64) int16 {
	raw := uv * microvoltToCount
	if raw > math.MaxInt16 {
		return math.MaxInt16
	}
	if raw < math.MinInt16 {
		return math.MinInt16
	}
	return int16(raw)
}
