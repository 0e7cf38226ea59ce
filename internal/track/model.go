// Package track implements the track data model, its JSON decoding, and
// the step scheduler that drives voices and background noise into fixed
// stereo blocks (SPEC_FULL.md §3-§4.6).
package track

import (
	"github.com/abehlok2/session-builder-engine/internal/noise"
	"github.com/abehlok2/session-builder-engine/internal/voice"
)

// CrossfadeCurve selects the per-sample gain law used across a step
// boundary (§4.6.1 step 4).
type CrossfadeCurve int

const (
	CrossfadeLinear CrossfadeCurve = iota
	CrossfadeEqualPower
)

// MaxIndividualGain is the absolute clamp applied to each step's
// binaural_volume/noise_volume before group normalisation (glossary).
const MaxIndividualGain = 0.6

// GlobalSettings is the track-wide configuration block (§6.1).
type GlobalSettings struct {
	SampleRate         int
	CrossfadeDuration  float64
	CrossfadeCurve     CrossfadeCurve
	NormalizationLevel float64
}

// SynthFunction names the accepted voice-construction tags (§4.4, §6.1).
type SynthFunction string

const (
	SynthBinauralBeat             SynthFunction = "binaural_beat"
	SynthBinauralBeatTransition   SynthFunction = "binaural_beat_transition"
	SynthIsochronicTone           SynthFunction = "isochronic_tone"
	SynthIsochronicToneTransition SynthFunction = "isochronic_tone_transition"
	SynthNoiseSweptNotch          SynthFunction = "noise_swept_notch"
	SynthNoiseSweptNotchTransition SynthFunction = "noise_swept_notch_transition"
)

// VoiceData is one decoded entry of a step's voice list (§6.1).
type VoiceData struct {
	SynthFunction  SynthFunction
	Parameters     map[string]interface{}
	VolumeEnvelope []voice.EnvelopePoint
	IsTransition   bool
	VoiceType      voice.Type
}

// StepData is one decoded track step (§3, §6.1).
type StepData struct {
	Duration                 float64
	Voices                   []VoiceData
	BinauralVolume           float64
	NoiseVolume              float64
	NormalizationLevel       float64
	HasNormalizationOverride bool
}

// BackgroundNoiseData is the decoded optional global noise overlay
// (§3, §4.6.3).
type BackgroundNoiseData struct {
	Params      noise.Params
	Gain        float64
	StartTime   float64
	FadeIn      float64
	FadeOut     float64
	AmpEnvelope []voice.EnvelopePoint
}

// Compatible reports whether b describes the same noise configuration as
// other (same params/start/fades/envelope), per §4.6.3's reuse rule.
func (b *BackgroundNoiseData) Compatible(other *BackgroundNoiseData) bool {
	if b == nil || other == nil {
		return b == other
	}
	if b.StartTime != other.StartTime || b.FadeIn != other.FadeIn || b.FadeOut != other.FadeOut {
		return false
	}
	if len(b.AmpEnvelope) != len(other.AmpEnvelope) {
		return false
	}
	for i := range b.AmpEnvelope {
		if b.AmpEnvelope[i] != other.AmpEnvelope[i] {
			return false
		}
	}
	return noiseParamsEqual(b.Params, other.Params)
}

func noiseParamsEqual(a, c noise.Params) bool {
	if a.DurationSeconds != c.DurationSeconds || a.LFOWaveform != c.LFOWaveform || a.Transition != c.Transition ||
		a.StartLFOFreqHz != c.StartLFOFreqHz || a.EndLFOFreqHz != c.EndLFOFreqHz ||
		a.Exponent != c.Exponent || a.HighExponent != c.HighExponent || a.DistributionCurve != c.DistributionCurve ||
		a.HasLowcut != c.HasLowcut || a.LowcutHz != c.LowcutHz || a.HasHighcut != c.HasHighcut || a.HighcutHz != c.HighcutHz ||
		a.Amplitude != c.Amplitude || a.Seed != c.Seed ||
		a.PhaseOffsetDeg != c.PhaseOffsetDeg || a.InitialOffsetDeg != c.InitialOffsetDeg || a.IntraOffsetDeg != c.IntraOffsetDeg {
		return false
	}
	if len(a.Sweeps) != len(c.Sweeps) {
		return false
	}
	for i := range a.Sweeps {
		if a.Sweeps[i] != c.Sweeps[i] {
			return false
		}
	}
	return true
}

// TrackData is the fully decoded track (§3, §6.1).
type TrackData struct {
	Global          GlobalSettings
	Steps           []StepData
	BackgroundNoise *BackgroundNoiseData
}

// StepsHaveContinuousVoices reports whether steps a and b carry the same
// voice list shape slot-for-slot (same count, synth tags, transition
// flags, voice types and parameters), per §4.6.1 step 3 and §9: when
// true, no crossfade is needed; the scheduler builds the next step's
// voices afresh, seeded with the outgoing voices' phases.
func StepsHaveContinuousVoices(a, b StepData) bool {
	if len(a.Voices) != len(b.Voices) {
		return false
	}
	for i := range a.Voices {
		va, vb := a.Voices[i], b.Voices[i]
		if va.SynthFunction != vb.SynthFunction || va.IsTransition != vb.IsTransition || va.VoiceType != vb.VoiceType {
			return false
		}
		if !parametersEqual(va.Parameters, vb.Parameters) {
			return false
		}
	}
	return true
}

func parametersEqual(a, b map[string]interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if af, ok1 := av.(float64); ok1 {
			bf, ok2 := bv.(float64)
			if !ok2 || af != bf {
				return false
			}
			continue
		}
		if av != bv {
			return false
		}
	}
	return true
}
