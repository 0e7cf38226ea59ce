package track

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abehlok2/session-builder-engine/internal/voice"
)

func TestStepsHaveContinuousVoicesDetectsIdenticalSteps(t *testing.T) {
	a := StepData{Voices: []VoiceData{{
		SynthFunction: SynthBinauralBeat,
		Parameters:    map[string]interface{}{"base_freq": 200.0},
		VoiceType:     voice.TypeBinaural,
	}}}
	b := StepData{Voices: []VoiceData{{
		SynthFunction: SynthBinauralBeat,
		Parameters:    map[string]interface{}{"base_freq": 200.0},
		VoiceType:     voice.TypeBinaural,
	}}}
	require.True(t, StepsHaveContinuousVoices(a, b))
}

func TestStepsHaveContinuousVoicesDetectsParameterChange(t *testing.T) {
	a := StepData{Voices: []VoiceData{{SynthFunction: SynthBinauralBeat, Parameters: map[string]interface{}{"base_freq": 200.0}}}}
	b := StepData{Voices: []VoiceData{{SynthFunction: SynthBinauralBeat, Parameters: map[string]interface{}{"base_freq": 210.0}}}}
	require.False(t, StepsHaveContinuousVoices(a, b))
}

func TestStepsHaveContinuousVoicesDetectsCountChange(t *testing.T) {
	a := StepData{Voices: []VoiceData{{SynthFunction: SynthBinauralBeat}}}
	b := StepData{}
	require.False(t, StepsHaveContinuousVoices(a, b))
}

func TestBackgroundNoiseDataCompatibleRequiresMatchingFades(t *testing.T) {
	a := &BackgroundNoiseData{StartTime: 0, FadeIn: 1, FadeOut: 1}
	b := &BackgroundNoiseData{StartTime: 0, FadeIn: 2, FadeOut: 1}
	require.True(t, a.Compatible(a))
	require.False(t, a.Compatible(b))
}

func TestBackgroundNoiseDataCompatibleNilHandling(t *testing.T) {
	var a *BackgroundNoiseData
	b := &BackgroundNoiseData{}
	require.False(t, a.Compatible(b))
	require.True(t, a.Compatible(nil))
}
