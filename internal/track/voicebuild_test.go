package track

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abehlok2/session-builder-engine/internal/voice"
)

const buildFs = 48000.0

func TestBuildVoiceBinauralBeat(t *testing.T) {
	vd := VoiceData{
		SynthFunction: SynthBinauralBeat,
		Parameters:    map[string]interface{}{"base_freq": 200.0, "beat_freq": 10.0, "amp_l": 0.5, "amp_r": 0.5},
		VoiceType:     voice.TypeBinaural,
	}
	v, err := BuildVoice(vd, 1.0, buildFs)
	require.NoError(t, err)
	out := make([]float64, 2*1000)
	v.Process(out)
	require.False(t, v.IsFinished())
}

func TestBuildVoiceUnknownSynthFunctionErrors(t *testing.T) {
	_, err := BuildVoice(VoiceData{SynthFunction: "nonsense"}, 1.0, buildFs)
	require.Error(t, err)
}

func TestBuildVoiceWrapsVolumeEnvelopeWhenPresent(t *testing.T) {
	vd := VoiceData{
		SynthFunction:  SynthBinauralBeat,
		Parameters:     map[string]interface{}{"base_freq": 200.0, "amp_l": 1.0, "amp_r": 1.0},
		VolumeEnvelope: []voice.EnvelopePoint{{TimeSeconds: 0, Amplitude: 0.25}, {TimeSeconds: 1, Amplitude: 0.25}},
	}
	v, err := BuildVoice(vd, 1.0, buildFs)
	require.NoError(t, err)
	_, ok := v.(*voice.VolumeEnvelope)
	require.True(t, ok)
}

func TestCascadeDefaultsChainThroughStartAndEnd(t *testing.T) {
	// bare field only: both start and end inherit it.
	s, e := cascade(map[string]interface{}{"base_freq": 300.0}, "base_freq", 0)
	require.InDelta(t, 300.0, s, 1e-9)
	require.InDelta(t, 300.0, e, 1e-9)

	// start_ overrides the bare field; end_ defaults to start_.
	s, e = cascade(map[string]interface{}{"base_freq": 300.0, "start_base_freq": 100.0}, "base_freq", 0)
	require.InDelta(t, 100.0, s, 1e-9)
	require.InDelta(t, 100.0, e, 1e-9)

	// explicit end_ wins outright.
	s, e = cascade(map[string]interface{}{"start_base_freq": 100.0, "end_base_freq": 400.0}, "base_freq", 0)
	require.InDelta(t, 100.0, s, 1e-9)
	require.InDelta(t, 400.0, e, 1e-9)
}

func TestBuildVoiceBinauralTransitionUsesCascadedParams(t *testing.T) {
	vd := VoiceData{
		SynthFunction: SynthBinauralBeatTransition,
		Parameters: map[string]interface{}{
			"start_base_freq": 100.0, "end_base_freq": 400.0,
			"amp_l": 1.0, "amp_r": 1.0,
			"initial_offset": 0.0, "post_offset": 0.0,
		},
	}
	v, err := BuildVoice(vd, 2.0, buildFs)
	require.NoError(t, err)
	out := make([]float64, 2*10)
	v.Process(out)
	for _, s := range out {
		require.False(t, s != s, "must not be NaN")
	}
}

func TestBuildVoiceNoiseSweptNotch(t *testing.T) {
	vd := VoiceData{
		SynthFunction: SynthNoiseSweptNotch,
		Parameters:    map[string]interface{}{"duration_seconds": 0.1, "exponent": 1.0, "high_exponent": 1.0, "amplitude": 0.4},
	}
	v, err := BuildVoice(vd, 5.0, buildFs)
	require.NoError(t, err)
	require.InDelta(t, 0.4, v.NormalizationPeak(), 1e-6)
}

func TestBuildVoiceNoiseSweptNotchTransitionSplitsStartEnd(t *testing.T) {
	vd := VoiceData{
		SynthFunction: SynthNoiseSweptNotchTransition,
		Parameters: map[string]interface{}{
			"start": map[string]interface{}{"duration_seconds": 1.0, "exponent": 1.0, "high_exponent": 1.0, "amplitude": 0.2},
			"end":   map[string]interface{}{"duration_seconds": 1.0, "exponent": 2.0, "high_exponent": 2.0, "amplitude": 0.6},
		},
	}
	v, err := BuildVoice(vd, 1.0, buildFs)
	require.NoError(t, err)
	require.Greater(t, v.NormalizationPeak(), 0.0)
}
