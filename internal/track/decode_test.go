package track

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abehlok2/session-builder-engine/internal/engineerr"
)

const sampleTrackJSON = `{
  "global_settings": {"sample_rate": 48000, "crossfade_duration": 2, "normalization_level": 0.9},
  "steps": [
    {
      "duration": 10,
      "binaural_volume": 0.5,
      "voices": [
        {
          "synth_function": "binaural_beat",
          "voice_type": "binaural",
          "parameters": {"base_freq": 200, "beat_freq": 10, "amp_l": 0.8, "amp_r": 0.8},
          "volume_envelope": [[0, 0], [1, 1]]
        },
        {
          "synth_function": "made_up_voice",
          "voice_type": "binaural",
          "parameters": {}
        }
      ]
    }
  ],
  "background_noise": {
    "color": "pink",
    "duration_seconds": 10,
    "gain": 0.3,
    "start_time": 1,
    "fade_in": 0.5,
    "fade_out": 0.5
  }
}`

func TestDecodeTrackParsesGlobalsStepsAndSkipsUnknownVoice(t *testing.T) {
	tr, err := DecodeTrack([]byte(sampleTrackJSON))
	require.NoError(t, err)
	require.Equal(t, 48000, tr.Global.SampleRate)
	require.Equal(t, 2.0, tr.Global.CrossfadeDuration)
	require.InDelta(t, 0.9, tr.Global.NormalizationLevel, 1e-9)

	require.Len(t, tr.Steps, 1)
	step := tr.Steps[0]
	require.InDelta(t, 0.5, step.BinauralVolume, 1e-9)
	require.Len(t, step.Voices, 1, "the unknown synth_function voice must be skipped")
	require.Equal(t, SynthBinauralBeat, step.Voices[0].SynthFunction)
	require.Len(t, step.Voices[0].VolumeEnvelope, 2)

	require.NotNil(t, tr.BackgroundNoise)
	require.InDelta(t, 1.0, tr.BackgroundNoise.Params.Exponent, 1e-9, "pink preset should set exponent 1")
	require.InDelta(t, 0.3, tr.BackgroundNoise.Gain, 1e-9)
	require.InDelta(t, 1.0, tr.BackgroundNoise.StartTime, 1e-9)
}

func TestDecodeTrackRejectsMissingSampleRate(t *testing.T) {
	_, err := DecodeTrack([]byte(`{"steps":[{"duration":1}]}`))
	require.Error(t, err)
	var cfgErr *engineerr.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	require.True(t, errors.Is(err, engineerr.ErrConfig))
}

func TestDecodeTrackRejectsNonPositiveStepDuration(t *testing.T) {
	_, err := DecodeTrack([]byte(`{"global_settings":{"sample_rate":48000},"steps":[{"duration":0}]}`))
	require.Error(t, err)
	require.True(t, errors.Is(err, engineerr.ErrConfig))
}

func TestDecodeTrackClampsStepVolumesToMaxIndividualGain(t *testing.T) {
	tr, err := DecodeTrack([]byte(`{
		"global_settings": {"sample_rate": 48000},
		"steps": [{"duration": 1, "binaural_volume": 5, "noise_volume": -1}]
	}`))
	require.NoError(t, err)
	require.InDelta(t, MaxIndividualGain, tr.Steps[0].BinauralVolume, 1e-9)
	require.InDelta(t, 0.0, tr.Steps[0].NoiseVolume, 1e-9)
}

func TestDecodeNoiseParamsPrefersNestedNoiseParametersOverColorParams(t *testing.T) {
	p := decodeNoiseParams(map[string]interface{}{
		"noise_parameters": map[string]interface{}{"exponent": 1.5, "duration_seconds": 5.0},
		"color_params":     map[string]interface{}{"exponent": 9.0},
	})
	require.InDelta(t, 1.5, p.Exponent, 1e-9)
	require.InDelta(t, 5.0, p.DurationSeconds, 1e-9)
}

func TestDecodeNoiseParamsFlatFallback(t *testing.T) {
	p := decodeNoiseParams(map[string]interface{}{"exponent": 2.0, "high_exponent": 1.0, "duration_seconds": 3.0})
	require.InDelta(t, 2.0, p.Exponent, 1e-9)
	require.InDelta(t, 1.0, p.HighExponent, 1e-9)
}

func TestDecodeNoiseParamsSweeps(t *testing.T) {
	p := decodeNoiseParams(map[string]interface{}{
		"sweeps": []interface{}{
			map[string]interface{}{"start_min_hz": 100.0, "start_max_hz": 200.0, "end_min_hz": 150.0, "end_max_hz": 250.0},
		},
	})
	require.Len(t, p.Sweeps, 1)
	require.InDelta(t, 100.0, p.Sweeps[0].StartMinHz, 1e-9)
	require.InDelta(t, 250.0, p.Sweeps[0].EndMaxHz, 1e-9)
}
