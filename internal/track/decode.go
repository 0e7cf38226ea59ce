package track

import (
	"encoding/json"
	"fmt"

	"github.com/abehlok2/session-builder-engine/internal/engineerr"
	"github.com/abehlok2/session-builder-engine/internal/logging"
	"github.com/abehlok2/session-builder-engine/internal/noise"
	"github.com/abehlok2/session-builder-engine/internal/voice"
)

type rawGlobalSettings struct {
	SampleRate         int      `json:"sample_rate"`
	CrossfadeDuration  *float64 `json:"crossfade_duration"`
	CrossfadeCurve     *string  `json:"crossfade_curve"`
	NormalizationLevel *float64 `json:"normalization_level"`
}

type rawVoiceData struct {
	SynthFunction  string                 `json:"synth_function"`
	Parameters     map[string]interface{} `json:"parameters"`
	VolumeEnvelope [][2]float64           `json:"volume_envelope"`
	IsTransition   bool                   `json:"is_transition"`
	VoiceType      string                 `json:"voice_type"`
}

type rawStepData struct {
	Duration           float64        `json:"duration"`
	Voices             []rawVoiceData `json:"voices"`
	BinauralVolume     *float64       `json:"binaural_volume"`
	NoiseVolume        *float64       `json:"noise_volume"`
	NormalizationLevel *float64       `json:"normalization_level"`
}

type rawTrackData struct {
	GlobalSettings   rawGlobalSettings       `json:"global_settings"`
	Steps            []rawStepData           `json:"steps"`
	BackgroundNoise  *map[string]interface{} `json:"background_noise"`
}

// DecodeTrack parses a track JSON payload (§6.1) into a TrackData. Unknown
// voice synth_function tags are skipped with a warning (§7
// UnknownVoice); every other structural problem is reported as
// *engineerr.ConfigError wrapping engineerr.ErrConfig.
func DecodeTrack(data []byte) (TrackData, error) {
	var raw rawTrackData
	if err := json.Unmarshal(data, &raw); err != nil {
		return TrackData{}, engineerr.NewConfigError("", err)
	}
	if raw.GlobalSettings.SampleRate <= 0 {
		return TrackData{}, engineerr.NewConfigError("global_settings.sample_rate", fmt.Errorf("must be a positive integer"))
	}

	global := GlobalSettings{
		SampleRate:         raw.GlobalSettings.SampleRate,
		CrossfadeDuration:  3.0,
		CrossfadeCurve:     CrossfadeLinear,
		NormalizationLevel: 0.95,
	}
	if raw.GlobalSettings.CrossfadeDuration != nil {
		global.CrossfadeDuration = *raw.GlobalSettings.CrossfadeDuration
	}
	if raw.GlobalSettings.CrossfadeCurve != nil && *raw.GlobalSettings.CrossfadeCurve == "equal_power" {
		global.CrossfadeCurve = CrossfadeEqualPower
	}
	if raw.GlobalSettings.NormalizationLevel != nil {
		global.NormalizationLevel = *raw.GlobalSettings.NormalizationLevel
	}

	steps := make([]StepData, 0, len(raw.Steps))
	for i, rs := range raw.Steps {
		if rs.Duration <= 0 {
			return TrackData{}, engineerr.NewConfigError(fmt.Sprintf("steps[%d].duration", i), fmt.Errorf("must be > 0"))
		}
		step := StepData{
			Duration:       rs.Duration,
			BinauralVolume: 0.6,
			NoiseVolume:    0.6,
		}
		if rs.BinauralVolume != nil {
			step.BinauralVolume = clamp(*rs.BinauralVolume, 0, MaxIndividualGain)
		}
		if rs.NoiseVolume != nil {
			step.NoiseVolume = clamp(*rs.NoiseVolume, 0, MaxIndividualGain)
		}
		if rs.NormalizationLevel != nil {
			step.NormalizationLevel = *rs.NormalizationLevel
			step.HasNormalizationOverride = true
		}
		for j, rv := range rs.Voices {
			vd, ok := decodeVoiceData(rv)
			if !ok {
				err := fmt.Errorf("synth_function %q: %w", rv.SynthFunction, engineerr.ErrUnknownVoice)
				logging.Logger().Warn("skipping voice with unknown synth_function", "step", i, "voice", j, "err", err)
				continue
			}
			step.Voices = append(step.Voices, vd)
		}
		steps = append(steps, step)
	}

	track := TrackData{Global: global, Steps: steps}
	if raw.BackgroundNoise != nil {
		bn := decodeBackgroundNoise(*raw.BackgroundNoise)
		track.BackgroundNoise = &bn
	}
	return track, nil
}

func decodeVoiceData(rv rawVoiceData) (VoiceData, bool) {
	switch SynthFunction(rv.SynthFunction) {
	case SynthBinauralBeat, SynthBinauralBeatTransition, SynthIsochronicTone, SynthIsochronicToneTransition,
		SynthNoiseSweptNotch, SynthNoiseSweptNotchTransition:
	default:
		return VoiceData{}, false
	}

	vt := voice.TypeOther
	switch rv.VoiceType {
	case "binaural":
		vt = voice.TypeBinaural
	case "noise":
		vt = voice.TypeNoise
	}

	points := make([]voice.EnvelopePoint, len(rv.VolumeEnvelope))
	for i, p := range rv.VolumeEnvelope {
		points[i] = voice.EnvelopePoint{TimeSeconds: p[0], Amplitude: p[1]}
	}

	return VoiceData{
		SynthFunction:  SynthFunction(rv.SynthFunction),
		Parameters:     rv.Parameters,
		VolumeEnvelope: points,
		IsTransition:   rv.IsTransition,
		VoiceType:      vt,
	}, true
}

func decodeBackgroundNoise(src map[string]interface{}) BackgroundNoiseData {
	gain := 1.0
	if v, ok := getFloatOK(src, "gain"); ok {
		gain = v
	}
	points := make([]voice.EnvelopePoint, 0)
	if raw, ok := src["amp_envelope"].([]interface{}); ok {
		for _, e := range raw {
			if pair, ok := e.([]interface{}); ok && len(pair) == 2 {
				t, _ := pair[0].(float64)
				a, _ := pair[1].(float64)
				points = append(points, voice.EnvelopePoint{TimeSeconds: t, Amplitude: a})
			}
		}
	}
	return BackgroundNoiseData{
		Params:      decodeNoiseParams(src),
		Gain:        gain,
		StartTime:   getFloat(src, "start_time", 0),
		FadeIn:      getFloat(src, "fade_in", 0),
		FadeOut:     getFloat(src, "fade_out", 0),
		AmpEnvelope: points,
	}
}

// decodeNoiseParams resolves a noise.Params from src per §3.1: a nested
// "noise_parameters" object takes precedence over "color_params"; absent
// either, src itself is treated as the flattened noise-parameter source
// (the BackgroundNoiseData JSON embeds NoiseParams directly).
func decodeNoiseParams(src map[string]interface{}) noise.Params {
	if nested, ok := src["noise_parameters"].(map[string]interface{}); ok {
		src = nested
	} else if nested, ok := src["color_params"].(map[string]interface{}); ok {
		src = nested
	}

	p := noise.Params{
		DurationSeconds:  getFloat(src, "duration_seconds", 0),
		Transition:       getBool(src, "transition", false),
		StartLFOFreqHz:   getFloat(src, "start_lfo_freq_hz", 0),
		EndLFOFreqHz:     getFloat(src, "end_lfo_freq_hz", 0),
		HasLowcut:        false,
		HasHighcut:       false,
		Amplitude:        getFloat(src, "amplitude", 0),
		Seed:             int64(getFloat(src, "seed", 0)),
		PhaseOffsetDeg:   getFloat(src, "phase_offset_deg", 0),
		InitialOffsetDeg: getFloat(src, "initial_offset_deg", 0),
		IntraOffsetDeg:   getFloat(src, "intra_offset_deg", 0),
	}
	if getString(src, "lfo_waveform", "sine") == "triangle" {
		p.LFOWaveform = noise.LFOTriangle
	}

	_, hasExp := src["exponent"]
	_, hasHighExp := src["high_exponent"]
	p.Exponent = getFloat(src, "exponent", 0)
	p.HighExponent = getFloat(src, "high_exponent", 0)
	if !hasExp && !hasHighExp {
		if colour, ok := getStringOK(src, "color"); ok {
			if applied, ok2 := noise.ApplyColourPreset(p, colour); ok2 {
				p = applied
			} else {
				err := fmt.Errorf("color %q: %w", colour, engineerr.ErrUnknownNoisePreset)
				logging.Logger().Warn("unknown noise colour preset", "err", err)
			}
		}
	}
	p.DistributionCurve = getFloat(src, "distribution_curve", 0)

	if v, ok := getFloatOK(src, "lowcut"); ok {
		p.HasLowcut = true
		p.LowcutHz = v
	}
	if v, ok := getFloatOK(src, "highcut"); ok {
		p.HasHighcut = true
		p.HighcutHz = v
	}

	if rawSweeps, ok := src["sweeps"].([]interface{}); ok {
		for _, rs := range rawSweeps {
			sm, ok := rs.(map[string]interface{})
			if !ok {
				continue
			}
			p.Sweeps = append(p.Sweeps, noise.Sweep{
				StartMinHz:   getFloat(sm, "start_min_hz", 0),
				StartMaxHz:   getFloat(sm, "start_max_hz", 0),
				EndMinHz:     getFloat(sm, "end_min_hz", 0),
				EndMaxHz:     getFloat(sm, "end_max_hz", 0),
				StartQ:       getFloat(sm, "start_q", 4),
				EndQ:         getFloat(sm, "end_q", 4),
				StartCascade: int(getFloat(sm, "start_cascade", 1)),
				EndCascade:   int(getFloat(sm, "end_cascade", 1)),
			})
		}
	}

	return p.WithDefaults()
}

func getFloat(src map[string]interface{}, key string, def float64) float64 {
	if v, ok := getFloatOK(src, key); ok {
		return v
	}
	return def
}

func getFloatOK(src map[string]interface{}, key string) (float64, bool) {
	v, ok := src[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func getBool(src map[string]interface{}, key string, def bool) bool {
	if v, ok := src[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func getString(src map[string]interface{}, key string, def string) string {
	if v, ok := getStringOK(src, key); ok {
		return v
	}
	return def
}

func getStringOK(src map[string]interface{}, key string) (string, bool) {
	v, ok := src[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
