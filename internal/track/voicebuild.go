package track

import (
	"fmt"
	"math"

	"github.com/abehlok2/session-builder-engine/internal/dsp"
	"github.com/abehlok2/session-builder-engine/internal/voice"
)

func degToRad(d float64) float64 { return d * math.Pi / 180 }

func shapeFromString(s string) dsp.OscShape {
	if s == "triangle" {
		return dsp.ShapeTriangle
	}
	return dsp.ShapeSine
}

func curveFromString(s string) voice.Curve {
	switch s {
	case "logarithmic":
		return voice.CurveLogarithmic
	case "exponential":
		return voice.CurveExponential
	default:
		return voice.CurveLinear
	}
}

// cascade implements §9's numerical-ambiguity default chain: the bare
// field (or baseDefault) seeds the non-transition value, start_<field>
// defaults to that, end_<field> defaults to start_<field>.
func cascade(m map[string]interface{}, field string, baseDefault float64) (start, end float64) {
	base := getFloat(m, field, baseDefault)
	start = getFloat(m, "start_"+field, base)
	end = getFloat(m, "end_"+field, start)
	return
}

func cascadeBool(m map[string]interface{}, field string, baseDefault bool) (start, end bool) {
	base := getBool(m, field, baseDefault)
	start = getBool(m, "start_"+field, base)
	end = getBool(m, "end_"+field, start)
	return
}

func binauralParamsFromMap(m map[string]interface{}, duration float64) voice.BinauralParams {
	return voice.BinauralParams{
		BaseFreq:  getFloat(m, "base_freq", 0),
		BeatFreq:  getFloat(m, "beat_freq", 0),
		LeftHigh:  getBool(m, "left_high", false),
		ForceMono: getBool(m, "force_mono", false),
		AmpL:      getFloat(m, "amp_l", 1),
		AmpR:      getFloat(m, "amp_r", 1),

		VibShape:   shapeFromString(getString(m, "vib_shape", "sine")),
		VibRangeL:  getFloat(m, "vib_range_l", 0),
		VibRangeR:  getFloat(m, "vib_range_r", 0),
		VibFreqL:   getFloat(m, "vib_freq_l", 0),
		VibFreqR:   getFloat(m, "vib_freq_r", 0),
		VibSkewL:   getFloat(m, "vib_skew_l", 0),
		VibSkewR:   getFloat(m, "vib_skew_r", 0),
		VibOffsetL: degToRad(getFloat(m, "vib_offset_l_deg", 0)),
		VibOffsetR: degToRad(getFloat(m, "vib_offset_r_deg", 0)),

		AmpDepthL: getFloat(m, "amp_depth_l", 0),
		AmpDepthR: getFloat(m, "amp_depth_r", 0),
		AmpFreqL:  getFloat(m, "amp_freq_l", 0),
		AmpFreqR:  getFloat(m, "amp_freq_r", 0),
		AmpSkewL:  getFloat(m, "amp_skew_l", 0),
		AmpSkewR:  getFloat(m, "amp_skew_r", 0),

		PhaseOscRange: getFloat(m, "phase_osc_range", 0),
		PhaseOscFreq:  getFloat(m, "phase_osc_freq", 0),

		Duration: duration,
	}
}

func binauralTransitionParamsFromMap(m map[string]interface{}, duration float64) voice.BinauralTransitionParams {
	shape := shapeFromString(getString(m, "vib_shape", "sine"))

	baseFreqS, baseFreqE := cascade(m, "base_freq", 0)
	beatFreqS, beatFreqE := cascade(m, "beat_freq", 0)
	leftHighS, leftHighE := cascadeBool(m, "left_high", false)
	forceMonoS, forceMonoE := cascadeBool(m, "force_mono", false)
	ampLS, ampLE := cascade(m, "amp_l", 1)
	ampRS, ampRE := cascade(m, "amp_r", 1)
	vRangeLS, vRangeLE := cascade(m, "vib_range_l", 0)
	vRangeRS, vRangeRE := cascade(m, "vib_range_r", 0)
	vFreqLS, vFreqLE := cascade(m, "vib_freq_l", 0)
	vFreqRS, vFreqRE := cascade(m, "vib_freq_r", 0)
	vSkewLS, vSkewLE := cascade(m, "vib_skew_l", 0)
	vSkewRS, vSkewRE := cascade(m, "vib_skew_r", 0)
	vOffLS, vOffLE := cascade(m, "vib_offset_l_deg", 0)
	vOffRS, vOffRE := cascade(m, "vib_offset_r_deg", 0)
	depthLS, depthLE := cascade(m, "amp_depth_l", 0)
	depthRS, depthRE := cascade(m, "amp_depth_r", 0)
	aFreqLS, aFreqLE := cascade(m, "amp_freq_l", 0)
	aFreqRS, aFreqRE := cascade(m, "amp_freq_r", 0)
	aSkewLS, aSkewLE := cascade(m, "amp_skew_l", 0)
	aSkewRS, aSkewRE := cascade(m, "amp_skew_r", 0)
	pRangeS, pRangeE := cascade(m, "phase_osc_range", 0)
	pFreqS, pFreqE := cascade(m, "phase_osc_freq", 0)

	start := voice.BinauralParams{
		BaseFreq: baseFreqS, BeatFreq: beatFreqS, LeftHigh: leftHighS, ForceMono: forceMonoS,
		AmpL: ampLS, AmpR: ampRS, VibShape: shape,
		VibRangeL: vRangeLS, VibRangeR: vRangeRS, VibFreqL: vFreqLS, VibFreqR: vFreqRS,
		VibSkewL: vSkewLS, VibSkewR: vSkewRS, VibOffsetL: degToRad(vOffLS), VibOffsetR: degToRad(vOffRS),
		AmpDepthL: depthLS, AmpDepthR: depthRS, AmpFreqL: aFreqLS, AmpFreqR: aFreqRS,
		AmpSkewL: aSkewLS, AmpSkewR: aSkewRS, PhaseOscRange: pRangeS, PhaseOscFreq: pFreqS,
	}
	end := voice.BinauralParams{
		BaseFreq: baseFreqE, BeatFreq: beatFreqE, LeftHigh: leftHighE, ForceMono: forceMonoE,
		AmpL: ampLE, AmpR: ampRE, VibShape: shape,
		VibRangeL: vRangeLE, VibRangeR: vRangeRE, VibFreqL: vFreqLE, VibFreqR: vFreqRE,
		VibSkewL: vSkewLE, VibSkewR: vSkewRE, VibOffsetL: degToRad(vOffLE), VibOffsetR: degToRad(vOffRE),
		AmpDepthL: depthLE, AmpDepthR: depthRE, AmpFreqL: aFreqLE, AmpFreqR: aFreqRE,
		AmpSkewL: aSkewLE, AmpSkewR: aSkewRE, PhaseOscRange: pRangeE, PhaseOscFreq: pFreqE,
	}

	return voice.BinauralTransitionParams{
		Start: start, End: end,
		InitialOffset: getFloat(m, "initial_offset", 0),
		PostOffset:    getFloat(m, "post_offset", 0),
		Curve:         curveFromString(getString(m, "curve", "linear")),
		Duration:      duration,
	}
}

func isochronicParamsFromMap(m map[string]interface{}, duration float64) voice.IsochronicParams {
	return voice.IsochronicParams{
		BaseFreq:    getFloat(m, "base_freq", 0),
		BeatFreq:    getFloat(m, "beat_freq", 0),
		RampPercent: getFloat(m, "ramp_percent", 0.1),
		GapPercent:  getFloat(m, "gap_percent", 0),
		Pan:         getFloat(m, "pan", 0),
		Amp:         getFloat(m, "amp", 1),

		PanFreq:     getFloat(m, "pan_freq", 0),
		PanRangeMin: getFloat(m, "pan_range_min", -1),
		PanRangeMax: getFloat(m, "pan_range_max", 1),
		PanPhase:    degToRad(getFloat(m, "pan_phase_deg", 0)),

		VibShape:   shapeFromString(getString(m, "vib_shape", "sine")),
		VibRange:   getFloat(m, "vib_range", 0),
		VibFreq:    getFloat(m, "vib_freq", 0),
		VibSkew:    getFloat(m, "vib_skew", 0),
		VibOffset:  degToRad(getFloat(m, "vib_offset_deg", 0)),

		Duration: duration,
	}
}

func isochronicTransitionParamsFromMap(m map[string]interface{}, duration float64) voice.IsochronicTransitionParams {
	shape := shapeFromString(getString(m, "vib_shape", "sine"))

	baseFreqS, baseFreqE := cascade(m, "base_freq", 0)
	beatFreqS, beatFreqE := cascade(m, "beat_freq", 0)
	rampS, rampE := cascade(m, "ramp_percent", 0.1)
	gapS, gapE := cascade(m, "gap_percent", 0)
	panS, panE := cascade(m, "pan", 0)
	ampS, ampE := cascade(m, "amp", 1)
	panFreqS, panFreqE := cascade(m, "pan_freq", 0)
	panMinS, panMinE := cascade(m, "pan_range_min", -1)
	panMaxS, panMaxE := cascade(m, "pan_range_max", 1)
	panPhaseS, panPhaseE := cascade(m, "pan_phase_deg", 0)
	vRangeS, vRangeE := cascade(m, "vib_range", 0)
	vFreqS, vFreqE := cascade(m, "vib_freq", 0)
	vSkewS, vSkewE := cascade(m, "vib_skew", 0)
	vOffS, vOffE := cascade(m, "vib_offset_deg", 0)

	start := voice.IsochronicParams{
		BaseFreq: baseFreqS, BeatFreq: beatFreqS, RampPercent: rampS, GapPercent: gapS,
		Pan: panS, Amp: ampS, PanFreq: panFreqS, PanRangeMin: panMinS, PanRangeMax: panMaxS,
		PanPhase: degToRad(panPhaseS), VibShape: shape, VibRange: vRangeS, VibFreq: vFreqS,
		VibSkew: vSkewS, VibOffset: degToRad(vOffS),
	}
	end := voice.IsochronicParams{
		BaseFreq: baseFreqE, BeatFreq: beatFreqE, RampPercent: rampE, GapPercent: gapE,
		Pan: panE, Amp: ampE, PanFreq: panFreqE, PanRangeMin: panMinE, PanRangeMax: panMaxE,
		PanPhase: degToRad(panPhaseE), VibShape: shape, VibRange: vRangeE, VibFreq: vFreqE,
		VibSkew: vSkewE, VibOffset: degToRad(vOffE),
	}

	return voice.IsochronicTransitionParams{
		Start: start, End: end,
		InitialOffset: getFloat(m, "initial_offset", 0),
		PostOffset:    getFloat(m, "post_offset", 0),
		Curve:         curveFromString(getString(m, "curve", "linear")),
		Duration:      duration,
	}
}

// BuildVoice constructs the runtime voice.Voice for vd, given the sample
// rate and the containing step's duration (which governs the lifetime of
// oscillator voices; noise voices use their own duration_seconds field).
// If vd carries volume_envelope control points the result is wrapped in
// a voice.VolumeEnvelope.
func BuildVoice(vd VoiceData, stepDuration, fs float64) (voice.Voice, error) {
	var v voice.Voice
	switch vd.SynthFunction {
	case SynthBinauralBeat:
		v = voice.NewBinauralBeat(binauralParamsFromMap(vd.Parameters, stepDuration), fs)
	case SynthBinauralBeatTransition:
		v = voice.NewBinauralTransition(binauralTransitionParamsFromMap(vd.Parameters, stepDuration), fs)
	case SynthIsochronicTone:
		v = voice.NewIsochronicTone(isochronicParamsFromMap(vd.Parameters, stepDuration), fs)
	case SynthIsochronicToneTransition:
		v = voice.NewIsochronicToneTransition(isochronicTransitionParamsFromMap(vd.Parameters, stepDuration), fs)
	case SynthNoiseSweptNotch:
		params := decodeNoiseParams(vd.Parameters)
		amp := params.Amplitude
		nv, err := voice.NewNoiseSweptNotch(params, amp, fs)
		if err != nil {
			return nil, err
		}
		v = nv
	case SynthNoiseSweptNotchTransition:
		startSrc, endSrc := splitTransitionNoiseParams(vd.Parameters)
		start := decodeNoiseParams(startSrc)
		end := decodeNoiseParams(endSrc)
		nv, err := voice.NewNoiseSweptNotchTransition(start, end, start.Amplitude, end.Amplitude,
			getFloat(vd.Parameters, "initial_offset", 0), getFloat(vd.Parameters, "post_offset", 0),
			curveFromString(getString(vd.Parameters, "curve", "linear")), stepDuration, fs)
		if err != nil {
			return nil, err
		}
		v = nv
	default:
		return nil, fmt.Errorf("unsupported synth_function %q", vd.SynthFunction)
	}

	if len(vd.VolumeEnvelope) > 0 {
		v = voice.NewVolumeEnvelope(v, vd.VolumeEnvelope, fs)
	}
	return v, nil
}

// splitTransitionNoiseParams extracts the nested "start"/"end" noise
// parameter objects from a noise_swept_notch_transition payload, falling
// back to the flat payload itself for whichever side is missing (the
// same numerical-ambiguity cascade as the oscillator transitions).
func splitTransitionNoiseParams(m map[string]interface{}) (start, end map[string]interface{}) {
	start = m
	if s, ok := m["start"].(map[string]interface{}); ok {
		start = s
	}
	end = start
	if e, ok := m["end"].(map[string]interface{}); ok {
		end = e
	}
	return
}
