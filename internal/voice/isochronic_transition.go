package voice

import "math"

// IsochronicTransitionParams glides an isochronic pulse carrier's
// parameters from Start to End, per §4.4.3's transition variant.
type IsochronicTransitionParams struct {
	Start, End                IsochronicParams
	InitialOffset, PostOffset float64
	Curve                     Curve
	Duration                  float64
}

type IsochronicToneTransition struct {
	p               IsochronicTransitionParams
	fs              float64
	elapsed         int64
	durationSamples int64
	phase           float64
	beatPhase       float64
}

func NewIsochronicToneTransition(p IsochronicTransitionParams, fs float64) *IsochronicToneTransition {
	return &IsochronicToneTransition{p: p, fs: fs, durationSamples: int64(p.Duration * fs)}
}

func (v *IsochronicToneTransition) instantParams(t float64) IsochronicParams {
	alpha := ApplyCurve(v.p.Curve, TransitionAlpha(t, v.p.Duration, v.p.InitialOffset, v.p.PostOffset))
	s, e := v.p.Start, v.p.End
	return IsochronicParams{
		BaseFreq:    lerp(s.BaseFreq, e.BaseFreq, alpha),
		BeatFreq:    lerp(s.BeatFreq, e.BeatFreq, alpha),
		RampPercent: lerp(s.RampPercent, e.RampPercent, alpha),
		GapPercent:  lerp(s.GapPercent, e.GapPercent, alpha),
		Pan:         lerp(s.Pan, e.Pan, alpha),
		Amp:         lerp(s.Amp, e.Amp, alpha),
		PanFreq:     lerp(s.PanFreq, e.PanFreq, alpha),
		PanRangeMin: lerp(s.PanRangeMin, e.PanRangeMin, alpha),
		PanRangeMax: lerp(s.PanRangeMax, e.PanRangeMax, alpha),
		PanPhase:    lerp(s.PanPhase, e.PanPhase, alpha),
		VibShape:    s.VibShape,
		VibRange:    lerp(s.VibRange, e.VibRange, alpha),
		VibFreq:     lerp(s.VibFreq, e.VibFreq, alpha),
		VibSkew:     lerp(s.VibSkew, e.VibSkew, alpha),
		VibOffset:   lerp(s.VibOffset, e.VibOffset, alpha),
	}
}

func (v *IsochronicToneTransition) Process(out []float64) {
	frames := len(out) / 2
	dt := 1 / v.fs
	for i := 0; i < frames && v.elapsed < v.durationSamples; i++ {
		t := float64(v.elapsed) / v.fs
		p := v.instantParams(t)
		l, r := isochronicCore(p, t, dt, &v.phase, &v.beatPhase)
		out[2*i] += l
		out[2*i+1] += r
		v.elapsed++
	}
}

func (v *IsochronicToneTransition) IsFinished() bool { return v.elapsed >= v.durationSamples }

func (v *IsochronicToneTransition) NormalizationPeak() float64 {
	return math.Max(math.Abs(v.p.Start.Amp), math.Abs(v.p.End.Amp))
}

func (v *IsochronicToneTransition) Phases() (float64, float64, bool) { return v.phase, v.phase, true }

func (v *IsochronicToneTransition) SetPhases(l, _ float64) { v.phase = l }
