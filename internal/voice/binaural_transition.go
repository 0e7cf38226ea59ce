package voice

import "math"

// BinauralTransitionParams describes a binaural carrier whose parameters
// glide from Start to End across the step, gated by an initial/post
// offset window and shaped by Curve (§4.4.2).
type BinauralTransitionParams struct {
	Start, End                BinauralParams
	InitialOffset, PostOffset float64
	Curve                     Curve
	Duration                  float64
}

// BinauralTransition is the interpolated counterpart to BinauralBeat.
type BinauralTransition struct {
	p               BinauralTransitionParams
	fs              float64
	elapsed         int64
	durationSamples int64
	phaseL, phaseR  float64
}

func NewBinauralTransition(p BinauralTransitionParams, fs float64) *BinauralTransition {
	return &BinauralTransition{
		p:               p,
		fs:              fs,
		durationSamples: int64(p.Duration * fs),
	}
}

func (b *BinauralTransition) instantParams(t float64) BinauralParams {
	alpha := ApplyCurve(b.p.Curve, TransitionAlpha(t, b.p.Duration, b.p.InitialOffset, b.p.PostOffset))
	s, e := b.p.Start, b.p.End
	return BinauralParams{
		BaseFreq:  lerp(s.BaseFreq, e.BaseFreq, alpha),
		BeatFreq:  lerp(s.BeatFreq, e.BeatFreq, alpha),
		LeftHigh:  lerpBool(s.LeftHigh, e.LeftHigh, alpha),
		ForceMono: lerpBool(s.ForceMono, e.ForceMono, alpha),

		AmpL: lerp(s.AmpL, e.AmpL, alpha),
		AmpR: lerp(s.AmpR, e.AmpR, alpha),

		VibShape:   s.VibShape,
		VibRangeL:  lerp(s.VibRangeL, e.VibRangeL, alpha),
		VibRangeR:  lerp(s.VibRangeR, e.VibRangeR, alpha),
		VibFreqL:   lerp(s.VibFreqL, e.VibFreqL, alpha),
		VibFreqR:   lerp(s.VibFreqR, e.VibFreqR, alpha),
		VibSkewL:   lerp(s.VibSkewL, e.VibSkewL, alpha),
		VibSkewR:   lerp(s.VibSkewR, e.VibSkewR, alpha),
		VibOffsetL: lerp(s.VibOffsetL, e.VibOffsetL, alpha),
		VibOffsetR: lerp(s.VibOffsetR, e.VibOffsetR, alpha),

		AmpDepthL: lerp(s.AmpDepthL, e.AmpDepthL, alpha),
		AmpDepthR: lerp(s.AmpDepthR, e.AmpDepthR, alpha),
		AmpFreqL:  lerp(s.AmpFreqL, e.AmpFreqL, alpha),
		AmpFreqR:  lerp(s.AmpFreqR, e.AmpFreqR, alpha),
		AmpSkewL:  lerp(s.AmpSkewL, e.AmpSkewL, alpha),
		AmpSkewR:  lerp(s.AmpSkewR, e.AmpSkewR, alpha),

		PhaseOscRange: lerp(s.PhaseOscRange, e.PhaseOscRange, alpha),
		PhaseOscFreq:  lerp(s.PhaseOscFreq, e.PhaseOscFreq, alpha),
	}
}

func (b *BinauralTransition) Process(out []float64) {
	frames := len(out) / 2
	dt := 1 / b.fs
	for i := 0; i < frames && b.elapsed < b.durationSamples; i++ {
		t := float64(b.elapsed) / b.fs
		p := b.instantParams(t)
		l, r := binauralCore(p, t, dt, &b.phaseL, &b.phaseR)
		out[2*i] += l
		out[2*i+1] += r
		b.elapsed++
	}
}

func (b *BinauralTransition) IsFinished() bool { return b.elapsed >= b.durationSamples }

func (b *BinauralTransition) NormalizationPeak() float64 {
	peak := math.Max(math.Abs(b.p.Start.AmpL), math.Abs(b.p.Start.AmpR))
	return math.Max(peak, math.Max(math.Abs(b.p.End.AmpL), math.Abs(b.p.End.AmpR)))
}

func (b *BinauralTransition) Phases() (float64, float64, bool) { return b.phaseL, b.phaseR, true }

func (b *BinauralTransition) SetPhases(l, r float64) { b.phaseL, b.phaseR = l, r }
