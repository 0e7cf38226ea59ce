package voice

import (
	"math"

	"github.com/abehlok2/session-builder-engine/internal/dsp"
)

// BinauralParams is the full per-sample parameter set for one binaural
// (or isochronic-free monaural) carrier, per SPEC_FULL.md §4.4.1.
type BinauralParams struct {
	BaseFreq float64
	BeatFreq float64
	LeftHigh bool
	ForceMono bool

	AmpL, AmpR float64

	VibShape             dsp.OscShape
	VibRangeL, VibRangeR float64
	VibFreqL, VibFreqR   float64
	VibSkewL, VibSkewR   float64
	VibOffsetL, VibOffsetR float64 // radians

	AmpDepthL, AmpDepthR float64
	AmpFreqL, AmpFreqR   float64
	AmpSkewL, AmpSkewR   float64

	PhaseOscRange float64
	PhaseOscFreq  float64

	Duration float64
}

// binauralCore renders one stereo sample from p at elapsed time t,
// advancing the carrier phase accumulators in place. It is shared between
// BinauralBeat and BinauralTransition so both stay sample-for-sample
// identical to the same formula.
func binauralCore(p BinauralParams, t, dt float64, phaseL, phaseR *float64) (left, right float64) {
	vibL := (p.VibRangeL / 2) * dsp.Shape(p.VibShape, dsp.Frac(p.VibFreqL*t+p.VibOffsetL/(2*math.Pi)), p.VibSkewL)
	vibR := (p.VibRangeR / 2) * dsp.Shape(p.VibShape, dsp.Frac(p.VibFreqR*t+p.VibOffsetR/(2*math.Pi)), p.VibSkewR)

	var freqL, freqR float64
	switch {
	case p.ForceMono || p.BeatFreq == 0:
		base := math.Max(0, p.BaseFreq)
		freqL, freqR = base+vibL, base+vibR
	case p.LeftHigh:
		freqL = p.BaseFreq + vibL + p.BeatFreq/2
		freqR = p.BaseFreq + vibR - p.BeatFreq/2
	default:
		freqL = p.BaseFreq + vibL - p.BeatFreq/2
		freqR = p.BaseFreq + vibR + p.BeatFreq/2
	}
	freqL = math.Max(0, freqL)
	freqR = math.Max(0, freqR)

	*phaseL = math.Mod(*phaseL+2*math.Pi*freqL*dt, 2*math.Pi)
	*phaseR = math.Mod(*phaseR+2*math.Pi*freqR*dt, 2*math.Pi)

	var dphi float64
	if p.PhaseOscRange != 0 {
		dphi = (p.PhaseOscRange / 2) * dsp.SinLut(2*math.Pi*p.PhaseOscFreq*t)
	}

	envL := 1 - p.AmpDepthL*(1+dsp.SkewedSinePhase(dsp.Frac(p.AmpFreqL*t), p.AmpSkewL))/2
	envR := 1 - p.AmpDepthR*(1+dsp.SkewedSinePhase(dsp.Frac(p.AmpFreqR*t), p.AmpSkewR))/2

	left = dsp.SinLut(*phaseL-dphi) * envL * p.AmpL
	right = dsp.SinLut(*phaseR+dphi) * envR * p.AmpR
	return
}

// BinauralBeat is a fixed-parameter binaural carrier (§4.4.1).
type BinauralBeat struct {
	p               BinauralParams
	fs              float64
	elapsed         int64
	durationSamples int64
	phaseL, phaseR  float64
}

// NewBinauralBeat constructs a binaural carrier voice at sample rate fs.
func NewBinauralBeat(p BinauralParams, fs float64) *BinauralBeat {
	return &BinauralBeat{
		p:               p,
		fs:              fs,
		durationSamples: int64(p.Duration * fs),
	}
}

func (b *BinauralBeat) Process(out []float64) {
	frames := len(out) / 2
	dt := 1 / b.fs
	for i := 0; i < frames && b.elapsed < b.durationSamples; i++ {
		t := float64(b.elapsed) / b.fs
		l, r := binauralCore(b.p, t, dt, &b.phaseL, &b.phaseR)
		out[2*i] += l
		out[2*i+1] += r
		b.elapsed++
	}
}

func (b *BinauralBeat) IsFinished() bool { return b.elapsed >= b.durationSamples }

// NormalizationPeak bounds the maximum magnitude this voice can emit: the
// amplitude envelope only attenuates, never boosts, so the per-channel
// amplitude is a safe upper bound.
func (b *BinauralBeat) NormalizationPeak() float64 {
	return math.Max(math.Abs(b.p.AmpL), math.Abs(b.p.AmpR))
}

func (b *BinauralBeat) Phases() (float64, float64, bool) { return b.phaseL, b.phaseR, true }

func (b *BinauralBeat) SetPhases(l, r float64) { b.phaseL, b.phaseR = l, r }
