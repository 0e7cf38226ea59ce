package voice

import (
	"math"

	"github.com/abehlok2/session-builder-engine/internal/dsp"
)

// IsochronicParams is the per-sample parameter set for a trapezoid-gated
// isochronic pulse carrier, per SPEC_FULL.md §4.4.3.
type IsochronicParams struct {
	BaseFreq    float64
	BeatFreq    float64 // pulses per second
	RampPercent float64 // fraction of one pulse cycle spent ramping in/out
	GapPercent  float64 // fraction of one pulse cycle silent
	Pan         float64 // -1 (left) .. +1 (right); used when PanFreq==0
	Amp         float64

	// Optional sinusoidal pan LFO (§4.4.3): when PanFreq!=0 the pan value
	// oscillates in [PanRangeMin, PanRangeMax] instead of holding Pan fixed.
	PanFreq              float64
	PanRangeMin, PanRangeMax float64
	PanPhase             float64

	VibShape           dsp.OscShape
	VibRange, VibFreq  float64
	VibSkew, VibOffset float64

	Duration float64
}

func isochronicPanAt(p IsochronicParams, t float64) float64 {
	if p.PanFreq == 0 {
		return p.Pan
	}
	centre := (p.PanRangeMin + p.PanRangeMax) / 2
	half := (p.PanRangeMax - p.PanRangeMin) / 2
	return centre + half*dsp.SinLut(2*math.Pi*p.PanFreq*t+p.PanPhase)
}

func isochronicCore(p IsochronicParams, t, dt float64, phase, beatPhase *float64) (left, right float64) {
	vib := (p.VibRange / 2) * dsp.Shape(p.VibShape, dsp.Frac(p.VibFreq*t+p.VibOffset/(2*math.Pi)), p.VibSkew)
	freq := math.Max(0, p.BaseFreq+vib)
	*phase = math.Mod(*phase+2*math.Pi*freq*dt, 2*math.Pi)
	carrier := dsp.SinLut(*phase)

	cycleLen := 1.0
	if p.BeatFreq > 0 {
		cycleLen = 1.0 / p.BeatFreq
	}
	*beatPhase = math.Mod(*beatPhase+p.BeatFreq*dt, 1.0)
	env := dsp.TrapezoidEnvelope(*beatPhase*cycleLen, cycleLen, p.RampPercent, p.GapPercent)

	sample := carrier * env * p.Amp
	return dsp.Pan2(sample, isochronicPanAt(p, t))
}

// IsochronicTone is a fixed-parameter isochronic pulse voice.
type IsochronicTone struct {
	p               IsochronicParams
	fs              float64
	elapsed         int64
	durationSamples int64
	phase           float64
	beatPhase       float64
}

func NewIsochronicTone(p IsochronicParams, fs float64) *IsochronicTone {
	return &IsochronicTone{p: p, fs: fs, durationSamples: int64(p.Duration * fs)}
}

func (v *IsochronicTone) Process(out []float64) {
	frames := len(out) / 2
	dt := 1 / v.fs
	for i := 0; i < frames && v.elapsed < v.durationSamples; i++ {
		t := float64(v.elapsed) / v.fs
		l, r := isochronicCore(v.p, t, dt, &v.phase, &v.beatPhase)
		out[2*i] += l
		out[2*i+1] += r
		v.elapsed++
	}
}

func (v *IsochronicTone) IsFinished() bool { return v.elapsed >= v.durationSamples }

func (v *IsochronicTone) NormalizationPeak() float64 { return math.Abs(v.p.Amp) }

// Phases exposes the single shared carrier phase on both channels so a
// following isochronic voice can continue it without a click; Pan2 keeps
// the two output channels correlated, so a single phase is sufficient.
func (v *IsochronicTone) Phases() (float64, float64, bool) { return v.phase, v.phase, true }

func (v *IsochronicTone) SetPhases(l, _ float64) { v.phase = l }
