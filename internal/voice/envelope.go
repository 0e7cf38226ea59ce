package voice

import "math"

// EnvelopePoint is one (time, amplitude) control point of a voice's
// volume envelope (§3 VoiceData.volume_envelope).
type EnvelopePoint struct {
	TimeSeconds float64
	Amplitude   float64
}

// VolumeEnvelope wraps any inner voice with a per-sample gain linearly
// interpolated between ordered control points, clamped to the terminal
// point's amplitude outside the covered range (1.0 when no points are
// given), per §4.4.5.
type VolumeEnvelope struct {
	inner   Voice
	fs      float64
	points  []EnvelopePoint
	elapsed int64
	scratch []float64
}

// NewVolumeEnvelope wraps inner with the given control points at sample
// rate fs. points must be sorted by TimeSeconds ascending.
func NewVolumeEnvelope(inner Voice, points []EnvelopePoint, fs float64) *VolumeEnvelope {
	return &VolumeEnvelope{inner: inner, fs: fs, points: points}
}

func (v *VolumeEnvelope) gainAt(sample int64) float64 {
	if len(v.points) == 0 {
		return 1.0
	}
	t := float64(sample) / v.fs
	if t <= v.points[0].TimeSeconds {
		return v.points[0].Amplitude
	}
	last := v.points[len(v.points)-1]
	if t >= last.TimeSeconds {
		return last.Amplitude
	}
	for i := 1; i < len(v.points); i++ {
		if t <= v.points[i].TimeSeconds {
			a, b := v.points[i-1], v.points[i]
			span := b.TimeSeconds - a.TimeSeconds
			if span <= 0 {
				return b.Amplitude
			}
			alpha := (t - a.TimeSeconds) / span
			return a.Amplitude + (b.Amplitude-a.Amplitude)*alpha
		}
	}
	return last.Amplitude
}

func (v *VolumeEnvelope) maxAmplitude() float64 {
	if len(v.points) == 0 {
		return 1.0
	}
	max := v.points[0].Amplitude
	for _, p := range v.points[1:] {
		if p.Amplitude > max {
			max = p.Amplitude
		}
	}
	return max
}

func (v *VolumeEnvelope) Process(out []float64) {
	if cap(v.scratch) < len(out) {
		v.scratch = make([]float64, len(out))
	}
	buf := v.scratch[:len(out)]
	for i := range buf {
		buf[i] = 0
	}
	v.inner.Process(buf)

	frames := len(out) / 2
	for i := 0; i < frames; i++ {
		g := v.gainAt(v.elapsed)
		out[2*i] += buf[2*i] * g
		out[2*i+1] += buf[2*i+1] * g
		v.elapsed++
	}
}

func (v *VolumeEnvelope) IsFinished() bool { return v.inner.IsFinished() }

// NormalizationPeak is the inner voice's advertised peak scaled by the
// envelope's highest control-point amplitude.
func (v *VolumeEnvelope) NormalizationPeak() float64 {
	return v.inner.NormalizationPeak() * math.Abs(v.maxAmplitude())
}

func (v *VolumeEnvelope) Phases() (float64, float64, bool) {
	if p, ok := v.inner.(Phased); ok {
		return p.Phases()
	}
	return 0, 0, false
}

func (v *VolumeEnvelope) SetPhases(l, r float64) {
	if p, ok := v.inner.(Phased); ok {
		p.SetPhases(l, r)
	}
}
