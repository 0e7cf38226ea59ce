package voice

import (
	"github.com/abehlok2/session-builder-engine/internal/noise"
)

// NoiseSweptNotchTransition glides a noise carrier's spectral-shaping and
// sweep parameters from Start to End across the step. When the glide
// crosses a topology change UpdateRealtimeParams cannot apply in place
// (a different sweep count, or a cascade depth beyond the stream's
// allocated stages), the wrapped stream is rebuilt from the interpolated
// parameters rather than rejecting the update outright (§9).
type NoiseSweptNotchTransition struct {
	start, end                noise.Params
	ampStart, ampEnd           float64
	initialOffset, postOffset float64
	curve                      Curve
	duration                   float64

	fs              float64
	elapsed         int64
	durationSamples int64

	stream  *noise.Stream
	scratch []float64
}

// NewNoiseSweptNotchTransition builds the wrapped stream from start and
// begins gliding toward end immediately.
func NewNoiseSweptNotchTransition(start, end noise.Params, ampStart, ampEnd, initialOffset, postOffset float64, curve Curve, duration, fs float64) (*NoiseSweptNotchTransition, error) {
	stream, err := noise.NewStream(start, fs)
	if err != nil {
		return nil, err
	}
	return &NoiseSweptNotchTransition{
		start: start, end: end,
		ampStart: ampStart, ampEnd: ampEnd,
		initialOffset: initialOffset, postOffset: postOffset,
		curve: curve, duration: duration,
		fs:              fs,
		durationSamples: int64(duration * fs),
		stream:          stream,
	}, nil
}

func (v *NoiseSweptNotchTransition) interpolate(alpha float64) noise.Params {
	s, e := v.start, v.end
	p := noise.Params{
		DurationSeconds:   lerp(s.DurationSeconds, e.DurationSeconds, alpha),
		LFOWaveform:       s.LFOWaveform,
		Transition:        s.Transition,
		StartLFOFreqHz:    lerp(s.StartLFOFreqHz, e.StartLFOFreqHz, alpha),
		EndLFOFreqHz:      lerp(s.EndLFOFreqHz, e.EndLFOFreqHz, alpha),
		Exponent:          lerp(s.Exponent, e.Exponent, alpha),
		HighExponent:      lerp(s.HighExponent, e.HighExponent, alpha),
		DistributionCurve: lerp(s.DistributionCurve, e.DistributionCurve, alpha),
		HasLowcut:         lerpBool(s.HasLowcut, e.HasLowcut, alpha),
		LowcutHz:          lerp(s.LowcutHz, e.LowcutHz, alpha),
		HasHighcut:        lerpBool(s.HasHighcut, e.HasHighcut, alpha),
		HighcutHz:         lerp(s.HighcutHz, e.HighcutHz, alpha),
		Amplitude:         lerp(s.Amplitude, e.Amplitude, alpha),
		Seed:              s.Seed,
		PhaseOffsetDeg:    lerp(s.PhaseOffsetDeg, e.PhaseOffsetDeg, alpha),
		InitialOffsetDeg:  lerp(s.InitialOffsetDeg, e.InitialOffsetDeg, alpha),
		IntraOffsetDeg:    lerp(s.IntraOffsetDeg, e.IntraOffsetDeg, alpha),
	}
	n := len(s.Sweeps)
	if len(e.Sweeps) < n {
		n = len(e.Sweeps)
	}
	p.Sweeps = make([]noise.Sweep, n)
	for i := 0; i < n; i++ {
		ss, es := s.Sweeps[i], e.Sweeps[i]
		p.Sweeps[i] = noise.Sweep{
			StartMinHz:   lerp(ss.StartMinHz, es.StartMinHz, alpha),
			StartMaxHz:   lerp(ss.StartMaxHz, es.StartMaxHz, alpha),
			EndMinHz:     lerp(ss.EndMinHz, es.EndMinHz, alpha),
			EndMaxHz:     lerp(ss.EndMaxHz, es.EndMaxHz, alpha),
			StartQ:       lerp(ss.StartQ, es.StartQ, alpha),
			EndQ:         lerp(ss.EndQ, es.EndQ, alpha),
			StartCascade: ss.StartCascade,
			EndCascade:   es.EndCascade,
		}
	}
	return p
}

func (v *NoiseSweptNotchTransition) Process(out []float64) {
	frames := len(out) / 2
	remaining := v.durationSamples - v.elapsed
	if remaining <= 0 {
		return
	}
	n := frames
	if int64(n) > remaining {
		n = int(remaining)
	}

	t := float64(v.elapsed) / v.fs
	alpha := ApplyCurve(v.curve, TransitionAlpha(t, v.duration, v.initialOffset, v.postOffset))
	params := v.interpolate(alpha)
	if err := v.stream.UpdateRealtimeParams(params); err != nil {
		if fresh, ferr := noise.NewStream(params, v.fs); ferr == nil {
			v.stream.Close()
			v.stream = fresh
		}
	}
	amp := lerp(v.ampStart, v.ampEnd, alpha)

	if cap(v.scratch) < 2*n {
		v.scratch = make([]float64, 2*n)
	}
	buf := v.scratch[:2*n]
	v.stream.Generate(buf, n)
	for i := 0; i < n; i++ {
		out[2*i] += buf[2*i] * amp
		out[2*i+1] += buf[2*i+1] * amp
	}
	v.elapsed += int64(n)
}

func (v *NoiseSweptNotchTransition) IsFinished() bool { return v.elapsed >= v.durationSamples }

func (v *NoiseSweptNotchTransition) NormalizationPeak() float64 {
	peak := v.stream.NormalizationPeak()
	a := v.ampStart
	if v.ampEnd > a {
		a = v.ampEnd
	}
	return a * peak
}

func (v *NoiseSweptNotchTransition) Close() { v.stream.Close() }
