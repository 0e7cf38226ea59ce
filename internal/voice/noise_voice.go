package voice

import (
	"github.com/abehlok2/session-builder-engine/internal/noise"
)

// NoiseSweptNotch wraps a streaming FFT-shaped noise generator with a
// swept-notch stage as a fixed-parameter Voice (§4.4.4). It does not
// implement Phased: a noise carrier has no meaningful phase to hand off
// across a step boundary.
type NoiseSweptNotch struct {
	stream          *noise.Stream
	amp             float64
	fs              float64
	elapsed         int64
	durationSamples int64
	scratch         []float64
}

// NewNoiseSweptNotch builds the wrapped stream at sample rate fs.
func NewNoiseSweptNotch(params noise.Params, amp float64, fs float64) (*NoiseSweptNotch, error) {
	stream, err := noise.NewStream(params, fs)
	if err != nil {
		return nil, err
	}
	return &NoiseSweptNotch{
		stream:          stream,
		amp:             amp,
		fs:              fs,
		durationSamples: stream.DurationSamples(),
	}, nil
}

func (v *NoiseSweptNotch) Process(out []float64) {
	frames := len(out) / 2
	remaining := v.durationSamples - v.elapsed
	if remaining <= 0 {
		return
	}
	n := frames
	if int64(n) > remaining {
		n = int(remaining)
	}
	if cap(v.scratch) < 2*n {
		v.scratch = make([]float64, 2*n)
	}
	buf := v.scratch[:2*n]
	v.stream.Generate(buf, n)
	for i := 0; i < n; i++ {
		out[2*i] += buf[2*i] * v.amp
		out[2*i+1] += buf[2*i+1] * v.amp
	}
	v.elapsed += int64(n)
}

func (v *NoiseSweptNotch) IsFinished() bool { return v.elapsed >= v.durationSamples }

func (v *NoiseSweptNotch) NormalizationPeak() float64 {
	return v.amp * v.stream.NormalizationPeak()
}

// Close releases the wrapped stream's background worker goroutine.
func (v *NoiseSweptNotch) Close() { v.stream.Close() }
