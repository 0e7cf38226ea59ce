package dsp

import "math"

// BiquadCoeffs holds a single Transposed Direct Form II second-order
// section's coefficients, computed in double precision regardless of the
// sample format the caller processes.
type BiquadCoeffs struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// BiquadState is the two-word state of one TDF-II stage.
type BiquadState struct {
	S1, S2 float64
}

// NotchCoeffs implements the standard cookbook notch filter design at
// centre frequency f, quality Q, sample rate fs.
func NotchCoeffs(f, q, fs float64) BiquadCoeffs {
	w0 := twoPi * f / fs
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)
	alpha := sinW0 / (2 * q)

	b0 := 1.0
	b1 := -2 * cosW0
	b2 := 1.0
	a0 := 1 + alpha
	a1 := -2 * cosW0
	a2 := 1 - alpha

	return BiquadCoeffs{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
}

// ButterworthSqrt2 is 1/sqrt(2), the Q of a single Butterworth section.
const ButterworthSqrt2 = 0.7071067811865476

// LowpassCoeffs implements the cookbook Butterworth low-pass design.
func LowpassCoeffs(f, fs float64) BiquadCoeffs {
	w0 := twoPi * f / fs
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)
	alpha := sinW0 / (2 * ButterworthSqrt2)

	b0 := (1 - cosW0) / 2
	b1 := 1 - cosW0
	b2 := (1 - cosW0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosW0
	a2 := 1 - alpha

	return BiquadCoeffs{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
}

// HighpassCoeffs implements the cookbook Butterworth high-pass design.
func HighpassCoeffs(f, fs float64) BiquadCoeffs {
	w0 := twoPi * f / fs
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)
	alpha := sinW0 / (2 * ButterworthSqrt2)

	b0 := (1 + cosW0) / 2
	b1 := -(1 + cosW0)
	b2 := (1 + cosW0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosW0
	a2 := 1 - alpha

	return BiquadCoeffs{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
}

// ProcessSample runs one TDF-II sample through a single stage, mutating
// state in place.
//
//go:nosplit
func ProcessSample(c BiquadCoeffs, st *BiquadState, x float64) float64 {
	y := c.B0*x + st.S1
	st.S1 = c.B1*x - c.A1*y + st.S2
	st.S2 = c.B2*x - c.A2*y
	return y
}

// BiquadTimeVaryingBlock runs a cascade of biquad stages over block, with
// per-sample centre frequency, Q and cascade depth drawn from f, qSeries
// and cascSeries, recomputing notch coefficients every sample. states must
// have length >= the maximum cascade depth in cascSeries; casc is clamped
// into [1, len(states)]. Samples are skipped (passed through unmodified)
// when f <= 0 or f >= 0.49*fs.
func BiquadTimeVaryingBlock(block, f, qSeries []float64, cascSeries []int, states []BiquadState, fs float64) {
	n := len(block)
	nyquistLimit := 0.49 * fs
	for i := 0; i < n; i++ {
		freq := f[i]
		if freq <= 0 || freq >= nyquistLimit {
			continue
		}
		casc := cascSeries[i]
		if casc < 1 {
			casc = 1
		}
		if casc > len(states) {
			casc = len(states)
		}
		q := qSeries[i]
		coeffs := NotchCoeffs(freq, q, fs)

		x := block[i]
		for s := 0; s < casc; s++ {
			x = ProcessSample(coeffs, &states[s], x)
		}
		block[i] = x
	}
}
