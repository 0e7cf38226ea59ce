package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotchCoeffsAttenuatesTargetFrequency(t *testing.T) {
	const fs = 48000.0
	const target = 1000.0
	coeffs := NotchCoeffs(target, 8, fs)

	var st BiquadState
	var out []float64
	const n = 4096
	for i := 0; i < n; i++ {
		x := math.Sin(2 * math.Pi * target * float64(i) / fs)
		out = append(out, ProcessSample(coeffs, &st, x))
	}

	// measure RMS of the settled tail, should be heavily attenuated
	// relative to the unfiltered unit-amplitude sine.
	sumSq := 0.0
	tail := out[n/2:]
	for _, v := range tail {
		sumSq += v * v
	}
	rms := math.Sqrt(sumSq / float64(len(tail)))
	require.Less(t, rms, 0.2)
}

func TestNotchCoeffsPassesFarFrequency(t *testing.T) {
	const fs = 48000.0
	coeffs := NotchCoeffs(1000, 8, fs)

	var st BiquadState
	var out []float64
	const n = 4096
	const farFreq = 8000.0
	for i := 0; i < n; i++ {
		x := math.Sin(2 * math.Pi * farFreq * float64(i) / fs)
		out = append(out, ProcessSample(coeffs, &st, x))
	}

	sumSq := 0.0
	tail := out[n/2:]
	for _, v := range tail {
		sumSq += v * v
	}
	rms := math.Sqrt(sumSq / float64(len(tail)))
	require.Greater(t, rms, 0.5)
}

func TestBiquadTimeVaryingBlockSkipsOutOfRangeFrequencies(t *testing.T) {
	const fs = 48000.0
	n := 100
	block := make([]float64, n)
	for i := range block {
		block[i] = 1.0
	}
	orig := append([]float64(nil), block...)

	f := make([]float64, n)
	q := make([]float64, n)
	casc := make([]int, n)
	for i := range f {
		f[i] = 0 // disabled: should pass through unmodified
		q[i] = 8
		casc[i] = 2
	}
	states := make([]BiquadState, 4)
	BiquadTimeVaryingBlock(block, f, q, casc, states, fs)

	for i := range block {
		require.Equal(t, orig[i], block[i])
	}
}

func TestBiquadTimeVaryingBlockClampsCascade(t *testing.T) {
	const fs = 48000.0
	n := 10
	block := make([]float64, n)
	for i := range block {
		block[i] = math.Sin(2 * math.Pi * 1000 * float64(i) / fs)
	}
	f := make([]float64, n)
	q := make([]float64, n)
	casc := make([]int, n)
	for i := range f {
		f[i] = 1000
		q[i] = 4
		casc[i] = 99 // far beyond allocated states; must clamp, not panic
	}
	states := make([]BiquadState, 2)
	require.NotPanics(t, func() {
		BiquadTimeVaryingBlock(block, f, q, casc, states, fs)
	})
}

func TestLowpassHighpassCoeffsAreStable(t *testing.T) {
	lp := LowpassCoeffs(1000, 48000)
	hp := HighpassCoeffs(1000, 48000)

	var stLP, stHP BiquadState
	for i := 0; i < 1000; i++ {
		x := math.Sin(2 * math.Pi * 100 * float64(i) / 48000)
		y := ProcessSample(lp, &stLP, x)
		require.False(t, math.IsNaN(y))
		y2 := ProcessSample(hp, &stHP, x)
		require.False(t, math.IsNaN(y2))
	}
}
