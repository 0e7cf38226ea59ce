package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSinLutMatchesMathSin(t *testing.T) {
	for _, x := range []float64{0, 0.5, math.Pi / 2, math.Pi, 3 * math.Pi / 2, twoPi, -1.2, 10.5} {
		got := SinLut(x)
		want := math.Sin(x)
		assert.InDeltaf(t, want, got, 1e-4, "SinLut(%v)", x)
	}
}

func TestSinLutPropertyAgainstMathSin(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := rapid.Float64Range(-1000, 1000).Draw(t, "x")
		got := SinLut(x)
		want := math.Sin(x)
		if math.Abs(got-want) > 1e-3 {
			t.Fatalf("SinLut(%v) = %v, want ~%v", x, got, want)
		}
	})
}

func TestCosLutMatchesMathCos(t *testing.T) {
	for _, x := range []float64{0, 0.5, math.Pi / 2, math.Pi, 2.2} {
		assert.InDeltaf(t, math.Cos(x), CosLut(x), 1e-4, "CosLut(%v)", x)
	}
}

func TestSkewedSinePhaseBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := rapid.Float64Range(0, 0.999999).Draw(t, "p")
		s := rapid.Float64Range(-1, 1).Draw(t, "s")
		v := SkewedSinePhase(p, s)
		if v < -1.0001 || v > 1.0001 {
			t.Fatalf("SkewedSinePhase(%v,%v) = %v out of [-1,1]", p, s, v)
		}
	})
}

func TestSkewedSinePhaseZeroSkewMatchesStraightSine(t *testing.T) {
	// At skew 0 the split is exactly at 0.5, each half spans pi radians.
	for _, p := range []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9} {
		got := SkewedSinePhase(p, 0)
		var want float64
		if p < 0.5 {
			want = math.Sin(math.Pi * (p / 0.5))
		} else {
			want = math.Sin(math.Pi * (1 + (p-0.5)/0.5))
		}
		assert.InDeltaf(t, want, got, 1e-9, "p=%v", p)
	}
}

func TestTrapezoidEnvelopeZeroCycle(t *testing.T) {
	require.Equal(t, 0.0, TrapezoidEnvelope(0.5, 0, 0.1, 0.1))
	require.Equal(t, 0.0, TrapezoidEnvelope(0.5, -1, 0.1, 0.1))
}

func TestTrapezoidEnvelopeNoGapFlatTop(t *testing.T) {
	// ramp small, no gap: midpoint of cycle should sit on the flat top at 1.
	v := TrapezoidEnvelope(0.5, 1.0, 0.01, 0)
	assert.InDelta(t, 1.0, v, 1e-6)
}

func TestTrapezoidEnvelopeBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tt := rapid.Float64Range(0, 10).Draw(t, "t")
		cycle := rapid.Float64Range(0.01, 10).Draw(t, "cycle")
		ramp := rapid.Float64Range(0, 1).Draw(t, "ramp")
		gap := rapid.Float64Range(0, 1).Draw(t, "gap")
		v := TrapezoidEnvelope(tt, cycle, ramp, gap)
		if v < -1e-9 || v > 1+1e-9 {
			t.Fatalf("TrapezoidEnvelope out of [0,1]: %v", v)
		}
	})
}

func TestPan2EqualPowerAtCentre(t *testing.T) {
	l, r := Pan2(1, 0)
	assert.InDelta(t, l, r, 1e-9)
	assert.InDelta(t, 1.0, l*l+r*r, 1e-9)
}

func TestPan2ConservesPowerAcrossPositions(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := rapid.Float64Range(-1, 1).Draw(t, "p")
		l, r := Pan2(1, p)
		if math.Abs(l*l+r*r-1) > 1e-6 {
			t.Fatalf("Pan2(1,%v): l^2+r^2 = %v, want 1", p, l*l+r*r)
		}
	})
}

func TestGaussianSourceDeterministic(t *testing.T) {
	a := NewGaussianSource(42)
	b := NewGaussianSource(42)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Next(), b.Next())
	}
}

func TestGaussianSourceRoughlyUnitVariance(t *testing.T) {
	g := NewGaussianSource(7)
	sum, sumSq := 0.0, 0.0
	const n = 20000
	for i := 0; i < n; i++ {
		v := g.Next()
		sum += v
		sumSq += v * v
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	assert.InDelta(t, 0, mean, 0.1)
	assert.InDelta(t, 1, variance, 0.15)
}
