package voice

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abehlok2/session-builder-engine/internal/noise"
)

const testFs = 48000.0

func TestBinauralBeatBoundedAndFinishes(t *testing.T) {
	p := BinauralParams{BaseFreq: 200, BeatFreq: 10, AmpL: 0.8, AmpR: 0.8, Duration: 0.05}
	v := NewBinauralBeat(p, testFs)

	out := make([]float64, 2*4000)
	v.Process(out)
	for _, s := range out {
		require.False(t, math.IsNaN(s))
		require.LessOrEqual(t, math.Abs(s), v.NormalizationPeak()+1e-9)
	}
	require.True(t, v.IsFinished())
}

func TestBinauralBeatPhaseHandoffIsContinuous(t *testing.T) {
	p := BinauralParams{BaseFreq: 300, BeatFreq: 6, AmpL: 1, AmpR: 1, Duration: 1}
	a := NewBinauralBeat(p, testFs)
	buf := make([]float64, 2*1000)
	a.Process(buf)
	l, r, ok := a.Phases()
	require.True(t, ok)

	b := NewBinauralBeat(p, testFs)
	b.SetPhases(l, r)
	// A fresh voice continuing from the handed-off phase should render the
	// identical next sample as the original voice would have.
	want := make([]float64, 2)
	a.Process(want)
	got := make([]float64, 2)
	b.Process(got)
	require.InDelta(t, want[0], got[0], 1e-9)
	require.InDelta(t, want[1], got[1], 1e-9)
}

func TestBinauralBeatLeftHighSwapsChannelOrder(t *testing.T) {
	base := BinauralParams{BaseFreq: 200, BeatFreq: 20, AmpL: 1, AmpR: 1, Duration: 0.01}
	highLeft := base
	highLeft.LeftHigh = true
	lowLeft := base
	lowLeft.LeftHigh = false

	vHigh := NewBinauralBeat(highLeft, testFs)
	vLow := NewBinauralBeat(lowLeft, testFs)
	outHigh := make([]float64, 4)
	outLow := make([]float64, 4)
	vHigh.Process(outHigh)
	vLow.Process(outLow)
	require.NotEqual(t, outHigh, outLow)
}

func TestBinauralTransitionHonoursOffsetWindow(t *testing.T) {
	p := BinauralTransitionParams{
		Start:         BinauralParams{BaseFreq: 100, AmpL: 1, AmpR: 1},
		End:           BinauralParams{BaseFreq: 400, AmpL: 1, AmpR: 1},
		InitialOffset: 0.5,
		PostOffset:    0.5,
		Duration:      2,
	}
	v := NewBinauralTransition(p, testFs)
	require.Equal(t, 0.0, TransitionAlpha(0.1, p.Duration, p.InitialOffset, p.PostOffset))
	require.Equal(t, 1.0, TransitionAlpha(1.9, p.Duration, p.InitialOffset, p.PostOffset))
	out := make([]float64, 2*10)
	v.Process(out)
	for _, s := range out {
		require.False(t, math.IsNaN(s))
	}
}

func TestIsochronicToneGatesSilenceDuringGap(t *testing.T) {
	p := IsochronicParams{BaseFreq: 440, BeatFreq: 4, RampPercent: 0.1, GapPercent: 0.5, Pan: 0, Amp: 1, Duration: 1}
	v := NewIsochronicTone(p, testFs)
	out := make([]float64, 2*int(testFs))
	v.Process(out)

	// TrapezoidEnvelope centres the gap on the cycle boundary, so the
	// trailing half of the first cycle's gap starts at (1 - gap/2) of the
	// cycle; from there on the carrier should be gated to (near) silence.
	cycleLen := 1.0 / p.BeatFreq
	gapCenterSample := int((1 - p.GapPercent/2) * cycleLen * testFs)
	idx := 2 * gapCenterSample
	require.Less(t, math.Abs(out[idx]), 0.05)
}

func TestIsochronicTonePansHardLeft(t *testing.T) {
	p := IsochronicParams{BaseFreq: 300, BeatFreq: 2, RampPercent: 0, GapPercent: 0, Pan: -1, Amp: 1, Duration: 0.01}
	v := NewIsochronicTone(p, testFs)
	out := make([]float64, 2*100)
	v.Process(out)
	sumAbsRight := 0.0
	for i := 0; i < 100; i++ {
		sumAbsRight += math.Abs(out[2*i+1])
	}
	require.Less(t, sumAbsRight, 1e-9)
}

func TestNoiseSweptNotchRespectsDuration(t *testing.T) {
	params := noise.Params{DurationSeconds: 0.2, Exponent: 1, HighExponent: 1, DistributionCurve: 1}
	v, err := NewNoiseSweptNotch(params, 0.5, testFs)
	require.NoError(t, err)
	defer v.Close()

	totalFrames := int(v.durationSamples) + 1000
	out := make([]float64, 2*totalFrames)
	v.Process(out)
	require.True(t, v.IsFinished())
}

func TestVolumeEnvelopeFadesAtEdges(t *testing.T) {
	inner := NewBinauralBeat(BinauralParams{BaseFreq: 200, AmpL: 1, AmpR: 1, Duration: 1}, testFs)
	points := []EnvelopePoint{{TimeSeconds: 0, Amplitude: 0}, {TimeSeconds: 0.1, Amplitude: 1}, {TimeSeconds: 0.9, Amplitude: 1}, {TimeSeconds: 1.0, Amplitude: 0}}
	env := NewVolumeEnvelope(inner, points, testFs)

	out := make([]float64, 2*int(testFs))
	env.Process(out)
	require.Less(t, math.Abs(out[0]), 1e-9, "sample 0 must be fully faded in from silence")
	require.True(t, env.IsFinished())
}

func TestVolumeEnvelopeScalesPeakByMaxControlPoint(t *testing.T) {
	inner := NewBinauralBeat(BinauralParams{BaseFreq: 200, BeatFreq: 5, AmpL: 0.6, AmpR: 0.6, Duration: 0.5}, testFs)
	points := []EnvelopePoint{{TimeSeconds: 0, Amplitude: 0.5}, {TimeSeconds: 0.5, Amplitude: 0.5}}
	env := NewVolumeEnvelope(inner, points, testFs)
	require.InDelta(t, inner.NormalizationPeak()*0.5, env.NormalizationPeak(), 1e-9)
}
