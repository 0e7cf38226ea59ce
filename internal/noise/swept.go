package noise

import (
	"fmt"
	"math"

	"github.com/abehlok2/session-builder-engine/internal/dsp"
	"github.com/abehlok2/session-builder-engine/internal/engineerr"
)

const (
	frameSize = 2048
	hopSize   = 1024
	maxAllocatedStages = 8

	shelfAlpha    = 0.99995
	notchAlpha    = 0.998
)

// hannWindow is precomputed once and shared by every Stream instance.
var hannWindow [frameSize]float64

func init() {
	for i := 0; i < frameSize; i++ {
		hannWindow[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(frameSize-1)))
	}
}

type channelNotchState struct {
	main  []dsp.BiquadState
	intra []dsp.BiquadState
}

func newChannelNotchState() channelNotchState {
	return channelNotchState{
		main:  make([]dsp.BiquadState, maxAllocatedStages),
		intra: make([]dsp.BiquadState, maxAllocatedStages),
	}
}

// Stream wraps a Generator with the swept-notch overlap-add processing
// stage and optional Butterworth shelves described in §4.5.3-4.5.4: the
// full "streaming noise generator" a NoiseSweptNotch voice instantiates.
type Stream struct {
	gen    *Generator
	params Params
	fs     float64

	durationSamples int64
	playbackSample  int64

	// overlap-add ring, indexed by absolute sample counters modulo ringSize
	ring          []float64 // len 2*frameSize, interleaved stereo
	windowSum     []float64 // len 2*frameSize, mono (shared across channels)
	frameWritePos int64     // absolute index of the next frame's first sample
	ringPos       int64     // absolute index of the next sample to read

	left, right channelNotchState

	lowHP, highLP [2]dsp.BiquadState // per-channel Butterworth sections (2-stage cascade)
	hasLowcut, hasHighcut bool
	lowcutHz, highcutHz   float64

	shelfGain     float64
	shelfGainInit bool

	notchGain     [2]float64
	notchGainInit [2]bool

	peak float64
}

// NewStream builds a Stream for the given noise parameters at sample rate
// fs, instantiating the FFT generator and pre-allocating the notch cascade
// state for the configured sweeps.
func NewStream(params Params, fs float64) (*Stream, error) {
	gen, err := NewGenerator(params, fs)
	if err != nil {
		return nil, err
	}
	s := &Stream{
		gen:        gen,
		params:     params.WithDefaults(),
		fs:         fs,
		ring:       make([]float64, 2*frameSize),
		windowSum:  make([]float64, 2*frameSize),
		left:       newChannelNotchState(),
		right:      newChannelNotchState(),
		hasLowcut:  params.HasLowcut,
		lowcutHz:   params.LowcutHz,
		hasHighcut: params.HasHighcut,
		highcutHz:  params.HighcutHz,
	}
	s.durationSamples = int64(params.DurationSeconds * fs)
	s.peak = 1.0 // statically advertised upper bound; output is clamped to [-1,1] throughout
	return s, nil
}

// NormalizationPeak reports the voice's statically advertised output
// magnitude bound.
func (s *Stream) NormalizationPeak() float64 { return s.peak }

// DurationSamples reports the configured duration in samples, or <=0 for
// an unbounded background layer.
func (s *Stream) DurationSamples() int64 { return s.durationSamples }

// IsFinished reports whether the stream has produced its full duration.
func (s *Stream) IsFinished() bool {
	return s.durationSamples > 0 && s.playbackSample >= s.durationSamples
}

// Close releases the underlying generator's worker goroutine.
func (s *Stream) Close() { s.gen.Close() }

const ringSize = 2 * frameSize

// Generate produces frames of interleaved stereo samples (len(dst) ==
// 2*frames) from the swept-notch overlap-add pipeline, advancing playback
// position. Samples beyond the configured duration are zero.
func (s *Stream) Generate(dst []float64, frames int) {
	for i := range dst {
		dst[i] = 0
	}
	for produced := 0; produced < frames; produced++ {
		if s.durationSamples > 0 && s.playbackSample >= s.durationSamples {
			break
		}
		// keep at least frameSize samples of lookahead rendered so the
		// slot about to be read has already received every overlapping
		// frame's contribution.
		for s.frameWritePos < s.ringPos+frameSize {
			s.renderFrame()
		}

		slot := int(s.ringPos % ringSize)
		wsum := s.windowSum[slot]
		l, r := 0.0, 0.0
		if wsum > 1e-9 {
			l = dsp.Clamp(s.ring[slot*2]/wsum, -1, 1)
			r = dsp.Clamp(s.ring[slot*2+1]/wsum, -1, 1)
		}
		dst[produced*2] = l
		dst[produced*2+1] = r
		s.ring[slot*2] = 0
		s.ring[slot*2+1] = 0
		s.windowSum[slot] = 0

		s.ringPos++
		s.playbackSample++
	}
}

// renderFrame synthesizes one frameSize mono noise block, applies the
// optional Butterworth shelves, the swept notch cascades, window and
// overlap-add into the ring, per §4.5.3-4.5.4.
func (s *Stream) renderFrame() {
	mono := make([]float64, frameSize)
	s.gen.Generate(mono)

	left := append([]float64(nil), mono...)
	right := append([]float64(nil), mono...)

	if s.hasLowcut || s.hasHighcut {
		s.applyShelvesAndCompensate(left, right)
	}

	preRMSL, preRMSR := rmsOf(left), rmsOf(right)

	s.applySweeps(left, right, s.frameWritePos)

	s.compensateNotchRMS(0, preRMSL, left)
	s.compensateNotchRMS(1, preRMSR, right)

	base := s.frameWritePos
	for i := 0; i < frameSize; i++ {
		w := hannWindow[i]
		slot := int((base + int64(i)) % ringSize)
		s.ring[slot*2] += left[i] * w
		s.ring[slot*2+1] += right[i] * w
		s.windowSum[slot] += w
	}
	s.frameWritePos += hopSize
}

func (s *Stream) applyShelvesAndCompensate(left, right []float64) {
	preL, preR := rmsOf(left), rmsOf(right)

	if s.hasLowcut && s.lowcutHz > 0 && s.lowcutHz < s.fs/2 {
		coeffs := dsp.HighpassCoeffs(s.lowcutHz, s.fs)
		runTwoStageCascade(coeffs, &s.lowHP, left, right)
	}
	if s.hasHighcut && s.highcutHz > 0 && s.highcutHz < s.fs/2 {
		coeffs := dsp.LowpassCoeffs(s.highcutHz, s.fs)
		runTwoStageCascade(coeffs, &s.highLP, left, right)
	}

	postL, postR := rmsOf(left), rmsOf(right)
	avgPre := (preL + preR) / 2
	avgPost := (postL + postR) / 2

	if avgPost < 1e-9 {
		return
	}
	targetGain := dsp.Clamp(avgPre/avgPost, 0.25, 16)
	if !s.shelfGainInit {
		s.shelfGain = targetGain
		s.shelfGainInit = true
	} else {
		relChange := math.Abs(targetGain-s.shelfGain) / math.Max(s.shelfGain, 1e-9)
		if relChange > 0.1 {
			s.shelfGain = s.shelfGain*shelfAlpha + targetGain*(1-shelfAlpha)
		}
	}
	for i := range left {
		left[i] *= s.shelfGain
		right[i] *= s.shelfGain
	}
}

func runTwoStageCascade(coeffs dsp.BiquadCoeffs, states *[2]dsp.BiquadState, left, right []float64) {
	for i := range left {
		left[i] = dsp.ProcessSample(coeffs, &states[0], left[i])
	}
	for i := range right {
		right[i] = dsp.ProcessSample(coeffs, &states[1], right[i])
	}
}

// applySweeps runs every configured notch sweep's time-varying biquad
// cascade (main + optional intra) over the left/right frame in-place.
func (s *Stream) applySweeps(left, right []float64, frameStart int64) {
	if len(s.params.Sweeps) == 0 {
		return
	}
	alpha := 0.0
	if s.params.Transition && s.durationSamples > 0 {
		alpha = dsp.Clamp(float64(frameStart)/float64(s.durationSamples), 0, 1)
	}

	fL := make([]float64, frameSize)
	fR := make([]float64, frameSize)
	qL := make([]float64, frameSize)
	qR := make([]float64, frameSize)
	cascL := make([]int, frameSize)
	cascR := make([]int, frameSize)

	lfoFreq := lerp(s.params.StartLFOFreqHz, s.params.EndLFOFreqHz, alpha)
	initialOffsetRad := s.params.InitialOffsetDeg * math.Pi / 180
	phaseOffsetRad := s.params.PhaseOffsetDeg * math.Pi / 180

	for _, sweep := range s.params.Sweeps {
		minHz, maxHz, q, cascade := sweep.atAlpha(alpha)
		if cascade > maxAllocatedStages {
			cascade = maxAllocatedStages
		}
		centre := (minHz + maxHz) / 2
		rng := (maxHz - minHz) / 2

		for i := 0; i < frameSize; i++ {
			t := float64(frameStart+int64(i)) / s.fs
			lfoPhaseL := 2*math.Pi*lfoFreq*t + initialOffsetRad
			lfoPhaseR := lfoPhaseL + phaseOffsetRad

			shape := dsp.SinLut
			if s.params.LFOWaveform == LFOTriangle {
				shape = func(x float64) float64 { return dsp.SkewedTrianglePhase(dsp.Frac(x/(2*math.Pi)), 0) }
			}

			fL[i] = centre + rng*shape(lfoPhaseL)
			fR[i] = centre + rng*shape(lfoPhaseR)
			qL[i] = q
			qR[i] = q
			cascL[i] = cascade
			cascR[i] = cascade
		}

		dsp.BiquadTimeVaryingBlock(left, fL, qL, cascL, s.left.main, s.fs)
		dsp.BiquadTimeVaryingBlock(right, fR, qR, cascR, s.right.main, s.fs)

		if s.params.IntraOffsetDeg != 0 {
			intraOffsetRad := s.params.IntraOffsetDeg * math.Pi / 180
			for i := 0; i < frameSize; i++ {
				t := float64(frameStart+int64(i)) / s.fs
				lfoPhaseL := 2*math.Pi*lfoFreq*t + initialOffsetRad + intraOffsetRad
				lfoPhaseR := lfoPhaseL + phaseOffsetRad

				shape := dsp.SinLut
				if s.params.LFOWaveform == LFOTriangle {
					shape = func(x float64) float64 { return dsp.SkewedTrianglePhase(dsp.Frac(x/(2*math.Pi)), 0) }
				}

				fL[i] = centre + rng*shape(lfoPhaseL)
				fR[i] = centre + rng*shape(lfoPhaseR)
			}
			dsp.BiquadTimeVaryingBlock(left, fL, qL, cascL, s.left.intra, s.fs)
			dsp.BiquadTimeVaryingBlock(right, fR, qR, cascR, s.right.intra, s.fs)
		}
	}
}

func (s *Stream) compensateNotchRMS(channel int, preRMS float64, buf []float64) {
	postRMS := rmsOf(buf)
	if postRMS < 1e-9 {
		return
	}
	target := dsp.Clamp(preRMS/postRMS, 0.25, 16)
	if !s.notchGainInit[channel] {
		s.notchGain[channel] = target
		s.notchGainInit[channel] = true
	} else {
		relChange := math.Abs(target-s.notchGain[channel]) / math.Max(s.notchGain[channel], 1e-9)
		if relChange > 0.2 {
			s.notchGain[channel] = s.notchGain[channel]*notchAlpha + target*(1-notchAlpha)
		}
	}
	g := s.notchGain[channel]
	for i := range buf {
		buf[i] *= g
	}
}

// UpdateRealtimeParams attempts to apply newParams in place. It succeeds
// only if the sweep count is unchanged and every sweep's new max cascade
// fits within the allocated stage count; otherwise it returns an error
// wrapping engineerr.ErrRealtimeIncompatibleUpdate and the caller must
// rebuild the Stream from scratch (§4.5.4, §7 RealtimeIncompatibleUpdate).
func (s *Stream) UpdateRealtimeParams(newParams Params) error {
	if len(newParams.Sweeps) != len(s.params.Sweeps) {
		return fmt.Errorf("sweep count %d != allocated %d: %w", len(newParams.Sweeps), len(s.params.Sweeps), engineerr.ErrRealtimeIncompatibleUpdate)
	}
	for i, sweep := range newParams.Sweeps {
		maxCascade := sweep.StartCascade
		if sweep.EndCascade > maxCascade {
			maxCascade = sweep.EndCascade
		}
		if maxCascade > maxAllocatedStages {
			return fmt.Errorf("sweep[%d] cascade %d exceeds allocated stages %d: %w", i, maxCascade, maxAllocatedStages, engineerr.ErrRealtimeIncompatibleUpdate)
		}
	}
	s.params = newParams.WithDefaults()
	s.gen.UpdateSpectralParams(newParams)
	s.hasLowcut, s.lowcutHz = newParams.HasLowcut, newParams.LowcutHz
	s.hasHighcut, s.highcutHz = newParams.HasHighcut, newParams.HighcutHz
	return nil
}

// SkipSamples advances playback by n samples without producing audio,
// used by seekTo to realign a background-noise layer (§4.6.4). It is
// realised as repeated small Generate calls into a scratch buffer.
func (s *Stream) SkipSamples(n int64) {
	if n <= 0 {
		return
	}
	if s.durationSamples > 0 && n > s.durationSamples {
		n = s.durationSamples
	}
	scratch := make([]float64, 2*hopSize)
	remaining := n
	for remaining > 0 {
		frames := hopSize
		if int64(frames) > remaining {
			frames = int(remaining)
		}
		s.Generate(scratch[:2*frames], frames)
		remaining -= int64(frames)
	}
}
