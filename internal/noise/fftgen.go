package noise

import (
	"math"
	"sync/atomic"

	"github.com/abehlok2/session-builder-engine/internal/dsp"
	"github.com/abehlok2/session-builder-engine/internal/logging"
)

const (
	crossfadeSamples   = 2048
	underrunFadeSamples = 512
	defaultBlockSize   = 1 << 15
	minBlockSize       = 8
)

// sizeForDuration computes the FFT block size for a requested noise
// duration: default 2^15 when out of range, rounded up to even, minimum 8,
// finally rounded up to the next power of two since the hand-built FFT in
// internal/dsp only supports power-of-two transforms.
func sizeForDuration(durationSeconds, fs float64) int {
	size := int(durationSeconds * fs)
	if size <= 0 || size > 1<<24 {
		size = defaultBlockSize
	}
	if size%2 != 0 {
		size++
	}
	if size < minBlockSize {
		size = minBlockSize
	}
	return nextPowerOfTwo(size)
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

type regenRequest struct {
	idx    int
	seed   int64
	params Params
	size   int
}

type regenResponse struct {
	idx int
	buf []float64
}

// Generator produces the spectrally shaped mono noise block described in
// SPEC_FULL.md §4.5.1: a double-buffered, RMS-locked, FFT-shaped signal
// with background regeneration and crossfaded handoff.
type Generator struct {
	fs     float64
	size   int
	fft    *dsp.FFT
	params Params

	buffers [2][]float64
	ready   [2]bool
	cursor  int
	pos     int

	targetRMS float64
	rmsLocked bool

	regenInFlight bool
	seedCounter   int64

	reqCh  chan regenRequest
	respCh chan regenResponse
	done   chan struct{}

	underrunActive bool
	underrunPos    int
}

// NewGenerator builds a generator for the given spectral-shaping
// parameters at sample rate fs, synchronously producing the first buffer
// (required to latch the RMS target) and starting a background worker
// goroutine for subsequent regenerations.
func NewGenerator(params Params, fs float64) (*Generator, error) {
	params = params.WithDefaults()
	size := sizeForDuration(params.DurationSeconds, fs)
	fft, err := dsp.NewFFT(size)
	if err != nil {
		return nil, err
	}
	g := &Generator{
		fs:     fs,
		size:   size,
		fft:    fft,
		params: params,
		reqCh:  make(chan regenRequest, 1),
		respCh: make(chan regenResponse, 1),
		done:   make(chan struct{}),
	}
	go g.worker()

	first := g.shapeRawBuffer(params, size, g.nextSeed())
	g.applyRMSLock(first)
	g.buffers[0] = first
	g.ready[0] = true
	g.cursor = 0
	g.pos = 0
	return g, nil
}

func (g *Generator) nextSeed() int64 {
	seed := g.params.Seed
	if seed == 0 {
		seed = 1
	}
	return seed + atomic.AddInt64(&g.seedCounter, 1)
}

// worker regenerates buffers off the audio thread, communicating over a
// single-producer/single-consumer request/response channel pair. It exits
// when reqCh is closed.
func (g *Generator) worker() {
	defer close(g.done)
	for req := range g.reqCh {
		buf := g.shapeRawBuffer(req.params, req.size, req.seed)
		g.respCh <- regenResponse{idx: req.idx, buf: buf}
	}
}

// shapeRawBuffer runs the forward-FFT / spectral-shape / inverse-FFT
// pipeline and peak-normalizes the result to 1, per §4.5.1 steps 1-4 plus
// the peak-normalization half of step 5. RMS locking (the other half of
// step 5) is applied by the caller since it depends on generator-wide
// state that must stay consistent with the audio thread's view.
func (g *Generator) shapeRawBuffer(params Params, size int, seed int64) []float64 {
	real := make([]float64, size)
	imag := make([]float64, size)
	gauss := dsp.NewGaussianSource(seed)
	for i := range real {
		real[i] = gauss.Next()
	}

	g.fft.Forward(real, imag)

	real[0] = 0
	imag[0] = 0

	fMin := g.fs / float64(size)
	fNyq := g.fs / 2
	logFMin := math.Log(fMin)
	logFNyq := math.Log(fNyq)
	logSpan := logFNyq - logFMin

	exponentAt := func(f float64) float64 {
		u := dsp.Clamp((math.Log(f)-logFMin)/logSpan, 0, 1)
		return params.Exponent + (params.HighExponent-params.Exponent)*math.Pow(u, params.DistributionCurve)
	}

	for i := 1; i < size/2; i++ {
		f := g.fs * float64(i) / float64(size)
		exp := exponentAt(f)
		scale := math.Pow(f, -exp/2)
		real[i] *= scale
		imag[i] *= scale
		real[size-i] = real[i]
		imag[size-i] = -imag[i]
	}

	nyq := size / 2
	fNyqFreq := g.fs * float64(nyq) / float64(size)
	scaleNyq := math.Pow(fNyqFreq, -exponentAt(fNyqFreq)/2)
	real[nyq] *= scaleNyq
	imag[nyq] = 0

	g.fft.Inverse(real, imag)

	peak := 0.0
	for _, v := range real {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak > 1e-12 {
		inv := 1 / peak
		for i := range real {
			real[i] *= inv
		}
	}
	return real
}

// applyRMSLock implements §4.5.1 step 5: the first buffer's RMS becomes
// the latched target; every later buffer is scaled toward that target and
// clamped into [-1,1].
func (g *Generator) applyRMSLock(buf []float64) {
	rms := rmsOf(buf)
	if !g.rmsLocked {
		g.targetRMS = rms
		g.rmsLocked = true
		return
	}
	if rms > 1e-12 {
		scale := g.targetRMS / rms
		for i := range buf {
			v := buf[i] * scale
			buf[i] = dsp.Clamp(v, -1, 1)
		}
	}
}

func rmsOf(buf []float64) float64 {
	sumSq := 0.0
	for _, v := range buf {
		sumSq += v * v
	}
	if len(buf) == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(len(buf)))
}

func (g *Generator) requestRegen(idx int) {
	g.regenInFlight = true
	select {
	case g.reqCh <- regenRequest{idx: idx, seed: g.nextSeed(), params: g.params, size: g.size}:
	default:
		// worker still busy with a previous request; try again next block
		g.regenInFlight = false
	}
}

func (g *Generator) drainRegenResponses() {
	select {
	case resp := <-g.respCh:
		g.applyRMSLock(resp.buf)
		g.buffers[resp.idx] = resp.buf
		g.ready[resp.idx] = true
		g.regenInFlight = false
	default:
	}
}

// Generate fills dst with the next len(dst) mono samples, handling
// background-regeneration handoff (§4.5.1) and underrun recovery
// (§4.5.2) transparently.
func (g *Generator) Generate(dst []float64) {
	g.drainRegenResponses()
	remaining := len(dst)
	outIdx := 0
	for remaining > 0 {
		if g.underrunActive {
			n := g.fillFromUnderrun(dst[outIdx : outIdx+remaining])
			outIdx += n
			remaining -= n
			continue
		}

		buf := g.buffers[g.cursor]
		size := len(buf)
		other := 1 - g.cursor

		if !g.regenInFlight && !g.ready[other] && g.pos >= size/2 {
			g.requestRegen(other)
		}

		avail := size - g.pos
		if avail <= 0 {
			if g.ready[other] {
				g.cursor = other
				g.pos = 0
				g.ready[g.cursor^1] = false
				continue
			}
			g.startUnderrun()
			continue
		}

		if g.ready[other] && avail <= crossfadeSamples {
			n := g.fillCrossfade(dst[outIdx:outIdx+remaining], other)
			outIdx += n
			remaining -= n
			continue
		}

		n := avail
		if n > remaining {
			n = remaining
		}
		copy(dst[outIdx:outIdx+n], buf[g.pos:g.pos+n])
		g.pos += n
		outIdx += n
		remaining -= n
	}
}

func (g *Generator) fillCrossfade(dst []float64, other int) int {
	cur := g.buffers[g.cursor]
	size := len(cur)
	avail := size - g.pos
	n := avail
	if n > len(dst) {
		n = len(dst)
	}
	nextBuf := g.buffers[other]
	for i := 0; i < n; i++ {
		idxInFade := crossfadeSamples - avail + i
		t := float64(idxInFade) / float64(crossfadeSamples)
		outGain := 0.5 * (1 + math.Cos(math.Pi*t))
		inGain := 0.5 * (1 - math.Cos(math.Pi*t))
		dst[i] = cur[g.pos+i]*outGain + nextBuf[idxInFade]*inGain
	}
	g.pos += n
	if n == avail {
		g.ready[g.cursor] = false
		g.cursor = other
		g.pos = crossfadeSamples
	}
	return n
}

func (g *Generator) startUnderrun() {
	g.underrunActive = true
	g.underrunPos = 0
	logging.LogUnderrun("size", g.size)
}

func (g *Generator) fillFromUnderrun(dst []float64) int {
	buf := g.buffers[g.cursor]
	size := len(buf)
	fadeLen := underrunFadeSamples
	if fadeLen > size {
		fadeLen = size
	}
	remainingFade := fadeLen - g.underrunPos
	n := remainingFade
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		t := float64(g.underrunPos+i) / float64(fadeLen)
		outGain := 0.5 * (1 + math.Cos(math.Pi*t))
		inGain := 0.5 * (1 - math.Cos(math.Pi*t))
		tailSample := buf[size-fadeLen+g.underrunPos+i]
		restartSample := buf[g.underrunPos+i]
		dst[i] = tailSample*outGain + restartSample*inGain
	}
	g.underrunPos += n
	if g.underrunPos >= fadeLen {
		g.underrunActive = false
		g.pos = fadeLen
	}
	return n
}

// UpdateSpectralParams swaps in new spectral-shaping parameters for future
// regenerations; already-generated buffers are unaffected until the next
// background regeneration.
func (g *Generator) UpdateSpectralParams(params Params) {
	g.params = params.WithDefaults()
}

// Close shuts down the worker goroutine. Safe to call once.
func (g *Generator) Close() {
	close(g.reqCh)
	<-g.done
}

// Size reports the FFT block size in samples.
func (g *Generator) Size() int { return g.size }
