package dsp

import (
	"fmt"
	"math"
)

// FFT is a real-in/complex-out power-of-two fast Fourier transform over a
// pair of float64 slices, with precomputed bit-reversal and twiddle tables.
// Used only by the streaming noise generator (internal/noise); general
// spectral analysis elsewhere in the corpus goes through gonum, but this
// component is specified as a hand-built leaf kernel (see DESIGN.md).
type FFT struct {
	n       int
	bitRev  []int
	cosTab  []float64
	sinTab  []float64
}

// NewFFT builds an FFT plan for size n, which must be a positive power of
// two. Returns an error wrapping ErrInvalidSize otherwise.
func NewFFT(n int) (*FFT, error) {
	if n <= 0 || n&(n-1) != 0 {
		return nil, fmt.Errorf("dsp: fft size %d: %w", n, ErrInvalidSize)
	}
	f := &FFT{
		n:      n,
		bitRev: make([]int, n),
		cosTab: make([]float64, n/2),
		sinTab: make([]float64, n/2),
	}
	bits := 0
	for 1<<bits < n {
		bits++
	}
	for i := 0; i < n; i++ {
		f.bitRev[i] = reverseBits(i, bits)
	}
	for i := 0; i < n/2; i++ {
		angle := -twoPi * float64(i) / float64(n)
		f.cosTab[i] = math.Cos(angle)
		f.sinTab[i] = math.Sin(angle)
	}
	return f, nil
}

func reverseBits(v, bits int) int {
	r := 0
	for i := 0; i < bits; i++ {
		r = (r << 1) | (v & 1)
		v >>= 1
	}
	return r
}

// Size reports the transform length.
func (f *FFT) Size() int { return f.n }

// Forward performs an in-place forward FFT on real/imag, each of length n.
func (f *FFT) Forward(real, imag []float64) {
	f.transform(real, imag, false)
}

// Inverse performs an in-place inverse FFT on real/imag, each of length n,
// realised as conjugate-forward-conjugate with 1/n scaling.
func (f *FFT) Inverse(real, imag []float64) {
	for i := range imag {
		imag[i] = -imag[i]
	}
	f.transform(real, imag, false)
	invN := 1 / float64(f.n)
	for i := range real {
		real[i] *= invN
		imag[i] = -imag[i] * invN
	}
}

func (f *FFT) transform(real, imag []float64, _ bool) {
	n := f.n
	for i := 0; i < n; i++ {
		j := f.bitRev[i]
		if j > i {
			real[i], real[j] = real[j], real[i]
			imag[i], imag[j] = imag[j], imag[i]
		}
	}

	for size := 2; size <= n; size <<= 1 {
		half := size / 2
		step := n / size
		for start := 0; start < n; start += size {
			for k := 0; k < half; k++ {
				tw := k * step
				cos := f.cosTab[tw]
				sin := f.sinTab[tw]
				aIdx := start + k
				bIdx := start + k + half
				br := real[bIdx]*cos - imag[bIdx]*sin
				bi := real[bIdx]*sin + imag[bIdx]*cos
				real[bIdx] = real[aIdx] - br
				imag[bIdx] = imag[aIdx] - bi
				real[aIdx] += br
				imag[aIdx] += bi
			}
		}
	}
}
