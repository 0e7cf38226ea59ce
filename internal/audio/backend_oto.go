//go:build !headless

package audio

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

// OtoPlayer streams a BlockSource to the system's default audio device
// via oto/v3. The source is swapped through an atomic pointer so the
// Read hot path never takes a lock; Scheduler itself owns the mutex that
// guards its own mutation (§4.7, §5).
type OtoPlayer struct {
	ctx     *oto.Context
	player  *oto.Player
	source  atomic.Pointer[BlockSource]
	scratch []float64
	sampleBuf []float32
	started bool
	mutex   sync.Mutex
}

// NewOtoPlayer opens a stereo float32 oto context at sampleRate.
func NewOtoPlayer(sampleRate, blockFrames int) (*OtoPlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4096,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	p := &OtoPlayer{
		ctx:       ctx,
		scratch:   make([]float64, 2*blockFrames),
		sampleBuf: make([]float32, 2*blockFrames),
	}
	p.player = ctx.NewPlayer(p)
	return p, nil
}

// NewPlayer constructs the platform audio backend (§4.7); the headless
// build tag swaps in a backend that discards/records instead.
func NewPlayer(sampleRate, blockFrames int) (Backend, error) {
	return NewOtoPlayer(sampleRate, blockFrames)
}

func (op *OtoPlayer) SetSource(src BlockSource) {
	if src == nil {
		op.source.Store(nil)
		return
	}
	op.source.Store(&src)
}

// Read satisfies io.Reader for oto's pull-based player. p holds
// interleaved stereo float32 samples as raw little-endian bytes.
func (op *OtoPlayer) Read(p []byte) (n int, err error) {
	const bytesPerFrame = 8 // 2 channels * 4 bytes
	frames := len(p) / bytesPerFrame
	need := 2 * frames

	if cap(op.scratch) < need {
		op.scratch = make([]float64, need)
	}
	buf := op.scratch[:need]

	srcPtr := op.source.Load()
	if srcPtr == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	(*srcPtr).ProcessBlock(buf, frames)

	if cap(op.sampleBuf) < need {
		op.sampleBuf = make([]float32, need)
	}
	samples := op.sampleBuf[:need]
	for i, v := range buf {
		samples[i] = float32(v)
	}

	copy(p, (*[1 << 30]byte)(unsafe.Pointer(&samples[0]))[:len(p)])
	return len(p), nil
}

func (op *OtoPlayer) Start() error {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	if !op.started {
		op.player.Play()
		op.started = true
	}
	return nil
}

func (op *OtoPlayer) Stop() {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	if op.started {
		op.player.Pause()
		op.started = false
	}
}

func (op *OtoPlayer) Close() {
	op.Stop()
	op.mutex.Lock()
	defer op.mutex.Unlock()
	if op.player != nil {
		op.player.Close()
		op.player = nil
	}
}

func (op *OtoPlayer) IsStarted() bool {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	return op.started
}
