//go:build headless

package audio

import "sync"

// HeadlessPlayer discards (or records, for tests) rendered audio without
// touching a real device. It mirrors OtoPlayer's method set so
// cmd/entrain and internal/control build unchanged under the headless
// tag.
type HeadlessPlayer struct {
	mu      sync.Mutex
	source  BlockSource
	started bool

	// Recorded accumulates every block pulled while started, for tests
	// that want to assert on rendered audio without a real backend.
	Recorded []float64
	scratch  []float64
	frames   int
}

// NewHeadlessPlayer constructs a headless backend that pulls frames-sized
// blocks each time Pull is called.
func NewHeadlessPlayer(frames int) (*HeadlessPlayer, error) {
	return &HeadlessPlayer{frames: frames}, nil
}

// NewPlayer constructs the headless backend; the !headless build swaps
// in the real oto/v3-backed player with the same signature.
func NewPlayer(sampleRate, blockFrames int) (Backend, error) {
	_ = sampleRate
	return NewHeadlessPlayer(blockFrames)
}

func (h *HeadlessPlayer) SetSource(src BlockSource) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.source = src
}

func (h *HeadlessPlayer) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = true
	return nil
}

func (h *HeadlessPlayer) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = false
}

func (h *HeadlessPlayer) Close() { h.Stop() }

func (h *HeadlessPlayer) IsStarted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

// Pull renders one block from the installed source and appends it to
// Recorded, the way a real output loop's tick would. No-op when stopped
// or no source is installed.
func (h *HeadlessPlayer) Pull() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started || h.source == nil {
		return
	}
	need := 2 * h.frames
	if cap(h.scratch) < need {
		h.scratch = make([]float64, need)
	}
	buf := h.scratch[:need]
	h.source.ProcessBlock(buf, h.frames)
	h.Recorded = append(h.Recorded, buf...)
}
