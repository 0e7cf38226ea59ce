// Package audio implements the stereo float32 output stage (§4.7): a
// Backend interface selected by build tag exactly the way the teacher
// selects its OtoPlayer versus a headless stub, driven by a scheduler
// pulled through a lock-free atomic pointer on the hot path.
package audio

// BlockSource is the subset of track.Scheduler the output stage depends
// on. ProcessBlock renders frames stereo frames (len(out) == 2*frames) the
// same way voice.Voice.Process does.
type BlockSource interface {
	ProcessBlock(out []float64, frames int)
}

// Backend is satisfied by every audio output implementation: the real
// oto/v3-backed player and the headless recorder used in tests and CI.
type Backend interface {
	// SetSource installs the block source the backend's Read hot path
	// pulls from. Safe to call concurrently with Read.
	SetSource(src BlockSource)
	Start() error
	Stop()
	Close()
	IsStarted() bool
}
