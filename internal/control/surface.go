// Package control implements the engine's external control surface
// (§6.2): init, loadTrack, updateTrack, transport, seek, gain and a
// read-only status snapshot, each serialised the way the teacher's
// runtimeStatusStore guards shared playback state.
package control

import (
	"fmt"
	"sync"
	"time"

	"github.com/abehlok2/session-builder-engine/internal/audio"
	"github.com/abehlok2/session-builder-engine/internal/engineerr"
	"github.com/abehlok2/session-builder-engine/internal/logging"
	"github.com/abehlok2/session-builder-engine/internal/track"
)

// Status is the read-only snapshot returned by GetPlaybackStatus (§6.2).
type Status struct {
	PositionSeconds float64
	CurrentStep     int
	IsPaused        bool
	SampleRate      int
}

// Surface is the engine's control boundary: every exported method
// acquires a lock, performs a bounded mutation or read, and releases —
// never blocking on audio output (§5).
type Surface struct {
	mu sync.RWMutex

	blockFrames int
	sched       *track.Scheduler
	backend     audio.Backend
	loopStop    chan struct{}
	loopDone    <-chan struct{}
}

// NewSurface constructs an uninitialised control surface; no engine
// exists until the first LoadTrack call.
func NewSurface(blockFrames int) *Surface {
	return &Surface{blockFrames: blockFrames}
}

// Init tears down any running engine and returns the surface to its
// freshly-constructed state.
func (s *Surface) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
}

func (s *Surface) teardownLocked() {
	if s.loopStop != nil {
		close(s.loopStop)
		audio.JoinWithTimeout(s.loopDone, time.Second)
		s.loopStop, s.loopDone = nil, nil
	}
	if s.backend != nil {
		s.backend.Close()
		s.backend = nil
	}
	if s.sched != nil {
		s.sched.Close()
		s.sched = nil
	}
}

// LoadTrack decodes and installs a new track, replacing any engine
// already running (§6.2 loadTrack).
func (s *Surface) LoadTrack(data []byte) error {
	tr, err := track.DecodeTrack(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()

	sched, err := track.NewScheduler(tr, float64(tr.Global.SampleRate))
	if err != nil {
		return err
	}
	backend, err := audio.NewPlayer(tr.Global.SampleRate, s.blockFrames)
	if err != nil {
		sched.Close()
		return err
	}
	backend.SetSource(sched)

	s.sched = sched
	s.backend = backend
	s.loopStop = make(chan struct{})
	s.loopDone = audio.RunOutputLoop(backend, sched.IsPaused, tr.Global.SampleRate, s.blockFrames, s.loopStop, func(error) {
		sched.Pause()
	})
	logging.Logger().Info("track loaded", "steps", len(tr.Steps), "sample_rate", tr.Global.SampleRate)
	return nil
}

// UpdateTrack decodes a replacement track and hands it to the running
// scheduler in place, preserving playback position (§6.2 updateTrack).
func (s *Surface) UpdateTrack(data []byte) error {
	tr, err := track.DecodeTrack(data)
	if err != nil {
		return err
	}

	s.mu.RLock()
	sched := s.sched
	s.mu.RUnlock()
	if sched == nil {
		return engineerr.NewConfigError("", fmt.Errorf("updateTrack called with no track loaded"))
	}
	return sched.UpdateTrack(tr)
}

func (s *Surface) scheduler() *track.Scheduler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sched
}

func (s *Surface) Play() {
	if sched := s.scheduler(); sched != nil {
		sched.Play()
	}
}

func (s *Surface) Pause() {
	if sched := s.scheduler(); sched != nil {
		sched.Pause()
	}
}

func (s *Surface) Stop() {
	if sched := s.scheduler(); sched != nil {
		sched.Stop()
	}
}

func (s *Surface) SeekTo(seconds float64) {
	if sched := s.scheduler(); sched != nil {
		sched.SeekTo(seconds)
	}
}

func (s *Surface) SetMasterGain(gain float64) {
	if sched := s.scheduler(); sched != nil {
		sched.SetMasterGain(gain)
	}
}

func (s *Surface) GetCurrentPosition() float64 {
	if sched := s.scheduler(); sched != nil {
		return sched.CurrentPositionSeconds()
	}
	return 0
}

func (s *Surface) GetElapsedSamples() int64 {
	if sched := s.scheduler(); sched != nil {
		return sched.ElapsedSamples()
	}
	return 0
}

func (s *Surface) GetCurrentStep() int {
	if sched := s.scheduler(); sched != nil {
		return sched.CurrentStep()
	}
	return 0
}

func (s *Surface) IsPaused() bool {
	if sched := s.scheduler(); sched != nil {
		return sched.IsPaused()
	}
	return true
}

func (s *Surface) IsPlaying() bool {
	if sched := s.scheduler(); sched != nil {
		return sched.IsPlaying()
	}
	return false
}

func (s *Surface) GetSampleRate() int {
	if sched := s.scheduler(); sched != nil {
		return sched.SampleRate()
	}
	return 0
}

// GetPlaybackStatus returns a point-in-time snapshot, or nil when no
// track has been loaded (§6.2: "absent when no engine exists").
func (s *Surface) GetPlaybackStatus() *Status {
	sched := s.scheduler()
	if sched == nil {
		return nil
	}
	snap := sched.Snapshot()
	return &Status{
		PositionSeconds: snap.PositionSeconds,
		CurrentStep:     snap.CurrentStep,
		IsPaused:        snap.IsPaused,
		SampleRate:      snap.SampleRate,
	}
}

// Close releases the engine and its output thread. Safe to call more
// than once.
func (s *Surface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
}
