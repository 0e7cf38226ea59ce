package audio

import (
	"fmt"
	"time"

	"github.com/abehlok2/session-builder-engine/internal/engineerr"
	"github.com/abehlok2/session-builder-engine/internal/logging"
)

// Puller is implemented by backends that have no pull thread of their
// own (the headless recorder); the output loop drives them explicitly,
// paced to real time. OtoPlayer does not implement this — oto's own
// playback thread calls Read.
type Puller interface {
	Pull()
}

// RunOutputLoop starts the dedicated output thread described in §4.7: it
// starts backend, then while running either sleeps 10ms when paused()
// reports true, or (for backends with no pull thread of their own) pulls
// one block at the real-time cadence implied by sampleRate/blockFrames.
// Closing stop ends the loop; the returned channel closes once the loop
// has called backend.Stop() and returned.
//
// onFatal is invoked (e.g. to pause the engine) when the loop cannot
// continue: backend.Start() failing surfaces engineerr.ErrOutputWrite
// logged at Error severity, and a panic inside the loop is recovered at
// this goroutine boundary, logged at Error severity without terminating
// the process, and also surfaced as engineerr.ErrOutputWrite (§7).
// onFatal may be nil.
func RunOutputLoop(backend Backend, paused func() bool, sampleRate, blockFrames int, stop <-chan struct{}, onFatal func(error)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic in audio output loop: %v: %w", r, engineerr.ErrOutputWrite)
				logging.Logger().Error("fatal panic recovered in audio output loop, pausing engine", "err", err)
				if onFatal != nil {
					onFatal(err)
				}
			}
		}()
		if err := backend.Start(); err != nil {
			wrapped := fmt.Errorf("starting audio backend: %v: %w", err, engineerr.ErrOutputWrite)
			logging.Logger().Error("audio output backend failed to start, engine paused", "err", wrapped)
			if onFatal != nil {
				onFatal(wrapped)
			}
			return
		}
		defer backend.Stop()

		puller, canPull := backend.(Puller)
		interval := time.Duration(float64(blockFrames) / float64(sampleRate) * float64(time.Second))
		if interval <= 0 {
			interval = time.Millisecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			default:
			}

			if paused() {
				select {
				case <-stop:
					return
				case <-time.After(10 * time.Millisecond):
				}
				continue
			}

			if canPull {
				puller.Pull()
			}

			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
	return done
}

// JoinWithTimeout blocks until done closes or timeout elapses, reporting
// whether the loop finished in time (§4.7: "joins the thread within ≤1s").
func JoinWithTimeout(done <-chan struct{}, timeout time.Duration) bool {
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
