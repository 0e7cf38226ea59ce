// Command entrain is a CLI demo harness for the binaural/entrainment
// engine: it loads a track JSON file, plays it through the platform
// audio backend, and exits when the track ends or the user interrupts.
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/abehlok2/session-builder-engine/internal/control"
	"github.com/abehlok2/session-builder-engine/internal/logging"
)

func main() {
	trackPath := pflag.StringP("track", "t", "", "path to a track JSON file (required)")
	masterGain := pflag.Float64P("gain", "g", 1.0, "master output gain")
	blockFrames := pflag.IntP("block-frames", "b", 1024, "frames per output block")
	pflag.Parse()

	log := logging.Logger()
	if *trackPath == "" {
		log.Error("missing required flag", "flag", "--track")
		pflag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(*trackPath)
	if err != nil {
		log.Error("failed to read track file", "path", *trackPath, "err", err)
		os.Exit(1)
	}

	surface := control.NewSurface(*blockFrames)
	defer surface.Close()

	if err := surface.LoadTrack(data); err != nil {
		log.Error("failed to load track", "err", err)
		os.Exit(1)
	}
	surface.SetMasterGain(*masterGain)
	surface.Play()
	log.Info("playing", "track", *trackPath, "sample_rate", surface.GetSampleRate())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-sig:
			log.Info("interrupted, stopping")
			surface.Stop()
			return
		case <-ticker.C:
			status := surface.GetPlaybackStatus()
			if status == nil || !surface.IsPlaying() {
				log.Info("playback ended")
				return
			}
			log.Debug("status", "position", status.PositionSeconds, "step", status.CurrentStep)
		}
	}
}
