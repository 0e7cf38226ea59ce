// Package logging provides the engine's structured logger, a thin
// configuration wrapper around charmbracelet/log shared by the control
// surface, the scheduler's non-realtime edges, and the noise worker.
package logging

import (
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	mu     sync.Mutex
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "entrain",
	})
)

// Logger returns the process-wide engine logger.
func Logger() *log.Logger {
	return logger
}

// SetLevel adjusts the minimum log level.
func SetLevel(level log.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetLevel(level)
}

// underrunLimiter rate-limits underrun-onset logging so a sustained
// underrun condition does not flood stderr once per block.
type underrunLimiter struct {
	mu       sync.Mutex
	last     time.Time
	minGap   time.Duration
}

var underruns = &underrunLimiter{minGap: time.Second}

// LogUnderrun logs an underrun-recovery event at debug level, at most once
// per second regardless of how many blocks trigger it.
func LogUnderrun(fields ...interface{}) {
	underruns.mu.Lock()
	now := time.Now()
	if now.Sub(underruns.last) < underruns.minGap {
		underruns.mu.Unlock()
		return
	}
	underruns.last = now
	underruns.mu.Unlock()

	logger.With(fields...).Debug("noise buffer underrun recovered")
}
