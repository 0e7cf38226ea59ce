package track

import (
	"errors"
	"math"
	"sync"

	"github.com/abehlok2/session-builder-engine/internal/engineerr"
	"github.com/abehlok2/session-builder-engine/internal/logging"
	"github.com/abehlok2/session-builder-engine/internal/noise"
	"github.com/abehlok2/session-builder-engine/internal/voice"
)

type activeVoiceEntry struct {
	voice voice.Voice
	typ   voice.Type
	scale float64
}

type phaseSlot struct {
	l, r float64
	has  bool
}

// Scheduler drives a loaded track's steps, voices and background noise
// into fixed stereo blocks (§4.6). It owns all mutable playback state and
// serialises access itself: every exported method holds the scheduler's
// own mutex for the duration of a ProcessBlock call or a mutation.
type Scheduler struct {
	mu sync.Mutex

	track TrackData
	fs    float64

	currentStepIndex    int
	currentSampleInStep int64
	absoluteSample      int64
	paused              bool

	activeVoices []activeVoiceEntry
	nextVoices   []activeVoiceEntry

	crossfadeActive   bool
	crossfadeSamples  int64
	crossfadePosition int64

	accumulatedPhases []phaseSlot

	bgStream         *noise.Stream
	bgData           *BackgroundNoiseData
	bgPlaybackSample int64

	masterGain, voiceGain, noiseGain float64

	scratchCurrent []float64
	scratchNext    []float64
	scratchVoice   []float64
	scratchBg      []float64
}

// NewScheduler constructs a Scheduler over track at sample rate fs,
// playback stopped at step 0 sample 0.
func NewScheduler(tr TrackData, fs float64) (*Scheduler, error) {
	s := &Scheduler{fs: fs, masterGain: 1, voiceGain: 1, noiseGain: 1, paused: true}
	if err := s.LoadTrack(tr); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadTrack replaces the track and resets playback to the start (§6.2
// loadTrack).
func (s *Scheduler) LoadTrack(tr TrackData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceTrack(tr, true)
}

// UpdateTrack replaces the track in place, preserving the current
// playback position when possible (§9: no step-level delta computation;
// the step list is rebuilt wholesale).
func (s *Scheduler) UpdateTrack(tr TrackData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceTrack(tr, false)
}

func (s *Scheduler) replaceTrack(tr TrackData, resetPosition bool) error {
	s.track = tr
	if resetPosition || s.currentStepIndex >= len(tr.Steps) {
		s.currentStepIndex = 0
		s.currentSampleInStep = 0
		s.absoluteSample = 0
		s.accumulatedPhases = nil
	}
	s.activeVoices = nil
	s.nextVoices = nil
	s.crossfadeActive = false
	s.crossfadePosition = 0
	return s.reconcileBackgroundNoise(tr.BackgroundNoise)
}

func (s *Scheduler) reconcileBackgroundNoise(bn *BackgroundNoiseData) error {
	if bn == nil {
		if s.bgStream != nil {
			s.bgStream.Close()
		}
		s.bgStream, s.bgData = nil, nil
		s.bgPlaybackSample = 0
		return nil
	}
	if s.bgData != nil && s.bgStream != nil && s.bgData.Compatible(bn) {
		if err := s.bgStream.UpdateRealtimeParams(bn.Params); err != nil {
			if !errors.Is(err, engineerr.ErrRealtimeIncompatibleUpdate) {
				return err
			}
			logging.Logger().Info("rebuilding background noise generator: realtime-incompatible update", "err", err)
			fresh, ferr := noise.NewStream(bn.Params, s.fs)
			if ferr != nil {
				return ferr
			}
			s.bgStream.Close()
			s.bgStream = fresh
			s.bgPlaybackSample = 0
		}
		s.bgData = bn
		return nil
	}
	if s.bgStream != nil {
		s.bgStream.Close()
	}
	stream, err := noise.NewStream(bn.Params, s.fs)
	if err != nil {
		return err
	}
	s.bgStream = stream
	s.bgData = bn
	s.bgPlaybackSample = 0
	return nil
}

func (s *Scheduler) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	s.currentStepIndex = 0
	s.currentSampleInStep = 0
	s.absoluteSample = 0
	s.activeVoices = nil
	s.nextVoices = nil
	s.crossfadeActive = false
	s.accumulatedPhases = nil
	s.bgPlaybackSample = 0
}

func (s *Scheduler) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Scheduler) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.paused && s.currentStepIndex < len(s.track.Steps)
}

func (s *Scheduler) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track.Global.SampleRate
}

func (s *Scheduler) CurrentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentStepIndex
}

func (s *Scheduler) ElapsedSamples() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.absoluteSample
}

func (s *Scheduler) CurrentPositionSeconds() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.absoluteSample) / s.fs
}

// Status is a point-in-time snapshot for control.Surface's
// getPlaybackStatus (§6.2).
type Status struct {
	PositionSeconds float64
	CurrentStep     int
	IsPaused        bool
	SampleRate      int
}

// Snapshot returns the current playback status in a single locked read.
func (s *Scheduler) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		PositionSeconds: float64(s.absoluteSample) / s.fs,
		CurrentStep:     s.currentStepIndex,
		IsPaused:        s.paused,
		SampleRate:      s.track.Global.SampleRate,
	}
}

func (s *Scheduler) SetMasterGain(g float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.masterGain = clampGain(g)
}

func (s *Scheduler) SetVoiceGain(g float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voiceGain = clampGain(g)
}

func (s *Scheduler) SetNoiseGain(g float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noiseGain = clampGain(g)
}

func clampGain(g float64) float64 {
	if g < 0 {
		return 0
	}
	return g
}

func stepSamples(d, fs float64) int64 { return int64(d * fs) }

func (s *Scheduler) currentCrossfadeSamples(cur, next StepData) int64 {
	fade := stepSamples(s.track.Global.CrossfadeDuration, s.fs)
	cs := stepSamples(cur.Duration, s.fs)
	ns := stepSamples(next.Duration, s.fs)
	if cs < fade {
		fade = cs
	}
	if ns < fade {
		fade = ns
	}
	if fade < 0 {
		fade = 0
	}
	return fade
}

func (s *Scheduler) normalizationTargetFor(step StepData) float64 {
	if step.HasNormalizationOverride {
		return step.NormalizationLevel
	}
	return s.track.Global.NormalizationLevel
}

func (s *Scheduler) buildEntries(step StepData, phases []phaseSlot) []activeVoiceEntry {
	entries := make([]activeVoiceEntry, len(step.Voices))
	for i, vd := range step.Voices {
		v, err := BuildVoice(vd, step.Duration, s.fs)
		if err != nil {
			logging.Logger().Warn("skipping voice that failed to build", "index", i, "err", err)
			continue
		}
		if p, ok := v.(voice.Phased); ok && i < len(phases) && phases[i].has {
			p.SetPhases(phases[i].l, phases[i].r)
		}
		entries[i] = activeVoiceEntry{voice: v, typ: vd.VoiceType}
	}

	target := s.normalizationTargetFor(step)
	groupPeak := map[voice.Type]float64{}
	for _, e := range entries {
		if e.voice == nil {
			continue
		}
		if p := e.voice.NormalizationPeak(); p > groupPeak[e.typ] {
			groupPeak[e.typ] = p
		}
	}
	groupGain := map[voice.Type]float64{}
	for t, peak := range groupPeak {
		vol := 1.0
		switch t {
		case voice.TypeBinaural:
			vol = step.BinauralVolume
		case voice.TypeNoise:
			vol = step.NoiseVolume
		}
		g := 0.0
		if peak > 1e-12 {
			g = math.Min(target/peak, 1.0)
		}
		groupGain[t] = g * vol
	}
	for i := range entries {
		if entries[i].voice == nil {
			continue
		}
		entries[i].scale = groupGain[entries[i].typ]
	}
	return entries
}

func (s *Scheduler) ensureActiveVoices() {
	if s.activeVoices != nil || s.currentStepIndex >= len(s.track.Steps) {
		return
	}
	step := s.track.Steps[s.currentStepIndex]
	s.activeVoices = s.buildEntries(step, s.accumulatedPhases)
}

func harvestPhases(entries []activeVoiceEntry) []phaseSlot {
	slots := make([]phaseSlot, len(entries))
	for i, e := range entries {
		if e.voice == nil {
			continue
		}
		if p, ok := e.voice.(voice.Phased); ok {
			l, r, has := p.Phases()
			slots[i] = phaseSlot{l: l, r: r, has: has}
		}
	}
	return slots
}

func (s *Scheduler) renderEntries(entries []activeVoiceEntry, out []float64, frames int) {
	need := 2 * frames
	if cap(s.scratchVoice) < need {
		s.scratchVoice = make([]float64, need)
	}
	buf := s.scratchVoice[:need]
	for _, e := range entries {
		if e.voice == nil || e.scale == 0 {
			continue
		}
		for i := range buf {
			buf[i] = 0
		}
		e.voice.Process(buf)
		for i := range buf {
			out[i] += buf[i] * e.scale
		}
	}
}

func dropFinished(entries []activeVoiceEntry) []activeVoiceEntry {
	for i, e := range entries {
		if e.voice != nil && e.voice.IsFinished() {
			entries[i].voice = nil
		}
	}
	return entries
}

// ProcessBlock renders frames stereo frames (len(out) == 2*frames) into
// out, per §4.6.1.
func (s *Scheduler) ProcessBlock(out []float64, frames int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range out {
		out[i] = 0
	}
	if s.paused || s.currentStepIndex >= len(s.track.Steps) {
		return
	}

	s.ensureActiveVoices()
	step := s.track.Steps[s.currentStepIndex]
	curSamples := stepSamples(step.Duration, s.fs)
	hasNext := s.currentStepIndex+1 < len(s.track.Steps)

	if !s.crossfadeActive && hasNext {
		next := s.track.Steps[s.currentStepIndex+1]
		fadeLen := s.currentCrossfadeSamples(step, next)
		if fadeLen > 0 && s.currentSampleInStep >= curSamples-fadeLen && !StepsHaveContinuousVoices(step, next) {
			s.startCrossfade(next, fadeLen)
		}
	}

	if s.crossfadeActive {
		s.renderCrossfadeBlock(out, frames)
	} else {
		s.renderNormalBlock(out, frames, curSamples, step)
	}

	for i := range out {
		out[i] *= s.voiceGain
	}
	s.mixBackgroundNoise(out, frames)
	for i := range out {
		out[i] *= s.masterGain
	}
	s.absoluteSample += int64(frames)
}

func (s *Scheduler) renderNormalBlock(out []float64, frames int, curSamples int64, step StepData) {
	s.renderEntries(s.activeVoices, out, frames)
	s.currentSampleInStep += int64(frames)

	if s.currentSampleInStep >= curSamples {
		s.accumulatedPhases = harvestPhases(s.activeVoices)
		s.currentStepIndex++
		s.currentSampleInStep -= curSamples
		if s.currentSampleInStep < 0 {
			s.currentSampleInStep = 0
		}
		s.activeVoices = nil
	}
	s.activeVoices = dropFinished(s.activeVoices)
}

func (s *Scheduler) startCrossfade(next StepData, fadeLen int64) {
	phases := harvestPhases(s.activeVoices)
	s.nextVoices = s.buildEntries(next, phases)
	s.crossfadeActive = true
	s.crossfadeSamples = fadeLen
	s.crossfadePosition = 0
}

func (s *Scheduler) renderCrossfadeBlock(out []float64, frames int) {
	need := 2 * frames
	if cap(s.scratchCurrent) < need {
		s.scratchCurrent = make([]float64, need)
	}
	if cap(s.scratchNext) < need {
		s.scratchNext = make([]float64, need)
	}
	cur := s.scratchCurrent[:need]
	nxt := s.scratchNext[:need]
	for i := range cur {
		cur[i] = 0
		nxt[i] = 0
	}
	s.renderEntries(s.activeVoices, cur, frames)
	s.renderEntries(s.nextVoices, nxt, frames)

	equalPower := s.track.Global.CrossfadeCurve == CrossfadeEqualPower
	for i := 0; i < frames; i++ {
		pos := s.crossfadePosition + int64(i)
		r := float64(pos) / float64(s.crossfadeSamples)
		if r > 1 {
			r = 1
		}
		var gOut, gIn float64
		if equalPower {
			gOut, gIn = math.Cos(r*math.Pi/2), math.Sin(r*math.Pi/2)
		} else {
			gOut, gIn = 1-r, r
		}
		out[2*i] += cur[2*i]*gOut + nxt[2*i]*gIn
		out[2*i+1] += cur[2*i+1]*gOut + nxt[2*i+1]*gIn
	}

	s.crossfadePosition += int64(frames)
	if s.crossfadePosition >= s.crossfadeSamples {
		s.accumulatedPhases = harvestPhases(s.nextVoices)
		s.activeVoices = s.nextVoices
		s.nextVoices = nil
		s.currentStepIndex++
		s.currentSampleInStep = 0
		s.crossfadeActive = false
		s.crossfadePosition = 0
	}
}

func envelopeValueAt(points []voice.EnvelopePoint, t float64) float64 {
	if len(points) == 0 {
		return 1.0
	}
	if t <= points[0].TimeSeconds {
		return points[0].Amplitude
	}
	last := points[len(points)-1]
	if t >= last.TimeSeconds {
		return last.Amplitude
	}
	for i := 1; i < len(points); i++ {
		if t <= points[i].TimeSeconds {
			a, b := points[i-1], points[i]
			span := b.TimeSeconds - a.TimeSeconds
			if span <= 0 {
				return b.Amplitude
			}
			alpha := (t - a.TimeSeconds) / span
			return a.Amplitude + (b.Amplitude-a.Amplitude)*alpha
		}
	}
	return last.Amplitude
}

func (s *Scheduler) mixBackgroundNoise(out []float64, frames int) {
	if s.bgStream == nil || s.bgData == nil {
		return
	}
	startSample := int64(s.bgData.StartTime * s.fs)
	blockStart := s.absoluteSample
	if blockStart+int64(frames) <= startSample {
		return
	}
	offset := 0
	if blockStart < startSample {
		offset = int(startSample - blockStart)
	}
	remaining := frames - offset
	if remaining <= 0 {
		return
	}
	durationSamples := s.bgStream.DurationSamples()
	if durationSamples > 0 {
		left := durationSamples - s.bgPlaybackSample
		if left <= 0 {
			return
		}
		if int64(remaining) > left {
			remaining = int(left)
		}
	}

	need := 2 * remaining
	if cap(s.scratchBg) < need {
		s.scratchBg = make([]float64, need)
	}
	buf := s.scratchBg[:need]
	s.bgStream.Generate(buf, remaining)

	fadeInSamples := int64(s.bgData.FadeIn * s.fs)
	fadeOutSamples := int64(s.bgData.FadeOut * s.fs)
	for i := 0; i < remaining; i++ {
		sample := s.bgPlaybackSample + int64(i)
		g := s.bgData.Gain
		if fadeInSamples > 0 && sample < fadeInSamples {
			g *= float64(sample) / float64(fadeInSamples)
		}
		if durationSamples > 0 && fadeOutSamples > 0 {
			left := durationSamples - sample
			if left < fadeOutSamples {
				g *= math.Max(0, float64(left)/float64(fadeOutSamples))
			}
		}
		g *= envelopeValueAt(s.bgData.AmpEnvelope, float64(sample)/s.fs)
		g *= s.noiseGain

		outIdx := offset + i
		out[2*outIdx] += buf[2*i] * g
		out[2*outIdx+1] += buf[2*i+1] * g
	}
	s.bgPlaybackSample += int64(remaining)
}

// SeekTo sets absolute playback position to seconds, walking the step
// list to locate the new (step, sample-in-step) pair and realigning the
// background noise layer, per §4.6.4. Oscillator voices restart from
// phase 0; the resulting discontinuity is accepted.
func (s *Scheduler) SeekTo(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	target := int64(seconds * s.fs)

	idx, acc := 0, int64(0)
	for idx < len(s.track.Steps)-1 {
		ss := stepSamples(s.track.Steps[idx].Duration, s.fs)
		if acc+ss > target {
			break
		}
		acc += ss
		idx++
	}
	s.currentStepIndex = idx
	if idx < len(s.track.Steps) {
		s.currentSampleInStep = target - acc
		if s.currentSampleInStep < 0 {
			s.currentSampleInStep = 0
		}
	}
	s.absoluteSample = target
	s.activeVoices = nil
	s.nextVoices = nil
	s.crossfadeActive = false
	s.crossfadePosition = 0
	s.accumulatedPhases = nil

	if s.bgStream != nil && s.bgData != nil {
		startSample := int64(s.bgData.StartTime * s.fs)
		skip := target - startSample
		if skip < 0 {
			skip = 0
		}
		if dur := s.bgStream.DurationSamples(); dur > 0 && skip > dur {
			skip = dur
		}
		s.bgStream.SkipSamples(skip)
		s.bgPlaybackSample = skip
	}
}

// Close releases background resources (the background-noise stream's
// worker goroutine, if any).
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bgStream != nil {
		s.bgStream.Close()
	}
}
