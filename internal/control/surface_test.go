//go:build headless

package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testTrackJSON = `{
  "global_settings": {"sample_rate": 48000},
  "steps": [
    {"duration": 0.2, "voices": [
      {"synth_function": "binaural_beat", "voice_type": "binaural",
       "parameters": {"base_freq": 200, "beat_freq": 10, "amp_l": 0.8, "amp_r": 0.8}}
    ]}
  ]
}`

func TestSurfaceStartsWithNoEngine(t *testing.T) {
	s := NewSurface(1024)
	require.Nil(t, s.GetPlaybackStatus())
	require.True(t, s.IsPaused())
	require.Equal(t, 0, s.GetSampleRate())
}

func TestSurfaceLoadTrackInstallsEngineAndReportsStatus(t *testing.T) {
	s := NewSurface(1024)
	defer s.Close()
	require.NoError(t, s.LoadTrack([]byte(testTrackJSON)))

	status := s.GetPlaybackStatus()
	require.NotNil(t, status)
	require.Equal(t, 48000, status.SampleRate)
	require.True(t, status.IsPaused)
}

func TestSurfacePlayAdvancesPosition(t *testing.T) {
	s := NewSurface(256)
	defer s.Close()
	require.NoError(t, s.LoadTrack([]byte(testTrackJSON)))
	s.Play()
	require.True(t, s.IsPlaying())

	time.Sleep(30 * time.Millisecond)
	require.Greater(t, s.GetElapsedSamples(), int64(0))
}

func TestSurfaceUpdateTrackWithoutLoadErrors(t *testing.T) {
	s := NewSurface(1024)
	err := s.UpdateTrack([]byte(testTrackJSON))
	require.Error(t, err)
}

func TestSurfaceSeekAndStop(t *testing.T) {
	s := NewSurface(256)
	defer s.Close()
	require.NoError(t, s.LoadTrack([]byte(testTrackJSON)))
	s.SeekTo(0.1)
	require.Equal(t, 0, s.GetCurrentStep())
	s.Stop()
	require.Equal(t, int64(0), s.GetElapsedSamples())
}
