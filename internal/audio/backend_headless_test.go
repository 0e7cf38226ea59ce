//go:build headless

package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSource struct{ calls int }

func (f *fakeSource) ProcessBlock(out []float64, frames int) {
	f.calls++
	for i := range out {
		out[i] = 0.5
	}
}

func TestHeadlessPlayerPullRendersFromSource(t *testing.T) {
	p, err := NewHeadlessPlayer(16)
	require.NoError(t, err)
	src := &fakeSource{}
	p.SetSource(src)
	require.NoError(t, p.Start())

	p.Pull()
	require.Equal(t, 1, src.calls)
	require.Len(t, p.Recorded, 32)
	for _, v := range p.Recorded {
		require.Equal(t, 0.5, v)
	}
}

func TestHeadlessPlayerPullNoOpWhenStopped(t *testing.T) {
	p, err := NewHeadlessPlayer(16)
	require.NoError(t, err)
	p.SetSource(&fakeSource{})
	p.Pull()
	require.Empty(t, p.Recorded)
}

func TestRunOutputLoopStopsWithinTimeout(t *testing.T) {
	p, err := NewPlayer(48000, 1024)
	require.NoError(t, err)
	p.SetSource(&fakeSource{})

	paused := false
	stop := make(chan struct{})
	done := RunOutputLoop(p, func() bool { return paused }, 48000, 1024, stop, nil)

	time.Sleep(5 * time.Millisecond)
	close(stop)
	require.True(t, JoinWithTimeout(done, time.Second))
	require.False(t, p.IsStarted())
}
