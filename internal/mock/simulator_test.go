package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

type recordingWriter struct {
	frames []domain.Frame
	err    error
}

func (w *recordingWriter) WriteFrame(f domain.Frame) error {
	if w.err != nil {
		return w.err
	}
	w.frames = append(w.frames, f)
	return nil
}

func drain(ch <-chan domain.Frame) []domain.Frame {
	var out []domain.Frame
	for f := range ch {
		out = append(out, f)
	}
	return out
}

func TestSimulator_DeliversOrderedFrames(t *testing.T) {
	out := &recordingWriter{}
	sim := NewSimulator(SimulatorOptions{
		Generator: GeneratorOptions{Seed: 2, SuspiciousRate: 0.3, RTPPackets: 20},
		Duration:  30 * time.Second,
		Output:    out,
	})
	sim.SetClock(func() time.Time { return t0 })

	done := make(chan []domain.Frame)
	go func() { done <- drain(sim.Frames()) }()
	require.NoError(t, sim.Start(context.Background()))
	frames := <-done

	require.NotEmpty(t, frames)
	assert.Equal(t, uint64(len(frames)), sim.Sent())
	assert.Equal(t, frames, out.frames)
	assert.Equal(t, t0, frames[0].Timestamp)
	for i := 1; i < len(frames); i++ {
		require.False(t, frames[i].Timestamp.Before(frames[i-1].Timestamp), "frame %d out of order", i)
	}
	// only activities starting inside the window are generated
	last := frames[len(frames)-1].Timestamp
	assert.Less(t, last.Sub(t0), 30*time.Second+2*time.Second)
}

func TestSimulator_OutputErrorDisablesOutput(t *testing.T) {
	out := &recordingWriter{err: errors.New("disk full")}
	sim := NewSimulator(SimulatorOptions{
		Generator: GeneratorOptions{Seed: 2, RTPPackets: 2},
		Duration:  5 * time.Second,
		Output:    out,
	})

	done := make(chan []domain.Frame)
	go func() { done <- drain(sim.Frames()) }()
	require.NoError(t, sim.Start(context.Background()))
	assert.NotEmpty(t, <-done, "frames keep flowing without the output")
	assert.Nil(t, sim.opts.Output)
}

func TestSimulator_StopsOnCancel(t *testing.T) {
	sim := NewSimulator(SimulatorOptions{
		Generator: GeneratorOptions{Seed: 4},
		Duration:  time.Hour,
		Speed:     1,
	})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- sim.Start(ctx) }()

	// first frame is due immediately
	select {
	case _, ok := <-sim.Frames():
		require.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("simulator did not stop")
	}
	drain(sim.Frames())
}

func TestSimulator_ZeroDuration(t *testing.T) {
	sim := NewSimulator(SimulatorOptions{})
	require.NoError(t, sim.Start(context.Background()))
	assert.Empty(t, drain(sim.Frames()))
	assert.Zero(t, sim.Sent())
}
