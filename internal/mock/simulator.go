package mock

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
	"github.com/lcalzada-xor/voipmon/internal/core/ports"
	"github.com/lcalzada-xor/voipmon/internal/telemetry"
)

// FrameWriter receives a copy of every generated frame, e.g. a pcap writer.
type FrameWriter interface {
	WriteFrame(f domain.Frame) error
}

// SimulatorOptions configures a simulation run.
type SimulatorOptions struct {
	Generator GeneratorOptions
	Duration  time.Duration
	// Speed scales the simulated clock against wall time. 0 emits frames as
	// fast as the consumer takes them.
	Speed     float64
	QueueSize int
	Output    FrameWriter
}

// Simulator implements ports.FrameSource with generated traffic. Activities
// overlap in time and their frames are delivered in timestamp order.
type Simulator struct {
	opts   SimulatorOptions
	gen    *Generator
	frames chan domain.Frame
	now    func() time.Time

	closeFrames sync.Once
	sent        atomic.Uint64
}

var _ ports.FrameSource = (*Simulator)(nil)

// NewSimulator creates a simulator. Nothing runs until Start.
func NewSimulator(opts SimulatorOptions) *Simulator {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	return &Simulator{
		opts:   opts,
		gen:    NewGenerator(opts.Generator),
		frames: make(chan domain.Frame, opts.QueueSize),
		now:    time.Now,
	}
}

// SetClock overrides the start time source.
func (s *Simulator) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Simulator) Frames() <-chan domain.Frame {
	return s.frames
}

// Sent returns the number of frames delivered so far.
func (s *Simulator) Sent() uint64 { return s.sent.Load() }

// Start schedules activities for the configured duration and blocks until
// every frame was delivered or ctx is cancelled. Frames is closed on return.
func (s *Simulator) Start(ctx context.Context) error {
	defer s.closeQueue()

	start := s.now()
	end := start.Add(s.opts.Duration)
	wallStart := time.Now()
	slog.Info("simulation started", "duration", s.opts.Duration, "speed", s.opts.Speed)

	var pending frameHeap
	next := start
	for {
		// Expand activities that begin before the earliest queued frame.
		for next.Before(end) && (pending.Len() == 0 || !next.After(pending[0].Timestamp)) {
			for _, f := range s.gen.Activity(next) {
				heap.Push(&pending, f)
			}
			next = next.Add(s.gen.Gap())
		}
		if pending.Len() == 0 {
			break
		}

		f := heap.Pop(&pending).(domain.Frame)
		if !s.wait(ctx, wallStart, f.Timestamp.Sub(start)) {
			break
		}
		s.write(f)
		select {
		case s.frames <- f:
			s.sent.Add(1)
			telemetry.FramesCaptured.WithLabelValues("simulated").Inc()
		case <-ctx.Done():
			slog.Info("simulation stopped", "frames", s.Sent())
			return nil
		}
	}
	slog.Info("simulation finished", "frames", s.Sent())
	return nil
}

// wait sleeps until offset of simulated time has passed on the wall clock.
func (s *Simulator) wait(ctx context.Context, wallStart time.Time, offset time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if s.opts.Speed <= 0 {
		return true
	}
	due := wallStart.Add(time.Duration(float64(offset) / s.opts.Speed))
	d := time.Until(due)
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Simulator) write(f domain.Frame) {
	if s.opts.Output == nil {
		return
	}
	if err := s.opts.Output.WriteFrame(f); err != nil {
		slog.Error("writing simulated frame failed, output disabled", "error", err)
		s.opts.Output = nil
	}
}

func (s *Simulator) closeQueue() {
	s.closeFrames.Do(func() { close(s.frames) })
}

// Close is a no-op; cancel the Start context to stop early.
func (s *Simulator) Close() {}

// frameHeap orders frames by timestamp.
type frameHeap []domain.Frame

func (h frameHeap) Len() int           { return len(h) }
func (h frameHeap) Less(i, j int) bool { return h[i].Timestamp.Before(h[j].Timestamp) }
func (h frameHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *frameHeap) Push(x any) { *h = append(*h, x.(domain.Frame)) }

func (h *frameHeap) Pop() any {
	old := *h
	n := len(old)
	f := old[n-1]
	*h = old[:n-1]
	return f
}
