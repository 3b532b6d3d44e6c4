// Package sniffer acquires frames from a live interface or a pcap file.
package sniffer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
	"github.com/lcalzada-xor/voipmon/internal/core/ports"
	"github.com/lcalzada-xor/voipmon/internal/telemetry"
)

const (
	DefaultSnapLen   = 65535
	DefaultFilter    = "udp or tcp"
	DefaultQueueSize = 10000
)

// Options selects the capture source. PcapPath takes precedence over Interface.
type Options struct {
	Interface string
	PcapPath  string
	SnapLen   int32
	Filter    string
	QueueSize int
}

// Sniffer implements ports.FrameSource on top of libpcap.
type Sniffer struct {
	opts   Options
	frames chan domain.Frame

	mu     sync.Mutex
	handle *pcap.Handle

	closeFrames sync.Once
	captured    atomic.Uint64
	dropped     atomic.Uint64
}

var _ ports.FrameSource = (*Sniffer)(nil)

// New creates a sniffer. Nothing is opened until Start.
func New(opts Options) *Sniffer {
	if opts.SnapLen <= 0 {
		opts.SnapLen = DefaultSnapLen
	}
	if opts.Filter == "" {
		opts.Filter = DefaultFilter
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	return &Sniffer{
		opts:   opts,
		frames: make(chan domain.Frame, opts.QueueSize),
	}
}

// Frames is closed once Start returns.
func (s *Sniffer) Frames() <-chan domain.Frame {
	return s.frames
}

// Captured returns the number of frames decoded so far.
func (s *Sniffer) Captured() uint64 { return s.captured.Load() }

// Dropped returns the number of frames lost on a full queue.
func (s *Sniffer) Dropped() uint64 { return s.dropped.Load() }

// Start opens the capture and pumps frames until ctx is cancelled or an
// offline capture is exhausted.
func (s *Sniffer) Start(ctx context.Context) error {
	handle, err := s.open()
	if err != nil {
		s.closeQueue()
		return fmt.Errorf("%w: %v", domain.ErrAcquisitionStart, err)
	}
	s.mu.Lock()
	s.handle = handle
	s.mu.Unlock()

	live := s.opts.PcapPath == ""
	slog.Info("capture started", "interface", s.opts.Interface, "file", s.opts.PcapPath, "filter", s.opts.Filter)
	err = s.run(ctx, handle, handle.LinkType(), live)
	slog.Info("capture stopped", "captured", s.Captured(), "dropped", s.Dropped())
	return err
}

func (s *Sniffer) open() (*pcap.Handle, error) {
	var (
		handle *pcap.Handle
		err    error
	)
	switch {
	case s.opts.PcapPath != "":
		handle, err = pcap.OpenOffline(s.opts.PcapPath)
	case s.opts.Interface != "":
		handle, err = pcap.OpenLive(s.opts.Interface, s.opts.SnapLen, true, pcap.BlockForever)
	default:
		return nil, errors.New("no interface or pcap file configured")
	}
	if err != nil {
		return nil, err
	}
	if err := handle.SetBPFFilter(s.opts.Filter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("set filter %q: %w", s.opts.Filter, err)
	}
	return handle, nil
}

// run decodes packets from src. Live captures drop frames when the queue is
// full; offline reads wait for the consumer instead.
func (s *Sniffer) run(ctx context.Context, src gopacket.PacketDataSource, decoder gopacket.Decoder, live bool) error {
	defer s.closeQueue()

	decodeOpts := gopacket.DecodeOptions{Lazy: true, NoCopy: true}
	label := "offline"
	if live {
		label = "live"
	}

	for {
		data, ci, err := src.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, pcap.NextErrorNoMorePackets) {
				return nil
			}
			if errors.Is(err, pcap.NextErrorTimeoutExpired) {
				if ctx.Err() != nil {
					return nil
				}
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read packet: %w", err)
		}

		pkt := gopacket.NewPacket(data, decoder, decodeOpts)
		pkt.Metadata().CaptureInfo = ci
		frame, ok := DecodeFrame(pkt)
		if !ok {
			telemetry.FramesDropped.WithLabelValues("undecodable").Inc()
			continue
		}
		s.captured.Add(1)
		telemetry.FramesCaptured.WithLabelValues(label).Inc()

		if live {
			s.offer(frame)
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		select {
		case s.frames <- frame:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Sniffer) offer(frame domain.Frame) {
	select {
	case s.frames <- frame:
	default:
		s.dropped.Add(1)
		telemetry.FramesDropped.WithLabelValues("queue_full").Inc()
	}
}

func (s *Sniffer) closeQueue() {
	s.closeFrames.Do(func() { close(s.frames) })
}

// Close releases the capture handle. A blocked live read returns shortly after.
func (s *Sniffer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
}
