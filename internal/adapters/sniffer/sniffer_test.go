package sniffer

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

func capture(t *testing.T, n int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewPcapWriter(&buf)
	require.NoError(t, err)

	base := time.Date(2024, 10, 5, 2, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		require.NoError(t, w.WriteFrame(domain.Frame{
			Timestamp: base.Add(time.Duration(i) * 20 * time.Millisecond),
			SrcAddr:   "10.0.0.1", DstAddr: "10.0.0.2",
			Transport: domain.TransportUDP, SrcPort: 20000, DstPort: 20002,
			Payload: []byte(fmt.Sprintf("frame-%d", i)),
		}))
	}
	return &buf
}

func TestRun_OfflineDeliversEveryFrame(t *testing.T) {
	buf := capture(t, 25)
	r, err := pcapgo.NewReader(buf)
	require.NoError(t, err)

	s := New(Options{PcapPath: "unused.pcap", QueueSize: 4})
	done := make(chan error, 1)
	go func() { done <- s.run(context.Background(), r, r.LinkType(), false) }()

	var got []domain.Frame
	for f := range s.Frames() {
		got = append(got, f)
	}
	require.NoError(t, <-done)
	require.Len(t, got, 25)
	for i, f := range got {
		assert.Equal(t, fmt.Sprintf("frame-%d", i), string(f.Payload))
	}
	assert.Equal(t, uint64(25), s.Captured())
	assert.Zero(t, s.Dropped())
}

func TestRun_LiveDropsWhenQueueFull(t *testing.T) {
	buf := capture(t, 5)
	r, err := pcapgo.NewReader(buf)
	require.NoError(t, err)

	s := New(Options{Interface: "eth0", QueueSize: 2})
	require.NoError(t, s.run(context.Background(), r, r.LinkType(), true))

	var got []domain.Frame
	for f := range s.Frames() {
		got = append(got, f)
	}
	assert.Len(t, got, 2)
	assert.Equal(t, "frame-0", string(got[0].Payload))
	assert.Equal(t, uint64(3), s.Dropped())
}

func TestRun_StopsOnCancel(t *testing.T) {
	buf := capture(t, 10)
	r, err := pcapgo.NewReader(buf)
	require.NoError(t, err)

	s := New(Options{PcapPath: "unused.pcap", QueueSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.run(ctx, r, r.LinkType(), false) }()

	<-s.Frames()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}

func TestStart_OpenFailure(t *testing.T) {
	s := New(Options{})
	err := s.Start(context.Background())
	assert.ErrorIs(t, err, domain.ErrAcquisitionStart)

	_, open := <-s.Frames()
	assert.False(t, open)

	s = New(Options{PcapPath: t.TempDir() + "/missing.pcap"})
	assert.ErrorIs(t, s.Start(context.Background()), domain.ErrAcquisitionStart)
}

func TestNew_Defaults(t *testing.T) {
	s := New(Options{})
	assert.Equal(t, int32(DefaultSnapLen), s.opts.SnapLen)
	assert.Equal(t, DefaultFilter, s.opts.Filter)
	assert.Equal(t, DefaultQueueSize, cap(s.frames))
}
