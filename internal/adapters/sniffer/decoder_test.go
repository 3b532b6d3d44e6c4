package sniffer

import (
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

func decode(t *testing.T, f domain.Frame) (domain.Frame, bool) {
	t.Helper()
	data, err := EncodeFrame(f)
	require.NoError(t, err)
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	pkt.Metadata().Timestamp = f.Timestamp
	return DecodeFrame(pkt)
}

func TestDecodeFrame_SIPKeepsFullPayload(t *testing.T) {
	payload := []byte("INVITE sip:bob@10.0.0.2 SIP/2.0\r\nCall-ID: abc@host\r\nUser-Agent: softphone\r\nContent-Length: 0\r\n\r\n")
	in := domain.Frame{
		Timestamp: time.Date(2024, 10, 5, 2, 0, 0, 0, time.UTC),
		SrcAddr:   "10.0.0.1", DstAddr: "10.0.0.2",
		Transport: domain.TransportUDP, SrcPort: 5060, DstPort: 5060,
		Payload: payload,
	}

	got, ok := decode(t, in)
	require.True(t, ok)
	assert.Equal(t, in, got)
}

func TestDecodeFrame_RTPOverIPv6(t *testing.T) {
	in := domain.Frame{
		Timestamp: time.Date(2024, 10, 5, 2, 0, 0, 0, time.UTC),
		SrcAddr:   "2001:db8::1", DstAddr: "2001:db8::2",
		Transport: domain.TransportUDP, SrcPort: 20000, DstPort: 20002,
		Payload: []byte{0x80, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0, 0, 7},
	}

	got, ok := decode(t, in)
	require.True(t, ok)
	assert.Equal(t, in, got)
}

func TestDecodeFrame_TCP(t *testing.T) {
	in := domain.Frame{
		Timestamp: time.Date(2024, 10, 5, 2, 0, 0, 0, time.UTC),
		SrcAddr:   "10.0.0.1", DstAddr: "10.0.0.2",
		Transport: domain.TransportTCP, SrcPort: 40000, DstPort: 443,
	}

	got, ok := decode(t, in)
	require.True(t, ok)
	assert.Equal(t, domain.TransportTCP, got.Transport)
	assert.Equal(t, uint16(443), got.DstPort)
	assert.Nil(t, got.Payload)
}

func TestDecodeFrame_NonIP(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeARP}
	arp := &layers.ARP{
		AddrType: layers.LinkTypeEthernet, Protocol: layers.EthernetTypeIPv4,
		HwAddressSize: 6, ProtAddressSize: 4, Operation: layers.ARPRequest,
		SourceHwAddress: srcMAC, SourceProtAddress: []byte{10, 0, 0, 1},
		DstHwAddress: []byte{0, 0, 0, 0, 0, 0}, DstProtAddress: []byte{10, 0, 0, 2},
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, arp))

	pkt := gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
	_, ok := DecodeFrame(pkt)
	assert.False(t, ok)
}

func TestEncodeFrame_Errors(t *testing.T) {
	_, err := EncodeFrame(domain.Frame{SrcAddr: "nope", DstAddr: "10.0.0.1", Transport: domain.TransportUDP})
	assert.ErrorIs(t, err, domain.ErrMalformedFrame)

	_, err = EncodeFrame(domain.Frame{SrcAddr: "10.0.0.1", DstAddr: "10.0.0.2", Transport: "SCTP"})
	assert.ErrorIs(t, err, domain.ErrMalformedFrame)
}
