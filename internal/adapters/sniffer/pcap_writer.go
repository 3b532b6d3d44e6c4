package sniffer

import (
	"fmt"
	"io"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

var (
	srcMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	dstMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

// PcapWriter writes frames as an Ethernet pcap capture.
type PcapWriter struct {
	w *pcapgo.Writer
}

// NewPcapWriter writes the file header and returns the writer.
func NewPcapWriter(w io.Writer) (*PcapWriter, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(DefaultSnapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &PcapWriter{w: pw}, nil
}

// WriteFrame appends one frame.
func (p *PcapWriter) WriteFrame(f domain.Frame) error {
	data, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     f.Timestamp,
		CaptureLength: len(data),
		Length:        len(data),
	}
	return p.w.WritePacket(ci, data)
}

// EncodeFrame serializes a frame into an Ethernet packet.
func EncodeFrame(f domain.Frame) ([]byte, error) {
	src, dst := net.ParseIP(f.SrcAddr), net.ParseIP(f.DstAddr)
	if src == nil || dst == nil {
		return nil, fmt.Errorf("%w: bad address %q -> %q", domain.ErrMalformedFrame, f.SrcAddr, f.DstAddr)
	}

	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC}
	var (
		network gopacket.SerializableLayer
		netLyr  gopacket.NetworkLayer
		proto   layers.IPProtocol = layers.IPProtocolUDP
	)
	if f.Transport == domain.TransportTCP {
		proto = layers.IPProtocolTCP
	}
	if src.To4() != nil && dst.To4() != nil {
		eth.EthernetType = layers.EthernetTypeIPv4
		ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: proto, SrcIP: src.To4(), DstIP: dst.To4()}
		network, netLyr = ip, ip
	} else {
		eth.EthernetType = layers.EthernetTypeIPv6
		ip := &layers.IPv6{Version: 6, HopLimit: 64, NextHeader: proto, SrcIP: src.To16(), DstIP: dst.To16()}
		network, netLyr = ip, ip
	}

	var transport gopacket.SerializableLayer
	switch f.Transport {
	case domain.TransportUDP:
		udp := &layers.UDP{SrcPort: layers.UDPPort(f.SrcPort), DstPort: layers.UDPPort(f.DstPort)}
		if err := udp.SetNetworkLayerForChecksum(netLyr); err != nil {
			return nil, err
		}
		transport = udp
	case domain.TransportTCP:
		tcp := &layers.TCP{SrcPort: layers.TCPPort(f.SrcPort), DstPort: layers.TCPPort(f.DstPort), PSH: true, ACK: true, Window: 65535}
		if err := tcp.SetNetworkLayerForChecksum(netLyr); err != nil {
			return nil, err
		}
		transport = tcp
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", domain.ErrMalformedFrame, f.Transport)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, network, transport, gopacket.Payload(f.Payload)); err != nil {
		return nil, fmt.Errorf("serialize frame: %w", err)
	}
	return buf.Bytes(), nil
}
