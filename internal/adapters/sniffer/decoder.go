package sniffer

import (
	"bytes"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// now stamps packets that carry no capture timestamp.
var now = time.Now

// DecodeFrame extracts addresses, ports and the transport payload of an
// IPv4/IPv6 UDP or TCP packet. Other packets are reported as not ok.
func DecodeFrame(pkt gopacket.Packet) (domain.Frame, bool) {
	var f domain.Frame

	switch nl := pkt.NetworkLayer().(type) {
	case *layers.IPv4:
		f.SrcAddr, f.DstAddr = nl.SrcIP.String(), nl.DstIP.String()
	case *layers.IPv6:
		f.SrcAddr, f.DstAddr = nl.SrcIP.String(), nl.DstIP.String()
	default:
		return f, false
	}

	// The UDP/TCP payload is taken whole: gopacket's SIP layer would split
	// off the request line and headers.
	switch tl := pkt.TransportLayer().(type) {
	case *layers.UDP:
		f.Transport = domain.TransportUDP
		f.SrcPort, f.DstPort = uint16(tl.SrcPort), uint16(tl.DstPort)
		f.Payload = bytes.Clone(tl.LayerPayload())
	case *layers.TCP:
		f.Transport = domain.TransportTCP
		f.SrcPort, f.DstPort = uint16(tl.SrcPort), uint16(tl.DstPort)
		f.Payload = bytes.Clone(tl.LayerPayload())
	default:
		return f, false
	}
	if len(f.Payload) == 0 {
		f.Payload = nil
	}

	if md := pkt.Metadata(); md != nil && !md.Timestamp.IsZero() {
		f.Timestamp = md.Timestamp
	} else {
		f.Timestamp = now()
	}
	return f, true
}
