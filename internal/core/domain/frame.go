package domain

import "time"

// Transport identifies the transport-layer protocol of a captured frame.
type Transport string

const (
	TransportUDP Transport = "UDP"
	TransportTCP Transport = "TCP"
)

// Frame is one raw packet as handed over by the acquisition layer.
// Only the fields the classifier needs are decoded; Payload may be empty.
type Frame struct {
	Timestamp time.Time `json:"timestamp"`
	SrcAddr   string    `json:"src_addr"`
	DstAddr   string    `json:"dst_addr"`
	Transport Transport `json:"transport"`
	SrcPort   uint16    `json:"src_port"`
	DstPort   uint16    `json:"dst_port"`
	Payload   []byte    `json:"payload,omitempty"`
}

// IsUDP reports whether the frame was carried over UDP.
func (f Frame) IsUDP() bool {
	return f.Transport == TransportUDP
}
