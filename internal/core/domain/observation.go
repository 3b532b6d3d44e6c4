package domain

import (
	"net"
	"strconv"
	"time"
)

// ObservationKind tags the protocol variant carried by an Observation.
type ObservationKind string

const (
	KindSIP ObservationKind = "SIP"
	KindRTP ObservationKind = "RTP"
)

// SipMethod is one of the request methods the classifier recognises.
type SipMethod string

const (
	MethodInvite   SipMethod = "INVITE"
	MethodBye      SipMethod = "BYE"
	MethodRegister SipMethod = "REGISTER"
	MethodOptions  SipMethod = "OPTIONS"
	MethodAck      SipMethod = "ACK"
)

// SipMethods lists the recognised methods in detection priority order.
var SipMethods = []SipMethod{MethodInvite, MethodBye, MethodRegister, MethodOptions, MethodAck}

// SipFields holds the signaling details of a SIP observation.
type SipFields struct {
	Method    SipMethod `json:"method"`
	CallID    string    `json:"call_id,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// RtpFields holds the media flow details of an RTP observation.
// Header fields are only meaningful when HeaderValid is set.
type RtpFields struct {
	SrcPort   uint16 `json:"src_port"`
	DstPort   uint16 `json:"dst_port"`
	StreamKey string `json:"stream_key"`

	HeaderValid bool   `json:"header_valid,omitempty"`
	SSRC        uint32 `json:"ssrc,omitempty"`
	PayloadType uint8  `json:"payload_type,omitempty"`
	Sequence    uint16 `json:"sequence,omitempty"`
}

// Observation is one classified packet. Exactly one of SIP or RTP is set,
// matching Kind. Observations are never modified after classification,
// except for the Suspicious flag set by the rule engine before the
// observation enters the log.
type Observation struct {
	Timestamp  time.Time       `json:"timestamp"`
	Kind       ObservationKind `json:"type"`
	SrcAddr    string          `json:"src_ip"`
	DstAddr    string          `json:"dst_ip"`
	SIP        *SipFields      `json:"sip,omitempty"`
	RTP        *RtpFields      `json:"rtp,omitempty"`
	Suspicious bool            `json:"suspicious"`
}

// Method returns the SIP method or "" for RTP observations.
func (o Observation) Method() SipMethod {
	if o.SIP == nil {
		return ""
	}
	return o.SIP.Method
}

// IsInvite reports whether the observation is a SIP INVITE.
func (o Observation) IsInvite() bool {
	return o.Kind == KindSIP && o.Method() == MethodInvite
}

// StreamKey builds the RTP stream identifier for a 4-tuple.
func StreamKey(srcAddr string, srcPort uint16, dstAddr string, dstPort uint16) string {
	return net.JoinHostPort(srcAddr, strconv.Itoa(int(srcPort))) + "-" +
		net.JoinHostPort(dstAddr, strconv.Itoa(int(dstPort)))
}
