package domain

import "time"

// SipSession is a tracked call, keyed by its Call-ID.
// A repeated INVITE for the same Call-ID replaces the entry.
type SipSession struct {
	CallID    string    `json:"call_id"`
	StartTime time.Time `json:"start_time"`
	SrcAddr   string    `json:"src_ip"`
	DstAddr   string    `json:"dst_ip"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// RtpStream is a tracked media flow keyed by its address/port 4-tuple.
type RtpStream struct {
	StreamKey   string    `json:"stream_key"`
	StartTime   time.Time `json:"start_time"`
	LastSeen    time.Time `json:"last_seen"`
	PacketCount int       `json:"packet_count"`
	SrcAddr     string    `json:"src_ip"`
	SrcPort     uint16    `json:"src_port"`
	DstAddr     string    `json:"dst_ip"`
	DstPort     uint16    `json:"dst_port"`
}
