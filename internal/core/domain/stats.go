package domain

import (
	"strings"
	"time"
)

// Statistics maps ingestion counter names to totals.
// SIP counters are keyed "sip_<method>" (lower case), RTP uses StatRTPPackets.
type Statistics map[string]int

const StatRTPPackets = "rtp_packets"

// SIPCounterKey returns the counter name for a SIP method.
func SIPCounterKey(m SipMethod) string {
	return "sip_" + strings.ToLower(string(m))
}

// SIPTotal sums every sip_* counter.
func (s Statistics) SIPTotal() int {
	total := 0
	for k, v := range s {
		if strings.HasPrefix(k, "sip_") {
			total += v
		}
	}
	return total
}

// SystemStats is an aggregated snapshot of the monitor state served to dashboards.
type SystemStats struct {
	Counters     Statistics `json:"counters"`
	SIPPackets   int        `json:"sip_packets"`
	RTPPackets   int        `json:"rtp_packets"`
	Observations int        `json:"observations"`
	Sessions     int        `json:"sessions"`
	Streams      int        `json:"streams"`
	Alerts       int        `json:"alerts"`
	ModelTrained bool       `json:"model_trained"`

	LastUpdated time.Time `json:"updated_at"`
}

// IsStale returns true if the stats haven't been updated within the given TTL.
func (s *SystemStats) IsStale(ttl time.Duration) bool {
	return time.Since(s.LastUpdated) > ttl
}
