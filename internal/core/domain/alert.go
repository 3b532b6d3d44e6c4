package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertCategory names the protocol family an ingestion-time alert belongs to.
type AlertCategory string

const (
	CategorySuspiciousSIP AlertCategory = "Suspicious SIP"
	CategorySuspiciousRTP AlertCategory = "Suspicious RTP"
)

// SuspiciousEvent is an entry of the alert log written by the rule engine.
// The alert log is independent of the observation log.
type SuspiciousEvent struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Category  AlertCategory `json:"type"`
	SrcAddr   string        `json:"src_ip"`
	DstAddr   string        `json:"dst_ip"`
	Method    SipMethod     `json:"method,omitempty"`
	Reason    string        `json:"reason"`
}

// NewSuspiciousEvent builds an alert for a flagged observation.
func NewSuspiciousEvent(obs Observation, reason string) SuspiciousEvent {
	category := CategorySuspiciousRTP
	if obs.Kind == KindSIP {
		category = CategorySuspiciousSIP
	}
	return SuspiciousEvent{
		ID:        uuid.NewString(),
		Timestamp: obs.Timestamp,
		Category:  category,
		SrcAddr:   obs.SrcAddr,
		DstAddr:   obs.DstAddr,
		Method:    obs.Method(),
		Reason:    reason,
	}
}
