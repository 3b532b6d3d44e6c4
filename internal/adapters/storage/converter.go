package storage

import (
	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// toModel flattens an observation into its archive row.
func toModel(o domain.Observation) ObservationModel {
	m := ObservationModel{
		Timestamp:  o.Timestamp,
		Kind:       string(o.Kind),
		SrcAddr:    o.SrcAddr,
		DstAddr:    o.DstAddr,
		Suspicious: o.Suspicious,
	}
	if o.SIP != nil {
		m.Method = string(o.SIP.Method)
		m.CallID = o.SIP.CallID
		m.UserAgent = o.SIP.UserAgent
	}
	if o.RTP != nil {
		m.SrcPort = o.RTP.SrcPort
		m.DstPort = o.RTP.DstPort
		m.StreamKey = o.RTP.StreamKey
		m.HeaderValid = o.RTP.HeaderValid
		m.SSRC = o.RTP.SSRC
		m.PayloadType = o.RTP.PayloadType
		m.Sequence = o.RTP.Sequence
	}
	return m
}

// toDomain rebuilds the observation held by an archive row.
func toDomain(m ObservationModel) domain.Observation {
	o := domain.Observation{
		Timestamp:  m.Timestamp,
		Kind:       domain.ObservationKind(m.Kind),
		SrcAddr:    m.SrcAddr,
		DstAddr:    m.DstAddr,
		Suspicious: m.Suspicious,
	}
	switch o.Kind {
	case domain.KindSIP:
		o.SIP = &domain.SipFields{
			Method:    domain.SipMethod(m.Method),
			CallID:    m.CallID,
			UserAgent: m.UserAgent,
		}
	case domain.KindRTP:
		o.RTP = &domain.RtpFields{
			SrcPort:     m.SrcPort,
			DstPort:     m.DstPort,
			StreamKey:   m.StreamKey,
			HeaderValid: m.HeaderValid,
			SSRC:        m.SSRC,
			PayloadType: m.PayloadType,
			Sequence:    m.Sequence,
		}
	}
	return o
}
