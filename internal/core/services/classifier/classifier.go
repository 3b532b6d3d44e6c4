// Package classifier turns raw frames into SIP or RTP observations.
// Classification is heuristic and pure: it never touches tracker state.
package classifier

import (
	"fmt"
	"strings"

	"github.com/pion/rtp"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// Header names scanned in SIP payloads (case-sensitive line prefixes).
const (
	headerCallID    = "Call-ID"
	headerUserAgent = "User-Agent"
)

// RTP port ranges commonly assigned to media.
var rtpPortRanges = [][2]uint16{
	{16384, 32767},
	{49152, 65535},
}

// Classifier decides SIP vs RTP vs ignore for a single frame.
type Classifier struct{}

// New creates a Classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify returns the observation for a frame, (nil, nil) for non-VoIP
// frames, or an error wrapping domain.ErrMalformedFrame.
func (c *Classifier) Classify(frame domain.Frame) (*domain.Observation, error) {
	if frame.SrcAddr == "" || frame.DstAddr == "" {
		return nil, fmt.Errorf("%w: missing network addresses", domain.ErrMalformedFrame)
	}
	if !frame.IsUDP() {
		return nil, nil
	}

	if len(frame.Payload) > 0 {
		payload := strings.ToValidUTF8(string(frame.Payload), "�")
		if method, ok := DetectMethod(payload); ok {
			return &domain.Observation{
				Timestamp: frame.Timestamp,
				Kind:      domain.KindSIP,
				SrcAddr:   frame.SrcAddr,
				DstAddr:   frame.DstAddr,
				SIP: &domain.SipFields{
					Method:    method,
					CallID:    HeaderValue(payload, headerCallID),
					UserAgent: HeaderValue(payload, headerUserAgent),
				},
			}, nil
		}
	}

	if IsLikelyRTP(frame.DstPort) {
		fields := &domain.RtpFields{
			SrcPort:   frame.SrcPort,
			DstPort:   frame.DstPort,
			StreamKey: domain.StreamKey(frame.SrcAddr, frame.SrcPort, frame.DstAddr, frame.DstPort),
		}
		decorateRTPHeader(fields, frame.Payload)
		return &domain.Observation{
			Timestamp: frame.Timestamp,
			Kind:      domain.KindRTP,
			SrcAddr:   frame.SrcAddr,
			DstAddr:   frame.DstAddr,
			RTP:       fields,
		}, nil
	}

	return nil, nil
}

// DetectMethod returns the first SIP method, in priority order, contained in payload.
func DetectMethod(payload string) (domain.SipMethod, bool) {
	for _, m := range domain.SipMethods {
		if strings.Contains(payload, string(m)) {
			return m, true
		}
	}
	return "", false
}

// HeaderValue scans payload lines for "<name>:" and returns the trimmed value
// of the first match, or "" when the header is absent.
func HeaderValue(payload, name string) string {
	prefix := name + ":"
	for _, line := range strings.Split(payload, "\n") {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	return ""
}

// IsLikelyRTP applies the port heuristic: even ports from 1024 up, or any
// port inside the common media ranges.
func IsLikelyRTP(dstPort uint16) bool {
	if dstPort >= 1024 && dstPort%2 == 0 {
		return true
	}
	for _, r := range rtpPortRanges {
		if dstPort >= r[0] && dstPort <= r[1] {
			return true
		}
	}
	return false
}

// decorateRTPHeader records RTP v2 header details when the payload carries one.
// It has no influence on whether the frame is classified as RTP.
func decorateRTPHeader(fields *domain.RtpFields, payload []byte) {
	if len(payload) < 12 {
		return
	}
	var h rtp.Header
	if _, err := h.Unmarshal(payload); err != nil || h.Version != 2 {
		return
	}
	fields.HeaderValid = true
	fields.SSRC = h.SSRC
	fields.PayloadType = h.PayloadType
	fields.Sequence = h.SequenceNumber
}
