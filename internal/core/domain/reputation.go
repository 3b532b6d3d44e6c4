package domain

import (
	"fmt"
	"time"
)

// Reputation score bounds.
const (
	MaxReputation     = 100
	MinReputation     = 0
	UnknownReputation = 50
)

// RiskTier is the discretized reputation score.
type RiskTier string

const (
	RiskUnknown  RiskTier = "UNKNOWN"
	RiskLow      RiskTier = "LOW"
	RiskMedium   RiskTier = "MEDIUM"
	RiskHigh     RiskTier = "HIGH"
	RiskCritical RiskTier = "CRITICAL"
)

// TierForScore maps a tracked score to its tier.
func TierForScore(score int) RiskTier {
	switch {
	case score >= 80:
		return RiskLow
	case score >= 50:
		return RiskMedium
	case score >= 20:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// IsElevated reports whether the tier is HIGH or CRITICAL.
func (t RiskTier) IsElevated() bool {
	return t == RiskHigh || t == RiskCritical
}

// Incident is one penalty applied to a reputation record.
type Incident struct {
	PatternKind PatternKind `json:"type"`
	Severity    Severity    `json:"severity"`
	Timestamp   time.Time   `json:"timestamp"`
}

// ReputationRecord is the long-lived trust state of a source address.
type ReputationRecord struct {
	SrcAddr      string     `json:"src_ip"`
	Score        int        `json:"reputation_score"`
	Incidents    []Incident `json:"incidents"`
	FirstSeen    time.Time  `json:"first_seen"`
	LastActivity time.Time  `json:"last_activity"`
}

// Clone returns a deep copy of the record.
func (r ReputationRecord) Clone() ReputationRecord {
	out := r
	out.Incidents = make([]Incident, len(r.Incidents))
	copy(out.Incidents, r.Incidents)
	return out
}

// RiskAssessment is the operator view of a source's reputation.
type RiskAssessment struct {
	SrcAddr       string    `json:"ip"`
	Tier          RiskTier  `json:"risk_level"`
	Score         int       `json:"score"`
	IncidentCount int       `json:"incident_count"`
	FirstSeen     time.Time `json:"first_seen,omitempty"`
	LastActivity  time.Time `json:"last_activity,omitempty"`
	Details       string    `json:"details"`
}

// AssessRecord derives the assessment of a tracked record.
func AssessRecord(r ReputationRecord) RiskAssessment {
	return RiskAssessment{
		SrcAddr:       r.SrcAddr,
		Tier:          TierForScore(r.Score),
		Score:         r.Score,
		IncidentCount: len(r.Incidents),
		FirstSeen:     r.FirstSeen,
		LastActivity:  r.LastActivity,
		Details:       fmt.Sprintf("Based on %d incidents", len(r.Incidents)),
	}
}

// UnknownAssessment is returned for addresses the ledger has never penalized.
func UnknownAssessment(addr string) RiskAssessment {
	return RiskAssessment{
		SrcAddr: addr,
		Tier:    RiskUnknown,
		Score:   UnknownReputation,
		Details: "No historical data",
	}
}
