package domain

import "time"

// PatternKind identifies a behavioral heuristic.
type PatternKind string

const (
	PatternRapidCalling      PatternKind = "RapidCalling"
	PatternOffHoursSkew      PatternKind = "OffHoursSkew"
	PatternDestinationFanOut PatternKind = "DestinationFanOut"
)

// Severity grades a behavioral pattern and drives the reputation penalty.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// BehavioralPattern is one emission of a pattern heuristic for a source.
type BehavioralPattern struct {
	ID          string      `json:"id"`
	Kind        PatternKind `json:"pattern_type"`
	SrcAddr     string      `json:"src_ip"`
	Severity    Severity    `json:"severity"`
	Description string      `json:"description"`
	DetectedAt  time.Time   `json:"timestamp"`
}
