package domain

import "time"

// Report status values.
const (
	ReportStatusNoData   = "No data available"
	ReportStatusComplete = "Analysis complete"
)

// Model status values carried in a report summary.
const (
	ModelStatusScored     = "scored"
	ModelStatusNotTrained = "model not trained"
	ModelStatusNoFeatures = "not enough data yet"
)

// Report is one analysis snapshot composed by the report builder.
type Report struct {
	ID           string              `json:"id"`
	GeneratedAt  time.Time           `json:"timestamp"`
	TotalRecords int                 `json:"total_records"`
	Anomalies    []AnomalyResult     `json:"anomalies"`
	Patterns     []BehavioralPattern `json:"patterns"`
	HighRisk     []RiskAssessment    `json:"high_risk_ips"`
	Summary      ReportSummary       `json:"summary"`
}

// ReportSummary holds the headline counts of a report.
type ReportSummary struct {
	TotalAnomalies     int    `json:"total_anomalies"`
	BehavioralPatterns int    `json:"behavioral_patterns"`
	HighRiskIPs        int    `json:"high_risk_ips"`
	FeatureRows        int    `json:"feature_rows"`
	ModelStatus        string `json:"model_status"`
	Status             string `json:"status"`
}

// ReportStats holds counts used when rendering a report for humans.
type ReportStats struct {
	Statistics Statistics
	Sessions   int
	Streams    int
	Alerts     int
}

// Recommendation is an operator action derived from a report.
type Recommendation struct {
	Priority    string   `json:"priority"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
}
