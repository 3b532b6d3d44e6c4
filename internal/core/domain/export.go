package domain

import (
	"encoding/json"
	"time"
)

// DataExport is the full, round-trippable snapshot of the monitor state.
type DataExport struct {
	ExportedAt   time.Time             `json:"exported_at"`
	Observations []Observation         `json:"metadata"`
	Sessions     map[string]SipSession `json:"sessions"`
	Streams      map[string]RtpStream  `json:"rtp_streams"`
	Alerts       []SuspiciousEvent     `json:"suspicious_activity"`
	Statistics   Statistics            `json:"statistics"`
	Reputation   []ReputationRecord    `json:"reputation,omitempty"`
}

// ModelBundle is the persisted unit of a fitted ensemble: the standardization
// transform, the statistical model, the column set it was fitted on and the
// reputation ledger. The density model is never part of it.
type ModelBundle struct {
	Columns    []string           `json:"feature_columns"`
	Scaler     ScalerState        `json:"scaler"`
	Model      json.RawMessage    `json:"model"`
	Reputation []ReputationRecord `json:"ip_reputation"`
	TrainedAt  time.Time          `json:"trained_at"`
	Rows       int                `json:"rows"`
}

// ScalerState captures per-column standardization parameters.
type ScalerState struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}
