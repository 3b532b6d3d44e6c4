package ports

import (
	"context"
	"io"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// FrameSource defines the interface for packet acquisition adapters.
type FrameSource interface {
	// Start opens the capture and pushes frames until ctx is cancelled or the
	// source is exhausted. Open failures wrap domain.ErrAcquisitionStart.
	Start(ctx context.Context) error
	// Frames is the bounded queue drained by the ingestion pipeline.
	Frames() <-chan domain.Frame
	// Close releases capture handles.
	Close()
}

// MonitorService is the in-process contract of the analysis core, consumed by
// the web adapter, the CLI modes and tests.
type MonitorService interface {
	// Ingestion
	Ingest(frame domain.Frame)
	RunIngestion(ctx context.Context, frames <-chan domain.Frame)

	// Tracker views
	GetStatistics() domain.Statistics
	GetSystemStats() domain.SystemStats
	GetSessions() map[string]domain.SipSession
	GetStreams() map[string]domain.RtpStream
	GetAlerts() []domain.SuspiciousEvent
	GetObservations() []domain.Observation

	// Batch analysis
	ExtractFeatures() []domain.FeatureVector
	Fit(ctx context.Context, features []domain.FeatureVector) error
	Score(features []domain.FeatureVector) ([]domain.AnomalyResult, error)
	IsTrained() bool
	DetectPatterns(log []domain.Observation) []domain.BehavioralPattern

	// Reputation
	ApplyPenalty(addr string, kind domain.PatternKind, severity domain.Severity) domain.ReputationRecord
	RiskTier(addr string) domain.RiskAssessment

	// Reporting
	BuildReport(ctx context.Context) (domain.Report, error)
	LatestReport() (domain.Report, bool)

	// Persistence
	SaveModel(ctx context.Context) error
	LoadModel(ctx context.Context) error
	Export(w io.Writer) error
	Import(r io.Reader) error
}
