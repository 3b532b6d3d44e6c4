// Package monitor is the facade over the analysis core: it owns the
// ingestion pipeline and exposes every batch operation to the adapters.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
	"github.com/lcalzada-xor/voipmon/internal/core/ports"
	"github.com/lcalzada-xor/voipmon/internal/core/services/anomaly"
	"github.com/lcalzada-xor/voipmon/internal/core/services/classifier"
	"github.com/lcalzada-xor/voipmon/internal/core/services/export"
	"github.com/lcalzada-xor/voipmon/internal/core/services/features"
	"github.com/lcalzada-xor/voipmon/internal/core/services/patterns"
	"github.com/lcalzada-xor/voipmon/internal/core/services/reporting"
	"github.com/lcalzada-xor/voipmon/internal/core/services/reputation"
	"github.com/lcalzada-xor/voipmon/internal/core/services/rules"
	"github.com/lcalzada-xor/voipmon/internal/core/services/tracker"
	"github.com/lcalzada-xor/voipmon/internal/telemetry"
)

// DefaultBundleName is the key model bundles are stored under.
const DefaultBundleName = "default"

// Options configures the core services.
type Options struct {
	Blacklist      []string
	FloodWindow    int
	FloodThreshold int
	Retention      tracker.Options
	Anomaly        anomaly.Config
	Patterns       patterns.Config
	BundleName     string
	AlertBuffer    int
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	return Options{
		Blacklist:      rules.DefaultBlacklist,
		FloodWindow:    rules.DefaultFloodWindow,
		FloodThreshold: rules.DefaultFloodThreshold,
		Anomaly:        anomaly.DefaultConfig(),
		Patterns:       patterns.DefaultConfig(),
		BundleName:     DefaultBundleName,
		AlertBuffer:    100,
	}
}

// Service implements ports.MonitorService.
type Service struct {
	classifier *classifier.Classifier
	rules      *rules.Engine
	blacklist  *rules.BlacklistRule
	tracker    *tracker.Tracker
	ensemble   *anomaly.Ensemble
	patterns   *patterns.Detector
	ledger     *reputation.Ledger
	reports    *reporting.ReportBuilder

	bundles    ports.BundleStore
	bundleName string

	alertChan chan domain.SuspiciousEvent
	now       func() time.Time
}

var _ ports.MonitorService = (*Service)(nil)

// NewService wires the core. bundles and archive may be nil.
func NewService(opts Options, bundles ports.BundleStore, archive ports.ObservationArchive) *Service {
	if opts.BundleName == "" {
		opts.BundleName = DefaultBundleName
	}
	if opts.AlertBuffer <= 0 {
		opts.AlertBuffer = 100
	}

	blacklist := rules.NewBlacklistRule(opts.Blacklist)
	engine := rules.NewEngine(opts.FloodWindow,
		blacklist,
		rules.NewInviteFloodRule(opts.FloodWindow, opts.FloodThreshold),
	)
	tr := tracker.New(engine, archive, opts.Retention)
	ens := anomaly.New(opts.Anomaly)
	det := patterns.New(opts.Patterns)
	ledger := reputation.NewLedger()

	return &Service{
		classifier: classifier.New(),
		rules:      engine,
		blacklist:  blacklist,
		tracker:    tr,
		ensemble:   ens,
		patterns:   det,
		ledger:     ledger,
		reports:    reporting.NewReportBuilder(tr, ens, det, ledger),
		bundles:    bundles,
		bundleName: opts.BundleName,
		alertChan:  make(chan domain.SuspiciousEvent, opts.AlertBuffer),
		now:        time.Now,
	}
}

// SetClock overrides the clock of every stateful component.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.tracker.SetClock(now)
	s.ensemble.SetClock(now)
	s.patterns.SetClock(now)
	s.ledger.SetClock(now)
	s.reports.SetClock(now)
}

// Start launches background maintenance until ctx is cancelled.
func (s *Service) Start(ctx context.Context, cleanupInterval time.Duration) {
	s.tracker.StartCleanupLoop(ctx, cleanupInterval)
}

// AlertStream delivers rule engine alerts as they are raised. Alerts are
// dropped when nobody drains the stream; the alert log keeps them all.
func (s *Service) AlertStream() <-chan domain.SuspiciousEvent {
	return s.alertChan
}

// Blacklist returns the blacklist rule for runtime updates.
func (s *Service) Blacklist() *rules.BlacklistRule {
	return s.blacklist
}

// Ingest classifies one frame and records it. Frames that are not VoIP or
// cannot be read are dropped.
func (s *Service) Ingest(frame domain.Frame) {
	obs, err := s.classifier.Classify(frame)
	if err != nil {
		slog.Debug("dropping frame", "error", err)
		telemetry.FramesDropped.WithLabelValues("malformed").Inc()
		return
	}
	if obs == nil {
		return
	}

	event := s.tracker.Record(*obs)
	if event == nil {
		return
	}
	slog.Debug("suspicious traffic", "src", event.SrcAddr, "dst", event.DstAddr, "reason", event.Reason)
	select {
	case s.alertChan <- *event:
	default:
	}
}

// RunIngestion drains frames in arrival order until ctx is cancelled or the
// channel is closed. Frames still queued at cancellation are discarded.
func (s *Service) RunIngestion(ctx context.Context, frames <-chan domain.Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			s.Ingest(f)
		}
	}
}

func (s *Service) GetStatistics() domain.Statistics {
	return s.tracker.Statistics()
}

// GetSystemStats aggregates counters and table sizes for dashboards.
func (s *Service) GetSystemStats() domain.SystemStats {
	snap := s.tracker.Snapshot()
	return domain.SystemStats{
		Counters:     snap.Statistics,
		SIPPackets:   snap.Statistics.SIPTotal(),
		RTPPackets:   snap.Statistics[domain.StatRTPPackets],
		Observations: len(snap.Observations),
		Sessions:     len(snap.Sessions),
		Streams:      len(snap.Streams),
		Alerts:       len(snap.Alerts),
		ModelTrained: s.ensemble.Trained(),
		LastUpdated:  s.now().Round(0),
	}
}

func (s *Service) GetSessions() map[string]domain.SipSession {
	return s.tracker.Sessions()
}

func (s *Service) GetStreams() map[string]domain.RtpStream {
	return s.tracker.Streams()
}

func (s *Service) GetAlerts() []domain.SuspiciousEvent {
	return s.tracker.Alerts()
}

func (s *Service) GetObservations() []domain.Observation {
	return s.tracker.Observations()
}

// ExtractFeatures builds feature rows from a snapshot of the log.
func (s *Service) ExtractFeatures() []domain.FeatureVector {
	return features.Extract(s.tracker.Observations())
}

func (s *Service) Fit(ctx context.Context, rows []domain.FeatureVector) error {
	return s.ensemble.Fit(ctx, rows)
}

// FitFromLog fits the ensemble on the current log.
func (s *Service) FitFromLog(ctx context.Context) error {
	return s.Fit(ctx, s.ExtractFeatures())
}

func (s *Service) Score(rows []domain.FeatureVector) ([]domain.AnomalyResult, error) {
	return s.ensemble.Score(rows)
}

func (s *Service) IsTrained() bool {
	return s.ensemble.Trained()
}

func (s *Service) DetectPatterns(log []domain.Observation) []domain.BehavioralPattern {
	return s.patterns.Detect(log)
}

func (s *Service) ApplyPenalty(addr string, kind domain.PatternKind, severity domain.Severity) domain.ReputationRecord {
	return s.ledger.ApplyPenalty(addr, kind, severity)
}

func (s *Service) RiskTier(addr string) domain.RiskAssessment {
	return s.ledger.RiskTier(addr)
}

// Assessments returns the risk view of every tracked address.
func (s *Service) Assessments() []domain.RiskAssessment {
	return s.ledger.Assessments()
}

func (s *Service) BuildReport(ctx context.Context) (domain.Report, error) {
	return s.reports.Build(ctx)
}

func (s *Service) LatestReport() (domain.Report, bool) {
	return s.reports.Latest()
}

// ReportStats returns the table sizes rendered next to a report.
func (s *Service) ReportStats() domain.ReportStats {
	snap := s.tracker.Snapshot()
	return domain.ReportStats{
		Statistics: snap.Statistics,
		Sessions:   len(snap.Sessions),
		Streams:    len(snap.Streams),
		Alerts:     len(snap.Alerts),
	}
}

// Recommendations derives operator actions from a report.
func (s *Service) Recommendations(report domain.Report) []domain.Recommendation {
	return reporting.NewRecommendationEngine().Generate(report)
}

// SaveModel persists the fitted ensemble together with the ledger.
func (s *Service) SaveModel(ctx context.Context) error {
	if s.bundles == nil {
		return fmt.Errorf("%w: no bundle store configured", domain.ErrPersistence)
	}
	bundle, err := s.ensemble.Export()
	if err != nil {
		return err
	}
	bundle.Reputation = s.ledger.Records()
	if err := s.bundles.SaveBundle(ctx, s.bundleName, bundle); err != nil {
		return fmt.Errorf("%w: save bundle %q: %v", domain.ErrPersistence, s.bundleName, err)
	}
	slog.Info("model saved", "bundle", s.bundleName, "rows", bundle.Rows, "reputation", len(bundle.Reputation))
	return nil
}

// LoadModel restores the ensemble and the ledger from the bundle store.
func (s *Service) LoadModel(ctx context.Context) error {
	if s.bundles == nil {
		return fmt.Errorf("%w: no bundle store configured", domain.ErrPersistence)
	}
	bundle, err := s.bundles.LoadBundle(ctx, s.bundleName)
	if err != nil {
		if errors.Is(err, domain.ErrBundleNotFound) {
			return err
		}
		return fmt.Errorf("%w: load bundle %q: %v", domain.ErrPersistence, s.bundleName, err)
	}
	if err := s.ensemble.Restore(bundle); err != nil {
		return err
	}
	s.ledger.Restore(bundle.Reputation)
	slog.Info("model loaded", "bundle", s.bundleName, "trained_at", bundle.TrainedAt)
	return nil
}

// Snapshot returns the full state as a DataExport.
func (s *Service) Snapshot() domain.DataExport {
	data := s.tracker.Snapshot()
	data.ExportedAt = s.now().Round(0)
	data.Reputation = s.ledger.Records()
	return data
}

// Export writes the full state as JSON.
func (s *Service) Export(w io.Writer) error {
	return export.ExportJSON(w, s.Snapshot())
}

// Import replaces the state with a JSON export. The fitted ensemble is kept.
func (s *Service) Import(r io.Reader) error {
	data, err := export.ImportJSON(r)
	if err != nil {
		return err
	}
	s.Restore(data)
	return nil
}

// Restore replaces tracker and ledger state with data.
func (s *Service) Restore(data domain.DataExport) {
	s.tracker.Restore(data)
	s.ledger.Restore(data.Reputation)
}

// ExportObservationsCSV writes the observation log as CSV.
func (s *Service) ExportObservationsCSV(w io.Writer) error {
	return export.ExportObservationsCSV(w, s.tracker.Observations())
}

// ExportAlertsCSV writes the alert log as CSV.
func (s *Service) ExportAlertsCSV(w io.Writer) error {
	return export.ExportAlertsCSV(w, s.tracker.Alerts())
}

// ExportFeaturesCSV writes the current feature rows as CSV.
func (s *Service) ExportFeaturesCSV(w io.Writer) error {
	return export.ExportFeaturesCSV(w, s.ExtractFeatures())
}
