// Package reporting composes the analysis stages into a single report and
// derives ranked risk views and recommendations from it.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
	"github.com/lcalzada-xor/voipmon/internal/core/services/anomaly"
	"github.com/lcalzada-xor/voipmon/internal/core/services/features"
	"github.com/lcalzada-xor/voipmon/internal/telemetry"
)

// LogSource hands out a copy of the observation log.
type LogSource interface {
	Observations() []domain.Observation
}

// Scorer is the anomaly ensemble as seen by the builder.
type Scorer interface {
	Trained() bool
	Score(rows []domain.FeatureVector) ([]domain.AnomalyResult, error)
}

// PatternDetector runs the behavioral heuristics.
type PatternDetector interface {
	Detect(log []domain.Observation) []domain.BehavioralPattern
}

// ReputationStore is the ledger as seen by the builder.
type ReputationStore interface {
	ApplyPenalty(addr string, kind domain.PatternKind, severity domain.Severity) domain.ReputationRecord
	Assessments() []domain.RiskAssessment
}

// ReportBuilder runs features, scoring, patterns and penalties over one
// snapshot of the log.
type ReportBuilder struct {
	log      LogSource
	scorer   Scorer
	patterns PatternDetector
	ledger   ReputationStore
	riskCalc *RiskCalculator

	// mu serializes builds so ledger penalties from two builds never interleave.
	mu     sync.Mutex
	latest *domain.Report
	now    func() time.Time
}

// NewReportBuilder wires the builder to its stages.
func NewReportBuilder(log LogSource, scorer Scorer, patterns PatternDetector, ledger ReputationStore) *ReportBuilder {
	return &ReportBuilder{
		log:      log,
		scorer:   scorer,
		patterns: patterns,
		ledger:   ledger,
		riskCalc: NewRiskCalculator(),
		now:      time.Now,
	}
}

// SetClock overrides the clock stamping reports.
func (b *ReportBuilder) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Build produces a report. Every detected pattern is applied to the ledger,
// so building twice over the same traffic penalizes it twice.
func (b *ReportBuilder) Build(ctx context.Context) (domain.Report, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "reporting.Build")
	defer span.End()

	b.mu.Lock()
	defer b.mu.Unlock()

	snapshot := b.log.Observations()
	report := domain.Report{
		ID:           uuid.NewString(),
		GeneratedAt:  b.now().Round(0),
		TotalRecords: len(snapshot),
		Anomalies:    []domain.AnomalyResult{},
		Patterns:     []domain.BehavioralPattern{},
		HighRisk:     []domain.RiskAssessment{},
	}
	span.SetAttributes(attribute.Int("records", len(snapshot)))

	if len(snapshot) == 0 {
		report.Summary.Status = domain.ReportStatusNoData
		report.Summary.ModelStatus = domain.ModelStatusNoFeatures
		b.store(report)
		return report, nil
	}

	rows := features.Extract(snapshot)
	report.Summary.FeatureRows = len(rows)

	switch {
	case len(rows) == 0:
		report.Summary.ModelStatus = domain.ModelStatusNoFeatures
	case !b.scorer.Trained():
		report.Summary.ModelStatus = untrainedStatus(len(rows))
	default:
		results, err := b.scorer.Score(rows)
		if err != nil {
			if errors.Is(err, domain.ErrModelNotTrained) {
				report.Summary.ModelStatus = untrainedStatus(len(rows))
				break
			}
			span.RecordError(err)
			return domain.Report{}, fmt.Errorf("score features: %w", err)
		}
		for _, r := range results {
			if r.IsReportable() {
				report.Anomalies = append(report.Anomalies, r)
			}
		}
		report.Summary.ModelStatus = domain.ModelStatusScored
	}

	if err := ctx.Err(); err != nil {
		return domain.Report{}, err
	}

	patterns := b.patterns.Detect(snapshot)
	report.Patterns = append(report.Patterns, patterns...)
	for _, p := range patterns {
		b.ledger.ApplyPenalty(p.SrcAddr, p.Kind, p.Severity)
	}

	report.HighRisk = b.riskCalc.HighRisk(b.ledger.Assessments())

	report.Summary.TotalAnomalies = len(report.Anomalies)
	report.Summary.BehavioralPatterns = len(report.Patterns)
	report.Summary.HighRiskIPs = len(report.HighRisk)
	report.Summary.Status = domain.ReportStatusComplete

	b.store(report)
	telemetry.ReportsBuilt.Inc()
	slog.Info("report built",
		"id", report.ID,
		"records", report.TotalRecords,
		"anomalies", report.Summary.TotalAnomalies,
		"patterns", report.Summary.BehavioralPatterns,
		"high_risk", report.Summary.HighRiskIPs,
		"model", report.Summary.ModelStatus,
	)
	return report, nil
}

// untrainedStatus tells a batch too small to fit apart from one that could
// be fitted but was not.
func untrainedStatus(rows int) string {
	if rows < anomaly.MinTrainingRows {
		return domain.ModelStatusNoFeatures
	}
	return domain.ModelStatusNotTrained
}

// Latest returns the last report built, if any.
func (b *ReportBuilder) Latest() (domain.Report, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latest == nil {
		return domain.Report{}, false
	}
	return *b.latest, true
}

func (b *ReportBuilder) store(r domain.Report) {
	b.latest = &r
}
