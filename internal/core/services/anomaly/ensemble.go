// Package anomaly scores feature rows with two unsupervised detectors: an
// isolation forest fitted once and a density clusterer refitted per batch.
package anomaly

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
	"github.com/lcalzada-xor/voipmon/internal/telemetry"
)

// MinTrainingRows is the smallest batch Fit accepts.
const MinTrainingRows = 5

// StatisticalDetector is fitted once and then flags outliers in later batches.
// Lower scores mean more anomalous.
type StatisticalDetector interface {
	Fit(X [][]float64) error
	Predict(X [][]float64) (outliers []bool, scores []float64, err error)
	Save() ([]byte, error)
	Load(data []byte) error
}

// DensityDetector clusters each batch independently. Noise points get
// domain.NoiseCluster.
type DensityDetector interface {
	FitPredict(X [][]float64) []int
}

// Config holds the ensemble tunables.
type Config struct {
	Trees         int
	SampleSize    int
	Contamination float64
	Seed          int64
	Eps           float64
	MinSamples    int
}

// DefaultConfig returns the stock detector parameters.
func DefaultConfig() Config {
	return Config{
		Trees:         DefaultTrees,
		SampleSize:    DefaultSampleSize,
		Contamination: DefaultContamination,
		Seed:          DefaultSeed,
		Eps:           DefaultEps,
		MinSamples:    DefaultMinSamples,
	}
}

// Ensemble combines the two detectors behind a scaler fitted with the
// statistical model.
type Ensemble struct {
	mu sync.RWMutex

	statistical StatisticalDetector
	density     DensityDetector

	scaler    *Scaler
	columns   []string
	trained   bool
	trainedAt time.Time
	rows      int

	now func() time.Time
}

// New builds the default isolation forest and DBSCAN ensemble.
func New(cfg Config) *Ensemble {
	forest := NewForest(ForestParams{
		Trees:         cfg.Trees,
		SampleSize:    cfg.SampleSize,
		Contamination: cfg.Contamination,
		Seed:          cfg.Seed,
	})
	return NewWithDetectors(forest, NewDBSCAN(cfg.Eps, cfg.MinSamples))
}

// NewWithDetectors builds an ensemble around custom detectors.
func NewWithDetectors(statistical StatisticalDetector, density DensityDetector) *Ensemble {
	return &Ensemble{
		statistical: statistical,
		density:     density,
		now:         time.Now,
	}
}

// Fit trains the scaler and the statistical detector. With fewer than
// MinTrainingRows rows it returns domain.ErrInsufficientData and leaves the
// ensemble as it was.
func (e *Ensemble) Fit(ctx context.Context, rows []domain.FeatureVector) error {
	_, span := telemetry.Tracer().Start(ctx, "anomaly.Fit")
	defer span.End()
	span.SetAttributes(attribute.Int("rows", len(rows)))

	if len(rows) < MinTrainingRows {
		return fmt.Errorf("fit on %d rows: %w", len(rows), domain.ErrInsufficientData)
	}

	X := domain.Matrix(rows)
	scaler, err := FitScaler(X)
	if err != nil {
		return err
	}
	scaled, err := scaler.Transform(X)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.statistical.Fit(scaled); err != nil {
		span.RecordError(err)
		return fmt.Errorf("fit statistical detector: %w", err)
	}
	e.scaler = scaler
	e.columns = slices.Clone(domain.FeatureColumns)
	e.trained = true
	e.trainedAt = e.now().Round(0)
	e.rows = len(rows)

	telemetry.ModelTrained.Set(1)
	return nil
}

// Trained reports whether Fit or Restore has succeeded.
func (e *Ensemble) Trained() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.trained
}

// Score rates every row. The density detector is refitted on this batch.
func (e *Ensemble) Score(rows []domain.FeatureVector) ([]domain.AnomalyResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.trained {
		return nil, domain.ErrModelNotTrained
	}
	if len(rows) == 0 {
		return nil, nil
	}

	scaled, err := e.scaler.Transform(domain.Matrix(rows))
	if err != nil {
		return nil, err
	}
	outliers, scores, err := e.statistical.Predict(scaled)
	if err != nil {
		return nil, fmt.Errorf("statistical detector: %w", err)
	}
	labels := e.density.FitPredict(scaled)
	if len(outliers) != len(rows) || len(scores) != len(rows) || len(labels) != len(rows) {
		return nil, fmt.Errorf("detectors returned %d/%d/%d verdicts for %d rows",
			len(outliers), len(scores), len(labels), len(rows))
	}

	results := make([]domain.AnomalyResult, len(rows))
	for i, row := range rows {
		densityOutlier := labels[i] == domain.NoiseCluster
		results[i] = domain.AnomalyResult{
			FeatureVector:        row,
			IsStatisticalOutlier: outliers[i],
			OutlierScore:         scores[i],
			IsDensityOutlier:     densityOutlier,
			ClusterID:            labels[i],
			CombinedScore:        domain.CombineScores(outliers[i], densityOutlier),
		}
	}
	return results, nil
}

// Export returns the persisted form of the fitted ensemble. The reputation
// part of the bundle is left to the caller.
func (e *Ensemble) Export() (domain.ModelBundle, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.trained {
		return domain.ModelBundle{}, domain.ErrModelNotTrained
	}
	model, err := e.statistical.Save()
	if err != nil {
		return domain.ModelBundle{}, fmt.Errorf("%w: save model: %v", domain.ErrPersistence, err)
	}
	return domain.ModelBundle{
		Columns:   slices.Clone(e.columns),
		Scaler:    e.scaler.State(),
		Model:     json.RawMessage(model),
		TrainedAt: e.trainedAt,
		Rows:      e.rows,
	}, nil
}

// Restore loads a bundle produced by Export. Bundles fitted on another
// column set are rejected with domain.ErrFeatureSchemaMismatch.
func (e *Ensemble) Restore(bundle domain.ModelBundle) error {
	if !slices.Equal(bundle.Columns, domain.FeatureColumns) {
		return fmt.Errorf("%w: bundle has %v", domain.ErrFeatureSchemaMismatch, bundle.Columns)
	}
	scaler, err := ScalerFromState(bundle.Scaler)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if len(bundle.Scaler.Mean) != len(domain.FeatureColumns) {
		return fmt.Errorf("%w: scaler has %d columns", domain.ErrFeatureSchemaMismatch, len(bundle.Scaler.Mean))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.statistical.Load(bundle.Model); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	e.scaler = scaler
	e.columns = slices.Clone(bundle.Columns)
	e.trained = true
	e.trainedAt = bundle.TrainedAt
	e.rows = bundle.Rows

	telemetry.ModelTrained.Set(1)
	return nil
}

// SetClock overrides the clock stamping fits.
func (e *Ensemble) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}
