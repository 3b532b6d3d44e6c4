package anomaly

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// Scaler standardizes columns to zero mean and unit variance using the
// population standard deviation. Constant columns keep a scale of 1.
type Scaler struct {
	mean  []float64
	scale []float64
}

// FitScaler captures the per-column mean and scale of X.
func FitScaler(X [][]float64) (*Scaler, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("fit scaler: %w", domain.ErrInsufficientData)
	}
	cols := len(X[0])
	s := &Scaler{
		mean:  make([]float64, cols),
		scale: make([]float64, cols),
	}
	column := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i, row := range X {
			if len(row) != cols {
				return nil, fmt.Errorf("fit scaler: row %d has %d columns, want %d", i, len(row), cols)
			}
			column[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		s.mean[j] = mean
		if std == 0 {
			std = 1
		}
		s.scale[j] = std
	}
	return s, nil
}

// ScalerFromState rebuilds a scaler from persisted parameters.
func ScalerFromState(st domain.ScalerState) (*Scaler, error) {
	if len(st.Mean) != len(st.Scale) {
		return nil, fmt.Errorf("scaler state: %d means but %d scales", len(st.Mean), len(st.Scale))
	}
	return &Scaler{mean: slices.Clone(st.Mean), scale: slices.Clone(st.Scale)}, nil
}

// State returns the persisted form of the scaler.
func (s *Scaler) State() domain.ScalerState {
	return domain.ScalerState{Mean: slices.Clone(s.mean), Scale: slices.Clone(s.scale)}
}

// Transform returns a standardized copy of X.
func (s *Scaler) Transform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(s.mean) {
			return nil, fmt.Errorf("%w: row has %d columns, scaler has %d",
				domain.ErrFeatureSchemaMismatch, len(row), len(s.mean))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.mean[j]) / s.scale[j]
		}
		out[i] = scaled
	}
	return out, nil
}
