package anomaly

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hed1ad/goguardml/pkg/detectors/iforest"
)

// Isolation forest defaults.
const (
	DefaultTrees         = 100
	DefaultSampleSize    = 256
	DefaultContamination = 0.1
	DefaultSeed          = 42
)

var errNotFitted = errors.New("isolation forest not fitted")

// ForestParams configures the isolation forest.
type ForestParams struct {
	Trees         int     `json:"n_estimators"`
	SampleSize    int     `json:"max_samples"`
	Contamination float64 `json:"contamination"`
	Seed          int64   `json:"seed"`
}

func (p ForestParams) withDefaults() ForestParams {
	if p.Trees <= 0 {
		p.Trees = DefaultTrees
	}
	if p.SampleSize <= 0 {
		p.SampleSize = DefaultSampleSize
	}
	if p.Contamination <= 0 || p.Contamination > 0.5 {
		p.Contamination = DefaultContamination
	}
	return p
}

// Forest is the goguardml isolation forest behind StatisticalDetector.
// Scores are negated so that lower means more anomalous.
type Forest struct {
	params   ForestParams
	model    *iforest.IsolationForest
	training [][]float64
}

// NewForest creates an unfitted forest. Zero params fall back to the defaults.
func NewForest(params ForestParams) *Forest {
	return &Forest{params: params.withDefaults()}
}

func (f *Forest) grow(X [][]float64) (*iforest.IsolationForest, error) {
	model := iforest.New(
		iforest.WithTrees(f.params.Trees),
		iforest.WithSampleSize(f.params.SampleSize),
		iforest.WithContamination(f.params.Contamination),
		iforest.WithSeed(f.params.Seed),
	)
	if err := model.Fit(X); err != nil {
		return nil, err
	}
	return model, nil
}

// Fit grows a fresh seeded forest on X. The library fixes the decision
// threshold at the (1-contamination) percentile of the training scores.
func (f *Forest) Fit(X [][]float64) error {
	if len(X) == 0 {
		return errors.New("isolation forest: empty training set")
	}
	model, err := f.grow(X)
	if err != nil {
		return fmt.Errorf("isolation forest: %w", err)
	}
	training := make([][]float64, len(X))
	for i, row := range X {
		training[i] = append([]float64(nil), row...)
	}
	f.model = model
	f.training = training
	return nil
}

// Predict flags rows scoring above the fit-time threshold.
func (f *Forest) Predict(X [][]float64) ([]bool, []float64, error) {
	if f.model == nil {
		return nil, nil, errNotFitted
	}
	raw, err := f.model.Predict(X)
	if err != nil {
		return nil, nil, err
	}
	threshold := f.model.Threshold()
	outliers := make([]bool, len(raw))
	scores := make([]float64, len(raw))
	for i, s := range raw {
		outliers[i] = s > threshold
		scores[i] = -s
	}
	return outliers, scores, nil
}

// Offset returns the negated decision threshold.
func (f *Forest) Offset() float64 {
	if f.model == nil {
		return 0
	}
	return -f.model.Threshold()
}

type forestState struct {
	Params   ForestParams `json:"params"`
	Training [][]float64  `json:"training"`
}

// Save serializes the parameters and the scaled training rows. The library's
// own gob encoding cannot carry its unexported tree nodes, so Load regrows the
// forest from the same seed, which yields identical trees.
func (f *Forest) Save() ([]byte, error) {
	if f.model == nil {
		return nil, errNotFitted
	}
	return json.Marshal(forestState{Params: f.params, Training: f.training})
}

// Load regrows a forest saved by Save.
func (f *Forest) Load(data []byte) error {
	var st forestState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decode isolation forest: %w", err)
	}
	if len(st.Training) == 0 {
		return errors.New("decode isolation forest: no training rows")
	}
	f.params = st.Params.withDefaults()
	return f.Fit(st.Training)
}
