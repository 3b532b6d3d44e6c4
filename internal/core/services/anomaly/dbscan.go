package anomaly

import (
	"gonum.org/v1/gonum/floats"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// DBSCAN defaults.
const (
	DefaultEps        = 0.5
	DefaultMinSamples = 5
)

// DBSCAN is density-based clustering with Euclidean distance. Points that are
// neither core points nor reachable from one are labeled domain.NoiseCluster.
type DBSCAN struct {
	Eps        float64
	MinSamples int
}

// NewDBSCAN creates a clusterer, falling back to defaults for non-positive values.
func NewDBSCAN(eps float64, minSamples int) *DBSCAN {
	if eps <= 0 {
		eps = DefaultEps
	}
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &DBSCAN{Eps: eps, MinSamples: minSamples}
}

// FitPredict clusters X from scratch and returns one label per row.
// A point's neighborhood includes the point itself.
func (d *DBSCAN) FitPredict(X [][]float64) []int {
	const unvisited = -2

	labels := make([]int, len(X))
	for i := range labels {
		labels[i] = unvisited
	}

	neighbors := make([][]int, len(X))
	for i := range X {
		for j := range X {
			if floats.Distance(X[i], X[j], 2) <= d.Eps {
				neighbors[i] = append(neighbors[i], j)
			}
		}
	}
	isCore := func(i int) bool { return len(neighbors[i]) >= d.MinSamples }

	cluster := 0
	for i := range X {
		if labels[i] != unvisited {
			continue
		}
		if !isCore(i) {
			labels[i] = domain.NoiseCluster
			continue
		}

		labels[i] = cluster
		queue := append([]int(nil), neighbors[i]...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == domain.NoiseCluster {
				labels[j] = cluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster
			if isCore(j) {
				queue = append(queue, neighbors[j]...)
			}
		}
		cluster++
	}
	return labels
}
