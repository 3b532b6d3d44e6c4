package domain

// Weights of the two detector verdicts in the combined score.
const (
	StatisticalWeight = 0.6
	DensityWeight     = 0.4

	// AnomalyThreshold is exclusive: a row is reportable when CombinedScore > AnomalyThreshold.
	AnomalyThreshold = 0.5

	// NoiseCluster is the cluster id assigned to density outliers.
	NoiseCluster = -1
)

// AnomalyResult is a scored feature vector.
type AnomalyResult struct {
	FeatureVector

	IsStatisticalOutlier bool    `json:"isolation_anomaly"`
	OutlierScore         float64 `json:"isolation_score"`
	IsDensityOutlier     bool    `json:"cluster_outlier"`
	ClusterID            int     `json:"cluster_label"`
	CombinedScore        float64 `json:"anomaly_score"`
}

// CombineScores weighs the statistical and density verdicts into [0,1].
func CombineScores(statistical, density bool) float64 {
	score := 0.0
	if statistical {
		score += StatisticalWeight
	}
	if density {
		score += DensityWeight
	}
	return score
}

// IsReportable reports whether the result crosses the anomaly threshold.
func (r AnomalyResult) IsReportable() bool {
	return r.CombinedScore > AnomalyThreshold
}
