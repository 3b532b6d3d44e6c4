package domain

// FeatureVector aggregates the behavior of one source address.
// It is only built for addresses with at least two observations.
type FeatureVector struct {
	SrcAddr string `json:"src_ip"`

	TotalPackets       float64 `json:"total_packets"`
	UniqueDestinations float64 `json:"unique_destinations"`
	AvgInterArrival    float64 `json:"avg_time_between_packets"`
	StdInterArrival    float64 `json:"std_time_between_packets"`
	MinInterArrival    float64 `json:"min_time_between_packets"`
	MaxInterArrival    float64 `json:"max_time_between_packets"`
	SuspiciousCount    float64 `json:"suspicious_count"`
	SIPRatio           float64 `json:"sip_ratio"`
	RTPRatio           float64 `json:"rtp_ratio"`
	InviteRatio        float64 `json:"invite_ratio"`
	RegisterRatio      float64 `json:"register_ratio"`
	ByeRatio           float64 `json:"bye_ratio"`
	ActivityDuration   float64 `json:"activity_duration"`
	PacketsPerMinute   float64 `json:"packets_per_minute"`
	AvgHour            float64 `json:"avg_hour"`
	HourVariance       float64 `json:"hour_variance"`
	DestinationsPerHr  float64 `json:"avg_destinations_per_hour"`
}

// FeatureColumns is the ordered numeric column set of a FeatureVector,
// matching the order of Values.
var FeatureColumns = []string{
	"total_packets",
	"unique_destinations",
	"avg_time_between_packets",
	"std_time_between_packets",
	"min_time_between_packets",
	"max_time_between_packets",
	"suspicious_count",
	"sip_ratio",
	"rtp_ratio",
	"invite_ratio",
	"register_ratio",
	"bye_ratio",
	"activity_duration",
	"packets_per_minute",
	"avg_hour",
	"hour_variance",
	"avg_destinations_per_hour",
}

// Values returns the numeric columns in FeatureColumns order.
func (f FeatureVector) Values() []float64 {
	return []float64{
		f.TotalPackets,
		f.UniqueDestinations,
		f.AvgInterArrival,
		f.StdInterArrival,
		f.MinInterArrival,
		f.MaxInterArrival,
		f.SuspiciousCount,
		f.SIPRatio,
		f.RTPRatio,
		f.InviteRatio,
		f.RegisterRatio,
		f.ByeRatio,
		f.ActivityDuration,
		f.PacketsPerMinute,
		f.AvgHour,
		f.HourVariance,
		f.DestinationsPerHr,
	}
}

// Matrix converts a batch of feature vectors to a row-major matrix.
func Matrix(rows []FeatureVector) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Values()
	}
	return out
}
