package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "voipmon"

var (
	// FramesCaptured counts frames read from the capture source
	FramesCaptured = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_captured_total",
			Help:      "Total number of frames read from the capture source",
		},
		[]string{"source"},
	)

	// FramesDropped counts frames lost before classification
	FramesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of frames dropped",
		},
		[]string{"reason"},
	)

	// Observations counts classified observations by kind
	Observations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_total",
			Help:      "Total number of classified SIP/RTP observations",
		},
		[]string{"kind"},
	)

	// SuspiciousEvents counts rule engine alerts
	SuspiciousEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suspicious_events_total",
			Help:      "Total number of observations flagged by the rule engine",
		},
		[]string{"category"},
	)

	// Patterns counts behavioral pattern emissions
	Patterns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patterns_total",
			Help:      "Total number of behavioral patterns detected",
		},
		[]string{"kind"},
	)

	// ReportsBuilt counts completed analysis reports
	ReportsBuilt = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_built_total",
			Help:      "Total number of analysis reports built",
		},
	)

	// ObservationsArchived counts observations evicted to the archive
	ObservationsArchived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_archived_total",
			Help:      "Total number of observations evicted from memory to the archive",
		},
	)

	// ModelTrained is 1 once the anomaly ensemble has been fitted
	ModelTrained = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_trained",
			Help:      "Whether the anomaly ensemble is fitted",
		},
	)

	// ObservationLogSize tracks the in-memory observation log length
	ObservationLogSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observation_log_size",
			Help:      "Number of observations held in memory",
		},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// Safe to call more than once.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(FramesCaptured)
		prometheus.DefaultRegisterer.Register(FramesDropped)
		prometheus.DefaultRegisterer.Register(Observations)
		prometheus.DefaultRegisterer.Register(SuspiciousEvents)
		prometheus.DefaultRegisterer.Register(Patterns)
		prometheus.DefaultRegisterer.Register(ReportsBuilt)
		prometheus.DefaultRegisterer.Register(ObservationsArchived)
		prometheus.DefaultRegisterer.Register(ModelTrained)
		prometheus.DefaultRegisterer.Register(ObservationLogSize)
	})
}
