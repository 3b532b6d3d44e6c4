// Package patterns runs threshold heuristics over each source's traffic.
package patterns

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
	"github.com/lcalzada-xor/voipmon/internal/core/services/features"
	"github.com/lcalzada-xor/voipmon/internal/telemetry"
)

// MinObservations is the number of observations a source needs before any
// heuristic looks at it.
const MinObservations = 3

// Config holds the heuristic thresholds.
type Config struct {
	RapidGap        time.Duration
	RapidMinCount   int
	NightShare      float64
	NightHours      []int
	FanOutThreshold int
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		RapidGap:        5 * time.Second,
		RapidMinCount:   5,
		NightShare:      0.7,
		NightHours:      []int{22, 23, 0, 1, 2, 3, 4, 5, 6},
		FanOutThreshold: 20,
	}
}

// Heuristic inspects the time-ordered traffic of one source.
type Heuristic interface {
	Kind() domain.PatternKind
	Severity() domain.Severity
	// Match returns the pattern description when the heuristic fires.
	Match(obs []domain.Observation) (string, bool)
}

// Detector applies its heuristics to every eligible source.
type Detector struct {
	mu         sync.RWMutex
	heuristics []Heuristic
	now        func() time.Time
}

// New creates a detector with the three stock heuristics.
func New(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.RapidGap <= 0 {
		cfg.RapidGap = def.RapidGap
	}
	if cfg.RapidMinCount <= 0 {
		cfg.RapidMinCount = def.RapidMinCount
	}
	if cfg.NightShare <= 0 {
		cfg.NightShare = def.NightShare
	}
	if len(cfg.NightHours) == 0 {
		cfg.NightHours = def.NightHours
	}
	if cfg.FanOutThreshold <= 0 {
		cfg.FanOutThreshold = def.FanOutThreshold
	}
	return NewWithHeuristics(
		RapidCalling{Gap: cfg.RapidGap, MinCount: cfg.RapidMinCount},
		NewOffHoursSkew(cfg.NightHours, cfg.NightShare),
		DestinationFanOut{Threshold: cfg.FanOutThreshold},
	)
}

// NewWithHeuristics creates a detector running hs in order.
func NewWithHeuristics(hs ...Heuristic) *Detector {
	return &Detector{heuristics: hs, now: time.Now}
}

// SetClock overrides the clock stamping detections.
func (d *Detector) SetClock(now func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
}

// Detect returns the patterns found in log, ordered by source address and
// then by heuristic. Repeated runs over the same log emit the same patterns
// again.
func (d *Detector) Detect(log []domain.Observation) []domain.BehavioralPattern {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []domain.BehavioralPattern
	for _, g := range features.GroupBySource(log, MinObservations) {
		for _, h := range d.heuristics {
			desc, ok := h.Match(g.Observations)
			if !ok {
				continue
			}
			out = append(out, domain.BehavioralPattern{
				ID:          uuid.NewString(),
				Kind:        h.Kind(),
				SrcAddr:     g.SrcAddr,
				Severity:    h.Severity(),
				Description: desc,
				DetectedAt:  d.now().Round(0),
			})
			telemetry.Patterns.WithLabelValues(string(h.Kind())).Inc()
		}
	}
	return out
}

// RapidCalling fires when more than MinCount consecutive gaps are shorter
// than Gap.
type RapidCalling struct {
	Gap      time.Duration
	MinCount int
}

func (RapidCalling) Kind() domain.PatternKind  { return domain.PatternRapidCalling }
func (RapidCalling) Severity() domain.Severity { return domain.SeverityHigh }

func (r RapidCalling) Match(obs []domain.Observation) (string, bool) {
	limit := r.Gap.Seconds()
	rapid := 0
	for _, gap := range features.InterArrivals(obs, false) {
		if gap < limit {
			rapid++
		}
	}
	if rapid > r.MinCount {
		return fmt.Sprintf("%d calls within %d-second intervals", rapid, int(limit)), true
	}
	return "", false
}

// OffHoursSkew fires when more than Share of the traffic falls in night hours.
type OffHoursSkew struct {
	hours [24]bool
	Share float64
}

// NewOffHoursSkew builds the heuristic for the given hours of day.
func NewOffHoursSkew(hours []int, share float64) OffHoursSkew {
	h := OffHoursSkew{Share: share}
	for _, hour := range hours {
		if hour >= 0 && hour < 24 {
			h.hours[hour] = true
		}
	}
	return h
}

func (OffHoursSkew) Kind() domain.PatternKind  { return domain.PatternOffHoursSkew }
func (OffHoursSkew) Severity() domain.Severity { return domain.SeverityMedium }

func (h OffHoursSkew) Match(obs []domain.Observation) (string, bool) {
	night := 0
	for _, o := range obs {
		if h.hours[o.Timestamp.Hour()] {
			night++
		}
	}
	if float64(night) > float64(len(obs))*h.Share {
		return fmt.Sprintf("%d out of %d calls during night hours", night, len(obs)), true
	}
	return "", false
}

// DestinationFanOut fires when a source contacts more than Threshold
// distinct destinations.
type DestinationFanOut struct {
	Threshold int
}

func (DestinationFanOut) Kind() domain.PatternKind  { return domain.PatternDestinationFanOut }
func (DestinationFanOut) Severity() domain.Severity { return domain.SeverityMedium }

func (f DestinationFanOut) Match(obs []domain.Observation) (string, bool) {
	dsts := make([]string, 0, len(obs))
	for _, o := range obs {
		dsts = append(dsts, o.DstAddr)
	}
	slices.Sort(dsts)
	unique := len(slices.Compact(dsts))
	if unique > f.Threshold {
		return fmt.Sprintf("Contacted %d different destinations", unique), true
	}
	return "", false
}
