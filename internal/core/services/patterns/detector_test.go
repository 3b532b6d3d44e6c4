package patterns

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

var noon = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

func invites(src string, start time.Time, n int, gap time.Duration) []domain.Observation {
	out := make([]domain.Observation, n)
	for i := range out {
		out[i] = domain.Observation{
			Timestamp: start.Add(time.Duration(i) * gap),
			Kind:      domain.KindSIP,
			SrcAddr:   src,
			DstAddr:   "10.0.0.2",
			SIP:       &domain.SipFields{Method: domain.MethodInvite},
		}
	}
	return out
}

func newDetector() *Detector {
	d := New(DefaultConfig())
	d.SetClock(func() time.Time { return noon })
	return d
}

func TestRapidCalling_SixGapsFires(t *testing.T) {
	patterns := newDetector().Detect(invites("10.0.0.1", noon, 7, 2*time.Second))
	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, domain.PatternRapidCalling, p.Kind)
	assert.Equal(t, domain.SeverityHigh, p.Severity)
	assert.Equal(t, "6 calls within 5-second intervals", p.Description)
	assert.Equal(t, "10.0.0.1", p.SrcAddr)
	assert.Equal(t, noon, p.DetectedAt)
	assert.NotEmpty(t, p.ID)
}

func TestRapidCalling_FiveGapsDoesNot(t *testing.T) {
	assert.Empty(t, newDetector().Detect(invites("10.0.0.1", noon, 6, 2*time.Second)))
}

func TestRapidCalling_GapAtLimitIsNotRapid(t *testing.T) {
	assert.Empty(t, newDetector().Detect(invites("10.0.0.1", noon, 10, 5*time.Second)))
}

func TestMinimumObservations(t *testing.T) {
	night := time.Date(2024, 6, 3, 23, 0, 0, 0, time.UTC)
	assert.Empty(t, newDetector().Detect(invites("10.0.0.1", night, 2, time.Hour)))
	assert.Len(t, newDetector().Detect(invites("10.0.0.1", night, 3, time.Minute)), 1)
}

func TestOffHoursSkew(t *testing.T) {
	night := time.Date(2024, 6, 3, 2, 0, 0, 0, time.UTC)
	log := invites("10.0.0.1", night, 3, 10*time.Minute)
	log = append(log, invites("10.0.0.1", noon, 1, time.Minute)...)

	patterns := newDetector().Detect(log)
	require.Len(t, patterns, 1)
	assert.Equal(t, domain.PatternOffHoursSkew, patterns[0].Kind)
	assert.Equal(t, domain.SeverityMedium, patterns[0].Severity)
	assert.Equal(t, "3 out of 4 calls during night hours", patterns[0].Description)

	// two of three is below the 70% share
	log = invites("10.0.0.1", night, 2, 10*time.Minute)
	log = append(log, invites("10.0.0.1", noon, 1, time.Minute)...)
	assert.Empty(t, newDetector().Detect(log))
}

func TestOffHoursSkew_HourBoundaries(t *testing.T) {
	h := NewOffHoursSkew(DefaultConfig().NightHours, 0.7)
	for hour, want := range map[int]bool{21: false, 22: true, 0: true, 6: true, 7: false} {
		at := time.Date(2024, 6, 3, hour, 30, 0, 0, time.UTC)
		_, ok := h.Match(invites("x", at, 3, time.Second))
		assert.Equal(t, want, ok, "hour %d", hour)
	}
}

func TestDestinationFanOut(t *testing.T) {
	build := func(n int) []domain.Observation {
		log := invites("10.0.0.1", noon, n, 10*time.Minute)
		for i := range log {
			log[i].DstAddr = fmt.Sprintf("10.1.0.%d", i)
		}
		return log
	}

	patterns := newDetector().Detect(build(21))
	require.Len(t, patterns, 1)
	assert.Equal(t, domain.PatternDestinationFanOut, patterns[0].Kind)
	assert.Equal(t, "Contacted 21 different destinations", patterns[0].Description)

	assert.Empty(t, newDetector().Detect(build(20)))
}

func TestDetect_OrderAndNoDedup(t *testing.T) {
	night := time.Date(2024, 6, 3, 23, 0, 0, 0, time.UTC)
	log := invites("10.0.0.9", night, 8, time.Second)
	log = append(log, invites("10.0.0.1", noon, 8, time.Second)...)

	d := newDetector()
	patterns := d.Detect(log)
	require.Len(t, patterns, 3)
	assert.Equal(t, "10.0.0.1", patterns[0].SrcAddr)
	assert.Equal(t, domain.PatternRapidCalling, patterns[0].Kind)
	assert.Equal(t, "10.0.0.9", patterns[1].SrcAddr)
	assert.Equal(t, domain.PatternRapidCalling, patterns[1].Kind)
	assert.Equal(t, domain.PatternOffHoursSkew, patterns[2].Kind)

	again := d.Detect(log)
	assert.Len(t, again, 3, "a second run reports the same patterns again")
	assert.NotEqual(t, patterns[0].ID, again[0].ID)
}

type alwaysLow struct{}

func (alwaysLow) Kind() domain.PatternKind                  { return "Custom" }
func (alwaysLow) Severity() domain.Severity                 { return domain.SeverityLow }
func (alwaysLow) Match([]domain.Observation) (string, bool) { return "custom", true }

func TestCustomHeuristic(t *testing.T) {
	d := NewWithHeuristics(alwaysLow{})
	patterns := d.Detect(invites("10.0.0.1", noon, 3, time.Hour))
	require.Len(t, patterns, 1)
	assert.Equal(t, domain.SeverityLow, patterns[0].Severity)
}
