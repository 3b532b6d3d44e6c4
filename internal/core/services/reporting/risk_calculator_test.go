package reporting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

func TestRiskCalculator_HighRisk(t *testing.T) {
	rc := NewRiskCalculator()
	in := []domain.RiskAssessment{
		{SrcAddr: "10.0.0.5", Tier: domain.RiskHigh, Score: 40},
		{SrcAddr: "10.0.0.1", Tier: domain.RiskLow, Score: 95},
		{SrcAddr: "10.0.0.4", Tier: domain.RiskCritical, Score: 0},
		{SrcAddr: "10.0.0.2", Tier: domain.RiskHigh, Score: 40},
		{SrcAddr: "10.0.0.3", Tier: domain.RiskMedium, Score: 55},
	}

	got := rc.HighRisk(in)
	addrs := make([]string, len(got))
	for i, a := range got {
		addrs[i] = a.SrcAddr
	}
	assert.Equal(t, []string{"10.0.0.4", "10.0.0.2", "10.0.0.5"}, addrs)
}

func TestRiskCalculator_HighRiskEmpty(t *testing.T) {
	got := NewRiskCalculator().HighRisk(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRiskCalculator_Counts(t *testing.T) {
	rc := NewRiskCalculator()
	tiers := rc.TierCounts([]domain.RiskAssessment{
		{Tier: domain.RiskHigh}, {Tier: domain.RiskHigh}, {Tier: domain.RiskLow},
	})
	assert.Equal(t, 2, tiers[domain.RiskHigh])
	assert.Equal(t, 1, tiers[domain.RiskLow])

	kinds := rc.PatternCounts([]domain.BehavioralPattern{
		{Kind: domain.PatternRapidCalling}, {Kind: domain.PatternOffHoursSkew}, {Kind: domain.PatternRapidCalling},
	})
	assert.Equal(t, 2, kinds[domain.PatternRapidCalling])
	assert.Equal(t, 1, kinds[domain.PatternOffHoursSkew])
}
