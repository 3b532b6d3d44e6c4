package reporting

import (
	"cmp"
	"slices"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// RiskCalculator selects and ranks the addresses a report should surface.
type RiskCalculator struct{}

// NewRiskCalculator creates a new risk calculator instance
func NewRiskCalculator() *RiskCalculator {
	return &RiskCalculator{}
}

// HighRisk keeps HIGH and CRITICAL assessments, lowest score first. Equal
// scores are ordered by address.
func (rc *RiskCalculator) HighRisk(assessments []domain.RiskAssessment) []domain.RiskAssessment {
	out := make([]domain.RiskAssessment, 0, len(assessments))
	for _, a := range assessments {
		if a.Tier.IsElevated() {
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.RiskAssessment) int {
		if c := cmp.Compare(a.Score, b.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.SrcAddr, b.SrcAddr)
	})
	return out
}

// TierCounts tallies assessments per tier.
func (rc *RiskCalculator) TierCounts(assessments []domain.RiskAssessment) map[domain.RiskTier]int {
	counts := make(map[domain.RiskTier]int)
	for _, a := range assessments {
		counts[a.Tier]++
	}
	return counts
}

// PatternCounts tallies patterns per kind.
func (rc *RiskCalculator) PatternCounts(patterns []domain.BehavioralPattern) map[domain.PatternKind]int {
	counts := make(map[domain.PatternKind]int)
	for _, p := range patterns {
		counts[p.Kind]++
	}
	return counts
}
