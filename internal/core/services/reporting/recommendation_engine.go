package reporting

import (
	"fmt"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// maxRecommendations caps the list handed to report renderers.
const maxRecommendations = 5

// RecommendationEngine turns report findings into operator actions.
type RecommendationEngine struct {
	riskCalc *RiskCalculator
}

// NewRecommendationEngine creates a new recommendation engine instance
func NewRecommendationEngine() *RecommendationEngine {
	return &RecommendationEngine{riskCalc: NewRiskCalculator()}
}

// Generate builds prioritized recommendations for a report: critical sources
// first, then one entry per pattern kind seen, then anomalies.
func (re *RecommendationEngine) Generate(report domain.Report) []domain.Recommendation {
	var recs []domain.Recommendation

	tiers := re.riskCalc.TierCounts(report.HighRisk)
	if n := tiers[domain.RiskCritical]; n > 0 {
		recs = append(recs, domain.Recommendation{
			Priority:    "critical",
			Title:       "Block Critical-Risk Sources",
			Description: fmt.Sprintf("%d source addresses reached CRITICAL risk.", n),
			Actions: []string{
				"Add the addresses to the SBC or firewall deny list",
				"Review call detail records for completed fraudulent calls",
				"Rotate credentials of any extension they registered against",
			},
		})
	}

	kinds := re.riskCalc.PatternCounts(report.Patterns)
	for _, kind := range []domain.PatternKind{
		domain.PatternRapidCalling,
		domain.PatternOffHoursSkew,
		domain.PatternDestinationFanOut,
	} {
		if n := kinds[kind]; n > 0 {
			recs = append(recs, re.forPattern(kind, n))
		}
	}

	if n := len(report.Anomalies); n > 0 {
		recs = append(recs, domain.Recommendation{
			Priority:    "medium",
			Title:       "Investigate Behavioral Outliers",
			Description: fmt.Sprintf("%d sources behave unlike the rest of the traffic.", n),
			Actions: []string{
				"Compare their destinations and user agents with known endpoints",
				"Confirm whether the traffic belongs to a provisioned trunk",
			},
		})
	}

	if len(recs) == 0 {
		recs = append(recs, domain.Recommendation{
			Priority:    "low",
			Title:       "Keep Monitoring",
			Description: "No risky behavior was found in this window.",
			Actions: []string{
				"Keep the blacklist up to date",
				"Retrain the model as traffic volume grows",
			},
		})
	}

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

func (re *RecommendationEngine) forPattern(kind domain.PatternKind, count int) domain.Recommendation {
	switch kind {
	case domain.PatternRapidCalling:
		return domain.Recommendation{
			Priority:    "high",
			Title:       "Rate-Limit Call Setup",
			Description: fmt.Sprintf("%d sources placed calls in rapid succession, typical of toll fraud and SPIT.", count),
			Actions: []string{
				"Enable per-source INVITE rate limiting on the SIP proxy",
				"Require authentication for outbound INVITEs",
				"Alert on call bursts to premium-rate prefixes",
			},
		}
	case domain.PatternOffHoursSkew:
		return domain.Recommendation{
			Priority:    "medium",
			Title:       "Restrict Night-Time Calling",
			Description: fmt.Sprintf("%d sources were mostly active during night hours.", count),
			Actions: []string{
				"Apply time-of-day routing rules for international destinations",
				"Confirm with owners whether night traffic is expected",
			},
		}
	default:
		return domain.Recommendation{
			Priority:    "medium",
			Title:       "Review Destination Spread",
			Description: fmt.Sprintf("%d sources contacted an unusually large number of peers.", count),
			Actions: []string{
				"Check for extension scanning or REGISTER sweeps",
				"Limit the number of concurrent dialogs per source",
			},
		}
	}
}
