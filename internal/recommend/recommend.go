// internal/recommend/recommend.go
package recommend

import (
	"fmt"
	"strings"

	"github.com/rcandelario/instacart-insights/internal/config"
	"github.com/rcandelario/instacart-insights/internal/domain"
)

// Signals carries the per-entity flags the rule set consults alongside the
// scorecard.
type Signals struct {
	LowConfidenceForecast bool
	UpliftConfident       bool
	Shifting              bool
	ShareDelta            float64
	PeakDOW               int
}

var dowNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// Generate labels ranked scorecard records with an action category. The
// rule set is purely declarative over the scorecard and signals; input
// order (already ranked) is preserved.
func Generate(records []domain.ScorecardRecord, signals map[int64]Signals,
	names map[int64]string, cfg config.RecommendConfig) []domain.Recommendation {

	out := make([]domain.Recommendation, 0, len(records))
	for _, record := range records {
		sig := signals[record.EntityID]
		category, rationale := classify(record, sig, cfg)

		if name, ok := names[record.EntityID]; ok && name != "" {
			rationale = name + ": " + rationale
		}

		out = append(out, domain.Recommendation{
			EntityID:       record.EntityID,
			Rank:           record.Rank,
			ActionCategory: category,
			Rationale:      rationale,
		})
	}
	return out
}

func classify(record domain.ScorecardRecord, sig Signals, cfg config.RecommendConfig) (string, string) {
	var reasons []string

	switch {
	case record.PromotionScore >= cfg.ScalePromotionScore && sig.UpliftConfident:
		reasons = append(reasons,
			fmt.Sprintf("promotion score %.2f with confident uplift", record.PromotionScore))
		if sig.PeakDOW >= 0 && sig.PeakDOW < 7 {
			reasons = append(reasons, "orders peak on "+dowNames[sig.PeakDOW])
		}
		return domain.ActionScalePromotion, strings.Join(reasons, "; ")

	case record.CompositeScore <= cfg.InvestigateScore || sig.LowConfidenceForecast:
		if record.CompositeScore <= cfg.InvestigateScore {
			reasons = append(reasons,
				fmt.Sprintf("composite score %.2f below threshold %.2f", record.CompositeScore, cfg.InvestigateScore))
		}
		if sig.LowConfidenceForecast {
			reasons = append(reasons, "forecast backtest above MAPE threshold")
		}
		return domain.ActionInvestigate, strings.Join(reasons, "; ")

	case sig.Shifting:
		direction := "gaining"
		if sig.ShareDelta < 0 {
			direction = "losing"
		}
		reasons = append(reasons,
			fmt.Sprintf("department share %s %.2f pct points", direction, sig.ShareDelta))
		return domain.ActionWatchShareShift, strings.Join(reasons, "; ")
	}

	return domain.ActionMaintain,
		fmt.Sprintf("composite score %.2f within expected range", record.CompositeScore)
}
