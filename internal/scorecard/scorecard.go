// internal/scorecard/scorecard.go
//
// The scorecard aggregator merges forecast, uplift and share signals into
// the four marketing-mix axes (Product, Price, Promotion, Placement). Each
// axis is min-max normalized over the current batch, so scores are relative
// to the run's cohort, not absolute metrics.
package scorecard

import (
	"fmt"
	"sort"

	"github.com/rcandelario/instacart-insights/internal/config"
	"github.com/rcandelario/instacart-insights/internal/domain"
)

// Inputs carries the raw per-entity signals collected from the upstream
// engines. Every entity in the batch gets a row; entities without
// promotion events carry zero uplift signals.
type Inputs struct {
	EntityID        int64
	ForecastGrowth  float64 // relative growth of the forecast over recent actuals
	ReorderRate     float64
	ElasticityProxy float64 // incremental revenue per unit of relative uplift
	MeanUpliftPct   float64
	ShareLevel      float64 // latest share of department, pct
	ShareDelta      float64
}

// Aggregate computes normalized axis scores, the weighted composite and the
// final rank. An empty cohort is fatal: normalization is undefined.
func Aggregate(inputs []Inputs, cfg config.ScorecardConfig) ([]domain.ScorecardRecord, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: scorecard aggregation over zero entities", domain.ErrEmptyCohort)
	}

	product := make([]float64, len(inputs))
	price := make([]float64, len(inputs))
	promotion := make([]float64, len(inputs))
	placement := make([]float64, len(inputs))
	for i, in := range inputs {
		product[i] = in.ForecastGrowth + in.ReorderRate
		price[i] = in.ElasticityProxy
		promotion[i] = in.MeanUpliftPct
		placement[i] = in.ShareLevel + in.ShareDelta
	}

	normalizeAxis(product)
	normalizeAxis(price)
	normalizeAxis(promotion)
	normalizeAxis(placement)

	weightSum := cfg.ProductWeight + cfg.PriceWeight + cfg.PromotionWeight + cfg.PlacementWeight
	if weightSum <= 0 {
		// Unweighted mean when no weights are configured.
		cfg = config.ScorecardConfig{ProductWeight: 1, PriceWeight: 1, PromotionWeight: 1, PlacementWeight: 1}
		weightSum = 4
	}

	records := make([]domain.ScorecardRecord, len(inputs))
	for i, in := range inputs {
		composite := (cfg.ProductWeight*product[i] +
			cfg.PriceWeight*price[i] +
			cfg.PromotionWeight*promotion[i] +
			cfg.PlacementWeight*placement[i]) / weightSum

		records[i] = domain.ScorecardRecord{
			EntityID:       in.EntityID,
			ProductScore:   product[i],
			PriceScore:     price[i],
			PromotionScore: promotion[i],
			PlacementScore: placement[i],
			CompositeScore: composite,
		}
	}

	// Stable ordering: composite descending, ties by entity identifier
	// ascending, so repeated runs always produce the same ranking.
	sort.Slice(records, func(i, j int) bool {
		if records[i].CompositeScore != records[j].CompositeScore {
			return records[i].CompositeScore > records[j].CompositeScore
		}
		return records[i].EntityID < records[j].EntityID
	})
	for i := range records {
		records[i].Rank = i + 1
	}

	return records, nil
}

// normalizeAxis min-max normalizes values in place to [0,1]. When every
// value is equal each entity is the axis maximum, so all score 1.
func normalizeAxis(values []float64) {
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	if max == min {
		for i := range values {
			values[i] = 1
		}
		return
	}

	span := max - min
	for i, v := range values {
		values[i] = (v - min) / span
	}
}
