package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcandelario/instacart-insights/internal/config"
	"github.com/rcandelario/instacart-insights/internal/domain"
)

func testConfig() config.RecommendConfig {
	return config.RecommendConfig{
		ScalePromotionScore: 0.75,
		InvestigateScore:    0.25,
	}
}

func TestGenerateCategories(t *testing.T) {
	records := []domain.ScorecardRecord{
		{EntityID: 1, Rank: 1, PromotionScore: 0.9, CompositeScore: 0.8},
		{EntityID: 2, Rank: 2, PromotionScore: 0.3, CompositeScore: 0.6},
		{EntityID: 3, Rank: 3, PromotionScore: 0.2, CompositeScore: 0.5},
		{EntityID: 4, Rank: 4, PromotionScore: 0.1, CompositeScore: 0.1},
	}
	signals := map[int64]Signals{
		1: {UpliftConfident: true, PeakDOW: 6},
		2: {Shifting: true, ShareDelta: -3.5},
		3: {},
		4: {},
	}
	names := map[int64]string{1: "Banana", 2: "Whole Milk"}

	recs := Generate(records, signals, names, testConfig())
	require.Len(t, recs, 4)

	assert.Equal(t, domain.ActionScalePromotion, recs[0].ActionCategory)
	assert.Contains(t, recs[0].Rationale, "Banana")
	assert.Contains(t, recs[0].Rationale, "Saturday")

	assert.Equal(t, domain.ActionWatchShareShift, recs[1].ActionCategory)
	assert.Contains(t, recs[1].Rationale, "losing")

	assert.Equal(t, domain.ActionMaintain, recs[2].ActionCategory)

	assert.Equal(t, domain.ActionInvestigate, recs[3].ActionCategory)
}

func TestGenerateHighPromotionWithoutConfidence(t *testing.T) {
	records := []domain.ScorecardRecord{
		{EntityID: 1, Rank: 1, PromotionScore: 0.95, CompositeScore: 0.9},
	}
	// A strong promotion axis alone is not enough without a confident
	// uplift estimate behind it.
	recs := Generate(records, map[int64]Signals{1: {UpliftConfident: false}}, nil, testConfig())
	require.Len(t, recs, 1)
	assert.Equal(t, domain.ActionMaintain, recs[0].ActionCategory)
}

func TestGenerateLowConfidenceForecastInvestigates(t *testing.T) {
	records := []domain.ScorecardRecord{
		{EntityID: 1, Rank: 1, PromotionScore: 0.1, CompositeScore: 0.7},
	}
	recs := Generate(records, map[int64]Signals{1: {LowConfidenceForecast: true}}, nil, testConfig())
	require.Len(t, recs, 1)
	assert.Equal(t, domain.ActionInvestigate, recs[0].ActionCategory)
	assert.Contains(t, recs[0].Rationale, "MAPE")
}

func TestGeneratePreservesRankOrder(t *testing.T) {
	records := []domain.ScorecardRecord{
		{EntityID: 5, Rank: 1, CompositeScore: 0.9},
		{EntityID: 9, Rank: 2, CompositeScore: 0.5},
	}
	recs := Generate(records, nil, nil, testConfig())
	require.Len(t, recs, 2)
	assert.Equal(t, 1, recs[0].Rank)
	assert.Equal(t, int64(5), recs[0].EntityID)
	assert.Equal(t, 2, recs[1].Rank)
	assert.Equal(t, int64(9), recs[1].EntityID)
}
