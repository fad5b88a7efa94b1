package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcandelario/instacart-insights/internal/domain"
	"github.com/rcandelario/instacart-insights/internal/features"
	"github.com/rcandelario/instacart-insights/internal/pipeline"
)

func testResult() *pipeline.Result {
	period := time.Date(2017, 3, 6, 0, 0, 0, 0, time.UTC)
	return &pipeline.Result{
		Run: pipeline.Run{
			ID:        uuid.MustParse("9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d"),
			Status:    pipeline.StatusCompleted,
			StartedAt: time.Date(2017, 3, 10, 12, 0, 0, 0, time.UTC),
		},
		Features: &features.Set{
			Products: map[int64]domain.Product{
				10: {ProductID: 10, ProductName: "Banana"},
			},
			ReorderStats: map[int64]domain.ReorderStats{
				10: {ProductID: 10, TotalOrders: 4, TotalReorders: 3, ReorderRate: 0.75},
			},
			Timing: map[int64]domain.TimingProfile{
				10: {ProductID: 10, PeakDOW: 6, MeanBasketSize: 2.5},
			},
		},
		DepartmentNames: map[int64]string{1: "produce"},
		Forecasts: []domain.ForecastResult{
			{EntityID: 10, PeriodStart: period, Point: 12, Low: 8, High: 16, Model: "holt_winters"},
		},
		DepartmentForecasts: []domain.ForecastResult{
			{EntityID: 1, PeriodStart: period, Point: 40, Low: 30, High: 50, Model: "holt_winters"},
		},
		Accuracy: map[int64]domain.ForecastAccuracy{
			10: {EntityID: 10, MAPE: 0.2, RMSE: 1.5, Windows: 6},
		},
		Uplifts: []domain.UpliftResult{
			{EntityID: 10, PromotionID: 1, BaselineVolume: 200, TreatedVolume: 300,
				UpliftPct: 0.5, IncrementalRevenue: 100, Confidence: true, Strategy: "pre_post"},
		},
		Shares: []domain.ShareRecord{
			{DepartmentID: 1, PeriodStart: period, EntityID: 10, SharePct: 50, ShareDelta: 2.5, Shifting: true},
		},
		Scorecard: []domain.ScorecardRecord{
			{EntityID: 10, ProductScore: 1, PriceScore: 1, PromotionScore: 1, PlacementScore: 1, CompositeScore: 1, Rank: 1},
		},
		Recommendations: []domain.Recommendation{
			{EntityID: 10, Rank: 1, ActionCategory: domain.ActionScalePromotion, Rationale: "Banana: strong uplift"},
		},
	}
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	paths, err := NewWriter(dir).WriteAll(testResult())
	require.NoError(t, err)
	require.Len(t, paths, 6)

	names := []string{
		"sales_forecasts",
		"promotion_simulation_results",
		"market_share_by_department",
		"4p_scorecard",
		"strategic_recommendations",
		"reorder_stats",
	}
	for i, path := range paths {
		assert.True(t, strings.HasPrefix(filepath.Base(path), names[i]))
		assert.Contains(t, filepath.Base(path), "20170310_9b1deb4d")

		f, err := os.Open(path)
		require.NoError(t, err)
		rows, err := csv.NewReader(f).ReadAll()
		f.Close()
		require.NoError(t, err)

		// The forecast table carries one product row and one department row.
		want := 2
		if names[i] == "sales_forecasts" {
			want = 3
		}
		require.Len(t, rows, want, "unexpected row count in %s", path)
	}
}

func TestWriteForecastRow(t *testing.T) {
	dir := t.TempDir()
	paths, err := NewWriter(dir).WriteAll(testResult())
	require.NoError(t, err)

	f, err := os.Open(paths[0])
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	header := rows[0]
	assert.Equal(t, "entity_type", header[0])
	assert.Equal(t, "entity_id", header[1])
	assert.Equal(t, "forecast_period_start", header[2])

	product := rows[1]
	assert.Equal(t, "product", product[0])
	assert.Equal(t, "10", product[1])
	assert.Equal(t, "2017-03-06", product[2])
	assert.Equal(t, "12.0000", product[3])
	assert.Equal(t, "holt_winters", product[6])
	assert.Equal(t, "false", product[7])
	assert.Equal(t, "0.2000", product[8])
	assert.Equal(t, "1.5000", product[9])

	// Department rows have no backtest, so the accuracy columns stay empty.
	dept := rows[2]
	assert.Equal(t, "department", dept[0])
	assert.Equal(t, "1", dept[1])
	assert.Equal(t, "40.0000", dept[3])
	assert.Equal(t, "", dept[8])
	assert.Equal(t, "", dept[9])
	assert.Equal(t, "", dept[10])
}
