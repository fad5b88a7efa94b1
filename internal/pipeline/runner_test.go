package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcandelario/instacart-insights/internal/config"
	"github.com/rcandelario/instacart-insights/internal/domain"
	"github.com/rcandelario/instacart-insights/internal/ingest"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Workers: 2},
		Features: config.FeatureConfig{
			PeriodGranularity: "day",
			GapFill:           "zero",
			SyntheticEpoch:    "2017-01-01",
		},
		Forecast: config.ForecastConfig{
			CycleLength:   4,
			Horizon:       2,
			MaxIterations: 5000,
			MAPEThreshold: 0.5,
			IntervalZ:     1.96,
		},
		Uplift: config.UpliftConfig{
			Strategy:          "pre_post",
			DistanceMetric:    "euclidean",
			Neighbors:         3,
			MinControlPeriods: 2,
			SimulateTopN:      2,
			SimulateWindow:    2,
		},
		Share:     config.ShareConfig{Window: 2, ShiftThreshold: 2.0},
		Scorecard: config.ScorecardConfig{ProductWeight: 1, PriceWeight: 1, PromotionWeight: 1, PlacementWeight: 1},
		Recommend: config.RecommendConfig{ScalePromotionScore: 0.75, InvestigateScore: 0.25},
	}
}

// testDataset builds twelve days of synthetic orders for three products in
// one department: product 10 sells five a day, product 20 three, product 30
// one.
func testDataset() *ingest.Dataset {
	ds := &ingest.Dataset{
		Orders:      make(map[int64]domain.Order),
		Products:    make(map[int64]domain.Product),
		Departments: map[int64]domain.Department{1: {ID: 1, Name: "produce"}},
		Aisles:      map[int64]domain.Aisle{1: {ID: 1, Name: "fresh fruits"}},
		Prices:      map[int64]float64{10: 0.5, 20: 2.0, 30: 4.0},
	}
	for _, id := range []int64{10, 20, 30} {
		ds.Products[id] = domain.Product{ProductID: id, AisleID: 1, DepartmentID: 1}
	}

	orderID := int64(0)
	for user := int64(1); user <= 5; user++ {
		for number := 1; number <= 12; number++ {
			orderID++
			ds.Orders[orderID] = domain.Order{
				OrderID:        orderID,
				UserID:         user,
				OrderNumber:    number,
				OrderDOW:       number % 7,
				OrderHourOfDay: 10,
			}

			addLine := func(productID int64) {
				ds.OrderLines = append(ds.OrderLines, domain.OrderLine{
					OrderID:        orderID,
					ProductID:      productID,
					AddToCartOrder: len(ds.OrderLines) + 1,
					Reordered:      number > 1,
				})
			}
			addLine(10)
			if user <= 3 {
				addLine(20)
			}
			if user == 1 {
				addLine(30)
			}
		}
	}
	return ds
}

func TestRunProducesFullBundle(t *testing.T) {
	runner := NewRunner(testConfig())
	result, err := runner.Run(context.Background(), testDataset())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Run.Status)
	require.NotNil(t, result.Run.CompletedAt)
	assert.Equal(t, 3, result.Run.Entities)
	assert.Equal(t, 2, result.Run.PromoEvents)

	// Two forecast periods each for three products and one department.
	assert.Len(t, result.Forecasts, 6)
	assert.Len(t, result.DepartmentForecasts, 2)
	assert.Len(t, result.Accuracy, 3)
	assert.Len(t, result.Uplifts, 2)
	assert.NotEmpty(t, result.Shares)

	require.Len(t, result.Scorecard, 3)
	for i, record := range result.Scorecard {
		assert.Equal(t, i+1, record.Rank)
	}

	require.Len(t, result.Recommendations, 3)
	for i, rec := range result.Recommendations {
		assert.Equal(t, result.Scorecard[i].EntityID, rec.EntityID)
		assert.Equal(t, result.Scorecard[i].Rank, rec.Rank)
		assert.NotEmpty(t, rec.ActionCategory)
		assert.NotEmpty(t, rec.Rationale)
	}
}

// Department IDs come from a different table than product IDs, so a product
// that happens to share a department's numeric ID must not absorb that
// department's forecast rows. Two products with identical order histories
// must score identically even when one of them collides with a department.
func TestRunProductDepartmentIDOverlap(t *testing.T) {
	ds := &ingest.Dataset{
		Orders:      make(map[int64]domain.Order),
		Products:    make(map[int64]domain.Product),
		Departments: map[int64]domain.Department{1: {ID: 1, Name: "produce"}},
		Aisles:      map[int64]domain.Aisle{1: {ID: 1, Name: "fresh fruits"}},
		Prices:      map[int64]float64{1: 1.0, 2: 1.0},
	}
	for _, id := range []int64{1, 2} {
		ds.Products[id] = domain.Product{ProductID: id, AisleID: 1, DepartmentID: 1}
	}

	orderID := int64(0)
	for user := int64(1); user <= 5; user++ {
		for number := 1; number <= 12; number++ {
			orderID++
			ds.Orders[orderID] = domain.Order{
				OrderID:        orderID,
				UserID:         user,
				OrderNumber:    number,
				OrderDOW:       number % 7,
				OrderHourOfDay: 10,
			}
			for _, productID := range []int64{1, 2} {
				ds.OrderLines = append(ds.OrderLines, domain.OrderLine{
					OrderID:        orderID,
					ProductID:      productID,
					AddToCartOrder: len(ds.OrderLines) + 1,
					Reordered:      number > 1,
				})
			}
		}
	}

	result, err := NewRunner(testConfig()).Run(context.Background(), ds)
	require.NoError(t, err)

	for _, f := range result.Forecasts {
		assert.Contains(t, []int64{1, 2}, f.EntityID)
	}
	for _, f := range result.DepartmentForecasts {
		assert.Equal(t, int64(1), f.EntityID)
	}

	scores := make(map[int64]domain.ScorecardRecord, len(result.Scorecard))
	for _, rec := range result.Scorecard {
		scores[rec.EntityID] = rec
	}
	require.Contains(t, scores, int64(1))
	require.Contains(t, scores, int64(2))
	assert.Equal(t, scores[2].ProductScore, scores[1].ProductScore)
	assert.Equal(t, scores[2].CompositeScore, scores[1].CompositeScore)
}

func TestRunDeterministic(t *testing.T) {
	first, err := NewRunner(testConfig()).Run(context.Background(), testDataset())
	require.NoError(t, err)
	second, err := NewRunner(testConfig()).Run(context.Background(), testDataset())
	require.NoError(t, err)

	// Everything except run metadata must be bit-identical across runs.
	assert.Equal(t, first.Forecasts, second.Forecasts)
	assert.Equal(t, first.DepartmentForecasts, second.DepartmentForecasts)
	assert.Equal(t, first.Accuracy, second.Accuracy)
	assert.Equal(t, first.Uplifts, second.Uplifts)
	assert.Equal(t, first.Shares, second.Shares)
	assert.Equal(t, first.Scorecard, second.Scorecard)
	assert.Equal(t, first.Recommendations, second.Recommendations)
}

func TestRunSuppliedPromotions(t *testing.T) {
	ds := testDataset()
	ds.Promotions = []domain.PromotionEvent{{
		PromotionID: 7,
		EntityID:    10,
		Start:       mustDate("2017-01-09"),
		End:         mustDate("2017-01-12"),
	}}

	result, err := NewRunner(testConfig()).Run(context.Background(), ds)
	require.NoError(t, err)

	require.Len(t, result.Uplifts, 1)
	assert.Equal(t, int64(7), result.Uplifts[0].PromotionID)
	assert.Equal(t, int64(10), result.Uplifts[0].EntityID)
}

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRunEmptyCohortFails(t *testing.T) {
	ds := &ingest.Dataset{
		Orders:      make(map[int64]domain.Order),
		Products:    make(map[int64]domain.Product),
		Departments: make(map[int64]domain.Department),
		Aisles:      make(map[int64]domain.Aisle),
		Prices:      make(map[int64]float64),
	}

	_, err := NewRunner(testConfig()).Run(context.Background(), ds)
	assert.ErrorIs(t, err, domain.ErrEmptyCohort)
}
