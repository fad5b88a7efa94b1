package share

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcandelario/instacart-insights/internal/config"
	"github.com/rcandelario/instacart-insights/internal/domain"
)

var periodOne = time.Date(2017, 1, 2, 0, 0, 0, 0, time.UTC)

func point(entityID int64, i int, revenue float64) domain.TimeSeriesPoint {
	return domain.TimeSeriesPoint{
		EntityID:    entityID,
		PeriodStart: periodOne.AddDate(0, 0, 7*i),
		Revenue:     revenue,
	}
}

func testProducts() map[int64]domain.Product {
	return map[int64]domain.Product{
		1: {ProductID: 1, DepartmentID: 10},
		2: {ProductID: 2, DepartmentID: 10},
		3: {ProductID: 3, DepartmentID: 10},
	}
}

func TestAnalyzeSharesSumToHundred(t *testing.T) {
	series := map[int64][]domain.TimeSeriesPoint{
		1: {point(1, 0, 50)},
		2: {point(2, 0, 30)},
		3: {point(3, 0, 20)},
	}

	records := Analyze(series, testProducts(), config.ShareConfig{Window: 1})
	require.Len(t, records, 3)

	total := 0.0
	byEntity := make(map[int64]float64)
	for _, r := range records {
		assert.Equal(t, int64(10), r.DepartmentID)
		total += r.SharePct
		byEntity[r.EntityID] = r.SharePct
	}

	assert.InDelta(t, 100.0, total, 1e-9)
	assert.InDelta(t, 50.0, byEntity[1], 1e-9)
	assert.InDelta(t, 30.0, byEntity[2], 1e-9)
	assert.InDelta(t, 20.0, byEntity[3], 1e-9)
}

func TestAnalyzeShiftFlag(t *testing.T) {
	// Entity 1 jumps from 50% to 80% of the department between periods.
	series := map[int64][]domain.TimeSeriesPoint{
		1: {point(1, 0, 50), point(1, 1, 80)},
		2: {point(2, 0, 50), point(2, 1, 20)},
	}
	products := map[int64]domain.Product{
		1: {ProductID: 1, DepartmentID: 10},
		2: {ProductID: 2, DepartmentID: 10},
	}

	records := Analyze(series, products, config.ShareConfig{Window: 1, ShiftThreshold: 10})

	var secondPeriod []domain.ShareRecord
	for _, r := range records {
		if r.PeriodStart.Equal(periodOne.AddDate(0, 0, 7)) {
			secondPeriod = append(secondPeriod, r)
		}
	}
	require.Len(t, secondPeriod, 2)

	for _, r := range secondPeriod {
		switch r.EntityID {
		case 1:
			assert.InDelta(t, 30.0, r.ShareDelta, 1e-9)
			assert.True(t, r.Shifting)
		case 2:
			assert.InDelta(t, -30.0, r.ShareDelta, 1e-9)
			assert.True(t, r.Shifting)
		}
	}
}

func TestAnalyzeNoThresholdNoFlag(t *testing.T) {
	series := map[int64][]domain.TimeSeriesPoint{
		1: {point(1, 0, 50), point(1, 1, 80)},
		2: {point(2, 0, 50), point(2, 1, 20)},
	}
	records := Analyze(series, testProducts(), config.ShareConfig{Window: 1})
	for _, r := range records {
		assert.False(t, r.Shifting)
	}
}

func TestAnalyzeDeterministicOrder(t *testing.T) {
	series := map[int64][]domain.TimeSeriesPoint{
		1: {point(1, 0, 50), point(1, 1, 60)},
		2: {point(2, 0, 30), point(2, 1, 25)},
		3: {point(3, 0, 20), point(3, 1, 15)},
	}

	first := Analyze(series, testProducts(), config.ShareConfig{Window: 2})
	second := Analyze(series, testProducts(), config.ShareConfig{Window: 2})
	assert.Equal(t, first, second)
}

func TestLatest(t *testing.T) {
	records := []domain.ShareRecord{
		{EntityID: 1, PeriodStart: periodOne, SharePct: 40},
		{EntityID: 1, PeriodStart: periodOne.AddDate(0, 0, 7), SharePct: 45},
		{EntityID: 2, PeriodStart: periodOne, SharePct: 60},
	}

	latest := Latest(records)
	require.Len(t, latest, 2)
	assert.InDelta(t, 45.0, latest[1].SharePct, 1e-9)
	assert.InDelta(t, 60.0, latest[2].SharePct, 1e-9)
}
