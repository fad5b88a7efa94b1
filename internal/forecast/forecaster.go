// internal/forecast/forecaster.go
package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/rcandelario/instacart-insights/internal/config"
	"github.com/rcandelario/instacart-insights/internal/domain"
)

// Model names recorded on ForecastResult rows.
const (
	ModelHoltWinters   = "holt_winters"
	ModelSeasonalNaive = "seasonal_naive"
	ModelTrailingMean  = "trailing_mean"
)

// Forecast produces cfg.Horizon ForecastResult rows for one entity series.
// The series must be contiguous and evenly spaced (the feature layer
// guarantees this); next maps a period start to the following one.
//
// Modeled and fallback estimates are a two-variant outcome: the result rows
// always carry the model used and the fallback flag. Per-entity fit
// problems degrade to the fallback estimator and never surface as errors;
// only an empty series is an error.
func Forecast(series []domain.TimeSeriesPoint, next func(time.Time) time.Time, cfg config.ForecastConfig) ([]domain.ForecastResult, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("forecast: empty series")
	}

	y := make([]float64, len(series))
	for i, p := range series {
		y[i] = p.Volume
	}

	points, spread, model, fallback := forecastValues(y, cfg)

	entityID := series[0].EntityID
	period := series[len(series)-1].PeriodStart
	z := cfg.IntervalZ
	if z <= 0 {
		z = 1.96
	}

	results := make([]domain.ForecastResult, 0, len(points))
	for h, point := range points {
		period = next(period)
		if point < 0 {
			point = 0 // volumes cannot go negative
		}
		margin := z * spread * math.Sqrt(float64(h+1))
		low := point - margin
		if low < 0 {
			low = 0
		}
		results = append(results, domain.ForecastResult{
			EntityID:    entityID,
			PeriodStart: period,
			Point:       point,
			Low:         low,
			High:        point + margin,
			Model:       model,
			Fallback:    fallback,
		})
	}

	return results, nil
}

// forecastValues produces cfg.Horizon point estimates for a raw series,
// plus the spread used for prediction intervals. Fit problems select the
// fallback estimator: seasonal-naive when a full prior cycle exists,
// trailing mean otherwise.
func forecastValues(y []float64, cfg config.ForecastConfig) (points []float64, spread float64, model string, fallback bool) {
	horizon := cfg.Horizon
	if horizon < 1 {
		horizon = 1
	}
	cycle := cfg.CycleLength
	if cycle < 1 {
		cycle = 1
	}

	if m, err := fitHoltWinters(y, cycle, cfg.MaxIterations); err == nil {
		points = make([]float64, horizon)
		for h := 1; h <= horizon; h++ {
			points[h-1] = m.predict(h)
		}
		return points, m.rmse, ModelHoltWinters, false
	}

	spread = stddev(y)

	if len(y) >= cycle && cycle > 1 {
		// Seasonal naive: repeat the same phase from the prior full cycle.
		points = make([]float64, horizon)
		lastCycle := y[len(y)-cycle:]
		for h := 1; h <= horizon; h++ {
			// lastCycle[i] holds the observation one full cycle before
			// forecast step i+1, so phases line up by construction.
			points[h-1] = lastCycle[(h-1)%cycle]
		}
		return points, spread, ModelSeasonalNaive, true
	}

	// Trailing mean over the most recent periods (at most one cycle).
	window := len(y)
	if window > cycle {
		window = cycle
	}
	m := mean(y[len(y)-window:])
	points = make([]float64, horizon)
	for i := range points {
		points[i] = m
	}
	return points, spread, ModelTrailingMean, true
}
