// internal/forecast/backtest.go
package forecast

import (
	"math"

	"github.com/rcandelario/instacart-insights/internal/config"
	"github.com/rcandelario/instacart-insights/internal/domain"
)

// Backtest evaluates forecast accuracy for one entity by rolling-origin
// evaluation: train on all periods up to t, forecast t+1, compare to the
// actual. Entities whose MAPE exceeds the configured threshold are flagged
// low-confidence but are still forecast, never excluded.
func Backtest(series []domain.TimeSeriesPoint, cfg config.ForecastConfig) domain.ForecastAccuracy {
	acc := domain.ForecastAccuracy{}
	if len(series) == 0 {
		acc.LowConfidence = true
		return acc
	}
	acc.EntityID = series[0].EntityID

	y := make([]float64, len(series))
	for i, p := range series {
		y[i] = p.Volume
	}

	minTrain := cfg.CycleLength
	if minTrain < 2 {
		minTrain = 2
	}

	oneStep := cfg
	oneStep.Horizon = 1

	var (
		absPctSum float64
		pctCount  int
		sqErrSum  float64
	)
	for t := minTrain; t < len(y); t++ {
		points, _, _, _ := forecastValues(y[:t], oneStep)
		pred := points[0]
		actual := y[t]

		err := actual - pred
		sqErrSum += err * err
		acc.Windows++

		// Zero actuals make the percentage error undefined, so those
		// windows are left out of the MAPE entirely; they still count
		// toward the RMSE above.
		if actual != 0 {
			absPctSum += math.Abs(err / actual)
			pctCount++
		}
	}

	if acc.Windows > 0 {
		acc.RMSE = math.Sqrt(sqErrSum / float64(acc.Windows))
	}
	if pctCount > 0 {
		acc.MAPE = absPctSum / float64(pctCount)
	}

	acc.LowConfidence = acc.Windows == 0 || acc.MAPE > cfg.MAPEThreshold
	return acc
}
