package forecast

import (
	"math"

	"github.com/rcandelario/instacart-insights/internal/domain"
)

// hwModel is a fitted additive Holt-Winters model (level, trend, seasonal).
type hwModel struct {
	alpha, beta, gamma float64
	level              float64
	trend              float64
	seasonal           []float64
	phase              int     // phase of the next period to forecast
	rmse               float64 // one-step in-sample RMSE
}

// Candidate smoothing parameters for the deterministic grid search. The
// order is fixed so the same series always selects the same model.
var (
	hwAlphas = []float64{0.1, 0.3, 0.5, 0.7, 0.9}
	hwBetas  = []float64{0.05, 0.15, 0.3}
	hwGammas = []float64{0.05, 0.15, 0.3}
)

// fitHoltWinters fits an additive Holt-Winters model by grid search over
// the smoothing parameters. The iteration budget counts smoothing steps;
// exhausting it before any candidate completes is a fit failure. Requires
// at least two full seasonal cycles of history.
func fitHoltWinters(y []float64, cycle, maxIterations int) (*hwModel, error) {
	if cycle < 2 {
		return nil, domain.ErrModelFitFailure
	}
	if len(y) < 2*cycle {
		return nil, domain.ErrInsufficientHistory
	}

	var best *hwModel
	bestSSE := math.Inf(1)
	iterations := 0

	for _, alpha := range hwAlphas {
		for _, beta := range hwBetas {
			for _, gamma := range hwGammas {
				if iterations+len(y) > maxIterations {
					if best == nil {
						return nil, domain.ErrModelFitFailure
					}
					return best, nil
				}
				iterations += len(y)

				model, sse := smoothPass(y, cycle, alpha, beta, gamma)
				if !math.IsInf(sse, 0) && !math.IsNaN(sse) && sse < bestSSE {
					bestSSE = sse
					best = model
				}
			}
		}
	}

	if best == nil {
		return nil, domain.ErrModelFitFailure
	}
	return best, nil
}

// smoothPass runs one full smoothing pass with fixed parameters and returns
// the end-of-series state plus the sum of squared one-step errors.
func smoothPass(y []float64, cycle int, alpha, beta, gamma float64) (*hwModel, float64) {
	level, trend, seasonal := initState(y, cycle)

	sse := 0.0
	n := 0
	for t := cycle; t < len(y); t++ {
		phase := t % cycle
		pred := level + trend + seasonal[phase]
		err := y[t] - pred
		sse += err * err
		n++

		prevLevel := level
		level = alpha*(y[t]-seasonal[phase]) + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
		seasonal[phase] = gamma*(y[t]-level) + (1-gamma)*seasonal[phase]
	}

	rmse := 0.0
	if n > 0 {
		rmse = math.Sqrt(sse / float64(n))
	}

	return &hwModel{
		alpha:    alpha,
		beta:     beta,
		gamma:    gamma,
		level:    level,
		trend:    trend,
		seasonal: seasonal,
		phase:    len(y) % cycle,
		rmse:     rmse,
	}, sse
}

// initState seeds level/trend from the first two cycles and the seasonal
// components from per-phase deviations over all full cycles.
func initState(y []float64, cycle int) (level, trend float64, seasonal []float64) {
	firstMean := mean(y[:cycle])
	secondMean := mean(y[cycle : 2*cycle])

	level = firstMean
	trend = (secondMean - firstMean) / float64(cycle)

	seasonal = make([]float64, cycle)
	fullCycles := len(y) / cycle
	for phase := 0; phase < cycle; phase++ {
		sum := 0.0
		for c := 0; c < fullCycles; c++ {
			cycleMean := mean(y[c*cycle : (c+1)*cycle])
			sum += y[c*cycle+phase] - cycleMean
		}
		seasonal[phase] = sum / float64(fullCycles)
	}
	return level, trend, seasonal
}

// predict returns the h-step-ahead point estimate (h is 1-based).
func (m *hwModel) predict(h int) float64 {
	phase := (m.phase + h - 1) % len(m.seasonal)
	return m.level + float64(h)*m.trend + m.seasonal[phase]
}

// SeasonalIndices returns multiplicative per-phase indices (phase mean over
// overall mean) for a series. Degenerate series yield flat indices of 1.
// The promotion engine uses these as the seasonal adjustment multipliers.
func SeasonalIndices(volumes []float64, cycle int) []float64 {
	indices := make([]float64, cycle)
	for i := range indices {
		indices[i] = 1
	}
	if cycle < 1 || len(volumes) < cycle {
		return indices
	}

	overall := mean(volumes)
	if overall == 0 {
		return indices
	}

	sums := make([]float64, cycle)
	counts := make([]int, cycle)
	for t, v := range volumes {
		sums[t%cycle] += v
		counts[t%cycle]++
	}
	for phase := 0; phase < cycle; phase++ {
		if counts[phase] > 0 {
			indices[phase] = (sums[phase] / float64(counts[phase])) / overall
		}
	}
	return indices
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		sum += (x - m) * (x - m)
	}
	return math.Sqrt(sum / float64(len(xs)))
}
