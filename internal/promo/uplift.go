// internal/promo/uplift.go
//
// The promotion simulation engine estimates the counterfactual (non
// promoted) volume for a treated window and reports the uplift against it.
// Two strategies are supported: a seasonally adjusted pre/post comparison
// and a matched-baseline comparison against similar non-promoted entities,
// which guards against promotion selection bias.
package promo

import (
	"sort"
	"time"

	"github.com/rcandelario/instacart-insights/internal/config"
	"github.com/rcandelario/instacart-insights/internal/domain"
	"github.com/rcandelario/instacart-insights/internal/forecast"
)

// Strategy names recorded on UpliftResult rows.
const (
	StrategyPrePost = "pre_post"
	StrategyMatched = "matched_baseline"
)

// ControlPool is the read-only reference table of candidate control
// entities. It is shared across workers and must not be mutated during a
// run.
type ControlPool struct {
	Series   map[int64][]domain.TimeSeriesPoint
	Promoted map[int64]bool // entities with at least one promotion event
}

// Estimate computes the uplift for one promotion event given the entity's
// full history. Re-running on unchanged inputs yields identical results.
func Estimate(event domain.PromotionEvent, history []domain.TimeSeriesPoint, avgPrice float64,
	pool ControlPool, cfg config.UpliftConfig, cycle int) domain.UpliftResult {

	result := domain.UpliftResult{
		EntityID:    event.EntityID,
		PromotionID: event.PromotionID,
		Strategy:    cfg.Strategy,
	}

	treatedStart, treatedEnd := windowIndices(history, event.Start, event.End)
	if treatedStart < 0 {
		// Treated window outside the observed history: emit a zeroed,
		// unconfident row rather than dropping the event.
		return result
	}

	treated := volumes(history[treatedStart : treatedEnd+1])
	result.TreatedVolume = meanOf(treated)

	var counterfactual float64
	switch cfg.Strategy {
	case StrategyMatched:
		counterfactual, result.Confidence = matchedCounterfactual(
			event, history, treatedStart, treatedEnd, pool, cfg)
	default:
		result.Strategy = StrategyPrePost
		counterfactual, result.Confidence = prePostCounterfactual(
			history, treatedStart, treatedEnd, cycle, cfg)
	}

	result.BaselineVolume = counterfactual

	// Degenerate-ratio policy: a zero counterfactual yields zero uplift,
	// never NaN.
	if counterfactual != 0 {
		result.UpliftPct = (result.TreatedVolume - counterfactual) / counterfactual
	}
	result.IncrementalRevenue = (result.TreatedVolume - counterfactual) * avgPrice

	return result
}

// prePostCounterfactual compares the treated window to the equal-length
// window immediately preceding it, seasonally adjusted with the same
// multiplicative indices the forecasting engine derives.
func prePostCounterfactual(history []domain.TimeSeriesPoint, treatedStart, treatedEnd, cycle int,
	cfg config.UpliftConfig) (float64, bool) {

	windowLen := treatedEnd - treatedStart + 1
	preStart := treatedStart - windowLen
	if preStart < 0 {
		preStart = 0
	}
	if preStart >= treatedStart {
		return 0, false
	}

	pre := volumes(history[preStart:treatedStart])
	preMean := meanOf(pre)

	indices := forecast.SeasonalIndices(volumes(history), cycle)
	treatedIdx := meanIndex(indices, treatedStart, treatedEnd)
	preIdx := meanIndex(indices, preStart, treatedStart-1)

	multiplier := 1.0
	if preIdx != 0 {
		multiplier = treatedIdx / preIdx
	}

	confident := len(pre) >= cfg.MinControlPeriods
	return preMean * multiplier, confident
}

// matchedCounterfactual estimates the counterfactual from the K non
// promoted entities whose pre-treatment trajectories are nearest to the
// treated entity's. Each control's treated-window mean is rescaled by the
// ratio of pre-treatment means before averaging.
func matchedCounterfactual(event domain.PromotionEvent, history []domain.TimeSeriesPoint,
	treatedStart, treatedEnd int, pool ControlPool, cfg config.UpliftConfig) (float64, bool) {

	windowLen := treatedEnd - treatedStart + 1
	preStart := treatedStart - windowLen
	if preStart < 0 {
		preStart = 0
	}
	if preStart >= treatedStart {
		return 0, false
	}

	prePeriods := periodsOf(history[preStart:treatedStart])
	treatedPeriods := periodsOf(history[treatedStart : treatedEnd+1])
	targetPre := normalize(volumes(history[preStart:treatedStart]))
	targetPreMean := meanOf(volumes(history[preStart:treatedStart]))

	type candidate struct {
		entityID    int64
		distance    float64
		treatedMean float64
		preMean     float64
	}
	var candidates []candidate

	for id, series := range pool.Series {
		if id == event.EntityID || pool.Promoted[id] {
			continue
		}
		pre, ok := alignedVolumes(series, prePeriods)
		if !ok {
			continue
		}
		treatedWindow, ok := alignedVolumes(series, treatedPeriods)
		if !ok {
			continue
		}

		d := distance(targetPre, normalize(pre), cfg.DistanceMetric)
		candidates = append(candidates, candidate{
			entityID:    id,
			distance:    d,
			treatedMean: meanOf(treatedWindow),
			preMean:     meanOf(pre),
		})
	}

	if len(candidates) == 0 {
		return 0, false
	}

	// Nearest first; ties break on entity identifier for determinism.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].entityID < candidates[j].entityID
	})

	k := cfg.Neighbors
	if k < 1 {
		k = 1
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	sum := 0.0
	for _, c := range candidates[:k] {
		estimate := c.treatedMean
		if c.preMean != 0 && targetPreMean != 0 {
			estimate = c.treatedMean * targetPreMean / c.preMean
		}
		sum += estimate
	}

	confident := k >= cfg.MinControlEntities
	return sum / float64(k), confident
}

// windowIndices locates the inclusive index range of [start, end] within a
// contiguous series; (-1, -1) when the window is entirely outside it.
func windowIndices(series []domain.TimeSeriesPoint, start, end time.Time) (int, int) {
	first, last := -1, -1
	for i, p := range series {
		if p.PeriodStart.Before(start) {
			continue
		}
		if p.PeriodStart.After(end) {
			break
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 {
		return -1, -1
	}
	return first, last
}

func volumes(points []domain.TimeSeriesPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Volume
	}
	return out
}

func periodsOf(points []domain.TimeSeriesPoint) []time.Time {
	out := make([]time.Time, len(points))
	for i, p := range points {
		out[i] = p.PeriodStart
	}
	return out
}

// alignedVolumes extracts a control's volumes for exactly the given
// periods; false when any period is missing from the control's series.
func alignedVolumes(series []domain.TimeSeriesPoint, periods []time.Time) ([]float64, bool) {
	byPeriod := make(map[time.Time]float64, len(series))
	for _, p := range series {
		byPeriod[p.PeriodStart] = p.Volume
	}

	out := make([]float64, len(periods))
	for i, period := range periods {
		v, ok := byPeriod[period]
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func meanIndex(indices []float64, start, end int) float64 {
	if end < start || len(indices) == 0 {
		return 1
	}
	sum := 0.0
	for i := start; i <= end; i++ {
		sum += indices[i%len(indices)]
	}
	return sum / float64(end-start+1)
}
