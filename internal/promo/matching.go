// internal/promo/matching.go
package promo

import (
	"math"
	"sort"

	"github.com/rcandelario/instacart-insights/internal/domain"
)

// Distance metrics for control matching.
const (
	MetricEuclidean = "euclidean"
	MetricPearson   = "pearson"
)

// normalize scales a trajectory by its mean so controls with different
// absolute volumes can be compared by shape.
func normalize(xs []float64) []float64 {
	m := meanOf(xs)
	out := make([]float64, len(xs))
	if m == 0 {
		copy(out, xs)
		return out
	}
	for i, x := range xs {
		out[i] = x / m
	}
	return out
}

// distance computes the configured trajectory distance. Unknown metrics
// fall back to Euclidean.
func distance(a, b []float64, metric string) float64 {
	switch metric {
	case MetricPearson:
		return 1 - pearson(a, b)
	default:
		return euclidean(a, b)
	}
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// pearson returns the correlation of two equal-length vectors; 0 when
// either vector is constant, so 1-r stays defined.
func pearson(a, b []float64) float64 {
	if len(a) < 2 {
		return 0
	}
	ma, mb := meanOf(a), meanOf(b)
	var cov, va, vb float64
	for i := range a {
		da := a[i] - ma
		db := b[i] - mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return 0
	}
	return cov / math.Sqrt(va*vb)
}

// SynthesizeEvents builds simulated promotion events when no promotions
// table is supplied: the top-N products by total volume are treated for the
// most recent window periods. Event IDs are deterministic (volume rank).
func SynthesizeEvents(series map[int64][]domain.TimeSeriesPoint, topN, window int) []domain.PromotionEvent {
	if topN < 1 || window < 1 {
		return nil
	}

	type ranked struct {
		entityID int64
		total    float64
	}
	all := make([]ranked, 0, len(series))
	for id, points := range series {
		if len(points) <= window {
			continue // need pre-treatment history to compare against
		}
		total := 0.0
		for _, p := range points {
			total += p.Volume
		}
		all = append(all, ranked{entityID: id, total: total})
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].total != all[j].total {
			return all[i].total > all[j].total
		}
		return all[i].entityID < all[j].entityID
	})

	if topN > len(all) {
		topN = len(all)
	}

	events := make([]domain.PromotionEvent, 0, topN)
	for rank, r := range all[:topN] {
		points := series[r.entityID]
		events = append(events, domain.PromotionEvent{
			PromotionID: int64(rank + 1),
			EntityID:    r.entityID,
			Start:       points[len(points)-window].PeriodStart,
			End:         points[len(points)-1].PeriodStart,
			Synthetic:   true,
		})
	}
	return events
}
