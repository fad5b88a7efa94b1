// internal/features/features.go
package features

import (
	"sort"
	"strings"
	"time"

	"github.com/rcandelario/instacart-insights/internal/config"
	"github.com/rcandelario/instacart-insights/internal/domain"
	"github.com/rcandelario/instacart-insights/internal/ingest"
	"github.com/rcandelario/instacart-insights/pkg/logger"
)

const defaultPrice = 1.0

// seriesBucket accumulates one period's volume and revenue while bucketing.
type seriesBucket struct {
	volume  float64
	revenue float64
}

// GapFill strategies for missing periods inside a series.
const (
	GapFillZero        = "zero"
	GapFillInterpolate = "interpolate"
)

// Set is the output of the schema & feature layer: derived tables consumed
// by the downstream engines. It is a pure transform over the dataset.
type Set struct {
	Products         map[int64]domain.Product // products retained after department focus
	ReorderStats     map[int64]domain.ReorderStats
	BasketSizes      map[int64]int // order_id -> line count
	Timing           map[int64]domain.TimingProfile
	ProductSeries    map[int64][]domain.TimeSeriesPoint
	DepartmentSeries map[int64][]domain.TimeSeriesPoint
	AvgPrice         map[int64]float64

	Granularity Granularity
}

// Build derives all feature tables from a validated dataset.
func Build(ds *ingest.Dataset, cfg config.FeatureConfig) (*Set, error) {
	gran, err := ParseGranularity(cfg.PeriodGranularity)
	if err != nil {
		return nil, err
	}

	epoch, err := time.Parse("2006-01-02", cfg.SyntheticEpoch)
	if err != nil {
		return nil, err
	}

	set := &Set{
		Products:         filterProducts(ds, cfg.FocusDepartments),
		ReorderStats:     make(map[int64]domain.ReorderStats),
		BasketSizes:      make(map[int64]int),
		Timing:           make(map[int64]domain.TimingProfile),
		ProductSeries:    make(map[int64][]domain.TimeSeriesPoint),
		DepartmentSeries: make(map[int64][]domain.TimeSeriesPoint),
		AvgPrice:         make(map[int64]float64),
		Granularity:      gran,
	}

	for id := range set.Products {
		if price, ok := ds.Prices[id]; ok {
			set.AvgPrice[id] = price
		} else {
			set.AvgPrice[id] = defaultPrice
		}
	}

	// Basket size is an order-level metric over every line in the order,
	// regardless of department focus.
	for _, line := range ds.OrderLines {
		set.BasketSizes[line.OrderID]++
	}

	set.buildReorderStats(ds)
	set.buildTiming(ds)
	set.buildSeries(ds, epoch, cfg.GapFill)

	logger.Log.Info().
		Int("products", len(set.Products)).
		Int("orders", len(ds.Orders)).
		Int("product_series", len(set.ProductSeries)).
		Str("granularity", string(gran)).
		Msg("feature tables built")

	return set, nil
}

// filterProducts restricts the run to the configured departments; an empty
// focus list keeps everything.
func filterProducts(ds *ingest.Dataset, focus []string) map[int64]domain.Product {
	if len(focus) == 0 {
		out := make(map[int64]domain.Product, len(ds.Products))
		for id, p := range ds.Products {
			out[id] = p
		}
		return out
	}

	wanted := make(map[string]bool, len(focus))
	for _, name := range focus {
		wanted[strings.ToLower(strings.TrimSpace(name))] = true
	}

	out := make(map[int64]domain.Product)
	for id, p := range ds.Products {
		dept, ok := ds.Departments[p.DepartmentID]
		if ok && wanted[strings.ToLower(dept.Name)] {
			out[id] = p
		}
	}
	return out
}

// buildReorderStats computes per-product reorder rates. A product with no
// order lines has a reorder rate of exactly 0, never NaN.
func (s *Set) buildReorderStats(ds *ingest.Dataset) {
	for id := range s.Products {
		s.ReorderStats[id] = domain.ReorderStats{ProductID: id}
	}

	for _, line := range ds.OrderLines {
		stats, ok := s.ReorderStats[line.ProductID]
		if !ok {
			continue // product outside the department focus
		}
		stats.TotalOrders++
		if line.Reordered {
			stats.TotalReorders++
		}
		s.ReorderStats[line.ProductID] = stats
	}

	for id, stats := range s.ReorderStats {
		if stats.TotalOrders > 0 {
			stats.ReorderRate = float64(stats.TotalReorders) / float64(stats.TotalOrders)
		}
		s.ReorderStats[id] = stats
	}
}

// hourCategory maps an order hour to a coarse time-of-day bucket.
func hourCategory(hour int) string {
	switch {
	case hour < 6:
		return "Night"
	case hour < 12:
		return "Morning"
	case hour < 18:
		return "Afternoon"
	default:
		return "Evening"
	}
}

func (s *Set) buildTiming(ds *ingest.Dataset) {
	basketTotals := make(map[int64]int)
	lineCounts := make(map[int64]int)

	for _, line := range ds.OrderLines {
		if _, ok := s.Products[line.ProductID]; !ok {
			continue
		}
		order, ok := ds.Orders[line.OrderID]
		if !ok {
			continue
		}

		profile, ok := s.Timing[line.ProductID]
		if !ok {
			profile = domain.TimingProfile{
				ProductID:      line.ProductID,
				HourCategories: make(map[string]int),
			}
		}
		profile.DOWCounts[order.OrderDOW]++
		profile.HourCategories[hourCategory(order.OrderHourOfDay)]++
		s.Timing[line.ProductID] = profile

		basketTotals[line.ProductID] += s.BasketSizes[line.OrderID]
		lineCounts[line.ProductID]++
	}

	for id, profile := range s.Timing {
		peak := 0
		for dow := 1; dow < 7; dow++ {
			if profile.DOWCounts[dow] > profile.DOWCounts[peak] {
				peak = dow
			}
		}
		profile.PeakDOW = peak
		if lineCounts[id] > 0 {
			profile.MeanBasketSize = float64(basketTotals[id]) / float64(lineCounts[id])
		}
		s.Timing[id] = profile
	}
}

// buildSeries buckets order lines onto the synthetic time axis and produces
// contiguous, gap-filled series per product and per department. The raw
// orders carry no calendar date, so order_number is projected onto a date
// axis anchored at the configured epoch.
func (s *Set) buildSeries(ds *ingest.Dataset, epoch time.Time, gapFill string) {
	productBuckets := make(map[int64]map[time.Time]*seriesBucket)
	deptBuckets := make(map[int64]map[time.Time]*seriesBucket)

	for _, line := range ds.OrderLines {
		product, ok := s.Products[line.ProductID]
		if !ok {
			continue
		}
		order, ok := ds.Orders[line.OrderID]
		if !ok {
			continue
		}

		date := epoch.AddDate(0, 0, order.OrderNumber-1)
		period := s.Granularity.BucketStart(date)
		price := s.AvgPrice[line.ProductID]

		pb, ok := productBuckets[line.ProductID]
		if !ok {
			pb = make(map[time.Time]*seriesBucket)
			productBuckets[line.ProductID] = pb
		}
		if pb[period] == nil {
			pb[period] = &seriesBucket{}
		}
		pb[period].volume++
		pb[period].revenue += price

		db, ok := deptBuckets[product.DepartmentID]
		if !ok {
			db = make(map[time.Time]*seriesBucket)
			deptBuckets[product.DepartmentID] = db
		}
		if db[period] == nil {
			db[period] = &seriesBucket{}
		}
		db[period].volume++
		db[period].revenue += price
	}

	for id, buckets := range productBuckets {
		s.ProductSeries[id] = s.toSeries(id, buckets, gapFill)
	}
	for id, buckets := range deptBuckets {
		s.DepartmentSeries[id] = s.toSeries(id, buckets, gapFill)
	}
}

// toSeries orders the buckets and fills interior gaps so the result has
// strictly increasing, contiguous period boundaries. Gaps are never
// silently dropped.
func (s *Set) toSeries(entityID int64, buckets map[time.Time]*seriesBucket, gapFill string) []domain.TimeSeriesPoint {
	periods := make([]time.Time, 0, len(buckets))
	for p := range buckets {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
	if len(periods) == 0 {
		return nil
	}

	var series []domain.TimeSeriesPoint
	for p := periods[0]; !p.After(periods[len(periods)-1]); p = s.Granularity.Next(p) {
		point := domain.TimeSeriesPoint{EntityID: entityID, PeriodStart: p}
		if b, ok := buckets[p]; ok {
			point.Volume = b.volume
			point.Revenue = b.revenue
		}
		series = append(series, point)
	}

	if gapFill == GapFillInterpolate {
		interpolateGaps(series, buckets)
	}

	return series
}

// interpolateGaps replaces zero-filled interior points with a linear
// interpolation between the surrounding observed points.
func interpolateGaps(series []domain.TimeSeriesPoint, observed map[time.Time]*seriesBucket) {
	lastObserved := -1
	for i := range series {
		if _, ok := observed[series[i].PeriodStart]; !ok {
			continue
		}
		if lastObserved >= 0 && i-lastObserved > 1 {
			span := float64(i - lastObserved)
			for j := lastObserved + 1; j < i; j++ {
				frac := float64(j-lastObserved) / span
				series[j].Volume = series[lastObserved].Volume +
					frac*(series[i].Volume-series[lastObserved].Volume)
				series[j].Revenue = series[lastObserved].Revenue +
					frac*(series[i].Revenue-series[lastObserved].Revenue)
			}
		}
		lastObserved = i
	}
}
