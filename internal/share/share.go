// internal/share/share.go
//
// The market share analyzer computes each entity's share of its department
// over a rolling window, plus the period-over-period share delta. Shares
// are derived from total sums, never sequential accumulation, so the result
// is independent of input ordering and partitioning.
package share

import (
	"sort"
	"time"

	"github.com/rcandelario/instacart-insights/internal/config"
	"github.com/rcandelario/instacart-insights/internal/domain"
)

// Analyze produces share records for every (department, period, entity).
// Entities whose absolute share delta meets the configured threshold (in
// percentage points) are flagged as shifting.
func Analyze(productSeries map[int64][]domain.TimeSeriesPoint,
	products map[int64]domain.Product, cfg config.ShareConfig) []domain.ShareRecord {

	window := cfg.Window
	if window < 1 {
		window = 1
	}

	// Revenue per (department, entity, period).
	type deptData struct {
		periods  map[time.Time]bool
		revenue  map[int64]map[time.Time]float64 // entity -> period -> revenue
		entities []int64
	}
	departments := make(map[int64]*deptData)

	for entityID, series := range productSeries {
		product, ok := products[entityID]
		if !ok {
			continue
		}
		dd, ok := departments[product.DepartmentID]
		if !ok {
			dd = &deptData{
				periods: make(map[time.Time]bool),
				revenue: make(map[int64]map[time.Time]float64),
			}
			departments[product.DepartmentID] = dd
		}
		byPeriod := make(map[time.Time]float64, len(series))
		for _, p := range series {
			byPeriod[p.PeriodStart] = p.Revenue
			dd.periods[p.PeriodStart] = true
		}
		dd.revenue[entityID] = byPeriod
		dd.entities = append(dd.entities, entityID)
	}

	deptIDs := make([]int64, 0, len(departments))
	for id := range departments {
		deptIDs = append(deptIDs, id)
	}
	sort.Slice(deptIDs, func(i, j int) bool { return deptIDs[i] < deptIDs[j] })

	var records []domain.ShareRecord
	for _, deptID := range deptIDs {
		dd := departments[deptID]
		sort.Slice(dd.entities, func(i, j int) bool { return dd.entities[i] < dd.entities[j] })

		periods := make([]time.Time, 0, len(dd.periods))
		for p := range dd.periods {
			periods = append(periods, p)
		}
		sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

		// shares[pi][entity] = share pct for the window ending at period pi
		shares := make([]map[int64]float64, len(periods))
		for pi := range periods {
			lo := pi - window + 1
			if lo < 0 {
				lo = 0
			}

			total := 0.0
			entitySums := make(map[int64]float64, len(dd.entities))
			for _, entityID := range dd.entities {
				sum := 0.0
				for wi := lo; wi <= pi; wi++ {
					sum += dd.revenue[entityID][periods[wi]]
				}
				entitySums[entityID] = sum
				total += sum
			}

			shares[pi] = make(map[int64]float64, len(entitySums))
			if total == 0 {
				continue
			}
			for entityID, sum := range entitySums {
				shares[pi][entityID] = sum / total * 100
			}
		}

		for pi, period := range periods {
			if len(shares[pi]) == 0 {
				continue // no department volume in this window
			}
			for _, entityID := range dd.entities {
				record := domain.ShareRecord{
					DepartmentID: deptID,
					PeriodStart:  period,
					EntityID:     entityID,
					SharePct:     shares[pi][entityID],
				}
				if pi > 0 && len(shares[pi-1]) > 0 {
					record.ShareDelta = record.SharePct - shares[pi-1][entityID]
				}
				if cfg.ShiftThreshold > 0 &&
					(record.ShareDelta >= cfg.ShiftThreshold || -record.ShareDelta >= cfg.ShiftThreshold) {
					record.Shifting = true
				}
				records = append(records, record)
			}
		}
	}

	return records
}

// Latest returns each entity's most recent share record.
func Latest(records []domain.ShareRecord) map[int64]domain.ShareRecord {
	latest := make(map[int64]domain.ShareRecord)
	for _, r := range records {
		prev, ok := latest[r.EntityID]
		if !ok || r.PeriodStart.After(prev.PeriodStart) {
			latest[r.EntityID] = r
		}
	}
	return latest
}
