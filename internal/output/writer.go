// internal/output/writer.go
//
// The output writer emits the six analysis tables as CSV files under the
// configured output directory. Every run regenerates its tables wholesale;
// filenames carry the run date and a short run identifier so bundles from
// different runs never overwrite each other.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rcandelario/instacart-insights/internal/domain"
	"github.com/rcandelario/instacart-insights/internal/pipeline"
	"github.com/rcandelario/instacart-insights/pkg/logger"
)

const periodFormat = "2006-01-02"

// Writer writes result tables into a single output directory.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// WriteAll emits every output table for the run and returns the written
// file paths.
func (w *Writer) WriteAll(result *pipeline.Result) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	run := result.Run
	suffix := fmt.Sprintf("%s_%s", run.StartedAt.Format("20060102"), run.ID.String()[:8])

	tables := []struct {
		name  string
		write func(*csv.Writer) error
	}{
		{"sales_forecasts", func(cw *csv.Writer) error { return w.writeForecasts(cw, result) }},
		{"promotion_simulation_results", func(cw *csv.Writer) error { return w.writeUplifts(cw, result) }},
		{"market_share_by_department", func(cw *csv.Writer) error { return w.writeShares(cw, result) }},
		{"4p_scorecard", func(cw *csv.Writer) error { return w.writeScorecard(cw, result) }},
		{"strategic_recommendations", func(cw *csv.Writer) error { return w.writeRecommendations(cw, result) }},
		{"reorder_stats", func(cw *csv.Writer) error { return w.writeReorderStats(cw, result) }},
	}

	paths := make([]string, 0, len(tables))
	for _, table := range tables {
		path := filepath.Join(w.dir, fmt.Sprintf("%s_%s.csv", table.name, suffix))
		if err := w.writeFile(path, table.write); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", table.name, err)
		}
		paths = append(paths, path)
	}

	logger.Log.Info().
		Str("run_id", run.ID.String()).
		Str("dir", w.dir).
		Int("tables", len(paths)).
		Msg("output tables written")
	return paths, nil
}

func (w *Writer) writeFile(path string, fn func(*csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if err := fn(cw); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func (w *Writer) writeForecasts(cw *csv.Writer, result *pipeline.Result) error {
	header := []string{
		"entity_type",
		"entity_id",
		"forecast_period_start",
		"point_estimate",
		"interval_low",
		"interval_high",
		"model_used",
		"fallback_flag",
		"backtest_mape",
		"backtest_rmse",
		"low_confidence",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	// Backtests run for products only; department rows carry empty
	// accuracy columns rather than another entity's metrics.
	for _, f := range result.Forecasts {
		acc := result.Accuracy[f.EntityID]
		record := []string{
			"product",
			strconv.FormatInt(f.EntityID, 10),
			f.PeriodStart.Format(periodFormat),
			formatFloat(f.Point),
			formatFloat(f.Low),
			formatFloat(f.High),
			f.Model,
			strconv.FormatBool(f.Fallback),
			formatFloat(acc.MAPE),
			formatFloat(acc.RMSE),
			strconv.FormatBool(acc.LowConfidence),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	for _, f := range result.DepartmentForecasts {
		record := []string{
			"department",
			strconv.FormatInt(f.EntityID, 10),
			f.PeriodStart.Format(periodFormat),
			formatFloat(f.Point),
			formatFloat(f.Low),
			formatFloat(f.High),
			f.Model,
			strconv.FormatBool(f.Fallback),
			"",
			"",
			"",
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeUplifts(cw *csv.Writer, result *pipeline.Result) error {
	header := []string{
		"promotion_id",
		"entity_id",
		"strategy",
		"baseline_volume",
		"treated_volume",
		"uplift_pct",
		"incremental_revenue",
		"confidence_flag",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, u := range result.Uplifts {
		record := []string{
			strconv.FormatInt(u.PromotionID, 10),
			strconv.FormatInt(u.EntityID, 10),
			u.Strategy,
			formatFloat(u.BaselineVolume),
			formatFloat(u.TreatedVolume),
			formatFloat(u.UpliftPct),
			formatFloat(u.IncrementalRevenue),
			strconv.FormatBool(u.Confidence),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeShares(cw *csv.Writer, result *pipeline.Result) error {
	header := []string{
		"department_id",
		"department_name",
		"period_start",
		"entity_id",
		"share_pct",
		"share_delta",
		"shifting",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, s := range result.Shares {
		record := []string{
			strconv.FormatInt(s.DepartmentID, 10),
			result.DepartmentNames[s.DepartmentID],
			s.PeriodStart.Format(periodFormat),
			strconv.FormatInt(s.EntityID, 10),
			formatFloat(s.SharePct),
			formatFloat(s.ShareDelta),
			strconv.FormatBool(s.Shifting),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeScorecard(cw *csv.Writer, result *pipeline.Result) error {
	header := []string{
		"rank",
		"entity_id",
		"product_name",
		"product_score",
		"price_score",
		"promotion_score",
		"placement_score",
		"composite_score",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, s := range result.Scorecard {
		record := []string{
			strconv.Itoa(s.Rank),
			strconv.FormatInt(s.EntityID, 10),
			productName(result, s.EntityID),
			formatFloat(s.ProductScore),
			formatFloat(s.PriceScore),
			formatFloat(s.PromotionScore),
			formatFloat(s.PlacementScore),
			formatFloat(s.CompositeScore),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeRecommendations(cw *csv.Writer, result *pipeline.Result) error {
	header := []string{
		"rank",
		"entity_id",
		"action_category",
		"action_label",
		"rationale_text",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range result.Recommendations {
		record := []string{
			strconv.Itoa(r.Rank),
			strconv.FormatInt(r.EntityID, 10),
			r.ActionCategory,
			domain.ActionLabel(r.ActionCategory),
			r.Rationale,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeReorderStats(cw *csv.Writer, result *pipeline.Result) error {
	header := []string{
		"product_id",
		"product_name",
		"total_orders",
		"total_reorders",
		"reorder_rate",
		"peak_dow",
		"mean_basket_size",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	fs := result.Features
	ids := make([]int64, 0, len(fs.ReorderStats))
	for id := range fs.ReorderStats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		stats := fs.ReorderStats[id]
		timing := fs.Timing[id]
		record := []string{
			strconv.FormatInt(id, 10),
			productName(result, id),
			strconv.Itoa(stats.TotalOrders),
			strconv.Itoa(stats.TotalReorders),
			formatFloat(stats.ReorderRate),
			strconv.Itoa(timing.PeakDOW),
			formatFloat(timing.MeanBasketSize),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func productName(result *pipeline.Result, id int64) string {
	if p, ok := result.Features.Products[id]; ok {
		return p.ProductName
	}
	return ""
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
