// internal/pipeline/runner.go
//
// The runner sequences the pipeline stages: feature derivation, then the
// embarrassingly parallel per-entity forecast and uplift stages plus the
// share analyzer, then the scorecard barrier. Scorecard normalization is
// batch-relative, so it cannot start until every upstream result for the
// run is in.
package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rcandelario/instacart-insights/internal/config"
	"github.com/rcandelario/instacart-insights/internal/domain"
	"github.com/rcandelario/instacart-insights/internal/features"
	"github.com/rcandelario/instacart-insights/internal/forecast"
	"github.com/rcandelario/instacart-insights/internal/ingest"
	"github.com/rcandelario/instacart-insights/internal/promo"
	"github.com/rcandelario/instacart-insights/internal/recommend"
	"github.com/rcandelario/instacart-insights/internal/scorecard"
	"github.com/rcandelario/instacart-insights/internal/share"
	"github.com/rcandelario/instacart-insights/pkg/logger"
)

// Runner executes the full analytics pipeline over a validated dataset.
type Runner struct {
	cfg *config.Config
}

func NewRunner(cfg *config.Config) *Runner {
	return &Runner{cfg: cfg}
}

// Run executes all stages and returns the immutable result bundle.
// Per-entity failures degrade to flagged fallback rows; cohort-level
// failures fail the run.
func (r *Runner) Run(ctx context.Context, ds *ingest.Dataset) (*Result, error) {
	run := Run{
		ID:        uuid.New(),
		Status:    StatusProcessing,
		StartedAt: time.Now(),
	}
	logger.Log.Info().Str("run_id", run.ID.String()).Msg("starting pipeline run")

	featureSet, err := features.Build(ds, r.cfg.Features)
	if err != nil {
		return nil, r.fail(&run, err)
	}

	events := ds.Promotions
	if len(events) == 0 {
		events = promo.SynthesizeEvents(featureSet.ProductSeries,
			r.cfg.Uplift.SimulateTopN, r.cfg.Uplift.SimulateWindow)
		logger.Log.Info().Int("events", len(events)).
			Msg("no promotions table supplied, synthesized treatment windows")
	}
	run.PromoEvents = len(events)

	result := &Result{
		Run:             run,
		Features:        featureSet,
		DepartmentNames: make(map[int64]string, len(ds.Departments)),
		Accuracy:        make(map[int64]domain.ForecastAccuracy),
	}
	for id, dept := range ds.Departments {
		result.DepartmentNames[id] = dept.Name
	}

	if err := r.runParallelStages(ctx, result, events); err != nil {
		return nil, r.fail(&run, err)
	}

	// Hard barrier: every forecast, uplift and share result is in; the
	// batch-relative stages can run.
	inputs, signals := r.assembleSignals(result)

	records, err := scorecard.Aggregate(inputs, r.cfg.Scorecard)
	if err != nil {
		return nil, r.fail(&run, err)
	}
	result.Scorecard = records

	names := make(map[int64]string, len(result.Features.Products))
	for id, p := range result.Features.Products {
		names[id] = p.ProductName
	}
	result.Recommendations = recommend.Generate(records, signals, names, r.cfg.Recommend)

	now := time.Now()
	run.Status = StatusCompleted
	run.CompletedAt = &now
	run.Entities = len(result.Features.Products)
	for _, f := range result.Forecasts {
		if f.Fallback {
			run.FallbackCount++
		}
	}
	for _, f := range result.DepartmentForecasts {
		if f.Fallback {
			run.FallbackCount++
		}
	}
	result.Run = run

	logger.Log.Info().
		Str("run_id", run.ID.String()).
		Int("entities", run.Entities).
		Int("forecasts", len(result.Forecasts)).
		Int("fallbacks", run.FallbackCount).
		Int("uplifts", len(result.Uplifts)).
		Dur("elapsed", now.Sub(run.StartedAt)).
		Msg("pipeline run completed")

	return result, nil
}

// runParallelStages fans forecasting and uplift estimation out per entity.
// Each worker reads only its own series plus read-only shared reference
// tables, so no locking is needed beyond collecting results.
func (r *Runner) runParallelStages(ctx context.Context, result *Result, events []domain.PromotionEvent) error {
	fs := result.Features
	gran := fs.Granularity
	next := gran.Next

	productIDs := sortedKeys(fs.ProductSeries)
	departmentIDs := sortedKeys(fs.DepartmentSeries)

	promoted := make(map[int64]bool, len(events))
	for _, ev := range events {
		promoted[ev.EntityID] = true
	}
	pool := promo.ControlPool{Series: fs.ProductSeries, Promoted: promoted}

	productForecasts := make([][]domain.ForecastResult, len(productIDs))
	deptForecasts := make([][]domain.ForecastResult, len(departmentIDs))
	accuracy := make([]domain.ForecastAccuracy, len(productIDs))
	uplifts := make([]domain.UpliftResult, len(events))

	g, ctx := errgroup.WithContext(ctx)
	workers := r.cfg.App.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, entityID := range productIDs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			series := fs.ProductSeries[entityID]
			rows, err := forecast.Forecast(series, next, r.cfg.Forecast)
			if err != nil {
				// Per-entity failures never abort the batch.
				logger.Log.Warn().Err(err).Int64("entity_id", entityID).
					Msg("skipping unforecastable entity")
				return nil
			}
			productForecasts[i] = rows
			accuracy[i] = forecast.Backtest(series, r.cfg.Forecast)
			return nil
		})
	}

	for i, entityID := range departmentIDs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows, err := forecast.Forecast(fs.DepartmentSeries[entityID], next, r.cfg.Forecast)
			if err != nil {
				logger.Log.Warn().Err(err).Int64("department_id", entityID).
					Msg("skipping unforecastable department")
				return nil
			}
			deptForecasts[i] = rows
			return nil
		})
	}

	for i, event := range events {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			history := fs.ProductSeries[event.EntityID]
			uplifts[i] = promo.Estimate(event, history, fs.AvgPrice[event.EntityID],
				pool, r.cfg.Uplift, r.cfg.Forecast.CycleLength)
			return nil
		})
	}

	var shares []domain.ShareRecord
	var sharesMu sync.Mutex
	g.Go(func() error {
		records := share.Analyze(fs.ProductSeries, fs.Products, r.cfg.Share)
		sharesMu.Lock()
		shares = records
		sharesMu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	// Products and departments share the raw ID space, so their forecast
	// rows are kept apart; only product rows feed the scorecard signals.
	for _, rows := range productForecasts {
		result.Forecasts = append(result.Forecasts, rows...)
	}
	for _, rows := range deptForecasts {
		result.DepartmentForecasts = append(result.DepartmentForecasts, rows...)
	}
	for _, acc := range accuracy {
		if acc.EntityID != 0 {
			result.Accuracy[acc.EntityID] = acc
		}
	}
	result.Uplifts = uplifts
	result.Shares = shares
	return nil
}

// assembleSignals merges the stage outputs into scorecard inputs and the
// recommendation signals, one row per product entity.
func (r *Runner) assembleSignals(result *Result) ([]scorecard.Inputs, map[int64]recommend.Signals) {
	fs := result.Features

	forecastMeans := make(map[int64][]float64)
	for _, f := range result.Forecasts {
		forecastMeans[f.EntityID] = append(forecastMeans[f.EntityID], f.Point)
	}

	upliftsByEntity := make(map[int64][]domain.UpliftResult)
	for _, u := range result.Uplifts {
		upliftsByEntity[u.EntityID] = append(upliftsByEntity[u.EntityID], u)
	}

	latestShares := share.Latest(result.Shares)

	productIDs := sortedKeys(fs.Products)
	inputs := make([]scorecard.Inputs, 0, len(productIDs))
	signals := make(map[int64]recommend.Signals, len(productIDs))

	for _, entityID := range productIDs {
		in := scorecard.Inputs{
			EntityID:    entityID,
			ReorderRate: fs.ReorderStats[entityID].ReorderRate,
		}

		// Forecast growth: mean forecast vs mean of the trailing cycle of
		// actuals. A zero actual mean resolves to zero growth.
		if series, ok := fs.ProductSeries[entityID]; ok && len(series) > 0 {
			window := r.cfg.Forecast.CycleLength
			if window > len(series) {
				window = len(series)
			}
			recent := 0.0
			for _, p := range series[len(series)-window:] {
				recent += p.Volume
			}
			recent /= float64(window)

			if points := forecastMeans[entityID]; len(points) > 0 && recent != 0 {
				sum := 0.0
				for _, p := range points {
					sum += p
				}
				in.ForecastGrowth = (sum/float64(len(points)))/recent - 1
			}
		}

		sig := recommend.Signals{PeakDOW: fs.Timing[entityID].PeakDOW}

		if evs := upliftsByEntity[entityID]; len(evs) > 0 {
			upliftSum, elasticitySum := 0.0, 0.0
			confident := true
			for _, u := range evs {
				upliftSum += u.UpliftPct
				if u.UpliftPct != 0 {
					elasticitySum += u.IncrementalRevenue / u.UpliftPct
				}
				confident = confident && u.Confidence
			}
			in.MeanUpliftPct = upliftSum / float64(len(evs))
			in.ElasticityProxy = elasticitySum / float64(len(evs))
			sig.UpliftConfident = confident
		}

		if rec, ok := latestShares[entityID]; ok {
			in.ShareLevel = rec.SharePct
			in.ShareDelta = rec.ShareDelta
			sig.Shifting = rec.Shifting
			sig.ShareDelta = rec.ShareDelta
		}

		sig.LowConfidenceForecast = result.Accuracy[entityID].LowConfidence

		inputs = append(inputs, in)
		signals[entityID] = sig
	}

	return inputs, signals
}

func (r *Runner) fail(run *Run, err error) error {
	now := time.Now()
	run.Status = StatusFailed
	run.ErrorMessage = err.Error()
	run.CompletedAt = &now
	logger.Log.Error().Err(err).Str("run_id", run.ID.String()).Msg("pipeline run failed")
	return err
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
