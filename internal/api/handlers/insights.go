// internal/api/handlers/insights.go
package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/rcandelario/instacart-insights/internal/cache"
	"github.com/rcandelario/instacart-insights/internal/domain"
	"github.com/rcandelario/instacart-insights/internal/pipeline"
)

// InsightsHandler serves read-only views over the latest completed run.
type InsightsHandler struct {
	store *Store
	cache cache.ResultCache
}

func NewInsightsHandler(store *Store, c cache.ResultCache) *InsightsHandler {
	if c == nil {
		c = cache.NewNoopResultCache()
	}
	return &InsightsHandler{store: store, cache: c}
}

// GetRun returns metadata for the latest completed run.
func (h *InsightsHandler) GetRun(c *gin.Context) {
	result, ok := h.store.Latest()
	if !ok {
		errorResponse(c, http.StatusNotFound, "no completed run available")
		return
	}
	c.JSON(http.StatusOK, result.Run)
}

// GetForecasts returns forecast rows, optionally filtered by entity.
// Product and department rows are listed separately because their IDs
// come from different tables and can collide.
func (h *InsightsHandler) GetForecasts(c *gin.Context) {
	h.serveView(c, "forecasts", func(result *pipeline.Result, filter cache.ViewFilter) any {
		products := make([]domain.ForecastResult, 0, len(result.Forecasts))
		for _, f := range result.Forecasts {
			if filter.EntityID != 0 && f.EntityID != filter.EntityID {
				continue
			}
			products = append(products, f)
		}
		departments := make([]domain.ForecastResult, 0, len(result.DepartmentForecasts))
		for _, f := range result.DepartmentForecasts {
			if filter.DepartmentID != 0 && f.EntityID != filter.DepartmentID {
				continue
			}
			departments = append(departments, f)
		}
		return gin.H{
			"run_id":               result.Run.ID,
			"forecasts":            products,
			"department_forecasts": departments,
		}
	})
}

// GetAccuracy returns the backtest metrics per forecasted entity.
func (h *InsightsHandler) GetAccuracy(c *gin.Context) {
	h.serveView(c, "accuracy", func(result *pipeline.Result, filter cache.ViewFilter) any {
		ids := make([]int64, 0, len(result.Accuracy))
		for id := range result.Accuracy {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		rows := make([]domain.ForecastAccuracy, 0, len(ids))
		for _, id := range ids {
			if filter.EntityID != 0 && id != filter.EntityID {
				continue
			}
			rows = append(rows, result.Accuracy[id])
		}
		return gin.H{"run_id": result.Run.ID, "accuracy": rows}
	})
}

// GetPromotions returns the uplift estimates for the run's promotion events.
func (h *InsightsHandler) GetPromotions(c *gin.Context) {
	h.serveView(c, "promotions", func(result *pipeline.Result, filter cache.ViewFilter) any {
		rows := make([]domain.UpliftResult, 0, len(result.Uplifts))
		for _, u := range result.Uplifts {
			if filter.EntityID != 0 && u.EntityID != filter.EntityID {
				continue
			}
			rows = append(rows, u)
		}
		return gin.H{"run_id": result.Run.ID, "uplifts": rows}
	})
}

// GetShares returns department share records, optionally for one department.
func (h *InsightsHandler) GetShares(c *gin.Context) {
	h.serveView(c, "shares", func(result *pipeline.Result, filter cache.ViewFilter) any {
		rows := make([]domain.ShareRecord, 0, len(result.Shares))
		for _, s := range result.Shares {
			if filter.DepartmentID != 0 && s.DepartmentID != filter.DepartmentID {
				continue
			}
			if filter.EntityID != 0 && s.EntityID != filter.EntityID {
				continue
			}
			rows = append(rows, s)
		}
		return gin.H{"run_id": result.Run.ID, "shares": rows}
	})
}

// GetScorecard returns the ranked scorecard, optionally truncated.
func (h *InsightsHandler) GetScorecard(c *gin.Context) {
	h.serveView(c, "scorecard", func(result *pipeline.Result, filter cache.ViewFilter) any {
		rows := result.Scorecard
		if filter.Limit > 0 && filter.Limit < len(rows) {
			rows = rows[:filter.Limit]
		}
		return gin.H{"run_id": result.Run.ID, "scorecard": rows}
	})
}

// GetRecommendations returns the ranked action list, optionally truncated.
func (h *InsightsHandler) GetRecommendations(c *gin.Context) {
	h.serveView(c, "recommendations", func(result *pipeline.Result, filter cache.ViewFilter) any {
		rows := result.Recommendations
		if filter.Limit > 0 && filter.Limit < len(rows) {
			rows = rows[:filter.Limit]
		}
		return gin.H{"run_id": result.Run.ID, "recommendations": rows}
	})
}

// GetReorderStats returns per-product reorder and timing statistics.
func (h *InsightsHandler) GetReorderStats(c *gin.Context) {
	h.serveView(c, "reorder_stats", func(result *pipeline.Result, filter cache.ViewFilter) any {
		fs := result.Features
		ids := make([]int64, 0, len(fs.ReorderStats))
		for id := range fs.ReorderStats {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		type row struct {
			domain.ReorderStats
			PeakDOW        int     `json:"peak_dow"`
			MeanBasketSize float64 `json:"mean_basket_size"`
		}
		rows := make([]row, 0, len(ids))
		for _, id := range ids {
			if filter.EntityID != 0 && id != filter.EntityID {
				continue
			}
			timing := fs.Timing[id]
			rows = append(rows, row{
				ReorderStats:   fs.ReorderStats[id],
				PeakDOW:        timing.PeakDOW,
				MeanBasketSize: timing.MeanBasketSize,
			})
		}
		return gin.H{"run_id": result.Run.ID, "reorder_stats": rows}
	})
}

// serveView renders a filtered view of the latest result, with a cache
// lookup in front keyed by run, view and filter.
func (h *InsightsHandler) serveView(c *gin.Context, view string,
	render func(*pipeline.Result, cache.ViewFilter) any) {

	result, ok := h.store.Latest()
	if !ok {
		errorResponse(c, http.StatusNotFound, "no completed run available")
		return
	}

	filter, err := parseFilter(c)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	runID := result.Run.ID.String()
	ctx := c.Request.Context()

	if payload, hit, err := h.cache.Get(ctx, runID, view, filter); err != nil {
		log.Warn().Err(err).Str("view", view).Msg("result cache read failed")
	} else if hit {
		c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
		return
	}

	payload, err := json.Marshal(render(result, filter))
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to encode response")
		return
	}

	if err := h.cache.Set(ctx, runID, view, filter, payload); err != nil {
		log.Warn().Err(err).Str("view", view).Msg("result cache write failed")
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

func parseFilter(c *gin.Context) (cache.ViewFilter, error) {
	var filter cache.ViewFilter
	var err error

	if raw := c.Query("department_id"); raw != "" {
		if filter.DepartmentID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return filter, err
		}
	}
	if raw := c.Query("entity_id"); raw != "" {
		if filter.EntityID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return filter, err
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if filter.Limit, err = strconv.Atoi(raw); err != nil {
			return filter, err
		}
	}
	return filter, nil
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	log.Error().Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
}
