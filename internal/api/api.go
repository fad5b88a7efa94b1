// internal/api/api.go
package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rcandelario/instacart-insights/internal/api/handlers"
	"github.com/rcandelario/instacart-insights/internal/api/middleware"
	"github.com/rcandelario/instacart-insights/internal/cache"
)

func NewRouter(store *handlers.Store, resultCache cache.ResultCache, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())

	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	insightsHandler := handlers.NewInsightsHandler(store, resultCache)

	apiGroup := router.Group("/api/v1")
	{
		apiGroup.GET("/runs/latest", insightsHandler.GetRun)

		analyticsGroup := apiGroup.Group("/analytics")
		{
			analyticsGroup.GET("/forecasts", insightsHandler.GetForecasts)
			analyticsGroup.GET("/forecasts/accuracy", insightsHandler.GetAccuracy)
			analyticsGroup.GET("/promotions", insightsHandler.GetPromotions)
			analyticsGroup.GET("/market_share", insightsHandler.GetShares)
			analyticsGroup.GET("/scorecard", insightsHandler.GetScorecard)
			analyticsGroup.GET("/recommendations", insightsHandler.GetRecommendations)
			analyticsGroup.GET("/reorder_stats", insightsHandler.GetReorderStats)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
