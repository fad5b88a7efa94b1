// cmd/api/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rcandelario/instacart-insights/internal/api"
	"github.com/rcandelario/instacart-insights/internal/api/handlers"
	"github.com/rcandelario/instacart-insights/internal/cache"
	"github.com/rcandelario/instacart-insights/internal/config"
	"github.com/rcandelario/instacart-insights/internal/ingest"
	"github.com/rcandelario/instacart-insights/internal/pipeline"
	"github.com/rcandelario/instacart-insights/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.App.LogLevel)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	resultCache, err := cache.NewResultCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("result cache unavailable, continuing without caching")
		resultCache = cache.NewNoopResultCache()
	}

	store := handlers.NewStore(resultCache)

	// Run the pipeline once at startup so the read API has a result to serve.
	go func() {
		ds, err := ingest.LoadDir(cfg.App.DataDir)
		if err != nil {
			logger.Log.Error().Err(err).Msg("failed to load input tables")
			return
		}

		result, err := pipeline.NewRunner(cfg).Run(context.Background(), ds)
		if err != nil {
			logger.Log.Error().Err(err).Msg("startup pipeline run failed")
			return
		}
		store.Publish(context.Background(), result)
	}()

	router := api.NewRouter(store, resultCache, cfg.Server.AllowedOrigins)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Log.Info().Msg("Server exiting")
}
