// internal/api/handlers/store.go
package handlers

import (
	"context"
	"sync"

	"github.com/rcandelario/instacart-insights/internal/cache"
	"github.com/rcandelario/instacart-insights/internal/pipeline"
	"github.com/rcandelario/instacart-insights/pkg/logger"
)

// Store holds the latest completed run result for the read API. Results are
// immutable bundles, so readers share them without copying.
type Store struct {
	mu     sync.RWMutex
	latest *pipeline.Result

	cache cache.ResultCache
}

func NewStore(c cache.ResultCache) *Store {
	if c == nil {
		c = cache.NewNoopResultCache()
	}
	return &Store{cache: c}
}

// Publish swaps in a freshly completed run and drops every cached response.
// Scores are batch-relative, so responses from older runs must never be
// served once a new run lands.
func (s *Store) Publish(ctx context.Context, result *pipeline.Result) {
	s.mu.Lock()
	s.latest = result
	s.mu.Unlock()

	if err := s.cache.InvalidateAll(ctx); err != nil {
		logger.Log.Warn().Err(err).Msg("failed to invalidate result cache")
	}
}

// Latest returns the most recent completed result, or false when no run has
// completed yet.
func (s *Store) Latest() (*pipeline.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}
