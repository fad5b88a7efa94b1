// internal/pipeline/types.go
package pipeline

import (
	"time"

	"github.com/google/uuid"
	"github.com/rcandelario/instacart-insights/internal/domain"
	"github.com/rcandelario/instacart-insights/internal/features"
)

// Status represents the state of a pipeline run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Run tracks a single execution of the analytics pipeline. Scores are
// batch-relative, so every output bundle is versioned by the run ID.
type Run struct {
	ID           uuid.UUID  `json:"id"`
	Status       Status     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`

	Entities      int `json:"entities"`
	FallbackCount int `json:"fallback_count"`
	PromoEvents   int `json:"promo_events"`
}

// Result is the immutable output bundle of one completed run. All tables
// are regenerated wholesale; nothing is incrementally patched.
type Result struct {
	Run Run

	Features        *features.Set
	DepartmentNames map[int64]string

	// Forecasts holds product rows only; department rows live in their
	// own table because product and department IDs overlap.
	Forecasts           []domain.ForecastResult
	DepartmentForecasts []domain.ForecastResult
	Accuracy            map[int64]domain.ForecastAccuracy
	Uplifts             []domain.UpliftResult
	Shares              []domain.ShareRecord
	Scorecard           []domain.ScorecardRecord
	Recommendations     []domain.Recommendation
}
