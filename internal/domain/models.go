// internal/domain/models.go
package domain

import "time"

// Order represents a single customer order. Immutable once ingested.
type Order struct {
	OrderID             int64  `json:"order_id"`
	UserID              int64  `json:"user_id"`
	OrderNumber         int    `json:"order_number"` // sequence within the customer's history, 1-based
	OrderDOW            int    `json:"order_dow"`    // 0=Sunday .. 6=Saturday
	OrderHourOfDay      int    `json:"order_hour_of_day"`
	DaysSincePriorOrder *int   `json:"days_since_prior_order"` // nil for a customer's first order
}

// OrderLine is a single product within an order.
type OrderLine struct {
	OrderID        int64 `json:"order_id"`
	ProductID      int64 `json:"product_id"`
	AddToCartOrder int   `json:"add_to_cart_order"`
	Reordered      bool  `json:"reordered"`
}

// Product is a static reference entity. Every product belongs to exactly
// one aisle and one department.
type Product struct {
	ProductID    int64  `json:"product_id"`
	ProductName  string `json:"product_name"`
	AisleID      int64  `json:"aisle_id"`
	DepartmentID int64  `json:"department_id"`
}

// Department is the top level of the category hierarchy.
type Department struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Aisle is the middle level of the category hierarchy.
type Aisle struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TimeSeriesPoint is one observation of an entity in one period. Series are
// contiguous and gap-filled before they reach the forecasting engine.
type TimeSeriesPoint struct {
	EntityID    int64     `json:"entity_id"`
	PeriodStart time.Time `json:"period_start"`
	Volume      float64   `json:"volume"`
	Revenue     float64   `json:"revenue"`
}

// PromotionEvent defines the treated window for the promotion simulation
// engine. Periods are identified by their period-start dates.
type PromotionEvent struct {
	PromotionID int64     `json:"promotion_id"`
	EntityID    int64     `json:"entity_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"` // inclusive period start of the last treated period
	Synthetic   bool      `json:"synthetic"`
}

// ForecastResult is one forecast period for one entity.
type ForecastResult struct {
	EntityID    int64     `json:"entity_id"`
	PeriodStart time.Time `json:"forecast_period_start"`
	Point       float64   `json:"point_estimate"`
	Low         float64   `json:"interval_low"`
	High        float64   `json:"interval_high"`
	Model       string    `json:"model_used"`
	Fallback    bool      `json:"fallback_flag"`
}

// ForecastAccuracy holds rolling-origin backtest metrics for one entity.
type ForecastAccuracy struct {
	EntityID      int64   `json:"entity_id"`
	MAPE          float64 `json:"mape"`
	RMSE          float64 `json:"rmse"`
	Windows       int     `json:"windows"`
	LowConfidence bool    `json:"low_confidence"`
}

// UpliftResult is the estimated causal effect of one promotion event.
// Baseline and treated volumes are per-period means over the window.
type UpliftResult struct {
	EntityID           int64   `json:"entity_id"`
	PromotionID        int64   `json:"promotion_id"`
	BaselineVolume     float64 `json:"baseline_volume"`
	TreatedVolume      float64 `json:"treated_volume"`
	UpliftPct          float64 `json:"uplift_pct"`
	IncrementalRevenue float64 `json:"incremental_revenue"`
	Confidence         bool    `json:"confidence_flag"`
	Strategy           string  `json:"strategy"`
}

// ShareRecord is one entity's share of its department for one rolling window.
type ShareRecord struct {
	DepartmentID int64     `json:"department_id"`
	PeriodStart  time.Time `json:"period_start"`
	EntityID     int64     `json:"entity_id"`
	SharePct     float64   `json:"share_pct"`
	ShareDelta   float64   `json:"share_delta"`
	Shifting     bool      `json:"shifting"`
}

// ScorecardRecord holds the four normalized axis scores for one entity.
// Recomputed wholesale on each run; scores are relative to the run's cohort.
type ScorecardRecord struct {
	EntityID       int64   `json:"entity_id"`
	ProductScore   float64 `json:"product_score"`
	PriceScore     float64 `json:"price_score"`
	PromotionScore float64 `json:"promotion_score"`
	PlacementScore float64 `json:"placement_score"`
	CompositeScore float64 `json:"composite_score"`
	Rank           int     `json:"rank"`
}

// Recommendation labels a ranked entity with a marketing action.
type Recommendation struct {
	EntityID       int64  `json:"entity_id"`
	Rank           int    `json:"rank"`
	ActionCategory string `json:"action_category"`
	Rationale      string `json:"rationale_text"`
}

// ReorderStats holds per-product reorder statistics.
type ReorderStats struct {
	ProductID     int64   `json:"product_id"`
	TotalOrders   int     `json:"total_orders"`
	TotalReorders int     `json:"total_reorders"`
	ReorderRate   float64 `json:"reorder_rate"`
}

// TimingProfile captures when a product tends to be ordered.
type TimingProfile struct {
	ProductID      int64          `json:"product_id"`
	PeakDOW        int            `json:"peak_dow"`
	DOWCounts      [7]int         `json:"dow_counts"`
	HourCategories map[string]int `json:"hour_categories"` // Night/Morning/Afternoon/Evening
	MeanBasketSize float64        `json:"mean_basket_size"`
}
