// internal/config/config.go
package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	App       AppConfig
	Cache     CacheConfig
	Features  FeatureConfig
	Forecast  ForecastConfig
	Uplift    UpliftConfig
	Share     ShareConfig
	Scorecard ScorecardConfig
	Recommend RecommendConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type AppConfig struct {
	DataDir   string
	OutputDir string
	Workers   int
	LogLevel  string
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	TTLSeconds    int
}

// FeatureConfig controls the schema & feature layer.
type FeatureConfig struct {
	PeriodGranularity string   // day, week or month
	GapFill           string   // zero or interpolate
	SyntheticEpoch    string   // calendar anchor for the order_number time axis
	FocusDepartments  []string // restrict the run to these departments; empty means all
}

// ForecastConfig controls the forecasting engine.
type ForecastConfig struct {
	CycleLength   int     // periods per seasonal cycle
	Horizon       int     // periods to forecast
	MaxIterations int     // fit budget; exhaustion is a fit failure
	MAPEThreshold float64 // backtested MAPE above this flags low confidence
	IntervalZ     float64 // z multiplier for prediction intervals
}

// UpliftConfig controls the promotion simulation engine.
type UpliftConfig struct {
	Strategy           string // pre_post or matched_baseline
	DistanceMetric     string // euclidean or pearson
	Neighbors          int    // K for matched-baseline control selection
	MinControlPeriods  int
	MinControlEntities int
	SimulateTopN       int // synthesize events for the top-N products when no promotions table is supplied
	SimulateWindow     int // treated-window length in periods for synthesized events
}

// ShareConfig controls the market share analyzer.
type ShareConfig struct {
	Window         int     // rolling window width in periods
	ShiftThreshold float64 // share delta (pct points) flagging a shifting entity
}

// ScorecardConfig carries the axis weights for the composite score.
type ScorecardConfig struct {
	ProductWeight   float64
	PriceWeight     float64
	PromotionWeight float64
	PlacementWeight float64
}

// RecommendConfig carries the rule thresholds for the recommendation generator.
type RecommendConfig struct {
	ScalePromotionScore float64 // promotion axis score at or above which a confident uplift scales
	InvestigateScore    float64 // composite score at or below which an entity is investigated
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 15)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 15)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("APP_DATA_DIR", "./data/raw")
		viper.SetDefault("APP_OUTPUT_DIR", "./data/output")
		viper.SetDefault("APP_WORKERS", 4)
		viper.SetDefault("LOG_LEVEL", "info")
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_TTL_SECONDS", 60)

		viper.SetDefault("PERIOD_GRANULARITY", "week")
		viper.SetDefault("GAP_FILL", "zero")
		viper.SetDefault("SYNTHETIC_EPOCH", "2017-01-01")
		viper.SetDefault("FOCUS_DEPARTMENTS", []string{})

		viper.SetDefault("SEASONAL_CYCLE_LENGTH", 4)
		viper.SetDefault("FORECAST_HORIZON", 4)
		viper.SetDefault("FIT_MAX_ITERATIONS", 5000)
		viper.SetDefault("MAPE_THRESHOLD", 0.5)
		viper.SetDefault("INTERVAL_Z", 1.96)

		viper.SetDefault("UPLIFT_STRATEGY", "pre_post")
		viper.SetDefault("UPLIFT_DISTANCE_METRIC", "euclidean")
		viper.SetDefault("UPLIFT_NEIGHBORS", 5)
		viper.SetDefault("UPLIFT_MIN_CONTROL_PERIODS", 3)
		viper.SetDefault("UPLIFT_MIN_CONTROL_ENTITIES", 3)
		viper.SetDefault("PROMO_SIMULATE_TOP_N", 10)
		viper.SetDefault("PROMO_SIMULATE_WINDOW", 2)

		viper.SetDefault("SHARE_WINDOW", 4)
		viper.SetDefault("SHARE_SHIFT_THRESHOLD", 2.0)

		viper.SetDefault("SCORE_PRODUCT_WEIGHT", 1.0)
		viper.SetDefault("SCORE_PRICE_WEIGHT", 1.0)
		viper.SetDefault("SCORE_PROMOTION_WEIGHT", 1.0)
		viper.SetDefault("SCORE_PLACEMENT_WEIGHT", 1.0)

		viper.SetDefault("RECO_SCALE_PROMOTION_SCORE", 0.75)
		viper.SetDefault("RECO_INVESTIGATE_SCORE", 0.25)

		// Read from environment variables
		viper.AutomaticEnv()

		// Ensure the output directory exists
		ensureDir(viper.GetString("APP_OUTPUT_DIR"))

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			App: AppConfig{
				DataDir:   viper.GetString("APP_DATA_DIR"),
				OutputDir: viper.GetString("APP_OUTPUT_DIR"),
				Workers:   viper.GetInt("APP_WORKERS"),
				LogLevel:  viper.GetString("LOG_LEVEL"),
			},
			Cache: CacheConfig{
				Enabled:       viper.GetBool("CACHE_ENABLED"),
				RedisURL:      viper.GetString("REDIS_URL"),
				RedisHost:     viper.GetString("REDIS_HOST"),
				RedisPort:     viper.GetString("REDIS_PORT"),
				RedisPassword: viper.GetString("REDIS_PASSWORD"),
				RedisDB:       viper.GetInt("REDIS_DB"),
				TTLSeconds:    viper.GetInt("CACHE_TTL_SECONDS"),
			},
			Features: FeatureConfig{
				PeriodGranularity: viper.GetString("PERIOD_GRANULARITY"),
				GapFill:           viper.GetString("GAP_FILL"),
				SyntheticEpoch:    viper.GetString("SYNTHETIC_EPOCH"),
				FocusDepartments:  viper.GetStringSlice("FOCUS_DEPARTMENTS"),
			},
			Forecast: ForecastConfig{
				CycleLength:   viper.GetInt("SEASONAL_CYCLE_LENGTH"),
				Horizon:       viper.GetInt("FORECAST_HORIZON"),
				MaxIterations: viper.GetInt("FIT_MAX_ITERATIONS"),
				MAPEThreshold: viper.GetFloat64("MAPE_THRESHOLD"),
				IntervalZ:     viper.GetFloat64("INTERVAL_Z"),
			},
			Uplift: UpliftConfig{
				Strategy:           viper.GetString("UPLIFT_STRATEGY"),
				DistanceMetric:     viper.GetString("UPLIFT_DISTANCE_METRIC"),
				Neighbors:          viper.GetInt("UPLIFT_NEIGHBORS"),
				MinControlPeriods:  viper.GetInt("UPLIFT_MIN_CONTROL_PERIODS"),
				MinControlEntities: viper.GetInt("UPLIFT_MIN_CONTROL_ENTITIES"),
				SimulateTopN:       viper.GetInt("PROMO_SIMULATE_TOP_N"),
				SimulateWindow:     viper.GetInt("PROMO_SIMULATE_WINDOW"),
			},
			Share: ShareConfig{
				Window:         viper.GetInt("SHARE_WINDOW"),
				ShiftThreshold: viper.GetFloat64("SHARE_SHIFT_THRESHOLD"),
			},
			Scorecard: ScorecardConfig{
				ProductWeight:   viper.GetFloat64("SCORE_PRODUCT_WEIGHT"),
				PriceWeight:     viper.GetFloat64("SCORE_PRICE_WEIGHT"),
				PromotionWeight: viper.GetFloat64("SCORE_PROMOTION_WEIGHT"),
				PlacementWeight: viper.GetFloat64("SCORE_PLACEMENT_WEIGHT"),
			},
			Recommend: RecommendConfig{
				ScalePromotionScore: viper.GetFloat64("RECO_SCALE_PROMOTION_SCORE"),
				InvestigateScore:    viper.GetFloat64("RECO_INVESTIGATE_SCORE"),
			},
		}
	})

	return instance
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
