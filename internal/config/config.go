package config

import (
	"fmt"
	"math"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"aqicli/pkg/contracts/domain"
)

// Config represents the complete application configuration
type Config struct {
	Cleaning   CleaningConfig   `yaml:"cleaning" envconfig:"CLEANING"`
	Features   FeatureConfig    `yaml:"features" envconfig:"FEATURES"`
	Split      SplitConfig      `yaml:"split" envconfig:"SPLIT"`
	Validation ValidationConfig `yaml:"validation" envconfig:"VALIDATION"`
	Benchmark  BenchmarkConfig  `yaml:"benchmark" envconfig:"BENCHMARK"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Metrics    MetricsConfig    `yaml:"metrics" envconfig:"METRICS"`
}

// CleaningConfig selects imputation and outlier behaviour for the cleaner.
// Default values live in Default(); envconfig only overrides fields whose
// AQ_ variable is actually set, so file values survive.
type CleaningConfig struct {
	ImputationMethod   string  `yaml:"imputation_method" envconfig:"IMPUTATION_METHOD" validate:"required,imputation_method"`
	OutlierMethod      string  `yaml:"outlier_method" envconfig:"OUTLIER_METHOD" validate:"required,outlier_method"`
	OutlierAction      string  `yaml:"outlier_action" envconfig:"OUTLIER_ACTION" validate:"required,outlier_action"`
	ZScoreThreshold    float64 `yaml:"zscore_threshold" envconfig:"ZSCORE_THRESHOLD" validate:"gt=0"`
	IQRMultiplier      float64 `yaml:"iqr_multiplier" envconfig:"IQR_MULTIPLIER" validate:"gt=0"`
	CapLowerPercentile float64 `yaml:"cap_lower_percentile" envconfig:"CAP_LOWER_PERCENTILE" validate:"gte=0,lt=1"`
	CapUpperPercentile float64 `yaml:"cap_upper_percentile" envconfig:"CAP_UPPER_PERCENTILE" validate:"gt=0,lte=1"`
	ForwardFillLimit   int     `yaml:"forward_fill_limit" envconfig:"FORWARD_FILL_LIMIT" validate:"gte=1"`
	BackwardFillLimit  int     `yaml:"backward_fill_limit" envconfig:"BACKWARD_FILL_LIMIT" validate:"gte=1"`
	RollingFillWindow  int     `yaml:"rolling_fill_window" envconfig:"ROLLING_FILL_WINDOW" validate:"gte=1"`
	AnomalyWindow      int     `yaml:"anomaly_window" envconfig:"ANOMALY_WINDOW" validate:"gte=3"`
	AnomalySigma       float64 `yaml:"anomaly_sigma" envconfig:"ANOMALY_SIGMA" validate:"gt=0"`
	AnomalyHighSigma   float64 `yaml:"anomaly_high_sigma" envconfig:"ANOMALY_HIGH_SIGMA" validate:"gt=0"`
	CVThreshold        float64 `yaml:"cv_threshold" envconfig:"CV_THRESHOLD" validate:"gt=0"`
	AQIDiffThreshold   float64 `yaml:"aqi_diff_threshold" envconfig:"AQI_DIFF_THRESHOLD" validate:"gt=0"`
	Regularize         bool    `yaml:"regularize" envconfig:"REGULARIZE"`
	// DomainBounds overrides the built-in per-parameter plausibility table.
	// YAML only; empty means use the defaults.
	DomainBounds map[string]domain.Bounds `yaml:"domain_bounds" ignored:"true"`
}

// FeatureConfig selects the windowed feature surface of the engineer.
type FeatureConfig struct {
	RollingWindows []int `yaml:"rolling_windows" envconfig:"ROLLING_WINDOWS" validate:"min=1,dive,gt=0"`
	LagOffsets     []int `yaml:"lag_offsets" envconfig:"LAG_OFFSETS" validate:"min=1,dive,gt=0"`
	DiffSteps      []int `yaml:"diff_steps" envconfig:"DIFF_STEPS" validate:"min=1,dive,gt=0"`
}

// SplitConfig holds the chronological partition ratios.
type SplitConfig struct {
	TrainRatio      float64 `yaml:"train_ratio" envconfig:"TRAIN_RATIO" validate:"gt=0,lt=1"`
	ValidationRatio float64 `yaml:"validation_ratio" envconfig:"VALIDATION_RATIO" validate:"gt=0,lt=1"`
	TestRatio       float64 `yaml:"test_ratio" envconfig:"TEST_RATIO" validate:"gt=0,lt=1"`
}

// ValidationConfig drives the multi-horizon walk-forward sweep.
type ValidationConfig struct {
	Horizons         []int   `yaml:"horizons" envconfig:"HORIZONS" validate:"min=1,dive,gt=0"`
	MinTrainSize     int     `yaml:"min_train_size" envconfig:"MIN_TRAIN_SIZE" validate:"gte=2"`
	Step             int     `yaml:"step" envconfig:"STEP" validate:"gte=1"`
	Gap              int     `yaml:"gap" envconfig:"GAP" validate:"gte=0"`
	MaxConcurrency   int     `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY" validate:"gte=1"`
	AdapterRateLimit float64 `yaml:"adapter_rate_limit" envconfig:"ADAPTER_RATE_LIMIT" validate:"gte=0"`
	// AQIBands overrides the standard six-band stratification. YAML only.
	AQIBands []domain.AQIBand `yaml:"aqi_bands" ignored:"true"`
}

// BenchmarkConfig holds the published per-city baseline table. YAML only.
type BenchmarkConfig struct {
	Baselines []domain.BaselineMetrics `yaml:"baselines" ignored:"true"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// MetricsConfig controls the optional observability surface.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled" envconfig:"ENABLED"`
	ListenAddr    string `yaml:"listen_addr" envconfig:"LISTEN_ADDR"`
	TraceExporter string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
}

// newValidator builds the validator with the closed-enum checks registered.
func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterValidation("imputation_method", func(fl validator.FieldLevel) bool {
		return domain.ImputationMethod(fl.Field().String()).IsValid()
	})
	v.RegisterValidation("outlier_method", func(fl validator.FieldLevel) bool {
		return domain.OutlierMethod(fl.Field().String()).IsValid()
	})
	v.RegisterValidation("outlier_action", func(fl validator.FieldLevel) bool {
		return domain.OutlierAction(fl.Field().String()).IsValid()
	})

	// Use YAML tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// Load loads configuration from defaults, an optional YAML file, and
// AQ_-prefixed environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Environment overrides take precedence over file values
	if err := envconfig.Process("AQ", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile merges a YAML file over cfg in place.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks field constraints and the cross-field split invariant.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return err
	}

	sum := c.Split.TrainRatio + c.Split.ValidationRatio + c.Split.TestRatio
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("split ratios must sum to 1.0, got %.6f", sum)
	}

	if c.Cleaning.CapLowerPercentile >= c.Cleaning.CapUpperPercentile {
		return fmt.Errorf("cap_lower_percentile %.3f must be below cap_upper_percentile %.3f",
			c.Cleaning.CapLowerPercentile, c.Cleaning.CapUpperPercentile)
	}

	if c.Cleaning.AnomalyHighSigma < c.Cleaning.AnomalySigma {
		return fmt.Errorf("anomaly_high_sigma %.1f must be at least anomaly_sigma %.1f",
			c.Cleaning.AnomalyHighSigma, c.Cleaning.AnomalySigma)
	}

	for i, b := range c.Benchmark.Baselines {
		if b.City == "" || b.RMSE <= 0 {
			return fmt.Errorf("baseline %d: city and a positive rmse are required", i)
		}
	}

	return nil
}
