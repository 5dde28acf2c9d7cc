package config

import "aqicli/pkg/contracts/domain"

// Default returns default configuration
func Default() *Config {
	return &Config{
		Cleaning: CleaningConfig{
			ImputationMethod:   string(domain.ImputeHybrid),
			OutlierMethod:      string(domain.OutlierCombined),
			OutlierAction:      string(domain.ActionCap),
			ZScoreThreshold:    3.0,
			IQRMultiplier:      1.5,
			CapLowerPercentile: 0.05,
			CapUpperPercentile: 0.95,
			ForwardFillLimit:   3,
			BackwardFillLimit:  3,
			RollingFillWindow:  6,
			AnomalyWindow:      24,
			AnomalySigma:       3.0,
			AnomalyHighSigma:   5.0,
			CVThreshold:        0.30,
			AQIDiffThreshold:   50,
			Regularize:         true,
		},
		Features: FeatureConfig{
			RollingWindows: []int{3, 6, 12, 24},
			LagOffsets:     []int{1, 6, 12, 24},
			DiffSteps:      []int{1, 6},
		},
		Split: SplitConfig{
			TrainRatio:      0.7,
			ValidationRatio: 0.15,
			TestRatio:       0.15,
		},
		Validation: ValidationConfig{
			Horizons:       []int{1, 6, 12, 24, 48},
			MinTrainSize:   168,
			Step:           1,
			Gap:            0,
			MaxConcurrency: 4,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Output:      "console",
			FilePath:    "logs/aqicli.log",
			Development: false,
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			ListenAddr:    ":9090",
			TraceExporter: "none",
		},
	}
}
