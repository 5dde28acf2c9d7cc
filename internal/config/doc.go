// Package config provides centralized configuration management for the
// air quality pipeline. It handles loading configuration from multiple
// sources, validation, and the on-disk workspace layout shared by the
// pipeline and validation CLIs.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. A YAML configuration file (optional)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern AQ_* for namespacing:
//
//	AQ_CLEANING_IMPUTATION_METHOD=interpolate
//	AQ_SPLIT_TRAIN_RATIO=0.8
//	AQ_VALIDATION_HORIZONS=1,6,24
//	AQ_LOGGING_LEVEL=debug
//	AQ_METRICS_ENABLED=true
//
// # Validation
//
// All configuration is validated at load time to ensure:
//
//	- Method names select a known imputation, outlier, or action strategy
//	- Split ratios are in (0, 1) and sum to 1.0
//	- Percentile caps and anomaly sigma levels are ordered
//	- Benchmark baselines carry a city and a positive RMSE
//
// # Path Management
//
// The package provides centralized path management through the Paths type,
// which lays out the pipeline workspace under a single base directory:
//
//	paths := config.NewPaths("data")
//	cleaned := paths.CleanedCSV("beijing")
//	report := paths.ReportJSON
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
