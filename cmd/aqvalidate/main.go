package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"aqicli/internal/benchmark"
	"aqicli/internal/config"
	"aqicli/internal/export"
	"aqicli/internal/features"
	"aqicli/internal/infrastructure"
	"aqicli/internal/ingest"
	"aqicli/internal/validation"
	"aqicli/pkg/contracts"
	"aqicli/pkg/contracts/domain"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	dataDir := flag.String("data", "data", "base directory for the data workspace")
	workers := flag.Int("workers", 0, "validation units in flight (0 uses validation.max_concurrency)")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *workers > 0 {
		cfg.Validation.MaxConcurrency = *workers
	}

	paths := config.NewPaths(*dataDir)
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Relative log paths land inside the workspace logs directory.
	if !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = paths.LogFile(filepath.Base(cfg.Logging.FilePath))
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	defer func() { _ = infrastructure.CloseLogFile() }()

	ctx := infrastructure.WithTraceID(context.Background(), infrastructure.GenerateTraceID())

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFromMetrics(cfg.Metrics), logger)
	if err != nil {
		logger.WarnContext(ctx, "OpenTelemetry initialization failed, continuing without telemetry", "error", err)
		providers = nil
	}
	var metrics *infrastructure.PipelineMetrics
	if providers != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := providers.Shutdown(shutdownCtx); err != nil {
				logger.Warn("OpenTelemetry shutdown failed", "error", err)
			}
		}()

		if cfg.Metrics.Enabled {
			metrics, err = infrastructure.CreatePipelineMetrics(providers.Meter)
			if err != nil {
				logger.WarnContext(ctx, "Failed to create pipeline metrics", "error", err)
			}
			if providers.PrometheusHTTP != nil {
				mux := http.NewServeMux()
				mux.Handle("/metrics", providers.PrometheusHTTP)
				metricsSrv := &http.Server{
					Addr:              cfg.Metrics.ListenAddr,
					Handler:           mux,
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					logger.InfoContext(ctx, "Serving Prometheus metrics", "addr", cfg.Metrics.ListenAddr)
					if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.WarnContext(ctx, "Metrics server stopped", "error", err)
					}
				}()
				defer func() { _ = metricsSrv.Shutdown(context.Background()) }()
			}
			collector, err := infrastructure.NewSystemMetricsCollector(providers.Meter, 15*time.Second)
			if err != nil {
				logger.WarnContext(ctx, "Failed to create system metrics collector", "error", err)
			} else {
				go collector.Start(ctx)
				defer collector.Stop()
			}
		}
	}

	logger.InfoContext(ctx, "Starting model validation sweep",
		slog.String("version", config.AppVersion),
		slog.String("data_dir", *dataDir),
		slog.String("cleaned_dir", paths.CleanedDir),
		slog.String("horizons", fmt.Sprint(cfg.Validation.Horizons)),
		slog.Int("max_concurrency", cfg.Validation.MaxConcurrency))

	datasets, err := loadCityDatasets(ctx, cfg, paths, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load city datasets", "error", err)
		os.Exit(1)
	}
	if len(datasets) == 0 {
		logger.ErrorContext(ctx, "No cleaned city data found",
			slog.String("directory", paths.CleanedDir),
			slog.String("hint", "run aqpipeline first to produce cleaned series"))
		os.Exit(1)
	}
	fmt.Printf("Loaded %d city datasets from %s\n", len(datasets), paths.CleanedDir)

	multicity, err := validation.NewMultiCityValidator(multiCityConfig(cfg), logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to configure multi-city validator", "error", err)
		os.Exit(1)
	}
	forecast, err := validation.NewForecastingValidator(validation.ForecastingConfig{
		MinTrainSize: cfg.Validation.MinTrainSize,
		Step:         cfg.Validation.Step,
		Gap:          cfg.Validation.Gap,
	}, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to configure forecasting validator", "error", err)
		os.Exit(1)
	}
	runner, err := validation.NewRunner(validation.RunnerConfig{
		Horizons:         cfg.Validation.Horizons,
		MaxConcurrency:   cfg.Validation.MaxConcurrency,
		AdapterRateLimit: cfg.Validation.AdapterRateLimit,
	}, multicity, forecast, metrics, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to configure validation runner", "error", err)
		os.Exit(1)
	}

	models := modelRegistry()
	fmt.Printf("Validating %d models across %d cities and %d horizons\n",
		len(models), len(datasets), len(cfg.Validation.Horizons))

	start := time.Now()
	sweep, err := runner.Sweep(ctx, datasets, models)
	if err != nil {
		logger.ErrorContext(ctx, "Validation sweep failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Sweep complete: %d units, %d failed (%s)\n",
		sweep.UnitsTotal, sweep.UnitsFailed, time.Since(start).Round(time.Millisecond))

	comparator := benchmark.NewComparator(logger)
	comparisons, err := comparator.CompareBaselines(ctx, sweep.Holdout, cfg.Benchmark.Baselines)
	if err != nil {
		logger.WarnContext(ctx, "Baseline comparison failed", "error", err)
		comparisons = nil
	}

	reporter := benchmark.NewReporter(logger)
	report, err := reporter.BuildReport(ctx, benchmark.ReportInput{
		Sweep:      sweep,
		Horizons:   cfg.Validation.Horizons,
		Benchmarks: comparisons,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to build validation report", "error", err)
		os.Exit(1)
	}

	jsonWriter := export.NewJSONWriter(logger)
	csvWriter := export.NewCSVWriter(logger)
	markdownWriter := export.NewMarkdownWriter(logger)

	if err := jsonWriter.Write(ctx, paths.ReportJSON, report); err != nil {
		logger.ErrorContext(ctx, "Failed to write JSON report", "error", err)
		os.Exit(1)
	}
	if err := csvWriter.WriteCSV(paths.ResultsCSV, export.ResultsCSV(report)); err != nil {
		logger.ErrorContext(ctx, "Failed to write results CSV", "error", err)
		os.Exit(1)
	}
	if err := csvWriter.WriteCSV(paths.RankingsCSV, export.RankingsCSV(report)); err != nil {
		logger.ErrorContext(ctx, "Failed to write rankings CSV", "error", err)
		os.Exit(1)
	}
	if err := markdownWriter.Write(ctx, paths.ReportMarkdown, report); err != nil {
		logger.ErrorContext(ctx, "Failed to write markdown report", "error", err)
		os.Exit(1)
	}

	logger.InfoContext(ctx, "Validation report written",
		slog.String("json", paths.ReportJSON),
		slog.String("results_csv", paths.ResultsCSV),
		slog.String("rankings_csv", paths.RankingsCSV),
		slog.String("markdown", paths.ReportMarkdown),
		slog.Duration("duration", time.Since(start)))

	printValidationSummary(report)

	if sweep.UnitsFailed > 0 {
		fmt.Printf("\nWARNING: %d of %d validation units failed; see %s for details\n",
			sweep.UnitsFailed, sweep.UnitsTotal, paths.ReportJSON)
	}
}

// loadCityDatasets reads every cleaned series, rebuilds its feature table
// and pairs the two for the sweep. Discovery returns the files in name
// order, so datasets come back sorted by city.
func loadCityDatasets(ctx context.Context, cfg *config.Config, paths *config.Paths, logger *slog.Logger) ([]*validation.CityDataset, error) {
	discovery := ingest.NewDiscovery(paths.CleanedDir, logger)
	files, err := discovery.Discover(ctx, "*"+config.CleanedFileSuffix)
	if err != nil {
		return nil, err
	}

	engineer, err := features.NewEngineer(features.Config{
		RollingWindows: cfg.Features.RollingWindows,
		LagOffsets:     cfg.Features.LagOffsets,
		DiffSteps:      cfg.Features.DiffSteps,
	}, logger)
	if err != nil {
		return nil, err
	}

	datasets := make([]*validation.CityDataset, 0, len(files))
	for _, f := range files {
		city := strings.TrimSuffix(f.Name, config.CleanedFileSuffix)

		loaderCfg := ingest.DefaultCSVConfig()
		loaderCfg.DefaultCity = city
		loader, err := ingest.NewCSVLoader(loaderCfg, logger)
		if err != nil {
			return nil, err
		}
		observations, report, err := loader.Load(ctx, f.Path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", f.Path, err)
		}
		if len(observations) == 0 {
			logger.WarnContext(ctx, "cleaned file holds no observations, skipping",
				slog.String("file", f.Path))
			continue
		}

		series := domain.NewSeries(city, observations)
		table, err := engineer.EngineerFeatures(ctx, series)
		if err != nil {
			return nil, fmt.Errorf("engineer features for %s: %w", city, err)
		}
		dataset, err := validation.NewCityDataset(series, table)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, dataset)

		logger.InfoContext(ctx, "city dataset ready",
			slog.String("city", city),
			slog.Int("rows", series.Len()),
			slog.Int("feature_columns", table.NumColumns()),
			slog.Int("skipped_rows", report.SkippedRows))
	}
	return datasets, nil
}

// multiCityConfig maps the application configuration onto the holdout
// validator, falling back to the standard band table when none is given.
func multiCityConfig(cfg *config.Config) validation.MultiCityConfig {
	mc := validation.MultiCityConfig{
		TrainRatio:      cfg.Split.TrainRatio,
		ValidationRatio: cfg.Split.ValidationRatio,
		TestRatio:       cfg.Split.TestRatio,
		Bands:           cfg.Validation.AQIBands,
	}
	if len(mc.Bands) == 0 {
		mc.Bands = domain.DefaultAQIBands()
	}
	return mc
}

// modelRegistry lists the built-in reference models. The two echo
// baselines read the reference columns of the forecasting pair matrix,
// so they run in the forecasting phase only.
func modelRegistry() []validation.ModelSpec {
	return []validation.ModelSpec{
		{ID: "climatology", New: func() domain.ModelAdapter {
			return validation.NewClimatologyAdapter()
		}},
		{ID: "persistence", ForecastOnly: true, New: func() domain.ModelAdapter {
			return validation.NewPersistenceAdapter(-2)
		}},
		{ID: "seasonal_naive", ForecastOnly: true, New: func() domain.ModelAdapter {
			return validation.NewSeasonalNaiveAdapter(-1)
		}},
	}
}

func printValidationSummary(report *domain.ValidationReport) {
	fmt.Println("\n=== MODEL RANKINGS ===")
	fmt.Println("Rank | Model           |  Score | Multi-city R2 | Forecast RMSE")
	fmt.Println("-----|-----------------|--------|---------------|--------------")
	for _, r := range report.Rankings {
		fmt.Printf("%4d | %-15s | %6.3f | %13.3f | %13.3f\n",
			r.Rank, r.ModelID, r.Score, r.MultiCityR2, r.ForecastRMSE)
	}

	if len(report.Benchmarks) > 0 {
		fmt.Println("\n=== PUBLISHED BASELINE COMPARISON ===")
		fmt.Println("Model           | City            | Baseline RMSE | Model RMSE | Improvement")
		fmt.Println("----------------|-----------------|---------------|------------|------------")
		for _, b := range report.Benchmarks {
			fmt.Printf("%-15s | %-15s | %13.2f | %10.2f | %+10.1f%%\n",
				b.ModelID, b.City, b.BaselineRMSE, b.ModelRMSE, b.Improvement*100)
		}
	}

	fmt.Printf("\nCities: %s\n", strings.Join(report.Cities, ", "))
	fmt.Printf("Units: %d total, %d failed\n", report.UnitsTotal, report.UnitsFailed)
}
