package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"aqicli/internal/cleaning"
	"aqicli/internal/config"
	"aqicli/internal/export"
	"aqicli/internal/features"
	"aqicli/internal/infrastructure"
	"aqicli/internal/ingest"
	"aqicli/internal/split"
	"aqicli/pkg/contracts"
	"aqicli/pkg/contracts/domain"
)

// cityResult summarises the pipeline outcome for one city.
type cityResult struct {
	City        string
	Rows        int
	FeatureRows int
	Columns     int
	Dropped     int
	Err         error
}

// cityDeps bundles the shared stages and sinks used by per-city workers.
type cityDeps struct {
	Cleaner  *cleaning.Cleaner
	Engineer *features.Engineer
	Splitter *split.Splitter
	Series   *export.SeriesExporter
	JSON     *export.JSONWriter
	Paths    *config.Paths
	Split    config.SplitConfig
	Metrics  *infrastructure.PipelineMetrics
	Logger   *slog.Logger
}

// cityArtifacts is the per-city quality report written next to the cleaned
// series and feature table.
type cityArtifacts struct {
	City        string                    `json:"city"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Cleaning    *domain.CleaningReport    `json:"cleaning"`
	Consistency *domain.ConsistencyReport `json:"consistency,omitempty"`
	Split       *domain.SplitResult       `json:"split"`
	Features    featureSummary            `json:"features"`
}

type featureSummary struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	dataDir := flag.String("data", "data", "base directory for the data workspace")
	inDir := flag.String("in", "", "input directory for raw observation files (defaults to <data>/input)")
	pattern := flag.String("pattern", config.DefaultInputPattern, "glob pattern for input files")
	workers := flag.Int("workers", 0, "cities processed concurrently (0 uses validation.max_concurrency)")
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

	paths := config.NewPaths(*dataDir)
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	if *inDir == "" {
		*inDir = paths.InputDir
	}
	if *workers <= 0 {
		*workers = cfg.Validation.MaxConcurrency
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
		}
	}

	logger.InfoContext(ctx, "Starting air quality data pipeline",
		slog.String("version", config.AppVersion),
		slog.String("input_dir", *inDir),
		slog.String("data_dir", *dataDir),
		slog.String("pattern", *pattern),
		slog.Int("workers", *workers))

	discovery := ingest.NewDiscovery(*inDir, logger)
	if err := discovery.ValidateInputDir(ctx, ".", *pattern); err != nil {
		logger.ErrorContext(ctx, "Input directory validation failed", "error", err)
		os.Exit(1)
	}
	files, err := discovery.Discover(ctx, *pattern)
	if err != nil {
		logger.ErrorContext(ctx, "Input discovery failed", "error", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		logger.ErrorContext(ctx, "No input files found",
			slog.String("directory", *inDir),
			slog.String("pattern", *pattern),
			slog.String("hint", "expected files named <city>_<YYYY-MM>.csv"))
		os.Exit(1)
	}
	fmt.Printf("Found %d input files in %s\n", len(files), *inDir)

	start := time.Now()

	observations, stats := loadObservations(ctx, files, logger)
	if len(observations) == 0 {
		logger.ErrorContext(ctx, "No observations loaded from input files",
			slog.Int("files", len(files)),
			slog.Int("failed_files", stats.FailedFiles))
		os.Exit(1)
	}
	fmt.Printf("Loaded %d observations (%d rows skipped, %d files failed)\n",
		stats.Loaded, stats.SkippedRows, stats.FailedFiles)

	byCity := ingest.GroupByCity(observations)
	cities := make([]string, 0, len(byCity))
	for city := range byCity {
		cities = append(cities, city)
	}
	sort.Strings(cities)
	logger.InfoContext(ctx, "Observations grouped by city",
		slog.Int("cities", len(cities)),
		slog.Int("observations", len(observations)))

	cleaner, err := cleaning.NewCleaner(cleaningConfig(cfg), logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to configure cleaner", "error", err)
		os.Exit(1)
	}
	engineer, err := features.NewEngineer(features.Config{
		RollingWindows: cfg.Features.RollingWindows,
		LagOffsets:     cfg.Features.LagOffsets,
		DiffSteps:      cfg.Features.DiffSteps,
	}, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to configure feature engineer", "error", err)
		os.Exit(1)
	}

	deps := cityDeps{
		Cleaner:  cleaner,
		Engineer: engineer,
		Splitter: split.NewSplitter(logger),
		Series:   export.NewSeriesExporter(logger),
		JSON:     export.NewJSONWriter(logger),
		Paths:    paths,
		Split:    cfg.Split,
		Metrics:  metrics,
		Logger:   logger,
	}

	results := make([]cityResult, len(cities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*workers)
	for i, city := range cities {
		i, city := i, city
		g.Go(func() error {
			results[i] = processCity(gctx, city, byCity[city], deps)
			return nil
		})
	}
	_ = g.Wait()

	printPipelineSummary(results, time.Since(start))

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logger.InfoContext(ctx, "Pipeline finished",
		slog.Int("cities", len(results)),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(start)))
	if failed > 0 {
		os.Exit(1)
	}
}

// loadStats aggregates ingestion counters across input files.
type loadStats struct {
	Files       int
	FailedFiles int
	Rows        int
	Loaded      int
	SkippedRows int
	BadCells    int
}

// loadObservations reads every discovered file with the loader matching its
// extension. A file that fails to parse is logged and skipped rather than
// aborting the run.
func loadObservations(ctx context.Context, files []ingest.InputFile, logger *slog.Logger) ([]domain.Observation, loadStats) {
	base := ingest.DefaultCSVConfig()

	var all []domain.Observation
	var stats loadStats
	for _, f := range files {
		fileCfg := base
		fileCfg.DefaultCity = f.City

		var (
			obs    []domain.Observation
			report *ingest.LoadReport
			err    error
		)
		switch strings.ToLower(filepath.Ext(f.Name)) {
		case ".csv":
			var loader *ingest.CSVLoader
			loader, err = ingest.NewCSVLoader(fileCfg, logger)
			if err == nil {
				obs, report, err = loader.Load(ctx, f.Path)
			}
		case ".xlsx":
			var loader *ingest.XLSXLoader
			loader, err = ingest.NewXLSXLoader(fileCfg, logger)
			if err == nil {
				obs, report, err = loader.Load(ctx, f.Path)
			}
		default:
			logger.WarnContext(ctx, "skipping file with unsupported extension",
				slog.String("file", f.Name))
			continue
		}

		stats.Files++
		if err != nil {
			stats.FailedFiles++
			logger.ErrorContext(ctx, "failed to load input file",
				slog.String("file", f.Path),
				slog.String("error", err.Error()))
			continue
		}

		all = append(all, obs...)
		stats.Rows += report.Rows
		stats.Loaded += report.Loaded
		stats.SkippedRows += report.SkippedRows
		stats.BadCells += report.BadCells
	}
	return all, stats
}

// processCity runs clean, featurize, split and export for a single city and
// returns the outcome. Failures are recorded, not fatal, so sibling cities
// keep running.
func processCity(ctx context.Context, city string, observations []domain.Observation, deps cityDeps) cityResult {
	res := cityResult{City: city}
	logger := deps.Logger.With(slog.String("city", city))

	cleanStart := time.Now()
	series, cleaningReport, consistency, err := deps.Cleaner.CleanObservations(ctx, city, observations)
	infrastructure.RecordStageMetrics(ctx, deps.Metrics, "clean", city, time.Since(cleanStart), err == nil)
	if err != nil {
		res.Err = fmt.Errorf("clean: %w", err)
		return res
	}
	infrastructure.RecordCleaningMetrics(ctx, deps.Metrics, city, infrastructure.CleaningCounts{
		Observations: int64(len(observations)),
		Imputed:      int64(cleaningReport.ImputedCount),
		Outliers:     int64(cleaningReport.OutliersHandled),
		Violations:   int64(cleaningReport.ConstraintViolationsFixed),
		Anomalies:    int64(len(cleaningReport.Anomalies)),
		Dropped:      int64(cleaningReport.DroppedRows),
	})
	res.Rows = series.Len()
	res.Dropped = cleaningReport.DroppedRows

	featStart := time.Now()
	table, err := deps.Engineer.EngineerFeatures(ctx, series)
	infrastructure.RecordStageMetrics(ctx, deps.Metrics, "featurize", city, time.Since(featStart), err == nil)
	if err != nil {
		res.Err = fmt.Errorf("engineer features: %w", err)
		return res
	}
	res.FeatureRows = table.NumRows()
	res.Columns = table.NumColumns()

	splitStart := time.Now()
	splitResult, err := deps.Splitter.SplitTable(ctx, table,
		deps.Split.TrainRatio, deps.Split.ValidationRatio, deps.Split.TestRatio)
	infrastructure.RecordStageMetrics(ctx, deps.Metrics, "split", city, time.Since(splitStart), err == nil)
	if err != nil {
		res.Err = fmt.Errorf("split: %w", err)
		return res
	}

	exportStart := time.Now()
	err = writeCityArtifacts(ctx, deps, city, series, table, cleaningReport, consistency, splitResult)
	infrastructure.RecordStageMetrics(ctx, deps.Metrics, "export", city, time.Since(exportStart), err == nil)
	if err != nil {
		res.Err = err
		return res
	}

	logger.InfoContext(ctx, "city pipeline complete",
		slog.Int("rows", res.Rows),
		slog.Int("feature_rows", res.FeatureRows),
		slog.Int("feature_columns", res.Columns))
	return res
}

// writeCityArtifacts persists the cleaned series, the feature table and the
// per-city quality report.
func writeCityArtifacts(ctx context.Context, deps cityDeps, city string, series *domain.Series, table *domain.FeatureTable, cleaningReport *domain.CleaningReport, consistency *domain.ConsistencyReport, splitResult *domain.SplitResult) error {
	if err := deps.Series.ExportSeries(ctx, deps.Paths.CleanedCSV(city), series); err != nil {
		return fmt.Errorf("export cleaned series: %w", err)
	}
	if err := deps.Series.ExportFeatureTable(ctx, deps.Paths.FeatureCSV(city), table); err != nil {
		return fmt.Errorf("export feature table: %w", err)
	}

	artifacts := cityArtifacts{
		City:        city,
		GeneratedAt: time.Now().UTC(),
		Cleaning:    cleaningReport,
		Consistency: consistency,
		Split:       splitResult,
		Features:    featureSummary{Rows: table.NumRows(), Columns: table.NumColumns()},
	}
	if err := deps.JSON.Write(ctx, deps.Paths.CleaningReportJSON(city), artifacts); err != nil {
		return fmt.Errorf("write cleaning report: %w", err)
	}
	return nil
}

// cleaningConfig maps the application configuration onto the cleaner's
// configuration, keeping the built-in domain bounds unless overridden.
func cleaningConfig(cfg *config.Config) cleaning.Config {
	c := cleaning.DefaultConfig()
	c.ImputationMethod = domain.ImputationMethod(cfg.Cleaning.ImputationMethod)
	c.OutlierMethod = domain.OutlierMethod(cfg.Cleaning.OutlierMethod)
	c.OutlierAction = domain.OutlierAction(cfg.Cleaning.OutlierAction)
	c.ZScoreThreshold = cfg.Cleaning.ZScoreThreshold
	c.IQRMultiplier = cfg.Cleaning.IQRMultiplier
	c.CapLowerPercentile = cfg.Cleaning.CapLowerPercentile
	c.CapUpperPercentile = cfg.Cleaning.CapUpperPercentile
	c.ForwardFillLimit = cfg.Cleaning.ForwardFillLimit
	c.BackwardFillLimit = cfg.Cleaning.BackwardFillLimit
	c.RollingFillWindow = cfg.Cleaning.RollingFillWindow
	c.AnomalyWindow = cfg.Cleaning.AnomalyWindow
	c.AnomalyFlagSigma = cfg.Cleaning.AnomalySigma
	c.AnomalyHighSigma = cfg.Cleaning.AnomalyHighSigma
	c.CVThreshold = cfg.Cleaning.CVThreshold
	c.AQIDifferenceThreshold = cfg.Cleaning.AQIDiffThreshold
	c.RegularizeGrid = cfg.Cleaning.Regularize
	for name, bounds := range cfg.Cleaning.DomainBounds {
		c.DomainBounds[domain.Parameter(name)] = bounds
	}
	return c
}

func printPipelineSummary(results []cityResult, elapsed time.Duration) {
	fmt.Println("\n=== PIPELINE SUMMARY ===")
	fmt.Println("City            |   Rows | Feature rows | Columns | Dropped | Status")
	fmt.Println("----------------|--------|--------------|---------|---------|-------")
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = "FAILED: " + r.Err.Error()
		}
		fmt.Printf("%-15s | %6d | %12d | %7d | %7d | %s\n",
			r.City, r.Rows, r.FeatureRows, r.Columns, r.Dropped, status)
	}
	fmt.Printf("\nCompleted in %s\n", elapsed.Round(time.Millisecond))
}
